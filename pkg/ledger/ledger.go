// Package ledger manages the per-package version history file
// (packages/<id>/versions.txt): an append-only, de-duplicated,
// newline-delimited list ordered oldest to newest. "Latest" is defined as the
// last entry, i.e. arrival order, never semantic version order.
package ledger

import (
	"os"
	"strings"

	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
)

// FileName is the ledger file name inside a package directory.
const FileName = "versions.txt"

// Read returns the versions recorded at path, oldest first. A missing ledger
// reads as empty.
func Read(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "cannot read version ledger %s", path)
	}

	var versions []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			versions = append(versions, line)
		}
	}
	return versions, nil
}

// Latest returns the most recently appended version, or "" when the ledger is
// empty or absent.
func Latest(path string) (string, error) {
	versions, err := Read(path)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", nil
	}
	return versions[len(versions)-1], nil
}

// Append records version at the end of the ledger. Appending a version that
// is already present is a no-op; the existing order is preserved.
func Append(path, version string) error {
	versions, err := Read(path)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if v == version {
			return nil
		}
	}
	versions = append(versions, version)
	return write(path, versions)
}

// Remove deletes version from the ledger. When the last version is removed
// the ledger file itself is deleted: a package with zero versions is
// indistinguishable from one that never existed. Removing from a missing
// ledger is a no-op.
func Remove(path, version string) error {
	versions, err := Read(path)
	if err != nil {
		return err
	}
	if versions == nil {
		return nil
	}

	kept := versions[:0]
	for _, v := range versions {
		if v != version {
			kept = append(kept, v)
		}
	}

	if len(kept) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "cannot delete version ledger %s", path)
		}
		return nil
	}
	return write(path, kept)
}

// Delete removes the entire ledger file. Missing is a no-op.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "cannot delete version ledger %s", path)
	}
	return nil
}

func write(path string, versions []string) error {
	if err := fsutil.EnsureFileDir(path); err != nil {
		return errors.Wrapf(err, "cannot create directory for ledger %s", path)
	}
	content := strings.Join(versions, "\n")
	if err := os.WriteFile(path, []byte(content), fsutil.FileModeDefault); err != nil {
		return errors.Wrapf(err, "cannot write version ledger %s", path)
	}
	return nil
}
