// Package metadata models the package manifest (metadata.json): identity
// fields plus the all_files map binding every relative path in the package to
// its expected SHA-256 digest.
package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
)

// FileName is the manifest file name inside a package directory.
const FileName = "metadata.json"

// PackageMetadata is the manifest of one published (id, version) pair.
// Republishing the same pair overwrites the previous publication in place.
type PackageMetadata struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Icon        string            `json:"icon"`
	Author      string            `json:"author"`
	Type        string            `json:"type"`
	Category    string            `json:"category"`
	Permissions []string          `json:"permissions"`
	Entry       string            `json:"entry"`
	AllFiles    map[string]string `json:"all_files"`
}

// GetVersion returns the parsed semantic version, or nil when the version
// string is not semver. Ledger order stays authoritative either way; this is
// only used for advisory ordering warnings.
func (m *PackageMetadata) GetVersion() *version.Version {
	v, err := version.NewVersion(m.Version)
	if err != nil {
		return nil
	}
	return v
}

// FileHash returns the expected digest for path, if listed.
func (m *PackageMetadata) FileHash(path string) (string, bool) {
	h, ok := m.AllFiles[path]
	return h, ok
}

// Validate checks the manifest invariants required before a package can enter
// a repository: identity fields present, a non-empty file map, and every
// manifest path relative, slash-separated and confined to the package root.
func (m *PackageMetadata) Validate() error {
	if m.ID == "" {
		return errors.Wrap(errors.ErrInvalidManifest, "id is empty")
	}
	if m.Version == "" {
		return errors.Wrap(errors.ErrInvalidManifest, "version is empty")
	}
	if len(m.AllFiles) == 0 {
		return errors.ErrEmptyManifest
	}
	for path := range m.AllFiles {
		if err := validateManifestPath(path); err != nil {
			return err
		}
	}
	return nil
}

func validateManifestPath(path string) error {
	if path == "" {
		return errors.Wrap(errors.ErrInvalidManifest, "manifest contains an empty path")
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return errors.Wrapf(errors.ErrInvalidManifest, "manifest path %q must be relative with / separators", path)
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return errors.Wrapf(errors.ErrInvalidManifest, "manifest path %q escapes the package root", path)
		}
	}
	return nil
}

// Load reads and parses a manifest file.
func Load(path string) (*PackageMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "manifest %s", path)
		}
		return nil, errors.Wrapf(err, "cannot read manifest %s", path)
	}
	return Parse(data)
}

// Parse parses manifest bytes.
func Parse(data []byte) (*PackageMetadata, error) {
	var m PackageMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidManifest, err.Error())
	}
	return &m, nil
}

// ToJSON serializes the manifest with stable indentation.
func (m *PackageMetadata) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal manifest")
	}
	return data, nil
}

// Save writes the manifest to path atomically.
func (m *PackageMetadata) Save(path string) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data)
}

// relToSlash converts an absolute file path under root to the manifest's
// slash-separated relative form.
func relToSlash(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", errors.Wrapf(err, "cannot relativize %s", path)
	}
	return filepath.ToSlash(rel), nil
}
