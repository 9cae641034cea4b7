package repo

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/parcel-pkgs/parcel/internal/logger"
	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
	"github.com/parcel-pkgs/parcel/pkg/hash"
	"github.com/parcel-pkgs/parcel/pkg/metadata"
	"github.com/parcel-pkgs/parcel/pkg/transaction"
)

// Add imports a local package directory into the repository. The directory
// must contain a metadata.json whose manifest lists every file with its
// SHA-256 digest. All files are verified against the manifest before a
// single byte is written; the copy itself runs inside a transaction, so a
// failure mid-copy restores the repository exactly. Adding an (id, version)
// that is already present replaces it.
func (m *Manager) Add(packageDir string) error {
	meta, err := metadata.Load(filepath.Join(packageDir, metadata.FileName))
	if err != nil {
		return err
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	rels := sortedManifestPaths(meta)
	for _, rel := range rels {
		if err := verifyManifestFile(packageDir, rel, meta.AllFiles[rel]); err != nil {
			return err
		}
	}

	destDir := m.versionDir(meta.ID, meta.Version)
	err = transaction.Run(func(tx *transaction.Tx) error {
		if err := clearVersionDir(tx, destDir); err != nil {
			return err
		}
		for _, rel := range rels {
			data, err := os.ReadFile(filepath.Join(packageDir, filepath.FromSlash(rel)))
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", rel)
			}
			if err := tx.SafeCreate(filepath.Join(destDir, filepath.FromSlash(rel)), data); err != nil {
				return err
			}
		}
		manifest, err := os.ReadFile(filepath.Join(packageDir, metadata.FileName))
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", metadata.FileName)
		}
		return tx.SafeCreate(filepath.Join(destDir, metadata.FileName), manifest)
	})
	if err != nil {
		return err
	}

	if err := m.finalize(meta); err != nil {
		return err
	}
	logger.Successf("Added %s %s (%d files)", meta.ID, meta.Version, len(rels))
	return nil
}

// clearVersionDir journals the removal of every file already present under
// dir. Republishing an (id, version) pair overwrites in place; there is no
// append-only guarantee at this layer, and the journal still restores the
// previous publication if the rewrite fails.
func clearVersionDir(tx *transaction.Tx, dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	files, err := fsutil.ListFiles(dir, true)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := tx.SafeRemove(f); err != nil {
			return err
		}
	}
	return nil
}

// sortedManifestPaths returns the manifest's file paths in a stable order,
// excluding the manifest file itself.
func sortedManifestPaths(meta *metadata.PackageMetadata) []string {
	rels := make([]string, 0, len(meta.AllFiles))
	for rel := range meta.AllFiles {
		if rel == metadata.FileName {
			continue
		}
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	return rels
}

func verifyManifestFile(packageDir, rel, expected string) error {
	path := filepath.Join(packageDir, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(errors.ErrNotFound, "manifest file %s", rel)
	}
	if info.IsDir() {
		return errors.Wrapf(errors.ErrIsDirectory, "manifest file %s", rel)
	}

	actual, err := hash.FileHash(path)
	if err != nil {
		return err
	}
	if actual != hash.Normalize(expected) {
		return errors.Wrapf(errors.ErrHashMismatch, "file %s: expected %s, got %s", rel, expected, actual)
	}
	return nil
}
