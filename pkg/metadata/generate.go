package metadata

import (
	"path/filepath"
	"sort"

	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
	"github.com/parcel-pkgs/parcel/pkg/hash"
)

// GenerateManifest scans packageDir recursively, hashes every regular file
// and fills base.AllFiles with the resulting path→digest map. The manifest
// file itself is excluded. Identity fields of base are preserved.
func GenerateManifest(packageDir string, base *PackageMetadata) (*PackageMetadata, error) {
	files, err := fsutil.ListFiles(packageDir, true)
	if err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(packageDir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve %s", packageDir)
	}

	out := *base
	out.AllFiles = make(map[string]string, len(files))

	// Stable iteration keeps log output and failures reproducible.
	sort.Strings(files)

	for _, file := range files {
		rel, err := relToSlash(absDir, file)
		if err != nil {
			return nil, err
		}
		if rel == FileName {
			continue
		}
		digest, err := hash.FileHash(file)
		if err != nil {
			return nil, err
		}
		out.AllFiles[rel] = digest
	}

	if len(out.AllFiles) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyManifest, "no files found under %s", packageDir)
	}
	return &out, nil
}
