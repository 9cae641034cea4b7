package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/parcel-pkgs/parcel/internal/logger"
	"github.com/parcel-pkgs/parcel/pkg/config"
	"github.com/parcel-pkgs/parcel/pkg/download"
	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
	"github.com/parcel-pkgs/parcel/pkg/hash"
	"github.com/parcel-pkgs/parcel/pkg/index"
	"github.com/parcel-pkgs/parcel/pkg/metadata"
	"github.com/parcel-pkgs/parcel/pkg/transaction"
)

// installSpec is a parsed install target: `pkg`, `source:pkg` or
// `source:pkg:version`.
type installSpec struct {
	Source  string
	Package string
	Version string
}

// parseInstallSpec splits raw on colons. A version in the three-part form
// overrides versionArg.
func parseInstallSpec(raw, versionArg string) (installSpec, error) {
	parts := strings.Split(raw, ":")
	for _, p := range parts {
		if p == "" {
			return installSpec{}, errors.Wrapf(errors.ErrInstallSpecInvalid, "%q", raw)
		}
	}

	spec := installSpec{Version: versionArg}
	switch len(parts) {
	case 1:
		spec.Package = parts[0]
	case 2:
		spec.Source, spec.Package = parts[0], parts[1]
	case 3:
		spec.Source, spec.Package, spec.Version = parts[0], parts[1], parts[2]
	default:
		return installSpec{}, errors.Wrapf(errors.ErrInstallSpecInvalid, "%q", raw)
	}
	return spec, nil
}

// Install downloads a package from a source catalog into the repository.
// Every file is fetched sequentially and verified against the manifest
// before the next download starts; a mismatch or a network failure rolls
// back everything written so far. A retried install starts from scratch, and
// installing a version that is already on disk replaces it.
func (m *Manager) Install(ctx context.Context, rawSpec, versionArg string) error {
	spec, err := parseInstallSpec(rawSpec, versionArg)
	if err != nil {
		return err
	}

	idx, err := m.loadIndex()
	if err != nil {
		return err
	}
	entry := idx.FindSource(spec.Package)
	if entry == nil {
		return errors.Wrapf(errors.ErrPackageNotFound, "package %q is not available from any source", spec.Package)
	}

	src, err := m.resolveSource(spec.Source, entry.Location)
	if err != nil {
		return err
	}

	ver := spec.Version
	if ver == "" {
		ver = entry.LatestVersion
	}
	if ver == "" {
		return errors.Wrapf(errors.ErrVersionNotFound, "package %q has no advertised version", spec.Package)
	}

	return m.install(ctx, src, entry, ver)
}

// resolveSource picks the source to download from: the named one when given
// (which must exist and be enabled), otherwise the configured source whose
// URL roots the catalog entry's location, otherwise the first enabled one.
func (m *Manager) resolveSource(name, location string) (*config.SourceConfig, error) {
	if name != "" {
		src := m.cfg.GetSource(name)
		if src == nil {
			return nil, errors.Wrapf(errors.ErrSourceNotFound, "source %q", name)
		}
		if !src.Enabled {
			return nil, errors.Wrapf(errors.ErrSourceDisabled, "source %q", name)
		}
		return src, nil
	}

	for i := range m.cfg.Sources {
		src := &m.cfg.Sources[i]
		if src.Enabled && strings.HasPrefix(location, strings.TrimSuffix(src.URL, "/")+"/") {
			return src, nil
		}
	}
	for i := range m.cfg.Sources {
		if m.cfg.Sources[i].Enabled {
			return &m.cfg.Sources[i], nil
		}
	}
	return nil, errors.Wrap(errors.ErrSourceNotFound, "no enabled sources configured")
}

func (m *Manager) install(ctx context.Context, src *config.SourceConfig, entry *index.PackageInfo, ver string) error {
	metaURL := index.JoinURL(entry.Location, metadata.FileName)
	if ver != entry.LatestVersion {
		metaURL = index.JoinURL(src.URL, PackagesDirName, entry.ID, ver, metadata.FileName)
	}

	metaBytes, err := m.fetchToCache(ctx, metaURL)
	if err != nil {
		return err
	}
	meta, err := metadata.Parse(metaBytes)
	if err != nil {
		return err
	}
	if err := meta.Validate(); err != nil {
		return err
	}
	if meta.ID != entry.ID {
		return errors.Wrapf(errors.ErrInvalidManifest, "manifest id %q does not match package %q", meta.ID, entry.ID)
	}
	if meta.Version != ver {
		return errors.Wrapf(errors.ErrInvalidManifest, "manifest version %q does not match requested %q", meta.Version, ver)
	}

	destDir := m.versionDir(entry.ID, ver)
	err = transaction.Run(func(tx *transaction.Tx) error {
		if err := clearVersionDir(tx, destDir); err != nil {
			return err
		}
		for _, rel := range sortedManifestPaths(meta) {
			fileURL := index.JoinURL(src.URL, PackagesDirName, entry.ID, ver, rel)
			data, err := m.fetcher.FetchBytes(ctx, fileURL)
			if err != nil {
				return err
			}
			want, _ := meta.FileHash(rel)
			if !hash.VerifyBytes(data, want) {
				return errors.Wrapf(errors.ErrHashMismatch,
					"file %s from source %q: expected %s, got %s", rel, src.ID, want, hash.Sum(data))
			}
			if err := tx.SafeCreate(filepath.Join(destDir, filepath.FromSlash(rel)), data); err != nil {
				return err
			}
		}
		return tx.SafeCreate(filepath.Join(destDir, metadata.FileName), metaBytes)
	})
	if err != nil {
		return err
	}

	if err := m.finalize(meta); err != nil {
		return err
	}
	logger.Successf("Installed %s %s from source %s", entry.ID, ver, src.ID)
	return nil
}

// fetchToCache downloads url and keeps a copy in the shared cache directory.
// The cached copy is informational; failing to write it does not abort the
// download.
func (m *Manager) fetchToCache(ctx context.Context, url string) ([]byte, error) {
	data, err := m.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}

	cachePath := filepath.Join(m.cfg.CacheDir, download.CacheFileName(url))
	if err := fsutil.EnsureFileDir(cachePath); err == nil {
		if err := os.WriteFile(cachePath, data, fsutil.FileModeDefault); err != nil {
			logger.Debugf("could not cache %s: %v", url, err)
		}
	}
	return data, nil
}
