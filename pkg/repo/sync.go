package repo

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/parcel-pkgs/parcel/internal/logger"
	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
	"github.com/parcel-pkgs/parcel/pkg/hash"
	"github.com/parcel-pkgs/parcel/pkg/index"
	"github.com/parcel-pkgs/parcel/pkg/ledger"
	"github.com/parcel-pkgs/parcel/pkg/metadata"
)

// RefreshSources fetches every enabled source's catalog and replaces the
// index's merged source view. All-or-nothing: one failing source aborts the
// refresh and the previous view stays.
func (m *Manager) RefreshSources(ctx context.Context) error {
	merged, err := m.merger.Merge(ctx, m.cfg.Sources)
	if err != nil {
		return err
	}

	idx, err := m.loadIndex()
	if err != nil {
		return err
	}
	idx.SetSourceCatalog(merged)
	if err := idx.Save(m.IndexPath()); err != nil {
		return err
	}

	logger.Successf("Refreshed %d catalog entries from %d sources", len(merged), len(m.cfg.EnabledSources()))
	return nil
}

// Sync updates the repository from one source. Incremental mode only
// replaces that source's entries in the catalog view. Mirror mode deletes
// the whole packages tree and re-downloads every package the source lists;
// a failure mid-mirror leaves the tree truncated, which is the accepted
// cost of a full replace.
func (m *Manager) Sync(ctx context.Context, sourceID string, mirror bool) error {
	src := m.cfg.GetSource(sourceID)
	if src == nil {
		return errors.Wrapf(errors.ErrSourceNotFound, "source %q", sourceID)
	}
	if !src.Enabled {
		return errors.Wrapf(errors.ErrSourceDisabled, "source %q", sourceID)
	}

	entries, err := m.merger.FetchSource(ctx, *src)
	if err != nil {
		return err
	}

	idx, err := m.loadIndex()
	if err != nil {
		return err
	}

	if mirror {
		if err := m.mirror(ctx, src.URL, entries, idx); err != nil {
			return err
		}
	}
	idx.ReplaceSourceEntries(src.URL, entries)
	if err := idx.Save(m.IndexPath()); err != nil {
		return err
	}

	logger.Successf("Synced source %s (%d packages, mirror=%v)", sourceID, len(entries), mirror)
	return nil
}

func (m *Manager) mirror(ctx context.Context, srcURL string, entries []index.PackageInfo, idx *index.RepositoryIndex) error {
	if err := fsutil.RemoveDir(m.PackagesDir()); err != nil {
		return err
	}
	if err := fsutil.EnsureDir(m.PackagesDir()); err != nil {
		return err
	}
	idx.Packages = idx.Packages[:0]

	for _, entry := range entries {
		meta, err := m.mirrorPackage(ctx, srcURL, entry)
		if err != nil {
			return errors.Wrapf(err, "mirror of package %q", entry.ID)
		}
		idx.UpsertPackage(m.localEntry(meta, meta.Version))
	}
	return nil
}

func (m *Manager) mirrorPackage(ctx context.Context, srcURL string, entry index.PackageInfo) (*metadata.PackageMetadata, error) {
	metaBytes, err := m.fetcher.FetchBytes(ctx, index.JoinURL(entry.Location, metadata.FileName))
	if err != nil {
		return nil, err
	}
	meta, err := metadata.Parse(metaBytes)
	if err != nil {
		return nil, err
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	destDir := m.versionDir(meta.ID, meta.Version)
	for _, rel := range sortedManifestPaths(meta) {
		fileURL := index.JoinURL(srcURL, PackagesDirName, meta.ID, meta.Version, rel)
		data, err := m.fetcher.FetchBytes(ctx, fileURL)
		if err != nil {
			return nil, err
		}
		want, _ := meta.FileHash(rel)
		if !hash.VerifyBytes(data, want) {
			return nil, errors.Wrapf(errors.ErrHashMismatch,
				"file %s: expected %s, got %s", rel, want, hash.Sum(data))
		}
		dest := filepath.Join(destDir, filepath.FromSlash(rel))
		if err := fsutil.EnsureFileDir(dest); err != nil {
			return nil, err
		}
		if err := os.WriteFile(dest, data, fsutil.FileModeDefault); err != nil {
			return nil, err
		}
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(destDir, metadata.FileName), metaBytes); err != nil {
		return nil, err
	}

	lp := m.ledgerPath(meta.ID)
	if err := ledger.Delete(lp); err != nil {
		return nil, err
	}
	if err := ledger.Append(lp, meta.Version); err != nil {
		return nil, err
	}
	return meta, nil
}

// Clean empties the download cache, trims every installed package to its
// two greatest version directories by name order, and clears the merged
// catalog view so the next refresh is authoritative.
func (m *Manager) Clean() error {
	if err := fsutil.RemoveDir(m.cfg.CacheDir); err != nil {
		return err
	}

	ids, err := fsutil.ListSubdirs(m.PackagesDir())
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := m.trimVersions(id); err != nil {
			return err
		}
	}

	idx, err := m.loadIndex()
	if err != nil {
		return err
	}
	idx.SetSourceCatalog(nil)
	if err := idx.Save(m.IndexPath()); err != nil {
		return err
	}

	logger.Successf("Cleaned repository")
	return nil
}

// trimVersions keeps the two lexicographically greatest version directories
// of a package and deletes the rest, dropping them from the ledger too.
func (m *Manager) trimVersions(id string) error {
	versions, err := fsutil.ListSubdirs(m.packageDir(id))
	if err != nil {
		return err
	}
	if len(versions) <= 2 {
		return nil
	}
	sort.Strings(versions)

	for _, ver := range versions[:len(versions)-2] {
		if err := os.RemoveAll(m.versionDir(id, ver)); err != nil {
			return errors.Wrapf(err, "failed to delete %s %s", id, ver)
		}
		if err := ledger.Remove(m.ledgerPath(id), ver); err != nil {
			return err
		}
		logger.Debugf("pruned %s %s", id, ver)
	}
	return nil
}
