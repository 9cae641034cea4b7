// Package repo implements the transactional repository engine. A Manager
// owns one repository root and orchestrates the package lifecycle: add,
// install, remove, upgrade, sync and clean. Every mutating operation writes
// package files exclusively through a filesystem transaction, so a failure
// mid-operation rolls the tree back to its pre-operation state. Ledger and
// index updates happen only after the transaction commits.
package repo

import (
	"path/filepath"
	"sort"

	version "github.com/hashicorp/go-version"

	"github.com/parcel-pkgs/parcel/internal/logger"
	"github.com/parcel-pkgs/parcel/pkg/config"
	"github.com/parcel-pkgs/parcel/pkg/download"
	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
	"github.com/parcel-pkgs/parcel/pkg/index"
	"github.com/parcel-pkgs/parcel/pkg/ledger"
	"github.com/parcel-pkgs/parcel/pkg/metadata"
)

// PackagesDirName is the directory under the repository root that holds the
// installed package trees.
const PackagesDirName = "packages"

// Manager orchestrates all repository operations for a single root. It
// assumes a single writer; concurrent managers on the same root race on
// index.json and the version ledgers.
type Manager struct {
	root    string
	cfg     *config.Config
	fetcher download.Fetcher
	merger  *index.Merger
}

// Init creates a new repository at root: the packages directory, a default
// config and an empty index. Fails if root already holds a repository.
func Init(root string, fetcher download.Fetcher) (*Manager, error) {
	m := newManager(root, fetcher)
	if _, err := index.Load(m.IndexPath()); err == nil {
		return nil, errors.Wrapf(errors.ErrAlreadyExists, "repository at %s", root)
	}

	if err := fsutil.EnsureDir(m.PackagesDir()); err != nil {
		return nil, errors.Wrapf(err, "failed to create repository at %s", root)
	}
	m.cfg = config.Default()
	if err := m.cfg.Save(m.ConfigPath()); err != nil {
		return nil, err
	}
	if err := index.New().Save(m.IndexPath()); err != nil {
		return nil, err
	}

	logger.Successf("Initialized repository at %s", root)
	return m, nil
}

// Open loads an existing repository at root.
func Open(root string, fetcher download.Fetcher) (*Manager, error) {
	m := newManager(root, fetcher)
	if _, err := index.Load(m.IndexPath()); err != nil {
		return nil, errors.Wrapf(err, "no repository at %s", root)
	}

	cfg, err := config.Load(m.ConfigPath())
	if err != nil {
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

func newManager(root string, fetcher download.Fetcher) *Manager {
	return &Manager{
		root:    root,
		fetcher: fetcher,
		merger:  index.NewMerger(fetcher),
	}
}

// Root returns the repository root directory.
func (m *Manager) Root() string { return m.root }

// Config returns the loaded repository configuration.
func (m *Manager) Config() *config.Config { return m.cfg }

// Reload re-reads the configuration from disk, discarding in-memory edits.
func (m *Manager) Reload() error {
	cfg, err := config.Load(m.ConfigPath())
	if err != nil {
		return err
	}
	m.cfg = cfg
	return nil
}

// SaveConfig persists the current configuration to config.toml.
func (m *Manager) SaveConfig() error {
	return m.cfg.Save(m.ConfigPath())
}

// ConfigPath returns the path of the repository's config.toml.
func (m *Manager) ConfigPath() string {
	return filepath.Join(m.root, config.FileName)
}

// IndexPath returns the path of the repository's index.json.
func (m *Manager) IndexPath() string {
	return filepath.Join(m.root, index.FileName)
}

// PackagesDir returns the directory holding installed package trees.
func (m *Manager) PackagesDir() string {
	return filepath.Join(m.root, PackagesDirName)
}

func (m *Manager) packageDir(id string) string {
	return filepath.Join(m.PackagesDir(), id)
}

func (m *Manager) versionDir(id, ver string) string {
	return filepath.Join(m.packageDir(id), ver)
}

func (m *Manager) ledgerPath(id string) string {
	return filepath.Join(m.packageDir(id), ledger.FileName)
}

func (m *Manager) loadIndex() (*index.RepositoryIndex, error) {
	return index.Load(m.IndexPath())
}

// finalize runs the post-commit stages of a mutating operation: appending to
// the version ledger and upserting the installed catalog entry. The files
// are already committed, so a failure here leaves the repository
// inconsistent and is reported as such instead of being rolled back. The
// local index can be repaired with RebuildLocalIndex.
func (m *Manager) finalize(meta *metadata.PackageMetadata) error {
	lp := m.ledgerPath(meta.ID)
	prev, err := ledger.Latest(lp)
	if err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}
	if err := ledger.Append(lp, meta.Version); err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}
	if prev != "" {
		warnVersionRegression(meta.ID, prev, meta.Version)
	}

	latest, err := ledger.Latest(lp)
	if err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}

	idx, err := m.loadIndex()
	if err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}
	idx.UpsertPackage(m.localEntry(meta, latest))
	if err := idx.Save(m.IndexPath()); err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}
	return nil
}

func (m *Manager) localEntry(meta *metadata.PackageMetadata, latest string) index.PackageInfo {
	return index.PackageInfo{
		ID:            meta.ID,
		Name:          meta.Name,
		Icon:          meta.Icon,
		Author:        meta.Author,
		LatestVersion: latest,
		Description:   meta.Description,
		Location:      "./" + PackagesDirName + "/" + meta.ID + "/" + latest,
	}
}

// warnVersionRegression logs when a newly recorded version parses as a
// semantic version below the previous latest. Arrival order still decides
// the ledger's latest; this is advisory only.
func warnVersionRegression(id, prev, next string) {
	pv, errPrev := version.NewVersion(prev)
	nv, errNext := version.NewVersion(next)
	if errPrev == nil && errNext == nil && nv.LessThan(pv) {
		logger.Warnf("package %s: version %s is below current latest %s; it still becomes the latest by arrival order", id, next, prev)
	}
}

// RebuildLocalIndex rescans packages/ and rewrites the index's installed
// list from what is actually on disk. It is the repair path for a crash
// between a transaction commit and the index update.
func (m *Manager) RebuildLocalIndex() error {
	idx, err := m.loadIndex()
	if err != nil {
		return err
	}

	ids, err := fsutil.ListSubdirs(m.PackagesDir())
	if err != nil {
		return err
	}
	sort.Strings(ids)

	rebuilt := make([]index.PackageInfo, 0, len(ids))
	for _, id := range ids {
		latest, err := m.rebuildLedger(id)
		if err != nil {
			return err
		}
		if latest == "" {
			continue
		}
		meta, err := metadata.Load(filepath.Join(m.versionDir(id, latest), metadata.FileName))
		if err != nil {
			logger.Warnf("package %s version %s has no readable manifest, skipping", id, latest)
			continue
		}
		rebuilt = append(rebuilt, m.localEntry(meta, latest))
	}

	idx.Packages = rebuilt
	if err := idx.Save(m.IndexPath()); err != nil {
		return err
	}
	logger.Successf("Rebuilt local index with %d packages", len(rebuilt))
	return nil
}

// rebuildLedger returns the ledger's latest for id, reconstructing a missing
// ledger from the version directories in name order.
func (m *Manager) rebuildLedger(id string) (string, error) {
	lp := m.ledgerPath(id)
	latest, err := ledger.Latest(lp)
	if err != nil {
		return "", err
	}
	if latest != "" {
		return latest, nil
	}

	versions, err := fsutil.ListSubdirs(m.packageDir(id))
	if err != nil {
		return "", err
	}
	sort.Strings(versions)
	for _, v := range versions {
		if err := ledger.Append(lp, v); err != nil {
			return "", err
		}
	}
	return ledger.Latest(lp)
}
