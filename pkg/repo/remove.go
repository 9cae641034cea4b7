package repo

import (
	"context"
	"os"

	"github.com/parcel-pkgs/parcel/internal/logger"
	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
	"github.com/parcel-pkgs/parcel/pkg/ledger"
	"github.com/parcel-pkgs/parcel/pkg/transaction"
)

// Remove deletes an installed package. With a version, only that version
// directory goes and the package's displayed latest is recomputed from the
// remaining ledger; without one, the whole package, its ledger and its
// catalog entry are removed. File deletion runs inside a transaction.
func (m *Manager) Remove(id, ver string) error {
	pkgDir := m.packageDir(id)
	if _, err := os.Stat(pkgDir); err != nil {
		return errors.Wrapf(errors.ErrPackageNotFound, "package %q", id)
	}

	if ver == "" {
		return m.removePackage(id)
	}
	return m.removeVersion(id, ver)
}

func (m *Manager) removeVersion(id, ver string) error {
	verDir := m.versionDir(id, ver)
	if _, err := os.Stat(verDir); err != nil {
		return errors.Wrapf(errors.ErrVersionNotFound, "package %q version %q", id, ver)
	}

	if err := removeTree(verDir); err != nil {
		return err
	}
	if err := os.RemoveAll(verDir); err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}

	lp := m.ledgerPath(id)
	if err := ledger.Remove(lp, ver); err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}
	latest, err := ledger.Latest(lp)
	if err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}

	idx, err := m.loadIndex()
	if err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}
	if latest == "" {
		idx.RemovePackage(id)
		if err := os.RemoveAll(m.packageDir(id)); err != nil {
			return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
		}
	} else if entry := idx.FindPackage(id); entry != nil {
		entry.LatestVersion = latest
		entry.Location = "./" + PackagesDirName + "/" + id + "/" + latest
	}
	if err := idx.Save(m.IndexPath()); err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}

	logger.Successf("Removed %s %s", id, ver)
	return nil
}

func (m *Manager) removePackage(id string) error {
	if err := removeTree(m.packageDir(id)); err != nil {
		return err
	}
	if err := os.RemoveAll(m.packageDir(id)); err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}

	idx, err := m.loadIndex()
	if err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}
	idx.RemovePackage(id)
	if err := idx.Save(m.IndexPath()); err != nil {
		return errors.Wrap(errors.ErrRepoInconsistent, err.Error())
	}

	logger.Successf("Removed %s", id)
	return nil
}

// removeTree deletes every file under dir through a transaction, so a
// failure part way restores all of them. The emptied directories themselves
// are left for the caller to drop; directory removal needs no undo journal.
func removeTree(dir string) error {
	files, err := fsutil.ListFiles(dir, true)
	if err != nil {
		return err
	}
	return transaction.Run(func(tx *transaction.Tx) error {
		for _, f := range files {
			if err := tx.SafeRemove(f); err != nil {
				return err
			}
		}
		return nil
	})
}

// Upgrade reinstalls a package when a source advertises a latest version
// different from the installed ledger's latest. Matching versions are a
// no-op.
func (m *Manager) Upgrade(ctx context.Context, id string) error {
	installed, err := ledger.Latest(m.ledgerPath(id))
	if err != nil {
		return err
	}
	if installed == "" {
		return errors.Wrapf(errors.ErrPackageNotFound, "package %q is not installed", id)
	}

	idx, err := m.loadIndex()
	if err != nil {
		return err
	}
	entry := idx.FindSource(id)
	if entry == nil {
		return errors.Wrapf(errors.ErrPackageNotFound, "package %q is not available from any source", id)
	}

	if entry.LatestVersion == installed {
		logger.Infof("%s is already at %s", id, installed)
		return nil
	}

	src, err := m.resolveSource("", entry.Location)
	if err != nil {
		return err
	}
	logger.Infof("Upgrading %s from %s to %s", id, installed, entry.LatestVersion)
	return m.install(ctx, src, entry, entry.LatestVersion)
}
