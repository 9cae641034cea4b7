package fsutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/parcel-pkgs/parcel/pkg/errors"
)

// Copy copies the contents of srcFile to dstFile. Parent directories of
// dstFile must already exist.
func Copy(srcFile, dstFile string) error {
	src, err := os.Open(srcFile)
	if err != nil {
		return errors.Wrapf(err, "failed to open source file %s", srcFile)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileModeDefault)
	if err != nil {
		return errors.Wrapf(err, "failed to create destination file %s", dstFile)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(err, "failed to copy %s to %s", srcFile, dstFile)
	}
	return nil
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory followed by a rename, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	if err := EnsureFileDir(path); err != nil {
		return errors.Wrapf(err, "failed to create parent directory for %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "parcel-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to write %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to sync %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to close %s", tmpPath)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to rename %s to %s", tmpPath, path)
	}
	return os.Chmod(path, FileModeDefault)
}
