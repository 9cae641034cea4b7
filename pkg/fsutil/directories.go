// Package fsutil provides the filesystem helpers shared by the repository
// engine: directory creation, removal, copying and manifest-style walking.
package fsutil

import (
	"os"
	"path/filepath"

	"github.com/parcel-pkgs/parcel/pkg/errors"
)

// EnsureDir creates a directory and all necessary parent directories with
// default permissions if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of a file path if it doesn't exist.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// RemoveDir removes a directory tree. Removing a path that does not exist is
// not an error; removing a path that is not a directory is.
func RemoveDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", path)
	}
	if !info.IsDir() {
		return errors.Wrapf(errors.ErrInvalidPath, "%s is not a directory", path)
	}
	return os.RemoveAll(path)
}

// ListFiles returns the absolute paths of the regular files under dir. With
// recursive set it descends into subdirectories, otherwise only the top level
// is listed.
func ListFiles(dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errors.ErrInvalidPath, "%s is not a directory", dir)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve %s", dir)
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot walk %s", absDir)
		}
		return files, nil
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", absDir)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(absDir, entry.Name()))
		}
	}
	return files, nil
}

// ListSubdirs returns the names of the immediate subdirectories of dir,
// in directory order.
func ListSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", dir)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
