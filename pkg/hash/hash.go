// Package hash implements the content-verification primitives of the
// repository engine: streaming SHA-256 digests over files and case-insensitive
// digest comparison.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/parcel-pkgs/parcel/pkg/errors"
)

// FileHash returns the lowercase hex SHA-256 digest of the file at path.
// The file is streamed through the hasher, so content of any size hashes in
// constant memory.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(errors.ErrNotFound, "file %s", path)
		}
		return "", errors.Wrapf(err, "cannot open %s for hashing", path)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hashing %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sum returns the lowercase hex SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// VerifyFile reports whether the file at path hashes to expected. The
// comparison is case-insensitive in the expected digest.
func VerifyFile(path, expected string) (bool, error) {
	actual, err := FileHash(path)
	if err != nil {
		return false, err
	}
	return actual == Normalize(expected), nil
}

// VerifyBytes reports whether data hashes to expected, case-insensitively.
func VerifyBytes(data []byte, expected string) bool {
	return Sum(data) == Normalize(expected)
}

// Normalize lowercases and trims a hex digest for comparison.
func Normalize(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}
