// Package errors defines the sentinel errors shared across parcel and small
// helpers for wrapping them with context. Callers match with errors.Is.
package errors

import "fmt"

// Common error types, grouped by domain.
var (
	// Lookup errors.
	ErrNotFound        = fmt.Errorf("resource not found")
	ErrPackageNotFound = fmt.Errorf("package not found")
	ErrSourceNotFound  = fmt.Errorf("source not found")
	ErrVersionNotFound = fmt.Errorf("version not found")

	// Filesystem errors.
	ErrAlreadyExists = fmt.Errorf("path already exists")
	ErrIsDirectory   = fmt.Errorf("path is a directory")
	ErrInvalidPath   = fmt.Errorf("invalid path")

	// Content verification errors.
	ErrHashMismatch = fmt.Errorf("file hash mismatch")

	// Manifest errors.
	ErrInvalidManifest = fmt.Errorf("invalid package manifest")
	ErrEmptyManifest   = fmt.Errorf("package manifest lists no files")

	// Config errors.
	ErrConfigInvalid    = fmt.Errorf("invalid configuration")
	ErrConfigParse      = fmt.Errorf("failed to parse config")
	ErrConfigEncode     = fmt.Errorf("failed to encode config")
	ErrSourceExists     = fmt.Errorf("source already exists")
	ErrSourceURLEmpty   = fmt.Errorf("source URL cannot be empty")
	ErrSourceURLInvalid = fmt.Errorf("source URL is invalid")
	ErrHTTPSRequired    = fmt.Errorf("source requires HTTPS")
	ErrSourceDisabled   = fmt.Errorf("source is disabled")

	// Network errors.
	ErrNetwork        = fmt.Errorf("network request failed")
	ErrDownloadFailed = fmt.Errorf("download failed")

	// Transaction errors.
	ErrTransactionClosed = fmt.Errorf("transaction already committed or rolled back")
	ErrRollbackFailed    = fmt.Errorf("transaction rollback failed")
	ErrRepoInconsistent  = fmt.Errorf("repository left inconsistent, manual repair required")

	// Install spec errors.
	ErrInstallSpecInvalid = fmt.Errorf("install spec must be package, source:package or source:package:version")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
