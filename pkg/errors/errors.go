package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileRename  = fmt.Errorf("failed to rename temporary config file")
	ErrConfigFileExists  = fmt.Errorf("configuration file already exists")

	// Catalog errors.
	ErrCatalogNotFound    = fmt.Errorf("catalog not found")
	ErrCatalogParse       = fmt.Errorf("failed to parse catalog")
	ErrCatalogInvalid     = fmt.Errorf("invalid catalog")
	ErrCollectionNotFound = fmt.Errorf("collection not found")
	ErrSessionNotFound    = fmt.Errorf("session not found")

	// Transfer errors.
	ErrDownloadFailed     = fmt.Errorf("download failed")
	ErrUnavailable        = fmt.Errorf("remote file unavailable")
	ErrUnsupportedScheme  = fmt.Errorf("unsupported url scheme")
	ErrRangeNotSupported  = fmt.Errorf("server does not support range requests")
	ErrRetriesExhausted   = fmt.Errorf("retries exhausted")
	ErrIncompleteTransfer = fmt.Errorf("incomplete transfer")

	// Extraction errors.
	ErrExtractFailed     = fmt.Errorf("failed to extract archive")
	ErrUnsafeArchivePath = fmt.Errorf("archive entry escapes target directory")

	// Filesystem errors.
	ErrInvalidPath = fmt.Errorf("invalid path")
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
