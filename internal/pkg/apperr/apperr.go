package apperr

import "errors"

// Sentinels for the ingestion pipeline. Stages wrap these with context via
// fmt.Errorf("...: %w", ...); callers branch with errors.Is.
var (
	// ErrSourceUnavailable covers a missing/unreadable local file, a non-2xx
	// remote fetch, or an absent object-store object. Not retried internally.
	ErrSourceUnavailable = errors.New("submission source unavailable")

	// ErrTypeDisabled means the file-type policy rejected the category or
	// extension before any pipeline work.
	ErrTypeDisabled = errors.New("file type disabled or unsupported")

	// ErrFileTooLarge means the artifact exceeds the policy's size cap for
	// its category.
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrUploadFailed means the provider file upload or its status polling
	// failed, or polling exhausted its retry budget.
	ErrUploadFailed = errors.New("provider upload failed")

	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)
