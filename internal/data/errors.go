package data

import "errors"

var (
	// ErrNotFound is returned when a source, item or state record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedOperation is returned when a provider is asked for a
	// capability its variant does not declare. Callers are expected to gate on
	// the capability model before dispatch, so seeing this error indicates a
	// source/provider mismatch bug rather than a runtime condition.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrMetadataTimeout is returned when a swarm transfer's file manifest is
	// not resolved within the caller's deadline.
	ErrMetadataTimeout = errors.New("swarm metadata timeout")
	// ErrConverterUnavailable is returned when the external conversion tool is
	// not installed or not reachable.
	ErrConverterUnavailable = errors.New("converter unavailable")
	// ErrConversionFailed is returned when the external converter rejects a
	// manifest.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrInvalidSource is returned when a source config misses required fields
	// or a request parameter cannot be interpreted.
	ErrInvalidSource = errors.New("invalid source configuration")
	// ErrConflict is returned when an acquisition for the same item is already
	// tracked.
	ErrConflict = errors.New("acquisition already exists")
	// ErrExhausted is returned when follow mode stops after too many
	// consecutive failures. State gathered so far is preserved.
	ErrExhausted = errors.New("consecutive failure bound reached")
)
