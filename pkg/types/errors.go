package types

import "errors"

// Data-level sentinel errors, matchable with errors.Is across layers.
var (
	// ErrEmptyInput is returned when the normalized event stream has no
	// events. An empty dataset is almost always a caller mistake, so it is
	// surfaced instead of silently producing a report of zeros.
	ErrEmptyInput = errors.New("empty event stream")

	// ErrMalformedRecord is returned when a raw row is missing a required
	// field or its timestamp cannot be parsed.
	ErrMalformedRecord = errors.New("malformed event record")
)

// ULID-related errors
var (
	// ErrInvalidULIDLength is returned when a ULID string or byte slice has incorrect length
	ErrInvalidULIDLength = errors.New("invalid ULID length")

	// ErrInvalidULIDCharacter is returned when a ULID string contains invalid characters
	ErrInvalidULIDCharacter = errors.New("invalid ULID character")
)
