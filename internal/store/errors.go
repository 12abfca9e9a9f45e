package store

import "errors"

var (
	// ErrIntegrity is returned when a record fails the source-attribution
	// invariant: a populated field with no field_sources entry, or a source
	// URL outside the official-domain allowlist. The write is rejected.
	ErrIntegrity = errors.New("source attribution integrity violation")

	// ErrCorruptRecord is returned when a stored file cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt stored record")
)
