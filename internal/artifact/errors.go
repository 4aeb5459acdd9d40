// Package artifact stores downloadable copies of generated XML files on the
// local file system or in an S3-compatible bucket.
package artifact

import "errors"

// Common artifact errors
var (
	// ErrInvalidKey is returned for empty keys and keys escaping the store root.
	ErrInvalidKey = errors.New("invalid artifact key")

	// ErrMissingConfig is returned when a store is created without the settings it needs.
	ErrMissingConfig = errors.New("artifact store configuration incomplete")
)
