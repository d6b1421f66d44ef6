// Package archive stores run artifacts (reports, exports, manifests) on a
// local directory or an S3-compatible bucket.
package archive

import "context"

// Storage is a flat key/value blob store addressed by slash-separated paths.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path. Deleting a missing path is
	// not an error.
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}
