// Package storage defines the Storage interface implemented by every avatar
// storage backend, and the helpers that turn an uploaded image into a
// content-addressed object.
//
// Backends register themselves with the factory from an init() function in
// their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The server imports each backend with a blank import to trigger init().
package storage

import (
	"context"
	"io"
)

// Storage is implemented by every storage backend.
type Storage interface {
	// Upload stores size bytes from reader at path with the given content type.
	Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*UploadResult, error)

	// Delete removes the object at path. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	// PublicURL returns the URL clients use to fetch the object at path.
	PublicURL(path string) string
}

// UploadResult contains information about an uploaded object
type UploadResult struct {
	// Path is the storage path where the object was stored
	Path string

	// Size is the object size in bytes
	Size int64

	// Checksum is the SHA256 hash of the object contents
	Checksum string

	// URL is the public URL of the object
	URL string
}
