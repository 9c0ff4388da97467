// Package storage holds the kiosk's storage directory: a flat namespace of uploaded files
// keyed by their (normalised) filename. Backends are a local folder or an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when no file with the requested name exists.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName is returned for names that cannot be used as a flat storage key.
	ErrInvalidName = errors.New("invalid file name")
)

// PutObjectOptions define optional parameters for storing files.
// Size should be the exact number of bytes if known, -1 otherwise.
type PutObjectOptions struct {
	Size        int64
	ContentType string
}

// ObjectInfo contains basic information about a stored file.
type ObjectInfo struct {
	Name         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Object is a readable, seekable stored file. Seeking lets the HTTP layer serve range requests.
type Object interface {
	io.ReadSeekCloser
}

// Storage is the storage directory abstraction shared by every backend.
type Storage interface {
	// Put stores r under name, replacing any existing file with that name.
	Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// List returns the files currently stored, sorted by name.
	List(ctx context.Context) ([]ObjectInfo, error)
	// Stat returns file info or ErrNotFound.
	Stat(ctx context.Context, name string) (ObjectInfo, error)
	// Get opens a file for reading alongside its info.
	Get(ctx context.Context, name string) (Object, ObjectInfo, error)
	// LocalPath returns a filesystem path holding the file's content for external tools.
	// The returned cleanup func must always be called.
	LocalPath(ctx context.Context, name string) (string, func(), error)
	// Ping reports whether the backend is reachable and usable.
	Ping(ctx context.Context) error
}
