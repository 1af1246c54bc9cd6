package storage

import "io"

// An Entry is a single element of a backend listing.
type Entry struct {
	Key  string
	Size int64
}

// Backend is the interface that wraps the basic object operations of the
// single logical bucket owned by the gateway.
type Backend interface {
	// Name returns the name of the backend implementation.
	Name() string

	// Reader returns a ReadCloser of the object payload.
	Reader(key string) (io.ReadCloser, error)
	// Writer returns a WriteCloser of the object payload.
	Writer(key string) (io.WriteCloser, error)

	// List returns one page of the bucket content. An empty cursor starts a
	// new listing; the returned cursor resumes it and is empty once the
	// listing is exhausted.
	List(cursor string, limit int) (entries []Entry, next string, err error)

	// Remove deletes the given object.
	Remove(key string) error
	// Cleanup cleans useless artifacts in storage.
	Cleanup() error
}
