package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ObjectStore holds dataset inputs and encoded exports.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// Opener reads dataset files out of an ObjectStore, treating each path as
// an object key.
type Opener struct {
	Store ObjectStore
}

func (o Opener) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if o.Store == nil {
		return nil, errors.New("object store is required")
	}
	return o.Store.Get(ctx, key)
}
