// Package storage persists opaque blobs (raw gateway payloads) to the local
// filesystem or S3.
package storage

import (
	"context"
	"io"
)

type PutInput struct {
	Key         string // slash separated, relative to the store root
	ContentType string
}

type PutResult struct {
	Key string
	URL string
}

type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Delete(ctx context.Context, key string) error
}
