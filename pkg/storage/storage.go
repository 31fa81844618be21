package storage

import (
	"context"
	"io"
)

type UploadInput struct {
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Service stores export snapshots and returns where they can be fetched.
type Service interface {
	PutObject(ctx context.Context, in UploadInput) (string, error)
}
