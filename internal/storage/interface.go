package storage

import (
	"context"
	"io"
)

// Storage archives uploaded mark sheets so queued imports can replay them.
type Storage interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, data io.Reader) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Archive is a Storage that can also mint keys for new sheets.
type Archive interface {
	Storage
	SheetKey() string
}
