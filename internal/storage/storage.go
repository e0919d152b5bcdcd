package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo contains metadata about an archived artifact.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Storage archives delivered artifacts. Archival is best effort: the engine
// serves files from the local download directory and mirrors them here.
type Storage interface {
	// Put stores an artifact under key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// Exists checks whether an artifact is already archived.
	Exists(ctx context.Context, key string) (bool, error)

	// Stat retrieves artifact metadata without downloading content.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Close releases any resources held by the backend.
	Close() error
}
