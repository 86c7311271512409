package storage

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when reading a missing archive.
var ErrNotFound = errors.New("archive not found")

// Backend is the interface that wraps the archive file operations.
// Archives are grouped by container, e.g. one container per user.
type Backend interface {
	// Name returns the name of the backend implementation.
	Name() string

	// Reader returns a ReadCloser of the archive.
	Reader(ctx context.Context, container, object string) (io.ReadCloser, error)
	// Writer returns a WriteCloser of the archive. The archive is visible once closed.
	Writer(ctx context.Context, container, object string) (io.WriteCloser, error)

	// FilenamesFrom lists the archive names of the given container.
	FilenamesFrom(ctx context.Context, container string) ([]string, error)

	// Remove deletes the given archive. Removing a missing archive is not an error.
	Remove(ctx context.Context, container, object string) error
	// Cleanup cleans useless artifacts in storage.
	Cleanup(ctx context.Context) error
}
