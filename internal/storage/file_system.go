package storage

import (
	"context"
	"io"
	fspkg "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// partialSuffix marks archives still being written.
const partialSuffix = ".partial"

// partialTTL is the age after which Cleanup removes an abandoned partial archive.
const partialTTL = time.Hour

type fs struct {
	workspace string
}

// NewFileSystem returns a new File System backend.
func NewFileSystem(workspace string) Backend {
	return &fs{
		workspace: filepath.Clean(workspace),
	}
}

func (b *fs) Name() string {
	return "file_system"
}

func (b *fs) Reader(ctx context.Context, container, object string) (io.ReadCloser, error) {
	path, err := b.path(container, object)
	if err != nil {
		return nil, err
	}

	rc, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, object)
		}
		return nil, errors.Wrap(err, "could not open file")
	}
	return rc, nil
}

func (b *fs) Writer(ctx context.Context, container, object string) (io.WriteCloser, error) {
	path, err := b.path(container, object)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "could not create container")
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*"+partialSuffix)
	if err != nil {
		return nil, errors.Wrap(err, "could not create file")
	}
	return &atomicFile{File: f, target: path}, nil
}

func (b *fs) FilenamesFrom(ctx context.Context, container string) ([]string, error) {
	path, err := b.path(container, "")
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "could not list container")
	}

	filenames := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), partialSuffix) {
			continue
		}

		filenames = append(filenames, entry.Name())
	}

	sort.Strings(filenames)
	return filenames, nil
}

func (b *fs) Remove(ctx context.Context, container, object string) error {
	path, err := b.path(container, object)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "could not delete file")
	}
	return nil
}

func (b *fs) Cleanup(ctx context.Context) error {
	// Find empty directories and abandoned partial writes.
	//
	stats := map[string]int{}
	deadline := time.Now().Add(-partialTTL)
	err := filepath.Walk(b.workspace, func(path string, info fspkg.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}

		if info.IsDir() {
			if path == b.workspace {
				return nil
			}
			stats[path] += 0
			return nil
		}

		if strings.HasSuffix(path, partialSuffix) && info.ModTime().Before(deadline) {
			return os.Remove(path)
		}

		for dir := filepath.Dir(path); dir != b.workspace && strings.HasPrefix(dir, b.workspace); dir = filepath.Dir(dir) {
			stats[dir]++
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "cleanup")
	}

	// Remove empty directories.
	//
	for dirname, count := range stats {
		if count == 0 {
			os.RemoveAll(dirname)
		}
	}
	return nil
}

// path resolves an archive location, refusing names escaping the workspace.
func (b *fs) path(container, object string) (string, error) {
	if container == "" || strings.ContainsAny(container, `/\`) || container == "." || container == ".." {
		return "", errors.Errorf("invalid container name %q", container)
	}
	if object != "" && (strings.ContainsAny(object, `/\`) || object == "." || object == "..") {
		return "", errors.Errorf("invalid archive name %q", object)
	}
	return filepath.Join(b.workspace, container, object), nil
}

//
//-----
//

// atomicFile renames itself to its target once closed.
type atomicFile struct {
	*os.File
	target string
	closed bool
}

func (f *atomicFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if err := f.File.Sync(); err != nil {
		f.File.Close()
		os.Remove(f.File.Name())
		return errors.Wrap(err, "could not write file")
	}
	if err := f.File.Close(); err != nil {
		os.Remove(f.File.Name())
		return errors.Wrap(err, "could not write file")
	}
	return errors.Wrap(os.Rename(f.File.Name(), f.target), "could not write file")
}
