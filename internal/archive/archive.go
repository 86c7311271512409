// Package archive assembles and parses bank containers.
//
// A container is a zip archive holding:
//
//	bank.json            the manifest (always the first entry)
//	metadata.json        the access-control facts (optional)
//	audio/{padId}.audio  one audio asset per pad
//	images/{padId}.image one optional image per pad
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/pkg/errors"
)

// Entry names and asset layout.
const (
	ManifestEntry = "bank.json"
	MetadataEntry = "metadata.json"

	AudioDir = "audio/"
	ImageDir = "images/"
	AudioExt = ".audio"
	ImageExt = ".image"
)

// MaxEntrySize bounds the uncompressed size of a container entry.
const MaxEntrySize = 1 << 30

// ErrAssetNotFound is returned when reading an asset absent from the container.
var ErrAssetNotFound = errors.New("asset not found")

// FormatError is returned for malformed containers.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid bank archive: %s: %v", e.Reason, e.Err)
	}
	return "invalid bank archive: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// AudioPath returns the container path of the audio asset of a pad.
func AudioPath(padID string) string {
	return AudioDir + padID + AudioExt
}

// ImagePath returns the container path of the image asset of a pad.
func ImagePath(padID string) string {
	return ImageDir + padID + ImageExt
}

// An Asset is a binary entry of a container.
type Asset struct {
	Path string
	Data []byte
}

// Assemble builds a container. The metadata entry is omitted when metadata is nil.
func Assemble(manifest *model.Manifest, metadata *model.BankMetadata, assets []Asset) ([]byte, error) {
	if manifest == nil {
		return nil, errors.New("assemble: nil manifest")
	}
	if manifest.Pads == nil {
		manifest.Pads = []model.PadRecord{}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now().UTC()

	if err := writeJSON(zw, ManifestEntry, manifest, now); err != nil {
		return nil, err
	}
	if metadata != nil {
		if err := writeJSON(zw, MetadataEntry, metadata, now); err != nil {
			return nil, err
		}
	}

	seen := map[string]bool{}
	for _, asset := range assets {
		if !validAssetPath(asset.Path) {
			return nil, errors.Errorf("assemble: invalid asset path %q", asset.Path)
		}
		if seen[asset.Path] {
			return nil, errors.Errorf("assemble: duplicated asset %q", asset.Path)
		}
		seen[asset.Path] = true

		// Audio and images are already compressed.
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     asset.Path,
			Method:   zip.Store,
			Modified: now,
		})
		if err != nil {
			return nil, errors.Wrap(err, "assemble")
		}
		if _, err = w.Write(asset.Data); err != nil {
			return nil, errors.Wrap(err, "assemble")
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "assemble")
	}
	return buf.Bytes(), nil
}

func writeJSON(zw *zip.Writer, name string, v interface{}, modified time.Time) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "assemble: %s", name)
	}

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return errors.Wrapf(err, "assemble: %s", name)
	}
	_, err = w.Write(payload)
	return errors.Wrapf(err, "assemble: %s", name)
}

func validAssetPath(p string) bool {
	var id string
	switch {
	case strings.HasPrefix(p, AudioDir) && strings.HasSuffix(p, AudioExt):
		id = strings.TrimSuffix(strings.TrimPrefix(p, AudioDir), AudioExt)
	case strings.HasPrefix(p, ImageDir) && strings.HasSuffix(p, ImageExt):
		id = strings.TrimSuffix(strings.TrimPrefix(p, ImageDir), ImageExt)
	default:
		return false
	}
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

//
//-----
//

// A Container is a parsed archive. Assets are read lazily.
type Container struct {
	size     int64
	files    map[string]*zip.File
	manifest *model.Manifest
	metadata *model.BankMetadata
}

// Parse opens a container and validates its manifest and metadata.
// Reading the entries stops once ctx is done.
func Parse(ctx context.Context, data []byte) (*Container, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &FormatError{Reason: "not a zip container", Err: err}
	}

	c := &Container{
		size:  int64(len(data)),
		files: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		c.files[f.Name] = f
	}

	//

	f, ok := c.files[ManifestEntry]
	if !ok {
		return nil, &FormatError{Reason: "missing " + ManifestEntry}
	}
	payload, err := c.read(ctx, f)
	if err != nil {
		return nil, unreadable(ctx, ManifestEntry, err)
	}
	if c.manifest, err = parseManifest(payload); err != nil {
		return nil, err
	}

	//

	if f, ok = c.files[MetadataEntry]; ok {
		payload, err = c.read(ctx, f)
		if err != nil {
			return nil, unreadable(ctx, MetadataEntry, err)
		}
		if c.metadata, err = parseMetadata(payload); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Manifest returns the bank manifest.
func (c *Container) Manifest() *model.Manifest {
	return c.manifest
}

// Metadata returns the container metadata. The boolean is false when the container has none.
func (c *Container) Metadata() (*model.BankMetadata, bool) {
	return c.metadata, c.metadata != nil
}

// HasAsset reports whether the container holds the given asset.
func (c *Container) HasAsset(path string) bool {
	_, ok := c.files[path]
	return ok
}

// Asset reads the given asset. It can be called concurrently.
func (c *Container) Asset(ctx context.Context, path string) ([]byte, error) {
	f, ok := c.files[path]
	if !ok || !validAssetPath(path) {
		return nil, errors.Wrap(ErrAssetNotFound, path)
	}
	data, err := c.read(ctx, f)
	return data, errors.Wrapf(err, "read %s", path)
}

// read reads an entry, trusting its declared size neither for the allocation nor for the bound.
func (c *Container) read(ctx context.Context, f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > MaxEntrySize {
		return nil, &FormatError{Reason: fmt.Sprintf("%s: entry too large (%d bytes)", f.Name, f.UncompressedSize64)}
	}

	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	size := int64(f.UncompressedSize64)
	if size > c.size {
		size = c.size
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	n, err := io.Copy(buf, io.LimitReader(&ctxReader{ctx: ctx, r: rc}, MaxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if n > MaxEntrySize {
		return nil, &FormatError{Reason: f.Name + ": entry too large"}
	}
	return buf.Bytes(), nil
}

// unreadable keeps cancellations apart from malformed entries.
func unreadable(ctx context.Context, name string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	var ferr *FormatError
	if errors.As(err, &ferr) {
		return err
	}
	return &FormatError{Reason: "unreadable " + name, Err: err}
}

// ctxReader stops reading once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
