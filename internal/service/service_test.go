package service_test

import (
	"context"
	"io"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/archive"
	"github.com/mdouchement/padbank/internal/audio"
	"github.com/mdouchement/padbank/internal/blobstore"
	"github.com/mdouchement/padbank/internal/database"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/mdouchement/padbank/internal/seal"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type env struct {
	svc   *service.Service
	db    database.Client
	blobs *spy
}

func quiet() logger.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logger.WrapLogrus(log)
}

func setup(t *testing.T, options ...func(*service.Config)) *env {
	t.Helper()

	db, err := database.StormOpen(filepath.Join(t.TempDir(), "padbank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := quiet()
	blobs := &spy{BlobStore: blobstore.New(db, log)}

	c := service.Config{
		Database: db,
		Blobs:    blobs,
		Logger:   log,
	}
	for _, option := range options {
		option(&c)
	}

	return &env{
		svc:   service.New(c),
		db:    db,
		blobs: blobs,
	}
}

func as(userID string) context.Context {
	return service.WithUser(context.Background(), service.User{ID: userID, Email: userID + "@example.com"})
}

// tone returns a mono 16-bit WAV sample of the given duration.
func tone(t *testing.T, ms float64) []byte {
	t.Helper()

	const rate = 8000
	frames := int(ms / 1000 * rate)
	data := make([]int, frames)
	for i := range data {
		data[i] = int(6000 * math.Sin(2*math.Pi*220*float64(i)/rate))
	}

	wav, err := audio.EncodeWAV(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	})
	require.NoError(t, err)
	return wav
}

func bankArchive(t *testing.T, manifest *model.Manifest, metadata *model.BankMetadata, assets ...archive.Asset) []byte {
	t.Helper()

	data, err := archive.Assemble(manifest, metadata, assets)
	require.NoError(t, err)
	return data
}

func simpleManifest(t *testing.T, origin string, n int) (*model.Manifest, []archive.Asset) {
	t.Helper()

	manifest := &model.Manifest{
		Version: model.ManifestVersion,
		ID:      origin,
		Name:    "Imported",
	}
	var assets []archive.Asset
	for i := 0; i < n; i++ {
		id := string(rune('a'+i%26)) + string(rune('a'+i/26))
		manifest.Pads = append(manifest.Pads, model.PadRecord{
			ID:          id,
			Name:        "pad " + id,
			Audio:       archive.AudioPath(id),
			Volume:      1,
			EndTimeMs:   200,
			TriggerMode: model.TriggerToggle,
		})
		assets = append(assets, archive.Asset{Path: archive.AudioPath(id), Data: tone(t, 200)})
	}
	return manifest, assets
}

//
//-----
//

// spy counts the blob store writes and can make them fail or hang.
type spy struct {
	service.BlobStore

	mu      sync.Mutex
	writes  int
	stored  int
	deletes int
	fail    func(call int) error
	block   bool
}

func (s *spy) StoreBatch(ctx context.Context, items []blobstore.Item) error {
	s.mu.Lock()
	s.writes++
	call := s.writes
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.fail != nil {
		if err := s.fail(call); err != nil {
			return err
		}
	}
	if err := s.BlobStore.StoreBatch(ctx, items); err != nil {
		return err
	}

	s.mu.Lock()
	s.stored += len(items)
	s.mu.Unlock()
	return nil
}

func (s *spy) Delete(id string, kind model.Kind) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.BlobStore.Delete(id, kind)
}

func (s *spy) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes, s.stored, s.deletes = 0, 0, 0
}

func (s *spy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// deriver hands out fixed keys and records the derivations.
type deriver struct {
	mu    sync.Mutex
	keys  map[string]seal.Key
	calls []string
	hook  func()
}

func (d *deriver) DeriveKey(ctx context.Context, bankID, userID string) (seal.Key, error) {
	if d.hook != nil {
		d.hook()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, bankID)
	if k, ok := d.keys[bankID]; ok {
		return k, nil
	}
	return seal.Key{}, errors.New("unknown bank")
}

// grants gives access to a fixed set of banks.
type grants map[string][]string

func (g grants) HasAccess(ctx context.Context, userID, bankID string) (bool, error) {
	for _, id := range g[userID] {
		if id == bankID {
			return true, nil
		}
	}
	return false, nil
}

func (g grants) AccessibleBanks(ctx context.Context, userID string) ([]string, error) {
	return g[userID], nil
}

// registry describes fixed admin banks.
type registry map[string]service.BankInfo

func (r registry) Create(ctx context.Context, userID, title, description, color string) (*service.Registration, error) {
	return nil, errors.New("read only registry")
}

func (r registry) Lookup(ctx context.Context, bankID string) (*service.BankInfo, error) {
	if info, ok := r[bankID]; ok {
		return &info, nil
	}
	return nil, nil
}

func fixedKey(b byte) seal.Key {
	var k seal.Key
	for i := range k {
		k[i] = b
	}
	return k
}

func shortTimeout(int64) time.Duration {
	return 50 * time.Millisecond
}
