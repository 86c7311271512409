// Package service implements the bank operations: the library, the import
// reconciler and the export assembler.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/audio"
	"github.com/mdouchement/padbank/internal/blobstore"
	"github.com/mdouchement/padbank/internal/database"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/mdouchement/padbank/internal/seal"
)

// DefaultSharedPassword opens the protected banks that are not registered in the admin registry.
const DefaultSharedPassword = "padbank/shared-bank/v1"

// sharedSalt salts the shared password key.
const sharedSalt = "padbank-shared"

// DefaultBatchSize is the number of pads extracted per blob store transaction.
const DefaultBatchSize = 10

// A BlobStore persists pad binaries.
type BlobStore interface {
	StoreBatch(ctx context.Context, items []blobstore.Item) error
	Get(id string, kind model.Kind) ([]byte, bool, error)
	Delete(id string, kind model.Kind) error
	Usage() (int64, error)
	Ceiling() int64
}

// A Trimmer trims pad audio before export.
type Trimmer interface {
	Trim(ctx context.Context, src []byte, startMs, endMs float64, format audio.Format) (*audio.Result, error)
}

// Config holds the dependencies of a Service.
// Registry, Grants and Deriver are optional: without them admin banks cannot be opened.
type Config struct {
	Database       database.Client
	Blobs          BlobStore
	Trimmer        Trimmer
	Identity       Identity
	Registry       AdminRegistry
	Grants         AccessGrants
	Deriver        KeyDeriver
	SharedPassword string
	BatchSize      int
	// Timeout returns the deadline of each import step for an archive of the given size.
	Timeout func(size int64) time.Duration
	Logger  logger.Logger
}

// A Service performs the bank operations.
type Service struct {
	db         database.Client
	blobs      BlobStore
	trimmer    Trimmer
	identity   Identity
	registry   AdminRegistry
	grants     AccessGrants
	deriver    KeyDeriver
	keys       *KeyCache
	password   string
	batchSize  int
	timeout    func(size int64) time.Duration
	log        logger.Logger
	sharedOnce sync.Once
	sharedKey  seal.Key

	// mu serializes the read-modify-write cycles on banks.
	mu sync.Mutex
}

// New returns a new Service.
func New(c Config) *Service {
	s := &Service{
		db:        c.Database,
		blobs:     c.Blobs,
		trimmer:   c.Trimmer,
		identity:  c.Identity,
		registry:  c.Registry,
		grants:    c.Grants,
		deriver:   c.Deriver,
		keys:      NewKeyCache(c.Database),
		password:  c.SharedPassword,
		batchSize: c.BatchSize,
		timeout:   c.Timeout,
		log:       c.Logger.WithPrefix("[service]"),
	}

	if s.identity == nil {
		s.identity = ContextIdentity{}
	}
	if s.trimmer == nil {
		s.trimmer = audio.NewTranscoder(nil, c.Logger)
	}
	if s.password == "" {
		s.password = DefaultSharedPassword
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.timeout == nil {
		s.timeout = AdaptiveTimeout
	}
	return s
}

// Keys returns the key cache of the service.
func (s *Service) Keys() *KeyCache {
	return s.keys
}

// shared returns the key of the shared fallback password.
func (s *Service) shared() seal.Key {
	s.sharedOnce.Do(func() {
		s.sharedKey = seal.PasswordKey(s.password, sharedSalt)
	})
	return s.sharedKey
}

func (s *Service) currentUser(ctx context.Context) (User, bool) {
	return s.identity.CurrentUser(ctx)
}
