// Package blobstore persists audio and image binaries with a quota on the
// cumulative size of the images.
//
// Every mutation runs in one database transaction that also updates the
// quota ledger, so the ledger never disagrees with the stored bytes.
package blobstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/database"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/pkg/errors"
)

// QuotaCeiling is the maximum cumulative size of the stored images.
const QuotaCeiling int64 = 50 << 20

var (
	// ErrEmptyBlob is returned when storing an empty payload.
	ErrEmptyBlob = errors.New("empty blob")
	// ErrInvalidKind is returned for an unknown blob kind.
	ErrInvalidKind = errors.New("invalid blob kind")
)

// QuotaExceededError is returned when a write would push the image usage over the ceiling.
type QuotaExceededError struct {
	Usage     int64
	Requested int64
	Ceiling   int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("image quota exceeded: %s used + %s requested > %s",
		humanize.IBytes(uint64(e.Usage)),
		humanize.IBytes(uint64(e.Requested)),
		humanize.IBytes(uint64(e.Ceiling)),
	)
}

// An Item is one blob of a batch.
type Item struct {
	ID   string
	Data []byte
	Kind model.Kind
}

// Key returns the storage key of the item.
func (i Item) Key() string {
	return model.BlobKey(i.Kind, i.ID)
}

// A Store is the blob storage engine.
type Store struct {
	db      database.Client
	log     logger.Logger
	ceiling int64
}

// An Option configures a Store.
type Option func(*Store)

// WithCeiling overrides the image quota ceiling.
func WithCeiling(ceiling int64) Option {
	return func(s *Store) {
		s.ceiling = ceiling
	}
}

// New returns a new Store on top of the given database.
func New(db database.Client, log logger.Logger, options ...Option) *Store {
	s := &Store{
		db:      db,
		log:     log.WithPrefix("[blobstore]"),
		ceiling: QuotaCeiling,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Ceiling returns the image quota ceiling.
func (s *Store) Ceiling() int64 {
	return s.ceiling
}

// Store persists a single blob.
func (s *Store) Store(ctx context.Context, id string, data []byte, kind model.Kind) error {
	return s.StoreBatch(ctx, []Item{{ID: id, Data: data, Kind: kind}})
}

// StoreBatch persists all the items or none of them.
// The image quota is checked for the whole batch before anything is written.
func (s *Store) StoreBatch(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Later items override earlier ones with the same key.
	unique := make([]Item, 0, len(items))
	positions := map[string]int{}
	for _, item := range items {
		if !item.Kind.Valid() {
			return errors.Wrapf(ErrInvalidKind, "blob %s", item.ID)
		}
		if len(item.Data) == 0 {
			return errors.Wrapf(ErrEmptyBlob, "blob %s", item.Key())
		}

		if i, ok := positions[item.Key()]; ok {
			unique[i] = item
			continue
		}
		positions[item.Key()] = len(unique)
		unique = append(unique, item)
	}

	return s.db.UpdateBlobs(func(tx database.BlobTx) error {
		ledger, err := tx.Ledger()
		if err != nil {
			return err
		}

		// Pre-flight
		//
		var delta, requested int64
		blobs := make([]*model.Blob, len(unique))
		for i, item := range unique {
			blob, err := tx.FindBlob(item.Key())
			switch {
			case err == nil:
			case s.db.IsNotFound(err):
				blob = &model.Blob{}
				blob.ID = item.Key()
			default:
				return err
			}

			if item.Kind == model.KindImage {
				requested += int64(len(item.Data))
				delta += int64(len(item.Data)) - blob.Size
			}
			blobs[i] = blob
		}

		if delta > 0 && ledger.ImageBytes+delta > s.ceiling {
			return &QuotaExceededError{
				Usage:     ledger.ImageBytes,
				Requested: requested,
				Ceiling:   s.ceiling,
			}
		}

		// Commit
		//
		for i, item := range unique {
			blob := blobs[i]
			blob.OwnerID = item.ID
			blob.Kind = item.Kind
			blob.Size = int64(len(item.Data))
			blob.Checksum = checksum(item.Data)

			if err := tx.PutBlob(blob, item.Data); err != nil {
				return err
			}
		}

		if delta != 0 {
			ledger.ImageBytes = floor(ledger.ImageBytes + delta)
			if err := tx.SaveLedger(ledger); err != nil {
				return err
			}
		}

		s.log.Debugf("stored %d blob(s), image usage %s", len(unique), humanize.IBytes(uint64(ledger.ImageBytes)))
		return nil
	})
}

// Get returns the bytes of the blob. The boolean is false when the blob does not exist.
func (s *Store) Get(id string, kind model.Kind) ([]byte, bool, error) {
	_, data, err := s.db.FindBlob(model.BlobKey(kind, id))
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes the blob. Deleting an image releases its stored size from the ledger.
func (s *Store) Delete(id string, kind model.Kind) error {
	return s.db.UpdateBlobs(func(tx database.BlobTx) error {
		blob, err := tx.FindBlob(model.BlobKey(kind, id))
		if err != nil {
			if s.db.IsNotFound(err) {
				return nil
			}
			return err
		}

		if err = tx.DeleteBlob(blob); err != nil {
			return err
		}

		if blob.Kind != model.KindImage {
			return nil
		}

		ledger, err := tx.Ledger()
		if err != nil {
			return err
		}
		ledger.ImageBytes = floor(ledger.ImageBytes - blob.Size)
		return tx.SaveLedger(ledger)
	})
}

// Usage returns the cumulative size of the stored images.
func (s *Store) Usage() (int64, error) {
	ledger, err := s.db.FindLedger()
	if err != nil {
		return 0, err
	}
	return ledger.ImageBytes, nil
}

// Reconcile recomputes the ledger from the stored image records and returns the new usage.
func (s *Store) Reconcile() (int64, error) {
	var usage int64
	err := s.db.UpdateBlobs(func(tx database.BlobTx) error {
		blobs, err := tx.AllBlobs()
		if err != nil {
			return err
		}

		for _, blob := range blobs {
			if blob.Kind == model.KindImage {
				usage += blob.Size
			}
		}

		ledger, err := tx.Ledger()
		if err != nil {
			return err
		}
		if ledger.ImageBytes == usage {
			return nil
		}

		s.log.Infof("ledger drift: %d recorded, %d stored", ledger.ImageBytes, usage)
		ledger.ImageBytes = usage
		return tx.SaveLedger(ledger)
	})
	return usage, err
}

func checksum(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}

func floor(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
