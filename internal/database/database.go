package database

import (
	"github.com/mdouchement/padbank/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		BankInteraction
		BlobInteraction
		KeyInteraction
		DirectoryInteraction
	}

	// A BankInteraction defines all the methods used to interact with a bank record.
	BankInteraction interface {
		ListBanks() ([]*model.Bank, error)
		FindBank(id string) (*model.Bank, error)
		DeleteBank(id string) error
	}

	// A BlobInteraction defines all the methods used to interact with blobs and the quota ledger.
	BlobInteraction interface {
		// UpdateBlobs runs fn in a single read-write transaction.
		// Nothing is committed when fn returns an error.
		UpdateBlobs(fn func(tx BlobTx) error) error
		// FindBlob returns the blob record and a copy of its bytes.
		FindBlob(key string) (*model.Blob, []byte, error)
		AllBlobs() ([]*model.Blob, error)
		FindLedger() (*model.Ledger, error)
	}

	// A BlobTx is the view of the blob storage inside a transaction.
	BlobTx interface {
		// Ledger returns the quota ledger, zero valued when never written.
		Ledger() (*model.Ledger, error)
		SaveLedger(l *model.Ledger) error
		// FindBlob returns the blob record or a not found error.
		FindBlob(key string) (*model.Blob, error)
		PutBlob(b *model.Blob, data []byte) error
		DeleteBlob(b *model.Blob) error
		AllBlobs() ([]*model.Blob, error)
	}

	// A KeyInteraction defines all the methods used to interact with cached keys.
	KeyInteraction interface {
		FindCachedKeys(userID string) ([]*model.CachedKey, error)
	}

	// A DirectoryInteraction defines all the methods used to interact with admin banks and grants.
	DirectoryInteraction interface {
		FindAdminBank(id string) (*model.AdminBank, error)
		FindGrant(userID, bankID string) (*model.Grant, error)
		FindGrantsByUser(userID string) ([]*model.Grant, error)
		DeleteGrant(userID, bankID string) error
	}
)
