// Package directory is the local admin registry. It records admin banks and
// the users allowed to open them, and derives their container keys from a
// server secret.
package directory

import (
	"context"
	"sync"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/database"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/mdouchement/padbank/internal/seal"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/pkg/errors"
)

var (
	// ErrNoGrant is returned when deriving a key for a user without access.
	ErrNoGrant = errors.New("no access grant")
	// ErrNoSecret is returned when the directory has no secret to derive keys from.
	ErrNoSecret = errors.New("directory secret is not configured")
)

// A Directory implements the admin registry, the access grants and the key
// derivation on top of the database.
type Directory struct {
	db     database.Client
	log    logger.Logger
	secret string

	mu   sync.Mutex
	keys map[string]seal.Key
}

// New returns a new Directory.
func New(db database.Client, secret string, log logger.Logger) *Directory {
	return &Directory{
		db:     db,
		log:    log.WithPrefix("[directory]"),
		secret: secret,
		keys:   map[string]seal.Key{},
	}
}

// Create registers a new admin bank owned by userID and grants it to them.
func (d *Directory) Create(ctx context.Context, userID, title, description, color string) (*service.Registration, error) {
	if d.secret == "" {
		return nil, ErrNoSecret
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bank := &model.AdminBank{
		Title:       title,
		Description: description,
		Color:       color,
		CreatedBy:   userID,
	}
	if err := d.db.Save(bank); err != nil {
		return nil, errors.Wrap(err, "could not register admin bank")
	}

	if userID != "" {
		if err := d.Grant(ctx, userID, bank.ID); err != nil {
			return nil, err
		}
	}

	d.log.Infof("registered admin bank %s (%s)", bank.ID, bank.Title)
	return &service.Registration{
		BankInfo: info(bank),
		Key:      d.key(bank.ID),
	}, nil
}

// Lookup implements service.AdminRegistry.
func (d *Directory) Lookup(ctx context.Context, bankID string) (*service.BankInfo, error) {
	bank, err := d.db.FindAdminBank(bankID)
	if err != nil {
		if d.db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	i := info(bank)
	return &i, nil
}

// HasAccess implements service.AccessGrants.
func (d *Directory) HasAccess(ctx context.Context, userID, bankID string) (bool, error) {
	if userID == "" || bankID == "" {
		return false, nil
	}

	_, err := d.db.FindGrant(userID, bankID)
	if err != nil {
		if d.db.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AccessibleBanks implements service.AccessGrants.
func (d *Directory) AccessibleBanks(ctx context.Context, userID string) ([]string, error) {
	grants, err := d.db.FindGrantsByUser(userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(grants))
	for _, grant := range grants {
		ids = append(ids, grant.BankID)
	}
	return ids, nil
}

// DeriveKey implements service.KeyDeriver.
func (d *Directory) DeriveKey(ctx context.Context, bankID, userID string) (seal.Key, error) {
	if d.secret == "" {
		return seal.Key{}, ErrNoSecret
	}

	ok, err := d.HasAccess(ctx, userID, bankID)
	if err != nil {
		return seal.Key{}, err
	}
	if !ok {
		return seal.Key{}, errors.Wrapf(ErrNoGrant, "user %s on bank %s", userID, bankID)
	}
	return d.key(bankID), nil
}

// Grant allows userID to open bankID.
func (d *Directory) Grant(ctx context.Context, userID, bankID string) error {
	if _, err := d.db.FindAdminBank(bankID); err != nil {
		return errors.Wrapf(err, "grant %s", bankID)
	}

	grant := &model.Grant{
		UserID: userID,
		BankID: bankID,
	}
	grant.ID = model.GrantID(userID, bankID)
	return errors.Wrap(d.db.Save(grant), "could not save grant")
}

// Revoke removes the access of userID to bankID.
func (d *Directory) Revoke(ctx context.Context, userID, bankID string) error {
	err := d.db.DeleteGrant(userID, bankID)
	if d.db.IsNotFound(err) {
		return nil
	}
	return err
}

// key memoizes the key derivation, which is memory hard.
func (d *Directory) key(bankID string) seal.Key {
	d.mu.Lock()
	defer d.mu.Unlock()

	if k, ok := d.keys[bankID]; ok {
		return k
	}
	k := seal.PasswordKey(d.secret+"/"+bankID, bankID)
	d.keys[bankID] = k
	return k
}

func info(bank *model.AdminBank) service.BankInfo {
	return service.BankInfo{
		ID:          bank.ID,
		Title:       bank.Title,
		Description: bank.Description,
		Color:       bank.Color,
	}
}
