package database

import (
	"sort"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// blobBucket holds the raw bytes of the blobs, keyed like their records.
var blobBucket = []byte("blob_data")

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(json.Codec)

var stormBoltOptions = storm.BoltOptions(0600, &bolt.Options{Timeout: 2 * time.Second})

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec, stormBoltOptions)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for name, m := range indexed() {
		if err := db.Init(m); err != nil {
			return errors.Wrapf(err, "could not init %s index", name)
		}
	}

	err = db.Bolt.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobBucket)
		return err
	})
	return errors.Wrap(err, "could not init blob bucket")
}

// StormReIndex rebuilds all the indexes.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec, stormBoltOptions)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for name, m := range indexed() {
		if err := db.ReIndex(m); err != nil {
			return errors.Wrapf(err, "could not ReIndex %s", name)
		}
	}
	return nil
}

// StormOpen opens the database, creating it when needed.
func StormOpen(database string) (Client, error) {
	if err := StormInit(database); err != nil {
		return nil, err
	}

	db, err := storm.Open(database, StormCodec, stormBoltOptions)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

func indexed() map[string]interface{} {
	return map[string]interface{}{
		"bank":       &model.Bank{},
		"blob":       &model.Blob{},
		"cached key": &model.CachedKey{},
		"admin bank": &model.AdminBank{},
		"grant":      &model.Grant{},
	}
}

func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
	}
	if m.GetCreatedAt() == nil {
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

func (c *strm) Close() error {
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

//
// Bank
//

func (c *strm) ListBanks() ([]*model.Bank, error) {
	banks := make([]*model.Bank, 0)
	if err := c.db.All(&banks); err != nil {
		return banks, errors.Wrap(err, "could not get all banks")
	}

	// Zero values are not indexed by storm so the ordering is done here.
	sort.SliceStable(banks, func(i, j int) bool {
		return banks[i].SortOrder < banks[j].SortOrder
	})
	return banks, nil
}

func (c *strm) FindBank(id string) (*model.Bank, error) {
	var bank model.Bank
	err := c.db.One("ID", id, &bank)
	return &bank, errors.Wrap(err, "could not find bank")
}

func (c *strm) DeleteBank(id string) error {
	err := c.db.Select(q.Eq("ID", id)).Delete(&model.Bank{})
	return errors.Wrap(err, "could not delete bank")
}

//
// Blob
//

func (c *strm) UpdateBlobs(fn func(tx BlobTx) error) error {
	return c.db.Bolt.Update(func(tx *bolt.Tx) error {
		return fn(&blobtx{
			tx:   tx,
			node: c.db.WithTransaction(tx),
		})
	})
}

func (c *strm) FindBlob(key string) (*model.Blob, []byte, error) {
	var blob model.Blob
	var data []byte

	err := c.db.Bolt.View(func(tx *bolt.Tx) error {
		if err := c.db.WithTransaction(tx).One("ID", key, &blob); err != nil {
			return err
		}

		bucket := tx.Bucket(blobBucket)
		if bucket == nil {
			return storm.ErrNotFound
		}
		v := bucket.Get([]byte(key))
		if v == nil {
			return storm.ErrNotFound
		}

		// Values are only valid during the transaction.
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not find blob")
	}
	return &blob, data, nil
}

func (c *strm) AllBlobs() ([]*model.Blob, error) {
	blobs := make([]*model.Blob, 0)
	err := c.db.All(&blobs)
	return blobs, errors.Wrap(err, "could not get all blobs")
}

func (c *strm) FindLedger() (*model.Ledger, error) {
	ledger := &model.Ledger{ID: model.LedgerID}
	err := c.db.One("ID", model.LedgerID, ledger)
	if err == storm.ErrNotFound {
		return ledger, nil
	}
	return ledger, errors.Wrap(err, "could not find ledger")
}

//
// CachedKey
//

func (c *strm) FindCachedKeys(userID string) ([]*model.CachedKey, error) {
	keys := make([]*model.CachedKey, 0)
	err := c.db.Select(q.Eq("UserID", userID)).Find(&keys)
	if err == storm.ErrNotFound {
		return keys, nil
	}
	return keys, errors.Wrap(err, "could not get cached keys")
}

//
// Directory
//

func (c *strm) FindAdminBank(id string) (*model.AdminBank, error) {
	var bank model.AdminBank
	err := c.db.One("ID", id, &bank)
	return &bank, errors.Wrap(err, "could not find admin bank")
}

func (c *strm) FindGrant(userID, bankID string) (*model.Grant, error) {
	var grant model.Grant
	err := c.db.One("ID", model.GrantID(userID, bankID), &grant)
	return &grant, errors.Wrap(err, "could not find grant")
}

func (c *strm) FindGrantsByUser(userID string) ([]*model.Grant, error) {
	grants := make([]*model.Grant, 0)
	err := c.db.Select(q.Eq("UserID", userID)).Find(&grants)
	if err == storm.ErrNotFound {
		return grants, nil
	}
	return grants, errors.Wrap(err, "could not get grants by user_id")
}

func (c *strm) DeleteGrant(userID, bankID string) error {
	err := c.db.Select(q.Eq("ID", model.GrantID(userID, bankID))).Delete(&model.Grant{})
	return errors.Wrap(err, "could not delete grant")
}

//
//-----
//

type blobtx struct {
	tx   *bolt.Tx
	node storm.Node
}

func (t *blobtx) Ledger() (*model.Ledger, error) {
	ledger := &model.Ledger{ID: model.LedgerID}
	err := t.node.One("ID", model.LedgerID, ledger)
	if err == storm.ErrNotFound {
		return ledger, nil
	}
	return ledger, errors.Wrap(err, "could not read ledger")
}

func (t *blobtx) SaveLedger(l *model.Ledger) error {
	l.ID = model.LedgerID
	return errors.Wrap(t.node.Save(l), "could not save ledger")
}

func (t *blobtx) FindBlob(key string) (*model.Blob, error) {
	var blob model.Blob
	err := t.node.One("ID", key, &blob)
	return &blob, errors.Wrap(err, "could not find blob")
}

func (t *blobtx) PutBlob(b *model.Blob, data []byte) error {
	bucket, err := t.tx.CreateBucketIfNotExists(blobBucket)
	if err != nil {
		return errors.Wrap(err, "could not open blob bucket")
	}
	if err = bucket.Put([]byte(b.ID), data); err != nil {
		return errors.Wrap(err, "could not write blob")
	}

	now := time.Now().UTC()
	if b.CreatedAt == nil {
		b.SetCreatedAt(now)
	}
	b.SetUpdatedAt(now)
	return errors.Wrap(t.node.Save(b), "could not save blob")
}

func (t *blobtx) DeleteBlob(b *model.Blob) error {
	if bucket := t.tx.Bucket(blobBucket); bucket != nil {
		if err := bucket.Delete([]byte(b.ID)); err != nil {
			return errors.Wrap(err, "could not delete blob data")
		}
	}
	return errors.Wrap(t.node.DeleteStruct(b), "could not delete blob")
}

func (t *blobtx) AllBlobs() ([]*model.Blob, error) {
	blobs := make([]*model.Blob, 0)
	err := t.node.All(&blobs)
	return blobs, errors.Wrap(err, "could not get all blobs")
}
