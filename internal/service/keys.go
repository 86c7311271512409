package service

import (
	"sort"
	"sync"

	"github.com/mdouchement/padbank/internal/database"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/mdouchement/padbank/internal/seal"
	"github.com/pkg/errors"
)

// A CachedKey is a container key a user already opened a bank with.
type CachedKey struct {
	BankID string
	Key    seal.Key
}

// A KeyCache remembers the derived keys of each user, in memory and in the database.
type KeyCache struct {
	db database.Client

	mu  sync.Mutex
	mem map[string]map[string]seal.Key
}

// NewKeyCache returns a KeyCache. A nil database keeps the keys in memory only.
func NewKeyCache(db database.Client) *KeyCache {
	return &KeyCache{
		db:  db,
		mem: map[string]map[string]seal.Key{},
	}
}

// Keys returns the keys cached for userID, the in-memory ones first.
func (c *KeyCache) Keys(userID string) ([]CachedKey, error) {
	c.mu.Lock()
	keys := make([]CachedKey, 0, len(c.mem[userID]))
	for bankID, key := range c.mem[userID] {
		keys = append(keys, CachedKey{BankID: bankID, Key: key})
	}
	c.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].BankID < keys[j].BankID
	})

	if c.db == nil {
		return keys, nil
	}

	records, err := c.db.FindCachedKeys(userID)
	if err != nil {
		return keys, err
	}

	seen := map[string]bool{}
	for _, k := range keys {
		seen[k.BankID] = true
	}
	for _, record := range records {
		if seen[record.BankID] {
			continue
		}
		key, err := seal.NewKey(record.Key)
		if err != nil {
			continue
		}

		keys = append(keys, CachedKey{BankID: record.BankID, Key: key})
		c.remember(userID, record.BankID, key)
	}
	return keys, nil
}

// Put caches key for userID and bankID.
func (c *KeyCache) Put(userID, bankID string, key seal.Key) error {
	c.remember(userID, bankID, key)
	if c.db == nil {
		return nil
	}

	record := &model.CachedKey{
		UserID: userID,
		BankID: bankID,
		Key:    key.Bytes(),
	}
	record.ID = model.CachedKeyID(userID, bankID)
	return errors.Wrap(c.db.Save(record), "could not cache key")
}

func (c *KeyCache) remember(userID, bankID string, key seal.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mem[userID] == nil {
		c.mem[userID] = map[string]seal.Key{}
	}
	c.mem[userID][bankID] = key
}
