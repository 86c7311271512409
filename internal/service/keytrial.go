package service

import (
	"context"

	"github.com/mdouchement/padbank/internal/archive"
	"github.com/mdouchement/padbank/internal/seal"
	"github.com/mdouchement/padbank/internal/xpath"
)

// A candidate is a key that may open a sealed archive.
type candidate struct {
	bankID string
	key    seal.Key
	// cache is true when a successful key should be remembered for the user.
	cache bool
}

// A keySource lists candidates lazily. Sources needing an identity are
// skipped for anonymous users.
type keySource struct {
	name     string
	identity bool
	list     func(ctx context.Context, t *keyTrial) ([]candidate, error)
}

// keySources returns the key sources in trial order.
func (s *Service) keySources() []keySource {
	return []keySource{
		{name: "cached", identity: true, list: s.cachedCandidates},
		{name: "filename hint", identity: true, list: s.hintCandidates},
		{name: "accessible banks", identity: true, list: s.accessibleCandidates},
		{name: "shared password", list: s.sharedCandidates},
	}
}

// keyTrial tries candidates against one sealed archive.
type keyTrial struct {
	data     []byte
	filename string
	user     User
	tried    map[seal.Key]bool
	derived  map[string]bool
	last     error

	container *archive.Container
	winner    candidate
}

func (t *keyTrial) attempt(ctx context.Context, c candidate) bool {
	if t.tried[c.key] {
		return false
	}
	t.tried[c.key] = true

	if !seal.QuickMatch(t.data, c.key) {
		t.last = seal.ErrKeyMismatch
		return false
	}

	plain, err := seal.Decrypt(t.data, c.key)
	if err != nil {
		t.last = err
		return false
	}
	if err = ctx.Err(); err != nil {
		t.last = err
		return false
	}
	container, err := archive.Parse(ctx, plain)
	if err != nil {
		t.last = err
		return false
	}

	t.container = container
	t.winner = c
	return true
}

// unseal parses data, trying every candidate key when it is sealed.
func (s *Service) unseal(ctx context.Context, data []byte, filename string) (*archive.Container, bool, error) {
	container, err := archive.Parse(ctx, data)
	if err == nil {
		return container, false, nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, false, cerr
	}
	if !seal.IsSealed(data) {
		return nil, false, err
	}

	user, authed := s.currentUser(ctx)
	t := &keyTrial{
		data:     data,
		filename: filename,
		user:     user,
		tried:    map[seal.Key]bool{},
		derived:  map[string]bool{},
	}

	for _, source := range s.keySources() {
		if source.identity && !authed {
			continue
		}

		candidates, err := source.list(ctx, t)
		if err != nil {
			s.log.Debugf("key source %s: %v", source.name, err)
			t.last = err
		}

		for _, c := range candidates {
			if err := ctx.Err(); err != nil {
				return nil, true, err
			}
			if !t.attempt(ctx, c) {
				continue
			}

			s.log.Debugf("archive opened with a key from %s", source.name)
			if c.cache && authed {
				if err := s.keys.Put(user.ID, c.bankID, c.key); err != nil {
					s.log.Errorf("could not cache key: %v", err)
				}
			}
			return t.container, true, nil
		}
	}

	return nil, true, &DecryptionError{
		LoginRequired: !authed,
		Tried:         len(t.tried),
		Last:          t.last,
	}
}

func (s *Service) cachedCandidates(ctx context.Context, t *keyTrial) ([]candidate, error) {
	keys, err := s.keys.Keys(t.user.ID)

	candidates := make([]candidate, 0, len(keys))
	for _, k := range keys {
		candidates = append(candidates, candidate{bankID: k.BankID, key: k.Key})
	}
	return candidates, err
}

func (s *Service) hintCandidates(ctx context.Context, t *keyTrial) ([]candidate, error) {
	bankID, ok := xpath.BankHint(t.filename)
	if !ok || s.deriver == nil {
		return nil, nil
	}

	t.derived[bankID] = true
	key, err := s.deriver.DeriveKey(ctx, bankID, t.user.ID)
	if err != nil {
		return nil, err
	}
	return []candidate{{bankID: bankID, key: key, cache: true}}, nil
}

func (s *Service) accessibleCandidates(ctx context.Context, t *keyTrial) ([]candidate, error) {
	if s.grants == nil || s.deriver == nil {
		return nil, nil
	}

	ids, err := s.grants.AccessibleBanks(ctx, t.user.ID)
	if err != nil {
		return nil, err
	}

	var last error
	candidates := make([]candidate, 0, len(ids))
	for _, id := range ids {
		if t.derived[id] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		t.derived[id] = true
		key, err := s.deriver.DeriveKey(ctx, id, t.user.ID)
		if err != nil {
			last = err
			continue
		}
		candidates = append(candidates, candidate{bankID: id, key: key, cache: true})
	}
	return candidates, last
}

func (s *Service) sharedCandidates(ctx context.Context, t *keyTrial) ([]candidate, error) {
	return []candidate{{key: s.shared()}}, nil
}
