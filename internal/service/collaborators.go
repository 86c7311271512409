package service

import (
	"context"

	"github.com/mdouchement/padbank/internal/seal"
)

type (
	// A User is the identity on behalf of which an operation runs.
	User struct {
		ID    string
		Email string
	}

	// An Identity resolves the current user.
	Identity interface {
		// CurrentUser returns false for anonymous callers.
		CurrentUser(ctx context.Context) (User, bool)
	}

	// BankInfo is the registry entry of an admin bank.
	BankInfo struct {
		ID          string
		Title       string
		Description string
		Color       string
	}

	// A Registration is a newly registered admin bank and its container key.
	Registration struct {
		BankInfo
		Key seal.Key
	}

	// An AdminRegistry registers and describes admin banks.
	AdminRegistry interface {
		Create(ctx context.Context, userID, title, description, color string) (*Registration, error)
		// Lookup returns nil without error when the bank is unknown.
		Lookup(ctx context.Context, bankID string) (*BankInfo, error)
	}

	// AccessGrants tells which admin banks a user may decrypt.
	AccessGrants interface {
		HasAccess(ctx context.Context, userID, bankID string) (bool, error)
		AccessibleBanks(ctx context.Context, userID string) ([]string, error)
	}

	// A KeyDeriver derives the container key of an admin bank for a user.
	KeyDeriver interface {
		DeriveKey(ctx context.Context, bankID, userID string) (seal.Key, error)
	}
)

//
//-----
//

type (
	userKey      struct{}
	anonymousKey struct{}
)

// WithUser returns a context carrying u as the current user.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// WithAnonymous returns a context whose caller is known to be anonymous.
// No Identity falls back to a default user for it.
func WithAnonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

// IsAnonymous reports whether ctx was marked by WithAnonymous.
func IsAnonymous(ctx context.Context) bool {
	anonymous, _ := ctx.Value(anonymousKey{}).(bool)
	return anonymous
}

// UserFrom returns the user carried by ctx.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok && u.ID != ""
}

// ContextIdentity resolves the current user from the context.
type ContextIdentity struct{}

// CurrentUser implements Identity.
func (ContextIdentity) CurrentUser(ctx context.Context) (User, bool) {
	return UserFrom(ctx)
}

// StaticIdentity resolves to the same user unless the context carries one
// or is anonymous. A zero value is anonymous.
type StaticIdentity User

// CurrentUser implements Identity.
func (s StaticIdentity) CurrentUser(ctx context.Context) (User, bool) {
	if u, ok := UserFrom(ctx); ok {
		return u, true
	}
	if IsAnonymous(ctx) {
		return User{}, false
	}
	return User(s), s.ID != ""
}
