package store

import (
	"context"

	"github.com/dmitrijs2005/identitystore/internal/identity"
)

// PasswordStore layers the password-credential capability onto a base
// store. All methods are in-memory accessors; the hash is persisted when
// the caller subsequently invokes Update.
type PasswordStore struct {
	*Store
}

// NewPasswordStore wraps the shared base store with the password capability.
func NewPasswordStore(base *Store) PasswordStore {
	return PasswordStore{Store: base}
}

// GetPasswordHash returns the stored credential hash, empty when none is
// set.
func (s PasswordStore) GetPasswordHash(ctx context.Context, u *identity.User) (string, error) {
	if err := s.guard(ctx); err != nil {
		return "", err
	}
	if sec := u.CredentialsIfPresent(); sec != nil {
		return sec.PasswordHash, nil
	}
	return "", nil
}

// SetPasswordHash stores the credential hash in memory, materializing the
// credential section on first write. Hash algorithm choice is the caller's.
func (s PasswordStore) SetPasswordHash(ctx context.Context, u *identity.User, hash string) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	u.Credentials().PasswordHash = hash
	return nil
}

// HasPassword reports whether a non-empty credential hash is present.
func (s PasswordStore) HasPassword(ctx context.Context, u *identity.User) (bool, error) {
	if err := s.guard(ctx); err != nil {
		return false, err
	}
	sec := u.CredentialsIfPresent()
	return sec != nil && sec.PasswordHash != "", nil
}
