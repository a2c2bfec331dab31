package store

import (
	"context"

	"github.com/dmitrijs2005/identitystore/internal/identity"
)

// SecurityStampStore layers the security-stamp capability onto a base
// store. Rotation policy — when to mint a fresh stamp — belongs to the
// caller; the store only holds the value.
type SecurityStampStore struct {
	*Store
}

// NewSecurityStampStore wraps the shared base store with the stamp
// capability.
func NewSecurityStampStore(base *Store) SecurityStampStore {
	return SecurityStampStore{Store: base}
}

// GetSecurityStamp returns the current stamp, empty when none was set.
func (s SecurityStampStore) GetSecurityStamp(ctx context.Context, u *identity.User) (string, error) {
	if err := s.guard(ctx); err != nil {
		return "", err
	}
	if sec := u.CredentialsIfPresent(); sec != nil {
		return sec.SecurityStamp, nil
	}
	return "", nil
}

// SetSecurityStamp stores the stamp in memory, materializing the credential
// section on first write.
func (s SecurityStampStore) SetSecurityStamp(ctx context.Context, u *identity.User, stamp string) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	u.Credentials().SecurityStamp = stamp
	return nil
}
