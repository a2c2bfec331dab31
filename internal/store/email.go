package store

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/identitystore/internal/common"
	"github.com/dmitrijs2005/identitystore/internal/identity"
)

// EmailStore layers the email-ownership capability onto a base store. The
// getters and setters act purely on the in-memory record; only FindByEmail
// performs I/O. Setting the email does not reset the confirmed flag — that
// policy belongs to the caller.
type EmailStore struct {
	*Store
}

// NewEmailStore wraps the shared base store with the email capability.
func NewEmailStore(base *Store) EmailStore {
	return EmailStore{Store: base}
}

// GetEmail returns the user's email address.
func (s EmailStore) GetEmail(ctx context.Context, u *identity.User) (string, error) {
	if err := s.guard(ctx); err != nil {
		return "", err
	}
	return u.Email, nil
}

// SetEmail sets the email address and recomputes the normalized lookup key.
func (s EmailStore) SetEmail(ctx context.Context, u *identity.User, email string) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	u.Email = email
	u.NormalizedEmail = s.normalizer.NormalizeEmail(email)
	return nil
}

// GetNormalizedEmail returns the canonical lookup form of the email.
func (s EmailStore) GetNormalizedEmail(ctx context.Context, u *identity.User) (string, error) {
	if err := s.guard(ctx); err != nil {
		return "", err
	}
	return u.NormalizedEmail, nil
}

// SetNormalizedEmail overrides the lookup key, re-applying the normalizer.
func (s EmailStore) SetNormalizedEmail(ctx context.Context, u *identity.User, normalizedEmail string) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	u.NormalizedEmail = s.normalizer.NormalizeEmail(normalizedEmail)
	return nil
}

// GetEmailConfirmed reports whether the user's email ownership was
// confirmed. False when no credential section exists yet.
func (s EmailStore) GetEmailConfirmed(ctx context.Context, u *identity.User) (bool, error) {
	if err := s.guard(ctx); err != nil {
		return false, err
	}
	if sec := u.CredentialsIfPresent(); sec != nil {
		return sec.EmailConfirmed, nil
	}
	return false, nil
}

// SetEmailConfirmed records email-ownership confirmation, materializing the
// credential section on first write.
func (s EmailStore) SetEmailConfirmed(ctx context.Context, u *identity.User, confirmed bool) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	u.Credentials().EmailConfirmed = confirmed
	return nil
}

// FindByEmail looks the record up by its normalized email, returning
// (nil, nil) when absent.
func (s EmailStore) FindByEmail(ctx context.Context, normalizedEmail string) (*identity.User, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	u, err := s.accessor.ByNormalizedEmail(normalizedEmail).First(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return u, err
}
