// Package store implements the capability-composed user store: a base
// identity CRUD store plus narrow adapters for email, password, security
// stamp and enumeration concerns, all backed by a pluggable DataAccessor
// that hides the storage layout.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/identitystore/internal/common"
	"github.com/dmitrijs2005/identitystore/internal/identity"
)

// Store is the base identity CRUD store. Only Create, Update and Delete
// touch persistent storage; every other method is a pure accessor on the
// record the caller already holds.
//
// Store is not safe for concurrent use of Dispose with other methods; the
// disposed flag is a one-way guard against use-after-dispose programming
// errors, not a synchronization primitive.
type Store struct {
	accessor   DataAccessor
	normalizer identity.Normalizer

	// Describer mints the error kinds reported through failed Results.
	// Deployments may swap in their own catalog before using the store.
	Describer identity.Describer

	// AutoPersist controls whether Create, Update and Delete flush the
	// accessor immediately. When false the caller batches writes and calls
	// the accessor's Persist itself.
	AutoPersist bool

	disposed bool
}

// New builds a base store over the given accessor. A nil normalizer falls
// back to the passthrough strategy.
func New(accessor DataAccessor, normalizer identity.Normalizer) *Store {
	if normalizer == nil {
		normalizer = identity.PassthroughNormalizer{}
	}
	return &Store{
		accessor:    accessor,
		normalizer:  normalizer,
		Describer:   identity.ErrorDescriber{},
		AutoPersist: true,
	}
}

// duplicateError picks the duplicate kind matching the violated lookup key.
func (s *Store) duplicateError(err error, u *identity.User) identity.Error {
	if errors.Is(err, common.ErrDuplicateEmail) {
		return s.Describer.DuplicateEmail(u.Email)
	}
	return s.Describer.DuplicateUser(u.Name)
}

// Dispose marks the store unusable. Any later call fails with
// common.ErrStoreDisposed.
func (s *Store) Dispose() {
	s.disposed = true
}

// guard runs the entry checks every method performs: cooperative
// cancellation first, then the disposed flag. Cancellation is only observed
// here, never mid-write, so a cancelled call performs no partial mutation.
func (s *Store) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.disposed {
		return common.ErrStoreDisposed
	}
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	if !s.AutoPersist {
		return nil
	}
	return s.accessor.Persist(ctx)
}

// Create persists a new identity record. A nil user fails with
// common.ErrInvalidArgument before any write. Uniqueness and constraint
// violations come back as a failed Result carrying the DuplicateUser kind
// rather than a raw storage error.
func (s *Store) Create(ctx context.Context, u *identity.User) (identity.Result, error) {
	if err := s.guard(ctx); err != nil {
		return identity.Result{}, err
	}
	if u == nil {
		return identity.Result{}, fmt.Errorf("%w: user is required", common.ErrInvalidArgument)
	}

	s.accessor.Add(u)
	if err := s.persist(ctx); err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return identity.Failed(s.duplicateError(err, u)), nil
		}
		return identity.Result{}, err
	}
	return identity.Success(), nil
}

// Update persists the user's current state. A write-write race detected by
// the storage layer is reported as a failed Result with the
// ConcurrencyFailure kind; the store never retries on its own.
func (s *Store) Update(ctx context.Context, u *identity.User) (identity.Result, error) {
	if err := s.guard(ctx); err != nil {
		return identity.Result{}, err
	}
	if u == nil {
		return identity.Result{}, fmt.Errorf("%w: user is required", common.ErrInvalidArgument)
	}

	s.accessor.Update(u)
	if err := s.persist(ctx); err != nil {
		switch {
		case errors.Is(err, common.ErrConcurrency):
			return identity.Failed(s.Describer.ConcurrencyFailure()), nil
		case errors.Is(err, common.ErrDuplicate):
			return identity.Failed(s.duplicateError(err, u)), nil
		}
		return identity.Result{}, err
	}
	return identity.Success(), nil
}

// Delete removes the identity record and, by cascade, its credential
// section. Conflict handling matches Update.
func (s *Store) Delete(ctx context.Context, u *identity.User) (identity.Result, error) {
	if err := s.guard(ctx); err != nil {
		return identity.Result{}, err
	}
	if u == nil {
		return identity.Result{}, fmt.Errorf("%w: user is required", common.ErrInvalidArgument)
	}

	s.accessor.Remove(u)
	if err := s.persist(ctx); err != nil {
		if errors.Is(err, common.ErrConcurrency) {
			return identity.Failed(s.Describer.ConcurrencyFailure()), nil
		}
		return identity.Result{}, err
	}
	return identity.Success(), nil
}

// FindByID converts the external id and looks the record up by key. An
// unknown id yields (nil, nil); a malformed id fails with
// common.ErrInvalidKeyFormat and is never treated as "not found".
func (s *Store) FindByID(ctx context.Context, externalID string) (*identity.User, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	id, err := identity.KeyFromExternal(externalID)
	if err != nil {
		return nil, err
	}
	u, err := s.accessor.ByKey(id).First(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// FindByName looks the record up by its normalized name, returning
// (nil, nil) when absent.
func (s *Store) FindByName(ctx context.Context, normalizedName string) (*identity.User, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	u, err := s.accessor.ByNormalizedName(normalizedName).First(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// GetID returns the user's external id representation, empty for the zero
// key.
func (s *Store) GetID(ctx context.Context, u *identity.User) (string, error) {
	if err := s.guard(ctx); err != nil {
		return "", err
	}
	return identity.KeyToExternal(u.ID), nil
}

// GetName returns the user's display/login name.
func (s *Store) GetName(ctx context.Context, u *identity.User) (string, error) {
	if err := s.guard(ctx); err != nil {
		return "", err
	}
	return u.Name, nil
}

// SetName sets the display/login name and recomputes the normalized lookup
// key through the configured normalizer. In-memory only; persistence
// happens on the next Update.
func (s *Store) SetName(ctx context.Context, u *identity.User, name string) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	u.Name = name
	u.NormalizedName = s.normalizer.NormalizeName(name)
	return nil
}

// GetNormalizedName returns the canonical lookup form of the name.
func (s *Store) GetNormalizedName(ctx context.Context, u *identity.User) (string, error) {
	if err := s.guard(ctx); err != nil {
		return "", err
	}
	return u.NormalizedName, nil
}

// SetNormalizedName overrides the lookup key. The value is passed through
// the normalizer again, which is a no-op for already-canonical input.
func (s *Store) SetNormalizedName(ctx context.Context, u *identity.User, normalizedName string) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	u.NormalizedName = s.normalizer.NormalizeName(normalizedName)
	return nil
}

// Normalizer exposes the configured lookup normalization strategy so
// callers can canonicalize search input the same way writes are.
func (s *Store) Normalizer() identity.Normalizer {
	return s.normalizer
}
