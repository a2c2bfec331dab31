package store

import (
	"context"

	"github.com/dmitrijs2005/identitystore/internal/identity"
)

// The five capability contracts. A deployment implements exactly the subset
// its application needs by wrapping one shared base store with the matching
// adapters.

// UserStore is the base identity CRUD contract.
type UserStore interface {
	Create(ctx context.Context, u *identity.User) (identity.Result, error)
	Update(ctx context.Context, u *identity.User) (identity.Result, error)
	Delete(ctx context.Context, u *identity.User) (identity.Result, error)
	FindByID(ctx context.Context, externalID string) (*identity.User, error)
	FindByName(ctx context.Context, normalizedName string) (*identity.User, error)
	GetID(ctx context.Context, u *identity.User) (string, error)
	GetName(ctx context.Context, u *identity.User) (string, error)
	SetName(ctx context.Context, u *identity.User, name string) error
	GetNormalizedName(ctx context.Context, u *identity.User) (string, error)
	SetNormalizedName(ctx context.Context, u *identity.User, normalizedName string) error
	Dispose()
}

// UserEmailStore adds email ownership to the base contract.
type UserEmailStore interface {
	UserStore
	GetEmail(ctx context.Context, u *identity.User) (string, error)
	SetEmail(ctx context.Context, u *identity.User, email string) error
	GetNormalizedEmail(ctx context.Context, u *identity.User) (string, error)
	SetNormalizedEmail(ctx context.Context, u *identity.User, normalizedEmail string) error
	GetEmailConfirmed(ctx context.Context, u *identity.User) (bool, error)
	SetEmailConfirmed(ctx context.Context, u *identity.User, confirmed bool) error
	FindByEmail(ctx context.Context, normalizedEmail string) (*identity.User, error)
}

// UserPasswordStore adds the password credential to the base contract.
type UserPasswordStore interface {
	UserStore
	GetPasswordHash(ctx context.Context, u *identity.User) (string, error)
	SetPasswordHash(ctx context.Context, u *identity.User, hash string) error
	HasPassword(ctx context.Context, u *identity.User) (bool, error)
}

// UserSecurityStampStore adds the rotating security stamp to the base
// contract.
type UserSecurityStampStore interface {
	UserStore
	GetSecurityStamp(ctx context.Context, u *identity.User) (string, error)
	SetSecurityStamp(ctx context.Context, u *identity.User, stamp string) error
}

// QueryableUserStore adds administrative enumeration to the base contract.
type QueryableUserStore interface {
	UserStore
	Users() Query
}

var (
	_ UserStore              = (*Store)(nil)
	_ UserEmailStore         = EmailStore{}
	_ UserPasswordStore      = PasswordStore{}
	_ UserSecurityStampStore = SecurityStampStore{}
	_ QueryableUserStore     = QueryableStore{}
)
