// Package identity holds the identity record model and the small leaf
// components the capability stores are built from: key conversion, lookup
// normalization, and the result/error reporting types.
package identity

import "github.com/google/uuid"

// Column bounds enforced by the storage schema. Exceeding them is a
// data-integrity error reported by the database, not by the stores.
const (
	MaxNameLength          = 256
	MaxEmailLength         = 256
	MaxPasswordHashLength  = 120
	MaxSecurityStampLength = 36
)

// User is the public profile record for a registered principal. The key is
// assigned once at creation and never reassigned. NormalizedName and
// NormalizedEmail are the lookup columns; they are recomputed through the
// configured Normalizer whenever the source field changes.
//
// RowVersion backs optimistic concurrency detection: accessors bump it on
// every successful update and refuse writes staged against a stale version.
type User struct {
	ID              uuid.UUID
	Name            string
	NormalizedName  string
	Email           string
	NormalizedEmail string
	RowVersion      int64

	section *CredentialSection
}

// CredentialSection is the private record joined 1:1 to a User by the same
// key. It is materialized lazily on the first credential write and never
// outlives its owning User.
type CredentialSection struct {
	UserID         uuid.UUID
	EmailConfirmed bool
	PasswordHash   string
	SecurityStamp  string
}

// Credentials returns the user's credential section, materializing an empty
// one keyed by the user's ID on first use. Callers that only want to inspect
// existing credentials should use CredentialsIfPresent instead.
func (u *User) Credentials() *CredentialSection {
	if u.section == nil {
		u.section = &CredentialSection{UserID: u.ID}
	}
	return u.section
}

// CredentialsIfPresent returns the credential section or nil when no
// credential field has been written yet.
func (u *User) CredentialsIfPresent() *CredentialSection {
	return u.section
}

// HasCredentials reports whether a credential section has been materialized.
func (u *User) HasCredentials() bool {
	return u.section != nil
}

// AttachCredentials installs a section loaded from storage. The section is
// rekeyed to the owning user.
func (u *User) AttachCredentials(s *CredentialSection) {
	if s != nil {
		s.UserID = u.ID
	}
	u.section = s
}

// Clone returns a deep copy of the user, including the credential section.
// Accessors hand out clones so callers can mutate records freely before
// staging them for persistence.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.section != nil {
		sec := *u.section
		c.section = &sec
	}
	return &c
}
