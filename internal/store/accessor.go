package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/identitystore/internal/common"
	"github.com/dmitrijs2005/identitystore/internal/identity"
)

// QuerySpec is the storage-agnostic description of a user query. Accessors
// translate it to their native filtering; the zero value selects all users.
type QuerySpec struct {
	// Key filters to a single user by id when HasKey is set.
	Key    uuid.UUID
	HasKey bool

	// NormalizedName/NormalizedEmail filter on the lookup columns when
	// non-nil. Comparisons always target the normalized values, never the
	// raw ones.
	NormalizedName  *string
	NormalizedEmail *string

	// Limit bounds the result set when positive.
	Limit int
}

// QueryExecutor runs a QuerySpec against the backing storage. Credential
// sections are eagerly joined onto the returned users.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, spec QuerySpec) ([]*identity.User, error)
}

// Query is a lazy view over identity records. Nothing is read until a
// materializing call (First, Slice), so callers may narrow the spec first.
type Query struct {
	spec QuerySpec
	exec QueryExecutor
}

// NewQuery binds a spec to an executor. Accessors use it to build the views
// they hand out.
func NewQuery(spec QuerySpec, exec QueryExecutor) Query {
	return Query{spec: spec, exec: exec}
}

// Spec returns the current query description.
func (q Query) Spec() QuerySpec { return q.spec }

// Limit returns a copy of the query bounded to at most n results.
func (q Query) Limit(n int) Query {
	q.spec.Limit = n
	return q
}

// Slice materializes the query.
func (q Query) Slice(ctx context.Context) ([]*identity.User, error) {
	return q.exec.ExecuteQuery(ctx, q.spec)
}

// First materializes the query and returns the first record, or
// common.ErrNotFound when the view is empty.
func (q Query) First(ctx context.Context) (*identity.User, error) {
	users, err := q.Limit(1).Slice(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, common.ErrNotFound
	}
	return users[0], nil
}

// DataAccessor is the minimal surface the capability stores require from
// storage. Reads are lazy composable queries; writes are staged with
// Add/Update/Remove and flushed atomically by Persist.
//
// Persist reports storage conflicts through sentinel errors: a staged write
// that lost a write-write race yields common.ErrConcurrency, and a
// uniqueness or foreign-key violation yields common.ErrDuplicate. Staged
// operations are consumed by Persist whether it succeeds or fails; callers
// retry by re-reading and re-staging.
type DataAccessor interface {
	// All returns a lazy view of every identity record, credential section
	// eagerly joined.
	All() Query

	// ByKey returns a filtered view expected to hold zero or one record.
	ByKey(id uuid.UUID) Query

	// ByNormalizedName returns a filtered view on the normalized name.
	ByNormalizedName(normalizedName string) Query

	// ByNormalizedEmail returns a filtered view on the normalized email.
	ByNormalizedEmail(normalizedEmail string) Query

	// Add stages a new user (and its credential section, if materialized)
	// for insertion.
	Add(u *identity.User)

	// Update stages the user's current state for an optimistic-concurrency
	// write against the row version it was read at.
	Update(u *identity.User)

	// Remove stages deletion of the user; the credential section is removed
	// with it.
	Remove(u *identity.User)

	// Persist atomically applies every staged operation.
	Persist(ctx context.Context) error
}
