// Package inmemory provides a DataAccessor backed by process memory. It
// mirrors the relational backend's semantics — row-version conflict
// detection, uniqueness of normalized lookup keys, cascading removal of the
// credential section — so the capability stores behave identically in tests
// and lightweight deployments.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/identitystore/internal/common"
	"github.com/dmitrijs2005/identitystore/internal/identity"
	"github.com/dmitrijs2005/identitystore/internal/store"
)

type opKind int

const (
	opAdd opKind = iota
	opUpdate
	opRemove
)

type op struct {
	kind opKind
	user *identity.User
}

// Accessor is an in-memory store.DataAccessor. Safe for concurrent use.
type Accessor struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*identity.User
	sections map[uuid.UUID]*identity.CredentialSection
	pending  []op
}

// New returns an empty in-memory accessor.
func New() *Accessor {
	return &Accessor{
		users:    make(map[uuid.UUID]*identity.User),
		sections: make(map[uuid.UUID]*identity.CredentialSection),
	}
}

func (a *Accessor) All() store.Query {
	return store.NewQuery(store.QuerySpec{}, a)
}

func (a *Accessor) ByKey(id uuid.UUID) store.Query {
	return store.NewQuery(store.QuerySpec{Key: id, HasKey: true}, a)
}

func (a *Accessor) ByNormalizedName(normalizedName string) store.Query {
	return store.NewQuery(store.QuerySpec{NormalizedName: &normalizedName}, a)
}

func (a *Accessor) ByNormalizedEmail(normalizedEmail string) store.Query {
	return store.NewQuery(store.QuerySpec{NormalizedEmail: &normalizedEmail}, a)
}

// ExecuteQuery materializes a query spec against the current state. Users
// are returned as clones with their credential section joined, ordered by
// normalized name for stable enumeration.
func (a *Accessor) ExecuteQuery(_ context.Context, spec store.QuerySpec) ([]*identity.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []*identity.User
	for id, u := range a.users {
		if spec.HasKey && id != spec.Key {
			continue
		}
		if spec.NormalizedName != nil && u.NormalizedName != *spec.NormalizedName {
			continue
		}
		if spec.NormalizedEmail != nil && u.NormalizedEmail != *spec.NormalizedEmail {
			continue
		}
		c := u.Clone()
		if sec, ok := a.sections[id]; ok {
			s := *sec
			c.AttachCredentials(&s)
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].NormalizedName != out[j].NormalizedName {
			return out[i].NormalizedName < out[j].NormalizedName
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if spec.Limit > 0 && len(out) > spec.Limit {
		out = out[:spec.Limit]
	}
	return out, nil
}

func (a *Accessor) Add(u *identity.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, op{kind: opAdd, user: u})
}

func (a *Accessor) Update(u *identity.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, op{kind: opUpdate, user: u})
}

func (a *Accessor) Remove(u *identity.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, op{kind: opRemove, user: u})
}

// Persist applies the staged operations atomically: everything is validated
// against a scratch copy of the state first, and the state is swapped only
// when the whole batch succeeds. Staged operations are consumed either way.
func (a *Accessor) Persist(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pending := a.pending
	a.pending = nil

	if err := ctx.Err(); err != nil {
		return err
	}

	users := make(map[uuid.UUID]*identity.User, len(a.users))
	for id, u := range a.users {
		users[id] = u
	}
	sections := make(map[uuid.UUID]*identity.CredentialSection, len(a.sections))
	for id, s := range a.sections {
		sections[id] = s
	}

	// Caller-visible mutations (generated keys, row-version bumps) are
	// deferred so a failed batch leaves the staged objects untouched and a
	// retry does not report a spurious conflict.
	var commits []func()
	for _, o := range pending {
		var (
			commit func()
			err    error
		)
		switch o.kind {
		case opAdd:
			commit, err = applyAdd(users, sections, o.user)
		case opUpdate:
			commit, err = applyUpdate(users, sections, o.user)
		case opRemove:
			commit, err = applyRemove(users, sections, o.user)
		}
		if err != nil {
			return err
		}
		if commit != nil {
			commits = append(commits, commit)
		}
	}

	a.users = users
	a.sections = sections
	for _, commit := range commits {
		commit()
	}
	return nil
}

// CredentialSectionFor reports the stored credential section for a key, or
// nil. Exposed so tests can assert the cascade leaves no orphans.
func (a *Accessor) CredentialSectionFor(id uuid.UUID) *identity.CredentialSection {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sec, ok := a.sections[id]; ok {
		s := *sec
		return &s
	}
	return nil
}

func applyAdd(users map[uuid.UUID]*identity.User, sections map[uuid.UUID]*identity.CredentialSection, u *identity.User) (func(), error) {
	id := u.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	if _, exists := users[id]; exists {
		return nil, fmt.Errorf("%w: id %s", common.ErrDuplicate, id)
	}
	if err := checkUniqueLookups(users, id, u); err != nil {
		return nil, err
	}
	storeRecord(users, sections, u, id, 1)
	return func() {
		u.ID = id
		u.RowVersion = 1
	}, nil
}

func applyUpdate(users map[uuid.UUID]*identity.User, sections map[uuid.UUID]*identity.CredentialSection, u *identity.User) (func(), error) {
	cur, ok := users[u.ID]
	if !ok || cur.RowVersion != u.RowVersion {
		// A vanished row and a stale version are the same condition from
		// the writer's point of view: somebody else won the race.
		return nil, fmt.Errorf("%w: id %s", common.ErrConcurrency, u.ID)
	}
	if err := checkUniqueLookups(users, u.ID, u); err != nil {
		return nil, err
	}
	storeRecord(users, sections, u, u.ID, u.RowVersion+1)
	return func() { u.RowVersion++ }, nil
}

func applyRemove(users map[uuid.UUID]*identity.User, sections map[uuid.UUID]*identity.CredentialSection, u *identity.User) (func(), error) {
	cur, ok := users[u.ID]
	if !ok || cur.RowVersion != u.RowVersion {
		return nil, fmt.Errorf("%w: id %s", common.ErrConcurrency, u.ID)
	}
	delete(users, u.ID)
	// Cascade: the credential section never outlives its owner.
	delete(sections, u.ID)
	return nil, nil
}

// checkUniqueLookups mirrors the schema's unique indexes. Empty values are
// skipped, matching the partial email index: users without an email must
// not collide with each other.
func checkUniqueLookups(users map[uuid.UUID]*identity.User, id uuid.UUID, u *identity.User) error {
	for otherID, other := range users {
		if otherID == id {
			continue
		}
		if u.NormalizedName != "" && other.NormalizedName == u.NormalizedName {
			return fmt.Errorf("%w: normalized name %q", common.ErrDuplicate, u.NormalizedName)
		}
		if u.NormalizedEmail != "" && other.NormalizedEmail == u.NormalizedEmail {
			return fmt.Errorf("%w: normalized email %q", common.ErrDuplicateEmail, u.NormalizedEmail)
		}
	}
	return nil
}

func storeRecord(users map[uuid.UUID]*identity.User, sections map[uuid.UUID]*identity.CredentialSection, u *identity.User, id uuid.UUID, version int64) {
	c := u.Clone()
	c.ID = id
	c.RowVersion = version
	c.AttachCredentials(nil)
	users[id] = c
	if sec := u.CredentialsIfPresent(); sec != nil {
		s := *sec
		s.UserID = id
		sections[id] = &s
	}
}

var _ store.DataAccessor = (*Accessor)(nil)
