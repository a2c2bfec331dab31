package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/identitystore/internal/common"
	"github.com/dmitrijs2005/identitystore/internal/identity"
	"github.com/dmitrijs2005/identitystore/internal/store"
	"github.com/dmitrijs2005/identitystore/internal/store/inmemory"
)

func newStandardStore(t *testing.T) (*store.StandardStore, *inmemory.Accessor) {
	t.Helper()
	acc := inmemory.New()
	base := store.New(acc, identity.UpperInvariantNormalizer{})
	return store.NewStandardStore(base), acc
}

func createUser(t *testing.T, s *store.StandardStore, name, email string) *identity.User {
	t.Helper()
	ctx := context.Background()

	u := &identity.User{}
	require.NoError(t, s.SetName(ctx, u, name))
	require.NoError(t, s.SetEmail(ctx, u, email))

	res, err := s.Create(ctx, u)
	require.NoError(t, err)
	require.True(t, res.Succeeded(), "create failed: %v", res)
	return u
}

func TestCreateThenFindByID(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")

	external, err := s.GetID(ctx, u)
	require.NoError(t, err)
	require.NotEmpty(t, external)

	got, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, "ALICE", got.NormalizedName)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "A@X.COM", got.NormalizedEmail)
}

func TestCreateNilUser(t *testing.T) {
	s, acc := newStandardStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, nil)
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	users, err := acc.All().Slice(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "failed create must not write")
}

func TestFindByID_UnknownIsAbsentNotError(t *testing.T) {
	s, _ := newStandardStore(t)

	got, err := s.FindByID(context.Background(), "0a0b0c0d-0000-4000-8000-000000000001")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByID_MalformedKeyIsError(t *testing.T) {
	s, _ := newStandardStore(t)

	_, err := s.FindByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, common.ErrInvalidKeyFormat, "format errors must not read as not-found")
}

func TestFindByName(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")

	got, err := s.FindByName(ctx, s.Normalizer().NormalizeName("alice"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	missing, err := s.FindByName(ctx, "NOBODY")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindByEmail(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")

	got, err := s.FindByEmail(ctx, s.Normalizer().NormalizeEmail("a@x.com"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
}

func TestCreateUsersWithoutEmail(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		u := &identity.User{}
		require.NoError(t, s.SetName(ctx, u, name))

		res, err := s.Create(ctx, u)
		require.NoError(t, err)
		require.True(t, res.Succeeded(), "users without an email must not collide: %v", res)
	}

	users, err := s.Users().Slice(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestCreateDuplicateEmailReportsEmailKind(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	createUser(t, s, "alice", "a@x.com")

	dup := &identity.User{}
	require.NoError(t, s.SetName(ctx, dup, "bob"))
	require.NoError(t, s.SetEmail(ctx, dup, "A@X.com"))

	res, err := s.Create(ctx, dup)
	require.NoError(t, err)
	require.False(t, res.Succeeded())
	assert.Equal(t, "DuplicateEmail", res.Errors()[0].Code)
}

type editConflictDescriber struct {
	identity.ErrorDescriber
}

func (editConflictDescriber) ConcurrencyFailure() identity.Error {
	return identity.Error{Code: "EditConflict", Description: "someone edited this record first"}
}

func TestCustomDescriberIsUsed(t *testing.T) {
	acc := inmemory.New()
	base := store.New(acc, identity.UpperInvariantNormalizer{})
	base.Describer = editConflictDescriber{}
	s := store.NewStandardStore(base)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")
	external := identity.KeyToExternal(u.ID)

	stale, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	fresh, err := s.FindByID(ctx, external)
	require.NoError(t, err)

	require.NoError(t, s.SetName(ctx, fresh, "renamed"))
	res, err := s.Update(ctx, fresh)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	require.NoError(t, s.SetName(ctx, stale, "loser"))
	res, err = s.Update(ctx, stale)
	require.NoError(t, err)
	require.False(t, res.Succeeded())
	assert.Equal(t, "EditConflict", res.Errors()[0].Code)
}

func TestCreateDuplicateNameFailsWithResult(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	createUser(t, s, "alice", "a@x.com")

	dup := &identity.User{}
	require.NoError(t, s.SetName(ctx, dup, "ALICE"))
	require.NoError(t, s.SetEmail(ctx, dup, "other@x.com"))

	res, err := s.Create(ctx, dup)
	require.NoError(t, err, "constraint violations surface as a failed result, not an error")
	require.False(t, res.Succeeded())
	assert.Equal(t, "DuplicateUser", res.Errors()[0].Code)
}

func TestUpdateConflictPreservesOtherWriter(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	created := createUser(t, s, "alice", "a@x.com")
	external := identity.KeyToExternal(created.ID)

	first, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	second, err := s.FindByID(ctx, external)
	require.NoError(t, err)

	require.NoError(t, s.SetName(ctx, first, "alice-one"))
	res, err := s.Update(ctx, first)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	require.NoError(t, s.SetName(ctx, second, "alice-two"))
	res, err = s.Update(ctx, second)
	require.NoError(t, err)
	require.False(t, res.Succeeded(), "stale writer must lose")
	assert.Equal(t, "ConcurrencyFailure", res.Errors()[0].Code)

	reloaded, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	assert.Equal(t, "alice-one", reloaded.Name, "stored row keeps the winner's change")
}

func TestDeleteCascadesCredentialSection(t *testing.T) {
	s, acc := newStandardStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")
	external := identity.KeyToExternal(u.ID)

	loaded, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	require.NoError(t, s.SetPasswordHash(ctx, loaded, "hash"))
	res, err := s.Update(ctx, loaded)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.NotNil(t, acc.CredentialSectionFor(u.ID), "section persisted before delete")

	reloaded, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	res, err = s.Delete(ctx, reloaded)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	gone, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Nil(t, acc.CredentialSectionFor(u.ID), "credential section must not outlive the user")
}

func TestDeleteConflict(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")
	external := identity.KeyToExternal(u.ID)

	stale, err := s.FindByID(ctx, external)
	require.NoError(t, err)

	fresh, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	require.NoError(t, s.SetName(ctx, fresh, "renamed"))
	res, err := s.Update(ctx, fresh)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	res, err = s.Delete(ctx, stale)
	require.NoError(t, err)
	require.False(t, res.Succeeded())
	assert.Equal(t, "ConcurrencyFailure", res.Errors()[0].Code)
}

func TestPasswordPersistsOnUpdate(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")
	external := identity.KeyToExternal(u.ID)

	loaded, err := s.FindByID(ctx, external)
	require.NoError(t, err)

	hasPassword, err := s.HasPassword(ctx, loaded)
	require.NoError(t, err)
	require.False(t, hasPassword)

	require.NoError(t, s.SetPasswordHash(ctx, loaded, "bcrypt-hash"))
	res, err := s.Update(ctx, loaded)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	reloaded, err := s.FindByID(ctx, external)
	require.NoError(t, err)

	hasPassword, err = s.HasPassword(ctx, reloaded)
	require.NoError(t, err)
	assert.True(t, hasPassword)

	hash, err := s.GetPasswordHash(ctx, reloaded)
	require.NoError(t, err)
	assert.Equal(t, "bcrypt-hash", hash)
}

func TestSettersAreInMemoryOnly(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")
	external := identity.KeyToExternal(u.ID)

	loaded, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	require.NoError(t, s.SetPasswordHash(ctx, loaded, "staged-only"))

	// No Update call: nothing may reach storage.
	reloaded, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	hasPassword, err := s.HasPassword(ctx, reloaded)
	require.NoError(t, err)
	assert.False(t, hasPassword)
}

func TestEmailConfirmationScenario(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	u := &identity.User{}
	require.NoError(t, s.SetName(ctx, u, "alice"))
	require.NoError(t, s.SetEmail(ctx, u, "a@x.com"))
	require.NoError(t, s.SetPasswordHash(ctx, u, "hash-1"))
	res, err := s.Create(ctx, u)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	found, err := s.FindByName(ctx, s.Normalizer().NormalizeName("alice"))
	require.NoError(t, err)
	require.NotNil(t, found)

	confirmed, err := s.GetEmailConfirmed(ctx, found)
	require.NoError(t, err)
	require.False(t, confirmed)

	require.NoError(t, s.SetEmailConfirmed(ctx, found, true))
	res, err = s.Update(ctx, found)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	reloaded, err := s.FindByName(ctx, "ALICE")
	require.NoError(t, err)
	require.NotNil(t, reloaded)

	confirmed, err = s.GetEmailConfirmed(ctx, reloaded)
	require.NoError(t, err)
	assert.True(t, confirmed)

	hash, err := s.GetPasswordHash(ctx, reloaded)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", hash, "confirming email must not touch the password hash")
}

func TestSecurityStampRaceExactlyOneWinner(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")
	external := identity.KeyToExternal(u.ID)

	first, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	second, err := s.FindByID(ctx, external)
	require.NoError(t, err)

	require.NoError(t, s.SetSecurityStamp(ctx, first, "stamp-one"))
	require.NoError(t, s.SetSecurityStamp(ctx, second, "stamp-two"))

	resFirst, err := s.Update(ctx, first)
	require.NoError(t, err)
	resSecond, err := s.Update(ctx, second)
	require.NoError(t, err)

	require.True(t, resFirst.Succeeded())
	require.False(t, resSecond.Succeeded())
	assert.Equal(t, "ConcurrencyFailure", resSecond.Errors()[0].Code)

	reloaded, err := s.FindByID(ctx, external)
	require.NoError(t, err)
	stamp, err := s.GetSecurityStamp(ctx, reloaded)
	require.NoError(t, err)
	assert.Equal(t, "stamp-one", stamp)
}

func TestQueryableEnumeration(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	createUser(t, s, "bob", "b@x.com")
	createUser(t, s, "alice", "a@x.com")
	createUser(t, s, "carol", "c@x.com")

	users, err := s.Users().Slice(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Name, "enumeration is ordered by normalized name")

	limited, err := s.Users().Limit(2).Slice(ctx)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDisposedStoreFailsFast(t *testing.T) {
	s, _ := newStandardStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice", "a@x.com")
	s.Dispose()

	_, err := s.Create(ctx, &identity.User{})
	assert.ErrorIs(t, err, common.ErrStoreDisposed)

	_, err = s.FindByID(ctx, identity.KeyToExternal(u.ID))
	assert.ErrorIs(t, err, common.ErrStoreDisposed)

	_, err = s.GetEmail(ctx, u)
	assert.ErrorIs(t, err, common.ErrStoreDisposed)

	err = s.SetSecurityStamp(ctx, u, "x")
	assert.ErrorIs(t, err, common.ErrStoreDisposed)
}

func TestCancelledContextFailsBeforeWrite(t *testing.T) {
	s, acc := newStandardStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := &identity.User{Name: "alice"}
	_, err := s.Create(ctx, u)
	require.ErrorIs(t, err, context.Canceled)

	users, err := acc.All().Slice(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users, "cancelled call must not mutate storage")
}

func TestAutoPersistOffBatchesWrites(t *testing.T) {
	acc := inmemory.New()
	base := store.New(acc, identity.UpperInvariantNormalizer{})
	base.AutoPersist = false
	s := store.NewStandardStore(base)
	ctx := context.Background()

	u := &identity.User{}
	require.NoError(t, s.SetName(ctx, u, "alice"))
	require.NoError(t, s.SetEmail(ctx, u, "a@x.com"))
	res, err := s.Create(ctx, u)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	users, err := acc.All().Slice(ctx)
	require.NoError(t, err)
	require.Empty(t, users, "writes stay staged until the caller persists")

	require.NoError(t, acc.Persist(ctx))

	users, err = acc.All().Slice(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
