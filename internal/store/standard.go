package store

// StandardStore composes the base store with every capability adapter on
// one concrete type. The base is embedded directly so its methods resolve
// at depth one; each adapter shares the same underlying *Store, so a
// StandardStore behaves as a single store however it is reached.
type StandardStore struct {
	*Store
	EmailStore
	PasswordStore
	SecurityStampStore
	QueryableStore
}

// NewStandardStore builds the full capability set over one shared base.
func NewStandardStore(base *Store) *StandardStore {
	return &StandardStore{
		Store:              base,
		EmailStore:         NewEmailStore(base),
		PasswordStore:      NewPasswordStore(base),
		SecurityStampStore: NewSecurityStampStore(base),
		QueryableStore:     NewQueryableStore(base),
	}
}

var (
	_ UserStore              = (*StandardStore)(nil)
	_ UserEmailStore         = (*StandardStore)(nil)
	_ UserPasswordStore      = (*StandardStore)(nil)
	_ UserSecurityStampStore = (*StandardStore)(nil)
	_ QueryableUserStore     = (*StandardStore)(nil)
)
