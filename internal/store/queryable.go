package store

// QueryableStore exposes the full lazy view of identity records for
// administrative enumeration. Paging and further filtering are the
// caller's concern; the view is whatever the accessor provides.
type QueryableStore struct {
	*Store
}

// NewQueryableStore wraps the shared base store with the enumeration
// capability.
func NewQueryableStore(base *Store) QueryableStore {
	return QueryableStore{Store: base}
}

// Users returns the lazy sequence of all identity records, credential
// sections joined.
func (s QueryableStore) Users() Query {
	return s.accessor.All()
}
