package identity

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/identitystore/internal/common"
)

// KeyFromExternal converts the opaque external identifier representation
// into the typed key. An empty external id yields the zero key, not an
// error; anything else must parse as a UUID or the call fails with
// common.ErrInvalidKeyFormat.
func KeyFromExternal(external string) (uuid.UUID, error) {
	if external == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(external)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", common.ErrInvalidKeyFormat, external)
	}
	return id, nil
}

// KeyToExternal converts a typed key to its external representation. The
// zero key maps to the empty string, the single sentinel for "no external
// id".
func KeyToExternal(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
