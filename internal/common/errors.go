// Package common defines shared sentinel errors used across the identity
// store layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Accessor-level errors.
	ErrNotFound    = errors.New("not found")
	ErrConcurrency = errors.New("concurrency conflict")
	ErrDuplicate   = errors.New("duplicate or constraint violation")

	// ErrDuplicateEmail narrows ErrDuplicate to the email lookup key;
	// errors.Is matches it against both sentinels.
	ErrDuplicateEmail = fmt.Errorf("%w: email taken", ErrDuplicate)

	// Store-level errors (programming mistakes, fail fast).
	ErrStoreDisposed   = errors.New("store used after dispose")
	ErrInvalidArgument = errors.New("invalid argument")

	// Key conversion errors.
	ErrInvalidKeyFormat = errors.New("invalid key format")
)
