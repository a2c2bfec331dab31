package identity

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer produces the canonical form of a name or email used for
// lookups. Implementations must be pure, deterministic and idempotent:
// normalizing an already-normalized value returns it unchanged.
type Normalizer interface {
	NormalizeName(name string) string
	NormalizeEmail(email string) string
}

// PassthroughNormalizer returns its input unchanged, deferring
// case-insensitivity to the storage layer's collation. It is the default.
type PassthroughNormalizer struct{}

func (PassthroughNormalizer) NormalizeName(name string) string { return name }

func (PassthroughNormalizer) NormalizeEmail(email string) string { return email }

// UpperInvariantNormalizer upper-cases names and emails with
// locale-independent folding, producing a stable lookup key regardless of
// storage collation.
type UpperInvariantNormalizer struct{}

// cases.Caser carries mutable transformer state, so one is built per call.
func (UpperInvariantNormalizer) NormalizeName(name string) string {
	return cases.Upper(language.Und).String(name)
}

func (UpperInvariantNormalizer) NormalizeEmail(email string) string {
	return cases.Upper(language.Und).String(email)
}
