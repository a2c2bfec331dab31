package identity

import (
	"fmt"
	"strings"
)

// Error is a named error kind carried by a failed Result. The catalog is
// open: any component may mint new kinds without the stores changing.
type Error struct {
	Code        string
	Description string
}

// Result is the uniform outcome of a mutating store operation.
type Result struct {
	succeeded bool
	errs      []Error
}

// Success returns a succeeded Result.
func Success() Result {
	return Result{succeeded: true}
}

// Failed returns a Result carrying the given errors.
func Failed(errs ...Error) Result {
	return Result{errs: errs}
}

// Succeeded reports whether the operation completed.
func (r Result) Succeeded() bool { return r.succeeded }

// Errors returns the error kinds attached to a failed result.
func (r Result) Errors() []Error { return r.errs }

func (r Result) String() string {
	if r.succeeded {
		return "Succeeded"
	}
	codes := make([]string, 0, len(r.errs))
	for _, e := range r.errs {
		codes = append(codes, e.Code)
	}
	return "Failed: " + strings.Join(codes, ",")
}

// Describer mints the error kinds the stores report. Deployments plug their
// own catalog into a store by implementing it, typically by embedding
// ErrorDescriber and overriding individual kinds.
type Describer interface {
	ConcurrencyFailure() Error
	DuplicateUser(name string) Error
	DuplicateEmail(email string) Error
	InvalidKeyFormat(external string) Error
	DefaultError(err error) Error
}

// ErrorDescriber is the default Describer catalog.
type ErrorDescriber struct{}

var _ Describer = ErrorDescriber{}

// ConcurrencyFailure signals a detected write-write race on update/delete.
func (ErrorDescriber) ConcurrencyFailure() Error {
	return Error{
		Code:        "ConcurrencyFailure",
		Description: "the record was modified by another writer; reload and retry",
	}
}

// DuplicateUser signals a uniqueness or constraint violation on the user row.
func (ErrorDescriber) DuplicateUser(name string) Error {
	return Error{
		Code:        "DuplicateUser",
		Description: fmt.Sprintf("a user with name %q already exists or violates a constraint", name),
	}
}

// DuplicateEmail signals a uniqueness violation on the normalized email.
func (ErrorDescriber) DuplicateEmail(email string) Error {
	return Error{
		Code:        "DuplicateEmail",
		Description: fmt.Sprintf("email %q is already taken", email),
	}
}

// InvalidKeyFormat signals an external id that cannot be parsed to the key
// type.
func (ErrorDescriber) InvalidKeyFormat(external string) Error {
	return Error{
		Code:        "InvalidKeyFormat",
		Description: fmt.Sprintf("%q is not a valid identifier", external),
	}
}

// DefaultError wraps an unclassified failure.
func (ErrorDescriber) DefaultError(err error) Error {
	return Error{
		Code:        "DefaultError",
		Description: err.Error(),
	}
}
