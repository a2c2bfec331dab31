// Package cli implements the idadmin command-line application: user
// administration over the capability stores. It is a caller of the store
// layer, so caller-side policies live here — bcrypt for password hashing
// and security-stamp rotation on credential changes.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/identitystore/internal/common"
	"github.com/dmitrijs2005/identitystore/internal/identity"
	"github.com/dmitrijs2005/identitystore/internal/logging"
	"github.com/dmitrijs2005/identitystore/internal/shared"
	"github.com/dmitrijs2005/identitystore/internal/store"
)

// Usage describes the supported subcommands.
const Usage = `usage: idadmin [flags] <command> [args]

commands:
  create                    create a user (prompts for name, email, password)
  list                      list all users
  show <id|name>            show one user
  set-password <id|name>    set a new password (rotates the security stamp)
  confirm-email <id|name>   mark the user's email as confirmed
  delete <id|name>          delete a user and their credentials
`

// App wires the capability stores to an interactive terminal session.
type App struct {
	users     *store.StandardStore
	logger    logging.Logger
	reader    *bufio.Reader
	out       io.Writer
	opTimeout time.Duration
}

// NewApp builds the admin application over a fully composed store.
func NewApp(users *store.StandardStore, logger logging.Logger, in io.Reader, out io.Writer, opTimeout time.Duration) *App {
	return &App{
		users:     users,
		logger:    logger.With("module", "cli"),
		reader:    bufio.NewReader(in),
		out:       out,
		opTimeout: opTimeout,
	}
}

// Run dispatches a single subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, Usage)
		return errors.New("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		return a.createUser(ctx)
	case "list":
		return a.listUsers(ctx)
	case "show":
		return a.withUser(ctx, rest, a.showUser)
	case "set-password":
		return a.withUser(ctx, rest, a.setPassword)
	case "confirm-email":
		return a.withUser(ctx, rest, a.confirmEmail)
	case "delete":
		return a.deleteUser(ctx, rest)
	default:
		fmt.Fprint(a.out, Usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.opTimeout)
}

// resolve finds a user by external id first and falls back to a normalized
// name lookup when the argument is not a valid key.
func (a *App) resolve(ctx context.Context, ref string) (*identity.User, error) {
	u, err := a.users.FindByID(ctx, ref)
	if errors.Is(err, common.ErrInvalidKeyFormat) {
		u, err = a.users.FindByName(ctx, a.users.Normalizer().NormalizeName(ref))
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %q not found", ref)
	}
	return u, nil
}

func (a *App) withUser(ctx context.Context, args []string, fn func(ctx context.Context, u *identity.User) error) error {
	if len(args) == 0 {
		return errors.New("missing user id or name")
	}
	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	u, err := a.resolve(ctx, args[0])
	if err != nil {
		return err
	}
	return fn(ctx, u)
}

func (a *App) createUser(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "User name", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	pw, err := GetPassword(a.out, "Password (empty for none): ")
	if err != nil {
		return err
	}

	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	u := &identity.User{}
	if err := a.users.SetName(ctx, u, name); err != nil {
		return err
	}
	if err := a.users.SetEmail(ctx, u, email); err != nil {
		return err
	}
	if len(pw) > 0 {
		if err := a.applyPassword(ctx, u, pw); err != nil {
			return err
		}
	}

	res, err := a.users.Create(ctx, u)
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return resultError(res)
	}

	a.logger.Info(ctx, "user created", "id", identity.KeyToExternal(u.ID), "name", name)
	fmt.Fprintf(a.out, "created %s\n", identity.KeyToExternal(u.ID))
	return nil
}

func (a *App) listUsers(ctx context.Context) error {
	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	users, err := a.users.Users().Slice(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		confirmed, err := a.users.GetEmailConfirmed(ctx, u)
		if err != nil {
			return err
		}
		hasPassword, err := a.users.HasPassword(ctx, u)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s\t%s\t%s\tconfirmed=%t\tpassword=%t\n",
			identity.KeyToExternal(u.ID), u.Name, u.Email, confirmed, hasPassword)
	}
	fmt.Fprintf(a.out, "%d user(s)\n", len(users))
	return nil
}

func (a *App) showUser(ctx context.Context, u *identity.User) error {
	confirmed, err := a.users.GetEmailConfirmed(ctx, u)
	if err != nil {
		return err
	}
	hasPassword, err := a.users.HasPassword(ctx, u)
	if err != nil {
		return err
	}
	stamp, err := a.users.GetSecurityStamp(ctx, u)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "id:              %s\n", identity.KeyToExternal(u.ID))
	fmt.Fprintf(a.out, "name:            %s\n", u.Name)
	fmt.Fprintf(a.out, "normalized name: %s\n", u.NormalizedName)
	fmt.Fprintf(a.out, "email:           %s\n", u.Email)
	fmt.Fprintf(a.out, "email confirmed: %t\n", confirmed)
	fmt.Fprintf(a.out, "has password:    %t\n", hasPassword)
	fmt.Fprintf(a.out, "security stamp:  %s\n", stamp)
	return nil
}

func (a *App) setPassword(ctx context.Context, u *identity.User) error {
	pw, err := GetPassword(a.out, "New password: ")
	if err != nil {
		return err
	}
	if len(pw) == 0 {
		return errors.New("password must not be empty")
	}
	if err := a.applyPassword(ctx, u, pw); err != nil {
		return err
	}

	res, err := a.users.Update(ctx, u)
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return resultError(res)
	}

	a.logger.Info(ctx, "password updated", "id", identity.KeyToExternal(u.ID))
	fmt.Fprintln(a.out, "password updated")
	return nil
}

func (a *App) confirmEmail(ctx context.Context, u *identity.User) error {
	if err := a.users.SetEmailConfirmed(ctx, u, true); err != nil {
		return err
	}

	res, err := a.users.Update(ctx, u)
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return resultError(res)
	}

	fmt.Fprintln(a.out, "email confirmed")
	return nil
}

func (a *App) deleteUser(ctx context.Context, args []string) error {
	return a.withUser(ctx, args, func(ctx context.Context, u *identity.User) error {
		res, err := a.users.Delete(ctx, u)
		if err != nil {
			return err
		}
		if !res.Succeeded() {
			return resultError(res)
		}
		a.logger.Info(ctx, "user deleted", "id", identity.KeyToExternal(u.ID))
		fmt.Fprintln(a.out, "deleted")
		return nil
	})
}

// applyPassword hashes the plaintext, stores the hash, and rotates the
// security stamp so prior sessions are invalidated. The plaintext buffer is
// wiped before returning.
func (a *App) applyPassword(ctx context.Context, u *identity.User, pw []byte) error {
	hash, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
	shared.WipeByteArray(pw)
	if err != nil {
		return err
	}
	if err := a.users.SetPasswordHash(ctx, u, string(hash)); err != nil {
		return err
	}

	stamp, err := shared.MakeRandHexString(16)
	if err != nil {
		return err
	}
	return a.users.SetSecurityStamp(ctx, u, stamp)
}

func resultError(res identity.Result) error {
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.Description)
	}
	if len(msgs) == 0 {
		return errors.New("operation failed")
	}
	return fmt.Errorf("operation failed: %v", msgs)
}
