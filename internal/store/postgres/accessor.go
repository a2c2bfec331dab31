// Package postgres implements the DataAccessor over PostgreSQL via the pgx
// stdlib driver. The public profile lives in the users table and the
// private credential section in user_private_sections, joined 1:1 on the
// user's key with ON DELETE CASCADE.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/identitystore/internal/common"
	"github.com/dmitrijs2005/identitystore/internal/dbx"
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

// Accessor is a PostgreSQL-backed store.DataAccessor. Reads execute
// immediately at materialization; writes are staged and flushed in a single
// transaction by Persist.
type Accessor struct {
	db *sql.DB

	mu      sync.Mutex
	pending []op
}

// New builds an accessor over an open pgx database handle.
func New(db *sql.DB) *Accessor {
	return &Accessor{db: db}
}

const selectUsers = `SELECT u.id, u.name, u.normalized_name, u.email, u.normalized_email, u.row_version,
        s.user_id, s.email_confirmed, s.password_hash, s.security_stamp
   FROM users u
   LEFT JOIN user_private_sections s ON s.user_id = u.id`

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

// ExecuteQuery translates the spec into SQL and scans the joined rows.
func (a *Accessor) ExecuteQuery(ctx context.Context, spec store.QuerySpec) ([]*identity.User, error) {
	query, args := buildSelect(spec)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func buildSelect(spec store.QuerySpec) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(selectUsers)

	var conds []string
	if spec.HasKey {
		args = append(args, spec.Key)
		conds = append(conds, "u.id = $"+strconv.Itoa(len(args)))
	}
	if spec.NormalizedName != nil {
		args = append(args, *spec.NormalizedName)
		conds = append(conds, "u.normalized_name = $"+strconv.Itoa(len(args)))
	}
	if spec.NormalizedEmail != nil {
		args = append(args, *spec.NormalizedEmail)
		conds = append(conds, "u.normalized_email = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY u.normalized_name, u.id")
	if spec.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(spec.Limit))
	}
	return b.String(), args
}

func scanUser(rows *sql.Rows) (*identity.User, error) {
	var (
		u              identity.User
		sectionUserID  sql.NullString
		emailConfirmed sql.NullBool
		passwordHash   sql.NullString
		securityStamp  sql.NullString
	)
	err := rows.Scan(&u.ID, &u.Name, &u.NormalizedName, &u.Email, &u.NormalizedEmail, &u.RowVersion,
		&sectionUserID, &emailConfirmed, &passwordHash, &securityStamp)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if sectionUserID.Valid {
		u.AttachCredentials(&identity.CredentialSection{
			UserID:         u.ID,
			EmailConfirmed: emailConfirmed.Bool,
			PasswordHash:   passwordHash.String,
			SecurityStamp:  securityStamp.String,
		})
	}
	return &u, nil
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

// Persist flushes every staged operation in one transaction. Staged
// operations are consumed whether the flush succeeds or not; a failed
// batch rolls back entirely.
func (a *Accessor) Persist(ctx context.Context) error {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Row-version bumps and generated keys land on the caller's objects
	// only after the transaction commits: a rolled-back batch must leave
	// them as they were read, so a retry does not report a stale version.
	var commits []func()
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, o := range pending {
			var (
				commit func()
				err    error
			)
			switch o.kind {
			case opAdd:
				commit, err = insertUser(ctx, tx, o.user)
			case opUpdate:
				commit, err = updateUser(ctx, tx, o.user)
			case opRemove:
				err = deleteUser(ctx, tx, o.user)
			}
			if err != nil {
				return err
			}
			if commit != nil {
				commits = append(commits, commit)
			}
		}
		return nil
	})
	if err != nil {
		return mapConstraintError(err)
	}
	for _, commit := range commits {
		commit()
	}
	return nil
}

func insertUser(ctx context.Context, tx dbx.DBTX, u *identity.User) (func(), error) {
	id := u.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	query :=
		`INSERT INTO users (id, name, normalized_name, email, normalized_email, row_version)
		 VALUES ($1, $2, $3, $4, $5, 1)
		 `
	if _, err := tx.ExecContext(ctx, query,
		id, u.Name, u.NormalizedName, u.Email, u.NormalizedEmail); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := upsertSection(ctx, tx, id, u); err != nil {
		return nil, err
	}
	return func() {
		u.ID = id
		u.RowVersion = 1
	}, nil
}

func updateUser(ctx context.Context, tx dbx.DBTX, u *identity.User) (func(), error) {
	query :=
		`UPDATE users SET name = $1, normalized_name = $2, email = $3, normalized_email = $4,
		        row_version = row_version + 1
		 WHERE id = $5 AND row_version = $6
		 `
	n, err := dbx.ExecCountRows(ctx, tx, query,
		u.Name, u.NormalizedName, u.Email, u.NormalizedEmail, u.ID, u.RowVersion)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: id %s", common.ErrConcurrency, u.ID)
	}

	if err := upsertSection(ctx, tx, u.ID, u); err != nil {
		return nil, err
	}
	return func() { u.RowVersion++ }, nil
}

func upsertSection(ctx context.Context, tx dbx.DBTX, id uuid.UUID, u *identity.User) error {
	sec := u.CredentialsIfPresent()
	if sec == nil {
		return nil
	}

	query :=
		`INSERT INTO user_private_sections (user_id, email_confirmed, password_hash, security_stamp)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		    SET email_confirmed = EXCLUDED.email_confirmed,
		        password_hash = EXCLUDED.password_hash,
		        security_stamp = EXCLUDED.security_stamp
		 `
	if _, err := tx.ExecContext(ctx, query,
		id, sec.EmailConfirmed, sec.PasswordHash, sec.SecurityStamp); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func deleteUser(ctx context.Context, tx dbx.DBTX, u *identity.User) error {
	// The credential section goes with the row via ON DELETE CASCADE.
	query :=
		`DELETE FROM users
		 WHERE id = $1 AND row_version = $2
		 `
	n, err := dbx.ExecCountRows(ctx, tx, query, u.ID, u.RowVersion)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %s", common.ErrConcurrency, u.ID)
	}
	return nil
}

// mapConstraintError converts uniqueness and foreign-key violations into
// the common.ErrDuplicate sentinels so no raw driver error crosses the
// store boundary. The original error stays in the chain for logging.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503": // unique_violation, foreign_key_violation
			if pgErr.ConstraintName == "ux_users_normalized_email" {
				return fmt.Errorf("%w: %s", common.ErrDuplicateEmail, pgErr.Message)
			}
			return fmt.Errorf("%w: %s", common.ErrDuplicate, pgErr.Message)
		}
	}
	return err
}

var _ store.DataAccessor = (*Accessor)(nil)
