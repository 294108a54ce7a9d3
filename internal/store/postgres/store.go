// Package postgres implements karting.Store on PostgreSQL with pgx and
// squirrel. A transaction opened by RunInTx travels in the context; every
// query made with that context runs inside it.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"karting-platform/internal/karting"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ karting.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RunInTx joins the transaction already carried by ctx, if any.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", mapErr(err))
	}
	return nil
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// constraintFields maps unique constraints to the form field they guard.
var constraintFields = map[string]string{
	"users_username_key":                "username",
	"users_email_lower_idx":             "email",
	"race_categories_name_key":          "name",
	"race_participations_user_race_key": "race",
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return karting.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return &karting.ConflictError{Field: constraintFields[pgErr.ConstraintName]}
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", karting.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

// likePattern wraps a search term for a substring ILIKE match.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}
