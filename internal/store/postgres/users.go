package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"karting-platform/internal/karting"
)

var userColumns = []string{
	"id", "username", "email", "first_name", "last_name", "pass_hash",
	"date_of_birth", "is_staff", "is_active", "created_at",
}

func scanUser(row pgx.Row) (*karting.User, error) {
	var (
		u   karting.User
		dob time.Time
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PassHash,
		&dob, &u.IsStaff, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	u.DateOfBirth = karting.DateOf(dob)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *karting.User) error {
	q := psql.Insert("users").
		Columns("username", "email", "first_name", "last_name", "pass_hash",
			"date_of_birth", "is_staff", "is_active").
		Values(u.Username, u.Email, u.FirstName, u.LastName, u.PassHash,
			u.DateOfBirth.Time, u.IsStaff, u.IsActive).
		Suffix("RETURNING id, created_at")
	if err := s.qRow(ctx, q).Scan(&u.ID, &u.CreatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) userWhere(ctx context.Context, cond sq.Sqlizer) (*karting.User, error) {
	return scanUser(s.qRow(ctx, psql.Select(userColumns...).From("users").Where(cond)))
}

func (s *Store) UserByID(ctx context.Context, id int64) (*karting.User, error) {
	return s.userWhere(ctx, sq.Eq{"id": id})
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*karting.User, error) {
	return s.userWhere(ctx, sq.Eq{"username": username})
}

// UserByEmail matches case-insensitively.
func (s *Store) UserByEmail(ctx context.Context, email string) (*karting.User, error) {
	if email == "" {
		return nil, karting.ErrNotFound
	}
	return s.userWhere(ctx, sq.Expr("lower(email) = lower(?)", email))
}

func (s *Store) ListUsers(ctx context.Context, search string) ([]karting.User, error) {
	q := psql.Select(userColumns...).From("users").OrderBy("id")
	if search != "" {
		p := likePattern(search)
		q = q.Where(sq.Or{
			sq.ILike{"username": p},
			sq.ILike{"email": p},
			sq.ILike{"first_name": p},
			sq.ILike{"last_name": p},
		})
	}
	rows, err := s.qQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []karting.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) SetUserStaff(ctx context.Context, id int64, staff bool) error {
	return mustAffect(s.qExec(ctx, psql.Update("users").Set("is_staff", staff).Where(sq.Eq{"id": id})))
}

// DeleteUser cascades to the user's participations without crediting karts;
// callers release them first.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return mustAffect(s.qExec(ctx, psql.Delete("users").Where(sq.Eq{"id": id})))
}
