package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"karting-platform/internal/karting"
)

/* ===================== CATEGORIES ===================== */

var categoryColumns = []string{"id", "name", "description", "min_age", "max_age"}

func scanCategory(row pgx.Row) (*karting.RaceCategory, error) {
	var c karting.RaceCategory
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.MinAge, &c.MaxAge); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *karting.RaceCategory) error {
	q := psql.Insert("race_categories").
		Columns("name", "description", "min_age", "max_age").
		Values(c.Name, c.Description, c.MinAge, c.MaxAge).
		Suffix("RETURNING id")
	if err := s.qRow(ctx, q).Scan(&c.ID); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *karting.RaceCategory) error {
	q := psql.Update("race_categories").
		Set("name", c.Name).
		Set("description", c.Description).
		Set("min_age", c.MinAge).
		Set("max_age", c.MaxAge).
		Where(sq.Eq{"id": c.ID})
	return mustAffect(s.qExec(ctx, q))
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return mustAffect(s.qExec(ctx, psql.Delete("race_categories").Where(sq.Eq{"id": id})))
}

func (s *Store) CategoryByID(ctx context.Context, id int64) (*karting.RaceCategory, error) {
	return scanCategory(s.qRow(ctx, psql.Select(categoryColumns...).From("race_categories").Where(sq.Eq{"id": id})))
}

func (s *Store) ListCategories(ctx context.Context, search string) ([]karting.RaceCategory, error) {
	q := psql.Select(categoryColumns...).From("race_categories").OrderBy("name", "id")
	if search != "" {
		q = q.Where(sq.ILike{"name": likePattern(search)})
	}
	rows, err := s.qQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []karting.RaceCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

/* ===================== KARTS ===================== */

var kartColumns = []string{
	"k.id", "k.name", "k.category_id", "c.name", "k.speed", "k.description", "k.available_quantity",
}

func kartsFrom() sq.SelectBuilder {
	return psql.Select().From("karts k").Join("race_categories c ON c.id = k.category_id")
}

func scanKart(row pgx.Row) (*karting.Kart, error) {
	var k karting.Kart
	err := row.Scan(&k.ID, &k.Name, &k.CategoryID, &k.CategoryName, &k.Speed, &k.Description, &k.AvailableQuantity)
	if err != nil {
		return nil, mapErr(err)
	}
	return &k, nil
}

func (s *Store) queryKarts(ctx context.Context, q sq.SelectBuilder) ([]karting.Kart, error) {
	rows, err := s.qQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []karting.Kart
	for rows.Next() {
		k, err := scanKart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (s *Store) CreateKart(ctx context.Context, k *karting.Kart) error {
	q := psql.Insert("karts").
		Columns("name", "category_id", "speed", "description", "available_quantity").
		Values(k.Name, k.CategoryID, k.Speed, k.Description, k.AvailableQuantity).
		Suffix("RETURNING id")
	if err := s.qRow(ctx, q).Scan(&k.ID); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) UpdateKart(ctx context.Context, k *karting.Kart) error {
	q := psql.Update("karts").
		Set("name", k.Name).
		Set("category_id", k.CategoryID).
		Set("speed", k.Speed).
		Set("description", k.Description).
		Set("available_quantity", k.AvailableQuantity).
		Where(sq.Eq{"id": k.ID})
	return mustAffect(s.qExec(ctx, q))
}

func (s *Store) DeleteKart(ctx context.Context, id int64) error {
	return mustAffect(s.qExec(ctx, psql.Delete("karts").Where(sq.Eq{"id": id})))
}

func (s *Store) KartByID(ctx context.Context, id int64) (*karting.Kart, error) {
	return scanKart(s.qRow(ctx, kartsFrom().Columns(kartColumns...).Where(sq.Eq{"k.id": id})))
}

func (s *Store) ListKarts(ctx context.Context, kq karting.KartQuery) ([]karting.Kart, int, error) {
	base := kartsFrom()
	if kq.Search != "" {
		p := likePattern(kq.Search)
		base = base.Where(sq.Or{sq.ILike{"k.name": p}, sq.ILike{"c.name": p}})
	}

	var total int
	if err := s.qRow(ctx, base.Columns("count(*)")).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	q := base.Columns(kartColumns...)
	if kq.OrderBySpeed {
		q = q.OrderBy("k.speed DESC", "k.id")
	} else {
		q = q.OrderBy("c.name", "k.id")
	}
	if kq.Limit > 0 {
		q = q.Limit(uint64(kq.Limit))
	}
	if kq.Offset > 0 {
		q = q.Offset(uint64(kq.Offset))
	}
	karts, err := s.queryKarts(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	return karts, total, nil
}

func (s *Store) AvailableKarts(ctx context.Context, categoryID int64) ([]karting.Kart, error) {
	q := kartsFrom().Columns(kartColumns...).
		Where(sq.Eq{"k.category_id": categoryID}).
		Where(sq.Gt{"k.available_quantity": 0}).
		OrderBy("k.name", "k.id")
	return s.queryKarts(ctx, q)
}

// TakeKart is a single conditional update, so two registrations can never
// drive the quantity below zero.
func (s *Store) TakeKart(ctx context.Context, kartID, categoryID int64) error {
	q := psql.Update("karts").
		Set("available_quantity", sq.Expr("available_quantity - 1")).
		Where(sq.Eq{"id": kartID, "category_id": categoryID}).
		Where(sq.Gt{"available_quantity": 0})
	return mustAffect(s.qExec(ctx, q))
}
