package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"karting-platform/internal/karting"
)

var participationColumns = []string{
	"p.id", "p.user_id", "p.race_id", "p.kart_id", "p.date_registered",
	"u.username", "r.name", "r.date", "k.name",
}

func participationsFrom() sq.SelectBuilder {
	return psql.Select(participationColumns...).
		From("race_participations p").
		Join("users u ON u.id = p.user_id").
		Join("races r ON r.id = p.race_id").
		Join("karts k ON k.id = p.kart_id")
}

func scanParticipation(row pgx.Row) (*karting.Participation, error) {
	var (
		p        karting.Participation
		raceDate time.Time
	)
	err := row.Scan(&p.ID, &p.UserID, &p.RaceID, &p.KartID, &p.DateRegistered,
		&p.Username, &p.RaceName, &raceDate, &p.KartName)
	if err != nil {
		return nil, mapErr(err)
	}
	p.RaceDate = karting.DateOf(raceDate)
	return &p, nil
}

func (s *Store) CreateParticipation(ctx context.Context, p *karting.Participation) error {
	q := psql.Insert("race_participations").
		Columns("user_id", "race_id", "kart_id", "date_registered").
		Values(p.UserID, p.RaceID, p.KartID, p.DateRegistered).
		Suffix("RETURNING id")
	if err := s.qRow(ctx, q).Scan(&p.ID); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) Participation(ctx context.Context, userID, raceID int64) (*karting.Participation, error) {
	return scanParticipation(s.qRow(ctx, participationsFrom().Where(sq.Eq{"p.user_id": userID, "p.race_id": raceID})))
}

func (s *Store) ListParticipations(ctx context.Context, pq karting.ParticipationQuery) ([]karting.Participation, error) {
	q := participationsFrom().OrderBy("p.date_registered DESC", "p.id DESC")
	if pq.UserID != 0 {
		q = q.Where(sq.Eq{"p.user_id": pq.UserID})
	}
	if pq.Search != "" {
		p := likePattern(pq.Search)
		q = q.Where(sq.Or{sq.ILike{"u.username": p}, sq.ILike{"r.name": p}, sq.ILike{"k.name": p}})
	}
	rows, err := s.qQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []karting.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// releaseSQL deletes participations and credits each kart once per deleted
// row in the same statement.
const releaseSQL = `
WITH deleted AS (
    DELETE FROM race_participations WHERE %s RETURNING kart_id
), counts AS (
    SELECT kart_id, count(*) AS n FROM deleted GROUP BY kart_id
), restored AS (
    UPDATE karts k SET available_quantity = k.available_quantity + counts.n
    FROM counts WHERE k.id = counts.kart_id
    RETURNING k.id
)
SELECT COALESCE(SUM(n), 0)::int FROM counts`

func (s *Store) ReleaseParticipations(ctx context.Context, f karting.ParticipationFilter) (int, error) {
	cond, err := releaseCondition(f)
	if err != nil {
		return 0, err
	}
	where, args, err := cond.ToSql()
	if err != nil {
		return 0, err
	}
	sql, err := sq.Dollar.ReplacePlaceholders(fmt.Sprintf(releaseSQL, where))
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.conn(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func releaseCondition(f karting.ParticipationFilter) (sq.Sqlizer, error) {
	switch {
	case f.CategoryID != 0:
		return sq.Expr("race_id IN (SELECT id FROM races WHERE category_id = ?)", f.CategoryID), nil
	case f.ID != 0:
		return sq.Eq{"id": f.ID}, nil
	case f.RaceID != 0:
		return sq.Eq{"race_id": f.RaceID}, nil
	case f.UserID != 0:
		return sq.Eq{"user_id": f.UserID}, nil
	}
	return nil, errors.New("empty participation filter")
}
