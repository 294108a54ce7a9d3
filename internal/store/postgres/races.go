package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"karting-platform/internal/karting"
)

var raceColumns = []string{
	"r.id", "r.name", "r.category_id",
	"c.id", "c.name", "c.description", "c.min_age", "c.max_age",
	"r.date", "r.max_participants",
	"(SELECT count(*) FROM race_participations p WHERE p.race_id = r.id)",
}

func racesFrom() sq.SelectBuilder {
	return psql.Select().From("races r").Join("race_categories c ON c.id = r.category_id")
}

func scanRace(row pgx.Row) (*karting.Race, error) {
	var (
		r    karting.Race
		date time.Time
	)
	err := row.Scan(&r.ID, &r.Name, &r.CategoryID,
		&r.Category.ID, &r.Category.Name, &r.Category.Description, &r.Category.MinAge, &r.Category.MaxAge,
		&date, &r.MaxParticipants, &r.ParticipantsCount)
	if err != nil {
		return nil, mapErr(err)
	}
	r.Date = karting.DateOf(date)
	return &r, nil
}

func (s *Store) CreateRace(ctx context.Context, r *karting.Race) error {
	q := psql.Insert("races").
		Columns("name", "category_id", "date", "max_participants").
		Values(r.Name, r.CategoryID, r.Date.Time, r.MaxParticipants).
		Suffix("RETURNING id")
	if err := s.qRow(ctx, q).Scan(&r.ID); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) UpdateRace(ctx context.Context, r *karting.Race) error {
	q := psql.Update("races").
		Set("name", r.Name).
		Set("category_id", r.CategoryID).
		Set("date", r.Date.Time).
		Set("max_participants", r.MaxParticipants).
		Where(sq.Eq{"id": r.ID})
	return mustAffect(s.qExec(ctx, q))
}

func (s *Store) DeleteRace(ctx context.Context, id int64) error {
	return mustAffect(s.qExec(ctx, psql.Delete("races").Where(sq.Eq{"id": id})))
}

func (s *Store) RaceByID(ctx context.Context, id int64) (*karting.Race, error) {
	return scanRace(s.qRow(ctx, racesFrom().Columns(raceColumns...).Where(sq.Eq{"r.id": id})))
}

// LockRace takes a row lock on the race before reading it with its current
// participant count. Outside a transaction the lock is released at once.
func (s *Store) LockRace(ctx context.Context, id int64) (*karting.Race, error) {
	var locked int64
	q := psql.Select("id").From("races").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE")
	if err := s.qRow(ctx, q).Scan(&locked); err != nil {
		return nil, mapErr(err)
	}
	return s.RaceByID(ctx, id)
}

func (s *Store) ListRaces(ctx context.Context, rq karting.RaceQuery) ([]karting.Race, int, error) {
	base := racesFrom()
	if rq.Search != "" {
		p := likePattern(rq.Search)
		base = base.Where(sq.Or{sq.ILike{"r.name": p}, sq.ILike{"c.name": p}})
	}
	if rq.From != nil {
		base = base.Where(sq.GtOrEq{"r.date": rq.From.Time})
	}

	var total int
	if err := s.qRow(ctx, base.Columns("count(*)")).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	q := base.Columns(raceColumns...).OrderBy("r.date", "r.id")
	if rq.Limit > 0 {
		q = q.Limit(uint64(rq.Limit))
	}
	if rq.Offset > 0 {
		q = q.Offset(uint64(rq.Offset))
	}
	rows, err := s.qQuery(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []karting.Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) PastRaceIDs(ctx context.Context, before karting.Date) ([]int64, error) {
	q := psql.Select("r.id").From("races r").
		Where(sq.Lt{"r.date": before.Time}).
		Where("EXISTS (SELECT 1 FROM race_participations p WHERE p.race_id = r.id)").
		OrderBy("r.date", "r.id")
	rows, err := s.qQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	return ids, nil
}
