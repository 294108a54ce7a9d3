package postgres

import (
	"context"

	"karting-platform/internal/karting"
)

func (s *Store) LogAction(ctx context.Context, actorID *int64, action, details string) error {
	q := psql.Insert("audit_logs").
		Columns("actor_id", "action", "details").
		Values(actorID, action, details)
	_, err := s.qExec(ctx, q)
	return mapErr(err)
}

func (s *Store) AuditLog(ctx context.Context, limit int) ([]karting.AuditEntry, error) {
	q := psql.Select("l.id", "l.created_at", "COALESCE(u.username, '(none)')", "l.action", "l.details").
		From("audit_logs l").
		LeftJoin("users u ON u.id = l.actor_id").
		OrderBy("l.id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	rows, err := s.qQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []karting.AuditEntry
	for rows.Next() {
		var e karting.AuditEntry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Actor, &e.Action, &e.Details); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
