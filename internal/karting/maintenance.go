package karting

import (
	"context"
	"fmt"
)

// ClearPastRegistrations releases every participation of races dated before
// today and returns how many were removed. Each race is cleared in its own
// transaction, so a failed run can simply be repeated; a second run finds
// nothing left and returns 0.
func (s *Service) ClearPastRegistrations(ctx context.Context, actor *User) (int, error) {
	today := s.Today()
	raceIDs, err := s.store.PastRaceIDs(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list past races: %w", err)
	}

	total := 0
	for _, raceID := range raceIDs {
		var n int
		err := s.store.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			n, err = s.store.ReleaseParticipations(ctx, ParticipationFilter{RaceID: raceID})
			return err
		})
		if err != nil {
			return total, fmt.Errorf("clear registrations of race %d: %w", raceID, err)
		}
		total += n
	}

	s.metrics.RegistrationsCleared(total)
	s.log.InfoContext(ctx, "past registrations cleared", "deleted", total, "races", len(raceIDs), "before", today.String())
	s.audit(ctx, actor, "clear_registrations", fmt.Sprintf("deleted=%d", total))
	return total, nil
}

func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	entries, err := s.store.AuditLog(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	return entries, nil
}
