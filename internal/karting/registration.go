package karting

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Registration outcomes as reported to Metrics.
const (
	OutcomeRegistered        = "registered"
	OutcomeUnauthenticated   = "unauthenticated"
	OutcomeNotFound          = "not_found"
	OutcomeRaceFull          = "race_full"
	OutcomeAlreadyRegistered = "already_registered"
	OutcomeIneligible        = "ineligible"
	OutcomeInvalidSelection  = "invalid_selection"
	OutcomeError             = "error"
)

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeRegistered
	case errors.Is(err, ErrUnauthenticated):
		return OutcomeUnauthenticated
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrRaceFull):
		return OutcomeRaceFull
	case errors.Is(err, ErrAlreadyRegistered):
		return OutcomeAlreadyRegistered
	case errors.Is(err, ErrIneligibleAge):
		return OutcomeIneligible
	case errors.Is(err, ErrInvalidSelection):
		return OutcomeInvalidSelection
	}
	return OutcomeError
}

// checkRegistrable applies the registration preconditions in order: the
// viewer is authenticated, the race exists, it has room, and the viewer is
// not registered yet. Age is checked last and only when enforced.
func (s *Service) checkRegistrable(ctx context.Context, viewer *User, raceID int64) (*Race, error) {
	if viewer == nil {
		return nil, ErrUnauthenticated
	}
	race, err := s.store.RaceByID(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("race %d: %w", raceID, err)
	}
	if err := s.checkSlot(ctx, viewer, race); err != nil {
		return nil, err
	}
	return race, nil
}

func (s *Service) checkSlot(ctx context.Context, viewer *User, race *Race) error {
	if race.IsFull() {
		return ErrRaceFull
	}
	_, err := s.store.Participation(ctx, viewer.ID, race.ID)
	switch {
	case err == nil:
		return ErrAlreadyRegistered
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("lookup participation: %w", err)
	}
	if s.enforceEligibility && !race.IsUserEligible(viewer, s.Today()) {
		return ErrIneligibleAge
	}
	return nil
}

// RegistrationForm returns the race and its kart choices, after the same
// precondition checks Register performs.
func (s *Service) RegistrationForm(ctx context.Context, viewer *User, raceID int64) (*RegistrationContext, error) {
	race, err := s.checkRegistrable(ctx, viewer, raceID)
	if err != nil {
		return nil, err
	}
	return s.registrationContext(ctx, race)
}

// RegistrationChoices returns the form context without precondition checks;
// it is used to re-render the form after an invalid kart was submitted.
func (s *Service) RegistrationChoices(ctx context.Context, raceID int64) (*RegistrationContext, error) {
	race, err := s.Race(ctx, raceID)
	if err != nil {
		return nil, err
	}
	return s.registrationContext(ctx, race)
}

func (s *Service) registrationContext(ctx context.Context, race *Race) (*RegistrationContext, error) {
	karts, err := s.store.AvailableKarts(ctx, race.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("available karts: %w", err)
	}
	if karts == nil {
		karts = []Kart{}
	}
	return &RegistrationContext{Race: *race, Karts: karts}, nil
}

// Register enters the viewer in the race with the chosen kart. The
// participation insert and the kart decrement commit together. The race row
// is locked for the duration so capacity and the one-entry-per-user rule are
// rechecked against committed state.
func (s *Service) Register(ctx context.Context, viewer *User, raceID int64, f RegistrationForm) (*Participation, error) {
	p, err := s.register(ctx, viewer, raceID, f)
	outcome := registrationOutcome(err)
	s.metrics.RegistrationAttempt(outcome)

	switch outcome {
	case OutcomeRegistered:
		s.log.InfoContext(ctx, "registered for race",
			"user_id", viewer.ID, "race_id", raceID, "kart_id", f.KartID, "participation_id", p.ID)
		s.audit(ctx, viewer, "register_race", fmt.Sprintf("race_id=%d kart_id=%d", raceID, f.KartID))
	case OutcomeError:
		s.log.ErrorContext(ctx, "registration failed", "race_id", raceID, "error", err)
	default:
		s.log.WarnContext(ctx, "registration rejected", "race_id", raceID, "outcome", outcome)
	}
	return p, err
}

func (s *Service) register(ctx context.Context, viewer *User, raceID int64, f RegistrationForm) (*Participation, error) {
	if _, err := s.checkRegistrable(ctx, viewer, raceID); err != nil {
		return nil, err
	}
	if f.KartID <= 0 {
		return nil, ErrInvalidSelection
	}

	var p *Participation
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		race, err := s.store.LockRace(ctx, raceID)
		if err != nil {
			return fmt.Errorf("race %d: %w", raceID, err)
		}
		if err := s.checkSlot(ctx, viewer, race); err != nil {
			return err
		}

		if err := s.store.TakeKart(ctx, f.KartID, race.CategoryID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidSelection
			}
			return fmt.Errorf("take kart: %w", err)
		}

		part := &Participation{
			UserID:         viewer.ID,
			RaceID:         race.ID,
			KartID:         f.KartID,
			DateRegistered: s.now().UTC(),
		}
		if err := s.store.CreateParticipation(ctx, part); err != nil {
			if errors.Is(err, ErrConflict) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("create participation: %w", err)
		}
		p = part
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Unregister removes the viewer's participation in the race and returns its
// kart to stock.
func (s *Service) Unregister(ctx context.Context, viewer *User, raceID int64) error {
	if viewer == nil {
		return ErrUnauthenticated
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.store.Participation(ctx, viewer.ID, raceID)
		if err != nil {
			return err
		}
		n, err := s.store.ReleaseParticipations(ctx, ParticipationFilter{ID: p.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unregister from race %d: %w", raceID, err)
	}

	s.metrics.Unregistered()
	s.log.InfoContext(ctx, "unregistered from race", "user_id", viewer.ID, "race_id", raceID)
	s.audit(ctx, viewer, "unregister_race", fmt.Sprintf("race_id=%d", raceID))
	return nil
}

// MyRegistrations lists the viewer's participations, newest first.
func (s *Service) MyRegistrations(ctx context.Context, viewer *User) ([]Participation, error) {
	if viewer == nil {
		return nil, ErrUnauthenticated
	}
	ps, err := s.store.ListParticipations(ctx, ParticipationQuery{UserID: viewer.ID})
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	return ps, nil
}

// ListParticipations searches all participations by user, race or kart name.
func (s *Service) ListParticipations(ctx context.Context, search string) ([]Participation, error) {
	ps, err := s.store.ListParticipations(ctx, ParticipationQuery{Search: strings.TrimSpace(search)})
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	return ps, nil
}
