package karting

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ListRaces pages through the races the viewer may see. Anonymous and
// non-staff viewers only get races dated today or later; staff see all.
// Races are ordered by date.
func (s *Service) ListRaces(ctx context.Context, viewer *User, search string, page int) (Page[Race], error) {
	if page < 1 {
		page = 1
	}
	limit, offset := pageWindow(page, s.racePageSize)
	q := s.visibleRaces(viewer)
	q.Search = strings.TrimSpace(search)
	q.Limit, q.Offset = limit, offset

	races, total, err := s.store.ListRaces(ctx, q)
	if err != nil {
		return Page[Race]{}, fmt.Errorf("list races: %w", err)
	}
	if page > 1 && offset >= total {
		return Page[Race]{}, fmt.Errorf("race page %d: %w", page, ErrNotFound)
	}
	return newPage(races, page, s.racePageSize, total), nil
}

func (s *Service) visibleRaces(viewer *User) RaceQuery {
	if viewer != nil && viewer.IsStaff {
		return RaceQuery{}
	}
	today := s.Today()
	return RaceQuery{From: &today}
}

// Home returns the three next races and the three fastest karts.
func (s *Service) Home(ctx context.Context, viewer *User) (*Home, error) {
	q := s.visibleRaces(viewer)
	q.Limit = 3
	races, _, err := s.store.ListRaces(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("upcoming races: %w", err)
	}
	karts, err := s.PopularKarts(ctx, 3)
	if err != nil {
		return nil, err
	}
	if races == nil {
		races = []Race{}
	}
	if karts == nil {
		karts = []Kart{}
	}
	return &Home{UpcomingRaces: races, PopularKarts: karts}, nil
}

func (s *Service) Race(ctx context.Context, id int64) (*Race, error) {
	r, err := s.store.RaceByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("race %d: %w", id, err)
	}
	return r, nil
}

// RaceDetail adds the viewer's registration flags to a race.
func (s *Service) RaceDetail(ctx context.Context, viewer *User, id int64) (*RaceDetail, error) {
	race, err := s.Race(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &RaceDetail{
		Race:              *race,
		ParticipantsCount: race.ParticipantsCount,
		IsFull:            race.IsFull(),
		CanRegister:       true,
	}
	if viewer == nil {
		return d, nil
	}

	d.IsEligible = race.IsUserEligible(viewer, s.Today())
	_, err = s.store.Participation(ctx, viewer.ID, id)
	switch {
	case err == nil:
		d.IsRegistered = true
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("lookup participation: %w", err)
	}
	d.CanRegister = !d.IsFull && !d.IsRegistered
	return d, nil
}

func (s *Service) CreateRace(ctx context.Context, actor *User, f RaceForm) (*Race, error) {
	r, errs := f.clean()
	if err := s.checkCategoryChoice(ctx, r.CategoryID, errs); err != nil {
		return nil, err
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if err := s.store.CreateRace(ctx, &r); err != nil {
		return nil, fmt.Errorf("create race: %w", err)
	}
	s.log.InfoContext(ctx, "race created", "race_id", r.ID, "name", r.Name, "date", r.Date.String())
	s.audit(ctx, actor, "create_race", r.Name)
	return s.Race(ctx, r.ID)
}

func (s *Service) UpdateRace(ctx context.Context, actor *User, id int64, f RaceForm) (*Race, error) {
	r, errs := f.clean()
	if err := s.checkCategoryChoice(ctx, r.CategoryID, errs); err != nil {
		return nil, err
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	r.ID = id
	if err := s.store.UpdateRace(ctx, &r); err != nil {
		return nil, fmt.Errorf("update race %d: %w", id, err)
	}
	s.audit(ctx, actor, "update_race", fmt.Sprintf("race_id=%d", id))
	return s.Race(ctx, id)
}

// DeleteRace releases the race's participations, giving their karts back,
// then removes the race.
func (s *Service) DeleteRace(ctx context.Context, actor *User, id int64) error {
	var released int
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.LockRace(ctx, id); err != nil {
			return err
		}
		n, err := s.store.ReleaseParticipations(ctx, ParticipationFilter{RaceID: id})
		if err != nil {
			return err
		}
		released = n
		return s.store.DeleteRace(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete race %d: %w", id, err)
	}
	s.log.InfoContext(ctx, "race deleted", "race_id", id, "released", released)
	s.audit(ctx, actor, "delete_race", fmt.Sprintf("race_id=%d", id))
	return nil
}
