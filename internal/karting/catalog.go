package karting

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

func (s *Service) ListCategories(ctx context.Context, search string) ([]RaceCategory, error) {
	cats, err := s.store.ListCategories(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *Service) Category(ctx context.Context, id int64) (*RaceCategory, error) {
	c, err := s.store.CategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("category %d: %w", id, err)
	}
	return c, nil
}

func (s *Service) CreateCategory(ctx context.Context, actor *User, f CategoryForm) (*RaceCategory, error) {
	c, errs := f.clean()
	if err := errs.err(); err != nil {
		return nil, err
	}
	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return nil, categoryWriteErr(err)
	}
	s.log.InfoContext(ctx, "category created", "category_id", c.ID, "name", c.Name)
	s.audit(ctx, actor, "create_category", c.Name)
	return &c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, actor *User, id int64, f CategoryForm) (*RaceCategory, error) {
	c, errs := f.clean()
	if err := errs.err(); err != nil {
		return nil, err
	}
	c.ID = id
	if err := s.store.UpdateCategory(ctx, &c); err != nil {
		return nil, categoryWriteErr(err)
	}
	s.audit(ctx, actor, "update_category", fmt.Sprintf("category_id=%d", id))
	return &c, nil
}

// DeleteCategory removes a category together with its karts and races. The
// registrations of its races are released first: a race may have been moved
// into the category after karts of another category were taken for it.
func (s *Service) DeleteCategory(ctx context.Context, actor *User, id int64) error {
	var released int
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		n, err := s.store.ReleaseParticipations(ctx, ParticipationFilter{CategoryID: id})
		if err != nil {
			return err
		}
		released = n
		return s.store.DeleteCategory(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.log.InfoContext(ctx, "category deleted", "category_id", id, "released", released)
	s.audit(ctx, actor, "delete_category", fmt.Sprintf("category_id=%d", id))
	return nil
}

func categoryWriteErr(err error) error {
	if errors.Is(err, ErrConflict) {
		return FieldErrors{"name": "Race category with this name already exists."}
	}
	return fmt.Errorf("write category: %w", err)
}

// ListKarts searches kart and category names and orders by category name.
func (s *Service) ListKarts(ctx context.Context, search string, page int) (Page[Kart], error) {
	if page < 1 {
		page = 1
	}
	limit, offset := pageWindow(page, s.kartPageSize)
	karts, total, err := s.store.ListKarts(ctx, KartQuery{
		Search: strings.TrimSpace(search),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return Page[Kart]{}, fmt.Errorf("list karts: %w", err)
	}
	if page > 1 && offset >= total {
		return Page[Kart]{}, fmt.Errorf("kart page %d: %w", page, ErrNotFound)
	}
	return newPage(karts, page, s.kartPageSize, total), nil
}

// PopularKarts returns the n fastest karts.
func (s *Service) PopularKarts(ctx context.Context, n int) ([]Kart, error) {
	karts, _, err := s.store.ListKarts(ctx, KartQuery{Limit: n, OrderBySpeed: true})
	if err != nil {
		return nil, fmt.Errorf("popular karts: %w", err)
	}
	return karts, nil
}

func (s *Service) Kart(ctx context.Context, id int64) (*Kart, error) {
	k, err := s.store.KartByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("kart %d: %w", id, err)
	}
	return k, nil
}

func (s *Service) CreateKart(ctx context.Context, actor *User, f KartForm) (*Kart, error) {
	k, errs := f.clean()
	if err := s.checkCategoryChoice(ctx, k.CategoryID, errs); err != nil {
		return nil, err
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if err := s.store.CreateKart(ctx, &k); err != nil {
		return nil, fmt.Errorf("create kart: %w", err)
	}
	s.log.InfoContext(ctx, "kart created", "kart_id", k.ID, "name", k.Name)
	s.audit(ctx, actor, "create_kart", k.Name)
	return s.Kart(ctx, k.ID)
}

func (s *Service) UpdateKart(ctx context.Context, actor *User, id int64, f KartForm) (*Kart, error) {
	k, errs := f.clean()
	if err := s.checkCategoryChoice(ctx, k.CategoryID, errs); err != nil {
		return nil, err
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	k.ID = id
	if err := s.store.UpdateKart(ctx, &k); err != nil {
		return nil, fmt.Errorf("update kart %d: %w", id, err)
	}
	s.audit(ctx, actor, "update_kart", fmt.Sprintf("kart_id=%d", id))
	return s.Kart(ctx, id)
}

// DeleteKart removes a kart and the participations that used it.
func (s *Service) DeleteKart(ctx context.Context, actor *User, id int64) error {
	if err := s.store.DeleteKart(ctx, id); err != nil {
		return fmt.Errorf("delete kart %d: %w", id, err)
	}
	s.log.InfoContext(ctx, "kart deleted", "kart_id", id)
	s.audit(ctx, actor, "delete_kart", fmt.Sprintf("kart_id=%d", id))
	return nil
}

// AvailableKarts lists the karts a user may pick for the race: same
// category, stock left.
func (s *Service) AvailableKarts(ctx context.Context, raceID int64) ([]Kart, error) {
	race, err := s.store.RaceByID(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("race %d: %w", raceID, err)
	}
	karts, err := s.store.AvailableKarts(ctx, race.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("available karts: %w", err)
	}
	return karts, nil
}

// checkCategoryChoice adds a field error when the category does not exist.
func (s *Service) checkCategoryChoice(ctx context.Context, categoryID int64, errs FieldErrors) error {
	if categoryID <= 0 {
		return nil
	}
	_, err := s.store.CategoryByID(ctx, categoryID)
	switch {
	case errors.Is(err, ErrNotFound):
		errs.add("category_id", msgChoice)
	case err != nil:
		return fmt.Errorf("lookup category: %w", err)
	}
	return nil
}
