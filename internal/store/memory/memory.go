// Package memory is an in-process karting.Store. A transaction holds the
// store mutex and rolls back by restoring a snapshot.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"karting-platform/internal/karting"
)

type auditRow struct {
	id        int64
	createdAt time.Time
	actorID   *int64
	action    string
	details   string
}

type data struct {
	nextID         int64
	users          map[int64]karting.User
	categories     map[int64]karting.RaceCategory
	karts          map[int64]karting.Kart
	races          map[int64]karting.Race
	participations map[int64]karting.Participation
	logs           []auditRow
}

func (d *data) clone() data {
	c := data{
		nextID:         d.nextID,
		users:          make(map[int64]karting.User, len(d.users)),
		categories:     make(map[int64]karting.RaceCategory, len(d.categories)),
		karts:          make(map[int64]karting.Kart, len(d.karts)),
		races:          make(map[int64]karting.Race, len(d.races)),
		participations: make(map[int64]karting.Participation, len(d.participations)),
		logs:           append([]auditRow(nil), d.logs...),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.karts {
		c.karts[k] = v
	}
	for k, v := range d.races {
		c.races[k] = v
	}
	for k, v := range d.participations {
		c.participations[k] = v
	}
	return c
}

type Store struct {
	mu  sync.Mutex
	d   data
	now func() time.Time
}

var _ karting.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		d: data{
			users:          map[int64]karting.User{},
			categories:     map[int64]karting.RaceCategory{},
			karts:          map[int64]karting.Kart{},
			races:          map[int64]karting.Race{},
			participations: map[int64]karting.Participation{},
		},
		now: time.Now,
	}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the mutex unless ctx already runs inside one of this store's
// transactions.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

func (s *Store) id() int64 {
	s.d.nextID++
	return s.d.nextID
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// window applies limit/offset; limit 0 keeps everything after offset.
func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ---------- Users ----------

func (s *Store) CreateUser(ctx context.Context, u *karting.User) error {
	unlock := s.lock(ctx)
	defer unlock()
	for _, other := range s.d.users {
		if other.Username == u.Username {
			return &karting.ConflictError{Field: "username"}
		}
		if u.Email != "" && strings.EqualFold(other.Email, u.Email) {
			return &karting.ConflictError{Field: "email"}
		}
	}
	u.ID = s.id()
	s.d.users[u.ID] = *u
	return nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*karting.User, error) {
	unlock := s.lock(ctx)
	defer unlock()
	u, ok := s.d.users[id]
	if !ok {
		return nil, karting.ErrNotFound
	}
	return &u, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*karting.User, error) {
	unlock := s.lock(ctx)
	defer unlock()
	for _, u := range s.d.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, karting.ErrNotFound
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*karting.User, error) {
	unlock := s.lock(ctx)
	defer unlock()
	if email == "" {
		return nil, karting.ErrNotFound
	}
	for _, u := range s.d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, karting.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context, search string) ([]karting.User, error) {
	unlock := s.lock(ctx)
	defer unlock()
	out := []karting.User{}
	for _, u := range s.d.users {
		if search == "" || contains(u.Username, search) || contains(u.Email, search) ||
			contains(u.FirstName, search) || contains(u.LastName, search) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetUserStaff(ctx context.Context, id int64, staff bool) error {
	unlock := s.lock(ctx)
	defer unlock()
	u, ok := s.d.users[id]
	if !ok {
		return karting.ErrNotFound
	}
	u.IsStaff = staff
	s.d.users[id] = u
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.users[id]; !ok {
		return karting.ErrNotFound
	}
	delete(s.d.users, id)
	s.cascadeParticipations(func(p karting.Participation) bool { return p.UserID == id })
	for i := range s.d.logs {
		if s.d.logs[i].actorID != nil && *s.d.logs[i].actorID == id {
			s.d.logs[i].actorID = nil
		}
	}
	return nil
}

// cascadeParticipations drops rows the way ON DELETE CASCADE does: no kart
// is credited.
func (s *Store) cascadeParticipations(match func(karting.Participation) bool) {
	for id, p := range s.d.participations {
		if match(p) {
			delete(s.d.participations, id)
		}
	}
}

// ---------- Categories ----------

func (s *Store) CreateCategory(ctx context.Context, c *karting.RaceCategory) error {
	unlock := s.lock(ctx)
	defer unlock()
	if s.categoryNameTaken(c.Name, 0) {
		return &karting.ConflictError{Field: "name"}
	}
	c.ID = s.id()
	s.d.categories[c.ID] = *c
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *karting.RaceCategory) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.categories[c.ID]; !ok {
		return karting.ErrNotFound
	}
	if s.categoryNameTaken(c.Name, c.ID) {
		return &karting.ConflictError{Field: "name"}
	}
	s.d.categories[c.ID] = *c
	return nil
}

func (s *Store) categoryNameTaken(name string, except int64) bool {
	for id, c := range s.d.categories {
		if id != except && c.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.categories[id]; !ok {
		return karting.ErrNotFound
	}
	delete(s.d.categories, id)
	for kid, k := range s.d.karts {
		if k.CategoryID == id {
			delete(s.d.karts, kid)
			s.cascadeParticipations(func(p karting.Participation) bool { return p.KartID == kid })
		}
	}
	for rid, r := range s.d.races {
		if r.CategoryID == id {
			delete(s.d.races, rid)
			s.cascadeParticipations(func(p karting.Participation) bool { return p.RaceID == rid })
		}
	}
	return nil
}

func (s *Store) CategoryByID(ctx context.Context, id int64) (*karting.RaceCategory, error) {
	unlock := s.lock(ctx)
	defer unlock()
	c, ok := s.d.categories[id]
	if !ok {
		return nil, karting.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context, search string) ([]karting.RaceCategory, error) {
	unlock := s.lock(ctx)
	defer unlock()
	out := []karting.RaceCategory{}
	for _, c := range s.d.categories {
		if search == "" || contains(c.Name, search) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---------- Karts ----------

func (s *Store) kartView(k karting.Kart) karting.Kart {
	k.CategoryName = s.d.categories[k.CategoryID].Name
	return k
}

func (s *Store) CreateKart(ctx context.Context, k *karting.Kart) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.categories[k.CategoryID]; !ok {
		return karting.ErrNotFound
	}
	k.ID = s.id()
	s.d.karts[k.ID] = *k
	return nil
}

func (s *Store) UpdateKart(ctx context.Context, k *karting.Kart) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.karts[k.ID]; !ok {
		return karting.ErrNotFound
	}
	if _, ok := s.d.categories[k.CategoryID]; !ok {
		return karting.ErrNotFound
	}
	s.d.karts[k.ID] = *k
	return nil
}

func (s *Store) DeleteKart(ctx context.Context, id int64) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.karts[id]; !ok {
		return karting.ErrNotFound
	}
	delete(s.d.karts, id)
	s.cascadeParticipations(func(p karting.Participation) bool { return p.KartID == id })
	return nil
}

func (s *Store) KartByID(ctx context.Context, id int64) (*karting.Kart, error) {
	unlock := s.lock(ctx)
	defer unlock()
	k, ok := s.d.karts[id]
	if !ok {
		return nil, karting.ErrNotFound
	}
	k = s.kartView(k)
	return &k, nil
}

func (s *Store) ListKarts(ctx context.Context, q karting.KartQuery) ([]karting.Kart, int, error) {
	unlock := s.lock(ctx)
	defer unlock()
	all := []karting.Kart{}
	for _, k := range s.d.karts {
		k = s.kartView(k)
		if q.Search == "" || contains(k.Name, q.Search) || contains(k.CategoryName, q.Search) {
			all = append(all, k)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if q.OrderBySpeed {
			if a.Speed != b.Speed {
				return a.Speed > b.Speed
			}
			return a.ID < b.ID
		}
		if a.CategoryName != b.CategoryName {
			return a.CategoryName < b.CategoryName
		}
		return a.ID < b.ID
	})
	return window(all, q.Limit, q.Offset), len(all), nil
}

func (s *Store) AvailableKarts(ctx context.Context, categoryID int64) ([]karting.Kart, error) {
	unlock := s.lock(ctx)
	defer unlock()
	out := []karting.Kart{}
	for _, k := range s.d.karts {
		if k.CategoryID == categoryID && k.AvailableQuantity > 0 {
			out = append(out, s.kartView(k))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) TakeKart(ctx context.Context, kartID, categoryID int64) error {
	unlock := s.lock(ctx)
	defer unlock()
	k, ok := s.d.karts[kartID]
	if !ok || k.CategoryID != categoryID || k.AvailableQuantity <= 0 {
		return karting.ErrNotFound
	}
	k.AvailableQuantity--
	s.d.karts[kartID] = k
	return nil
}

// ---------- Races ----------

func (s *Store) raceView(r karting.Race) karting.Race {
	r.Category = s.d.categories[r.CategoryID]
	r.ParticipantsCount = 0
	for _, p := range s.d.participations {
		if p.RaceID == r.ID {
			r.ParticipantsCount++
		}
	}
	return r
}

func (s *Store) CreateRace(ctx context.Context, r *karting.Race) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.categories[r.CategoryID]; !ok {
		return karting.ErrNotFound
	}
	r.ID = s.id()
	stored := *r
	stored.Category = karting.RaceCategory{}
	stored.ParticipantsCount = 0
	s.d.races[r.ID] = stored
	return nil
}

func (s *Store) UpdateRace(ctx context.Context, r *karting.Race) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.races[r.ID]; !ok {
		return karting.ErrNotFound
	}
	if _, ok := s.d.categories[r.CategoryID]; !ok {
		return karting.ErrNotFound
	}
	stored := *r
	stored.Category = karting.RaceCategory{}
	stored.ParticipantsCount = 0
	s.d.races[r.ID] = stored
	return nil
}

func (s *Store) DeleteRace(ctx context.Context, id int64) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.races[id]; !ok {
		return karting.ErrNotFound
	}
	delete(s.d.races, id)
	s.cascadeParticipations(func(p karting.Participation) bool { return p.RaceID == id })
	return nil
}

func (s *Store) RaceByID(ctx context.Context, id int64) (*karting.Race, error) {
	unlock := s.lock(ctx)
	defer unlock()
	r, ok := s.d.races[id]
	if !ok {
		return nil, karting.ErrNotFound
	}
	r = s.raceView(r)
	return &r, nil
}

// LockRace needs no row lock here: the transaction already holds the store
// mutex.
func (s *Store) LockRace(ctx context.Context, id int64) (*karting.Race, error) {
	return s.RaceByID(ctx, id)
}

func (s *Store) ListRaces(ctx context.Context, q karting.RaceQuery) ([]karting.Race, int, error) {
	unlock := s.lock(ctx)
	defer unlock()
	all := []karting.Race{}
	for _, r := range s.d.races {
		if q.From != nil && r.Date.Before(*q.From) {
			continue
		}
		r = s.raceView(r)
		if q.Search == "" || contains(r.Name, q.Search) || contains(r.Category.Name, q.Search) {
			all = append(all, r)
		}
	}
	sortRaces(all)
	return window(all, q.Limit, q.Offset), len(all), nil
}

func sortRaces(races []karting.Race) {
	sort.Slice(races, func(i, j int) bool {
		if !races[i].Date.Equal(races[j].Date.Time) {
			return races[i].Date.Before(races[j].Date)
		}
		return races[i].ID < races[j].ID
	})
}

func (s *Store) PastRaceIDs(ctx context.Context, before karting.Date) ([]int64, error) {
	unlock := s.lock(ctx)
	defer unlock()
	past := []karting.Race{}
	for _, r := range s.d.races {
		if !r.Date.Before(before) {
			continue
		}
		if r = s.raceView(r); r.ParticipantsCount > 0 {
			past = append(past, r)
		}
	}
	sortRaces(past)
	ids := make([]int64, 0, len(past))
	for _, r := range past {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// ---------- Participations ----------

func (s *Store) CreateParticipation(ctx context.Context, p *karting.Participation) error {
	unlock := s.lock(ctx)
	defer unlock()
	if _, ok := s.d.users[p.UserID]; !ok {
		return karting.ErrNotFound
	}
	if _, ok := s.d.races[p.RaceID]; !ok {
		return karting.ErrNotFound
	}
	if _, ok := s.d.karts[p.KartID]; !ok {
		return karting.ErrNotFound
	}
	for _, other := range s.d.participations {
		if other.UserID == p.UserID && other.RaceID == p.RaceID {
			return &karting.ConflictError{Field: "race"}
		}
	}
	if p.DateRegistered.IsZero() {
		p.DateRegistered = s.now().UTC()
	}
	p.ID = s.id()
	s.d.participations[p.ID] = karting.Participation{
		ID:             p.ID,
		UserID:         p.UserID,
		RaceID:         p.RaceID,
		KartID:         p.KartID,
		DateRegistered: p.DateRegistered,
	}
	return nil
}

func (s *Store) participationView(p karting.Participation) karting.Participation {
	p.Username = s.d.users[p.UserID].Username
	r := s.d.races[p.RaceID]
	p.RaceName, p.RaceDate = r.Name, r.Date
	p.KartName = s.d.karts[p.KartID].Name
	return p
}

func (s *Store) Participation(ctx context.Context, userID, raceID int64) (*karting.Participation, error) {
	unlock := s.lock(ctx)
	defer unlock()
	for _, p := range s.d.participations {
		if p.UserID == userID && p.RaceID == raceID {
			p = s.participationView(p)
			return &p, nil
		}
	}
	return nil, karting.ErrNotFound
}

func (s *Store) ListParticipations(ctx context.Context, q karting.ParticipationQuery) ([]karting.Participation, error) {
	unlock := s.lock(ctx)
	defer unlock()
	out := []karting.Participation{}
	for _, p := range s.d.participations {
		if q.UserID != 0 && p.UserID != q.UserID {
			continue
		}
		p = s.participationView(p)
		if q.Search == "" || contains(p.Username, q.Search) || contains(p.RaceName, q.Search) || contains(p.KartName, q.Search) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateRegistered.Equal(out[j].DateRegistered) {
			return out[i].DateRegistered.After(out[j].DateRegistered)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ReleaseParticipations(ctx context.Context, f karting.ParticipationFilter) (int, error) {
	unlock := s.lock(ctx)
	defer unlock()
	released := 0
	for id, p := range s.d.participations {
		if !s.matches(f, p) {
			continue
		}
		if k, ok := s.d.karts[p.KartID]; ok {
			k.AvailableQuantity++
			s.d.karts[p.KartID] = k
		}
		delete(s.d.participations, id)
		released++
	}
	return released, nil
}

func (s *Store) matches(f karting.ParticipationFilter, p karting.Participation) bool {
	switch {
	case f.CategoryID != 0:
		r, ok := s.d.races[p.RaceID]
		return ok && r.CategoryID == f.CategoryID
	case f.ID != 0:
		return p.ID == f.ID
	case f.RaceID != 0:
		return p.RaceID == f.RaceID
	case f.UserID != 0:
		return p.UserID == f.UserID
	}
	return false
}

// ---------- Audit ----------

func (s *Store) LogAction(ctx context.Context, actorID *int64, action, details string) error {
	unlock := s.lock(ctx)
	defer unlock()
	row := auditRow{id: int64(len(s.d.logs) + 1), createdAt: s.now().UTC(), action: action, details: details}
	if actorID != nil {
		id := *actorID
		row.actorID = &id
	}
	s.d.logs = append(s.d.logs, row)
	return nil
}

func (s *Store) AuditLog(ctx context.Context, limit int) ([]karting.AuditEntry, error) {
	unlock := s.lock(ctx)
	defer unlock()
	out := []karting.AuditEntry{}
	for i := len(s.d.logs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		row := s.d.logs[i]
		actor := "(none)"
		if row.actorID != nil {
			if u, ok := s.d.users[*row.actorID]; ok {
				actor = u.Username
			}
		}
		out = append(out, karting.AuditEntry{
			ID:        row.id,
			CreatedAt: row.createdAt,
			Actor:     actor,
			Action:    row.action,
			Details:   row.details,
		})
	}
	return out, nil
}
