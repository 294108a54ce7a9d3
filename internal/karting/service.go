package karting

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultRacePageSize = 2
	defaultKartPageSize = 5
)

// Metrics receives registration outcomes. internal/metrics implements it
// with Prometheus counters.
type Metrics interface {
	RegistrationAttempt(outcome string)
	Unregistered()
	RegistrationsCleared(n int)
}

type nopMetrics struct{}

func (nopMetrics) RegistrationAttempt(string) {}
func (nopMetrics) Unregistered()              {}
func (nopMetrics) RegistrationsCleared(int)   {}

// Service holds every karting operation: accounts, catalog, races, the
// registration ledger and the past-registration cleanup.
type Service struct {
	store   Store
	log     *slog.Logger
	metrics Metrics
	now     func() time.Time

	enforceEligibility bool
	racePageSize       int
	kartPageSize       int
	hashCost           int
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now, which decides "today" for race visibility,
// ages and the cleanup job.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEligibilityEnforcement makes Register reject users outside the race
// category's age range. Off by default: eligibility is reported on the race
// detail but not checked at submission.
func WithEligibilityEnforcement(on bool) Option {
	return func(s *Service) { s.enforceEligibility = on }
}

func WithPageSizes(races, karts int) Option {
	return func(s *Service) {
		if races > 0 {
			s.racePageSize = races
		}
		if karts > 0 {
			s.kartPageSize = karts
		}
	}
}

// WithPasswordCost sets the bcrypt cost for new password hashes.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		log:          slog.Default(),
		metrics:      nopMetrics{},
		now:          time.Now,
		racePageSize: defaultRacePageSize,
		kartPageSize: defaultKartPageSize,
		hashCost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar day in UTC.
func (s *Service) Today() Date {
	return DateOf(s.now().UTC())
}

// audit records an action after the fact. A failed write is logged and
// otherwise ignored.
func (s *Service) audit(ctx context.Context, actor *User, action, details string) {
	var actorID *int64
	if actor != nil {
		actorID = &actor.ID
	}
	if err := s.store.LogAction(ctx, actorID, action, details); err != nil {
		s.log.WarnContext(ctx, "audit write failed", "action", action, "error", err)
	}
}

// Page is one page of an ordered listing. Numbers start at 1.
type Page[T any] struct {
	Items       []T  `json:"items"`
	Number      int  `json:"number"`
	Size        int  `json:"size"`
	Total       int  `json:"total"`
	NumPages    int  `json:"num_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

func newPage[T any](items []T, number, size, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	return Page[T]{
		Items:       items,
		Number:      number,
		Size:        size,
		Total:       total,
		NumPages:    pages,
		HasNext:     number < pages,
		HasPrevious: number > 1,
	}
}

// pageWindow returns limit/offset for a 1-based page number.
func pageWindow(number, size int) (int, int) {
	if number < 1 {
		number = 1
	}
	return size, (number - 1) * size
}
