package karting

import "context"

// Store is the persistence the service needs. Implementations return
// ErrNotFound for missing rows and a *ConflictError for uniqueness
// violations.
//
// RunInTx runs fn in one transaction; store calls made with the context
// passed to fn join that transaction. An error from fn rolls everything back.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id int64) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, search string) ([]User, error)
	SetUserStaff(ctx context.Context, id int64, staff bool) error
	DeleteUser(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *RaceCategory) error
	UpdateCategory(ctx context.Context, c *RaceCategory) error
	DeleteCategory(ctx context.Context, id int64) error
	CategoryByID(ctx context.Context, id int64) (*RaceCategory, error)
	ListCategories(ctx context.Context, search string) ([]RaceCategory, error)

	CreateKart(ctx context.Context, k *Kart) error
	UpdateKart(ctx context.Context, k *Kart) error
	DeleteKart(ctx context.Context, id int64) error
	KartByID(ctx context.Context, id int64) (*Kart, error)
	ListKarts(ctx context.Context, q KartQuery) ([]Kart, int, error)
	AvailableKarts(ctx context.Context, categoryID int64) ([]Kart, error)
	// TakeKart decrements available_quantity of a kart that belongs to the
	// category and has stock left; otherwise it returns ErrNotFound.
	TakeKart(ctx context.Context, kartID, categoryID int64) error

	CreateRace(ctx context.Context, r *Race) error
	UpdateRace(ctx context.Context, r *Race) error
	DeleteRace(ctx context.Context, id int64) error
	RaceByID(ctx context.Context, id int64) (*Race, error)
	// LockRace loads a race for update inside a transaction so concurrent
	// registrations for the same race serialize.
	LockRace(ctx context.Context, id int64) (*Race, error)
	ListRaces(ctx context.Context, q RaceQuery) ([]Race, int, error)
	// PastRaceIDs lists races dated before the day that still have participations.
	PastRaceIDs(ctx context.Context, before Date) ([]int64, error)

	CreateParticipation(ctx context.Context, p *Participation) error
	Participation(ctx context.Context, userID, raceID int64) (*Participation, error)
	ListParticipations(ctx context.Context, q ParticipationQuery) ([]Participation, error)
	// ReleaseParticipations deletes the matching participations and credits
	// each kart with one unit per deleted row. It is the only delete path
	// for participations.
	ReleaseParticipations(ctx context.Context, f ParticipationFilter) (int, error)

	LogAction(ctx context.Context, actorID *int64, action, details string) error
	AuditLog(ctx context.Context, limit int) ([]AuditEntry, error)
}

type KartQuery struct {
	Search string
	Limit  int
	Offset int
	// OrderBySpeed sorts fastest first instead of by category name.
	OrderBySpeed bool
}

type RaceQuery struct {
	Search string
	// From, when set, keeps races dated on or after it.
	From   *Date
	Limit  int
	Offset int
}

type ParticipationQuery struct {
	UserID int64
	Search string
}

// ParticipationFilter selects participations to release. Exactly one field
// is set. CategoryID selects the participations of every race in that
// category.
type ParticipationFilter struct {
	ID         int64
	RaceID     int64
	UserID     int64
	CategoryID int64
}
