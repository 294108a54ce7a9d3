package karting

import (
	"time"
)

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PassHash    string    `json:"-"`
	DateOfBirth Date      `json:"date_of_birth"`
	IsStaff     bool      `json:"is_staff"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Age is the user's age in whole years on the given day.
func (u *User) Age(today Date) int {
	return Age(u.DateOfBirth, today)
}

// RaceCategory is a race class with an inclusive age range.
type RaceCategory struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MinAge      int    `json:"min_age"`
	MaxAge      int    `json:"max_age"`
}

type Kart struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	CategoryID        int64  `json:"category_id"`
	CategoryName      string `json:"category_name"`
	Speed             int    `json:"speed"`
	Description       string `json:"description"`
	AvailableQuantity int    `json:"available_quantity"`
}

type Race struct {
	ID                int64        `json:"id"`
	Name              string       `json:"name"`
	CategoryID        int64        `json:"category_id"`
	Category          RaceCategory `json:"category"`
	Date              Date         `json:"date"`
	MaxParticipants   int          `json:"max_participants"`
	ParticipantsCount int          `json:"participants_count"`
}

// IsFull reports whether the race has no free slot left.
func (r *Race) IsFull() bool {
	return r.ParticipantsCount >= r.MaxParticipants
}

// IsUserEligible reports whether the user's age falls inside the race
// category's range. A user without a date of birth is never eligible.
func (r *Race) IsUserEligible(u *User, today Date) bool {
	if u == nil || u.DateOfBirth.IsZero() {
		return false
	}
	return IsEligible(r.Category, u.Age(today))
}

// Participation records one user entering one race with one kart.
type Participation struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	RaceID         int64     `json:"race_id"`
	KartID         int64     `json:"kart_id"`
	DateRegistered time.Time `json:"date_registered"`

	Username string `json:"username,omitempty"`
	RaceName string `json:"race_name,omitempty"`
	RaceDate Date   `json:"race_date"`
	KartName string `json:"kart_name,omitempty"`
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// RaceDetail is a race together with the viewer-specific registration flags.
type RaceDetail struct {
	Race              Race `json:"race"`
	ParticipantsCount int  `json:"participants_count"`
	IsFull            bool `json:"is_full"`
	IsEligible        bool `json:"is_eligible"`
	IsRegistered      bool `json:"is_registered"`
	CanRegister       bool `json:"can_register"`
}

// RegistrationContext is what a registration form needs to render.
type RegistrationContext struct {
	Race  Race   `json:"race"`
	Karts []Kart `json:"karts"`
}

// Home is the landing page content.
type Home struct {
	UpcomingRaces []Race `json:"upcoming_races"`
	PopularKarts  []Kart `json:"popular_karts"`
}
