package internal

import "karting-platform/internal/karting"

type loginRequest struct {
	// Login is a username or an email address.
	Login      string `json:"login" form:"login"`
	Username   string `json:"username" form:"username"`
	Password   string `json:"password" form:"password"`
	RememberMe bool   `json:"remember_me" form:"remember_me"`
}

func (r loginRequest) identifier() string {
	if r.Login != "" {
		return r.Login
	}
	return r.Username
}

// loginFormResponse is the context of the login page. Notices queued by a
// redirect to it, such as "log in to register", are drained here.
type loginFormResponse struct {
	LoggedIn bool      `json:"logged_in"`
	Username string    `json:"username,omitempty"`
	Messages []Message `json:"messages"`
}

type staffRequest struct {
	IsStaff *bool `json:"is_staff" form:"is_staff"`
}

type homeResponse struct {
	UpcomingRaces []karting.Race `json:"upcoming_races"`
	PopularKarts  []karting.Kart `json:"popular_karts"`
	NumVisits     int            `json:"num_visits"`
	Messages      []Message      `json:"messages"`
}

type raceDetailResponse struct {
	*karting.RaceDetail
	Messages []Message `json:"messages"`
}

// registrationFormResponse is the context of the race registration form.
type registrationFormResponse struct {
	Race     karting.Race      `json:"race"`
	Karts    []karting.Kart    `json:"karts"`
	Username string            `json:"username"`
	Error    string            `json:"error,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Messages []Message         `json:"messages"`
}
