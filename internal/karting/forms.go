package karting

import (
	"strings"
	"unicode/utf8"
)

const (
	maxNameLen     = 100
	maxUsernameLen = 150
	minPasswordLen = 8

	msgRequired = "This field is required."
	msgChoice   = "Select a valid choice. That choice is not one of the available choices."
)

type SignupForm struct {
	Username    string `json:"username" form:"username"`
	Email       string `json:"email" form:"email"`
	FirstName   string `json:"first_name" form:"first_name"`
	LastName    string `json:"last_name" form:"last_name"`
	DateOfBirth string `json:"date_of_birth" form:"date_of_birth"`
	Password    string `json:"password" form:"password"`
	Password2   string `json:"password2" form:"password2"`
	AgreeTerms  bool   `json:"agree_terms" form:"agree_terms"`
}

func (f SignupForm) clean(today Date) (User, FieldErrors) {
	errs := FieldErrors{}
	u := User{
		Username:  strings.TrimSpace(f.Username),
		Email:     strings.TrimSpace(f.Email),
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		IsActive:  true,
	}

	switch {
	case u.Username == "":
		errs.add("username", msgRequired)
	case utf8.RuneCountInString(u.Username) > maxUsernameLen:
		errs.add("username", "Ensure this value has at most 150 characters.")
	}
	switch {
	case u.Email == "":
		errs.add("email", msgRequired)
	case !strings.Contains(u.Email, "@"):
		errs.add("email", "Enter a valid email address.")
	}

	if strings.TrimSpace(f.DateOfBirth) == "" {
		errs.add("date_of_birth", msgRequired)
	} else if dob, err := ParseDate(f.DateOfBirth); err != nil {
		errs.add("date_of_birth", "Enter a valid date.")
	} else if dob.After(today) {
		errs.add("date_of_birth", "Date of birth cannot be in the future.")
	} else {
		u.DateOfBirth = dob
	}

	switch {
	case f.Password == "":
		errs.add("password", msgRequired)
	case utf8.RuneCountInString(f.Password) < minPasswordLen:
		errs.add("password", "This password is too short. It must contain at least 8 characters.")
	}
	if f.Password2 == "" {
		errs.add("password2", msgRequired)
	} else if f.Password != f.Password2 {
		errs.add("password2", "The two password fields didn't match.")
	}
	if !f.AgreeTerms {
		errs.add("agree_terms", msgRequired)
	}
	return u, errs
}

type CategoryForm struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
	MinAge      int    `json:"min_age" form:"min_age"`
	MaxAge      int    `json:"max_age" form:"max_age"`
}

// clean leaves min_age > max_age alone; the range is not cross-checked.
func (f CategoryForm) clean() (RaceCategory, FieldErrors) {
	errs := FieldErrors{}
	c := RaceCategory{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		MinAge:      f.MinAge,
		MaxAge:      f.MaxAge,
	}
	checkName(errs, c.Name)
	if c.MinAge < 0 {
		errs.add("min_age", "Ensure this value is greater than or equal to 0.")
	}
	if c.MaxAge < 0 {
		errs.add("max_age", "Ensure this value is greater than or equal to 0.")
	}
	return c, errs
}

type KartForm struct {
	Name              string `json:"name" form:"name"`
	CategoryID        int64  `json:"category_id" form:"category_id"`
	Speed             int    `json:"speed" form:"speed"`
	Description       string `json:"description" form:"description"`
	AvailableQuantity int    `json:"available_quantity" form:"available_quantity"`
}

func (f KartForm) clean() (Kart, FieldErrors) {
	errs := FieldErrors{}
	k := Kart{
		Name:              strings.TrimSpace(f.Name),
		CategoryID:        f.CategoryID,
		Speed:             f.Speed,
		Description:       strings.TrimSpace(f.Description),
		AvailableQuantity: f.AvailableQuantity,
	}
	checkName(errs, k.Name)
	if k.CategoryID <= 0 {
		errs.add("category_id", msgRequired)
	}
	if k.Speed < 0 {
		errs.add("speed", "Ensure this value is greater than or equal to 0.")
	}
	if k.AvailableQuantity < 0 {
		errs.add("available_quantity", "Ensure this value is greater than or equal to 0.")
	}
	return k, errs
}

type RaceForm struct {
	Name            string `json:"name" form:"name"`
	CategoryID      int64  `json:"category_id" form:"category_id"`
	Date            string `json:"date" form:"date"`
	MaxParticipants int    `json:"max_participants" form:"max_participants"`
}

func (f RaceForm) clean() (Race, FieldErrors) {
	errs := FieldErrors{}
	r := Race{
		Name:            strings.TrimSpace(f.Name),
		CategoryID:      f.CategoryID,
		MaxParticipants: f.MaxParticipants,
	}
	checkName(errs, r.Name)
	if r.CategoryID <= 0 {
		errs.add("category_id", msgRequired)
	}
	if strings.TrimSpace(f.Date) == "" {
		errs.add("date", msgRequired)
	} else if d, err := ParseDate(f.Date); err != nil {
		errs.add("date", "Enter a valid date.")
	} else {
		r.Date = d
	}
	if r.MaxParticipants < 1 {
		errs.add("max_participants", "Ensure this value is greater than or equal to 1.")
	}
	return r, errs
}

// RegistrationForm carries the kart picked for a race. The allowed choices
// are the race category's karts that still have stock.
type RegistrationForm struct {
	KartID int64 `json:"kart_id" form:"kart_id"`
}

func checkName(errs FieldErrors, name string) {
	switch {
	case name == "":
		errs.add("name", msgRequired)
	case utf8.RuneCountInString(name) > maxNameLen:
		errs.add("name", "Ensure this value has at most 100 characters.")
	}
}
