package karting

import (
	"errors"
	"sort"
	"strings"
)

// Stores return ErrNotFound and ErrConflict (optionally wrapped); the service
// turns them into the registration outcomes below.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrRaceFull          = errors.New("race is full")
	ErrAlreadyRegistered = errors.New("already registered for race")
	ErrIneligibleAge     = errors.New("age outside race category range")
	ErrInvalidSelection  = errors.New("kart is not an available choice")
)

// Notices shown to the user for registration outcomes.
const (
	MsgRaceFull          = "This race is full."
	MsgAlreadyRegistered = "You are already registered for this race."
	MsgIneligible        = "You are not eligible for this race."
	MsgInvalidKart       = "Select a valid choice. That choice is not one of the available choices."
	MsgLoginToRegister   = "You must be logged in to register for a race."
	MsgLoginToUnregister = "You must be logged in to unregister from a race."
	MsgUnregistered      = "You have successfully unregistered from the race."
	MsgAlreadyLoggedIn   = "You are already logged in."
)

// UserMessage returns the notice for a registration rejection, or "" when
// err is not one of them.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRaceFull):
		return MsgRaceFull
	case errors.Is(err, ErrAlreadyRegistered):
		return MsgAlreadyRegistered
	case errors.Is(err, ErrIneligibleAge):
		return MsgIneligible
	case errors.Is(err, ErrInvalidSelection):
		return MsgInvalidKart
	}
	return ""
}

// ConflictError is a uniqueness violation on a single field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string { return e.Field + " already exists" }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// FieldErrors maps a form field to its validation message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e FieldErrors) add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// err returns nil when no field failed.
func (e FieldErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
