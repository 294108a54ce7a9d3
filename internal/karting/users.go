package karting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Signup creates an active, non-staff account.
func (s *Service) Signup(ctx context.Context, f SignupForm) (*User, error) {
	return s.createUser(ctx, f, false)
}

// CreateStaff creates an account with staff rights. It backs the operator
// bootstrap command.
func (s *Service) CreateStaff(ctx context.Context, f SignupForm) (*User, error) {
	f.AgreeTerms = true
	return s.createUser(ctx, f, true)
}

func (s *Service) createUser(ctx context.Context, f SignupForm, staff bool) (*User, error) {
	u, errs := f.clean(s.Today())
	if len(errs) == 0 {
		if err := s.checkUserUnique(ctx, u, errs); err != nil {
			return nil, err
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(f.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.PassHash = string(hash)
	u.IsStaff = staff
	u.CreatedAt = s.now().UTC()

	if err := s.store.CreateUser(ctx, &u); err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			return nil, FieldErrors{ce.Field: userConflictMessage(ce.Field)}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.InfoContext(ctx, "user created", "user_id", u.ID, "username", u.Username, "staff", staff)
	s.audit(ctx, &u, "signup", "user registered")
	return &u, nil
}

func (s *Service) checkUserUnique(ctx context.Context, u User, errs FieldErrors) error {
	if _, err := s.store.UserByUsername(ctx, u.Username); err == nil {
		errs.add("username", userConflictMessage("username"))
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("lookup username: %w", err)
	}
	if _, err := s.store.UserByEmail(ctx, u.Email); err == nil {
		errs.add("email", userConflictMessage("email"))
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}
	return nil
}

func userConflictMessage(field string) string {
	if field == "email" {
		return "A user with that email already exists."
	}
	return "A user with that username already exists."
}

// Authenticate checks a password for a login that is either a username or
// an email address.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.store.UserByUsername(ctx, login)
	if errors.Is(err, ErrNotFound) {
		u, err = s.store.UserByEmail(ctx, login)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	s.audit(ctx, u, "login", "success")
	return u, nil
}

func (s *Service) User(ctx context.Context, id int64) (*User, error) {
	u, err := s.store.UserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}

// UserWithAge is a user row for the admin listing.
type UserWithAge struct {
	User
	Age int `json:"age"`
}

func (s *Service) ListUsers(ctx context.Context, search string) ([]UserWithAge, error) {
	users, err := s.store.ListUsers(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	today := s.Today()
	out := make([]UserWithAge, 0, len(users))
	for _, u := range users {
		out = append(out, UserWithAge{User: u, Age: u.Age(today)})
	}
	return out, nil
}

// SetStaff grants or removes staff rights. Staff cannot change their own flag.
func (s *Service) SetStaff(ctx context.Context, actor *User, userID int64, staff bool) error {
	if actor != nil && actor.ID == userID {
		return ErrForbidden
	}
	if err := s.store.SetUserStaff(ctx, userID, staff); err != nil {
		return fmt.Errorf("set staff for user %d: %w", userID, err)
	}
	s.audit(ctx, actor, "admin_set_staff", fmt.Sprintf("user_id=%d staff=%t", userID, staff))
	return nil
}

// DeleteUser removes an account. Its registrations are released first so the
// karts they held go back into stock.
func (s *Service) DeleteUser(ctx context.Context, actor *User, userID int64) error {
	if actor != nil && actor.ID == userID {
		return ErrForbidden
	}
	var released int
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.UserByID(ctx, userID); err != nil {
			return err
		}
		n, err := s.store.ReleaseParticipations(ctx, ParticipationFilter{UserID: userID})
		if err != nil {
			return err
		}
		released = n
		return s.store.DeleteUser(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("delete user %d: %w", userID, err)
	}
	s.log.InfoContext(ctx, "user deleted", "user_id", userID, "released", released)
	s.audit(ctx, actor, "admin_delete_user", fmt.Sprintf("user_id=%d", userID))
	return nil
}
