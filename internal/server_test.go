package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"karting-platform/internal/karting"
	"karting-platform/internal/metrics"
	"karting-platform/internal/store/memory"
)

const testPassword = "pit-lane-42"

// client replays the cookies the router sets, like a browser would.
type client struct {
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case url.Values:
		r = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewReader(raw)
		contentType = "application/json"
	}
	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

type RouterSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.Store
	svc      *karting.Service
	registry *prometheus.Registry
	router   *gin.Engine

	staff    *karting.User
	category *karting.RaceCategory
	kart     *karting.Kart
	race     *karting.Race
}

func TestRouterSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.registry = prometheus.NewRegistry()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

	s.svc = karting.NewService(s.store,
		karting.WithLogger(log),
		karting.WithMetrics(metrics.New(s.registry)),
		karting.WithClock(func() time.Time { return now }),
		karting.WithPasswordCost(bcrypt.MinCost),
	)
	s.router = NewRouter(&App{
		Svc:        s.svc,
		Log:        log,
		Secret:     []byte("test-secret"),
		SessionTTL: time.Hour,
	}, s.registry)

	var err error
	s.staff, err = s.svc.CreateStaff(s.ctx, s.signupForm("admin"))
	s.Require().NoError(err)
	s.category, err = s.svc.CreateCategory(s.ctx, s.staff, karting.CategoryForm{Name: "Adult", MinAge: 18, MaxAge: 35})
	s.Require().NoError(err)
	s.kart, err = s.svc.CreateKart(s.ctx, s.staff, karting.KartForm{
		Name: "Speedster", CategoryID: s.category.ID, Speed: 80, AvailableQuantity: 5,
	})
	s.Require().NoError(err)
	s.race, err = s.svc.CreateRace(s.ctx, s.staff, karting.RaceForm{
		Name: "Grand Prix", CategoryID: s.category.ID, Date: "2026-03-01", MaxParticipants: 10,
	})
	s.Require().NoError(err)
}

func (s *RouterSuite) signupForm(username string) karting.SignupForm {
	return karting.SignupForm{
		Username:    username,
		Email:       username + "@example.com",
		DateOfBirth: "2000-01-01",
		Password:    testPassword,
		Password2:   testPassword,
		AgreeTerms:  true,
	}
}

func (s *RouterSuite) anonymous() *client {
	return &client{router: s.router, cookies: map[string]*http.Cookie{}}
}

func (s *RouterSuite) login(username string) *client {
	c := s.anonymous()
	w := c.do(http.MethodPost, "/api/auth/login", gin.H{"login": username, "password": testPassword})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Require().Contains(c.cookies, cookieName)
	return c
}

func (s *RouterSuite) member(username string) *client {
	_, err := s.svc.Signup(s.ctx, s.signupForm(username))
	s.Require().NoError(err)
	return s.login(username)
}

func decode[T any](s *RouterSuite, w *httptest.ResponseRecorder) T {
	var v T
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *RouterSuite) quantity() int {
	k, err := s.svc.Kart(s.ctx, s.kart.ID)
	s.Require().NoError(err)
	return k.AvailableQuantity
}

func (s *RouterSuite) racePath(suffix string) string {
	return fmt.Sprintf("/api/races/%d%s", s.race.ID, suffix)
}

func (s *RouterSuite) registerForm(kartID int64) url.Values {
	return url.Values{"kart_id": {fmt.Sprint(kartID)}}
}

// ------------------- Auth -------------------

func (s *RouterSuite) TestHealthz() {
	w := s.anonymous().do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(requestIDHeader))
}

func (s *RouterSuite) TestSignupLoginMe() {
	c := s.anonymous()
	w := c.do(http.MethodPost, "/api/auth/signup", s.signupForm("john"))
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	created := decode[karting.User](s, w)
	s.Equal("john", created.Username)
	s.False(created.IsStaff)

	w = c.do(http.MethodGet, "/api/me", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodPost, "/api/auth/login", gin.H{"login": "john@example.com", "password": testPassword})
	s.Require().Equal(http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/api/me", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	me := decode[karting.UserWithAge](s, w)
	s.Equal("john", me.Username)
	s.Equal(26, me.Age)

	w = c.do(http.MethodPost, "/api/auth/signup", s.signupForm("again"))
	s.Equal(http.StatusSeeOther, w.Code)
	s.Equal(raceListURL, w.Header().Get("Location"))
	w = c.do(http.MethodGet, "/api/races", nil)
	s.Contains(w.Body.String(), karting.MsgAlreadyLoggedIn)

	c.do(http.MethodPost, "/api/auth/logout", nil)
	w = c.do(http.MethodGet, "/api/me", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestLoginRejectsBadPassword() {
	w := s.anonymous().do(http.MethodPost, "/api/auth/login", gin.H{"login": "admin", "password": "nope"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.JSONEq(`{"error":"invalid credentials"}`, w.Body.String())
}

func (s *RouterSuite) TestRememberMeSetsPersistentCookie() {
	c := s.anonymous()
	w := c.do(http.MethodPost, "/api/auth/login", gin.H{"login": "admin", "password": testPassword, "remember_me": true})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(3600, c.cookies[cookieName].MaxAge)

	c = s.login("admin")
	s.Zero(c.cookies[cookieName].MaxAge)
}

func (s *RouterSuite) TestSignupValidationErrors() {
	form := s.signupForm("john")
	form.Password2 = "different-pass"
	w := s.anonymous().do(http.MethodPost, "/api/auth/signup", form)
	s.Equal(http.StatusBadRequest, w.Code)
	body := decode[struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}](s, w)
	s.Equal("invalid input", body.Error)
	s.Equal("The two password fields didn't match.", body.Fields["password2"])
}

// ------------------- Registration -------------------

func (s *RouterSuite) TestRegisterAndUnregister() {
	c := s.member("john")

	w := c.do(http.MethodGet, s.racePath("/register"), nil)
	s.Require().Equal(http.StatusOK, w.Code)
	form := decode[registrationFormResponse](s, w)
	s.Equal("john", form.Username)
	s.Require().Len(form.Karts, 1)

	w = c.do(http.MethodPost, s.racePath("/register"), s.registerForm(s.kart.ID))
	s.Require().Equal(http.StatusSeeOther, w.Code, w.Body.String())
	s.Equal(s.racePath(""), w.Header().Get("Location"))
	s.Equal(4, s.quantity())

	w = c.do(http.MethodGet, s.racePath(""), nil)
	detail := decode[struct {
		IsRegistered      bool `json:"is_registered"`
		CanRegister       bool `json:"can_register"`
		ParticipantsCount int  `json:"participants_count"`
	}](s, w)
	s.True(detail.IsRegistered)
	s.False(detail.CanRegister)
	s.Equal(1, detail.ParticipantsCount)

	w = c.do(http.MethodGet, "/api/my/registrations", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	mine := decode[[]karting.Participation](s, w)
	s.Require().Len(mine, 1)
	s.Equal("Grand Prix", mine[0].RaceName)

	w = c.do(http.MethodPost, s.racePath("/unregister"), nil)
	s.Require().Equal(http.StatusSeeOther, w.Code)
	s.Equal(5, s.quantity())

	w = c.do(http.MethodGet, s.racePath(""), nil)
	msgs := decode[struct {
		Messages []Message `json:"messages"`
	}](s, w).Messages
	s.Equal([]Message{{Level: levelSuccess, Text: karting.MsgUnregistered}}, msgs)

	w = c.do(http.MethodGet, s.racePath(""), nil)
	s.Contains(w.Body.String(), `"messages":[]`)

	w = c.do(http.MethodPost, s.racePath("/unregister"), nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestAnonymousRegistrationRedirectsToLogin() {
	c := s.anonymous()
	w := c.do(http.MethodPost, s.racePath("/register"), s.registerForm(s.kart.ID))
	s.Require().Equal(http.StatusSeeOther, w.Code)
	s.Equal(loginURL, w.Header().Get("Location"))
	s.Equal(5, s.quantity())

	w = c.do(http.MethodGet, w.Header().Get("Location"), nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	form := decode[loginFormResponse](s, w)
	s.False(form.LoggedIn)
	s.Equal([]Message{{Level: levelError, Text: karting.MsgLoginToRegister}}, form.Messages)

	w = c.do(http.MethodGet, "/api/races", nil)
	s.NotContains(w.Body.String(), karting.MsgLoginToRegister)
}

func (s *RouterSuite) TestUndrainedNoticesAccumulate() {
	c := s.anonymous()
	c.do(http.MethodPost, s.racePath("/register"), s.registerForm(s.kart.ID))
	w := c.do(http.MethodPost, s.racePath("/unregister"), nil)
	s.Require().Equal(http.StatusSeeOther, w.Code)
	s.Equal(loginURL, w.Header().Get("Location"))

	w = c.do(http.MethodGet, loginURL, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal([]Message{
		{Level: levelError, Text: karting.MsgLoginToRegister},
		{Level: levelError, Text: karting.MsgLoginToUnregister},
	}, decode[loginFormResponse](s, w).Messages)

	w = c.do(http.MethodGet, loginURL, nil)
	s.Empty(decode[loginFormResponse](s, w).Messages)
}

func (s *RouterSuite) TestLoginFormForLoggedInUser() {
	w := s.login("admin").do(http.MethodGet, loginURL, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	form := decode[loginFormResponse](s, w)
	s.True(form.LoggedIn)
	s.Equal("admin", form.Username)
	s.NotNil(form.Messages)
}

func (s *RouterSuite) TestRegisterUnparsableKart() {
	c := s.member("john")
	w := c.do(http.MethodPost, s.racePath("/register"), url.Values{"kart_id": {"speedy"}})
	s.Require().Equal(http.StatusBadRequest, w.Code)
	s.Equal(karting.MsgInvalidKart, decode[registrationFormResponse](s, w).Fields["kart"])
	s.Equal(5, s.quantity())
}

func (s *RouterSuite) TestRegisterFullRaceFlashesError() {
	race, err := s.svc.CreateRace(s.ctx, s.staff, karting.RaceForm{
		Name: "Sprint", CategoryID: s.category.ID, Date: "2026-03-02", MaxParticipants: 1,
	})
	s.Require().NoError(err)
	path := fmt.Sprintf("/api/races/%d", race.ID)

	first := s.member("first")
	w := first.do(http.MethodPost, path+"/register", s.registerForm(s.kart.ID))
	s.Require().Equal(http.StatusSeeOther, w.Code)

	second := s.member("second")
	w = second.do(http.MethodPost, path+"/register", s.registerForm(s.kart.ID))
	s.Equal(http.StatusSeeOther, w.Code)
	s.Equal(path, w.Header().Get("Location"))
	s.Equal(4, s.quantity())

	w = second.do(http.MethodGet, path, nil)
	s.Contains(w.Body.String(), karting.MsgRaceFull)

	w = second.do(http.MethodGet, path+"/register", nil)
	s.Equal(http.StatusSeeOther, w.Code)
}

func (s *RouterSuite) TestRegisterInvalidKartRerendersForm() {
	c := s.member("john")
	w := c.do(http.MethodPost, s.racePath("/register"), s.registerForm(999))
	s.Require().Equal(http.StatusBadRequest, w.Code)
	form := decode[registrationFormResponse](s, w)
	s.Equal(karting.MsgInvalidKart, form.Fields["kart"])
	s.Equal(s.race.ID, form.Race.ID)
	s.Len(form.Karts, 1)
	s.Equal(5, s.quantity())
}

func (s *RouterSuite) TestRegisterUnknownRace() {
	c := s.member("john")
	w := c.do(http.MethodPost, "/api/races/9999/register", s.registerForm(s.kart.ID))
	s.Equal(http.StatusNotFound, w.Code)
	w = c.do(http.MethodGet, "/api/races/abc", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

// ------------------- Staff -------------------

func (s *RouterSuite) TestStaffGate() {
	w := s.anonymous().do(http.MethodPost, "/api/races", gin.H{"name": "X"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.member("john").do(http.MethodPost, "/api/races", gin.H{"name": "X"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.member("jane").do(http.MethodGet, "/api/admin/users", nil)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterSuite) TestStaffCRUD() {
	c := s.login("admin")

	w := c.do(http.MethodPost, "/api/categories", gin.H{"name": "Junior", "min_age": 8, "max_age": 15})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	junior := decode[karting.RaceCategory](s, w)

	w = c.do(http.MethodPost, "/api/categories", gin.H{"name": "Junior", "min_age": 8, "max_age": 15})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "Race category with this name already exists.")

	w = c.do(http.MethodPost, "/api/karts", gin.H{"name": "Mini", "category_id": junior.ID, "speed": 40, "available_quantity": 2})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	mini := decode[karting.Kart](s, w)
	s.Equal("Junior", mini.CategoryName)

	w = c.do(http.MethodPost, "/api/races", gin.H{"name": "Kids Cup", "category_id": junior.ID, "date": "2026-04-01", "max_participants": 6})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	cup := decode[karting.Race](s, w)

	w = c.do(http.MethodPut, fmt.Sprintf("/api/races/%d", cup.ID), gin.H{"name": "Kids Cup II", "category_id": junior.ID, "date": "2026-04-02", "max_participants": 8})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Kids Cup II", decode[karting.Race](s, w).Name)

	w = c.do(http.MethodPost, "/api/races", gin.H{"name": "", "category_id": 9999, "date": "soon"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), `"date":"Enter a valid date."`)

	w = c.do(http.MethodDelete, fmt.Sprintf("/api/races/%d", cup.ID), nil)
	s.Equal(http.StatusNoContent, w.Code)
	w = c.do(http.MethodDelete, fmt.Sprintf("/api/karts/%d", mini.ID), nil)
	s.Equal(http.StatusNoContent, w.Code)
	w = c.do(http.MethodDelete, fmt.Sprintf("/api/categories/%d", junior.ID), nil)
	s.Equal(http.StatusNoContent, w.Code)
	w = c.do(http.MethodGet, fmt.Sprintf("/api/categories/%d", junior.ID), nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestClearRegistrations() {
	c := s.login("admin")
	w := c.do(http.MethodPost, "/api/races/clear-registrations", nil)
	s.Equal(http.StatusSeeOther, w.Code)
	s.Equal(raceListURL, w.Header().Get("Location"))

	w = c.do(http.MethodGet, "/api/races", nil)
	s.Contains(w.Body.String(), `{"level":"info","text":"No registrations have been deleted."}`)
}

func (s *RouterSuite) TestAdminUsers() {
	admin := s.login("admin")
	john := s.member("john")
	s.Require().Equal(http.StatusSeeOther, john.do(http.MethodPost, s.racePath("/register"), s.registerForm(s.kart.ID)).Code)

	w := admin.do(http.MethodGet, "/api/admin/participations?search=john", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(decode[[]karting.Participation](s, w), 1)

	w = admin.do(http.MethodGet, "/api/admin/users?search=john", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	users := decode[[]karting.UserWithAge](s, w)
	s.Require().Len(users, 1)

	w = admin.do(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/staff", users[0].ID), gin.H{"is_staff": true})
	s.Equal(http.StatusOK, w.Code)
	w = john.do(http.MethodGet, "/api/admin/logs", nil)
	s.Equal(http.StatusOK, w.Code)

	w = admin.do(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", s.staff.ID), nil)
	s.Equal(http.StatusForbidden, w.Code)
	w = admin.do(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", users[0].ID), nil)
	s.Equal(http.StatusNoContent, w.Code)
	s.Equal(5, s.quantity())

	w = john.do(http.MethodGet, "/api/me", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

// ------------------- Listings -------------------

func (s *RouterSuite) TestHomeCountsVisits() {
	c := s.anonymous()
	for want := 1; want <= 3; want++ {
		w := c.do(http.MethodGet, "/api/", nil)
		s.Require().Equal(http.StatusOK, w.Code)
		home := decode[homeResponse](s, w)
		s.Equal(want, home.NumVisits)
		s.Len(home.UpcomingRaces, 1)
		s.Len(home.PopularKarts, 1)
	}
}

func (s *RouterSuite) TestRaceListPaging() {
	c := s.anonymous()
	w := c.do(http.MethodGet, "/api/races?page=abc", nil)
	s.Equal(http.StatusNotFound, w.Code)
	w = c.do(http.MethodGet, "/api/races?page=2", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = c.do(http.MethodGet, "/api/races?search=grand", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := decode[struct {
		Page   karting.Page[karting.Race] `json:"page"`
		Search string                     `json:"search"`
	}](s, w)
	s.Equal("grand", body.Search)
	s.Equal(1, body.Page.Total)
}

func (s *RouterSuite) TestKartAndCategoryListings() {
	c := s.anonymous()
	w := c.do(http.MethodGet, "/api/karts?search=adult", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "Speedster")

	w = c.do(http.MethodGet, fmt.Sprintf("/api/karts/%d", s.kart.ID), nil)
	s.Equal(http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/api/categories", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(decode[[]karting.RaceCategory](s, w), 1)
}

func (s *RouterSuite) TestMetricsEndpoint() {
	c := s.member("john")
	c.do(http.MethodPost, s.racePath("/register"), s.registerForm(s.kart.ID))

	w := s.anonymous().do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `karting_registrations_total{outcome="registered"} 1`)
}
