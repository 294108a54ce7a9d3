package internal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"karting-platform/internal/karting"
)

// ------------------- Home -------------------

func Home(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, err := app.Svc.Home(c.Request.Context(), viewer(c))
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, homeResponse{
			UpcomingRaces: h.UpcomingRaces,
			PopularKarts:  h.PopularKarts,
			NumVisits:     app.countVisit(c),
			Messages:      app.takeFlashes(c),
		})
	}
}

// ------------------- Races -------------------

// GET /api/races?search=&page=
func ListRaces(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageParam(c)
		if !ok {
			return
		}
		search := c.Query("search")
		p, err := app.Svc.ListRaces(c.Request.Context(), viewer(c), search, page)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"page": p, "search": search, "messages": app.takeFlashes(c)})
	}
}

func RaceDetail(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		d, err := app.Svc.RaceDetail(c.Request.Context(), viewer(c), id)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, raceDetailResponse{RaceDetail: d, Messages: app.takeFlashes(c)})
	}
}

func CreateRace(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f karting.RaceForm
		if err := c.ShouldBind(&f); err != nil {
			badBody(c)
			return
		}
		r, err := app.Svc.CreateRace(c.Request.Context(), viewer(c), f)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func UpdateRace(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var f karting.RaceForm
		if err := c.ShouldBind(&f); err != nil {
			badBody(c)
			return
		}
		r, err := app.Svc.UpdateRace(c.Request.Context(), viewer(c), id, f)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func DeleteRace(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if err := app.Svc.DeleteRace(c.Request.Context(), viewer(c), id); err != nil {
			app.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ------------------- Registration -------------------

// GET /api/races/:id/register
func RegistrationForm(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		v := viewer(c)
		form, err := app.Svc.RegistrationForm(c.Request.Context(), v, id)
		if err != nil {
			app.rejectRegistration(c, id, err, karting.MsgLoginToRegister)
			return
		}
		c.JSON(http.StatusOK, registrationFormResponse{
			Race:     form.Race,
			Karts:    form.Karts,
			Username: v.Username,
			Messages: app.takeFlashes(c),
		})
	}
}

// POST /api/races/:id/register  (kart_id)
func RegisterForRace(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		v := viewer(c)
		var f karting.RegistrationForm
		if err := c.ShouldBind(&f); err != nil {
			// Zero is never a kart, so Register answers with the invalid choice error.
			f.KartID = 0
		}

		ctx := c.Request.Context()
		_, err := app.Svc.Register(ctx, v, id, f)
		switch {
		case err == nil:
			seeOther(c, raceURL(id))
		case errors.Is(err, karting.ErrInvalidSelection):
			form, ferr := app.Svc.RegistrationChoices(ctx, id)
			if ferr != nil {
				app.fail(c, ferr)
				return
			}
			c.JSON(http.StatusBadRequest, registrationFormResponse{
				Race:     form.Race,
				Karts:    form.Karts,
				Username: v.Username,
				Error:    "invalid input",
				Fields:   map[string]string{"kart": karting.MsgInvalidKart},
				Messages: app.takeFlashes(c),
			})
		default:
			app.rejectRegistration(c, id, err, karting.MsgLoginToRegister)
		}
	}
}

// POST /api/races/:id/unregister
func UnregisterFromRace(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if err := app.Svc.Unregister(c.Request.Context(), viewer(c), id); err != nil {
			app.rejectRegistration(c, id, err, karting.MsgLoginToUnregister)
			return
		}
		app.addFlash(c, levelSuccess, karting.MsgUnregistered)
		seeOther(c, raceURL(id))
	}
}

// rejectRegistration sends anonymous users to the login page and rule
// violations back to the race page, each with an error notice. Other errors
// get the plain JSON treatment.
func (a *App) rejectRegistration(c *gin.Context, raceID int64, err error, loginMsg string) {
	if errors.Is(err, karting.ErrUnauthenticated) {
		a.addFlash(c, levelError, loginMsg)
		seeOther(c, loginURL)
		return
	}
	if msg := karting.UserMessage(err); msg != "" {
		a.addFlash(c, levelError, msg)
		seeOther(c, raceURL(raceID))
		return
	}
	a.fail(c, err)
}

// POST /api/races/clear-registrations
func ClearRegistrations(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := app.Svc.ClearPastRegistrations(c.Request.Context(), viewer(c))
		if err != nil {
			app.fail(c, err)
			return
		}
		level := levelSuccess
		if n == 0 {
			level = levelInfo
		}
		app.addFlash(c, level, karting.CleanupMessage(n))
		seeOther(c, raceListURL)
	}
}

func MyRegistrations(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ps, err := app.Svc.MyRegistrations(c.Request.Context(), viewer(c))
		if err != nil {
			app.fail(c, err)
			return
		}
		if ps == nil {
			ps = []karting.Participation{}
		}
		c.JSON(http.StatusOK, ps)
	}
}
