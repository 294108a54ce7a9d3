package internal

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"karting-platform/internal/karting"
)

func Signup(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if viewer(c) != nil {
			app.addFlash(c, levelInfo, karting.MsgAlreadyLoggedIn)
			seeOther(c, raceListURL)
			return
		}
		var f karting.SignupForm
		if err := c.ShouldBind(&f); err != nil {
			badBody(c)
			return
		}
		u, err := app.Svc.Signup(c.Request.Context(), f)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// GET /api/auth/login
func LoginForm(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := loginFormResponse{Messages: app.takeFlashes(c)}
		if v := viewer(c); v != nil {
			resp.LoggedIn = true
			resp.Username = v.Username
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Login sets the session cookie. Without remember_me the cookie lasts for
// the browser session; the token inside still expires after SessionTTL.
func Login(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBind(&req); err != nil {
			badBody(c)
			return
		}
		u, err := app.Svc.Authenticate(c.Request.Context(), req.identifier(), req.Password)
		if err != nil {
			app.fail(c, err)
			return
		}

		s, err := app.issueToken(u, time.Now())
		if err != nil {
			app.fail(c, err)
			return
		}
		maxAge := 0
		if req.RememberMe {
			maxAge = int(app.SessionTTL.Seconds())
		}
		app.setCookie(c, cookieName, s, maxAge)
		c.JSON(http.StatusOK, gin.H{"ok": true, "user": u})
	}
}

func Logout(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		app.setCookie(c, cookieName, "", -1)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func Me(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := viewer(c)
		c.JSON(http.StatusOK, karting.UserWithAge{User: *u, Age: u.Age(app.Svc.Today())})
	}
}
