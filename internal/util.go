package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"karting-platform/internal/karting"
)

func (a *App) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", a.CookieSecure, true)
}

// fail writes the JSON error response for err. Anything that is not a known
// domain error becomes a 500; the error itself is attached for the request
// log and never echoed.
func (a *App) fail(c *gin.Context, err error) {
	var fields karting.FieldErrors
	switch {
	case errors.As(err, &fields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "fields": fields})
	case errors.Is(err, karting.ErrInvalidSelection):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "fields": gin.H{"kart": karting.MsgInvalidKart}})
	case errors.Is(err, karting.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, karting.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
	case errors.Is(err, karting.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, karting.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case karting.UserMessage(err) != "":
		c.JSON(http.StatusConflict, gin.H{"error": karting.UserMessage(err)})
	case errors.Is(err, karting.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad request body"})
}

// paramID parses the :id route parameter. A malformed id answers 404, as a
// path that names no row.
func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return id, true
}

// pageParam reads ?page=, defaulting to 1. Anything that is not a positive
// integer answers 404.
func pageParam(c *gin.Context) (int, bool) {
	raw := c.Query("page")
	if raw == "" {
		return 1, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return n, true
}

func raceURL(id int64) string {
	return fmt.Sprintf("/api/races/%d", id)
}

const (
	loginURL    = "/api/auth/login"
	raceListURL = "/api/races"
)

func seeOther(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}
