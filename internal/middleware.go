package internal

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"karting-platform/internal/karting"
)

const (
	cookieName   = "karting_session"
	tokenIssuer  = "karting-platform"
	viewerKey    = "viewer"
	requestIDKey = "request_id"

	requestIDHeader = "X-Request-ID"
)

type claims struct {
	UserID int64 `json:"uid"`
	Staff  bool  `json:"staff"`
	jwt.RegisteredClaims
}

func (a *App) issueToken(u *karting.User, now time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: u.ID,
		Staff:  u.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	})
	return tok.SignedString(a.Secret)
}

func (a *App) parseToken(tokenStr string) (*claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(*jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	cl, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return nil, errors.New("bad claims")
	}
	return cl, nil
}

// Identify resolves the session cookie into the viewer. A missing or bad
// cookie, or a user that no longer exists or is inactive, leaves the request
// anonymous. The staff flag is read from the user row, not the token.
func Identify(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(cookieName)
		if err != nil || tokenStr == "" {
			c.Next()
			return
		}
		cl, err := app.parseToken(tokenStr)
		if err != nil {
			c.Next()
			return
		}
		u, err := app.Svc.User(c.Request.Context(), cl.UserID)
		switch {
		case err == nil && u.IsActive:
			c.Set(viewerKey, u)
		case err != nil && !errors.Is(err, karting.ErrNotFound):
			app.Log.WarnContext(c.Request.Context(), "session user lookup failed", "user_id", cl.UserID, "error", err)
		}
		c.Next()
	}
}

func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if viewer(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
			return
		}
		c.Next()
	}
}

func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if v := viewer(c); v == nil || !v.IsStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff only"})
			return
		}
		c.Next()
	}
}

// viewer is the authenticated user, or nil for anonymous requests.
func viewer(c *gin.Context) *karting.User {
	v, ok := c.Get(viewerKey)
	if !ok {
		return nil
	}
	u, _ := v.(*karting.User)
	return u
}

// RequestID tags the request with the caller's X-Request-ID or a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger writes one line per request. Errors attached with c.Error on
// a 5xx response are logged with it.
func RequestLogger(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		}
		if v := viewer(c); v != nil {
			attrs = append(attrs, "user_id", v.ID)
		}
		ctx := c.Request.Context()
		if status >= http.StatusInternalServerError {
			if err := c.Errors.Last(); err != nil {
				attrs = append(attrs, "error", err.Err)
			}
			app.Log.ErrorContext(ctx, "request failed", attrs...)
			return
		}
		app.Log.InfoContext(ctx, "request", attrs...)
	}
}
