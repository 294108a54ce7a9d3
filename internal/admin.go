package internal

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"karting-platform/internal/karting"
)

const auditLogLimit = 200

func AdminUsers(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := app.Svc.ListUsers(c.Request.Context(), c.Query("search"))
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// POST /api/admin/users/:id/staff  {"is_staff": bool}
func AdminSetStaff(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var req staffRequest
		if err := c.ShouldBind(&req); err != nil || req.IsStaff == nil {
			badBody(c)
			return
		}
		if err := app.Svc.SetStaff(c.Request.Context(), viewer(c), id, *req.IsStaff); err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "is_staff": *req.IsStaff})
	}
}

func AdminDeleteUser(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if err := app.Svc.DeleteUser(c.Request.Context(), viewer(c), id); err != nil {
			app.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GET /api/admin/participations?search=
func AdminParticipations(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ps, err := app.Svc.ListParticipations(c.Request.Context(), c.Query("search"))
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

func AdminLogs(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := app.Svc.AuditLog(c.Request.Context(), auditLogLimit)
		if err != nil {
			app.fail(c, err)
			return
		}
		if entries == nil {
			entries = []karting.AuditEntry{}
		}
		c.JSON(http.StatusOK, entries)
	}
}
