package internal

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"karting-platform/internal/karting"
)

// ------------------- Karts -------------------

// GET /api/karts?search=&page=
func ListKarts(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageParam(c)
		if !ok {
			return
		}
		search := c.Query("search")
		p, err := app.Svc.ListKarts(c.Request.Context(), search, page)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"page": p, "search": search})
	}
}

func KartDetail(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		k, err := app.Svc.Kart(c.Request.Context(), id)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, k)
	}
}

func CreateKart(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f karting.KartForm
		if err := c.ShouldBind(&f); err != nil {
			badBody(c)
			return
		}
		k, err := app.Svc.CreateKart(c.Request.Context(), viewer(c), f)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, k)
	}
}

func UpdateKart(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var f karting.KartForm
		if err := c.ShouldBind(&f); err != nil {
			badBody(c)
			return
		}
		k, err := app.Svc.UpdateKart(c.Request.Context(), viewer(c), id, f)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, k)
	}
}

func DeleteKart(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if err := app.Svc.DeleteKart(c.Request.Context(), viewer(c), id); err != nil {
			app.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ------------------- Categories -------------------

func ListCategories(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := app.Svc.ListCategories(c.Request.Context(), c.Query("search"))
		if err != nil {
			app.fail(c, err)
			return
		}
		if cats == nil {
			cats = []karting.RaceCategory{}
		}
		c.JSON(http.StatusOK, cats)
	}
}

func CategoryDetail(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		cat, err := app.Svc.Category(c.Request.Context(), id)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

func CreateCategory(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f karting.CategoryForm
		if err := c.ShouldBind(&f); err != nil {
			badBody(c)
			return
		}
		cat, err := app.Svc.CreateCategory(c.Request.Context(), viewer(c), f)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, cat)
	}
}

func UpdateCategory(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var f karting.CategoryForm
		if err := c.ShouldBind(&f); err != nil {
			badBody(c)
			return
		}
		cat, err := app.Svc.UpdateCategory(c.Request.Context(), viewer(c), id, f)
		if err != nil {
			app.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

func DeleteCategory(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if err := app.Svc.DeleteCategory(c.Request.Context(), viewer(c), id); err != nil {
			app.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
