package internal

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"karting-platform/internal/karting"
)

// App is what the handlers share.
type App struct {
	Svc          *karting.Service
	Log          *slog.Logger
	Secret       []byte
	CookieSecure bool
	SessionTTL   time.Duration
}

// NewRouter wires every route. gatherer backs /metrics.
func NewRouter(app *App, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(app), Identify(app))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/", Home(app))

		api.POST("/auth/signup", Signup(app))
		api.GET("/auth/login", LoginForm(app))
		api.POST("/auth/login", Login(app))
		api.POST("/auth/logout", Logout(app))
		api.GET("/me", Auth(), Me(app))

		api.GET("/races", ListRaces(app))
		api.GET("/races/:id", RaceDetail(app))
		api.GET("/races/:id/register", RegistrationForm(app))
		api.POST("/races/:id/register", RegisterForRace(app))
		api.POST("/races/:id/unregister", UnregisterFromRace(app))
		api.GET("/my/registrations", Auth(), MyRegistrations(app))

		api.GET("/karts", ListKarts(app))
		api.GET("/karts/:id", KartDetail(app))
		api.GET("/categories", ListCategories(app))
		api.GET("/categories/:id", CategoryDetail(app))

		staff := api.Group("", Auth(), RequireStaff())
		{
			staff.POST("/races/clear-registrations", ClearRegistrations(app))
			staff.POST("/races", CreateRace(app))
			staff.PUT("/races/:id", UpdateRace(app))
			staff.DELETE("/races/:id", DeleteRace(app))

			staff.POST("/karts", CreateKart(app))
			staff.PUT("/karts/:id", UpdateKart(app))
			staff.DELETE("/karts/:id", DeleteKart(app))

			staff.POST("/categories", CreateCategory(app))
			staff.PUT("/categories/:id", UpdateCategory(app))
			staff.DELETE("/categories/:id", DeleteCategory(app))
		}

		admin := api.Group("/admin", Auth(), RequireStaff())
		{
			admin.GET("/users", AdminUsers(app))
			admin.POST("/users/:id/staff", AdminSetStaff(app))
			admin.DELETE("/users/:id", AdminDeleteUser(app))
			admin.GET("/participations", AdminParticipations(app))
			admin.GET("/logs", AdminLogs(app))
		}
	}
	return r
}
