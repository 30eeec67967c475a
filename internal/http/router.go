package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIPrefix is the path every versioned endpoint lives under.
const APIPrefix = "/api/v1"

type RouterConfig struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Blocks       *BlockHandler
	Rooms        *RoomHandler
	Semesters    *SemesterHandler
	Reservations *ReservationHandler
	Rules        *RuleHandler
	Calendars    *CalendarHandler
	Tokens       TokenValidator
	Logger       *slog.Logger
	CORSOrigins  []string
}

// NewRouter builds the gin engine. Handlers left nil are not mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	RegisterValidators()
	logger := defaultLogger(cfg.Logger)

	engine := gin.New()
	engine.Use(Recovery(logger), RequestLogger(logger), CORS(cfg.CORSOrigins))
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{ErrorCode: "not_found", Message: "route not found"})
	})

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group(APIPrefix)
	if cfg.Auth != nil {
		auth := api.Group("/auth")
		auth.POST("/login", cfg.Auth.Login)
		auth.POST("/refresh", cfg.Auth.Refresh)
	}

	if cfg.Tokens == nil {
		return engine
	}
	authed := api.Group("", RequireAuth(cfg.Tokens, logger))
	admin := authed.Group("", RequireAdmin(logger))

	if cfg.Users != nil {
		authed.GET("/users/me", cfg.Users.Me)
		admin.GET("/users", cfg.Users.List)
		admin.POST("/users", cfg.Users.Create)
		admin.GET("/users/:id", cfg.Users.Get)
		admin.PUT("/users/:id", cfg.Users.Update)
		admin.DELETE("/users/:id", cfg.Users.Delete)
	}

	if cfg.Blocks != nil {
		authed.GET("/blocks", cfg.Blocks.List)
		authed.GET("/blocks/:id", cfg.Blocks.Get)
		admin.POST("/blocks", cfg.Blocks.Create)
		admin.PUT("/blocks/:id", cfg.Blocks.Update)
		admin.DELETE("/blocks/:id", cfg.Blocks.Delete)
	}

	if cfg.Rooms != nil {
		authed.GET("/rooms", cfg.Rooms.List)
		authed.GET("/rooms/:id", cfg.Rooms.Get)
		admin.POST("/rooms", cfg.Rooms.Create)
		admin.PUT("/rooms/:id", cfg.Rooms.Update)
		admin.DELETE("/rooms/:id", cfg.Rooms.Delete)
	}

	if cfg.Semesters != nil {
		authed.GET("/semesters", cfg.Semesters.List)
		authed.GET("/semesters/:identifier", cfg.Semesters.Get)
		admin.POST("/semesters", cfg.Semesters.Create)
	}

	if cfg.Reservations != nil {
		authed.GET("/reservations", cfg.Reservations.List)
		authed.POST("/reservations", cfg.Reservations.Create)
		authed.GET("/reservations/:id", cfg.Reservations.Get)
		authed.PUT("/reservations/:id", cfg.Reservations.Update)
		authed.DELETE("/reservations/:id", cfg.Reservations.Cancel)
	}

	if cfg.Rules != nil {
		rules := authed.Group("/recurring-rules")
		rules.GET("", cfg.Rules.List)
		rules.POST("", cfg.Rules.Create)
		rules.POST("/semester", cfg.Rules.CreateFromSemester)
		rules.GET("/:id", cfg.Rules.Get)
		rules.PATCH("/:id", cfg.Rules.Update)
		rules.DELETE("/:id", cfg.Rules.Delete)
		rules.POST("/:id/regenerate", cfg.Rules.Regenerate)
		rules.GET("/:id/occurrences", cfg.Rules.Occurrences)
	}

	if cfg.Calendars != nil {
		authed.GET("/rooms/:id/calendar.ics", cfg.Calendars.Room)
		authed.GET("/recurring-rules/:id/calendar.ics", cfg.Calendars.Rule)
	}

	return engine
}
