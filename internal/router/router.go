package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fitnow/fitnow-api/internal/config"
	"github.com/fitnow/fitnow-api/internal/handler"
	"github.com/fitnow/fitnow-api/internal/middleware"
)

// Deps carries what the route table needs.  Redis may be nil, in which case
// caching and rate limiting are disabled.
type Deps struct {
	JWTSecret    string
	DB           handler.Pinger
	Redis        *redis.Client
	Cache        config.CacheConfig
	RateLimit    config.RateLimitConfig
	Reservations *handler.ReservationHandler
	Browse       *handler.BrowseHandler
}

// RegisterRoutes registers the operational endpoints: health and metrics.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/api/health", handler.Health(d.DB))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers unauthenticated catalogue reads.  They are
// served through the Redis response cache.  Middleware is attached per
// route so unknown /api paths stay 404.
func RegisterPublic(e *echo.Echo, d Deps) {
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	g := e.Group("/api")
	g.GET("/activities", d.Browse.SearchActivities, cache)
	g.GET("/activities/:id", d.Browse.GetActivity, cache)
	g.GET("/activities/:id/sessions", d.Browse.ListSessions, cache)
	g.GET("/providers/:id/sports", d.Browse.ListProviderSports, cache)
}

// RegisterReservations registers the enrollment and session booking
// endpoints.  All of them require a valid JWT; the writes are rate
// limited per user.
func RegisterReservations(e *echo.Echo, d Deps) {
	h := d.Reservations
	auth := middleware.JWTAuth(d.JWTSecret)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)

	g := e.Group("/api")
	g.POST("/enrollments", h.CreateEnrollment, auth, limit)
	g.GET("/enrollments/mine", h.ListMine, auth)
	g.DELETE("/enrollments/:id", h.CancelEnrollment, auth, limit)
	g.POST("/sessions/:sid/book", h.BookSession, auth, limit)
	g.DELETE("/sessions/:sid/book", h.CancelSessionBooking, auth, limit)
}

// Register wires every route group.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d)
	RegisterPublic(e, d)
	RegisterReservations(e, d)
}
