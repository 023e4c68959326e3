package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"city-planner/backend/internal/auth"
)

// RegisterRoutes mounts the health check and the /api/v1 group. The group
// resolves the caller identity and applies the global rate limit. Cache and
// rate limit administration needs a token with the admin scope, so a nil
// verifier leaves those routes closed.
func RegisterRoutes(e *echo.Echo, h *Handler, v auth.Verifier) *echo.Group {
	e.GET("/healthz", h.HandleHealth)

	g := e.Group("/api/v1", Identity(v), RateLimit(h.limiter, func() time.Time { return h.now() }))
	admin := RequireScope(auth.ScopeAdmin)

	g.POST("/plans", h.CreatePlan)
	g.POST("/trips", h.CreateTrip)

	g.GET("/cities/:city", h.GetCity)
	g.GET("/weather/:city", h.GetWeather)
	g.GET("/flights", h.SearchFlights)
	g.GET("/hotels", h.SearchHotels)
	g.GET("/currency/convert", h.ConvertCurrency)
	g.GET("/search", h.Search)

	g.GET("/advisories/visa", h.CheckVisa)
	g.GET("/advisories/insurance", h.Insurance)
	g.GET("/advisories/season", h.BestTimeToVisit)
	g.POST("/advisories/group", h.GroupTravel)

	g.GET("/cache/stats", h.CacheStats, admin)
	g.DELETE("/cache", h.ClearCache, admin)
	g.GET("/ratelimit", h.RateLimitStats)
	g.DELETE("/ratelimit/:identifier", h.ResetRateLimit, admin)

	g.GET("/schemas", h.ListSchemas)
	g.GET("/schemas/:name", h.GetSchema)
	return g
}
