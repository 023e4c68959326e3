// Package api contains the HTTP handlers for the city planner service
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"city-planner/backend/internal/budget"
	"city-planner/backend/internal/cache"
	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/logging"
	"city-planner/backend/internal/planner"
	"city-planner/backend/internal/ratelimit"
	"city-planner/backend/internal/validation"
	"city-planner/backend/internal/workflow"
	"city-planner/backend/pkg/models"
)

const maxBodyBytes = 1 << 20

// Handler contains HTTP handlers for the city planner REST API
type Handler struct {
	planner   Planner
	cache     *cache.Cache
	limiter   *ratelimit.Limiter
	validator *validation.Validator
	logger    *logging.Logger
	now       func() time.Time
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(p Planner, c *cache.Cache, l *ratelimit.Limiter, v *validation.Validator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{planner: p, cache: c, limiter: l, validator: v, logger: logger, now: time.Now}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Cache     string    `json:"cache"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: h.now(),
		Service:   "city-planner",
		Version:   "1.0.0",
		Cache:     h.cache.Backend(),
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// writeProblem writes an RFC 7807 Problem Details JSON error response
func writeProblem(c echo.Context, status int, title, detail string) error {
	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	c.Response().WriteHeader(status)
	return json.NewEncoder(c.Response()).Encode(problem)
}

// ErrorHandler renders errors that escape a handler as problem details.
func ErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		detail := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			detail = fmt.Sprint(he.Message)
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
		}
		if werr := writeProblem(c, status, http.StatusText(status), detail); werr != nil {
			logger.Error("failed to write problem", "error", werr)
		}
	}
}

// plannerError maps planner errors: input errors are 400, failed workflow
// runs are 500 naming the failed steps.
func (h *Handler) plannerError(c echo.Context, err error) error {
	var runErr *workflow.RunError
	switch {
	case errors.Is(err, fetch.ErrInvalidInput), errors.Is(err, budget.ErrUnknownStyle):
		return writeProblem(c, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.As(err, &runErr):
		return writeProblem(c, http.StatusInternalServerError, "Planning Failed",
			"failed steps: "+strings.Join(runErr.Steps(), ", "))
	default:
		h.logger.Error("planner call failed", "path", c.Request().URL.Path, "error", err)
		return writeProblem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}

// decode validates the body against schema and unmarshals it into dst.
func (h *Handler) decode(c echo.Context, schema string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if err := h.validator.Validate(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	return nil
}

// CreatePlan plans a single city visit
// (POST /api/v1/plans)
func (h *Handler) CreatePlan(c echo.Context) error {
	var req models.PlanRequest
	if err := h.decode(c, validation.Plan, &req); err != nil {
		return writeProblem(c, http.StatusBadRequest, "Invalid Request Body", err.Error())
	}

	resp, err := h.planner.Plan(c.Request().Context(), identity(c), req)
	if err != nil {
		return h.plannerError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateTrip plans a multi-destination trip
// (POST /api/v1/trips)
func (h *Handler) CreateTrip(c echo.Context) error {
	var req models.TripRequest
	if err := h.decode(c, validation.Trip, &req); err != nil {
		return writeProblem(c, http.StatusBadRequest, "Invalid Request Body", err.Error())
	}

	plan, err := h.planner.PlanTrip(c.Request().Context(), identity(c), req)
	if err != nil {
		return h.plannerError(c, err)
	}
	return c.JSON(http.StatusOK, plan)
}

// result writes a lookup result. Rate-limited and failed lookups are still
// 200 with their status in the body.
func result[T any](h *Handler, c echo.Context, r fetch.Result[T], err error) error {
	if err != nil {
		return h.plannerError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func badQuery(c echo.Context, err error) error {
	return writeProblem(c, http.StatusBadRequest, "Invalid Query", err.Error())
}

// GetCity returns facts about a city
// (GET /api/v1/cities/:city)
func (h *Handler) GetCity(c echo.Context) error {
	r, err := h.planner.CityFacts(c.Request().Context(), identity(c), c.Param("city"))
	return result(h, c, r, err)
}

// GetWeather returns current conditions for a city
// (GET /api/v1/weather/:city)
func (h *Handler) GetWeather(c echo.Context) error {
	loc := planner.Location{City: c.Param("city"), Country: c.QueryParam("country")}
	r, err := h.planner.Weather(c.Request().Context(), identity(c), loc)
	return result(h, c, r, err)
}

// SearchFlights searches flight offers
// (GET /api/v1/flights)
func (h *Handler) SearchFlights(c echo.Context) error {
	var (
		q     models.FlightQuery
		class string
	)
	err := echo.QueryParamsBinder(c).
		String("origin", &q.Origin).
		String("destination", &q.Destination).
		String("departure_date", &q.DepartureDate).
		String("return_date", &q.ReturnDate).
		Int("passengers", &q.Passengers).
		String("class", &class).
		BindError()
	if err != nil {
		return badQuery(c, err)
	}
	q.Class = models.FlightClass(strings.ToLower(class))

	r, err := h.planner.SearchFlights(c.Request().Context(), identity(c), q)
	return result(h, c, r, err)
}

// SearchHotels searches hotel offers
// (GET /api/v1/hotels)
func (h *Handler) SearchHotels(c echo.Context) error {
	var (
		q          models.HotelQuery
		priceRange string
	)
	err := echo.QueryParamsBinder(c).
		String("city", &q.City).
		String("check_in", &q.CheckIn).
		String("check_out", &q.CheckOut).
		Int("guests", &q.Guests).
		String("price_range", &priceRange).
		Strings("amenities", &q.Amenities).
		BindError()
	if err != nil {
		return badQuery(c, err)
	}
	if priceRange != "" {
		style, err := budget.ParseStyle(priceRange)
		if err != nil {
			return badQuery(c, err)
		}
		q.PriceRange = style
	}

	r, err := h.planner.SearchHotels(c.Request().Context(), identity(c), q)
	return result(h, c, r, err)
}

// ConvertCurrency converts between currencies
// (GET /api/v1/currency/convert)
func (h *Handler) ConvertCurrency(c echo.Context) error {
	var q models.CurrencyQuery
	err := echo.QueryParamsBinder(c).
		Float64("amount", &q.Amount).
		String("from", &q.From).
		String("to", &q.To).
		BindError()
	if err != nil {
		return badQuery(c, err)
	}

	r, err := h.planner.ConvertCurrency(c.Request().Context(), identity(c), q)
	return result(h, c, r, err)
}

// Search runs a web search
// (GET /api/v1/search)
func (h *Handler) Search(c echo.Context) error {
	r, err := h.planner.WebSearch(c.Request().Context(), identity(c), c.QueryParam("q"))
	return result(h, c, r, err)
}

// CheckVisa returns entry requirements
// (GET /api/v1/advisories/visa)
func (h *Handler) CheckVisa(c echo.Context) error {
	var q models.VisaQuery
	err := echo.QueryParamsBinder(c).
		String("passport", &q.PassportCountry).
		String("destination", &q.DestinationCountry).
		Int("stay", &q.StayDuration).
		BindError()
	if err != nil {
		return badQuery(c, err)
	}

	r, err := h.planner.Visa(c.Request().Context(), identity(c), q)
	return result(h, c, r, err)
}

// Insurance returns travel insurance plans
// (GET /api/v1/advisories/insurance)
func (h *Handler) Insurance(c echo.Context) error {
	var q models.InsuranceQuery
	err := echo.QueryParamsBinder(c).
		String("destination", &q.Destination).
		Int("duration", &q.Duration).
		Int("travelers", &q.Travelers).
		Int("age", &q.Age).
		Strings("activities", &q.Activities).
		Bool("pre_existing", &q.PreExisting).
		BindError()
	if err != nil {
		return badQuery(c, err)
	}

	r, err := h.planner.Insurance(c.Request().Context(), identity(c), q)
	return result(h, c, r, err)
}

// BestTimeToVisit returns seasonal advice
// (GET /api/v1/advisories/season)
func (h *Handler) BestTimeToVisit(c echo.Context) error {
	var q planner.SeasonQuery
	err := echo.QueryParamsBinder(c).
		String("destination", &q.Destination).
		Strings("preferences", &q.Preferences).
		BindError()
	if err != nil {
		return badQuery(c, err)
	}

	r, err := h.planner.BestTimeToVisit(c.Request().Context(), identity(c), q)
	return result(h, c, r, err)
}

// GroupTravel splits a group budget
// (POST /api/v1/advisories/group)
func (h *Handler) GroupTravel(c echo.Context) error {
	var q models.GroupQuery
	if err := h.decode(c, validation.Group, &q); err != nil {
		return writeProblem(c, http.StatusBadRequest, "Invalid Request Body", err.Error())
	}
	r, err := h.planner.GroupTravel(c.Request().Context(), q)
	return result(h, c, r, err)
}

// CacheStats reports the cache backend and size
// (GET /api/v1/cache/stats)
func (h *Handler) CacheStats(c echo.Context) error {
	stats, err := h.cache.Stats(c.Request().Context())
	if err != nil {
		return writeProblem(c, http.StatusInternalServerError, "Cache Unavailable", err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// ClearCache drops every cached entry
// (DELETE /api/v1/cache)
func (h *Handler) ClearCache(c echo.Context) error {
	if err := h.cache.Clear(c.Request().Context()); err != nil {
		return writeProblem(c, http.StatusInternalServerError, "Cache Unavailable", err.Error())
	}
	h.logger.Info("cache cleared", "identity", identity(c))
	return c.NoContent(http.StatusNoContent)
}

// RateLimitStatus is the caller's view of its windows.
type RateLimitStatus struct {
	Identity string          `json:"identity"`
	Classes  []string        `json:"classes"`
	Stats    ratelimit.Stats `json:"stats"`
}

// RateLimitStats returns the caller's rate limit windows
// (GET /api/v1/ratelimit)
func (h *Handler) RateLimitStats(c echo.Context) error {
	id := identity(c)
	return c.JSON(http.StatusOK, RateLimitStatus{
		Identity: id,
		Classes:  h.limiter.Classes(),
		Stats:    h.limiter.Stats(id),
	})
}

// ResetRateLimit clears every window of an identifier
// (DELETE /api/v1/ratelimit/:identifier)
func (h *Handler) ResetRateLimit(c echo.Context) error {
	target := c.Param("identifier")
	h.limiter.Reset(target)
	h.logger.Info("rate limit reset", "identifier", target, "by", identity(c))
	return c.NoContent(http.StatusNoContent)
}
