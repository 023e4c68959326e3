// Package planner wires the fetch operations, the budget allocator and the
// itinerary assembler into the city and trip workflows.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"city-planner/backend/internal/budget"
	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/itinerary"
	"city-planner/backend/internal/logging"
	"city-planner/backend/internal/providers"
	"city-planner/backend/internal/workflow"
	"city-planner/backend/pkg/models"
)

// ErrInvalidRequest marks a plan or trip request that cannot be planned.
var ErrInvalidRequest = fmt.Errorf("invalid request: %w", fetch.ErrInvalidInput)

// Request bounds enforced before a run starts.
const (
	MaxDuration     = itinerary.MaxDays
	MaxDestinations = 10
)

// DefaultFanOutLimit bounds parallel stages and per-destination fan-out.
const DefaultFanOutLimit = 4

// Providers are the live collaborators. A nil client drops its tier.
type Providers struct {
	Facts   providers.FactsClient
	Weather providers.WeatherClient
	Flights providers.FlightClient
	Hotels  providers.HotelClient
	Rates   providers.RatesClient
	Search  fetch.Searcher
}

// Service runs the planning workflows and the single lookups.
type Service struct {
	adapter   *fetch.Adapter
	catalog   *providers.Catalog
	providers Providers
	logger    *logging.Logger
	now       func() time.Time
	fanOut    int

	ops       operations
	cityGraph *workflow.Graph
	tripGraph *workflow.Graph
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFanOutLimit bounds concurrent steps; zero or less keeps the default.
func WithFanOutLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fanOut = n
		}
	}
}

// New builds the service and validates both workflow graphs.
func New(adapter *fetch.Adapter, catalog *providers.Catalog, p Providers, opts ...Option) (*Service, error) {
	s := &Service{
		adapter:   adapter,
		catalog:   catalog,
		providers: p,
		logger:    logging.Nop(),
		now:       time.Now,
		fanOut:    DefaultFanOutLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ops = s.buildOperations()

	var err error
	if s.cityGraph, err = s.buildCityGraph(); err != nil {
		return nil, fmt.Errorf("failed to build city planner workflow: %w", err)
	}
	if s.tripGraph, err = s.buildTripGraph(); err != nil {
		return nil, fmt.Errorf("failed to build trip planner workflow: %w", err)
	}
	return s, nil
}

// Classify picks the planning branch for a request. An explicit full mode
// needs a duration and a budget.
func Classify(req models.PlanRequest) (models.PlanningType, error) {
	switch req.Mode {
	case models.ModeQuick:
		return models.PlanningQuickRecommendations, nil
	case models.ModeFull:
		if req.Duration <= 0 || req.Budget <= 0 {
			return "", fmt.Errorf("%w: full mode needs a duration and a budget", ErrInvalidRequest)
		}
		return models.PlanningFullItinerary, nil
	case models.ModeAuto:
		if req.Duration > 0 && req.Budget > 0 {
			return models.PlanningFullItinerary, nil
		}
		return models.PlanningQuickRecommendations, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
}

func normalizePlan(req models.PlanRequest) (models.PlanRequest, error) {
	req.City = strings.TrimSpace(req.City)
	req.Country = strings.TrimSpace(req.Country)
	if req.City == "" {
		return req, fmt.Errorf("%w: city is required", ErrInvalidRequest)
	}
	if req.Duration < 0 || req.Budget < 0 {
		return req, fmt.Errorf("%w: duration and budget must not be negative", ErrInvalidRequest)
	}
	if req.Duration > MaxDuration {
		return req, fmt.Errorf("%w: duration must be at most %d days", ErrInvalidRequest, MaxDuration)
	}
	style, err := budget.ParseStyle(string(req.Style))
	if err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.Style = style
	if _, err := Classify(req); err != nil {
		return req, err
	}
	return req, nil
}

// CityFacts looks up facts about a city.
func (s *Service) CityFacts(ctx context.Context, identity, city string) (fetch.Result[models.CityFacts], error) {
	return fetch.Fetch(ctx, s.adapter, s.ops.facts, identity, strings.TrimSpace(city))
}

// Weather returns current conditions for a city.
func (s *Service) Weather(ctx context.Context, identity string, loc Location) (fetch.Result[models.Weather], error) {
	loc.City = strings.TrimSpace(loc.City)
	return fetch.Fetch(ctx, s.adapter, s.ops.weather, identity, loc)
}

// SearchFlights searches flight offers. Passengers default to one and the
// cabin to economy.
func (s *Service) SearchFlights(ctx context.Context, identity string, q models.FlightQuery) (fetch.Result[models.FlightSearch], error) {
	if q.Passengers == 0 {
		q.Passengers = 1
	}
	if q.Class == "" {
		q.Class = models.ClassEconomy
	}
	return fetch.Fetch(ctx, s.adapter, s.ops.flights, identity, q)
}

// SearchHotels searches hotel offers. Guests default to one and the price
// range to mid-range.
func (s *Service) SearchHotels(ctx context.Context, identity string, q models.HotelQuery) (fetch.Result[models.HotelSearch], error) {
	if q.Guests == 0 {
		q.Guests = 1
	}
	if q.PriceRange == "" {
		q.PriceRange = models.StyleMidRange
	}
	return fetch.Fetch(ctx, s.adapter, s.ops.hotels, identity, q)
}

// ConvertCurrency converts an amount between two currency codes.
func (s *Service) ConvertCurrency(ctx context.Context, identity string, q models.CurrencyQuery) (fetch.Result[models.CurrencyConversion], error) {
	q.From = strings.ToUpper(strings.TrimSpace(q.From))
	q.To = strings.ToUpper(strings.TrimSpace(q.To))
	return fetch.Fetch(ctx, s.adapter, s.ops.currency, identity, q)
}

// WebSearch runs a general web search.
func (s *Service) WebSearch(ctx context.Context, identity, query string) (fetch.Result[models.SearchResponse], error) {
	return fetch.Fetch(ctx, s.adapter, s.ops.search, identity, strings.TrimSpace(query))
}

// Visa returns entry requirements for a passport and destination.
func (s *Service) Visa(ctx context.Context, identity string, q models.VisaQuery) (fetch.Result[models.VisaAdvice], error) {
	if q.StayDuration == 0 {
		q.StayDuration = providers.DefaultStay
	}
	return fetch.Fetch(ctx, s.adapter, s.ops.visa, identity, q)
}

// Insurance returns insurance plans for a trip.
func (s *Service) Insurance(ctx context.Context, identity string, q models.InsuranceQuery) (fetch.Result[models.InsuranceAdvice], error) {
	if q.Travelers == 0 {
		q.Travelers = 1
	}
	if q.Age == 0 {
		q.Age = providers.DefaultAge
	}
	return fetch.Fetch(ctx, s.adapter, s.ops.insurance, identity, q)
}

// BestTimeToVisit returns seasonal advice for a destination.
func (s *Service) BestTimeToVisit(ctx context.Context, identity string, q SeasonQuery) (fetch.Result[models.SeasonAdvice], error) {
	return fetch.Fetch(ctx, s.adapter, s.ops.season, identity, q)
}

// GroupTravel splits a group budget. It is computed, never fetched.
func (s *Service) GroupTravel(_ context.Context, q models.GroupQuery) (fetch.Result[models.GroupPlan], error) {
	switch {
	case strings.TrimSpace(q.Destination) == "":
		return fetch.Result[models.GroupPlan]{}, fmt.Errorf("group-travel: %w: destination is required", fetch.ErrInvalidInput)
	case q.Travelers < 1:
		return fetch.Result[models.GroupPlan]{}, fmt.Errorf("group-travel: %w: travelers must be at least 1", fetch.ErrInvalidInput)
	case q.Duration < 1:
		return fetch.Result[models.GroupPlan]{}, fmt.Errorf("group-travel: %w: duration must be at least 1 day", fetch.ErrInvalidInput)
	case q.TotalBudget < 0:
		return fetch.Result[models.GroupPlan]{}, fmt.Errorf("group-travel: %w: total budget must not be negative", fetch.ErrInvalidInput)
	}
	return fetch.Result[models.GroupPlan]{
		Status:    fetch.StatusOK,
		Source:    fetch.SourceStatic,
		Data:      providers.Group(q),
		FetchedAt: s.now(),
	}, nil
}
