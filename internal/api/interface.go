package api

import (
	"context"

	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/planner"
	"city-planner/backend/pkg/models"
)

// Planner is the planning core served over HTTP.
type Planner interface {
	Plan(ctx context.Context, identity string, req models.PlanRequest) (*models.PlanResponse, error)
	PlanTrip(ctx context.Context, identity string, req models.TripRequest) (*models.TripPlan, error)

	CityFacts(ctx context.Context, identity, city string) (fetch.Result[models.CityFacts], error)
	Weather(ctx context.Context, identity string, loc planner.Location) (fetch.Result[models.Weather], error)
	SearchFlights(ctx context.Context, identity string, q models.FlightQuery) (fetch.Result[models.FlightSearch], error)
	SearchHotels(ctx context.Context, identity string, q models.HotelQuery) (fetch.Result[models.HotelSearch], error)
	ConvertCurrency(ctx context.Context, identity string, q models.CurrencyQuery) (fetch.Result[models.CurrencyConversion], error)
	WebSearch(ctx context.Context, identity, query string) (fetch.Result[models.SearchResponse], error)
	Visa(ctx context.Context, identity string, q models.VisaQuery) (fetch.Result[models.VisaAdvice], error)
	Insurance(ctx context.Context, identity string, q models.InsuranceQuery) (fetch.Result[models.InsuranceAdvice], error)
	BestTimeToVisit(ctx context.Context, identity string, q planner.SeasonQuery) (fetch.Result[models.SeasonAdvice], error)
	GroupTravel(ctx context.Context, q models.GroupQuery) (fetch.Result[models.GroupPlan], error)
}

var _ Planner = (*planner.Service)(nil)
