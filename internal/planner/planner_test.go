package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"city-planner/backend/internal/budget"
	"city-planner/backend/internal/cache"
	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/providers"
	"city-planner/backend/internal/ratelimit"
	"city-planner/backend/internal/workflow"
	"city-planner/backend/pkg/models"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type mockFlights struct{ mock.Mock }

func (m *mockFlights) SearchFlights(ctx context.Context, q models.FlightQuery) (models.FlightSearch, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(models.FlightSearch), args.Error(1)
}

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	args := m.Called(ctx, query)
	hits, _ := args.Get(0).([]models.SearchResult)
	return hits, args.Error(1)
}

type mockWeather struct{ mock.Mock }

func (m *mockWeather) Current(ctx context.Context, city, country string) (models.Weather, error) {
	args := m.Called(ctx, city, country)
	return args.Get(0).(models.Weather), args.Error(1)
}

func newService(t *testing.T, p Providers, limits map[string]int) *Service {
	t.Helper()
	c := cache.New(cache.NewMemoryStore(), cache.WithClock(clock))
	l := ratelimit.New(ratelimit.WithClock(clock), ratelimit.WithClassLimits(limits))
	a := fetch.NewAdapter(c, l, fetch.WithClock(clock), fetch.WithTimeout(time.Second))
	s, err := New(a, providers.MustCatalog(), p, WithClock(clock), WithFanOutLimit(2))
	require.NoError(t, err)
	return s
}

func reportsByID(reports []models.StepReport) map[string]models.StepReport {
	out := make(map[string]models.StepReport, len(reports))
	for _, r := range reports {
		out[r.ID] = r
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		req     models.PlanRequest
		want    models.PlanningType
		wantErr bool
	}{
		{"auto with duration and budget", models.PlanRequest{Duration: 3, Budget: 900}, models.PlanningFullItinerary, false},
		{"auto without budget", models.PlanRequest{Duration: 3}, models.PlanningQuickRecommendations, false},
		{"auto without duration", models.PlanRequest{Budget: 900}, models.PlanningQuickRecommendations, false},
		{"quick wins over full inputs", models.PlanRequest{Mode: models.ModeQuick, Duration: 3, Budget: 900}, models.PlanningQuickRecommendations, false},
		{"explicit full", models.PlanRequest{Mode: models.ModeFull, Duration: 3, Budget: 900}, models.PlanningFullItinerary, false},
		{"explicit full missing budget", models.PlanRequest{Mode: models.ModeFull, Duration: 3}, "", true},
		{"unknown mode", models.PlanRequest{Mode: "slow"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				assert.ErrorIs(t, err, fetch.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanParisFullItinerary(t *testing.T) {
	s := newService(t, Providers{}, nil)

	resp, err := s.Plan(context.Background(), "user:alice", models.PlanRequest{
		City:      "Paris",
		Duration:  5,
		Budget:    2000,
		Style:     models.StyleMidRange,
		Interests: []string{"historical sites", "local food"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, models.PlanningFullItinerary, resp.PlanningType)
	assert.Equal(t, "France", resp.City.Country)
	assert.Equal(t, "Euro (EUR)", resp.City.Facts.Currency)
	assert.Nil(t, resp.Recommendations)

	require.NotNil(t, resp.Itinerary)
	it := resp.Itinerary
	assert.Len(t, it.DailyItinerary, 5)
	assert.Equal(t, models.BudgetBreakdown{
		Total: 2000, Style: models.StyleMidRange,
		Accommodation: 700, Food: 600, Activities: 500, Transportation: 100, Contingency: 100,
	}, it.BudgetBreakdown)
	assert.LessOrEqual(t, it.PlannedSpend, 2000)

	spend := it.BudgetBreakdown.Accommodation + it.BudgetBreakdown.Transportation
	for _, d := range it.DailyItinerary {
		spend += d.TotalDayCost
	}
	assert.Equal(t, spend, it.PlannedSpend)
	assert.Equal(t, "Mar 11, 2024", it.DailyItinerary[0].Date)

	steps := reportsByID(resp.Steps)
	require.Len(t, steps, 6)
	assert.Equal(t, string(workflow.StatusCompleted), steps[StepCityFacts].Status)
	assert.Equal(t, string(fetch.SourceStatic), steps[StepCityFacts].Source)
	assert.Equal(t, string(fetch.SourceStatic), steps[StepWeather].Source)
	assert.Equal(t, string(workflow.StatusCompleted), steps[StepFullItinerary].Status)
	assert.Equal(t, string(workflow.StatusSkipped), steps[StepRecommendations].Status)
	assert.Equal(t, string(workflow.StatusCompleted), steps[StepFormat].Status)
}

func TestPlanQuickUsesLocalConditions(t *testing.T) {
	w := &mockWeather{}
	w.On("Current", mock.Anything, "Oslo", "").Return(models.Weather{
		City: "Oslo", Country: "NO", Temperature: 4, Condition: "Clouds", UTCOffset: 3600,
	}, nil).Once()
	s := newService(t, Providers{Weather: w}, nil)

	resp, err := s.Plan(context.Background(), "user:alice", models.PlanRequest{City: "Oslo", Duration: 2})
	require.NoError(t, err)

	assert.Equal(t, models.PlanningQuickRecommendations, resp.PlanningType)
	assert.Nil(t, resp.Itinerary)
	require.NotNil(t, resp.Recommendations)
	assert.Equal(t, "Museum Visit", resp.Recommendations.Recommendations[0].Activity)
	assert.Equal(t, 13, resp.City.LocalTime.Hour())
	assert.Equal(t, "Unknown", resp.City.Facts.Country)

	steps := reportsByID(resp.Steps)
	assert.Equal(t, string(fetch.SourcePrimary), steps[StepWeather].Source)
	assert.Equal(t, string(workflow.StatusSkipped), steps[StepFullItinerary].Status)
	assert.Equal(t, string(workflow.StatusCompleted), steps[StepRecommendations].Status)

	// the second plan reads weather from the cache
	resp, err = s.Plan(context.Background(), "user:alice", models.PlanRequest{City: "Oslo", Mode: models.ModeQuick})
	require.NoError(t, err)
	assert.Equal(t, "served from cache", reportsByID(resp.Steps)[StepWeather].Message)
	w.AssertExpectations(t)
}

func TestPlanRejectsInvalidRequests(t *testing.T) {
	s := newService(t, Providers{}, nil)
	ctx := context.Background()

	_, err := s.Plan(ctx, "user:alice", models.PlanRequest{City: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Plan(ctx, "user:alice", models.PlanRequest{City: "Paris", Mode: models.ModeFull, Duration: 3})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Plan(ctx, "user:alice", models.PlanRequest{City: "Paris", Style: "backpacker"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, budget.ErrUnknownStyle)

	resp, err := s.Plan(ctx, "user:alice", models.PlanRequest{City: "Paris", Duration: 1_000_000_000, Budget: 2000})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Nil(t, resp)
}

func TestPlanTripRejectsOversizedRequests(t *testing.T) {
	s := newService(t, Providers{}, nil)
	ctx := context.Background()

	_, err := s.PlanTrip(ctx, "user:alice", models.TripRequest{
		Destinations: []string{"Paris"},
		Duration:     MaxDuration + 1,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	many := make([]string, MaxDestinations+1)
	for i := range many {
		many[i] = fmt.Sprintf("City %d", i)
	}
	_, err = s.PlanTrip(ctx, "user:alice", models.TripRequest{Destinations: many})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSearchFlightsFallsBackToWebSearch(t *testing.T) {
	flights := &mockFlights{}
	flights.On("SearchFlights", mock.Anything, mock.Anything).Return(models.FlightSearch{}, errors.New("amadeus: 500")).Once()
	search := &mockSearcher{}
	search.On("Search", mock.Anything, "flights from Boston to Lisbon prices").Return([]models.SearchResult{
		{Title: "Cheap flights", Snippet: "Round trips from $480 in spring", URL: "https://example.com/a"},
		{Title: "Empty", URL: "https://example.com/b"},
	}, nil).Once()

	s := newService(t, Providers{Flights: flights, Search: search}, nil)
	r, err := s.SearchFlights(context.Background(), "user:alice", models.FlightQuery{Origin: "Boston", Destination: "Lisbon"})
	require.NoError(t, err)

	assert.Equal(t, fetch.StatusOK, r.Status)
	assert.Equal(t, fetch.SourceSearch, r.Source)
	assert.Equal(t, []string{"Cheap flights: Round trips from $480 in spring"}, r.Data.Recommendations)
	assert.Empty(t, r.Data.Flights)
	flights.AssertExpectations(t)
	search.AssertExpectations(t)
}

func TestSearchFlightsGeneratesOffersLast(t *testing.T) {
	search := &mockSearcher{}
	search.On("Search", mock.Anything, mock.Anything).Return(nil, nil)

	s := newService(t, Providers{Search: search}, nil)
	r, err := s.SearchFlights(context.Background(), "user:alice", models.FlightQuery{Origin: "Boston", Destination: "Chicago"})
	require.NoError(t, err)

	assert.Equal(t, fetch.SourceStatic, r.Source)
	assert.Equal(t, providers.GenerateFlights(models.FlightQuery{
		Origin: "Boston", Destination: "Chicago", Passengers: 1, Class: models.ClassEconomy,
	}), r.Data)
}

func TestSearchFlightsRateLimited(t *testing.T) {
	s := newService(t, Providers{}, map[string]int{ratelimit.ClassFlight: 1})
	ctx := context.Background()

	first, err := s.SearchFlights(ctx, "user:alice", models.FlightQuery{Origin: "Boston", Destination: "Chicago"})
	require.NoError(t, err)
	assert.True(t, first.OK())

	cached, err := s.SearchFlights(ctx, "user:alice", models.FlightQuery{Origin: "Boston", Destination: "Chicago"})
	require.NoError(t, err)
	assert.True(t, cached.Cached)

	denied, err := s.SearchFlights(ctx, "user:alice", models.FlightQuery{Origin: "Boston", Destination: "Denver"})
	require.NoError(t, err)
	assert.Equal(t, fetch.StatusRateLimited, denied.Status)
	assert.Contains(t, denied.Message, "flight rate limit exceeded")

	other, err := s.SearchFlights(ctx, "user:bob", models.FlightQuery{Origin: "Boston", Destination: "Denver"})
	require.NoError(t, err)
	assert.True(t, other.OK())
}

func TestSingleLookups(t *testing.T) {
	s := newService(t, Providers{}, nil)
	ctx := context.Background()

	conv, err := s.ConvertCurrency(ctx, "user:alice", models.CurrencyQuery{Amount: 100, From: "usd", To: "eur"})
	require.NoError(t, err)
	assert.Equal(t, float64(92), conv.Data.Converted)
	assert.Equal(t, fetch.SourceStatic, conv.Source)

	_, err = s.ConvertCurrency(ctx, "user:alice", models.CurrencyQuery{Amount: 100, From: "dollars", To: "EUR"})
	assert.ErrorIs(t, err, fetch.ErrInvalidInput)

	hotels, err := s.SearchHotels(ctx, "user:alice", models.HotelQuery{City: "Lisbon", CheckIn: "2024-03-10", CheckOut: "2024-03-15"})
	require.NoError(t, err)
	assert.Equal(t, 5, hotels.Data.Nights)
	assert.Len(t, hotels.Data.Hotels, 4)

	visa, err := s.Visa(ctx, "user:alice", models.VisaQuery{PassportCountry: "United States", DestinationCountry: "France"})
	require.NoError(t, err)
	assert.False(t, visa.Data.VisaRequired)

	_, err = s.Visa(ctx, "user:alice", models.VisaQuery{PassportCountry: "United States"})
	assert.ErrorIs(t, err, fetch.ErrInvalidInput)

	ins, err := s.Insurance(ctx, "user:alice", models.InsuranceQuery{Destination: "Europe", Duration: 10})
	require.NoError(t, err)
	assert.Len(t, ins.Data.Plans, 3)

	season, err := s.BestTimeToVisit(ctx, "user:alice", SeasonQuery{Destination: "Bali"})
	require.NoError(t, err)
	assert.Equal(t, []string{"November", "February", "March"}, season.Data.BestMonths)

	found, err := s.WebSearch(ctx, "user:alice", "where to eat in rome")
	require.NoError(t, err)
	assert.Equal(t, "Local Food & Restaurants", found.Data.Results[0].Title)

	group, err := s.GroupTravel(ctx, models.GroupQuery{Destination: "Lisbon", Travelers: 4, TotalBudget: 4000, Duration: 5})
	require.NoError(t, err)
	assert.Equal(t, 1000, group.Data.PerPersonBudget)

	_, err = s.GroupTravel(ctx, models.GroupQuery{Destination: "Lisbon", Duration: 5})
	assert.ErrorIs(t, err, fetch.ErrInvalidInput)
}

func TestPlanTrip(t *testing.T) {
	s := newService(t, Providers{}, nil)

	plan, err := s.PlanTrip(context.Background(), "user:alice", models.TripRequest{
		Destinations:    []string{"Paris", " Rome "},
		Origin:          "New York",
		PassportCountry: "United States",
		Duration:        8,
		Budget:          9000,
		Travelers:       2,
		CheckIn:         "2024-05-01",
		CheckOut:        "2024-05-05",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, plan.RunID)
	assert.Equal(t, []string{"New York", "Paris", "Rome"}, plan.Route)
	require.Len(t, plan.Destinations, 2)
	assert.Equal(t, "Rome", plan.Destinations[1].City)
	assert.Equal(t, "Italy", plan.Destinations[1].Facts.Country)
	assert.Equal(t, []string{"May", "September", "October"}, plan.Destinations[0].BestMonths)

	assert.Len(t, plan.Requirements.Visas, 2)
	require.NotNil(t, plan.Requirements.Insurance)
	assert.Equal(t, []models.CurrencyInfo{
		{Destination: "Paris", Currency: "EUR", ConversionFrom: "USD"},
		{Destination: "Rome", Currency: "EUR", ConversionFrom: "USD"},
	}, plan.Requirements.CurrencyInfo)

	fh := plan.FlightsHotels
	require.Len(t, fh.Flights, 2)
	assert.Equal(t, "New York", fh.Flights[0].Origin)
	assert.Equal(t, "Paris", fh.Flights[1].Origin)
	require.Len(t, fh.Hotels, 2)
	assert.InDelta(t, (fh.Hotels[0].AveragePrice+fh.Hotels[1].AveragePrice)*4, fh.EstimatedAccommodationCost, 0.01)
	assert.InDelta(t, fh.Flights[0].CheapestPrice+fh.Flights[1].CheapestPrice, fh.EstimatedTransportCost, 0.01)

	require.NotNil(t, plan.GroupPlan)
	assert.Equal(t, 4500, plan.GroupPlan.PerPersonBudget)
	require.NotNil(t, plan.BudgetOverview)
	assert.InDelta(t, 9000-fh.EstimatedTransportCost-fh.EstimatedAccommodationCost, plan.BudgetOverview.Remaining, 0.01)
	assert.Contains(t, plan.Tips, "Allow extra time between cities for travel")

	for _, step := range plan.Steps {
		assert.Equal(t, string(workflow.StatusCompleted), step.Status, step.ID)
	}
}

func TestPlanTripWithoutOriginSkipsFlights(t *testing.T) {
	s := newService(t, Providers{}, nil)

	plan, err := s.PlanTrip(context.Background(), "user:alice", models.TripRequest{Destinations: []string{"Tokyo"}})
	require.NoError(t, err)
	assert.Empty(t, plan.FlightsHotels.Flights)
	assert.Len(t, plan.FlightsHotels.Hotels, 1)
	assert.Empty(t, plan.Requirements.Visas)
	assert.Nil(t, plan.GroupPlan)
	assert.Nil(t, plan.BudgetOverview)
	assert.Equal(t, []string{"Tokyo"}, plan.Route)
	assert.Equal(t, "JPY", plan.Requirements.CurrencyInfo[0].Currency)

	_, err = s.PlanTrip(context.Background(), "user:alice", models.TripRequest{Destinations: []string{" "}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
