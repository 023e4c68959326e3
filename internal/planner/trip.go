package planner

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"city-planner/backend/internal/providers"
	"city-planner/backend/internal/workflow"
	"city-planner/backend/pkg/models"
)

// Trip planner step ids.
const (
	StepDestinations  = "gather-destination-intelligence"
	StepRequirements  = "check-travel-requirements"
	StepFlightsHotels = "search-flights-hotels"
	StepTripPlan      = "create-comprehensive-plan"
)

const (
	defaultTripDays   = 7
	homeCurrency      = "USD"
	currencyInCaption = `\(([^)]+)\)`
)

var captionCode = regexp.MustCompile(currencyInCaption)

func (s *Service) buildTripGraph() (*workflow.Graph, error) {
	request := workflow.Trigger("request")
	identity := workflow.Trigger("identity")
	intel := workflow.From(StepDestinations, "items")

	return workflow.NewBuilder("trip-planner").
		WithConcurrency(s.fanOut).
		WithLogger(s.logger).
		Then(workflow.Step{
			ID:   StepDestinations,
			Mode: workflow.FanOut,
			Over: "destinations",
			Inputs: map[string]workflow.Binding{
				"destinations": workflow.Trigger("destinations"),
				"identity":     identity,
			},
			Run: s.gatherDestination,
		}).
		Parallel(
			workflow.Step{
				ID:     StepRequirements,
				Inputs: map[string]workflow.Binding{"request": request, "identity": identity, "intel": intel},
				Run:    s.checkTravelRequirements,
			},
			workflow.Step{
				ID:     StepFlightsHotels,
				Inputs: map[string]workflow.Binding{"request": request, "identity": identity},
				Run:    s.searchFlightsHotels,
			},
		).
		Then(workflow.Step{
			ID: StepTripPlan,
			Inputs: map[string]workflow.Binding{
				"request":        request,
				"intel":          intel,
				"requirements":   workflow.From(StepRequirements, "requirements"),
				"flights_hotels": workflow.From(StepFlightsHotels, "flights_hotels"),
			},
			Run: s.createComprehensivePlan,
		}).
		Build()
}

// destinations reads the per-destination intel from the fan-out output.
func destinations(in workflow.Values) ([]models.DestinationIntel, error) {
	items, err := input[[]workflow.Values](in, "intel")
	if err != nil {
		return nil, err
	}
	out := make([]models.DestinationIntel, len(items))
	for i, item := range items {
		d, ok := item["intel"].(models.DestinationIntel)
		if !ok {
			return nil, fmt.Errorf("destination %d has no intel", i)
		}
		out[i] = d
	}
	return out, nil
}

func (s *Service) gatherDestination(ctx context.Context, in workflow.Values) (workflow.Values, error) {
	city, err := input[string](in, "item")
	if err != nil {
		return nil, err
	}
	identity, _ := in["identity"].(string)

	facts, err := s.CityFacts(ctx, identity, city)
	if err != nil {
		return nil, err
	}
	if !facts.OK() {
		return nil, fmt.Errorf("city facts for %s: %s", city, facts.Message)
	}
	country := facts.Data.Country
	if country == "Unknown" {
		country = ""
	}
	weather, err := s.Weather(ctx, identity, Location{City: city, Country: country})
	if err != nil {
		return nil, err
	}
	if !weather.OK() {
		return nil, fmt.Errorf("weather for %s: %s", city, weather.Message)
	}
	season, err := s.BestTimeToVisit(ctx, identity, SeasonQuery{Destination: city})
	if err != nil {
		return nil, err
	}

	d := models.DestinationIntel{City: city, Facts: facts.Data, Weather: weather.Data}
	if season.OK() {
		d.BestMonths = season.Data.BestMonths
	}
	return workflow.Values{"intel": d}, nil
}

func currencyOf(facts models.CityFacts) string {
	if m := captionCode.FindStringSubmatch(facts.Currency); m != nil {
		return m[1]
	}
	if facts.Currency == "" {
		return homeCurrency
	}
	return facts.Currency
}

func tripDays(req models.TripRequest) int {
	if req.Duration > 0 {
		return req.Duration
	}
	return defaultTripDays
}

func travelers(req models.TripRequest) int {
	if req.Travelers > 0 {
		return req.Travelers
	}
	return 1
}

func (s *Service) checkTravelRequirements(ctx context.Context, in workflow.Values) (workflow.Values, error) {
	req, err := input[models.TripRequest](in, "request")
	if err != nil {
		return nil, err
	}
	identity, _ := in["identity"].(string)
	dests, err := destinations(in)
	if err != nil {
		return nil, err
	}

	var reqs models.TravelRequirements
	var notes []string
	if req.PassportCountry != "" {
		for _, d := range dests {
			r, err := s.Visa(ctx, identity, models.VisaQuery{
				PassportCountry:    req.PassportCountry,
				DestinationCountry: d.City,
				StayDuration:       tripDays(req),
			})
			if err != nil {
				return nil, err
			}
			if r.OK() {
				reqs.Visas = append(reqs.Visas, r.Data)
			} else {
				notes = append(notes, fmt.Sprintf("visa for %s: %s", d.City, r.Message))
			}
		}
	}

	if len(dests) > 0 {
		r, err := s.Insurance(ctx, identity, models.InsuranceQuery{
			Destination: dests[0].City,
			Duration:    tripDays(req),
			Travelers:   travelers(req),
			Activities:  req.Activities,
		})
		if err != nil {
			return nil, err
		}
		if r.OK() {
			reqs.Insurance = &r.Data
		}
	}

	for _, d := range dests {
		reqs.CurrencyInfo = append(reqs.CurrencyInfo, models.CurrencyInfo{
			Destination:    d.City,
			Currency:       currencyOf(d.Facts),
			ConversionFrom: homeCurrency,
		})
	}

	out := workflow.Values{"requirements": reqs}
	if len(notes) > 0 {
		out[workflow.ReportMessage] = strings.Join(notes, "; ")
	}
	return out, nil
}

type leg struct {
	flight *models.FlightSearch
	hotel  *models.HotelSearch
	notes  []string
}

func (s *Service) searchFlightsHotels(ctx context.Context, in workflow.Values) (workflow.Values, error) {
	req, err := input[models.TripRequest](in, "request")
	if err != nil {
		return nil, err
	}
	identity, _ := in["identity"].(string)
	party := travelers(req)
	nights := providers.Nights(req.CheckIn, req.CheckOut)

	legs, err := workflow.MapJoin(ctx, req.Destinations, s.fanOut, func(ctx context.Context, i int, dest string) (leg, error) {
		var l leg
		origin := req.Origin
		if i > 0 {
			origin = req.Destinations[i-1]
		}
		if req.Origin != "" {
			r, err := s.SearchFlights(ctx, identity, models.FlightQuery{
				Origin:        origin,
				Destination:   dest,
				DepartureDate: req.CheckIn,
				Passengers:    party,
			})
			if err != nil {
				return l, err
			}
			if r.OK() {
				l.flight = &r.Data
			} else {
				l.notes = append(l.notes, fmt.Sprintf("flights %s-%s: %s", origin, dest, r.Message))
			}
		}

		r, err := s.SearchHotels(ctx, identity, models.HotelQuery{
			City:       dest,
			CheckIn:    req.CheckIn,
			CheckOut:   req.CheckOut,
			Guests:     party,
			PriceRange: req.PriceRange,
		})
		if err != nil {
			return l, err
		}
		if r.OK() {
			l.hotel = &r.Data
		} else {
			l.notes = append(l.notes, fmt.Sprintf("hotels in %s: %s", dest, r.Message))
		}
		return l, nil
	})
	if err != nil {
		return nil, err
	}

	var fh models.FlightsAndHotels
	var notes []string
	for _, l := range legs {
		if l.flight != nil {
			fh.Flights = append(fh.Flights, *l.flight)
			fh.EstimatedTransportCost += l.flight.CheapestPrice
		}
		if l.hotel != nil {
			fh.Hotels = append(fh.Hotels, *l.hotel)
			fh.EstimatedAccommodationCost += l.hotel.AveragePrice * float64(nights)
		}
		notes = append(notes, l.notes...)
	}
	fh.EstimatedTransportCost = math.Round(fh.EstimatedTransportCost*100) / 100
	fh.EstimatedAccommodationCost = math.Round(fh.EstimatedAccommodationCost*100) / 100

	out := workflow.Values{"flights_hotels": fh}
	if len(notes) > 0 {
		out[workflow.ReportMessage] = strings.Join(notes, "; ")
	}
	return out, nil
}

func tripTips(stops int) []string {
	advance := "2-3 months"
	if stops > 1 {
		advance = "3-4 months"
	}
	tips := []string{
		fmt.Sprintf("Book flights %s in advance", advance),
		"Use ATMs for best currency exchange rates",
		"Download offline maps before traveling",
		"Keep digital copies of all documents",
	}
	if stops > 1 {
		tips = append(tips, "Allow extra time between cities for travel")
	}
	return tips
}

func (s *Service) createComprehensivePlan(_ context.Context, in workflow.Values) (workflow.Values, error) {
	req, err := input[models.TripRequest](in, "request")
	if err != nil {
		return nil, err
	}
	dests, err := destinations(in)
	if err != nil {
		return nil, err
	}
	reqs, err := input[models.TravelRequirements](in, "requirements")
	if err != nil {
		return nil, err
	}
	fh, err := input[models.FlightsAndHotels](in, "flights_hotels")
	if err != nil {
		return nil, err
	}

	plan := models.TripPlan{
		Route:         req.Destinations,
		Destinations:  dests,
		Requirements:  reqs,
		FlightsHotels: fh,
		Tips:          tripTips(len(dests)),
	}
	if req.Origin != "" {
		plan.Route = append([]string{req.Origin}, req.Destinations...)
	}
	if travelers(req) > 1 && req.Budget > 0 && len(dests) > 0 {
		g := providers.Group(models.GroupQuery{
			Destination: dests[0].City,
			Travelers:   travelers(req),
			TotalBudget: req.Budget,
			Duration:    tripDays(req),
		})
		plan.GroupPlan = &g
	}
	if req.Budget > 0 {
		estimated := fh.EstimatedTransportCost + fh.EstimatedAccommodationCost
		plan.BudgetOverview = &models.BudgetOverview{
			TotalBudget:    req.Budget,
			TotalEstimated: estimated,
			Remaining:      math.Round((float64(req.Budget)-estimated)*100) / 100,
		}
	}
	return workflow.Values{"plan": plan}, nil
}

func normalizeTrip(req models.TripRequest) (models.TripRequest, error) {
	var dests []string
	for _, d := range req.Destinations {
		if d = strings.TrimSpace(d); d != "" {
			dests = append(dests, d)
		}
	}
	if len(dests) == 0 {
		return req, fmt.Errorf("%w: at least one destination is required", ErrInvalidRequest)
	}
	if len(dests) > MaxDestinations {
		return req, fmt.Errorf("%w: at most %d destinations are supported", ErrInvalidRequest, MaxDestinations)
	}
	if req.Duration < 0 || req.Budget < 0 || req.Travelers < 0 {
		return req, fmt.Errorf("%w: duration, budget and travelers must not be negative", ErrInvalidRequest)
	}
	if req.Duration > MaxDuration {
		return req, fmt.Errorf("%w: duration must be at most %d days", ErrInvalidRequest, MaxDuration)
	}
	req.Destinations = dests
	req.Origin = strings.TrimSpace(req.Origin)
	if req.PriceRange == "" {
		req.PriceRange = models.StyleMidRange
	}
	return req, nil
}

// PlanTrip runs the multi-destination planner. When a step fails the plan
// holds what completed and the error is a *workflow.RunError.
func (s *Service) PlanTrip(ctx context.Context, identity string, req models.TripRequest) (*models.TripPlan, error) {
	req, err := normalizeTrip(req)
	if err != nil {
		return nil, err
	}

	run, runErr := s.tripGraph.Execute(ctx, workflow.Values{
		"request":      req,
		"destinations": req.Destinations,
		"identity":     identity,
	})

	var plan models.TripPlan
	if out, ok := run.Output(StepTripPlan); ok {
		plan, _ = out["plan"].(models.TripPlan)
	} else {
		plan.Route = req.Destinations
		if out, ok := run.Output(StepDestinations); ok {
			plan.Destinations, _ = destinations(workflow.Values{"intel": out["items"]})
		}
		if out, ok := run.Output(StepRequirements); ok {
			plan.Requirements, _ = out["requirements"].(models.TravelRequirements)
		}
		if out, ok := run.Output(StepFlightsHotels); ok {
			plan.FlightsHotels, _ = out["flights_hotels"].(models.FlightsAndHotels)
		}
	}
	plan.RunID = run.ID
	plan.Steps = run.Steps()

	if runErr != nil {
		s.logger.Warn("trip plan incomplete", "destinations", req.Destinations, "run_id", run.ID, "error", runErr)
		return &plan, runErr
	}
	s.logger.Info("trip plan ready", "destinations", req.Destinations, "run_id", run.ID)
	return &plan, nil
}
