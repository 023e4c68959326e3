package planner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"city-planner/backend/internal/cache"
	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/providers"
	"city-planner/backend/internal/ratelimit"
	"city-planner/backend/pkg/models"
)

// Location identifies a city for weather lookups.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

// SeasonQuery asks for the best months to visit a destination.
type SeasonQuery struct {
	Destination string   `json:"destination"`
	Preferences []string `json:"preferences,omitempty"`
}

type operations struct {
	facts     fetch.Operation[string, models.CityFacts]
	weather   fetch.Operation[Location, models.Weather]
	flights   fetch.Operation[models.FlightQuery, models.FlightSearch]
	hotels    fetch.Operation[models.HotelQuery, models.HotelSearch]
	currency  fetch.Operation[models.CurrencyQuery, models.CurrencyConversion]
	search    fetch.Operation[string, models.SearchResponse]
	visa      fetch.Operation[models.VisaQuery, models.VisaAdvice]
	insurance fetch.Operation[models.InsuranceQuery, models.InsuranceAdvice]
	season    fetch.Operation[SeasonQuery, models.SeasonAdvice]
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func (s *Service) buildOperations() operations {
	p := s.providers
	return operations{
		facts:     s.factsOperation(p),
		weather:   s.weatherOperation(p),
		flights:   flightsOperation(p),
		hotels:    hotelsOperation(p),
		currency:  s.currencyOperation(p),
		search:    searchOperation(p),
		visa:      visaOperation(),
		insurance: insuranceOperation(),
		season:    seasonOperation(),
	}
}

// merge fills the gaps of live facts with the catalog entry for the city.
func (s *Service) merge(city string, live models.CityFacts) models.CityFacts {
	known, ok := s.catalog.City(city)
	if !ok {
		if live.Country == "" {
			live.Country = "Unknown"
		}
		return live
	}
	if live.Country == "" {
		live.Country = known.Country
	}
	if live.Population == nil {
		live.Population = known.Population
	}
	if live.Region == "" {
		live.Region = known.Region
	}
	if live.Currency == "" {
		live.Currency = known.Currency
	}
	if len(known.NotableFor) > 0 {
		live.NotableFor = known.NotableFor
	}
	return live
}

func (s *Service) factsOperation(p Providers) fetch.Operation[string, models.CityFacts] {
	var strategies []fetch.Strategy[string, models.CityFacts]
	if p.Facts != nil {
		strategies = append(strategies, fetch.NewStrategy("wikipedia", fetch.SourcePrimary,
			func(ctx context.Context, city string) (models.CityFacts, error) {
				facts, err := p.Facts.Summary(ctx, city)
				if err != nil {
					return models.CityFacts{}, err
				}
				return s.merge(city, facts), nil
			}))
	}
	if p.Search != nil {
		strategies = append(strategies, fetch.SearchStrategy(p.Search,
			func(city string) string { return city + " city overview" },
			func(city string, hits []models.SearchResult) (models.CityFacts, error) {
				facts := models.CityFacts{City: city, Description: hits[0].Snippet}
				for _, h := range hits[1:] {
					facts.NotableFor = append(facts.NotableFor, h.Title)
				}
				return s.merge(city, facts), nil
			}))
	}
	strategies = append(strategies, fetch.NewStrategy("catalog", fetch.SourceStatic,
		func(_ context.Context, city string) (models.CityFacts, error) {
			if facts, ok := s.catalog.City(city); ok {
				return facts, nil
			}
			return providers.GenericFacts(city), nil
		}))

	return fetch.Operation[string, models.CityFacts]{
		Name:       "city-facts",
		Key:        func(city string) map[string]any { return map[string]any{"city": city} },
		Validate:   func(city string) error { return required("city", city) },
		Usable:     func(f models.CityFacts) bool { return f.Description != "" },
		Strategies: strategies,
	}
}

func (s *Service) weatherOperation(p Providers) fetch.Operation[Location, models.Weather] {
	var strategies []fetch.Strategy[Location, models.Weather]
	if p.Weather != nil {
		strategies = append(strategies, fetch.NewStrategy("openweathermap", fetch.SourcePrimary,
			func(ctx context.Context, l Location) (models.Weather, error) {
				return p.Weather.Current(ctx, l.City, l.Country)
			}))
	}
	strategies = append(strategies, fetch.NewStrategy("snapshot", fetch.SourceStatic,
		func(_ context.Context, l Location) (models.Weather, error) {
			return providers.StaticWeather(l.City, l.Country, s.now()), nil
		}))

	return fetch.Operation[Location, models.Weather]{
		Name:       "weather",
		Key:        func(l Location) map[string]any { return map[string]any{"city": l.City, "country": l.Country} },
		Validate:   func(l Location) error { return required("city", l.City) },
		Strategies: strategies,
	}
}

func searchNotes(hits []models.SearchResult) []string {
	notes := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Snippet == "" {
			continue
		}
		notes = append(notes, fmt.Sprintf("%s: %s", h.Title, h.Snippet))
	}
	return notes
}

func flightsOperation(p Providers) fetch.Operation[models.FlightQuery, models.FlightSearch] {
	var strategies []fetch.Strategy[models.FlightQuery, models.FlightSearch]
	if p.Flights != nil {
		strategies = append(strategies, fetch.NewStrategy("amadeus", fetch.SourcePrimary, p.Flights.SearchFlights))
	}
	if p.Search != nil {
		strategies = append(strategies, fetch.SearchStrategy(p.Search,
			func(q models.FlightQuery) string {
				return fmt.Sprintf("flights from %s to %s prices", q.Origin, q.Destination)
			},
			func(q models.FlightQuery, hits []models.SearchResult) (models.FlightSearch, error) {
				notes := searchNotes(hits)
				if len(notes) == 0 {
					return models.FlightSearch{}, fetch.ErrNoResults
				}
				return models.FlightSearch{Origin: q.Origin, Destination: q.Destination, Recommendations: notes}, nil
			}))
	}
	strategies = append(strategies, fetch.NewStrategy("generated-offers", fetch.SourceStatic,
		func(_ context.Context, q models.FlightQuery) (models.FlightSearch, error) {
			return providers.GenerateFlights(q), nil
		}))

	return fetch.Operation[models.FlightQuery, models.FlightSearch]{
		Name:  "flights",
		Class: ratelimit.ClassFlight,
		TTL:   cache.TTLOffers,
		Key: func(q models.FlightQuery) map[string]any {
			return map[string]any{
				"origin": q.Origin, "destination": q.Destination,
				"departure": q.DepartureDate, "return": q.ReturnDate,
				"passengers": q.Passengers, "class": q.Class,
			}
		},
		Validate: func(q models.FlightQuery) error {
			if q.Passengers < 1 {
				return errors.New("passengers must be at least 1")
			}
			return errors.Join(required("origin", q.Origin), required("destination", q.Destination))
		},
		Usable: func(r models.FlightSearch) bool {
			return len(r.Flights) > 0 || len(r.Recommendations) > 0
		},
		Strategies: strategies,
	}
}

func hotelsOperation(p Providers) fetch.Operation[models.HotelQuery, models.HotelSearch] {
	var strategies []fetch.Strategy[models.HotelQuery, models.HotelSearch]
	if p.Hotels != nil {
		strategies = append(strategies, fetch.NewStrategy("amadeus", fetch.SourcePrimary, p.Hotels.SearchHotels))
	}
	if p.Search != nil {
		strategies = append(strategies, fetch.SearchStrategy(p.Search,
			func(q models.HotelQuery) string {
				return fmt.Sprintf("%s hotels in %s", q.PriceRange, q.City)
			},
			func(q models.HotelQuery, hits []models.SearchResult) (models.HotelSearch, error) {
				notes := searchNotes(hits)
				if len(notes) == 0 {
					return models.HotelSearch{}, fetch.ErrNoResults
				}
				return models.HotelSearch{
					City:            q.City,
					Nights:          providers.Nights(q.CheckIn, q.CheckOut),
					Recommendations: notes,
				}, nil
			}))
	}
	strategies = append(strategies, fetch.NewStrategy("generated-offers", fetch.SourceStatic,
		func(_ context.Context, q models.HotelQuery) (models.HotelSearch, error) {
			return providers.GenerateHotels(q), nil
		}))

	return fetch.Operation[models.HotelQuery, models.HotelSearch]{
		Name:  "hotels",
		Class: ratelimit.ClassHotel,
		TTL:   cache.TTLOffers,
		Key: func(q models.HotelQuery) map[string]any {
			return map[string]any{
				"city": q.City, "check_in": q.CheckIn, "check_out": q.CheckOut,
				"guests": q.Guests, "price_range": q.PriceRange, "amenities": q.Amenities,
			}
		},
		Validate: func(q models.HotelQuery) error {
			if q.Guests < 1 {
				return errors.New("guests must be at least 1")
			}
			return required("city", q.City)
		},
		Usable: func(r models.HotelSearch) bool {
			return len(r.Hotels) > 0 || len(r.Recommendations) > 0
		},
		Strategies: strategies,
	}
}

func (s *Service) currencyOperation(p Providers) fetch.Operation[models.CurrencyQuery, models.CurrencyConversion] {
	var strategies []fetch.Strategy[models.CurrencyQuery, models.CurrencyConversion]
	if p.Rates != nil {
		strategies = append(strategies, fetch.NewStrategy("exchangerate-api", fetch.SourcePrimary, p.Rates.Convert))
	}
	static := providers.NewStaticRates(s.catalog)
	strategies = append(strategies, fetch.NewStrategy("rate-table", fetch.SourceStatic, static.Convert))

	return fetch.Operation[models.CurrencyQuery, models.CurrencyConversion]{
		Name:  "currency",
		Class: ratelimit.ClassCurrency,
		Key: func(q models.CurrencyQuery) map[string]any {
			return map[string]any{"amount": q.Amount, "from": q.From, "to": q.To}
		},
		Validate: func(q models.CurrencyQuery) error {
			var errs []error
			if q.Amount < 0 {
				errs = append(errs, errors.New("amount must not be negative"))
			}
			if !currencyCode.MatchString(q.From) {
				errs = append(errs, fmt.Errorf("from %q is not a currency code", q.From))
			}
			if !currencyCode.MatchString(q.To) {
				errs = append(errs, fmt.Errorf("to %q is not a currency code", q.To))
			}
			return errors.Join(errs...)
		},
		Strategies: strategies,
	}
}

func searchOperation(p Providers) fetch.Operation[string, models.SearchResponse] {
	var strategies []fetch.Strategy[string, models.SearchResponse]
	if p.Search != nil {
		strategies = append(strategies, fetch.NewStrategy("duckduckgo", fetch.SourcePrimary,
			func(ctx context.Context, query string) (models.SearchResponse, error) {
				hits, err := p.Search.Search(ctx, query)
				if err != nil {
					return models.SearchResponse{}, err
				}
				return models.SearchResponse{Query: query, Results: hits}, nil
			}))
	}
	strategies = append(strategies, fetch.NewStrategy("curated", fetch.SourceStatic,
		func(_ context.Context, query string) (models.SearchResponse, error) {
			return models.SearchResponse{Query: query, Results: providers.CuratedSearch(query)}, nil
		}))

	return fetch.Operation[string, models.SearchResponse]{
		Name:       "web-search",
		Key:        func(q string) map[string]any { return map[string]any{"query": q} },
		Validate:   func(q string) error { return required("query", q) },
		Usable:     func(r models.SearchResponse) bool { return len(r.Results) > 0 },
		Strategies: strategies,
	}
}

func visaOperation() fetch.Operation[models.VisaQuery, models.VisaAdvice] {
	return fetch.Operation[models.VisaQuery, models.VisaAdvice]{
		Name: "visa",
		Key: func(q models.VisaQuery) map[string]any {
			return map[string]any{"passport": q.PassportCountry, "destination": q.DestinationCountry, "stay": q.StayDuration}
		},
		Validate: func(q models.VisaQuery) error {
			if q.StayDuration < 0 {
				return errors.New("stay duration must not be negative")
			}
			return errors.Join(required("passport country", q.PassportCountry), required("destination country", q.DestinationCountry))
		},
		Strategies: []fetch.Strategy[models.VisaQuery, models.VisaAdvice]{
			fetch.NewStrategy("visa-table", fetch.SourceStatic, func(_ context.Context, q models.VisaQuery) (models.VisaAdvice, error) {
				return providers.Visa(q), nil
			}),
		},
	}
}

func insuranceOperation() fetch.Operation[models.InsuranceQuery, models.InsuranceAdvice] {
	return fetch.Operation[models.InsuranceQuery, models.InsuranceAdvice]{
		Name: "insurance",
		Key: func(q models.InsuranceQuery) map[string]any {
			return map[string]any{
				"destination": q.Destination, "duration": q.Duration, "travelers": q.Travelers,
				"age": q.Age, "activities": q.Activities, "pre_existing": q.PreExisting,
			}
		},
		Validate: func(q models.InsuranceQuery) error {
			if q.Duration < 1 {
				return errors.New("duration must be at least 1 day")
			}
			return required("destination", q.Destination)
		},
		Strategies: []fetch.Strategy[models.InsuranceQuery, models.InsuranceAdvice]{
			fetch.NewStrategy("insurance-table", fetch.SourceStatic, func(_ context.Context, q models.InsuranceQuery) (models.InsuranceAdvice, error) {
				return providers.Insurance(q), nil
			}),
		},
	}
}

func seasonOperation() fetch.Operation[SeasonQuery, models.SeasonAdvice] {
	return fetch.Operation[SeasonQuery, models.SeasonAdvice]{
		Name: "season",
		Key: func(q SeasonQuery) map[string]any {
			return map[string]any{"destination": q.Destination, "preferences": q.Preferences}
		},
		Validate: func(q SeasonQuery) error { return required("destination", q.Destination) },
		Strategies: []fetch.Strategy[SeasonQuery, models.SeasonAdvice]{
			fetch.NewStrategy("season-table", fetch.SourceStatic, func(_ context.Context, q SeasonQuery) (models.SeasonAdvice, error) {
				return providers.BestTimeToVisit(q.Destination, q.Preferences), nil
			}),
		},
	}
}
