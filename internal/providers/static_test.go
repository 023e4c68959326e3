package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city-planner/backend/pkg/models"
)

func TestCatalog(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	paris, ok := c.City("  PARIS ")
	require.True(t, ok)
	assert.Equal(t, "Paris", paris.City)
	assert.Equal(t, "France", paris.Country)
	assert.Equal(t, "Euro (EUR)", paris.Currency)
	require.NotNil(t, paris.Population)
	assert.Equal(t, 2165423, *paris.Population)

	_, ok = c.City("Atlantis")
	assert.False(t, ok)
	assert.Len(t, c.Cities(), 10)
}

func TestCatalogRate(t *testing.T) {
	c := MustCatalog()
	tests := []struct {
		name     string
		from, to string
		want     float64
		ok       bool
	}{
		{"same currency", "EUR", "eur", 1, true},
		{"direct", "USD", "JPY", 149.50, true},
		{"inverse", "THB", "USD", 1 / 35.50, true},
		{"via usd", "EUR", "INR", 1.09 * 83.12, true},
		{"unknown", "XYZ", "ABC", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Rate(tt.from, tt.to)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCatalogIATA(t *testing.T) {
	c := MustCatalog()
	assert.Equal(t, "CDG", c.IATA("Paris"))
	assert.Equal(t, "JFK", c.IATA("new york"))
	assert.Equal(t, "JFK", c.IATA("New York NY"))
	assert.Equal(t, "LHR", c.IATA("lhr"))
	assert.Equal(t, "ZZY", c.IATA("Zzyzx"))
}

func TestDurationMinutes(t *testing.T) {
	assert.Equal(t, 455, durationMinutes("7h 35m"))
	assert.Equal(t, 0, durationMinutes("0h 0m"))
	assert.Equal(t, 0, durationMinutes("PT7H35M"))
	assert.Equal(t, 0, durationMinutes(""))
}

func TestGenerateFlights(t *testing.T) {
	q := models.FlightQuery{Origin: "Boston", Destination: "Chicago", Passengers: 1}
	res := GenerateFlights(q)

	require.Len(t, res.Flights, 4)
	prices := make([]float64, len(res.Flights))
	for i, f := range res.Flights {
		prices[i] = f.Price
		assert.Equal(t, "Flexible", f.DepartureTime)
	}
	assert.Equal(t, []float64{570, 600, 630, 690}, prices)
	assert.Equal(t, "American Airlines", res.Flights[0].Airline)
	assert.Equal(t, float64(570), res.CheapestPrice)
	assert.Len(t, res.Recommendations, 6)
	assert.Contains(t, res.Recommendations[4], "3-6 weeks")

	assert.Equal(t, res, GenerateFlights(q), "same query, same offers")
}

func TestGenerateFlightsLongHaulBusiness(t *testing.T) {
	res := GenerateFlights(models.FlightQuery{
		Origin: "New York", Destination: "Rome, Europe", Passengers: 2,
		Class: models.ClassBusiness, DepartureDate: "2024-05-01", ReturnDate: "2024-05-10",
	})
	// 900 * 3.5 * 0.95 * 2
	assert.Equal(t, float64(5985), res.CheapestPrice)
	assert.Equal(t, "2024-05-01 08:00 AM", res.Flights[0].DepartureTime)
	assert.Contains(t, res.Recommendations[3], "Round trip")
	assert.Contains(t, res.Recommendations[4], "2-3 months")
	for _, f := range res.Flights {
		assert.GreaterOrEqual(t, durationMinutes(f.Duration), 10*60)
	}
}

func TestGenerateHotels(t *testing.T) {
	res := GenerateHotels(models.HotelQuery{
		City: "Lisbon", CheckIn: "2024-03-10", CheckOut: "2024-03-15",
		Amenities: []string{"Pool", "Gym", "Sauna"},
	})

	require.Len(t, res.Hotels, 4)
	assert.Equal(t, 5, res.Nights)
	// mid-range base 140: 168, 252, 98, 196
	assert.Equal(t, float64(179), res.AveragePrice)
	for i, h := range res.Hotels {
		assert.Contains(t, h.Amenities, "Gym")
		assert.NotContains(t, h.Amenities, "Sauna")
		assert.GreaterOrEqual(t, h.Rating, 3.5)
		assert.LessOrEqual(t, h.Rating, 4.8)
		if i > 0 {
			prev := res.Hotels[i-1]
			assert.GreaterOrEqual(t, prev.Rating/prev.PricePerNight, h.Rating/h.PricePerNight)
		}
	}
	assert.Equal(t, "Most Central: Lisbon Central Hotel", res.Recommendations[2])
	assert.Equal(t, "Total for 5 nights: ~$895", res.Recommendations[3])
}

func TestNights(t *testing.T) {
	assert.Equal(t, 5, Nights("2024-03-10", "2024-03-15"))
	assert.Equal(t, 1, Nights("2024-03-10", "2024-03-10"))
	assert.Equal(t, 1, Nights("2024-03-15", "2024-03-10"))
	assert.Equal(t, 1, Nights("", ""))
	assert.Equal(t, 1, Nights("not a date", "2024-03-10"))
}

func TestStaticRates(t *testing.T) {
	s := NewStaticRates(MustCatalog())

	conv, err := s.Convert(context.Background(), models.CurrencyQuery{Amount: 100, From: "USD", To: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, float64(92), conv.Converted)
	assert.Equal(t, 0.92, conv.Rate)

	_, err = s.Convert(context.Background(), models.CurrencyQuery{Amount: 100, From: "XYZ", To: "ABC"})
	assert.Error(t, err)
}

func TestStaticWeather(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	w := StaticWeather("Paris", "", now)
	assert.Equal(t, 23.5, w.Temperature)
	assert.Equal(t, "Clear", w.Condition)
	assert.Equal(t, "Unknown", w.Country)
	assert.Equal(t, 0, w.UTCOffset)
}

func TestCuratedSearch(t *testing.T) {
	tests := []struct {
		query  string
		titles []string
	}{
		{"paris hotel prices", []string{"Travel Budget Information", "Hotel Recommendations"}},
		{"where to eat in rome", []string{"Local Food & Restaurants"}},
		{"historical sites berlin", []string{"Historical Sites Information"}},
		{"weekend in oslo", []string{"General Travel Information"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var titles []string
			for _, r := range CuratedSearch(tt.query) {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tt.titles, titles)
		})
	}
	assert.Contains(t, CuratedSearch("weekend in oslo")[0].Snippet, "weekend in oslo")
}
