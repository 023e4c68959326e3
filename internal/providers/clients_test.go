package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city-planner/backend/internal/cache"
	"city-planner/backend/pkg/models"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestOpenWeatherClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "Paris,FR", r.URL.Query().Get("q"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		writeJSON(t, w, map[string]any{
			"name":     "Paris",
			"main":     map[string]any{"temp": 18.46, "feels_like": 17.91, "humidity": 71},
			"weather":  []map[string]any{{"main": "Clouds", "description": "broken clouds"}},
			"wind":     map[string]any{"speed": 4.1},
			"sys":      map[string]any{"country": "FR"},
			"timezone": 7200,
		})
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("secret", srv.URL, time.Second)
	w, err := c.Current(context.Background(), "Paris", "FR")
	require.NoError(t, err)
	assert.Equal(t, "Paris", w.City)
	assert.Equal(t, 18.5, w.Temperature)
	assert.Equal(t, 17.9, w.FeelsLike)
	assert.Equal(t, "Clouds", w.Condition)
	assert.Equal(t, 71, w.Humidity)
	assert.Equal(t, 7200, w.UTCOffset)

	noon := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 14, w.LocalTime(noon).Hour())
}

func TestOpenWeatherClientErrors(t *testing.T) {
	_, err := NewOpenWeatherClient("", "http://unused", time.Second).Current(context.Background(), "Paris", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	_, err = NewOpenWeatherClient("bad", srv.URL, time.Second).Current(context.Background(), "Paris", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestWikipediaClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rest_v1/page/summary/Lisbon", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		writeJSON(t, w, map[string]any{"title": "Lisbon", "extract": "Lisbon is the capital of Portugal."})
	}))
	defer srv.Close()

	facts, err := NewWikipediaClient(srv.URL, time.Second).Summary(context.Background(), "Lisbon")
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", facts.City)
	assert.Equal(t, "Lisbon is the capital of Portugal.", facts.Description)
	assert.NotEmpty(t, facts.NotableFor)
}

func TestWikipediaClientEmptyExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"title": "Nowhere"})
	}))
	defer srv.Close()

	_, err := NewWikipediaClient(srv.URL, time.Second).Summary(context.Background(), "Nowhere")
	assert.Error(t, err)
}

func TestDuckDuckGoClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "paris hotels", r.URL.Query().Get("q"))
		writeJSON(t, w, map[string]any{
			"Heading":     "Paris",
			"Abstract":    "Paris is the capital of France.",
			"AbstractURL": "https://en.wikipedia.org/wiki/Paris",
			"RelatedTopics": []map[string]any{
				{"Text": "Hotels in Paris", "FirstURL": "https://duckduckgo.com/Hotels_in_Paris"},
				{"Name": "Group", "Topics": []map[string]any{{"Text": "nested", "FirstURL": "https://x.test"}}},
				{"Text": "Paris travel", "FirstURL": ""},
			},
		})
	}))
	defer srv.Close()

	results, err := NewDuckDuckGoClient(srv.URL, time.Second).Search(context.Background(), "paris hotels")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Paris", results[0].Title)
	assert.Equal(t, "duckduckgo.com", results[1].Title)
	assert.Equal(t, "Related Info", results[2].Title)
}

func TestDuckDuckGoClientNoAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"Abstract": "", "RelatedTopics": []any{}})
	}))
	defer srv.Close()

	results, err := NewDuckDuckGoClient(srv.URL, time.Second).Search(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExchangeRateClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v6/latest/USD", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"result":                "success",
			"base_code":             "USD",
			"time_last_update_unix": 1710028800,
			"rates":                 map[string]float64{"USD": 1, "EUR": 0.91234},
		})
	}))
	defer srv.Close()

	c := NewExchangeRateClient(srv.URL, time.Second)
	conv, err := c.Convert(context.Background(), models.CurrencyQuery{Amount: 100, From: "usd", To: "eur"})
	require.NoError(t, err)
	assert.Equal(t, 91.23, conv.Converted)
	assert.Equal(t, 0.9123, conv.Rate)
	assert.Equal(t, "EUR", conv.To)
	assert.Len(t, conv.Tips, 6)

	_, err = c.Convert(context.Background(), models.CurrencyQuery{Amount: 1, From: "USD", To: "XYZ"})
	assert.Error(t, err)
}

type amadeusFake struct {
	tokens, byCity, offers atomic.Int32
}

func (f *amadeusFake) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokens.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "key", r.PostForm.Get("client_id"))
		writeJSON(t, w, map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 1799})
	})
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("/v2/shopping/flight-offers", authed(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CDG", r.URL.Query().Get("originLocationCode"))
		assert.Equal(t, "JFK", r.URL.Query().Get("destinationLocationCode"))
		assert.Equal(t, "BUSINESS", r.URL.Query().Get("travelClass"))
		writeJSON(t, w, map[string]any{
			"data": []map[string]any{
				{
					"itineraries": []map[string]any{{"duration": "PT11H5M", "segments": []map[string]any{
						{"carrierCode": "LH", "number": "1025", "departure": map[string]any{"at": "2024-03-10T07:00:00"}, "arrival": map[string]any{"at": "2024-03-10T09:00:00"}},
						{"carrierCode": "LH", "number": "400", "departure": map[string]any{"at": "2024-03-10T10:30:00"}, "arrival": map[string]any{"at": "2024-03-10T13:05:00"}},
					}}},
					"price": map[string]any{"currency": "USD", "total": "2410.50"},
				},
				{
					"itineraries": []map[string]any{{"duration": "PT8H20M", "segments": []map[string]any{
						{"carrierCode": "AF", "number": "6", "departure": map[string]any{"at": "2024-03-10T10:00:00"}, "arrival": map[string]any{"at": "2024-03-10T12:20:00"}},
					}}},
					"price": map[string]any{"currency": "USD", "total": "2999.00"},
				},
			},
			"dictionaries": map[string]any{"carriers": map[string]string{"AF": "AIR FRANCE", "LH": "LUFTHANSA"}},
		})
	}))
	mux.HandleFunc("/v1/reference-data/locations/hotels/by-city", authed(func(w http.ResponseWriter, r *http.Request) {
		f.byCity.Add(1)
		assert.Equal(t, "CDG", r.URL.Query().Get("cityCode"))
		writeJSON(t, w, map[string]any{"data": []map[string]any{
			{"hotelId": "H1", "name": "Hotel One", "distance": map[string]any{"value": 0.4, "unit": "KM"}},
			{"hotelId": "H2", "name": "Hotel Two"},
		}})
	}))
	mux.HandleFunc("/v3/shopping/hotel-offers", authed(func(w http.ResponseWriter, r *http.Request) {
		f.offers.Add(1)
		assert.Equal(t, "H1,H2", r.URL.Query().Get("hotelIds"))
		writeJSON(t, w, map[string]any{"data": []map[string]any{
			{"hotel": map[string]any{"hotelId": "H1", "name": "Hotel One"}, "offers": []map[string]any{{"price": map[string]any{"currency": "USD", "total": "600.00"}}}},
			{"hotel": map[string]any{"hotelId": "H2", "name": "Hotel Two"}, "offers": []map[string]any{{"price": map[string]any{"currency": "USD", "total": "450.00"}}}},
		}})
	}))
	return mux
}

func TestAmadeusClient(t *testing.T) {
	fake := &amadeusFake{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	ctx := context.Background()
	c := cache.New(cache.NewMemoryStore())
	client := NewAmadeusClient(ctx, "key", "secret", srv.URL, 2*time.Second, MustCatalog(), c)

	t.Run("flights", func(t *testing.T) {
		res, err := client.SearchFlights(ctx, models.FlightQuery{Origin: "Paris", Destination: "New York", DepartureDate: "2024-03-10", Class: models.ClassBusiness})
		require.NoError(t, err)
		require.Len(t, res.Flights, 2)
		assert.Equal(t, "LUFTHANSA", res.Flights[0].Airline)
		assert.Equal(t, "LH1025", res.Flights[0].FlightNumber)
		assert.Equal(t, 1, res.Flights[0].Stops)
		assert.Equal(t, 2410.5, res.CheapestPrice)
		assert.Equal(t, "8h 20m", res.FastestDuration)
	})

	t.Run("hotels list is cached", func(t *testing.T) {
		q := models.HotelQuery{City: "Paris", CheckIn: "2024-03-10", CheckOut: "2024-03-13"}
		for range 2 {
			res, err := client.SearchHotels(ctx, q)
			require.NoError(t, err)
			require.Len(t, res.Hotels, 2)
			assert.Equal(t, 3, res.Nights)
			assert.Equal(t, "Hotel Two", res.Hotels[0].Name)
			assert.Equal(t, float64(150), res.Hotels[0].PricePerNight)
			assert.Equal(t, "0.4 km from downtown", res.Hotels[1].Distance)
		}
		assert.Equal(t, int32(1), fake.byCity.Load())
		assert.Equal(t, int32(2), fake.offers.Load())
	})

	assert.Equal(t, int32(1), fake.tokens.Load())
}

func TestAmadeusClientNotConfigured(t *testing.T) {
	client := NewAmadeusClient(context.Background(), "", "", "http://unused", time.Second, MustCatalog(), nil)
	_, err := client.SearchFlights(context.Background(), models.FlightQuery{Origin: "A", Destination: "B"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = client.SearchHotels(context.Background(), models.HotelQuery{City: "A"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestISODuration(t *testing.T) {
	assert.Equal(t, "7h 35m", isoDuration("PT7H35M"))
	assert.Equal(t, "2h 0m", isoDuration("PT2H"))
	assert.Equal(t, "0h 45m", isoDuration("PT45M"))
	assert.Equal(t, "garbage", isoDuration("garbage"))
}
