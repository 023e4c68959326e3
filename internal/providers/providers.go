// Package providers contains the live clients and static reference data
// behind the planner's lookups.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"city-planner/backend/pkg/models"
)

// ErrNotConfigured is returned by a live client that has no credentials.
var ErrNotConfigured = errors.New("provider not configured")

// FactsClient looks up encyclopedic facts about a city.
type FactsClient interface {
	Summary(ctx context.Context, city string) (models.CityFacts, error)
}

// WeatherClient returns current conditions for a city.
type WeatherClient interface {
	Current(ctx context.Context, city, country string) (models.Weather, error)
}

// FlightClient searches live flight offers.
type FlightClient interface {
	SearchFlights(ctx context.Context, q models.FlightQuery) (models.FlightSearch, error)
}

// HotelClient searches live hotel offers.
type HotelClient interface {
	SearchHotels(ctx context.Context, q models.HotelQuery) (models.HotelSearch, error)
}

// RatesClient converts between currencies at live rates.
type RatesClient interface {
	Convert(ctx context.Context, q models.CurrencyQuery) (models.CurrencyConversion, error)
}

const userAgent = "CityPlanner/1.0 (travel planning service)"

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// getJSON performs a GET and decodes a 200 response into dst.
func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, req.URL.Host)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
