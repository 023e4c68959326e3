package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"city-planner/backend/pkg/models"
)

// OpenWeatherClient reads current conditions from OpenWeatherMap.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// NewOpenWeatherClient creates a client. An empty apiKey yields a client
// that always returns ErrNotConfigured.
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration) *OpenWeatherClient {
	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(timeout),
		now:     time.Now,
	}
}

type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Timezone int `json:"timezone"`
}

// Current returns the weather in metric units.
func (c *OpenWeatherClient) Current(ctx context.Context, city, country string) (models.Weather, error) {
	if c.apiKey == "" {
		return models.Weather{}, ErrNotConfigured
	}

	q := city
	if country != "" {
		q = city + "," + country
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	var body owmResponse
	if err := getJSON(ctx, c.http, c.baseURL+"/data/2.5/weather?"+params.Encode(), &body); err != nil {
		return models.Weather{}, fmt.Errorf("failed to get weather for %s: %w", city, err)
	}
	if len(body.Weather) == 0 {
		return models.Weather{}, errors.New("weather response has no conditions")
	}

	name := body.Name
	if name == "" {
		name = city
	}
	return models.Weather{
		City:        name,
		Country:     body.Sys.Country,
		Temperature: round1(body.Main.Temp),
		FeelsLike:   round1(body.Main.FeelsLike),
		Condition:   body.Weather[0].Main,
		Description: body.Weather[0].Description,
		Humidity:    body.Main.Humidity,
		WindSpeed:   body.Wind.Speed,
		UTCOffset:   body.Timezone,
		ObservedAt:  c.now().UTC(),
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
