package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"city-planner/backend/pkg/models"
)

// WikipediaClient reads page summaries from the Wikipedia REST API.
type WikipediaClient struct {
	baseURL string
	http    *http.Client
}

func NewWikipediaClient(baseURL string, timeout time.Duration) *WikipediaClient {
	return &WikipediaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(timeout),
	}
}

type wikiSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Description string `json:"description"`
}

// Summary returns the page summary for city as facts. Country, region and
// currency are not part of a summary and are left empty.
func (c *WikipediaClient) Summary(ctx context.Context, city string) (models.CityFacts, error) {
	endpoint := c.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(city)

	var body wikiSummary
	if err := getJSON(ctx, c.http, endpoint, &body); err != nil {
		return models.CityFacts{}, fmt.Errorf("failed to get summary for %s: %w", city, err)
	}

	desc := body.Extract
	if desc == "" {
		desc = body.Description
	}
	if desc == "" {
		return models.CityFacts{}, errors.New("summary has no extract")
	}

	title := body.Title
	if title == "" {
		title = city
	}
	return models.CityFacts{
		City:        title,
		Description: desc,
		NotableFor:  []string{"Historic significance", "Cultural importance"},
	}, nil
}
