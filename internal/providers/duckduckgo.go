package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"city-planner/backend/pkg/models"
)

// DefaultMaxResults caps a web search.
const DefaultMaxResults = 5

// DuckDuckGoClient queries the DuckDuckGo Instant Answer API. It needs no
// credentials.
type DuckDuckGoClient struct {
	baseURL    string
	maxResults int
	http       *http.Client
}

func NewDuckDuckGoClient(baseURL string, timeout time.Duration) *DuckDuckGoClient {
	return &DuckDuckGoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: DefaultMaxResults,
		http:       newHTTPClient(timeout),
	}
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading        string     `json:"Heading"`
	Abstract       string     `json:"Abstract"`
	AbstractURL    string     `json:"AbstractURL"`
	AbstractSource string     `json:"AbstractSource"`
	RelatedTopics  []ddgTopic `json:"RelatedTopics"`
}

// Search returns the abstract and related topics for query. Topic groups
// are skipped. An empty slice means the API had no instant answer.
func (c *DuckDuckGoClient) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var body ddgResponse
	if err := getJSON(ctx, c.http, c.baseURL+"/?"+params.Encode(), &body); err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}

	var results []models.SearchResult
	if body.Abstract != "" {
		title := body.Heading
		if title == "" {
			title = "Summary"
		}
		link := body.AbstractURL
		if link == "" {
			link = body.AbstractSource
		}
		results = append(results, models.SearchResult{Title: title, Snippet: body.Abstract, URL: link})
	}

	for _, t := range body.RelatedTopics {
		if len(results) >= c.maxResults {
			break
		}
		if t.Text == "" || len(t.Topics) > 0 {
			continue
		}
		results = append(results, models.SearchResult{Title: topicTitle(t.FirstURL), Snippet: t.Text, URL: t.FirstURL})
	}
	return results, nil
}

func topicTitle(link string) string {
	if u, err := url.Parse(link); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "Related Info"
}
