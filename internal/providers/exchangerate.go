package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"city-planner/backend/pkg/models"
)

// ExchangeRateClient reads latest rates from open.er-api.com.
type ExchangeRateClient struct {
	baseURL string
	http    *http.Client
}

func NewExchangeRateClient(baseURL string, timeout time.Duration) *ExchangeRateClient {
	return &ExchangeRateClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(timeout),
	}
}

type erResponse struct {
	Result         string             `json:"result"`
	BaseCode       string             `json:"base_code"`
	TimeLastUpdate int64              `json:"time_last_update_unix"`
	Rates          map[string]float64 `json:"rates"`
}

// Convert converts q.Amount at the latest published rate.
func (c *ExchangeRateClient) Convert(ctx context.Context, q models.CurrencyQuery) (models.CurrencyConversion, error) {
	from, to := strings.ToUpper(q.From), strings.ToUpper(q.To)

	var body erResponse
	if err := getJSON(ctx, c.http, c.baseURL+"/v6/latest/"+from, &body); err != nil {
		return models.CurrencyConversion{}, fmt.Errorf("failed to get rates for %s: %w", from, err)
	}
	if body.Result != "success" {
		return models.CurrencyConversion{}, fmt.Errorf("rate lookup for %s returned %q", from, body.Result)
	}
	rate, ok := body.Rates[to]
	if !ok || rate <= 0 {
		return models.CurrencyConversion{}, fmt.Errorf("no rate from %s to %s", from, to)
	}

	return conversion(q.Amount, from, to, rate, time.Unix(body.TimeLastUpdate, 0).UTC()), nil
}
