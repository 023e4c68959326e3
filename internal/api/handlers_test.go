package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"city-planner/backend/internal/auth"
	"city-planner/backend/internal/cache"
	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/planner"
	"city-planner/backend/internal/providers"
	"city-planner/backend/internal/ratelimit"
	"city-planner/backend/internal/validation"
	"city-planner/backend/internal/workflow"
	"city-planner/backend/pkg/models"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// testTokens maps bearer tokens to the claims they verify to.
type testTokens map[string]auth.Claims

func (tt testTokens) Verify(_ context.Context, raw string) (*auth.Claims, error) {
	c, ok := tt[raw]
	if !ok {
		return nil, errors.New("token is not recognised")
	}
	return &c, nil
}

var tokens = testTokens{
	"token-42":       {Subject: "42"},
	"token-alice":    {Subject: "alice"},
	"token-bob":      {Subject: "bob"},
	"token-flyer":    {Subject: "frequent-flyer"},
	"token-ops":      {Subject: "ops", Scopes: []string{auth.ScopeOpenID, auth.ScopeAdmin}},
	"token-readonly": {Subject: "viewer", Scopes: []string{auth.ScopeOpenID}},
}

func bearer(token string) map[string]string {
	return map[string]string{echo.HeaderAuthorization: "Bearer " + token}
}

type testServer struct {
	echo    *echo.Echo
	handler *Handler
	limiter *ratelimit.Limiter
}

func newTestServer(t *testing.T, p Planner, tier ratelimit.Tier) *testServer {
	t.Helper()
	c := cache.New(cache.NewMemoryStore(), cache.WithClock(clock))
	l := ratelimit.New(ratelimit.WithTier(tier), ratelimit.WithClock(clock))
	if p == nil {
		a := fetch.NewAdapter(c, l, fetch.WithClock(clock))
		svc, err := planner.New(a, providers.MustCatalog(), planner.Providers{}, planner.WithClock(clock))
		require.NoError(t, err)
		p = svc
	}
	v, err := validation.New()
	require.NoError(t, err)

	h := NewHandler(p, c, l, v, nil)
	h.now = clock
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(h.logger)
	RegisterRoutes(e, h, tokens)
	return &testServer{echo: e, handler: h, limiter: l}
}

func (s *testServer) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func problem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
	var p ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)
	rec := s.do(http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "city-planner", status.Service)
	assert.Equal(t, "memory", status.Cache)
}

func TestCreatePlan(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)
	rec := s.do(http.MethodPost, "/api/v1/plans",
		`{"city":"Paris","duration":5,"budget":2000,"style":"mid-range","interests":["historical sites","local food"]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.PlanningFullItinerary, resp.PlanningType)
	require.NotNil(t, resp.Itinerary)
	assert.Len(t, resp.Itinerary.DailyItinerary, 5)
	assert.LessOrEqual(t, resp.Itinerary.PlannedSpend, 2000)
	assert.Len(t, resp.Steps, 6)
}

func TestCreatePlanRejectsBadInput(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"schema violation", `{"duration":5}`, "schema validation failed"},
		{"malformed", `{"city":`, "malformed JSON"},
		{"full without budget", `{"city":"Paris","mode":"full","duration":3}`, "full mode needs a duration and a budget"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/plans", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			p := problem(t, rec)
			assert.Equal(t, http.StatusBadRequest, p.Status)
			assert.Contains(t, p.Detail, tt.detail)
			assert.Equal(t, "/api/v1/plans", p.Instance)
		})
	}
}

type mockPlanner struct {
	mock.Mock
	Planner
}

func (m *mockPlanner) Plan(ctx context.Context, identity string, req models.PlanRequest) (*models.PlanResponse, error) {
	args := m.Called(ctx, identity, req)
	resp, _ := args.Get(0).(*models.PlanResponse)
	return resp, args.Error(1)
}

func TestCreatePlanRunFailure(t *testing.T) {
	p := &mockPlanner{}
	runErr := &workflow.RunError{RunID: "run-1", Failures: []*workflow.StepError{
		{Step: planner.StepWeather, Err: errors.New("boom")},
	}}
	p.On("Plan", mock.Anything, "user:42", mock.Anything).Return(&models.PlanResponse{RunID: "run-1"}, runErr)
	s := newTestServer(t, p, ratelimit.Free)

	rec := s.do(http.MethodPost, "/api/v1/plans", `{"city":"Paris"}`, bearer("token-42"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed steps: fetch-weather", problem(t, rec).Detail)
	p.AssertExpectations(t)
}

func TestCreateTrip(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)
	rec := s.do(http.MethodPost, "/api/v1/trips",
		`{"destinations":["Paris","Rome"],"origin":"London","travelers":2,"budget":5000}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var plan models.TripPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, []string{"London", "Paris", "Rome"}, plan.Route)
	assert.Len(t, plan.FlightsHotels.Flights, 2)
	assert.NotNil(t, plan.GroupPlan)

	rec = s.do(http.MethodPost, "/api/v1/trips", `{"destinations":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookups(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		source fetch.Source
	}{
		{"city", http.MethodGet, "/api/v1/cities/Tokyo", "", fetch.SourceStatic},
		{"weather", http.MethodGet, "/api/v1/weather/Tokyo?country=JP", "", fetch.SourceStatic},
		{"flights", http.MethodGet, "/api/v1/flights?origin=Boston&destination=Chicago&passengers=2&class=business", "", fetch.SourceStatic},
		{"hotels", http.MethodGet, "/api/v1/hotels?city=Lisbon&amenities=Pool&amenities=Gym&price_range=luxury", "", fetch.SourceStatic},
		{"currency", http.MethodGet, "/api/v1/currency/convert?amount=100&from=USD&to=JPY", "", fetch.SourceStatic},
		{"search", http.MethodGet, "/api/v1/search?q=hotel+prices", "", fetch.SourceStatic},
		{"visa", http.MethodGet, "/api/v1/advisories/visa?passport=India&destination=Thailand", "", fetch.SourceStatic},
		{"insurance", http.MethodGet, "/api/v1/advisories/insurance?destination=Peru&duration=12&activities=hiking&pre_existing=true", "", fetch.SourceStatic},
		{"season", http.MethodGet, "/api/v1/advisories/season?destination=Bali&preferences=budget", "", fetch.SourceStatic},
		{"group", http.MethodPost, "/api/v1/advisories/group", `{"destination":"Rome","travelers":4,"total_budget":4000,"duration":5}`, fetch.SourceStatic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.target, tt.body, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var r struct {
				Status fetch.Status    `json:"status"`
				Source fetch.Source    `json:"source"`
				Data   json.RawMessage `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
			assert.Equal(t, fetch.StatusOK, r.Status)
			assert.Equal(t, tt.source, r.Source)
			assert.NotEqual(t, "null", string(r.Data))
		})
	}
}

func TestLookupsRejectBadQueries(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)

	for _, target := range []string{
		"/api/v1/flights?origin=Boston",
		"/api/v1/flights?origin=Boston&destination=Chicago&passengers=two",
		"/api/v1/hotels?city=Lisbon&price_range=backpacker",
		"/api/v1/currency/convert?amount=100&from=USD&to=euros",
		"/api/v1/search",
		"/api/v1/advisories/insurance?destination=Peru",
	} {
		t.Run(target, func(t *testing.T) {
			rec := s.do(http.MethodGet, target, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, http.StatusBadRequest, problem(t, rec).Status)
		})
	}
}

func TestFlightClassRateLimitIsInTheBody(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)
	headers := bearer("token-flyer")

	for i := range 20 {
		rec := s.do(http.MethodGet, "/api/v1/flights?origin=Boston&destination=City"+string(rune('A'+i)), "", headers)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do(http.MethodGet, "/api/v1/flights?origin=Boston&destination=Zurich", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)

	var r fetch.Result[models.FlightSearch]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, fetch.StatusRateLimited, r.Status)
}

func TestGlobalRateLimit(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Tier{Name: "test", MaxRequests: 2})
	headers := bearer("token-alice")

	for range 2 {
		rec := s.do(http.MethodGet, "/api/v1/cities/Paris", "", headers)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := s.do(http.MethodGet, "/api/v1/cities/Paris", "", headers)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.Contains(t, problem(t, rec).Detail, "Rate limit exceeded")

	// other callers and the health check are unaffected
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/cities/Paris", "", bearer("token-bob")).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", headers).Code)

	s.limiter.Reset("user:alice")
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/cities/Paris", "", headers).Code)
}

func TestCacheAndRateLimitAdmin(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)
	headers := bearer("token-ops")

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/cities/Paris", "", headers).Code)

	rec := s.do(http.MethodGet, "/api/v1/cache/stats", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Keys)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/cache", "", headers).Code)
	rec = s.do(http.MethodGet, "/api/v1/cache/stats", "", headers)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Keys)

	rec = s.do(http.MethodGet, "/api/v1/ratelimit", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var status RateLimitStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "user:ops", status.Identity)
	require.NotNil(t, status.Stats.Global)
	assert.Equal(t, 5, status.Stats.Global.Count)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/ratelimit/user:ops", "", headers).Code)
	assert.Nil(t, s.limiter.Stats("user:ops").Global)
}

func TestAdminRoutesNeedAdminScope(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/cities/Paris", "", bearer("token-alice")).Code)

	tests := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"unknown token", bearer("forged"), http.StatusUnauthorized},
		{"spoofed user header", map[string]string{"X-User-ID": "ops"}, http.StatusUnauthorized},
		{"token without admin scope", bearer("token-readonly"), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, r := range []struct{ method, target string }{
				{http.MethodDelete, "/api/v1/ratelimit/user:alice"},
				{http.MethodDelete, "/api/v1/cache"},
				{http.MethodGet, "/api/v1/cache/stats"},
			} {
				rec := s.do(r.method, r.target, "", tt.headers)
				require.Equal(t, tt.status, rec.Code, r.target)
				assert.Equal(t, tt.status, problem(t, rec).Status)
			}
		})
	}

	// nothing was reset or cleared
	require.NotNil(t, s.limiter.Stats("user:alice").Global)
	assert.Equal(t, 1, s.limiter.Stats("user:alice").Global.Count)
	stats, err := s.handler.cache.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Keys)
}

func TestIdentityFromBearerToken(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)

	rec := s.do(http.MethodGet, "/api/v1/ratelimit", "", bearer("token-bob"))
	require.Equal(t, http.StatusOK, rec.Code)
	var status RateLimitStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "user:bob", status.Identity)

	// a client supplied user header no longer names the caller
	rec = s.do(http.MethodGet, "/api/v1/ratelimit", "", map[string]string{"X-User-ID": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ip:192.0.2.1", status.Identity)

	rec = s.do(http.MethodGet, "/api/v1/cities/Paris", "", bearer("forged"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="city-planner"`, rec.Header().Get(echo.HeaderWWWAuthenticate))
	assert.Contains(t, problem(t, rec).Detail, "invalid token")
}

func TestBearerTokensRejectedWithoutVerifier(t *testing.T) {
	c := cache.New(cache.NewMemoryStore(), cache.WithClock(clock))
	l := ratelimit.New(ratelimit.WithClock(clock))
	v, err := validation.New()
	require.NoError(t, err)
	h := NewHandler(&mockPlanner{}, c, l, v, nil)
	e := echo.New()
	RegisterRoutes(e, h, nil)
	s := &testServer{echo: e, handler: h, limiter: l}

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/ratelimit", "", bearer("token-ops")).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodDelete, "/api/v1/cache", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/ratelimit", "", nil).Code)
}

func TestSchemas(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)

	rec := s.do(http.MethodGet, "/api/v1/schemas/plan", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/schema+json", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), `"city"`)

	rec = s.do(http.MethodGet, "/api/v1/schemas", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"trip"`)

	rec = s.do(http.MethodGet, "/api/v1/schemas/itinerary", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRouteIsAProblem(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.Free)
	rec := s.do(http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, problem(t, rec).Status)
}
