package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"city-planner/backend/internal/api"
	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/logging"
	"city-planner/backend/internal/planner"
	"city-planner/backend/internal/ratelimit"
	"city-planner/backend/internal/workflow"
	"city-planner/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	planner   api.Planner
	limiter   *ratelimit.Limiter
	logger    *logging.Logger
}

func NewServer(p api.Planner, limiter *ratelimit.Limiter, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		mcpServer: server.NewMCPServer(
			"City Planner",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		planner: p,
		limiter: limiter,
		logger:  logger,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// toolHandler is a tool body that runs after the caller passed the
// global rate limit.
type toolHandler func(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

func stringList(name, description string) mcp.ToolOption {
	return mcp.WithArray(name, mcp.Description(description), mcp.Items(map[string]any{"type": "string"}))
}

func (s *Server) registerTools() {
	s.add(mcp.NewTool(
		"plan_city_visit",
		mcp.WithDescription("Plan a city visit: a full day-by-day itinerary when a duration and budget are given, quick recommendations otherwise"),
		mcp.WithString("city", mcp.Required(), mcp.Description("City to visit")),
		mcp.WithString("country", mcp.Description("Country of the city")),
		mcp.WithString("mode", mcp.Description("quick or full; empty picks from the inputs"), mcp.Enum("quick", "full")),
		mcp.WithNumber("duration", mcp.Description("Trip length in days")),
		mcp.WithNumber("budget", mcp.Description("Total budget in USD")),
		mcp.WithString("style", mcp.Description("Travel style"), mcp.Enum("budget", "mid-range", "luxury")),
		stringList("interests", "Traveler interests, e.g. local food"),
	), s.handlePlanCityVisit)

	s.add(mcp.NewTool(
		"plan_trip",
		mcp.WithDescription("Plan a multi-destination trip with requirements, flights, hotels and a budget overview"),
		stringList("destinations", "Cities in visiting order"),
		mcp.WithString("origin", mcp.Description("Departure city")),
		mcp.WithString("passport_country", mcp.Description("Passport country for visa checks")),
		mcp.WithNumber("duration", mcp.Description("Trip length in days")),
		mcp.WithNumber("budget", mcp.Description("Total budget in USD")),
		mcp.WithNumber("travelers", mcp.Description("Number of travelers")),
		mcp.WithString("check_in", mcp.Description("Check-in date, YYYY-MM-DD")),
		mcp.WithString("check_out", mcp.Description("Check-out date, YYYY-MM-DD")),
		stringList("interests", "Traveler interests"),
		stringList("activities", "Planned activities, used for insurance"),
		mcp.WithString("price_range", mcp.Description("Hotel price range"), mcp.Enum("budget", "mid-range", "luxury")),
	), s.handlePlanTrip)

	s.add(mcp.NewTool(
		"city_facts",
		mcp.WithDescription("Get facts about a city"),
		mcp.WithString("city", mcp.Required(), mcp.Description("City name")),
	), s.handleCityFacts)

	s.add(mcp.NewTool(
		"weather",
		mcp.WithDescription("Get current weather for a city"),
		mcp.WithString("city", mcp.Required(), mcp.Description("City name")),
		mcp.WithString("country", mcp.Description("Country name or code")),
	), s.handleWeather)

	s.add(mcp.NewTool(
		"search_flights",
		mcp.WithDescription("Search flight offers between two cities"),
		mcp.WithString("origin", mcp.Required(), mcp.Description("Departure city or IATA code")),
		mcp.WithString("destination", mcp.Required(), mcp.Description("Arrival city or IATA code")),
		mcp.WithString("departure_date", mcp.Description("YYYY-MM-DD")),
		mcp.WithString("return_date", mcp.Description("YYYY-MM-DD")),
		mcp.WithNumber("passengers", mcp.Description("Number of passengers")),
		mcp.WithString("class", mcp.Description("Cabin class"), mcp.Enum("economy", "premium", "business", "first")),
	), s.handleSearchFlights)

	s.add(mcp.NewTool(
		"search_hotels",
		mcp.WithDescription("Search hotel offers in a city"),
		mcp.WithString("city", mcp.Required(), mcp.Description("City name")),
		mcp.WithString("check_in", mcp.Description("YYYY-MM-DD")),
		mcp.WithString("check_out", mcp.Description("YYYY-MM-DD")),
		mcp.WithNumber("guests", mcp.Description("Number of guests")),
		mcp.WithString("price_range", mcp.Description("Price range"), mcp.Enum("budget", "mid-range", "luxury")),
		stringList("amenities", "Wanted amenities"),
	), s.handleSearchHotels)

	s.add(mcp.NewTool(
		"convert_currency",
		mcp.WithDescription("Convert an amount between currencies"),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Amount to convert")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source currency code")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target currency code")),
	), s.handleConvertCurrency)

	s.add(mcp.NewTool(
		"web_search",
		mcp.WithDescription("Search the web for travel information"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
	), s.handleWebSearch)

	s.add(mcp.NewTool(
		"check_visa",
		mcp.WithDescription("Check visa requirements for a passport and destination"),
		mcp.WithString("passport_country", mcp.Required(), mcp.Description("Passport country")),
		mcp.WithString("destination_country", mcp.Required(), mcp.Description("Destination country")),
		mcp.WithNumber("stay_duration", mcp.Description("Length of stay in days")),
	), s.handleCheckVisa)

	s.add(mcp.NewTool(
		"travel_insurance",
		mcp.WithDescription("Recommend travel insurance plans"),
		mcp.WithString("destination", mcp.Required(), mcp.Description("Destination")),
		mcp.WithNumber("duration", mcp.Required(), mcp.Description("Trip length in days")),
		mcp.WithNumber("travelers", mcp.Description("Number of travelers")),
		mcp.WithNumber("age", mcp.Description("Age of the oldest traveler")),
		stringList("activities", "Planned activities"),
		mcp.WithBoolean("pre_existing", mcp.Description("Cover pre-existing conditions")),
	), s.handleTravelInsurance)

	s.add(mcp.NewTool(
		"best_time_to_visit",
		mcp.WithDescription("Find the best months to visit a destination"),
		mcp.WithString("destination", mcp.Required(), mcp.Description("Destination")),
		stringList("preferences", "budget, good-weather or few-crowds"),
	), s.handleBestTimeToVisit)

	s.add(mcp.NewTool(
		"group_travel",
		mcp.WithDescription("Split a group budget into shared and individual costs"),
		mcp.WithString("destination", mcp.Required(), mcp.Description("Destination")),
		mcp.WithNumber("travelers", mcp.Required(), mcp.Description("Number of travelers")),
		mcp.WithNumber("total_budget", mcp.Required(), mcp.Description("Total group budget in USD")),
		mcp.WithNumber("duration", mcp.Required(), mcp.Description("Trip length in days")),
	), s.handleGroupTravel)
}

func (s *Server) add(tool mcp.Tool, h toolHandler) {
	s.mcpServer.AddTool(tool, s.limited(h))
}

// limited puts h behind the global rate limit of the calling session.
func (s *Server) limited(h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := sessionIdentity(ctx)
		if s.limiter != nil {
			if r := s.limiter.Check(id); !r.Allowed {
				return mcp.NewToolResultError(r.Message), nil
			}
		}
		return h(ctx, id, request)
	}
}

func sessionIdentity(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil && session.SessionID() != "" {
		return "session:" + session.SessionID()
	}
	return "session:local"
}

// jsonResult renders v as JSON text or turns err into a tool error.
func (s *Server) jsonResult(tool string, v any, err error) (*mcp.CallToolResult, error) {
	var runErr *workflow.RunError
	switch {
	case err == nil:
	case errors.Is(err, fetch.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error()), nil
	case errors.As(err, &runErr):
		return mcp.NewToolResultError("Planning failed at steps: " + strings.Join(runErr.Steps(), ", ")), nil
	default:
		s.logger.Error("tool call failed", "tool", tool, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run %s: %v", tool, err)), nil
	}

	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode %s result: %v", tool, err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handlePlanCityVisit(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	city, err := request.RequireString("city")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: city"), nil
	}
	resp, err := s.planner.Plan(ctx, identity, models.PlanRequest{
		City:      city,
		Country:   request.GetString("country", ""),
		Mode:      models.PlanMode(request.GetString("mode", "")),
		Duration:  request.GetInt("duration", 0),
		Budget:    request.GetInt("budget", 0),
		Style:     models.TravelStyle(request.GetString("style", "")),
		Interests: request.GetStringSlice("interests", nil),
	})
	return s.jsonResult("plan_city_visit", resp, err)
}

func (s *Server) handlePlanTrip(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	destinations := request.GetStringSlice("destinations", nil)
	if len(destinations) == 0 {
		return mcp.NewToolResultError("Missing required parameter: destinations"), nil
	}
	plan, err := s.planner.PlanTrip(ctx, identity, models.TripRequest{
		Destinations:    destinations,
		Origin:          request.GetString("origin", ""),
		PassportCountry: request.GetString("passport_country", ""),
		Duration:        request.GetInt("duration", 0),
		Budget:          request.GetInt("budget", 0),
		Travelers:       request.GetInt("travelers", 0),
		CheckIn:         request.GetString("check_in", ""),
		CheckOut:        request.GetString("check_out", ""),
		Interests:       request.GetStringSlice("interests", nil),
		Activities:      request.GetStringSlice("activities", nil),
		PriceRange:      models.TravelStyle(request.GetString("price_range", "")),
	})
	return s.jsonResult("plan_trip", plan, err)
}

func (s *Server) handleCityFacts(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	city, err := request.RequireString("city")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: city"), nil
	}
	r, err := s.planner.CityFacts(ctx, identity, city)
	return s.jsonResult("city_facts", r, err)
}

func (s *Server) handleWeather(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	city, err := request.RequireString("city")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: city"), nil
	}
	r, err := s.planner.Weather(ctx, identity, planner.Location{City: city, Country: request.GetString("country", "")})
	return s.jsonResult("weather", r, err)
}

func (s *Server) handleSearchFlights(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.planner.SearchFlights(ctx, identity, models.FlightQuery{
		Origin:        request.GetString("origin", ""),
		Destination:   request.GetString("destination", ""),
		DepartureDate: request.GetString("departure_date", ""),
		ReturnDate:    request.GetString("return_date", ""),
		Passengers:    request.GetInt("passengers", 0),
		Class:         models.FlightClass(request.GetString("class", "")),
	})
	return s.jsonResult("search_flights", r, err)
}

func (s *Server) handleSearchHotels(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.planner.SearchHotels(ctx, identity, models.HotelQuery{
		City:       request.GetString("city", ""),
		CheckIn:    request.GetString("check_in", ""),
		CheckOut:   request.GetString("check_out", ""),
		Guests:     request.GetInt("guests", 0),
		PriceRange: models.TravelStyle(request.GetString("price_range", "")),
		Amenities:  request.GetStringSlice("amenities", nil),
	})
	return s.jsonResult("search_hotels", r, err)
}

func (s *Server) handleConvertCurrency(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	amount, err := request.RequireFloat("amount")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: amount"), nil
	}
	r, err := s.planner.ConvertCurrency(ctx, identity, models.CurrencyQuery{
		Amount: amount,
		From:   request.GetString("from", ""),
		To:     request.GetString("to", ""),
	})
	return s.jsonResult("convert_currency", r, err)
}

func (s *Server) handleWebSearch(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: query"), nil
	}
	r, err := s.planner.WebSearch(ctx, identity, query)
	return s.jsonResult("web_search", r, err)
}

func (s *Server) handleCheckVisa(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.planner.Visa(ctx, identity, models.VisaQuery{
		PassportCountry:    request.GetString("passport_country", ""),
		DestinationCountry: request.GetString("destination_country", ""),
		StayDuration:       request.GetInt("stay_duration", 0),
	})
	return s.jsonResult("check_visa", r, err)
}

func (s *Server) handleTravelInsurance(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.planner.Insurance(ctx, identity, models.InsuranceQuery{
		Destination: request.GetString("destination", ""),
		Duration:    request.GetInt("duration", 0),
		Travelers:   request.GetInt("travelers", 0),
		Age:         request.GetInt("age", 0),
		Activities:  request.GetStringSlice("activities", nil),
		PreExisting: request.GetBool("pre_existing", false),
	})
	return s.jsonResult("travel_insurance", r, err)
}

func (s *Server) handleBestTimeToVisit(ctx context.Context, identity string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.planner.BestTimeToVisit(ctx, identity, planner.SeasonQuery{
		Destination: request.GetString("destination", ""),
		Preferences: request.GetStringSlice("preferences", nil),
	})
	return s.jsonResult("best_time_to_visit", r, err)
}

func (s *Server) handleGroupTravel(ctx context.Context, _ string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.planner.GroupTravel(ctx, models.GroupQuery{
		Destination: request.GetString("destination", ""),
		Travelers:   request.GetInt("travelers", 0),
		TotalBudget: request.GetInt("total_budget", 0),
		Duration:    request.GetInt("duration", 0),
	})
	return s.jsonResult("group_travel", r, err)
}

// MountHTTPHandlers serves the streamable HTTP transport at /mcp and the
// legacy SSE transport at /mcp/sse and /mcp/message.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))
	streamable := server.NewStreamableHTTPServer(mcpServer, server.WithEndpointPath("/mcp"))

	mux.Handle("/mcp", streamable)
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
