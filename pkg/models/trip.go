package models

// TripRequest is the boundary contract for multi-destination planning
type TripRequest struct {
	Destinations    []string    `json:"destinations" jsonschema:"required,minItems=1,maxItems=10"`
	Origin          string      `json:"origin,omitempty"`
	PassportCountry string      `json:"passport_country,omitempty"`
	Duration        int         `json:"duration,omitempty" jsonschema:"minimum=0,maximum=60"`
	Budget          int         `json:"budget,omitempty" jsonschema:"minimum=0"`
	Travelers       int         `json:"travelers,omitempty" jsonschema:"minimum=0"`
	CheckIn         string      `json:"check_in,omitempty"`
	CheckOut        string      `json:"check_out,omitempty"`
	Interests       []string    `json:"interests,omitempty"`
	Activities      []string    `json:"activities,omitempty"`
	PriceRange      TravelStyle `json:"price_range,omitempty" jsonschema:"enum=,enum=budget,enum=mid-range,enum=luxury"`
}

// DestinationIntel is the gathered context for one destination
type DestinationIntel struct {
	City       string    `json:"city"`
	Facts      CityFacts `json:"facts"`
	Weather    Weather   `json:"weather"`
	BestMonths []string  `json:"best_months"`
}

// CurrencyInfo names the local currency of a destination
type CurrencyInfo struct {
	Destination    string `json:"destination"`
	Currency       string `json:"currency"`
	ConversionFrom string `json:"conversion_from"`
}

// TravelRequirements groups visa, insurance and currency information
type TravelRequirements struct {
	Visas        []VisaAdvice     `json:"visas"`
	Insurance    *InsuranceAdvice `json:"insurance,omitempty"`
	CurrencyInfo []CurrencyInfo   `json:"currency_info"`
}

// FlightsAndHotels groups transport and accommodation options per leg
type FlightsAndHotels struct {
	Flights                    []FlightSearch `json:"flights"`
	Hotels                     []HotelSearch  `json:"hotels"`
	EstimatedTransportCost     float64        `json:"estimated_transport_cost"`
	EstimatedAccommodationCost float64        `json:"estimated_accommodation_cost"`
}

// BudgetOverview compares estimates with the stated budget
type BudgetOverview struct {
	TotalBudget    int     `json:"total_budget"`
	TotalEstimated float64 `json:"total_estimated"`
	Remaining      float64 `json:"remaining"`
}

// TripPlan is returned for every trip request
type TripPlan struct {
	RunID          string             `json:"run_id"`
	Route          []string           `json:"route"`
	Destinations   []DestinationIntel `json:"destinations"`
	Requirements   TravelRequirements `json:"requirements"`
	FlightsHotels  FlightsAndHotels   `json:"flights_hotels"`
	GroupPlan      *GroupPlan         `json:"group_plan,omitempty"`
	BudgetOverview *BudgetOverview    `json:"budget_overview,omitempty"`
	Tips           []string           `json:"tips"`
	Steps          []StepReport       `json:"steps"`
}
