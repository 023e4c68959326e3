// Package models defines the domain models for the city planner service
package models

import (
	"time"
)

// TravelStyle selects the budget allocation table and hotel price tier
type TravelStyle string

const (
	StyleBudget   TravelStyle = "budget"
	StyleMidRange TravelStyle = "mid-range"
	StyleLuxury   TravelStyle = "luxury"
)

// FlightClass represents the cabin class of a flight search
type FlightClass string

const (
	ClassEconomy  FlightClass = "economy"
	ClassPremium  FlightClass = "premium"
	ClassBusiness FlightClass = "business"
	ClassFirst    FlightClass = "first"
)

// CityFacts is the normalized response of a city facts provider
type CityFacts struct {
	City        string   `json:"city"`
	Country     string   `json:"country"`
	Population  *int     `json:"population,omitempty"`
	Description string   `json:"description"`
	NotableFor  []string `json:"notable_for"`
	Region      string   `json:"region,omitempty"`
	Currency    string   `json:"currency,omitempty"`
}

// Weather is a current weather snapshot for a city
type Weather struct {
	City        string    `json:"city"`
	Country     string    `json:"country,omitempty"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	UTCOffset   int       `json:"utc_offset_seconds"`
	ObservedAt  time.Time `json:"observed_at"`
}

// LocalTime returns the wall clock at the city given an instant in UTC
func (w Weather) LocalTime(now time.Time) time.Time {
	return now.UTC().Add(time.Duration(w.UTCOffset) * time.Second)
}

// FlightQuery holds the request fields of a flight search
type FlightQuery struct {
	Origin        string      `json:"origin" jsonschema:"required,minLength=1"`
	Destination   string      `json:"destination" jsonschema:"required,minLength=1"`
	DepartureDate string      `json:"departure_date,omitempty"`
	ReturnDate    string      `json:"return_date,omitempty"`
	Passengers    int         `json:"passengers,omitempty"`
	Class         FlightClass `json:"class,omitempty"`
}

// Flight is a single flight offer
type Flight struct {
	Airline       string      `json:"airline"`
	FlightNumber  string      `json:"flight_number"`
	Duration      string      `json:"duration"`
	Stops         int         `json:"stops"`
	Price         float64     `json:"price"`
	Currency      string      `json:"currency"`
	Class         FlightClass `json:"class"`
	DepartureTime string      `json:"departure_time"`
	ArrivalTime   string      `json:"arrival_time"`
	BookingURL    string      `json:"booking_url,omitempty"`
}

// FlightSearch is the normalized response of a flight provider
type FlightSearch struct {
	Origin          string   `json:"origin"`
	Destination     string   `json:"destination"`
	Flights         []Flight `json:"flights"`
	CheapestPrice   float64  `json:"cheapest_price"`
	FastestDuration string   `json:"fastest_duration,omitempty"`
	Recommendations []string `json:"recommendations"`
}

// HotelQuery holds the request fields of a hotel search
type HotelQuery struct {
	City       string      `json:"city" jsonschema:"required,minLength=1"`
	CheckIn    string      `json:"check_in,omitempty"`
	CheckOut   string      `json:"check_out,omitempty"`
	Guests     int         `json:"guests,omitempty"`
	PriceRange TravelStyle `json:"price_range,omitempty"`
	Amenities  []string    `json:"amenities,omitempty"`
}

// Hotel is a single hotel offer
type Hotel struct {
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	PricePerNight float64  `json:"price_per_night"`
	Rating        float64  `json:"rating"`
	ReviewCount   int      `json:"review_count,omitempty"`
	Amenities     []string `json:"amenities"`
	Location      string   `json:"location,omitempty"`
	Distance      string   `json:"distance,omitempty"`
	Highlights    []string `json:"highlights,omitempty"`
}

// HotelSearch is the normalized response of a hotel provider
type HotelSearch struct {
	City            string   `json:"city"`
	Hotels          []Hotel  `json:"hotels"`
	AveragePrice    float64  `json:"average_price"`
	Nights          int      `json:"nights"`
	Recommendations []string `json:"recommendations"`
}

// CurrencyQuery holds the request fields of a currency conversion
type CurrencyQuery struct {
	Amount float64 `json:"amount"`
	From   string  `json:"from" jsonschema:"required,minLength=3,maxLength=3"`
	To     string  `json:"to" jsonschema:"required,minLength=3,maxLength=3"`
}

// CurrencyConversion is the normalized response of a currency provider
type CurrencyConversion struct {
	Amount    float64   `json:"amount"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Converted float64   `json:"converted"`
	Rate      float64   `json:"rate"`
	AsOf      time.Time `json:"as_of"`
	Tips      []string  `json:"tips,omitempty"`
}

// SearchResult is a single hit from the generic web search fallback
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// SearchResponse is the normalized response of a web search
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}
