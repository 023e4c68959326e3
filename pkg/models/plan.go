package models

import (
	"time"
)

// PlanMode is the mode requested by the caller
type PlanMode string

const (
	ModeAuto  PlanMode = ""
	ModeQuick PlanMode = "quick"
	ModeFull  PlanMode = "full"
)

// PlanningType is the branch selected for a plan
type PlanningType string

const (
	PlanningFullItinerary        PlanningType = "full-itinerary"
	PlanningQuickRecommendations PlanningType = "quick-recommendations"
)

// PlanRequest is the boundary contract for single-city planning
type PlanRequest struct {
	Mode      PlanMode    `json:"mode,omitempty" jsonschema:"enum=,enum=quick,enum=full"`
	City      string      `json:"city" jsonschema:"required,minLength=1"`
	Country   string      `json:"country,omitempty"`
	Duration  int         `json:"duration,omitempty" jsonschema:"minimum=0,maximum=60"`
	Budget    int         `json:"budget,omitempty" jsonschema:"minimum=0"`
	Interests []string    `json:"interests,omitempty"`
	Style     TravelStyle `json:"style,omitempty" jsonschema:"enum=,enum=budget,enum=mid-range,enum=luxury"`
}

// BudgetBreakdown distributes a total budget across categories
type BudgetBreakdown struct {
	Total          int         `json:"total"`
	Style          TravelStyle `json:"style"`
	Accommodation  int         `json:"accommodation"`
	Food           int         `json:"food"`
	Activities     int         `json:"activities"`
	Transportation int         `json:"transportation"`
	Contingency    int         `json:"contingency"`
}

// Allocated returns the sum of all categories
func (b BudgetBreakdown) Allocated() int {
	return b.Accommodation + b.Food + b.Activities + b.Transportation + b.Contingency
}

// DailyBudget holds per-day shares of a breakdown
type DailyBudget struct {
	Days                 int `json:"days"`
	PerNight             int `json:"per_night"`
	FoodPerDay           int `json:"food_per_day"`
	ActivitiesPerDay     int `json:"activities_per_day"`
	TransportationPerDay int `json:"transportation_per_day"`
	Contingency          int `json:"contingency"`
}

// Activity is a scheduled slot in a day plan
type Activity struct {
	Time        string `json:"time"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
}

// Meal is a priced meal suggestion
type Meal struct {
	Description string `json:"description"`
	Cost        int    `json:"cost"`
}

// Meals are the three meals of a day
type Meals struct {
	Breakfast Meal `json:"breakfast"`
	Lunch     Meal `json:"lunch"`
	Dinner    Meal `json:"dinner"`
}

// Total returns the combined meal cost
func (m Meals) Total() int {
	return m.Breakfast.Cost + m.Lunch.Cost + m.Dinner.Cost
}

// DayPlan is one day of an itinerary
type DayPlan struct {
	Day          int        `json:"day"`
	Date         string     `json:"date"`
	Activities   []Activity `json:"activities"`
	Meals        Meals      `json:"meals"`
	TotalDayCost int        `json:"total_day_cost"`
}

// FullItinerary is the output of the full-itinerary branch
type FullItinerary struct {
	City                     string          `json:"city"`
	Duration                 int             `json:"duration"`
	TotalBudget              int             `json:"total_budget"`
	BudgetBreakdown          BudgetBreakdown `json:"budget_breakdown"`
	DailyBudget              DailyBudget     `json:"daily_budget"`
	DailyItinerary           []DayPlan       `json:"daily_itinerary"`
	AccommodationSuggestions []string        `json:"accommodation_suggestions"`
	PackingTips              []string        `json:"packing_tips"`
	MoneyTips                []string        `json:"money_tips"`
	PlannedSpend             int             `json:"planned_spend"`
}

// Priority ranks a recommendation
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is a single activity suggestion
type Recommendation struct {
	Category string   `json:"category"`
	Activity string   `json:"activity"`
	Reason   string   `json:"reason"`
	BestTime string   `json:"best_time"`
	Priority Priority `json:"priority"`
}

// RecommendationSet is the output of the quick-recommendations branch
type RecommendationSet struct {
	City              string           `json:"city"`
	Recommendations   []Recommendation `json:"recommendations"`
	WeatherAdvice     string           `json:"weather_advice"`
	TimingAdvice      string           `json:"timing_advice"`
	OverallSuggestion string           `json:"overall_suggestion"`
}

// Top returns up to n high-priority recommendations
func (s RecommendationSet) Top(n int) []Recommendation {
	var top []Recommendation
	for _, r := range s.Recommendations {
		if len(top) == n {
			break
		}
		if r.Priority == PriorityHigh {
			top = append(top, r)
		}
	}
	return top
}

// CityData is the gathered context for a city
type CityData struct {
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Facts     CityFacts `json:"facts"`
	Weather   Weather   `json:"weather"`
	LocalTime time.Time `json:"local_time"`
}

// PlanResponse is returned for every plan request
type PlanResponse struct {
	RunID           string             `json:"run_id"`
	PlanningType    PlanningType       `json:"planning_type"`
	City            CityData           `json:"city"`
	Itinerary       *FullItinerary     `json:"itinerary,omitempty"`
	Recommendations *RecommendationSet `json:"recommendations,omitempty"`
	Steps           []StepReport       `json:"steps"`
}
