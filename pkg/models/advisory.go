package models

// VisaQuery holds the request fields of a visa check
type VisaQuery struct {
	PassportCountry    string `json:"passport_country" jsonschema:"required,minLength=1"`
	DestinationCountry string `json:"destination_country" jsonschema:"required,minLength=1"`
	StayDuration       int    `json:"stay_duration,omitempty"`
}

// VisaAdvice describes entry requirements for a passport and destination
type VisaAdvice struct {
	PassportCountry    string   `json:"passport_country"`
	DestinationCountry string   `json:"destination_country"`
	VisaRequired       bool     `json:"visa_required"`
	VisaType           string   `json:"visa_type"`
	MaxStayWithoutVisa int      `json:"max_stay_without_visa,omitempty"`
	ProcessingTime     string   `json:"processing_time,omitempty"`
	Cost               string   `json:"cost,omitempty"`
	Requirements       []string `json:"requirements"`
	ApplicationProcess []string `json:"application_process"`
	AdditionalInfo     []string `json:"additional_info"`
}

// InsuranceQuery holds the request fields of an insurance recommendation
type InsuranceQuery struct {
	Destination string   `json:"destination" jsonschema:"required,minLength=1"`
	Duration    int      `json:"duration" jsonschema:"required,minimum=1"`
	Travelers   int      `json:"travelers,omitempty"`
	Age         int      `json:"age,omitempty"`
	Activities  []string `json:"activities,omitempty"`
	PreExisting bool     `json:"pre_existing,omitempty"`
}

// InsurancePlan is one recommended coverage level
type InsurancePlan struct {
	PlanName      string   `json:"plan_name"`
	Coverage      string   `json:"coverage"`
	EstimatedCost int      `json:"estimated_cost"`
	Includes      []string `json:"includes"`
	BestFor       string   `json:"best_for"`
}

// InsuranceAdvice lists coverage options and cost estimates
type InsuranceAdvice struct {
	Destination      string          `json:"destination"`
	Plans            []InsurancePlan `json:"plans"`
	MustHaveCoverage []string        `json:"must_have_coverage"`
	Tips             []string        `json:"tips"`
}

// Recommended returns the standard (middle) plan.
func (a InsuranceAdvice) Recommended() (InsurancePlan, bool) {
	if len(a.Plans) < 2 {
		return InsurancePlan{}, false
	}
	return a.Plans[1], true
}

// Season describes one travel season at a destination
type Season struct {
	Season  string   `json:"season"`
	Months  string   `json:"months"`
	Weather string   `json:"weather"`
	Crowds  string   `json:"crowds"`
	Prices  string   `json:"prices"`
	Pros    []string `json:"pros"`
	Cons    []string `json:"cons"`
}

// SpecialEvent is a seasonal event worth planning around
type SpecialEvent struct {
	Name        string `json:"name"`
	Month       string `json:"month"`
	Description string `json:"description"`
}

// SeasonAdvice recommends when to visit a destination
type SeasonAdvice struct {
	Destination       string         `json:"destination"`
	BestMonths        []string       `json:"best_months"`
	SeasonalBreakdown []Season       `json:"seasonal_breakdown"`
	SpecialEvents     []SpecialEvent `json:"special_events"`
	Recommendations   []string       `json:"recommendations"`
}

// GroupQuery holds the request fields of a group budget split
type GroupQuery struct {
	Destination string `json:"destination" jsonschema:"required,minLength=1"`
	Travelers   int    `json:"travelers" jsonschema:"required,minimum=1"`
	TotalBudget int    `json:"total_budget" jsonschema:"required,minimum=0"`
	Duration    int    `json:"duration" jsonschema:"required,minimum=1"`
}

// SharedCosts are paid once for the whole group
type SharedCosts struct {
	Accommodation   int `json:"accommodation"`
	Transportation  int `json:"transportation"`
	GroupActivities int `json:"group_activities"`
	Total           int `json:"total"`
}

// IndividualCosts are paid by each traveler
type IndividualCosts struct {
	Meals              int `json:"meals"`
	PersonalActivities int `json:"personal_activities"`
	Shopping           int `json:"shopping"`
	Total              int `json:"total"`
}

// PerPersonShare is what one traveler contributes
type PerPersonShare struct {
	Shared     int `json:"shared"`
	Individual int `json:"individual"`
	Total      int `json:"total"`
}

// GroupRecommendation is a saving opportunity for groups
type GroupRecommendation struct {
	Category       string `json:"category"`
	Recommendation string `json:"recommendation"`
	Savings        string `json:"savings"`
}

// GroupPlan splits a group budget into shared and individual costs
type GroupPlan struct {
	Destination     string                `json:"destination"`
	Travelers       int                   `json:"travelers"`
	TotalBudget     int                   `json:"total_budget"`
	PerPersonBudget int                   `json:"per_person_budget"`
	Shared          SharedCosts           `json:"shared_costs"`
	Individual      IndividualCosts       `json:"individual_costs"`
	PerPerson       PerPersonShare        `json:"per_person_share"`
	Recommendations []GroupRecommendation `json:"recommendations"`
	Tips            []string              `json:"tips"`
}
