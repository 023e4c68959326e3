package providers

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"city-planner/backend/pkg/models"
)

var visaFree = map[string][]string{
	"united states": {"canada", "mexico", "uk", "france", "germany", "italy", "spain", "japan", "south korea", "singapore", "australia"},
	"uk":            {"usa", "canada", "eu countries", "japan", "singapore", "australia", "new zealand"},
	"india":         {"nepal", "bhutan", "maldives", "mauritius", "fiji"},
	"australia":     {"new zealand", "singapore", "uk", "most eu countries", "japan", "south korea"},
}

var visaOnArrival = []string{"thailand", "indonesia", "vietnam", "turkey", "egypt", "jordan"}

// DefaultStay is the stay length assumed by a visa check without one.
const DefaultStay = 7

// Visa reports entry requirements from reference tables of visa-free and
// visa-on-arrival destinations.
func Visa(q models.VisaQuery) models.VisaAdvice {
	passport := strings.ToLower(strings.TrimSpace(q.PassportCountry))
	dest := strings.ToLower(strings.TrimSpace(q.DestinationCountry))
	stay := q.StayDuration
	if stay <= 0 {
		stay = DefaultStay
	}

	free := slices.ContainsFunc(visaFree[passport], func(c string) bool {
		return strings.Contains(dest, c) || strings.Contains(c, dest)
	})
	onArrival := slices.ContainsFunc(visaOnArrival, func(c string) bool {
		return strings.Contains(dest, c)
	})

	advice := models.VisaAdvice{
		PassportCountry:    q.PassportCountry,
		DestinationCountry: q.DestinationCountry,
	}
	switch {
	case free:
		advice.VisaType = "Visa-Free Entry"
		advice.MaxStayWithoutVisa = 90
		advice.Cost = "Free"
		advice.Requirements = []string{
			"Valid passport (6+ months validity)",
			"Return flight ticket",
			"Proof of accommodation",
			"Sufficient funds for stay",
		}
		advice.ApplicationProcess = []string{
			"1. Ensure passport is valid (6+ months)",
			"2. Book accommodation and flights",
			"3. Arrive at destination",
			"4. Present passport at immigration",
			"5. Receive entry stamp",
		}
	case onArrival:
		advice.VisaRequired = true
		advice.VisaType = "Visa on Arrival"
		advice.MaxStayWithoutVisa = 30
		advice.ProcessingTime = "On arrival"
		advice.Cost = "$25-$50"
		advice.Requirements = visaDocuments()
		advice.ApplicationProcess = []string{
			"1. Prepare required documents",
			"2. Arrive at destination airport",
			"3. Proceed to Visa on Arrival counter",
			"4. Submit documents and pay fee",
			"5. Receive visa stamp (15-30 mins)",
		}
	default:
		advice.VisaRequired = true
		advice.VisaType = "Tourist Visa (Embassy Application)"
		advice.ProcessingTime = "2-4 weeks"
		advice.Cost = "$50-$200"
		advice.Requirements = visaDocuments()
		advice.ApplicationProcess = []string{
			"1. Gather required documents",
			"2. Complete online application form",
			"3. Schedule embassy appointment",
			"4. Attend visa interview",
			"5. Submit biometrics and documents",
			"6. Pay visa fee",
			"7. Wait for processing (2-4 weeks)",
			"8. Collect passport with visa",
		}
	}

	timing := "Immigration process: 15-30 minutes"
	if advice.VisaRequired {
		weeks := "4-6"
		if onArrival {
			weeks = "0"
		}
		timing = fmt.Sprintf("Apply at least %s weeks before travel", weeks)
	}
	advice.AdditionalInfo = []string{
		"Check your passport expiry: needs 6 months validity",
		timing,
		"Travel insurance recommended (sometimes required)",
		"Proof of funds: $50-100 per day of stay",
		"Keep digital copies of all documents",
		"Check latest requirements on official government website",
	}
	if !free && stay > 30 {
		advice.AdditionalInfo = append(advice.AdditionalInfo, "Long-term visa may be required for stays over 30 days")
	}
	return advice
}

func visaDocuments() []string {
	return []string{
		"Valid passport (6+ months validity)",
		"Passport-size photographs (2)",
		"Proof of accommodation",
		"Return flight ticket",
		"Bank statements (last 3 months)",
		"Travel insurance",
		"Visa application form",
	}
}

// DefaultAge is the traveler age assumed when a query has none.
const DefaultAge = 30

// Insurance prices three coverage levels. Cost scales with destination,
// duration, travelers, age, risky activities and pre-existing conditions.
func Insurance(q models.InsuranceQuery) models.InsuranceAdvice {
	travelers := max(q.Travelers, 1)
	age := q.Age
	if age <= 0 {
		age = DefaultAge
	}
	dest := strings.ToLower(q.Destination)

	highRisk := slices.ContainsFunc(q.Activities, func(a string) bool {
		a = strings.ToLower(a)
		return slices.ContainsFunc([]string{"skiing", "diving", "climbing", "extreme"}, func(r string) bool {
			return strings.Contains(a, r)
		})
	})
	international := !slices.ContainsFunc([]string{"usa", "canada", "domestic"}, func(l string) bool {
		return strings.Contains(dest, l)
	})

	perDay := 3.0
	if international {
		perDay = 5
	}
	ageMult := 1.0
	switch {
	case age > 65:
		ageMult = 1.8
	case age > 50:
		ageMult = 1.4
	}
	riskMult, preMult := 1.0, 1.0
	if highRisk {
		riskMult = 1.5
	}
	if q.PreExisting {
		preMult = 1.3
	}

	base := perDay * float64(q.Duration) * float64(travelers) * ageMult
	basic := int(math.Round(base * 0.7))
	comprehensive := int(math.Round(base * riskMult * preMult))
	premium := int(math.Round(float64(comprehensive) * 1.5))

	extra := "Adventure activities covered"
	if q.PreExisting {
		extra = "Pre-existing conditions covered"
	}

	mustHave := []string{
		"Medical emergencies and hospitalization",
		"Emergency medical evacuation",
		"Trip cancellation/interruption",
		"Lost or delayed baggage",
		"Flight delays and missed connections",
	}
	if highRisk {
		mustHave = append(mustHave, "Adventure sports and activities coverage")
	}
	if q.PreExisting {
		mustHave = append(mustHave, "Pre-existing conditions coverage")
	}

	activityTip := "Standard activities covered by most policies"
	if highRisk {
		activityTip = "Adventure activities require specific coverage"
	}

	return models.InsuranceAdvice{
		Destination: q.Destination,
		Plans: []models.InsurancePlan{
			{
				PlanName:      "Basic Travel Insurance",
				Coverage:      "Essential",
				EstimatedCost: basic,
				Includes: []string{
					"Medical emergencies ($50,000)",
					"Emergency evacuation ($100,000)",
					"Trip cancellation (up to $5,000)",
					"24/7 travel assistance",
				},
				BestFor: "Short trips, low-risk activities",
			},
			{
				PlanName:      "Comprehensive Travel Insurance",
				Coverage:      "Standard",
				EstimatedCost: comprehensive,
				Includes: []string{
					"Medical emergencies ($100,000)",
					"Emergency evacuation ($250,000)",
					"Trip cancellation/interruption ($10,000)",
					"Baggage loss/delay",
					"Flight delays",
					"24/7 travel assistance",
					extra,
				},
				BestFor: "Most international trips",
			},
			{
				PlanName:      "Premium Travel Insurance",
				Coverage:      "Premium",
				EstimatedCost: premium,
				Includes: []string{
					"Medical emergencies ($250,000+)",
					"Emergency evacuation ($500,000)",
					"Trip cancellation/interruption ($25,000)",
					"Baggage loss (full coverage)",
					"Rental car coverage",
					"Adventure sports coverage",
					"Pre-existing conditions covered",
					"Cancel for any reason (CFAR)",
					"Concierge services",
				},
				BestFor: "Long trips, high-value trips, adventure activities",
			},
		},
		MustHaveCoverage: mustHave,
		Tips: []string{
			fmt.Sprintf("Average cost: $%d per person for %d days", int(math.Round(float64(comprehensive)/float64(travelers))), q.Duration),
			"Buy insurance within 14-21 days of booking for best coverage",
			"Read policy exclusions carefully",
			"Check if your health insurance covers international travel",
			"Some credit cards include basic travel insurance",
			"Download insurance company's app for easy claims",
			"Save emergency contact numbers before departure",
			activityTip,
		},
	}
}

type seasonPattern struct {
	peak, shoulder, low [4]string // months, weather, crowds, prices
	best                []string
}

var seasonPatterns = map[string]seasonPattern{
	"europe": {
		peak:     [4]string{"Jun-Aug", "Warm & sunny", "Very high", "High"},
		shoulder: [4]string{"Apr-May, Sep-Oct", "Mild & pleasant", "Moderate", "Medium"},
		low:      [4]string{"Nov-Mar", "Cold & rainy", "Low", "Low"},
		best:     []string{"May", "September", "October"},
	},
	"asia": {
		peak:     [4]string{"Dec-Feb", "Cool & dry", "High", "High"},
		shoulder: [4]string{"Nov, Mar-Apr", "Warm", "Moderate", "Medium"},
		low:      [4]string{"May-Oct", "Hot & humid/monsoon", "Low", "Low"},
		best:     []string{"November", "February", "March"},
	},
	"tropical": {
		peak:     [4]string{"Dec-Apr", "Dry season", "High", "High"},
		shoulder: [4]string{"May, Nov", "Transition", "Moderate", "Medium"},
		low:      [4]string{"Jun-Oct", "Rainy season", "Low", "Low"},
		best:     []string{"January", "February", "March"},
	},
}

func patternFor(destination string) seasonPattern {
	dest := strings.ToLower(destination)
	in := func(names ...string) bool {
		return slices.ContainsFunc(names, func(n string) bool { return strings.Contains(dest, n) })
	}
	switch {
	case in("thailand", "bali", "vietnam", "singapore"):
		return seasonPatterns["asia"]
	case in("caribbean", "maldives", "hawaii", "fiji"):
		return seasonPatterns["tropical"]
	default:
		return seasonPatterns["europe"]
	}
}

func season(name string, p [4]string, pros, cons []string) models.Season {
	return models.Season{Season: name, Months: p[0], Weather: p[1], Crowds: p[2], Prices: p[3], Pros: pros, Cons: cons}
}

// BestTimeToVisit recommends seasons for a destination. Preferences
// understood are good-weather, fewer-crowds and budget.
func BestTimeToVisit(destination string, preferences []string) models.SeasonAdvice {
	p := patternFor(destination)
	wants := func(s string) bool { return slices.Contains(preferences, s) }

	var recs []string
	if wants("good-weather") {
		recs = append(recs, fmt.Sprintf("Best weather: %s - %s", p.peak[0], strings.ToLower(p.peak[1])))
	}
	if wants("fewer-crowds") || wants("budget") {
		recs = append(recs, fmt.Sprintf("Sweet spot: %s - Good weather, fewer crowds, better prices", p.shoulder[0]))
	}
	if wants("budget") {
		recs = append(recs, fmt.Sprintf("Cheapest: %s - Save 40-60%% on accommodation and flights", p.low[0]))
	}
	ahead := "2-3 months"
	if wants("budget") {
		ahead = "3-4 months"
	}
	recs = append(recs,
		fmt.Sprintf("Book flights %s in advance", ahead),
		"Accommodation prices vary 30-60% between seasons",
		"Consider midweek travel for 15-20% savings",
		"Set price alerts for your preferred dates",
	)

	return models.SeasonAdvice{
		Destination: destination,
		BestMonths:  append([]string(nil), p.best...),
		SeasonalBreakdown: []models.Season{
			season("Peak Season", p.peak,
				[]string{"Best weather conditions", "All attractions open", "Vibrant atmosphere", "Easier to meet other travelers"},
				[]string{"Highest prices (30-50% more)", "Large crowds at popular sites", "Need to book far in advance", "Less authentic experience"}),
			season("Shoulder Season", p.shoulder,
				[]string{"Pleasant weather", "Moderate crowds", "Better prices (20-30% savings)", "More authentic experience", "Easier to get reservations"},
				[]string{"Some attractions may have reduced hours", "Weather can be unpredictable"}),
			season("Low Season", p.low,
				[]string{"Lowest prices (40-60% savings)", "No crowds", "Authentic local experience", "Easy to book anything"},
				[]string{"Poor weather conditions", "Some attractions closed", "Limited hours", "Fewer tour options"}),
		},
		SpecialEvents: []models.SpecialEvent{
			{Name: "Local Festival Season", Month: p.best[0], Description: "Experience cultural festivals and celebrations"},
			{Name: "Food & Wine Events", Month: p.best[1], Description: "Local culinary festivals and food tours"},
		},
		Recommendations: recs,
	}
}

// Group splits a group budget. Accommodation (35%), transport (15%) and
// 60% of activities (25%) are shared; meals (20%), the rest of activities
// and shopping (5%) are paid individually.
func Group(q models.GroupQuery) models.GroupPlan {
	n := max(q.Travelers, 1)
	total := float64(q.TotalBudget)
	round := func(v float64) int { return int(math.Round(v)) }

	shared := models.SharedCosts{
		Accommodation:   round(total * 0.35),
		Transportation:  round(total * 0.15),
		GroupActivities: round(total * 0.25 * 0.6),
	}
	shared.Total = shared.Accommodation + shared.Transportation + shared.GroupActivities

	individual := models.IndividualCosts{
		Meals:              round(total * 0.20 / float64(n)),
		PersonalActivities: round(total * 0.25 * 0.4 / float64(n)),
		Shopping:           round(total * 0.05 / float64(n)),
	}
	individual.Total = individual.Meals + individual.PersonalActivities + individual.Shopping

	perShared := round(float64(shared.Total) / float64(n))
	perPerson := models.PerPersonShare{
		Shared:     perShared,
		Individual: individual.Total,
		Total:      perShared + individual.Total,
	}

	transport, transportSaving := "Share taxis and use ride-sharing apps", "20-30% per person"
	if n >= 7 {
		transport, transportSaving = "Rent a van or minibus", "40-60% per person"
	}
	groupSaving := "5-10% with advance booking"
	if n >= 6 {
		groupSaving = "10-15% group discount"
	}

	tips := []string{
		"Assign roles: treasurer, planner, navigator, photographer",
		"Create shared expense spreadsheet before trip",
		"Agree on budget and spending limits upfront",
		fmt.Sprintf("Each person should bring $%d (10%% buffer)", round(float64(perPerson.Total)*1.1)),
		"Split group meals evenly, but track individual splurges separately",
		"Share photos in a group album",
		"Use polls for group decisions",
		"Plan meeting times and check-ins (everyone has different pace)",
		"Free walking tours save money and are great for groups",
		"Group activities create best memories - prioritize them!",
	}
	switch {
	case n >= 10:
		tips = append(tips,
			fmt.Sprintf("Large group (%d): Consider splitting into smaller sub-groups for some activities", n),
			"Charter a private bus for significant savings on transportation")
	case n <= 3:
		tips = append(tips, fmt.Sprintf("Small group (%d): Easier to find deals, more flexibility", n))
	}

	return models.GroupPlan{
		Destination:     q.Destination,
		Travelers:       n,
		TotalBudget:     q.TotalBudget,
		PerPersonBudget: round(total / float64(n)),
		Shared:          shared,
		Individual:      individual,
		PerPerson:       perPerson,
		Recommendations: []models.GroupRecommendation{
			{Category: "Accommodation", Recommendation: fmt.Sprintf("Rent %d apartments/villas instead of hotel rooms", (n+3)/4), Savings: "30-50% compared to individual rooms"},
			{Category: "Transportation", Recommendation: transport, Savings: transportSaving},
			{Category: "Food", Recommendation: "Cook some meals together in shared accommodation", Savings: "50% on those meals"},
			{Category: "Activities", Recommendation: "Book group tours and activities (usually 10-15% discount for groups of 6+)", Savings: groupSaving},
			{Category: "Groceries", Recommendation: "Buy groceries and snacks in bulk", Savings: "20-30% vs individual purchases"},
		},
		Tips: tips,
	}
}
