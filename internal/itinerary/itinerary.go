// Package itinerary turns a budget and gathered city data into day plans
// and quick activity recommendations.
package itinerary

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"city-planner/backend/internal/budget"
	"city-planner/backend/pkg/models"
)

// DateLayout formats day plan dates.
const DateLayout = "Jan 2, 2006"

const defaultInterest = "sightseeing"

// MaxDays is the longest itinerary Assemble builds.
const MaxDays = 60

// ErrTooManyDays is returned for itineraries longer than MaxDays.
var ErrTooManyDays = fmt.Errorf("itinerary is limited to %d days", MaxDays)

// Input is everything the assembler needs for one city.
type Input struct {
	City      string
	Facts     models.CityFacts
	Weather   models.Weather
	Budget    models.BudgetBreakdown
	Interests []string
	Days      int
	// Start is the day before the first planned day.
	Start time.Time
}

func (in Input) interests() []string {
	var out []string
	for _, i := range in.Interests {
		if s := strings.TrimSpace(i); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{defaultInterest}
	}
	return out
}

func (in Input) highlight() string {
	if len(in.Facts.NotableFor) > 0 {
		return in.Facts.NotableFor[0]
	}
	return "popular attraction"
}

// Assemble builds one DayPlan per day. Activity slots get 40/35/25% of the
// daily activities budget and meals 20/35/45% of the daily food budget.
func Assemble(in Input) ([]models.DayPlan, error) {
	if in.Days > MaxDays {
		return nil, ErrTooManyDays
	}
	daily, err := budget.Daily(in.Budget, in.Days)
	if err != nil {
		return nil, err
	}
	interests := in.interests()
	n := len(interests)
	wantsFood := slices.Contains(interests, "local food")

	plans := make([]models.DayPlan, 0, in.Days)
	for d := 1; d <= in.Days; d++ {
		primary := interests[(d-1)%n]
		secondary := interests[d%n]
		last := d == in.Days

		activities := []models.Activity{
			{
				Time:        "09:00 AM",
				Name:        morningName(primary),
				Description: fmt.Sprintf("Explore %s - %s. Book tickets online in advance for discounts.", primary, in.highlight()),
				Cost:        daily.ActivitiesPerDay * 40 / 100,
			},
			{
				Time:        "02:00 PM",
				Name:        afternoonName(secondary),
				Description: afternoonDescription(secondary),
				Cost:        daily.ActivitiesPerDay * 35 / 100,
			},
			eveningActivity(last, daily.ActivitiesPerDay*25/100),
		}

		meals := models.Meals{
			Breakfast: models.Meal{Description: "Local café or hotel breakfast - try traditional breakfast items", Cost: daily.FoodPerDay * 20 / 100},
			Lunch:     models.Meal{Description: "Mid-range restaurant - sample regional cuisine", Cost: daily.FoodPerDay * 35 / 100},
			Dinner:    models.Meal{Description: dinnerDescription(last, wantsFood), Cost: daily.FoodPerDay * 45 / 100},
		}

		total := meals.Total()
		for _, a := range activities {
			total += a.Cost
		}

		plans = append(plans, models.DayPlan{
			Day:          d,
			Date:         in.Start.AddDate(0, 0, d).Format(DateLayout),
			Activities:   activities,
			Meals:        meals,
			TotalDayCost: total,
		})
	}
	return plans, nil
}

func morningName(interest string) string {
	switch strings.ToLower(interest) {
	case "historical sites":
		return "Visit Historical Site"
	case "museums":
		return "Museum Tour"
	default:
		return "Morning Exploration"
	}
}

func afternoonName(interest string) string {
	switch strings.ToLower(interest) {
	case "local food":
		return "Food Tour"
	case "shopping":
		return "Local Market Visit"
	default:
		return "Afternoon Activity"
	}
}

func afternoonDescription(interest string) string {
	if strings.EqualFold(interest, "local food") {
		return fmt.Sprintf("Experience %s. Try traditional dishes and street food.", interest)
	}
	return fmt.Sprintf("Experience %s. Explore local neighborhoods and culture.", interest)
}

func eveningActivity(last bool, cost int) models.Activity {
	if last {
		return models.Activity{
			Time:        "06:00 PM",
			Name:        "Farewell Dinner & Reflection",
			Description: "Enjoy a special dinner at a recommended local restaurant and reflect on your trip",
			Cost:        cost,
		}
	}
	return models.Activity{
		Time:        "06:00 PM",
		Name:        "Evening Leisure",
		Description: "Relax, explore nightlife, or enjoy a sunset view",
		Cost:        cost,
	}
}

func dinnerDescription(last, wantsFood bool) string {
	kind := "Local"
	if last {
		kind = "Special"
	}
	if wantsFood {
		return kind + " restaurant - focus on authentic local dishes"
	}
	return kind + " restaurant - enjoy recommended local spots"
}

// Build produces the full itinerary: budget, day plans, accommodation
// tiers and tips. PlannedSpend never exceeds the total budget.
func Build(in Input) (models.FullItinerary, error) {
	if in.Days < 1 {
		return models.FullItinerary{}, errors.New("duration must be at least 1 day")
	}
	daily, err := budget.Daily(in.Budget, in.Days)
	if err != nil {
		return models.FullItinerary{}, err
	}
	days, err := Assemble(in)
	if err != nil {
		return models.FullItinerary{}, err
	}

	spend := in.Budget.Accommodation + in.Budget.Transportation
	for _, d := range days {
		spend += d.TotalDayCost
	}

	return models.FullItinerary{
		City:                     in.City,
		Duration:                 in.Days,
		TotalBudget:              in.Budget.Total,
		BudgetBreakdown:          in.Budget,
		DailyBudget:              daily,
		DailyItinerary:           days,
		AccommodationSuggestions: Accommodation(daily.PerNight),
		PackingTips:              PackingTips(in.Weather.Temperature, in.interests()),
		MoneyTips:                MoneyTips(in.Budget.Total, in.Days),
		PlannedSpend:             spend,
	}, nil
}

// Accommodation returns three price tiers around the nightly budget.
func Accommodation(perNight int) []string {
	pct := func(p int) int { return perNight * p / 100 }
	return []string{
		fmt.Sprintf("Budget Hotels ($%d-%d/night): Check Booking.com, Hotels.com for central locations", pct(60), perNight),
		fmt.Sprintf("Airbnb Apartments ($%d-%d/night): Great for longer stays with kitchen", pct(70), pct(120)),
		fmt.Sprintf("Hostels with private rooms ($%d-%d/night): Social atmosphere, budget-friendly", pct(40), pct(70)),
	}
}

// PackingTips picks clothing by temperature in °C.
func PackingTips(temperature float64, interests []string) []string {
	clothing := "Pack comfortable layers for variable weather"
	switch {
	case temperature < 15:
		clothing = "Pack warm layers and jacket"
	case temperature > 25:
		clothing = "Pack light, breathable clothing and sunscreen"
	}
	camera := "Phone with good camera"
	if slices.Contains(interests, "historical sites") {
		camera = "Camera for historical sites"
	}
	return []string{
		clothing,
		"Comfortable walking shoes (you'll walk a lot!)",
		"Power adapter and portable charger",
		camera,
		"Credit card + some local cash",
		"Day pack for carrying essentials",
	}
}

func MoneyTips(total, days int) []string {
	perDay := 0
	if days > 0 {
		perDay = total / days
	}
	return []string{
		fmt.Sprintf("Daily budget: ~$%d per day", perDay),
		"Use ATMs for better exchange rates than currency exchange offices",
		"Inform your bank about travel dates to avoid card blocks",
		"Download offline maps and translation apps",
		"Consider a city pass if visiting multiple attractions (usually saves 20-30%)",
		"Lunch is often cheaper than dinner at the same restaurant",
	}
}
