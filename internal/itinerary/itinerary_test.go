package itinerary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city-planner/backend/internal/budget"
	"city-planner/backend/pkg/models"
)

func parisInput() Input {
	return Input{
		City: "Paris",
		Facts: models.CityFacts{
			City:       "Paris",
			Country:    "France",
			NotableFor: []string{"Eiffel Tower", "Louvre Museum"},
		},
		Weather:   models.Weather{City: "Paris", Temperature: 18, Condition: "Clouds"},
		Budget:    budget.Allocate(2000, models.StyleMidRange),
		Interests: []string{"historical sites", "local food"},
		Days:      5,
		Start:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestAssemble(t *testing.T) {
	days, err := Assemble(parisInput())
	require.NoError(t, err)
	require.Len(t, days, 5)

	first := days[0]
	assert.Equal(t, 1, first.Day)
	assert.Equal(t, "Mar 11, 2024", first.Date)
	require.Len(t, first.Activities, 3)

	// activities 500/5 = 100 per day, food 600/5 = 120 per day
	assert.Equal(t, "09:00 AM", first.Activities[0].Time)
	assert.Equal(t, "Visit Historical Site", first.Activities[0].Name)
	assert.Contains(t, first.Activities[0].Description, "Eiffel Tower")
	assert.Equal(t, 40, first.Activities[0].Cost)
	assert.Equal(t, "Food Tour", first.Activities[1].Name)
	assert.Equal(t, 35, first.Activities[1].Cost)
	assert.Equal(t, "Evening Leisure", first.Activities[2].Name)
	assert.Equal(t, 25, first.Activities[2].Cost)
	assert.Equal(t, 24, first.Meals.Breakfast.Cost)
	assert.Equal(t, 42, first.Meals.Lunch.Cost)
	assert.Equal(t, 54, first.Meals.Dinner.Cost)
	assert.Equal(t, 220, first.TotalDayCost)

	// Interests alternate between days.
	assert.Equal(t, "Morning Exploration", days[1].Activities[0].Name)
	assert.Equal(t, "Afternoon Activity", days[1].Activities[1].Name)

	last := days[4]
	assert.Equal(t, "Farewell Dinner & Reflection", last.Activities[2].Name)
	assert.Contains(t, last.Meals.Dinner.Description, "Special")

	for _, d := range days {
		sum := d.Meals.Total()
		for _, a := range d.Activities {
			sum += a.Cost
		}
		assert.Equal(t, sum, d.TotalDayCost)
	}
}

func TestAssembleDefaultsInterest(t *testing.T) {
	in := parisInput()
	in.Interests = nil
	in.Facts.NotableFor = nil
	days, err := Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, days[0].Activities[0].Description, "Explore sightseeing - popular attraction")
}

func TestAssembleRejectsZeroDays(t *testing.T) {
	in := parisInput()
	in.Days = 0
	_, err := Assemble(in)
	assert.Error(t, err)
}

func TestAssembleRejectsTooManyDays(t *testing.T) {
	in := parisInput()
	in.Days = 1_000_000_000
	_, err := Assemble(in)
	assert.ErrorIs(t, err, ErrTooManyDays)

	in.Days = MaxDays
	plans, err := Assemble(in)
	require.NoError(t, err)
	assert.Len(t, plans, MaxDays)
}

func TestBuild(t *testing.T) {
	it, err := Build(parisInput())
	require.NoError(t, err)

	assert.Equal(t, 2000, it.TotalBudget)
	assert.Len(t, it.DailyItinerary, 5)
	assert.Equal(t, 140, it.DailyBudget.PerNight)
	// 5 * 220 + 700 + 100
	assert.Equal(t, 1900, it.PlannedSpend)
	assert.LessOrEqual(t, it.PlannedSpend, it.TotalBudget)

	require.Len(t, it.AccommodationSuggestions, 3)
	assert.Contains(t, it.AccommodationSuggestions[0], "$84-140/night")
	assert.Contains(t, it.AccommodationSuggestions[1], "$98-168/night")
	assert.Contains(t, it.AccommodationSuggestions[2], "$56-98/night")

	assert.Equal(t, "Pack comfortable layers for variable weather", it.PackingTips[0])
	assert.Contains(t, it.PackingTips, "Camera for historical sites")
	assert.Equal(t, "Daily budget: ~$400 per day", it.MoneyTips[0])
}

func TestPackingTips(t *testing.T) {
	assert.Equal(t, "Pack warm layers and jacket", PackingTips(14.9, nil)[0])
	assert.Equal(t, "Pack comfortable layers for variable weather", PackingTips(15, nil)[0])
	assert.Equal(t, "Pack comfortable layers for variable weather", PackingTips(25, nil)[0])
	assert.Equal(t, "Pack light, breathable clothing and sunscreen", PackingTips(25.1, nil)[0])
}

func TestRecommend(t *testing.T) {
	t.Run("good weather afternoon", func(t *testing.T) {
		set := Recommend("Paris", models.Weather{Temperature: 22, Condition: "Clear"}, 14, []string{"local food"})
		assert.Equal(t, "City Walking Tour", set.Recommendations[0].Activity)
		assert.Equal(t, models.PriorityHigh, set.Recommendations[0].Priority)
		assert.Contains(t, activities(set), "Historic Sites Tour")
		assert.Contains(t, activities(set), "Food Tour or Cooking Class")
		assert.Equal(t, "Local Markets and Boutiques", set.Recommendations[len(set.Recommendations)-1].Activity)
		assert.Contains(t, set.TimingAdvice, "afternoon")
		assert.Contains(t, set.OverallSuggestion, "city walking tour")
		assert.Contains(t, set.OverallSuggestion, "14:00")
		assert.Len(t, set.Top(3), 3)
	})

	t.Run("rainy evening", func(t *testing.T) {
		set := Recommend("London", models.Weather{Temperature: 12, Condition: "Rain"}, 20, nil)
		assert.Equal(t, "Museum Visit", set.Recommendations[0].Activity)
		assert.Equal(t, "Indoor activities recommended due to rain", set.Recommendations[0].Reason)
		assert.Contains(t, activities(set), "Evening Entertainment District")
		assert.NotContains(t, activities(set), "City Walking Tour")
		assert.Contains(t, set.WeatherAdvice, "rainy")
		assert.Contains(t, set.OverallSuggestion, "indoor activities")
	})

	t.Run("hot morning", func(t *testing.T) {
		set := Recommend("Dubai", models.Weather{Temperature: 38, Condition: "Clear"}, 8, []string{"adventure"})
		assert.Equal(t, "Shopping Malls and Air-Conditioned Venues", set.Recommendations[0].Activity)
		assert.Contains(t, activities(set), "Local Breakfast Spots")
		assert.Contains(t, set.WeatherAdvice, "Very hot")
		for _, r := range set.Recommendations {
			if r.Category == "Adventure" {
				assert.Equal(t, "Indoor adventure activities", r.BestTime)
			}
		}
	})

	t.Run("cold", func(t *testing.T) {
		set := Recommend("Berlin", models.Weather{Temperature: 2, Condition: "Snow"}, 11, nil)
		assert.Equal(t, "Indoor activities recommended due to cold weather", set.Recommendations[0].Reason)
		assert.Contains(t, set.WeatherAdvice, "cold")
	})
}

func TestPreferences(t *testing.T) {
	assert.Equal(t,
		[]string{"food", "cultural", "outdoor", "nightlife", "shopping"},
		Preferences([]string{"Local Food", "museums", "Nature walks", "street food", "nightlife", "shopping"}))
	assert.Empty(t, Preferences(nil))
}

func activities(set models.RecommendationSet) []string {
	out := make([]string, len(set.Recommendations))
	for i, r := range set.Recommendations {
		out[i] = r.Activity
	}
	return out
}
