package itinerary

import (
	"fmt"
	"slices"
	"strings"

	"city-planner/backend/pkg/models"
)

type conditions struct {
	temp      float64
	condition string
	good      bool
	cold      bool
	hot       bool
	rainy     bool
	morning   bool
	afternoon bool
	evening   bool
}

func classify(w models.Weather, hour int) conditions {
	cond := strings.ToLower(w.Condition)
	if cond == "" {
		cond = "clear"
	}
	rainy := strings.Contains(cond, "rain") || strings.Contains(cond, "storm")
	return conditions{
		temp:      w.Temperature,
		condition: cond,
		good:      w.Temperature >= 15 && w.Temperature <= 28 && !rainy,
		cold:      w.Temperature < 10,
		hot:       w.Temperature > 30,
		rainy:     rainy,
		morning:   hour >= 6 && hour < 12,
		afternoon: hour >= 12 && hour < 18,
		evening:   hour >= 18 || hour < 6,
	}
}

// Preferences maps free-form interests to recommendation categories.
func Preferences(interests []string) []string {
	var prefs []string
	add := func(p string) {
		if !slices.Contains(prefs, p) {
			prefs = append(prefs, p)
		}
	}
	for _, raw := range interests {
		i := strings.ToLower(raw)
		if strings.Contains(i, "food") {
			add("food")
		}
		if strings.Contains(i, "outdoor") || strings.Contains(i, "nature") {
			add("outdoor")
		}
		if strings.Contains(i, "museum") || strings.Contains(i, "culture") {
			add("cultural")
		}
		if strings.Contains(i, "adventure") {
			add("adventure")
		}
		if strings.Contains(i, "shop") {
			add("shopping")
		}
		if strings.Contains(i, "night") {
			add("nightlife")
		}
	}
	return prefs
}

// Recommend suggests activities from the current weather and local hour.
func Recommend(city string, w models.Weather, localHour int, interests []string) models.RecommendationSet {
	c := classify(w, localHour)
	prefs := Preferences(interests)
	var recs []models.Recommendation
	add := func(category, activity, reason, best string, p models.Priority) {
		recs = append(recs, models.Recommendation{Category: category, Activity: activity, Reason: reason, BestTime: best, Priority: p})
	}

	if c.good && !c.evening {
		add("Outdoor", "City Walking Tour", fmt.Sprintf("Perfect weather at %g°C with %s conditions", c.temp, c.condition), "Now - next 3 hours", models.PriorityHigh)
		add("Nature", "Visit Parks and Gardens", "Ideal weather for outdoor exploration", "Daytime", models.PriorityHigh)
	}
	if c.rainy || c.cold {
		reason := "Indoor activities recommended due to cold weather"
		if c.rainy {
			reason = "Indoor activities recommended due to rain"
		}
		add("Cultural", "Museum Visit", reason, "Anytime", models.PriorityHigh)
		add("Food", "Try Local Cuisine in Cozy Restaurants", "Perfect weather for indoor dining experiences", "Lunch or Dinner", models.PriorityHigh)
	}
	if c.hot {
		add("Indoor", "Shopping Malls and Air-Conditioned Venues", fmt.Sprintf("Very hot weather (%g°C), stay cool indoors", c.temp), "Midday", models.PriorityHigh)
	}

	switch {
	case c.morning:
		add("Food", "Local Breakfast Spots", "Start your day with authentic local breakfast", "Morning", models.PriorityMedium)
		add("Cultural", "Morning Market Visit", "Markets are most vibrant in the morning", "Early morning", models.PriorityMedium)
	case c.evening:
		add("Nightlife", "Evening Entertainment District", "Experience the city's nightlife scene", "Evening/Night", models.PriorityHigh)
		add("Food", "Dinner at Rooftop Restaurant", "Enjoy city views during sunset and evening", "Sunset/Evening", models.PriorityMedium)
	case c.afternoon && c.good:
		add("Cultural", "Historic Sites Tour", "Afternoon is great for sightseeing with good lighting", "Afternoon", models.PriorityMedium)
	}

	if slices.Contains(prefs, "food") {
		add("Food", "Food Tour or Cooking Class", "Based on your interest in local cuisine", "Flexible", models.PriorityHigh)
	}
	if slices.Contains(prefs, "adventure") {
		best := "Indoor adventure activities"
		if c.good {
			best = "Daytime"
		}
		add("Adventure", "Adventure Activities and Sports", "Based on your preference for adventure", best, models.PriorityMedium)
	}
	add("Shopping", "Local Markets and Boutiques", "Discover unique local products and souvenirs", "Daytime", models.PriorityLow)

	return models.RecommendationSet{
		City:              city,
		Recommendations:   recs,
		WeatherAdvice:     weatherAdvice(c),
		TimingAdvice:      timingAdvice(c),
		OverallSuggestion: overall(city, c, localHour, recs[0]),
	}
}

func weatherAdvice(c conditions) string {
	switch {
	case c.rainy:
		return "It's rainy - bring an umbrella and focus on indoor activities. Cozy cafes and museums are perfect choices."
	case c.cold:
		return "It's quite cold - dress warmly and consider indoor attractions or brief outdoor visits."
	case c.hot:
		return "Very hot weather - stay hydrated, use sunscreen, and take breaks in air-conditioned spaces."
	default:
		return fmt.Sprintf("Perfect weather conditions (%g°C, %s) - great time to explore both indoor and outdoor attractions!", c.temp, c.condition)
	}
}

func timingAdvice(c conditions) string {
	switch {
	case c.evening:
		return "It's evening - perfect time for dinner, nightlife, and illuminated landmarks."
	case c.morning:
		return "It's morning - great time to start with breakfast and visit popular sites before crowds arrive."
	default:
		return "It's afternoon - ideal for lunch and main sightseeing activities."
	}
}

func overall(city string, c conditions, hour int, top models.Recommendation) string {
	closing := "Choose comfortable indoor activities and enjoy the local culture!"
	if c.good && !c.evening {
		closing = "Make the most of the great weather!"
	}
	return fmt.Sprintf("Based on the current conditions in %s (%g°C, %s, %02d:00), I recommend %s as your top priority. %s",
		city, c.temp, c.condition, hour, strings.ToLower(top.Activity), closing)
}
