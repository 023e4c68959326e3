// Package budget splits a trip budget into spending categories.
package budget

import (
	"errors"
	"fmt"
	"strings"

	"city-planner/backend/pkg/models"
)

// ErrUnknownStyle is returned for a travel style with no allocation table.
var ErrUnknownStyle = errors.New("unknown travel style")

// shares are basis points of the total.
type shares struct {
	accommodation, food, activities, transportation, contingency int
}

var tables = map[models.TravelStyle]shares{
	models.StyleBudget:   {2500, 3000, 3000, 1000, 500},
	models.StyleMidRange: {3500, 3000, 2500, 500, 500},
	models.StyleLuxury:   {4500, 3000, 2000, 300, 200},
}

// ParseStyle normalizes a style name. The empty string is mid-range.
func ParseStyle(s string) (models.TravelStyle, error) {
	style := models.TravelStyle(strings.ToLower(strings.TrimSpace(s)))
	if style == "" {
		return models.StyleMidRange, nil
	}
	if _, ok := tables[style]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, s)
	}
	return style, nil
}

// Allocate floors each category share of total. Unknown styles use the
// mid-range table and negative totals are treated as zero.
func Allocate(total int, style models.TravelStyle) models.BudgetBreakdown {
	if total < 0 {
		total = 0
	}
	t, ok := tables[style]
	if !ok {
		style = models.StyleMidRange
		t = tables[style]
	}
	part := func(bp int) int { return total * bp / 10000 }

	return models.BudgetBreakdown{
		Total:          total,
		Style:          style,
		Accommodation:  part(t.accommodation),
		Food:           part(t.food),
		Activities:     part(t.activities),
		Transportation: part(t.transportation),
		Contingency:    part(t.contingency),
	}
}

// Daily divides each category by days. Division remainders and the
// allocation remainder go to Contingency.
func Daily(b models.BudgetBreakdown, days int) (models.DailyBudget, error) {
	if days < 1 {
		return models.DailyBudget{}, fmt.Errorf("days must be at least 1, got %d", days)
	}
	d := models.DailyBudget{
		Days:                 days,
		PerNight:             b.Accommodation / days,
		FoodPerDay:           b.Food / days,
		ActivitiesPerDay:     b.Activities / days,
		TransportationPerDay: b.Transportation / days,
	}
	d.Contingency = b.Contingency +
		b.Accommodation%days + b.Food%days + b.Activities%days + b.Transportation%days +
		(b.Total - b.Allocated())
	return d, nil
}
