// Package nutrition reduces food entries into nutrition totals. Everything
// here is pure. Inputs are never mutated and nothing is rounded until the
// result is rendered for display.
package nutrition

import (
	"nutrisync/internal/models"
)

// Totals is a calorie, macro and micro sum.
type Totals struct {
	Calories       float64               `json:"calories"`
	Macronutrients models.Macronutrients `json:"macronutrients"`
	Micronutrients models.Micronutrients `json:"micronutrients"`
}

// NewTotals returns zero totals with the full micronutrient set present.
func NewTotals() Totals {
	return Totals{Micronutrients: models.ZeroMicronutrients()}
}

// AddFood accumulates one food. Calories and macros are taken as given;
// absent micronutrients count as zero.
func (t *Totals) AddFood(f models.NutritionData) {
	if t.Micronutrients == nil {
		t.Micronutrients = models.ZeroMicronutrients()
	}
	t.Calories += f.Calories
	t.Macronutrients = t.Macronutrients.Add(f.Macronutrients)
	t.Micronutrients.AddInto(f.Micronutrients)
}

// Add accumulates another Totals.
func (t *Totals) Add(o Totals) {
	if t.Micronutrients == nil {
		t.Micronutrients = models.ZeroMicronutrients()
	}
	t.Calories += o.Calories
	t.Macronutrients = t.Macronutrients.Add(o.Macronutrients)
	t.Micronutrients.AddInto(o.Micronutrients)
}

// Sum reduces every food of every entry.
func Sum(entries []models.FoodEntry) Totals {
	t := NewTotals()
	for _, e := range entries {
		for _, f := range e.Foods {
			t.AddFood(f)
		}
	}
	return t
}

// ByMeal sums each meal slot separately. Slots without entries are absent
// from the result, so "nothing logged" stays distinct from "zero logged".
func ByMeal(entries []models.FoodEntry) map[models.MealType]Totals {
	out := make(map[models.MealType]Totals)
	for _, e := range entries {
		t, ok := out[e.MealType]
		if !ok {
			t = NewTotals()
		}
		for _, f := range e.Foods {
			t.AddFood(f)
		}
		out[e.MealType] = t
	}
	return out
}

// DailyNutrition is the derived view of one user's day.
type DailyNutrition struct {
	Date       string                     `json:"date"`
	UserID     string                     `json:"user_id"`
	Totals     Totals                     `json:"totals"`
	Meals      map[models.MealType]Totals `json:"meals"`
	EntryCount int                        `json:"entry_count"`
}

// EmptyDaily is the all-zero day returned when nothing could be read.
func EmptyDaily(userID, date string) DailyNutrition {
	return DailyNutrition{
		Date:   date,
		UserID: userID,
		Totals: NewTotals(),
		Meals:  map[models.MealType]Totals{},
	}
}

// Daily aggregates the entries that belong to userID on date. Entries for
// other users or days are ignored.
func Daily(userID, date string, entries []models.FoodEntry) DailyNutrition {
	matching := make([]models.FoodEntry, 0, len(entries))
	for _, e := range entries {
		if e.UserID == userID && e.Date == date {
			matching = append(matching, e)
		}
	}
	return DailyNutrition{
		Date:       date,
		UserID:     userID,
		Totals:     Sum(matching),
		Meals:      ByMeal(matching),
		EntryCount: len(matching),
	}
}
