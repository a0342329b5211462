package nutrition

import (
	"math"

	"nutrisync/internal/models"
)

// RoundCalories rounds to whole kilocalories.
func RoundCalories(v float64) float64 { return math.Round(v) }

// RoundGrams rounds to one decimal place.
func RoundGrams(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Rounded returns a display copy of t.
func (t Totals) Rounded() Totals {
	out := Totals{
		Calories: RoundCalories(t.Calories),
		Macronutrients: models.Macronutrients{
			Protein:       RoundGrams(t.Macronutrients.Protein),
			Carbohydrates: RoundGrams(t.Macronutrients.Carbohydrates),
			Fat:           RoundGrams(t.Macronutrients.Fat),
			Fiber:         RoundGrams(t.Macronutrients.Fiber),
			Sugar:         RoundGrams(t.Macronutrients.Sugar),
		},
		Micronutrients: make(models.Micronutrients, len(t.Micronutrients)),
	}
	for k, v := range t.Micronutrients {
		out.Micronutrients[k] = round2(v)
	}
	return out
}

// Metric is consumed against target for one tracked quantity.
type Metric struct {
	Consumed float64 `json:"consumed"`
	Target   float64 `json:"target"`
	Percent  float64 `json:"percent"`
}

type GoalProgress struct {
	Calories      Metric                          `json:"calories"`
	Protein       Metric                          `json:"protein"`
	Carbohydrates Metric                          `json:"carbohydrates"`
	Fat           Metric                          `json:"fat"`
	Fiber         Metric                          `json:"fiber"`
	Sugar         Metric                          `json:"sugar"`
	Micros        map[models.Micronutrient]Metric `json:"micronutrients,omitempty"`
}

// Progress compares totals with goals. Micronutrients are reported only for
// the ones the goals name.
func Progress(t Totals, g models.NutritionGoals) GoalProgress {
	p := GoalProgress{
		Calories:      metric(t.Calories, g.DailyCalories),
		Protein:       metric(t.Macronutrients.Protein, g.Macronutrients.Protein),
		Carbohydrates: metric(t.Macronutrients.Carbohydrates, g.Macronutrients.Carbohydrates),
		Fat:           metric(t.Macronutrients.Fat, g.Macronutrients.Fat),
		Fiber:         metric(t.Macronutrients.Fiber, g.Macronutrients.Fiber),
		Sugar:         metric(t.Macronutrients.Sugar, g.Macronutrients.Sugar),
	}
	if len(g.Micronutrients) > 0 {
		p.Micros = make(map[models.Micronutrient]Metric, len(g.Micronutrients))
		for n, target := range g.Micronutrients {
			p.Micros[n] = metric(t.Micronutrients.Get(n), target)
		}
	}
	return p
}

func metric(consumed, target float64) Metric {
	return Metric{Consumed: consumed, Target: target, Percent: pct(consumed, target)}
}

func pct(actual, goal float64) float64 {
	if goal <= 0 {
		if actual <= 0 {
			return 0
		}
		return 100
	}
	return round2(actual / goal * 100)
}

// LegacyDaily is the flat daily shape older clients read.
type LegacyDaily struct {
	Date               string  `json:"date"`
	UserID             string  `json:"user_id"`
	TotalCalories      float64 `json:"total_calories"`
	TotalProtein       float64 `json:"total_protein"`
	TotalCarbohydrates float64 `json:"total_carbohydrates"`
	TotalFat           float64 `json:"total_fat"`
	TotalFiber         float64 `json:"total_fiber"`
	TotalSugar         float64 `json:"total_sugar"`
	BreakfastCalories  float64 `json:"breakfast_calories"`
	LunchCalories      float64 `json:"lunch_calories"`
	DinnerCalories     float64 `json:"dinner_calories"`
	SnackCalories      float64 `json:"snack_calories"`
	EntryCount         int     `json:"entry_count"`
}

// LegacyView flattens d. Missing meal slots read as zero here.
func LegacyView(d DailyNutrition) LegacyDaily {
	m := d.Totals.Macronutrients
	return LegacyDaily{
		Date:               d.Date,
		UserID:             d.UserID,
		TotalCalories:      d.Totals.Calories,
		TotalProtein:       m.Protein,
		TotalCarbohydrates: m.Carbohydrates,
		TotalFat:           m.Fat,
		TotalFiber:         m.Fiber,
		TotalSugar:         m.Sugar,
		BreakfastCalories:  d.Meals[models.MealBreakfast].Calories,
		LunchCalories:      d.Meals[models.MealLunch].Calories,
		DinnerCalories:     d.Meals[models.MealDinner].Calories,
		SnackCalories:      d.Meals[models.MealSnack].Calories,
		EntryCount:         d.EntryCount,
	}
}
