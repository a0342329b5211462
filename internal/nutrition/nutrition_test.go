package nutrition

import (
	"testing"
	"time"

	"nutrisync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func food(name string, kcal, protein, carbs, fat float64) models.NutritionData {
	return models.NutritionData{
		FoodName: name,
		Calories: kcal,
		Macronutrients: models.Macronutrients{
			Protein: protein, Carbohydrates: carbs, Fat: fat,
		},
	}
}

func entry(user, date string, meal models.MealType, foods ...models.NutritionData) models.FoodEntry {
	return models.FoodEntry{UserID: user, Date: date, MealType: meal, Foods: foods}
}

func TestSum_AppleWithPeanutButter(t *testing.T) {
	apple := food("Apple", 95, 0.5, 25, 0.3)
	apple.Micronutrients = models.Micronutrients{models.VitaminC: 8.4}
	pb := food("Peanut butter", 155, 7, 6, 13)

	totals := Sum([]models.FoodEntry{entry("u1", "2024-01-15", models.MealSnack, apple, pb)})

	assert.InDelta(t, 250, totals.Calories, 1e-9)
	assert.InDelta(t, 7.5, totals.Macronutrients.Protein, 1e-9)
	assert.InDelta(t, 31, totals.Macronutrients.Carbohydrates, 1e-9)
	assert.InDelta(t, 13.3, totals.Macronutrients.Fat, 1e-9)
	assert.InDelta(t, 8.4, totals.Micronutrients[models.VitaminC], 1e-9)
	assert.Len(t, totals.Micronutrients, len(models.AllMicronutrients))
}

func TestSum_DoesNotMutateInput(t *testing.T) {
	f := food("Rice", 200, 4, 44, 0.4)
	f.Micronutrients = models.Micronutrients{models.Iron: 1}
	entries := []models.FoodEntry{entry("u1", "2024-01-15", models.MealLunch, f, f)}

	Sum(entries)

	assert.Equal(t, 1.0, entries[0].Foods[0].Micronutrients[models.Iron])
	assert.Len(t, entries[0].Foods[0].Micronutrients, 1)
}

func TestDaily_FiltersAndOmitsEmptyMeals(t *testing.T) {
	entries := []models.FoodEntry{
		entry("u1", "2024-01-15", models.MealBreakfast, food("Oats", 150, 5, 27, 3)),
		entry("u1", "2024-01-15", models.MealBreakfast, food("Milk", 100, 8, 12, 2.5)),
		entry("u1", "2024-01-15", models.MealDinner, food("Salmon", 350, 34, 0, 22)),
		entry("u1", "2024-01-16", models.MealLunch, food("Soup", 120, 3, 15, 4)),
		entry("u2", "2024-01-15", models.MealLunch, food("Pizza", 800, 30, 90, 35)),
	}

	d := Daily("u1", "2024-01-15", entries)

	assert.Equal(t, 3, d.EntryCount)
	assert.InDelta(t, 600, d.Totals.Calories, 1e-9)
	require.Len(t, d.Meals, 2)
	assert.InDelta(t, 250, d.Meals[models.MealBreakfast].Calories, 1e-9)
	assert.InDelta(t, 350, d.Meals[models.MealDinner].Calories, 1e-9)
	_, hasLunch := d.Meals[models.MealLunch]
	assert.False(t, hasLunch)
}

func TestEmptyDaily(t *testing.T) {
	d := EmptyDaily("u1", "2024-01-15")
	assert.Zero(t, d.Totals.Calories)
	assert.Zero(t, d.EntryCount)
	assert.Empty(t, d.Meals)
	assert.Len(t, d.Totals.Micronutrients, len(models.AllMicronutrients))
}

func TestPeriodBounds(t *testing.T) {
	anchor := time.Date(2024, 2, 14, 15, 30, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		period     Period
		start, end string
	}{
		{PeriodWeekly, "2024-02-12", "2024-02-18"},
		{PeriodMonthly, "2024-02-01", "2024-02-29"},
		{PeriodQuarterly, "2024-01-01", "2024-03-31"},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			start, end := tt.period.Bounds(anchor)
			assert.Equal(t, tt.start, start.Format(models.DateLayout))
			assert.Equal(t, tt.end, end.Format(models.DateLayout))
		})
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("Monthly")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonthly, p)

	_, err = ParsePeriod("yearly")
	assert.Error(t, err)
}

func TestWeekStart_Sunday(t *testing.T) {
	sunday := time.Date(2024, 2, 18, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-02-12", WeekStart(sunday).Format(models.DateLayout))
}

func TestReport_Weekly(t *testing.T) {
	entries := []models.FoodEntry{
		entry("u1", "2024-02-12", models.MealLunch, food("Chicken", 300, 40, 0, 10)),
		entry("u1", "2024-02-12", models.MealDinner, food("chicken", 300, 40, 0, 10)),
		entry("u1", "2024-02-14", models.MealLunch, food("Rice", 200, 4, 44, 0.4)),
		entry("u1", "2024-02-20", models.MealLunch, food("Out of range", 999, 0, 0, 0)),
	}

	r := Report(PeriodWeekly, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), entries)

	assert.Equal(t, "2024-02-12", r.StartDate)
	assert.Equal(t, "2024-02-18", r.EndDate)
	assert.Equal(t, 3, r.EntryCount)
	assert.Equal(t, 2, r.DaysLogged)
	assert.InDelta(t, 800, r.Totals.Calories, 1e-9)
	assert.InDelta(t, 400, r.DailyAverage.Calories, 1e-9)
	assert.Len(t, r.Days, 7)
	assert.InDelta(t, 600, r.Days[0].Totals.Calories, 1e-9)
	assert.Nil(t, r.Weeks)

	require.Len(t, r.TopFoods, 2)
	assert.Equal(t, "Chicken", r.TopFoods[0].FoodName)
	assert.Equal(t, 2, r.TopFoods[0].Count)
}

func TestReport_MonthlyHasWeeks(t *testing.T) {
	entries := []models.FoodEntry{
		entry("u1", "2024-02-01", models.MealLunch, food("Soup", 100, 1, 1, 1)),
		entry("u1", "2024-02-05", models.MealLunch, food("Soup", 100, 1, 1, 1)),
		entry("u1", "2024-02-06", models.MealLunch, food("Soup", 100, 1, 1, 1)),
	}

	r := Report(PeriodMonthly, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), entries)

	assert.Len(t, r.Days, 29)
	require.NotEmpty(t, r.Weeks)
	assert.Equal(t, "2024-01-29", r.Weeks[0].WeekStart)
	assert.Equal(t, 1, r.Weeks[0].DaysLogged)
	assert.Equal(t, "2024-02-05", r.Weeks[1].WeekStart)
	assert.Equal(t, 2, r.Weeks[1].DaysLogged)
	assert.InDelta(t, 200, r.Weeks[1].Totals.Calories, 1e-9)
}

func TestReport_EmptyPeriod(t *testing.T) {
	r := Report(PeriodWeekly, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), nil)
	assert.Zero(t, r.DaysLogged)
	assert.Zero(t, r.DailyAverage.Calories)
	assert.NotNil(t, r.TopFoods)
}

func TestTopFoods_LimitAndStableTies(t *testing.T) {
	var foods []models.NutritionData
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		foods = append(foods, food(name, 10, 0, 0, 0))
	}
	foods = append(foods, food("L", 10, 0, 0, 0))

	top := TopFoods([]models.FoodEntry{{Foods: foods}}, 10)

	require.Len(t, top, 10)
	assert.Equal(t, "l", top[0].FoodName)
	assert.Equal(t, 2, top[0].Count)
	assert.Equal(t, "a", top[1].FoodName)
	assert.Equal(t, "i", top[9].FoodName)
}

func TestProgress(t *testing.T) {
	totals := NewTotals()
	totals.Calories = 1500
	totals.Macronutrients.Protein = 90
	totals.Micronutrients[models.Iron] = 9

	goals := models.NutritionGoals{
		DailyCalories:  2000,
		Macronutrients: models.Macronutrients{Protein: 120},
		Micronutrients: models.Micronutrients{models.Iron: 18},
	}

	p := Progress(totals, goals)
	assert.Equal(t, 75.0, p.Calories.Percent)
	assert.Equal(t, 75.0, p.Protein.Percent)
	assert.Equal(t, 50.0, p.Micros[models.Iron].Percent)
	assert.Zero(t, p.Fat.Percent)
	assert.Len(t, p.Micros, 1)
}

func TestPct_ZeroGoal(t *testing.T) {
	assert.Zero(t, pct(0, 0))
	assert.Equal(t, 100.0, pct(5, 0))
}

func TestLegacyView(t *testing.T) {
	d := Daily("u1", "2024-01-15", []models.FoodEntry{
		entry("u1", "2024-01-15", models.MealSnack, food("Apple", 95, 0.5, 25, 0.3)),
	})

	legacy := LegacyView(d)
	assert.Equal(t, 95.0, legacy.TotalCalories)
	assert.Equal(t, 95.0, legacy.SnackCalories)
	assert.Zero(t, legacy.BreakfastCalories)
	assert.Equal(t, 1, legacy.EntryCount)
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 250.0, RoundCalories(249.6))
	assert.Equal(t, 13.3, RoundGrams(13.2999999))

	totals := NewTotals()
	totals.Calories = 0.1 + 0.2
	r := totals.Rounded()
	assert.Equal(t, 0.0, r.Calories)
	assert.InDelta(t, 0.3, totals.Calories, 1e-9)
}
