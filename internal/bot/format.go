package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nutrisync/internal/food"
	"nutrisync/internal/models"
	"nutrisync/internal/nutrition"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackMeal   = "meal"
	callbackCancel = "cancel"
)

var mealTitles = map[models.MealType]string{
	models.MealBreakfast: "Завтрак",
	models.MealLunch:     "Обед",
	models.MealDinner:    "Ужин",
	models.MealSnack:     "Перекус",
}

const helpText = `Я веду дневник питания, даже без связи с сервером.

Опишите, что вы съели, или пришлите фото блюда, а затем выберите приём пищи.

/today - итоги за сегодня
/week - отчёт за неделю
/month - отчёт за месяц
/favorites - частые продукты
/search <текст> - поиск записей
/delete <id> - удалить запись
/goal <ккал> <белки> <углеводы> <жиры> - задать цели
/status - очередь синхронизации
/sync - синхронизировать сейчас
/forget - удалить локальные данные`

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func mealTitle(m models.MealType) string {
	if title, ok := mealTitles[m]; ok {
		return title
	}
	return string(m)
}

func mealKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range models.MealTypes {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(mealTitle(m), callbackMeal+":"+string(m)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Отмена", callbackCancel)),
	)
}

// parseCallback splits "action:value" button data.
func parseCallback(data string) (action, value string) {
	action, value, _ = strings.Cut(data, ":")
	return action, value
}

// parseGoalArgs reads "<kcal> <protein> <carbs> <fat>".
func parseGoalArgs(args string) (models.NutritionGoals, error) {
	fields := strings.Fields(strings.ReplaceAll(args, ",", "."))
	if len(fields) != 4 {
		return models.NutritionGoals{}, errors.New("expected 4 numbers: kcal protein carbs fat")
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || !models.ValidAmount(v) {
			return models.NutritionGoals{}, fmt.Errorf("invalid number %q", f)
		}
		values[i] = v
	}
	if values[0] == 0 {
		return models.NutritionGoals{}, errors.New("calorie goal must be positive")
	}
	return models.NutritionGoals{
		DailyCalories: values[0],
		Macronutrients: models.Macronutrients{
			Protein:       values[1],
			Carbohydrates: values[2],
			Fat:           values[3],
		},
	}, nil
}

func formatMacros(m models.Macronutrients) string {
	return fmt.Sprintf("Б %s / У %s / Ж %s",
		grams(m.Protein), grams(m.Carbohydrates), grams(m.Fat))
}

func grams(v float64) string {
	return strconv.FormatFloat(nutrition.RoundGrams(v), 'f', -1, 64) + " г"
}

func kcal(v float64) string {
	return strconv.FormatFloat(nutrition.RoundCalories(v), 'f', -1, 64) + " ккал"
}

// formatFoods lists analysed foods with their total, for confirmation before
// the meal slot is chosen.
func formatFoods(foods []models.NutritionData) string {
	var b strings.Builder
	total := nutrition.NewTotals()
	for _, f := range foods {
		total.AddFood(f)
		fmt.Fprintf(&b, "• %s: %s (%s)\n", f.FoodName, kcal(f.Calories), formatMacros(f.Macronutrients))
	}
	fmt.Fprintf(&b, "\nИтого: %s (%s)", kcal(total.Calories), formatMacros(total.Macronutrients))
	return b.String()
}

func formatSaved(e models.FoodEntry) string {
	total := nutrition.NewTotals()
	for _, f := range e.Foods {
		total.AddFood(f)
	}
	text := fmt.Sprintf("✅ %s записан: %s", mealTitle(e.MealType), kcal(total.Calories))
	if !e.IsSynced() {
		text += "\nСервер недоступен, запись сохранена локально и будет отправлена позже."
	}
	return text
}

func formatDaily(d nutrition.DailyNutrition, goals *models.NutritionGoals) string {
	if d.EntryCount == 0 {
		return fmt.Sprintf("За %s записей нет.", d.Date)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s\n", d.Date)
	for _, m := range models.MealTypes {
		t, ok := d.Meals[m]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", mealTitle(m), kcal(t.Calories))
	}
	fmt.Fprintf(&b, "\nВсего: %s\n%s", kcal(d.Totals.Calories), formatMacros(d.Totals.Macronutrients))

	if goals != nil {
		p := nutrition.Progress(d.Totals, *goals)
		fmt.Fprintf(&b, "\n\nЦель: %s (%s%%)", kcal(goals.DailyCalories), percent(p.Calories.Percent))
		fmt.Fprintf(&b, "\nБелки %s%%, углеводы %s%%, жиры %s%%",
			percent(p.Protein.Percent), percent(p.Carbohydrates.Percent), percent(p.Fat.Percent))
	}
	return b.String()
}

func percent(v float64) string {
	return strconv.FormatFloat(nutrition.RoundCalories(v), 'f', -1, 64)
}

func formatReport(s food.PeriodSummary) string {
	if s.EntryCount == 0 {
		return fmt.Sprintf("С %s по %s записей нет.", s.StartDate, s.EndDate)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s ... %s\n", s.StartDate, s.EndDate)
	fmt.Fprintf(&b, "Дней с записями: %d, записей: %d\n", s.DaysLogged, s.EntryCount)
	fmt.Fprintf(&b, "В среднем за день: %s (%s)\n", kcal(s.DailyAverage.Calories), formatMacros(s.DailyAverage.Macronutrients))
	if s.Progress != nil {
		fmt.Fprintf(&b, "От цели: %s%%\n", percent(s.Progress.Calories.Percent))
	}
	if len(s.TopFoods) > 0 {
		b.WriteString("\nЧаще всего:\n")
		for _, f := range s.TopFoods {
			fmt.Fprintf(&b, "• %s ×%d\n", f.FoodName, f.Count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatus(st models.QueueStatus) string {
	conn := "🟢 сервер доступен"
	if !st.IsOnline {
		conn = "🔴 нет связи с сервером"
	}
	if st.Count == 0 {
		return conn + "\nВсе данные синхронизированы."
	}
	return fmt.Sprintf("%s\nОжидают отправки: %d", conn, st.Count)
}

func formatFavorites(favs []models.FavoriteFoodItem) string {
	if len(favs) == 0 {
		return "Избранных продуктов пока нет."
	}
	var b strings.Builder
	b.WriteString("⭐ Частые продукты:\n")
	for i, f := range favs {
		fmt.Fprintf(&b, "%d. %s (%s) ×%d\n", i+1, f.FoodName, kcal(f.Nutrition.Calories), f.Frequency)
	}
	return strings.TrimRight(b.String(), "\n")
}

const maxListedEntries = 10

func formatEntries(entries []models.FoodEntry) string {
	if len(entries) == 0 {
		return "Ничего не найдено."
	}
	var b strings.Builder
	for i, e := range entries {
		if i == maxListedEntries {
			fmt.Fprintf(&b, "…и ещё %d", len(entries)-maxListedEntries)
			break
		}
		names := make([]string, 0, len(e.Foods))
		for _, f := range e.Foods {
			names = append(names, f.FoodName)
		}
		marker := ""
		if !e.IsSynced() {
			marker = " ⏳"
		}
		fmt.Fprintf(&b, "%s %s: %s%s\nid: %s\n", e.Date, mealTitle(e.MealType), strings.Join(names, ", "), marker, e.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}
