package nutrition

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"nutrisync/internal/models"
)

type Period string

const (
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
)

const topFoodsLimit = 10

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(s)); p {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly:
		return p, nil
	}
	return "", fmt.Errorf("unknown report period %q", s)
}

// Bounds returns the inclusive first and last day of the period containing
// anchor. Weeks start on Monday; months and quarters follow the calendar.
func (p Period) Bounds(anchor time.Time) (time.Time, time.Time) {
	day := truncateDay(anchor)
	switch p {
	case PeriodMonthly:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	case PeriodQuarterly:
		firstMonth := time.Month((int(day.Month())-1)/3*3 + 1)
		start := time.Date(day.Year(), firstMonth, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 3, -1)
	default:
		start := WeekStart(day)
		return start, start.AddDate(0, 0, 6)
	}
}

// FoodFrequency is one row of the most-logged foods ranking.
type FoodFrequency struct {
	FoodName string  `json:"food_name"`
	Count    int     `json:"count"`
	Calories float64 `json:"calories"`
}

// DaySummary is one point of the per-day trend series.
type DaySummary struct {
	Date       string `json:"date"`
	Totals     Totals `json:"totals"`
	EntryCount int    `json:"entry_count"`
}

// WeekSummary aggregates one ISO week inside a longer period.
type WeekSummary struct {
	WeekStart  string `json:"week_start"`
	Totals     Totals `json:"totals"`
	DaysLogged int    `json:"days_logged"`
	EntryCount int    `json:"entry_count"`
}

type PeriodReport struct {
	Period       Period          `json:"period"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	Totals       Totals          `json:"totals"`
	DailyAverage Totals          `json:"daily_average"`
	DaysLogged   int             `json:"days_logged"`
	EntryCount   int             `json:"entry_count"`
	TopFoods     []FoodFrequency `json:"top_foods"`
	Days         []DaySummary    `json:"days"`
	Weeks        []WeekSummary   `json:"weeks,omitempty"`
}

// Report builds the period summary for the period containing anchor. Entries
// outside the period are ignored. The daily average is over days that have
// at least one entry.
func Report(p Period, anchor time.Time, entries []models.FoodEntry) PeriodReport {
	start, end := p.Bounds(anchor)
	startKey, endKey := start.Format(models.DateLayout), end.Format(models.DateLayout)

	inRange := make([]models.FoodEntry, 0, len(entries))
	for _, e := range entries {
		if e.Date >= startKey && e.Date <= endKey {
			inRange = append(inRange, e)
		}
	}

	byDay := groupByDate(inRange)

	report := PeriodReport{
		Period:     p,
		StartDate:  startKey,
		EndDate:    endKey,
		Totals:     Sum(inRange),
		DaysLogged: len(byDay),
		EntryCount: len(inRange),
		TopFoods:   TopFoods(inRange, topFoodsLimit),
		Days:       []DaySummary{},
	}
	report.DailyAverage = divide(report.Totals, report.DaysLogged)

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DateLayout)
		dayEntries := byDay[key]
		report.Days = append(report.Days, DaySummary{
			Date:       key,
			Totals:     Sum(dayEntries),
			EntryCount: len(dayEntries),
		})
	}

	if p != PeriodWeekly {
		report.Weeks = weekly(report.Days)
	}
	return report
}

// TopFoods ranks foods by how often they were logged, case-insensitively.
// Ties keep the order in which foods were first encountered.
func TopFoods(entries []models.FoodEntry, limit int) []FoodFrequency {
	index := make(map[string]int)
	var ranked []FoodFrequency

	for _, e := range entries {
		for _, f := range e.Foods {
			key := models.FavoriteKey(f.FoodName)
			if key == "" {
				continue
			}
			i, ok := index[key]
			if !ok {
				i = len(ranked)
				index[key] = i
				ranked = append(ranked, FoodFrequency{FoodName: f.FoodName})
			}
			ranked[i].Count++
			ranked[i].Calories += f.Calories
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []FoodFrequency{}
	}
	return ranked
}

// WeekStart returns the Monday of t's ISO week.
func WeekStart(t time.Time) time.Time {
	day := truncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func weekly(days []DaySummary) []WeekSummary {
	var weeks []WeekSummary
	index := make(map[string]int)

	for _, d := range days {
		date, err := time.Parse(models.DateLayout, d.Date)
		if err != nil {
			continue
		}
		key := WeekStart(date).Format(models.DateLayout)
		i, ok := index[key]
		if !ok {
			i = len(weeks)
			index[key] = i
			weeks = append(weeks, WeekSummary{WeekStart: key, Totals: NewTotals()})
		}
		weeks[i].Totals.Add(d.Totals)
		weeks[i].EntryCount += d.EntryCount
		if d.EntryCount > 0 {
			weeks[i].DaysLogged++
		}
	}
	return weeks
}

func groupByDate(entries []models.FoodEntry) map[string][]models.FoodEntry {
	out := make(map[string][]models.FoodEntry)
	for _, e := range entries {
		out[e.Date] = append(out[e.Date], e)
	}
	return out
}

func divide(t Totals, n int) Totals {
	out := NewTotals()
	if n == 0 {
		return out
	}
	d := float64(n)
	out.Calories = t.Calories / d
	out.Macronutrients = models.Macronutrients{
		Protein:       t.Macronutrients.Protein / d,
		Carbohydrates: t.Macronutrients.Carbohydrates / d,
		Fat:           t.Macronutrients.Fat / d,
		Fiber:         t.Macronutrients.Fiber / d,
		Sugar:         t.Macronutrients.Sugar / d,
	}
	for k, v := range t.Micronutrients {
		out.Micronutrients[k] = v / d
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
