// internal/models/food.go
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for FoodEntry.Date.
const DateLayout = "2006-01-02"

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// MealTypes lists the meal slots in display order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnack}

func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// ParseMealType accepts any casing and surrounding whitespace.
func ParseMealType(s string) (MealType, error) {
	m := MealType(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown meal type %q", s)
	}
	return m, nil
}

// Macronutrients are all in grams.
type Macronutrients struct {
	Protein       float64 `json:"protein"`
	Carbohydrates float64 `json:"carbohydrates"`
	Fat           float64 `json:"fat"`
	Fiber         float64 `json:"fiber"`
	Sugar         float64 `json:"sugar"`
}

// ValidAmount reports whether v is a usable quantity: finite and not
// negative.
func ValidAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

// Valid reports whether every macronutrient is a ValidAmount.
func (m Macronutrients) Valid() bool {
	return ValidAmount(m.Protein) && ValidAmount(m.Carbohydrates) && ValidAmount(m.Fat) &&
		ValidAmount(m.Fiber) && ValidAmount(m.Sugar)
}

func (m Macronutrients) Add(o Macronutrients) Macronutrients {
	return Macronutrients{
		Protein:       m.Protein + o.Protein,
		Carbohydrates: m.Carbohydrates + o.Carbohydrates,
		Fat:           m.Fat + o.Fat,
		Fiber:         m.Fiber + o.Fiber,
		Sugar:         m.Sugar + o.Sugar,
	}
}

// NutritionData is the per-food breakdown embedded in a FoodEntry.
type NutritionData struct {
	FoodName       string         `json:"food_name"`
	Calories       float64        `json:"calories"`
	Macronutrients Macronutrients `json:"macronutrients"`
	Micronutrients Micronutrients `json:"micronutrients,omitempty"`
}

// FoodEntry is one logged meal occasion.
type FoodEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Date      string          `json:"date"`
	MealType  MealType        `json:"meal_type"`
	Foods     []NutritionData `json:"foods"`
	Notes     string          `json:"notes,omitempty"`
	ImageURL  string          `json:"image_url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	SyncState SyncState       `json:"sync_state"`
}

// IsSynced reports whether the entry is confirmed to match the remote store.
func (e FoodEntry) IsSynced() bool {
	return e.SyncState == SyncStateSynced
}

// MarshalJSON adds the derived "synced" flag for clients that only know the
// boolean form.
func (e FoodEntry) MarshalJSON() ([]byte, error) {
	type alias FoodEntry
	return json.Marshal(struct {
		alias
		Synced bool `json:"synced"`
	}{alias(e), e.IsSynced()})
}

// Clone returns a deep copy so callers can mutate Foods freely.
func (e FoodEntry) Clone() FoodEntry {
	out := e
	if e.Foods != nil {
		out.Foods = make([]NutritionData, len(e.Foods))
		for i, f := range e.Foods {
			out.Foods[i] = f
			out.Foods[i].Micronutrients = f.Micronutrients.Clone()
		}
	}
	return out
}

// FoodEntryPatch lists the mutable fields of an entry. Nil fields are left
// untouched.
type FoodEntryPatch struct {
	Date     *string         `json:"date,omitempty"`
	MealType *MealType       `json:"meal_type,omitempty"`
	Foods    []NutritionData `json:"foods,omitempty"`
	Notes    *string         `json:"notes,omitempty"`
	ImageURL *string         `json:"image_url,omitempty"`
}

// Apply merges the patch into e. It does not touch timestamps or sync state.
func (p FoodEntryPatch) Apply(e *FoodEntry) {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.MealType != nil {
		e.MealType = *p.MealType
	}
	if p.Foods != nil {
		e.Foods = p.Foods
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.ImageURL != nil {
		e.ImageURL = *p.ImageURL
	}
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
