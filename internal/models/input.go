package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncompleteNutrition is returned when a food arrives without its name,
// calories or one of the macronutrients.
var ErrIncompleteNutrition = errors.New("incomplete nutrition data")

// NutritionInput is NutritionData as received from a client or a model
// answer. Pointer fields tell a missing value from a zero one.
type NutritionInput struct {
	FoodName       string               `json:"food_name"`
	Calories       *float64             `json:"calories"`
	Macronutrients *MacronutrientsInput `json:"macronutrients"`
	Micronutrients map[string]float64   `json:"micronutrients,omitempty"`
}

type MacronutrientsInput struct {
	Protein       *float64 `json:"protein"`
	Carbohydrates *float64 `json:"carbohydrates"`
	Fat           *float64 `json:"fat"`
	Fiber         *float64 `json:"fiber"`
	Sugar         *float64 `json:"sugar"`
}

// ToNutrition requires calories and every macronutrient. Unknown
// micronutrients are dropped.
func (in NutritionInput) ToNutrition() (NutritionData, error) {
	name := strings.TrimSpace(in.FoodName)
	if name == "" {
		return NutritionData{}, fmt.Errorf("%w: missing food_name", ErrIncompleteNutrition)
	}
	if in.Calories == nil {
		return NutritionData{}, fmt.Errorf("%w: %s: missing calories", ErrIncompleteNutrition, name)
	}
	m := in.Macronutrients
	if m == nil || m.Protein == nil || m.Carbohydrates == nil || m.Fat == nil || m.Fiber == nil || m.Sugar == nil {
		return NutritionData{}, fmt.Errorf("%w: %s: missing macronutrients", ErrIncompleteNutrition, name)
	}

	food := NutritionData{
		FoodName: name,
		Calories: *in.Calories,
		Macronutrients: Macronutrients{
			Protein:       *m.Protein,
			Carbohydrates: *m.Carbohydrates,
			Fat:           *m.Fat,
			Fiber:         *m.Fiber,
			Sugar:         *m.Sugar,
		},
	}
	for raw, v := range in.Micronutrients {
		n := Micronutrient(strings.ToLower(raw))
		if _, known := MicronutrientUnits[n]; !known {
			continue
		}
		if food.Micronutrients == nil {
			food.Micronutrients = Micronutrients{}
		}
		food.Micronutrients[n] = v
	}
	return food, nil
}

// ToNutritionList converts every input, stopping at the first incomplete one.
func ToNutritionList(in []NutritionInput) ([]NutritionData, error) {
	out := make([]NutritionData, 0, len(in))
	for i, f := range in {
		food, err := f.ToNutrition()
		if err != nil {
			return nil, fmt.Errorf("food %d: %w", i, err)
		}
		out = append(out, food)
	}
	return out, nil
}
