package models

import (
	"strings"
	"time"
)

// NutritionGoals is a user's target set. Only one is active at a time; older
// ones are deactivated, not deleted.
type NutritionGoals struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	DailyCalories  float64        `json:"daily_calories"`
	Macronutrients Macronutrients `json:"macronutrients"`
	Micronutrients Micronutrients `json:"micronutrients,omitempty"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// FavoriteFoodItem is a frequency-ranked cache entry of a logged food.
type FavoriteFoodItem struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	FoodName  string        `json:"food_name"`
	Nutrition NutritionData `json:"nutrition"`
	Frequency int           `json:"frequency"`
	LastUsed  time.Time     `json:"last_used"`
}

// FavoriteKey is the case-insensitive identity of a favorite within a user.
func FavoriteKey(foodName string) string {
	return strings.ToLower(strings.TrimSpace(foodName))
}
