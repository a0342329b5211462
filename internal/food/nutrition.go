package food

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nutrisync/internal/db"
	"nutrisync/internal/models"
	"nutrisync/internal/nutrition"

	"github.com/google/uuid"
)

const defaultFavoritesLimit = 20

// GetDailyNutrition aggregates the user's entries for date. It never fails:
// any error, including a panic while aggregating, yields an all-zero day.
func (s *Service) GetDailyNutrition(ctx context.Context, userID, date string) (daily nutrition.DailyNutrition) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("daily nutrition panicked",
				"op", "get_daily_nutrition", "user_id", userID, "date", date, "panic", r)
			daily = nutrition.EmptyDaily(userID, date)
		}
	}()

	entries, err := s.GetFoodEntries(ctx, userID, date, date)
	if err != nil {
		s.logger.Errorw("daily nutrition unavailable",
			"op", "get_daily_nutrition", "user_id", userID, "date", date, "error", err)
		return nutrition.EmptyDaily(userID, date)
	}
	return nutrition.Daily(userID, date, entries)
}

// PeriodSummary is a period report plus the average day measured against the
// user's goals, when goals are set.
type PeriodSummary struct {
	nutrition.PeriodReport
	Goals    *models.NutritionGoals  `json:"goals,omitempty"`
	Progress *nutrition.GoalProgress `json:"progress,omitempty"`
}

// GetPeriodReport summarises the weekly, monthly or quarterly period that
// contains anchor. Remote read failures fall back to local entries, so only
// invalid input is reported.
func (s *Service) GetPeriodReport(ctx context.Context, userID string, period nutrition.Period, anchor time.Time) (PeriodSummary, error) {
	start, end := period.Bounds(anchor)

	entries, err := s.GetFoodEntries(ctx, userID, start.Format(models.DateLayout), end.Format(models.DateLayout))
	if err != nil {
		return PeriodSummary{}, err
	}

	summary := PeriodSummary{PeriodReport: nutrition.Report(period, anchor, entries)}
	if goals, ok := s.GetNutritionGoals(ctx, userID); ok {
		progress := nutrition.Progress(summary.DailyAverage, goals)
		summary.Goals = &goals
		summary.Progress = &progress
	}
	return summary, nil
}

// SetNutritionGoals replaces the user's active goals. When the remote is
// unreachable the goals are kept locally only.
func (s *Service) SetNutritionGoals(ctx context.Context, userID string, goals models.NutritionGoals) (models.NutritionGoals, error) {
	if userID == "" {
		return models.NutritionGoals{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := validateGoals(goals); err != nil {
		return models.NutritionGoals{}, err
	}
	goals.UserID = userID
	goals.IsActive = true

	saved, err := s.remote.SetNutritionGoals(ctx, goals)
	if err == nil {
		s.local.SaveGoals(saved)
		return saved, nil
	}

	s.logger.Warnw("remote goals write failed, keeping goals locally",
		"op", "set_nutrition_goals", "user_id", userID, "error", err)

	now := s.now()
	goals.ID = uuid.NewString()
	goals.CreatedAt = now
	goals.UpdatedAt = now
	s.local.SaveGoals(goals)
	return goals, nil
}

// GetNutritionGoals returns the user's active goals, preferring the remote.
func (s *Service) GetNutritionGoals(ctx context.Context, userID string) (models.NutritionGoals, bool) {
	goals, err := s.remote.GetNutritionGoals(ctx, userID)
	if err == nil {
		s.local.SaveGoals(goals)
		return goals, true
	}
	if !db.IsNotFound(err) {
		s.logger.Warnw("remote goals read failed, using local goals",
			"op", "get_nutrition_goals", "user_id", userID, "error", err)
	}
	return s.local.LoadGoals(userID)
}

// AddToFavorites counts one more use of food. Names match case-insensitively.
func (s *Service) AddToFavorites(ctx context.Context, userID string, food models.NutritionData) (models.FavoriteFoodItem, error) {
	if userID == "" {
		return models.FavoriteFoodItem{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := validateFood(food); err != nil {
		return models.FavoriteFoodItem{}, err
	}

	fav, err := s.remote.UpsertFavorite(ctx, userID, food)
	if err == nil {
		s.local.CacheFavorite(fav)
		return fav, nil
	}

	s.logger.Warnw("remote favorite upsert failed, counting locally",
		"op", "add_to_favorites", "user_id", userID, "food", food.FoodName, "error", err)
	return s.local.UpsertFavorite(userID, food), nil
}

// GetFavoriteFoods returns up to limit favorites, most frequent first. A
// non-positive limit uses the default.
func (s *Service) GetFavoriteFoods(ctx context.Context, userID string, limit int) []models.FavoriteFoodItem {
	if limit <= 0 {
		limit = defaultFavoritesLimit
	}

	favs, err := s.remote.GetFavoriteFoods(ctx, userID, limit)
	if err == nil {
		for _, f := range favs {
			s.local.CacheFavorite(f)
		}
		if favs == nil {
			favs = []models.FavoriteFoodItem{}
		}
		return favs
	}

	s.logger.Warnw("remote favorites read failed, using local favorites",
		"op", "get_favorite_foods", "user_id", userID, "error", err)
	local := s.local.LoadFavorites(userID)
	if len(local) > limit {
		local = local[:limit]
	}
	if local == nil {
		local = []models.FavoriteFoodItem{}
	}
	return local
}

// recordFavorites counts every food of a new entry. Failures are logged.
func (s *Service) recordFavorites(ctx context.Context, userID string, foods []models.NutritionData) {
	for _, f := range foods {
		if strings.TrimSpace(f.FoodName) == "" {
			continue
		}
		if _, err := s.AddToFavorites(ctx, userID, f); err != nil {
			s.logger.Warnw("favorite update failed", "user_id", userID, "food", f.FoodName, "error", err)
		}
	}
}

func validateGoals(g models.NutritionGoals) error {
	if g.DailyCalories <= 0 || !models.ValidAmount(g.DailyCalories) {
		return fmt.Errorf("%w: daily calories must be a positive number", ErrInvalidInput)
	}
	if !g.Macronutrients.Valid() {
		return fmt.Errorf("%w: macro goals must be finite and not negative", ErrInvalidInput)
	}
	for n, v := range g.Micronutrients {
		if _, known := models.MicronutrientUnits[n]; !known {
			return fmt.Errorf("%w: unknown micronutrient %q", ErrInvalidInput, n)
		}
		if !models.ValidAmount(v) {
			return fmt.Errorf("%w: %s goal must be finite and not negative", ErrInvalidInput, n)
		}
	}
	return nil
}
