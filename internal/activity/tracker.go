// Package activity records that a user logged food.
package activity

import (
	"context"
	"errors"

	"nutrisync/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// Tracker is notified after each food entry is created.
type Tracker interface {
	TrackFoodActivity(ctx context.Context, userID string, foodCount int) error
}

var (
	activityCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nutrisync_food_activity_total",
			Help: "Food entries logged",
		},
	)

	foodsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nutrisync_foods_logged_total",
			Help: "Individual foods logged across all entries",
		},
	)
)

// Collectors returns the tracker's metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{activityCounter, foodsCounter}
}

type PrometheusTracker struct {
	logger *logger.Logger
}

func NewPrometheusTracker(l *logger.Logger) *PrometheusTracker {
	return &PrometheusTracker{logger: logger.OrNop(l).Named("activity")}
}

func (t *PrometheusTracker) TrackFoodActivity(ctx context.Context, userID string, foodCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" {
		return errors.New("activity: empty user id")
	}
	activityCounter.Inc()
	foodsCounter.Add(float64(foodCount))
	t.logger.Infow("food activity", "user_id", userID, "foods", foodCount)
	return nil
}

// Nop discards activity.
type Nop struct{}

func (Nop) TrackFoodActivity(context.Context, string, int) error { return nil }
