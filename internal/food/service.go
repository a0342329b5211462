// Package food is the single entry point for food logging. It keeps the
// remote store and the local cache converging: remote first, local fallback,
// and an offline queue for mutations the remote did not accept.
package food

import (
	"context"
	"errors"
	"sync"
	"time"

	"nutrisync/internal/activity"
	"nutrisync/internal/connectivity"
	"nutrisync/internal/localstore"
	"nutrisync/internal/models"
	"nutrisync/internal/queue"
	"nutrisync/internal/realtime"
	"nutrisync/pkg/logger"
)

var (
	ErrEntryNotFound = errors.New("food entry not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// RemoteStore is the hosted backend. Not-found conditions are reported so
// that db.IsNotFound recognises them.
type RemoteStore interface {
	CreateFoodEntry(ctx context.Context, entry models.FoodEntry) (models.FoodEntry, error)
	GetFoodEntry(ctx context.Context, userID, entryID string) (models.FoodEntry, error)
	GetFoodEntries(ctx context.Context, userID, startDate, endDate string) ([]models.FoodEntry, error)
	UpdateFoodEntry(ctx context.Context, entry models.FoodEntry) (models.FoodEntry, error)
	DeleteFoodEntry(ctx context.Context, userID, entryID string) error

	SetNutritionGoals(ctx context.Context, goals models.NutritionGoals) (models.NutritionGoals, error)
	GetNutritionGoals(ctx context.Context, userID string) (models.NutritionGoals, error)
	UpsertFavorite(ctx context.Context, userID string, food models.NutritionData) (models.FavoriteFoodItem, error)
	GetFavoriteFoods(ctx context.Context, userID string, limit int) ([]models.FavoriteFoodItem, error)
}

// Notifier receives change events for connected clients.
type Notifier interface {
	Publish(userID, eventType string, payload any)
	Broadcast(eventType string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, string, any) {}
func (nopNotifier) Broadcast(string, any)       {}

// Deps are the collaborators of a Service. Remote, Local, Queue and Monitor
// are required.
type Deps struct {
	Remote   RemoteStore
	Local    *localstore.Store
	Queue    *queue.Queue
	Monitor  *connectivity.Monitor
	Tracker  activity.Tracker
	Notifier Notifier
	Logger   *logger.Logger
}

type Service struct {
	remote   RemoteStore
	local    *localstore.Store
	queue    *queue.Queue
	monitor  *connectivity.Monitor
	tracker  activity.Tracker
	notifier Notifier
	logger   *logger.Logger
	now      func() time.Time

	startOnce sync.Once
}

func New(deps Deps) *Service {
	s := &Service{
		remote:   deps.Remote,
		local:    deps.Local,
		queue:    deps.Queue,
		monitor:  deps.Monitor,
		tracker:  deps.Tracker,
		notifier: deps.Notifier,
		logger:   logger.OrNop(deps.Logger).Named("food"),
		now:      time.Now,
	}
	if s.tracker == nil {
		s.tracker = activity.Nop{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	return s
}

// Start hooks the service to the connectivity monitor and replays the queue
// once if already online. Calls after the first are no-ops. ctx bounds
// every replay triggered by a reconnect.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.monitor.OnReconnect(func() {
			s.logger.Infow("connectivity restored, replaying offline queue")
			s.replayQueue(ctx)
		})
		s.monitor.OnChange(func(online bool) {
			s.notifier.Broadcast(realtime.EventConnectivity, map[string]bool{"online": online})
		})

		if s.monitor.IsOnline() {
			s.replayQueue(ctx)
		}
	})
}

func (s *Service) IsOnline() bool {
	return s.monitor.IsOnline()
}
