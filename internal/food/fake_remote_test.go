package food

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"nutrisync/internal/db"
	"nutrisync/internal/models"

	"github.com/google/uuid"
)

var errUnavailable = errors.New("connection refused")

// fakeRemote is an in-memory RemoteStore. Setting unavailable makes every
// call fail like an unreachable backend.
type fakeRemote struct {
	mu          sync.Mutex
	unavailable bool
	panicOnRead bool

	entries   map[string]models.FoodEntry
	goals     map[string]models.NutritionGoals
	favorites map[string][]models.FavoriteFoodItem

	createCalls   int
	favoriteCalls int

	createStarted chan struct{}
	createGate    chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		entries:   make(map[string]models.FoodEntry),
		goals:     make(map[string]models.NutritionGoals),
		favorites: make(map[string][]models.FavoriteFoodItem),
	}
}

func (f *fakeRemote) setUnavailable(v bool) {
	f.mu.Lock()
	f.unavailable = v
	f.mu.Unlock()
}

// holdCreates makes the next CreateFoodEntry wait until release is called.
// started is closed once that call is waiting.
func (f *fakeRemote) holdCreates() (started <-chan struct{}, release func()) {
	s, gate := make(chan struct{}), make(chan struct{})
	f.mu.Lock()
	f.createStarted, f.createGate = s, gate
	f.mu.Unlock()
	return s, func() { close(gate) }
}

func (f *fakeRemote) check(op string) error {
	if f.unavailable {
		return &db.RemoteError{Op: op, Err: errUnavailable}
	}
	return nil
}

func (f *fakeRemote) entry(id string) (models.FoodEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	return e, ok
}

func (f *fakeRemote) CreateFoodEntry(_ context.Context, entry models.FoodEntry) (models.FoodEntry, error) {
	f.mu.Lock()
	started, gate := f.createStarted, f.createGate
	f.createStarted, f.createGate = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(started)
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if err := f.check("create_food_entry"); err != nil {
		return models.FoodEntry{}, err
	}
	if existing, ok := f.entries[entry.ID]; ok {
		return existing, nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry.SyncState = models.SyncStateSynced
	f.entries[entry.ID] = entry.Clone()
	return entry, nil
}

func (f *fakeRemote) GetFoodEntry(_ context.Context, userID, entryID string) (models.FoodEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("get_food_entry"); err != nil {
		return models.FoodEntry{}, err
	}
	e, ok := f.entries[entryID]
	if !ok || e.UserID != userID {
		return models.FoodEntry{}, &db.RemoteError{Op: "get_food_entry", Err: db.ErrNotFound}
	}
	return e.Clone(), nil
}

func (f *fakeRemote) GetFoodEntries(_ context.Context, userID, startDate, endDate string) ([]models.FoodEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnRead {
		panic("corrupted row")
	}
	if err := f.check("get_food_entries"); err != nil {
		return nil, err
	}
	out := []models.FoodEntry{}
	for _, e := range f.entries {
		if e.UserID != userID {
			continue
		}
		if (startDate != "" && e.Date < startDate) || (endDate != "" && e.Date > endDate) {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRemote) UpdateFoodEntry(_ context.Context, entry models.FoodEntry) (models.FoodEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("update_food_entry"); err != nil {
		return models.FoodEntry{}, err
	}
	existing, ok := f.entries[entry.ID]
	if !ok || existing.UserID != entry.UserID {
		return models.FoodEntry{}, &db.RemoteError{Op: "update_food_entry", Err: db.ErrNotFound}
	}
	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = time.Now()
	entry.SyncState = models.SyncStateSynced
	f.entries[entry.ID] = entry.Clone()
	return entry, nil
}

func (f *fakeRemote) DeleteFoodEntry(_ context.Context, userID, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("delete_food_entry"); err != nil {
		return err
	}
	e, ok := f.entries[entryID]
	if !ok || e.UserID != userID {
		return &db.RemoteError{Op: "delete_food_entry", Err: db.ErrNotFound}
	}
	delete(f.entries, entryID)
	return nil
}

func (f *fakeRemote) SetNutritionGoals(_ context.Context, goals models.NutritionGoals) (models.NutritionGoals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("set_nutrition_goals"); err != nil {
		return models.NutritionGoals{}, err
	}
	goals.ID = uuid.NewString()
	goals.IsActive = true
	goals.CreatedAt = time.Now()
	goals.UpdatedAt = goals.CreatedAt
	f.goals[goals.UserID] = goals
	return goals, nil
}

func (f *fakeRemote) GetNutritionGoals(_ context.Context, userID string) (models.NutritionGoals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("get_nutrition_goals"); err != nil {
		return models.NutritionGoals{}, err
	}
	g, ok := f.goals[userID]
	if !ok {
		return models.NutritionGoals{}, &db.RemoteError{Op: "get_nutrition_goals", Err: db.ErrNotFound}
	}
	return g, nil
}

func (f *fakeRemote) UpsertFavorite(_ context.Context, userID string, food models.NutritionData) (models.FavoriteFoodItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favoriteCalls++
	if err := f.check("upsert_favorite"); err != nil {
		return models.FavoriteFoodItem{}, err
	}
	favs := f.favorites[userID]
	for i := range favs {
		if strings.EqualFold(favs[i].FoodName, food.FoodName) {
			favs[i].Frequency++
			favs[i].Nutrition = food
			favs[i].LastUsed = time.Now()
			return favs[i], nil
		}
	}
	fav := models.FavoriteFoodItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		FoodName:  food.FoodName,
		Nutrition: food,
		Frequency: 1,
		LastUsed:  time.Now(),
	}
	f.favorites[userID] = append(favs, fav)
	return fav, nil
}

func (f *fakeRemote) GetFavoriteFoods(_ context.Context, userID string, limit int) ([]models.FavoriteFoodItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("get_favorite_foods"); err != nil {
		return nil, err
	}
	favs := append([]models.FavoriteFoodItem(nil), f.favorites[userID]...)
	sort.SliceStable(favs, func(i, j int) bool { return favs[i].Frequency > favs[j].Frequency })
	if len(favs) > limit {
		favs = favs[:limit]
	}
	return favs, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(userID, eventType string, _ any) {
	n.mu.Lock()
	n.events = append(n.events, userID+":"+eventType)
	n.mu.Unlock()
}

func (n *recordingNotifier) Broadcast(eventType string, _ any) {
	n.mu.Lock()
	n.events = append(n.events, "*:"+eventType)
	n.mu.Unlock()
}

func (n *recordingNotifier) has(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

type countingTracker struct {
	calls int
	foods int
	err   error
}

func (t *countingTracker) TrackFoodActivity(_ context.Context, _ string, count int) error {
	t.calls++
	t.foods += count
	return t.err
}
