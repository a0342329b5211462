package localstore

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"nutrisync/internal/models"
	"nutrisync/pkg/logger"

	"github.com/google/uuid"
)

const (
	keyPrefix    = "nutrisync_"
	keyEntries   = keyPrefix + "food_entries"
	keyQueue     = keyPrefix + "offline_queue"
	keyGoals     = keyPrefix + "nutrition_goals_"
	keyFavorites = keyPrefix + "favorite_foods_"

	defaultMaxEntries = 1000
)

var ErrNotFound = errors.New("entry not found in local store")

// Store persists the four record kinds. Every storage or decoding failure is
// logged and treated as an empty store; callers never see it.
type Store struct {
	kv         KV
	logger     *logger.Logger
	maxEntries int
	now        func() time.Time

	// mu serialises read-modify-write cycles on the same key.
	mu sync.Mutex
}

type Option func(*Store)

// WithMaxEntries overrides the entry cap.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(kv KV, l *logger.Logger, opts ...Option) *Store {
	s := &Store{
		kv:         kv,
		logger:     logger.OrNop(l).Named("localstore"),
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendEntry adds an entry, dropping the oldest ones past the cap.
func (s *Store) AppendEntry(entry models.FoodEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadEntries()
	entries = append(entries, entry)
	if over := len(entries) - s.maxEntries; over > 0 {
		entries = entries[over:]
	}
	s.saveEntries(entries)
}

// LoadEntries returns every stored entry, for all users, in append order.
func (s *Store) LoadEntries() []models.FoodEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadEntries()
}

// GetEntry looks up one entry by id.
func (s *Store) GetEntry(id string) (models.FoodEntry, bool) {
	for _, e := range s.LoadEntries() {
		if e.ID == id {
			return e, true
		}
	}
	return models.FoodEntry{}, false
}

// EntriesForUser filters by owner and inclusive YYYY-MM-DD bounds (empty
// bounds are open) and sorts newest first.
func (s *Store) EntriesForUser(userID, startDate, endDate string) []models.FoodEntry {
	var out []models.FoodEntry
	for _, e := range s.LoadEntries() {
		if e.UserID != userID {
			continue
		}
		if startDate != "" && e.Date < startDate {
			continue
		}
		if endDate != "" && e.Date > endDate {
			continue
		}
		out = append(out, e)
	}
	SortNewestFirst(out)
	return out
}

// ReplaceEntry merges patch into the stored entry and marks it local_only.
func (s *Store) ReplaceEntry(id string, patch models.FoodEntryPatch) (models.FoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadEntries()
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		patch.Apply(&entries[i])
		entries[i].UpdatedAt = s.now()
		entries[i].SyncState = models.SyncStateLocalOnly
		s.saveEntries(entries)
		return entries[i], nil
	}
	return models.FoodEntry{}, ErrNotFound
}

// PutEntry stores the entry as given, replacing one with the same id in
// place or appending it.
func (s *Store) PutEntry(entry models.FoodEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadEntries()
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			s.saveEntries(entries)
			return
		}
	}
	entries = append(entries, entry)
	if over := len(entries) - s.maxEntries; over > 0 {
		entries = entries[over:]
	}
	s.saveEntries(entries)
}

// MarkEntryState moves the entry to next if the transition is allowed.
func (s *Store) MarkEntryState(id string, next models.SyncState) (models.FoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadEntries()
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		state, err := entries[i].SyncState.Transition(next)
		if err != nil {
			return entries[i], err
		}
		entries[i].SyncState = state
		s.saveEntries(entries)
		return entries[i], nil
	}
	return models.FoodEntry{}, ErrNotFound
}

// RemoveEntry hard-deletes the entry. No tombstone is kept.
func (s *Store) RemoveEntry(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadEntries()
	for i := range entries {
		if entries[i].ID == id {
			entries = append(entries[:i], entries[i+1:]...)
			s.saveEntries(entries)
			return true
		}
	}
	return false
}

// ReconcileRange folds a reachable remote's view of the user's date range
// into the cache and returns the merged range, newest first.
//
// Remote rows replace synced local copies. Local entries that are not synced
// win over the remote row and are kept even when the remote lacks them.
// Synced local entries the remote no longer has are dropped. Ids in exclude
// (entries with a queued delete) are skipped.
func (s *Store) ReconcileRange(userID, startDate, endDate string, remote []models.FoodEntry, exclude map[string]bool) []models.FoodEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	inRange := func(e models.FoodEntry) bool {
		return e.UserID == userID &&
			(startDate == "" || e.Date >= startDate) &&
			(endDate == "" || e.Date <= endDate)
	}

	remoteIDs := make(map[string]bool, len(remote))
	for _, e := range remote {
		remoteIDs[e.ID] = true
	}

	local := s.loadEntries()
	merged := make([]models.FoodEntry, 0, len(local)+len(remote))
	position := make(map[string]int, len(local))
	for _, e := range local {
		if inRange(e) && e.IsSynced() && !remoteIDs[e.ID] {
			continue
		}
		position[e.ID] = len(merged)
		merged = append(merged, e)
	}

	for _, e := range remote {
		if exclude[e.ID] {
			continue
		}
		e.SyncState = models.SyncStateSynced
		i, ok := position[e.ID]
		switch {
		case !ok:
			position[e.ID] = len(merged)
			merged = append(merged, e)
		case merged[i].IsSynced():
			merged[i] = e
		}
	}

	if over := len(merged) - s.maxEntries; over > 0 {
		merged = merged[over:]
	}
	s.saveEntries(merged)

	var out []models.FoodEntry
	for _, e := range merged {
		if inRange(e) {
			out = append(out, e)
		}
	}
	SortNewestFirst(out)
	return out
}

// SaveGoals stores the user's active goal set.
func (s *Store) SaveGoals(goals models.NutritionGoals) {
	s.put(keyGoals+goals.UserID, goals)
}

// LoadGoals returns the cached active goals, if any.
func (s *Store) LoadGoals(userID string) (models.NutritionGoals, bool) {
	var goals models.NutritionGoals
	if !s.get(keyGoals+userID, &goals) {
		return models.NutritionGoals{}, false
	}
	return goals, true
}

// LoadFavorites returns the user's favorites, most frequent first.
func (s *Store) LoadFavorites(userID string) []models.FavoriteFoodItem {
	var favs []models.FavoriteFoodItem
	s.get(keyFavorites+userID, &favs)
	SortFavorites(favs)
	return favs
}

// SaveFavorites replaces the user's cached favorites.
func (s *Store) SaveFavorites(userID string, favs []models.FavoriteFoodItem) {
	s.put(keyFavorites+userID, favs)
}

// UpsertFavorite bumps the frequency of an existing favorite (matched
// case-insensitively) and overwrites its snapshot, or inserts a new one.
func (s *Store) UpsertFavorite(userID string, food models.NutritionData) models.FavoriteFoodItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var favs []models.FavoriteFoodItem
	s.get(keyFavorites+userID, &favs)

	key := models.FavoriteKey(food.FoodName)
	now := s.now()
	for i := range favs {
		if models.FavoriteKey(favs[i].FoodName) == key {
			favs[i].Frequency++
			favs[i].Nutrition = food
			favs[i].LastUsed = now
			s.put(keyFavorites+userID, favs)
			return favs[i]
		}
	}

	fav := models.FavoriteFoodItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		FoodName:  food.FoodName,
		Nutrition: food,
		Frequency: 1,
		LastUsed:  now,
	}
	favs = append(favs, fav)
	s.put(keyFavorites+userID, favs)
	return fav
}

// CacheFavorite stores a favorite as the remote returned it, replacing the
// cached item with the same name.
func (s *Store) CacheFavorite(fav models.FavoriteFoodItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var favs []models.FavoriteFoodItem
	s.get(keyFavorites+fav.UserID, &favs)

	key := models.FavoriteKey(fav.FoodName)
	for i := range favs {
		if models.FavoriteKey(favs[i].FoodName) == key {
			favs[i] = fav
			s.put(keyFavorites+fav.UserID, favs)
			return
		}
	}
	s.put(keyFavorites+fav.UserID, append(favs, fav))
}

// LoadQueue returns the persisted offline queue in FIFO order.
func (s *Store) LoadQueue() []models.OfflineQueueItem {
	var items []models.OfflineQueueItem
	s.get(keyQueue, &items)
	return items
}

// SaveQueue persists the offline queue.
func (s *Store) SaveQueue(items []models.OfflineQueueItem) {
	s.put(keyQueue, items)
}

// ClearUser removes the user's goals, favorites and entries. The offline
// queue is owned by the queue package.
func (s *Store) ClearUser(userID string) {
	s.del(keyGoals + userID)
	s.del(keyFavorites + userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.loadEntries()
	kept := entries[:0]
	for _, e := range entries {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	s.saveEntries(kept)
}

func (s *Store) loadEntries() []models.FoodEntry {
	var entries []models.FoodEntry
	s.get(keyEntries, &entries)
	return entries
}

func (s *Store) saveEntries(entries []models.FoodEntry) {
	s.put(keyEntries, entries)
}

func (s *Store) get(key string, dst any) bool {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Errorw("local store read failed", "key", key, "error", err)
		return false
	}
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Errorw("local store payload corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) put(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Errorw("local store encode failed", "key", key, "error", err)
		return
	}
	if err := s.kv.Set(key, raw); err != nil {
		s.logger.Errorw("local store write failed", "key", key, "error", err)
	}
}

func (s *Store) del(key string) {
	if err := s.kv.Delete(key); err != nil {
		s.logger.Errorw("local store delete failed", "key", key, "error", err)
	}
}

// SortNewestFirst orders entries by CreatedAt descending, keeping the input
// order for equal timestamps.
func SortNewestFirst(entries []models.FoodEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

// SortFavorites orders by frequency, then by most recent use, then by name.
func SortFavorites(favs []models.FavoriteFoodItem) {
	sort.SliceStable(favs, func(i, j int) bool {
		if favs[i].Frequency != favs[j].Frequency {
			return favs[i].Frequency > favs[j].Frequency
		}
		if !favs[i].LastUsed.Equal(favs[j].LastUsed) {
			return favs[i].LastUsed.After(favs[j].LastUsed)
		}
		return strings.ToLower(favs[i].FoodName) < strings.ToLower(favs[j].FoodName)
	})
}
