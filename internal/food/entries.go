package food

import (
	"context"
	"fmt"
	"strings"

	"nutrisync/internal/db"
	"nutrisync/internal/models"
	"nutrisync/internal/realtime"

	"github.com/google/uuid"
)

// CreateFoodEntryRequest carries the entry fields chosen by the user. The
// foods are passed separately, usually straight from analysis.
type CreateFoodEntryRequest struct {
	Date     string          `json:"date"`
	MealType models.MealType `json:"meal_type"`
	Notes    string          `json:"notes,omitempty"`
	ImageURL string          `json:"image_url,omitempty"`
}

// CreateFoodEntry stores a new entry. The remote is tried first; when it
// fails the entry is kept locally and queued, so the call only fails on
// invalid input.
func (s *Service) CreateFoodEntry(ctx context.Context, userID string, req CreateFoodEntryRequest, foods []models.NutritionData) (models.FoodEntry, error) {
	if err := validateCreate(userID, req, foods); err != nil {
		return models.FoodEntry{}, err
	}

	entry := models.FoodEntry{
		UserID:   userID,
		Date:     req.Date,
		MealType: req.MealType,
		Foods:    cloneFoods(foods),
		Notes:    req.Notes,
		ImageURL: req.ImageURL,
	}

	created, err := s.remote.CreateFoodEntry(ctx, entry)
	if err == nil {
		created.SyncState = models.SyncStateSynced
		s.local.PutEntry(created)
		s.recordFavorites(ctx, userID, created.Foods)
		s.trackActivity(ctx, userID, len(created.Foods))
		s.notifier.Publish(userID, realtime.EventEntryCreated, created)
		s.logger.Infow("food entry created", "op", "create_food_entry", "user_id", userID, "entry_id", created.ID)
		return created, nil
	}

	s.logger.Warnw("remote create failed, storing locally",
		"op", "create_food_entry", "user_id", userID, "error", err)

	now := s.now()
	entry.ID = uuid.NewString()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	entry.SyncState = models.SyncStateLocalOnly
	s.local.AppendEntry(entry)

	online := s.monitor.IsOnline()
	if online {
		s.recordFavorites(ctx, userID, entry.Foods)
	}
	queued := entry.Clone()
	s.queue.Enqueue(models.OfflineQueueItem{
		Kind:              models.OpCreateFoodEntry,
		UserID:            userID,
		EntryID:           entry.ID,
		Entry:             &queued,
		FavoritesRecorded: online,
	})
	entry = s.markState(entry, models.SyncStatePendingRemote)

	s.trackActivity(ctx, userID, len(entry.Foods))
	s.notifier.Publish(userID, realtime.EventEntryCreated, entry)
	return entry, nil
}

// GetFoodEntries returns the user's entries within the inclusive date range,
// newest first. Empty bounds are open. A reachable remote is authoritative
// for synced data; local work not yet synced is always included. An
// unreachable remote falls back to the local cache.
func (s *Service) GetFoodEntries(ctx context.Context, userID, startDate, endDate string) ([]models.FoodEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	for _, d := range []string{startDate, endDate} {
		if d != "" && !models.ValidDate(d) {
			return nil, fmt.Errorf("%w: date %q", ErrInvalidInput, d)
		}
	}

	remote, err := s.remote.GetFoodEntries(ctx, userID, startDate, endDate)
	if err != nil {
		s.logger.Warnw("remote read failed, using local entries",
			"op", "get_food_entries", "user_id", userID, "error", err)
		return nonNil(s.local.EntriesForUser(userID, startDate, endDate)), nil
	}

	return nonNil(s.local.ReconcileRange(userID, startDate, endDate, remote, s.pendingDeletes())), nil
}

// UpdateFoodEntry applies patch to an entry the user owns. When the remote
// cannot take the change, it is applied locally and queued.
func (s *Service) UpdateFoodEntry(ctx context.Context, userID, entryID string, patch models.FoodEntryPatch) (models.FoodEntry, error) {
	if userID == "" || entryID == "" {
		return models.FoodEntry{}, fmt.Errorf("%w: user id and entry id are required", ErrInvalidInput)
	}
	var updated models.FoodEntry
	err := s.queue.Exclusive(func() error {
		var err error
		updated, err = s.updateFoodEntry(ctx, userID, entryID, patch)
		return err
	})
	return updated, err
}

func (s *Service) updateFoodEntry(ctx context.Context, userID, entryID string, patch models.FoodEntryPatch) (models.FoodEntry, error) {
	base, hasLocal, foreign := s.ownedLocal(userID, entryID)
	if foreign {
		return models.FoodEntry{}, ErrEntryNotFound
	}
	if !hasLocal {
		remote, err := s.remote.GetFoodEntry(ctx, userID, entryID)
		switch {
		case db.IsNotFound(err):
			return models.FoodEntry{}, ErrEntryNotFound
		case err != nil:
			return models.FoodEntry{}, fmt.Errorf("failed to load entry %s: %w", entryID, err)
		}
		base = remote
	}

	patched := base.Clone()
	patch.Apply(&patched)
	if err := validateEntry(patched); err != nil {
		return models.FoodEntry{}, err
	}

	updated, err := s.remote.UpdateFoodEntry(ctx, patched)
	if err == nil {
		updated.SyncState = models.SyncStateSynced
		if s.queue.HasPendingFor(entryID, "") {
			// Earlier offline work for this entry still has to replay.
			updated.SyncState = models.SyncStatePendingRemote
		}
		s.local.PutEntry(updated)
		s.notifier.Publish(userID, realtime.EventEntryUpdated, updated)
		return updated, nil
	}
	if db.IsNotFound(err) && !hasLocal {
		return models.FoodEntry{}, ErrEntryNotFound
	}

	s.logger.Warnw("remote update failed, updating locally",
		"op", "update_food_entry", "user_id", userID, "entry_id", entryID, "error", err)

	if !hasLocal {
		s.local.PutEntry(base)
	}
	local, err := s.local.ReplaceEntry(entryID, patch)
	if err != nil {
		return models.FoodEntry{}, ErrEntryNotFound
	}
	queued := local.Clone()
	s.queue.Enqueue(models.OfflineQueueItem{
		Kind:    models.OpUpdateFoodEntry,
		UserID:  userID,
		EntryID: entryID,
		Entry:   &queued,
	})
	local = s.markState(local, models.SyncStatePendingRemote)
	s.notifier.Publish(userID, realtime.EventEntryUpdated, local)
	return local, nil
}

// DeleteFoodEntry removes the entry everywhere. Queued work for the entry is
// cancelled. A remote that cannot be reached gets a queued delete unless it
// never saw the entry.
//
// Both this and UpdateFoodEntry wait for an in-flight replay, so a replayed
// create cannot land on the remote after the entry was deleted.
func (s *Service) DeleteFoodEntry(ctx context.Context, userID, entryID string) error {
	if userID == "" || entryID == "" {
		return fmt.Errorf("%w: user id and entry id are required", ErrInvalidInput)
	}
	return s.queue.Exclusive(func() error {
		return s.deleteFoodEntry(ctx, userID, entryID)
	})
}

func (s *Service) deleteFoodEntry(ctx context.Context, userID, entryID string) error {
	local, hasLocal, foreign := s.ownedLocal(userID, entryID)
	if foreign {
		return ErrEntryNotFound
	}

	err := s.remote.DeleteFoodEntry(ctx, userID, entryID)
	remoteFound := err == nil
	remoteFailed := err != nil && !db.IsNotFound(err)

	if !hasLocal && !remoteFound && !remoteFailed {
		return ErrEntryNotFound
	}

	cancelled := s.queue.RemoveForEntry(userID, entryID)
	if hasLocal {
		s.local.RemoveEntry(entryID)
	}

	if remoteFailed {
		s.logger.Warnw("remote delete failed",
			"op", "delete_food_entry", "user_id", userID, "entry_id", entryID, "error", err)
		if neverReachedRemote(local, hasLocal, cancelled) {
			s.logger.Infow("dropped unsynced entry with its queued create",
				"user_id", userID, "entry_id", entryID)
		} else {
			s.queue.Enqueue(models.OfflineQueueItem{
				Kind:    models.OpDeleteFoodEntry,
				UserID:  userID,
				EntryID: entryID,
			})
		}
	}

	s.notifier.Publish(userID, realtime.EventEntryDeleted, map[string]string{"id": entryID})
	return nil
}

// SearchFoodEntries matches query case-insensitively against food names and
// notes. An empty query returns every entry.
func (s *Service) SearchFoodEntries(ctx context.Context, userID, query string) ([]models.FoodEntry, error) {
	entries, err := s.GetFoodEntries(ctx, userID, "", "")
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries, nil
	}

	matches := []models.FoodEntry{}
	for _, e := range entries {
		if matchesQuery(e, q) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

func matchesQuery(e models.FoodEntry, q string) bool {
	if strings.Contains(strings.ToLower(e.Notes), q) {
		return true
	}
	for _, f := range e.Foods {
		if strings.Contains(strings.ToLower(f.FoodName), q) {
			return true
		}
	}
	return false
}

// neverReachedRemote reports whether the entry only ever existed locally:
// its create was still queued when the delete came in.
func neverReachedRemote(local models.FoodEntry, hasLocal bool, cancelled []models.OfflineQueueItem) bool {
	if !hasLocal || local.IsSynced() {
		return false
	}
	for _, it := range cancelled {
		if it.Kind == models.OpCreateFoodEntry {
			return true
		}
	}
	return false
}

// ownedLocal looks up the cached entry. foreign is set when the id belongs
// to another user.
func (s *Service) ownedLocal(userID, entryID string) (entry models.FoodEntry, ok, foreign bool) {
	e, found := s.local.GetEntry(entryID)
	switch {
	case !found:
		return models.FoodEntry{}, false, false
	case e.UserID != userID:
		return models.FoodEntry{}, false, true
	}
	return e, true, false
}

func (s *Service) pendingDeletes() map[string]bool {
	out := make(map[string]bool)
	for _, it := range s.queue.Pending() {
		if it.Kind == models.OpDeleteFoodEntry {
			out[it.EntryID] = true
		}
	}
	return out
}

func (s *Service) markState(entry models.FoodEntry, next models.SyncState) models.FoodEntry {
	updated, err := s.local.MarkEntryState(entry.ID, next)
	if err != nil {
		s.logger.Errorw("failed to move entry state",
			"entry_id", entry.ID, "from", entry.SyncState, "to", next, "error", err)
		entry.SyncState = next
		return entry
	}
	return updated
}

func (s *Service) trackActivity(ctx context.Context, userID string, count int) {
	if err := s.tracker.TrackFoodActivity(ctx, userID, count); err != nil {
		s.logger.Warnw("activity tracking failed", "user_id", userID, "error", err)
	}
}

func validateCreate(userID string, req CreateFoodEntryRequest, foods []models.NutritionData) error {
	return validateEntry(models.FoodEntry{
		UserID:   userID,
		Date:     req.Date,
		MealType: req.MealType,
		Foods:    foods,
	})
}

func validateEntry(e models.FoodEntry) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !models.ValidDate(e.Date) {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidInput, e.Date)
	}
	if !e.MealType.Valid() {
		return fmt.Errorf("%w: meal type %q", ErrInvalidInput, e.MealType)
	}
	if len(e.Foods) == 0 {
		return fmt.Errorf("%w: at least one food is required", ErrInvalidInput)
	}
	for i, f := range e.Foods {
		if err := validateFood(f); err != nil {
			return fmt.Errorf("food %d: %w", i, err)
		}
	}
	return nil
}

func validateFood(f models.NutritionData) error {
	if strings.TrimSpace(f.FoodName) == "" {
		return fmt.Errorf("%w: food name is required", ErrInvalidInput)
	}
	if !models.ValidAmount(f.Calories) || !f.Macronutrients.Valid() {
		return fmt.Errorf("%w: %s has negative or non-finite values", ErrInvalidInput, f.FoodName)
	}
	for n, v := range f.Micronutrients {
		if !models.ValidAmount(v) {
			return fmt.Errorf("%w: %s has an invalid %s amount", ErrInvalidInput, f.FoodName, n)
		}
	}
	return nil
}

func cloneFoods(foods []models.NutritionData) []models.NutritionData {
	return models.FoodEntry{Foods: foods}.Clone().Foods
}

func nonNil(entries []models.FoodEntry) []models.FoodEntry {
	if entries == nil {
		return []models.FoodEntry{}
	}
	return entries
}
