package food

import (
	"context"
	"errors"
	"fmt"

	"nutrisync/internal/db"
	"nutrisync/internal/localstore"
	"nutrisync/internal/models"
	"nutrisync/internal/queue"
	"nutrisync/internal/realtime"
)

// Replay applies one queued item to the remote. It is the queue.Handler of
// the service.
func (s *Service) Replay(ctx context.Context, item models.OfflineQueueItem) error {
	switch item.Kind {
	case models.OpCreateFoodEntry:
		return s.replayCreate(ctx, item)
	case models.OpUpdateFoodEntry:
		return s.replayUpdate(ctx, item)
	case models.OpDeleteFoodEntry:
		err := s.remote.DeleteFoodEntry(ctx, item.UserID, item.EntryID)
		if err != nil && !db.IsNotFound(err) {
			return err
		}
		return nil
	default:
		s.logger.Errorw("dropping queue item of unknown kind", "item_id", item.ID, "kind", item.Kind)
		return nil
	}
}

func (s *Service) replayCreate(ctx context.Context, item models.OfflineQueueItem) error {
	if item.Entry == nil {
		s.logger.Errorw("dropping create without entry", "item_id", item.ID, "entry_id", item.EntryID)
		return nil
	}
	if _, err := s.remote.CreateFoodEntry(ctx, *item.Entry); err != nil {
		return fmt.Errorf("replay create %s: %w", item.EntryID, err)
	}
	if !item.FavoritesRecorded {
		s.recordFavorites(ctx, item.UserID, item.Entry.Foods)
	}
	s.markSynced(item)
	return nil
}

func (s *Service) replayUpdate(ctx context.Context, item models.OfflineQueueItem) error {
	if item.Entry == nil {
		s.logger.Errorw("dropping update without entry", "item_id", item.ID, "entry_id", item.EntryID)
		return nil
	}
	_, err := s.remote.UpdateFoodEntry(ctx, *item.Entry)
	if db.IsNotFound(err) {
		_, err = s.remote.CreateFoodEntry(ctx, *item.Entry)
	}
	if err != nil {
		return fmt.Errorf("replay update %s: %w", item.EntryID, err)
	}
	s.markSynced(item)
	return nil
}

// markSynced moves the local entry to synced unless more queued work for it
// is still waiting.
func (s *Service) markSynced(item models.OfflineQueueItem) {
	if s.queue.HasPendingFor(item.EntryID, item.ID) {
		return
	}
	_, err := s.local.MarkEntryState(item.EntryID, models.SyncStateSynced)
	switch {
	case errors.Is(err, localstore.ErrNotFound):
		// Evicted or cleared locally; the remote copy is what counts.
	case err != nil:
		s.logger.Errorw("failed to mark entry synced", "entry_id", item.EntryID, "error", err)
	}
}

// ForceSync replays the queue now. Offline it does nothing and reports false.
func (s *Service) ForceSync(ctx context.Context) (queue.ReplayResult, bool) {
	if !s.monitor.IsOnline() {
		s.logger.Infow("force sync skipped while offline", "pending", s.queue.Len())
		return queue.ReplayResult{}, false
	}
	return s.replayQueue(ctx), true
}

func (s *Service) GetOfflineQueueStatus() models.QueueStatus {
	return s.queue.Status(s.monitor.IsOnline())
}

// ClearUserData drops the user's local goals, favorites, entries and queued
// work. The remote is untouched.
func (s *Service) ClearUserData(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	var dropped int
	_ = s.queue.Exclusive(func() error {
		s.local.ClearUser(userID)
		dropped = s.queue.RemoveForUser(userID)
		return nil
	})
	s.logger.Infow("local user data cleared", "user_id", userID, "dropped_queue_items", dropped)
	return nil
}

func (s *Service) replayQueue(ctx context.Context) queue.ReplayResult {
	pending := s.queue.Pending()
	res := s.queue.Replay(ctx, s)
	if res.Attempted == 0 {
		return res
	}

	notified := make(map[string]bool)
	for _, it := range pending {
		if notified[it.UserID] {
			continue
		}
		notified[it.UserID] = true
		s.notifier.Publish(it.UserID, realtime.EventSyncCompleted, s.queue.Status(s.monitor.IsOnline()))
	}
	return res
}
