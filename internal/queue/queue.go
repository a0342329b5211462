// Package queue is the offline operation queue: mutations that could not
// reach the remote are persisted here and replayed in FIFO order.
package queue

import (
	"context"
	"sync"
	"time"

	"nutrisync/internal/models"
	"nutrisync/pkg/logger"

	"github.com/google/uuid"
)

// Persistence is the slice of the local store the queue writes through.
type Persistence interface {
	LoadQueue() []models.OfflineQueueItem
	SaveQueue(items []models.OfflineQueueItem)
}

// Handler applies one queued item against the remote.
type Handler interface {
	Replay(ctx context.Context, item models.OfflineQueueItem) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, item models.OfflineQueueItem) error

func (f HandlerFunc) Replay(ctx context.Context, item models.OfflineQueueItem) error {
	return f(ctx, item)
}

type ReplayResult struct {
	Attempted int
	Succeeded int
	Failed    int
}

type Queue struct {
	store  Persistence
	logger *logger.Logger
	now    func() time.Time

	// mu guards the persisted slice; replayMu keeps replays from overlapping.
	mu       sync.Mutex
	replayMu sync.Mutex
}

func New(store Persistence, l *logger.Logger) *Queue {
	q := &Queue{
		store:  store,
		logger: logger.OrNop(l).Named("queue"),
		now:    time.Now,
	}
	pendingGauge.Set(float64(len(store.LoadQueue())))
	return q
}

// Enqueue appends item to the persisted queue, filling in ID and QueuedAt
// when unset.
func (q *Queue) Enqueue(item models.OfflineQueueItem) models.OfflineQueueItem {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.QueuedAt.IsZero() {
		item.QueuedAt = q.now()
	}

	q.mu.Lock()
	items := append(q.store.LoadQueue(), item)
	q.store.SaveQueue(items)
	q.mu.Unlock()

	pendingGauge.Set(float64(len(items)))
	q.logger.Infow("operation queued",
		"item_id", item.ID, "kind", item.Kind, "entry_id", item.EntryID, "pending", len(items))
	return item
}

// Pending returns a snapshot of the queue in FIFO order.
func (q *Queue) Pending() []models.OfflineQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.LoadQueue()
}

func (q *Queue) Len() int {
	return len(q.Pending())
}

// Status reports the pending count alongside the caller's view of
// reachability.
func (q *Queue) Status(online bool) models.QueueStatus {
	return models.QueueStatus{Count: q.Len(), IsOnline: online}
}

// Replay runs every queued item through h in FIFO order. A successful item
// is removed; a failed one stays queued with its attempt count bumped and
// does not stop later items.
func (q *Queue) Replay(ctx context.Context, h Handler) ReplayResult {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	snapshot := q.Pending()
	var res ReplayResult

	for _, item := range snapshot {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++

		err := h.Replay(ctx, item)
		if err != nil {
			res.Failed++
			replayCounter.WithLabelValues("failed").Inc()
			q.logger.Errorw("replay failed, keeping item",
				"item_id", item.ID, "kind", item.Kind, "entry_id", item.EntryID,
				"attempts", item.Attempts+1, "error", err)
			q.update(item.ID, func(it *models.OfflineQueueItem) {
				it.Attempts++
				it.LastError = err.Error()
			})
			continue
		}

		res.Succeeded++
		replayCounter.WithLabelValues("succeeded").Inc()
		q.remove(func(it models.OfflineQueueItem) bool { return it.ID == item.ID })
	}

	if res.Attempted > 0 {
		q.logger.Infow("replay finished",
			"attempted", res.Attempted, "succeeded", res.Succeeded, "failed", res.Failed)
	}
	return res
}

// Exclusive runs fn while no replay is in progress and keeps new replays
// waiting until it returns. fn must not call Replay.
func (q *Queue) Exclusive(fn func() error) error {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()
	return fn()
}

// RemoveForUser drops every queued item owned by userID and returns how many
// were removed.
func (q *Queue) RemoveForUser(userID string) int {
	return len(q.remove(func(it models.OfflineQueueItem) bool { return it.UserID == userID }))
}

// RemoveForEntry cancels every item userID queued for entryID and returns
// them.
func (q *Queue) RemoveForEntry(userID, entryID string) []models.OfflineQueueItem {
	return q.remove(func(it models.OfflineQueueItem) bool {
		return it.UserID == userID && it.EntryID == entryID
	})
}

// HasPendingFor reports whether an item other than exceptID is queued for
// entryID.
func (q *Queue) HasPendingFor(entryID, exceptID string) bool {
	for _, it := range q.Pending() {
		if it.EntryID == entryID && it.ID != exceptID {
			return true
		}
	}
	return false
}

func (q *Queue) remove(match func(models.OfflineQueueItem) bool) []models.OfflineQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.store.LoadQueue()
	kept := make([]models.OfflineQueueItem, 0, len(items))
	var removed []models.OfflineQueueItem
	for _, it := range items {
		if match(it) {
			removed = append(removed, it)
			continue
		}
		kept = append(kept, it)
	}
	if len(removed) > 0 {
		q.store.SaveQueue(kept)
	}
	pendingGauge.Set(float64(len(kept)))
	return removed
}

func (q *Queue) update(id string, fn func(*models.OfflineQueueItem)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.store.LoadQueue()
	for i := range items {
		if items[i].ID == id {
			fn(&items[i])
			q.store.SaveQueue(items)
			return
		}
	}
}
