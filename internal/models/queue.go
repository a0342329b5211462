package models

import "time"

type OperationKind string

const (
	OpCreateFoodEntry OperationKind = "create_food_entry"
	OpUpdateFoodEntry OperationKind = "update_food_entry"
	OpDeleteFoodEntry OperationKind = "delete_food_entry"
)

// OfflineQueueItem is a mutation waiting to be replayed against the remote.
type OfflineQueueItem struct {
	ID      string        `json:"id"`
	Kind    OperationKind `json:"kind"`
	UserID  string        `json:"user_id"`
	EntryID string        `json:"entry_id"`
	// Entry carries the full entry with its foods for create and update.
	Entry *FoodEntry `json:"entry,omitempty"`
	// FavoritesRecorded is set when the favorites update already ran at
	// creation time, so replay must not count the foods again.
	FavoritesRecorded bool      `json:"favorites_recorded,omitempty"`
	QueuedAt          time.Time `json:"queued_at"`
	Attempts          int       `json:"attempts,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
}

// QueueStatus is what the UI shows about pending offline work.
type QueueStatus struct {
	Count    int  `json:"count"`
	IsOnline bool `json:"is_online"`
}
