package models

import (
	"errors"
	"fmt"
)

// SyncState tracks where a FoodEntry stands relative to the remote store.
type SyncState string

const (
	// SyncStateLocalOnly entries exist only in the local store and have no
	// pending remote work.
	SyncStateLocalOnly SyncState = "local_only"
	// SyncStatePendingRemote entries have a queued operation waiting for
	// replay.
	SyncStatePendingRemote SyncState = "pending_remote"
	// SyncStateSynced entries match what the remote holds.
	SyncStateSynced SyncState = "synced"
)

var ErrInvalidTransition = errors.New("invalid sync state transition")

var allowedTransitions = map[SyncState][]SyncState{
	SyncStateLocalOnly:     {SyncStatePendingRemote, SyncStateSynced},
	SyncStatePendingRemote: {SyncStateSynced},
}

// Transition validates moving from s to next. Any state may fall back to
// local_only because a local edit makes the entry presumptively unsynced.
func (s SyncState) Transition(next SyncState) (SyncState, error) {
	if next == SyncStateLocalOnly || s == next {
		return next, nil
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

func (s SyncState) Valid() bool {
	switch s {
	case SyncStateLocalOnly, SyncStatePendingRemote, SyncStateSynced:
		return true
	}
	return false
}
