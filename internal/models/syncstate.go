package models

import (
	"fmt"

	"github.com/akaplins/paperkeep/internal/common"
)

// SyncState tracks where a document sits in its synchronization lifecycle.
type SyncState string

const (
	SyncStatePendingUpload   SyncState = "pendingUpload"
	SyncStateUploading       SyncState = "uploading"
	SyncStatePendingDownload SyncState = "pendingDownload"
	SyncStateDownloading     SyncState = "downloading"
	SyncStateSynced          SyncState = "synced"
	SyncStateError           SyncState = "error"
)

// validTransitions is the full state machine. Anything not listed here is
// rejected, never silently ignored.
// An interrupted transfer (crash between marking uploading/downloading and
// the confirmation) backs out to its pending state and is retried.
var validTransitions = map[SyncState][]SyncState{
	SyncStatePendingUpload:   {SyncStateUploading},
	SyncStateUploading:       {SyncStateSynced, SyncStateError, SyncStatePendingUpload},
	SyncStatePendingDownload: {SyncStateDownloading},
	SyncStateDownloading:     {SyncStateSynced, SyncStatePendingDownload},
	SyncStateSynced:          {SyncStatePendingUpload, SyncStatePendingDownload},
	SyncStateError:           {SyncStatePendingUpload},
}

// IsValid reports whether s is one of the known states.
func (s SyncState) IsValid() bool {
	switch s {
	case SyncStatePendingUpload, SyncStateUploading, SyncStatePendingDownload,
		SyncStateDownloading, SyncStateSynced, SyncStateError:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s SyncState) CanTransitionTo(next SyncState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next if the move is legal, or common.ErrInvalidTransition.
func (s SyncState) Transition(next SyncState) (SyncState, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, s, next)
	}
	return next, nil
}
