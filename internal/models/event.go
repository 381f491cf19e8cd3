package models

import "time"

// SyncEventType names the events the engine publishes while syncing.
type SyncEventType string

const (
	EventSyncStarted        SyncEventType = "syncStarted"
	EventSyncCompleted      SyncEventType = "syncCompleted"
	EventSyncFailed         SyncEventType = "syncFailed"
	EventDocumentUploaded   SyncEventType = "documentUploaded"
	EventDocumentDownloaded SyncEventType = "documentDownloaded"
	EventConflictDetected   SyncEventType = "conflictDetected"
	EventStateChanged       SyncEventType = "stateChanged"
)

// SyncEvent is a state-change notification delivered to subscribers over a
// bounded channel. SyncID is empty for cycle-level events.
type SyncEvent struct {
	Type      SyncEventType
	SyncID    string
	Message   string
	Timestamp time.Time
}
