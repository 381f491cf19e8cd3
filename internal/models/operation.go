package models

import "time"

// OperationKind classifies a queued sync operation.
type OperationKind string

const (
	OperationUpload OperationKind = "upload"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// SyncOperation is an engine-internal scheduling unit: one queued mutation
// that must propagate to the remote. It is destroyed on successful remote
// application or when consolidated into a later operation for the same id.
type SyncOperation struct {
	// ID is the persisted queue row id, zero until stored.
	ID int64

	Kind   OperationKind
	SyncID string

	// Document is the full snapshot at enqueue time. Nil for delete.
	Document *Document

	// Patch records exactly which fields an update touched, so consolidation
	// can merge field-by-field. Nil for upload (full snapshot) and delete.
	Patch *DocumentPatch

	EnqueuedAt time.Time
	Priority   int
}
