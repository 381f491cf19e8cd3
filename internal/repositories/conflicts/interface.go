// Package conflicts stores the remote snapshots that conflicted documents
// reference through Document.ConflictID until a resolution strategy is chosen.
package conflicts

import (
	"context"
	"time"

	"github.com/akaplins/paperkeep/internal/models"
)

// Snapshot is one stored remote document captured at conflict-detection time.
type Snapshot struct {
	ID         string
	SyncID     string
	Document   *models.Document
	DetectedAt time.Time
}

// Repository describes persistence for conflict snapshots.
type Repository interface {
	// Insert stores a snapshot. Fails with common.ErrConstraint on a
	// duplicate id.
	Insert(ctx context.Context, snap *Snapshot) error

	// Get returns a snapshot by id or common.ErrNotFound.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// DeleteBySyncID removes every snapshot for one identifier.
	DeleteBySyncID(ctx context.Context, syncID string) error
}
