// Package operations persists the sync operation queue so queued work
// survives a crash or restart.
package operations

import (
	"context"

	"github.com/akaplins/paperkeep/internal/models"
)

// Repository describes persistence for queued SyncOperation rows.
type Repository interface {
	// Append stores op and assigns its row ID.
	Append(ctx context.Context, op *models.SyncOperation) error

	// GetAll returns every stored operation ordered by enqueue time.
	GetAll(ctx context.Context) ([]*models.SyncOperation, error)

	// DeleteByID removes a single row; absent rows are ignored.
	DeleteByID(ctx context.Context, id int64) error

	// DeleteBySyncID removes every row targeting the given identifier and
	// returns the number of rows removed.
	DeleteBySyncID(ctx context.Context, syncID string) (int64, error)

	// Replace atomically swaps the stored rows for one identifier with ops
	// (used after consolidation).
	Replace(ctx context.Context, syncID string, ops []*models.SyncOperation) error
}
