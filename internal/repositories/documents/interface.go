// Package documents persists Document rows in the local SQLite store.
package documents

import (
	"context"

	"github.com/akaplins/paperkeep/internal/models"
)

// Repository describes CRUD and query operations for Document rows.
type Repository interface {
	// Insert adds a new document. Fails with common.ErrConstraint when the
	// sync id is already taken.
	Insert(ctx context.Context, doc *models.Document) error

	// Update overwrites an existing document by sync id. Fails with
	// common.ErrNotFound when the id is absent.
	Update(ctx context.Context, doc *models.Document) error

	// GetBySyncID returns a single document or common.ErrNotFound.
	GetBySyncID(ctx context.Context, syncID string) (*models.Document, error)

	// GetAll lists every document ordered by creation time.
	GetAll(ctx context.Context) ([]*models.Document, error)

	// GetBySyncState lists documents currently in the given state.
	GetBySyncState(ctx context.Context, state models.SyncState) ([]*models.Document, error)

	// GetNeedingUpload lists documents in pendingUpload or error state.
	GetNeedingUpload(ctx context.Context) ([]*models.Document, error)

	// Delete removes the row. Fails with common.ErrNotFound when absent.
	Delete(ctx context.Context, syncID string) error
}
