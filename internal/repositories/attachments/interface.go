// Package attachments persists FileAttachment rows keyed by
// (owner sync id, file name).
package attachments

import (
	"context"

	"github.com/akaplins/paperkeep/internal/models"
)

// Repository describes CRUD and query operations for FileAttachment rows.
type Repository interface {
	// Insert adds a new attachment. Fails with common.ErrConstraint when the
	// (owner, file name) pair already exists.
	Insert(ctx context.Context, att *models.FileAttachment) error

	// Update overwrites an existing attachment. Fails with common.ErrNotFound.
	Update(ctx context.Context, att *models.FileAttachment) error

	// Get returns a single attachment or common.ErrNotFound.
	Get(ctx context.Context, ownerSyncID, fileName string) (*models.FileAttachment, error)

	// GetByOwner lists all attachments of one document.
	GetByOwner(ctx context.Context, ownerSyncID string) ([]*models.FileAttachment, error)

	// GetNeedingDownload lists attachments with a remote key but no local path.
	GetNeedingDownload(ctx context.Context) ([]*models.FileAttachment, error)

	// DeleteByOwner removes every attachment of one document and returns the
	// number of rows removed.
	DeleteByOwner(ctx context.Context, ownerSyncID string) (int64, error)

	// Delete removes a single attachment. Fails with common.ErrNotFound.
	Delete(ctx context.Context, ownerSyncID, fileName string) error
}
