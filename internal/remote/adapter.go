// Package remote defines the adapter boundary between the sync engine and
// whatever wire protocol a deployment uses (GraphQL, REST, raw object
// storage). The engine only consumes this interface; the in-memory
// implementation backs tests and local-only runs.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/models"
)

// ErrDuplicateIdentifier is reported by Create when the sync id is already
// taken remotely.
var ErrDuplicateIdentifier = errors.New("duplicate sync identifier")

// Change is one remote-originated document change.
type Change struct {
	Document   *models.Document
	OccurredAt time.Time
}

// Adapter abstracts the remote backend. Update must report a version mismatch
// as *VersionMismatchError, never as a generic failure; transient failures
// must unwrap to *TransientError so the engine knows to retry them.
type Adapter interface {
	// Create stores a brand-new document remotely.
	Create(ctx context.Context, doc *models.Document) error

	// Update overwrites the remote document only if its current version is
	// exactly expectedVersion (optimistic concurrency).
	Update(ctx context.Context, doc *models.Document, expectedVersion int64) error

	// Delete removes the remote document. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, syncID string) error

	// ListChangedSince returns remote documents changed after watermark and
	// the new watermark to persist.
	ListChangedSince(ctx context.Context, watermark time.Time) ([]*models.Document, time.Time, error)

	// Subscribe streams remote changes matching filter (nil matches all)
	// until ctx is done.
	Subscribe(ctx context.Context, filter func(syncID string) bool) (<-chan Change, error)

	// UploadAttachment transfers the local file and returns the confirmed
	// remote object key.
	UploadAttachment(ctx context.Context, att *models.FileAttachment) (string, error)

	// DownloadAttachment fetches the remote object to localPath.
	DownloadAttachment(ctx context.Context, remoteKey, localPath string) error
}

// TransientError marks a failure as retryable (network blip, timeout).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// VersionMismatchError is the distinguishable optimistic-concurrency
// rejection: the caller's assumed base version no longer matches the remote.
type VersionMismatchError struct {
	SyncID          string
	ExpectedVersion int64
	Remote          *models.Document
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch on %s: expected v%d, remote v%d",
		e.SyncID, e.ExpectedVersion, e.Remote.Version)
}

func (e *VersionMismatchError) Unwrap() error { return common.ErrVersionConflict }
