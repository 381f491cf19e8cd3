// Package store is the Local Store facade: durable, transactional storage for
// documents, file attachments and engine bookkeeping. All mutating operations
// run inside a single transaction; a failed transaction leaves prior state
// untouched.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/dbx"
	"github.com/akaplins/paperkeep/internal/identifier"
	"github.com/akaplins/paperkeep/internal/models"
	"github.com/akaplins/paperkeep/internal/repositories/attachments"
	"github.com/akaplins/paperkeep/internal/repositories/conflicts"
	"github.com/akaplins/paperkeep/internal/repositories/documents"
	"github.com/akaplins/paperkeep/internal/repositories/metadata"
	"github.com/akaplins/paperkeep/internal/store/migrations"
	"github.com/pressly/goose/v3"
)

const watermarkKey = "download_watermark"

// Store owns the single active SQLite connection of the process.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (or creates) the database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// NewWithDB wraps an already opened and migrated database. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle so collaborators (queue persistence) can
// share the same connection and transactions.
func (s *Store) DB() *sql.DB { return s.db }

// SetNowFunc overrides the clock. Used by tests.
func (s *Store) SetNowFunc(now func() time.Time) { s.now = now }

// CreateDocument validates the identifier and inserts a new document with
// version 1 in state pendingUpload.
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	normalized, err := identifier.Normalize(doc.SyncID)
	if err != nil {
		return err
	}
	doc.SyncID = normalized
	now := s.now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1
	doc.SyncState = models.SyncStatePendingUpload
	doc.ConflictID = ""

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return documents.NewSQLiteRepository(tx).Insert(ctx, doc)
	})
}

// GetDocument returns a single document by identifier.
func (s *Store) GetDocument(ctx context.Context, syncID string) (*models.Document, error) {
	return documents.NewSQLiteRepository(s.db).GetBySyncID(ctx, syncID)
}

// ListDocuments returns all documents.
func (s *Store) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	return documents.NewSQLiteRepository(s.db).GetAll(ctx)
}

// ListByState returns documents in the given sync state.
func (s *Store) ListByState(ctx context.Context, state models.SyncState) ([]*models.Document, error) {
	return documents.NewSQLiteRepository(s.db).GetBySyncState(ctx, state)
}

// ListNeedingUpload returns documents in pendingUpload or error state.
func (s *Store) ListNeedingUpload(ctx context.Context) ([]*models.Document, error) {
	return documents.NewSQLiteRepository(s.db).GetNeedingUpload(ctx)
}

// UpdateDocument applies a partial update inside one transaction and returns
// the updated document. updated_at is always bumped; version is bumped only
// when bumpVersion says this is a new syncable revision, in which case a
// synced document is re-armed to pendingUpload.
func (s *Store) UpdateDocument(ctx context.Context, syncID string, patch *models.DocumentPatch, bumpVersion bool) (*models.Document, error) {
	var updated *models.Document
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := documents.NewSQLiteRepository(tx)
		doc, err := repo.GetBySyncID(ctx, syncID)
		if err != nil {
			return err
		}
		patch.Apply(doc)
		doc.UpdatedAt = s.now()
		if bumpVersion {
			doc.BumpVersion()
			if doc.SyncState == models.SyncStateSynced {
				next, err := doc.SyncState.Transition(models.SyncStatePendingUpload)
				if err != nil {
					return err
				}
				doc.SyncState = next
			}
		}
		if err := repo.Update(ctx, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	return updated, err
}

// PutDocument overwrites a document row as-is, inserting it when absent. The
// sync engine uses it to apply remote snapshots and resolution outcomes.
func (s *Store) PutDocument(ctx context.Context, doc *models.Document) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := documents.NewSQLiteRepository(tx)
		err := repo.Update(ctx, doc)
		if errors.Is(err, common.ErrNotFound) {
			return repo.Insert(ctx, doc)
		}
		return err
	})
}

// DeleteDocument cascades attachments, conflict snapshots and the document
// row inside one transaction.
func (s *Store) DeleteDocument(ctx context.Context, syncID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := attachments.NewSQLiteRepository(tx).DeleteByOwner(ctx, syncID); err != nil {
			return err
		}
		if err := conflicts.NewSQLiteRepository(tx).DeleteBySyncID(ctx, syncID); err != nil {
			return err
		}
		return documents.NewSQLiteRepository(tx).Delete(ctx, syncID)
	})
}

// TransitionState moves the document's sync state along the state machine,
// rejecting illegal moves with common.ErrInvalidTransition. Pure bookkeeping:
// updated_at and version are untouched.
func (s *Store) TransitionState(ctx context.Context, syncID string, next models.SyncState) (*models.Document, error) {
	var updated *models.Document
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := documents.NewSQLiteRepository(tx)
		doc, err := repo.GetBySyncID(ctx, syncID)
		if err != nil {
			return err
		}
		state, err := doc.SyncState.Transition(next)
		if err != nil {
			return err
		}
		doc.SyncState = state
		if err := repo.Update(ctx, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	return updated, err
}

// RecoverInFlight backs interrupted transfers out of their transient states:
// uploading becomes pendingUpload, downloading becomes pendingDownload. A
// crash between marking a transfer and its confirmation otherwise leaves the
// document stuck. Called at startup, before the persisted queue is replayed.
// Returns how many documents were recovered.
func (s *Store) RecoverInFlight(ctx context.Context) (int, error) {
	recovered := 0
	for _, p := range []struct{ from, to models.SyncState }{
		{models.SyncStateUploading, models.SyncStatePendingUpload},
		{models.SyncStateDownloading, models.SyncStatePendingDownload},
	} {
		docs, err := s.ListByState(ctx, p.from)
		if err != nil {
			return recovered, err
		}
		for _, doc := range docs {
			if _, err := s.TransitionState(ctx, doc.SyncID, p.to); err != nil {
				return recovered, err
			}
			recovered++
		}
	}
	return recovered, nil
}

// AddAttachment inserts an attachment after checking the owner exists and the
// "at least one of local path / remote key" invariant holds.
func (s *Store) AddAttachment(ctx context.Context, att *models.FileAttachment) error {
	if att.LocalPath == "" && att.RemoteKey == "" {
		return fmt.Errorf("%w: attachment needs a local path or a remote key", common.ErrConstraint)
	}
	att.AddedAt = s.now()
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := documents.NewSQLiteRepository(tx).GetBySyncID(ctx, att.OwnerSyncID); err != nil {
			return err
		}
		return attachments.NewSQLiteRepository(tx).Insert(ctx, att)
	})
}

// Attachments lists the attachments of one document.
func (s *Store) Attachments(ctx context.Context, ownerSyncID string) ([]*models.FileAttachment, error) {
	return attachments.NewSQLiteRepository(s.db).GetByOwner(ctx, ownerSyncID)
}

// AttachmentsNeedingDownload lists attachments with a remote key but no local
// copy.
func (s *Store) AttachmentsNeedingDownload(ctx context.Context) ([]*models.FileAttachment, error) {
	return attachments.NewSQLiteRepository(s.db).GetNeedingDownload(ctx)
}

// MarkAttachmentUploaded records the confirmed remote object key.
func (s *Store) MarkAttachmentUploaded(ctx context.Context, ownerSyncID, fileName, remoteKey string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := attachments.NewSQLiteRepository(tx)
		att, err := repo.Get(ctx, ownerSyncID, fileName)
		if err != nil {
			return err
		}
		att.RemoteKey = remoteKey
		return repo.Update(ctx, att)
	})
}

// MarkAttachmentDownloaded records where the fetched copy landed locally.
func (s *Store) MarkAttachmentDownloaded(ctx context.Context, ownerSyncID, fileName, localPath string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := attachments.NewSQLiteRepository(tx)
		att, err := repo.Get(ctx, ownerSyncID, fileName)
		if err != nil {
			return err
		}
		att.LocalPath = localPath
		return repo.Update(ctx, att)
	})
}

// SetConflict stores the remote snapshot, marks the document conflicted
// (state error, conflict id set) and returns the snapshot id. Further
// automatic sync for the identifier is suspended until resolved.
func (s *Store) SetConflict(ctx context.Context, syncID string, remote *models.Document, conflictID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := conflicts.NewSQLiteRepository(tx).Insert(ctx, &conflicts.Snapshot{
			ID:         conflictID,
			SyncID:     syncID,
			Document:   remote,
			DetectedAt: s.now(),
		}); err != nil {
			return err
		}
		repo := documents.NewSQLiteRepository(tx)
		doc, err := repo.GetBySyncID(ctx, syncID)
		if err != nil {
			return err
		}
		// conflict entry suspends the state machine rather than stepping
		// through it, so it is legal from any state
		doc.SyncState = models.SyncStateError
		doc.ConflictID = conflictID
		return repo.Update(ctx, doc)
	})
}

// ConflictSnapshot loads a stored remote snapshot by id.
func (s *Store) ConflictSnapshot(ctx context.Context, conflictID string) (*conflicts.Snapshot, error) {
	return conflicts.NewSQLiteRepository(s.db).Get(ctx, conflictID)
}

// ClearConflict drops the stored snapshots for an identifier and resets the
// document's conflict reference.
func (s *Store) ClearConflict(ctx context.Context, syncID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := conflicts.NewSQLiteRepository(tx).DeleteBySyncID(ctx, syncID); err != nil {
			return err
		}
		repo := documents.NewSQLiteRepository(tx)
		doc, err := repo.GetBySyncID(ctx, syncID)
		if err != nil {
			return err
		}
		doc.ConflictID = ""
		return repo.Update(ctx, doc)
	})
}

// Watermark returns the download watermark of the last completed cycle, zero
// when none is stored yet.
func (s *Store) Watermark(ctx context.Context) (time.Time, error) {
	raw, err := metadata.NewSQLiteRepository(s.db).Get(ctx, watermarkKey)
	if err != nil {
		return time.Time{}, err
	}
	if raw == nil {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse watermark: %w", err)
	}
	return t, nil
}

// SetWatermark persists the download watermark.
func (s *Store) SetWatermark(ctx context.Context, t time.Time) error {
	return metadata.NewSQLiteRepository(s.db).Set(ctx, watermarkKey, []byte(t.Format(time.RFC3339Nano)))
}
