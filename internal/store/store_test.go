package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/identifier"
	"github.com/akaplins/paperkeep/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "paperkeep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newDoc(t *testing.T, s *Store, title string) *models.Document {
	t.Helper()
	doc := &models.Document{SyncID: identifier.Generate(), Title: title, Category: "bills"}
	require.NoError(t, s.CreateDocument(context.Background(), doc))
	return doc
}

func TestCreateDocument_Defaults(t *testing.T) {
	s := setupStore(t)
	doc := newDoc(t, s, "Rent")

	got, err := s.GetDocument(context.Background(), doc.SyncID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, models.SyncStatePendingUpload, got.SyncState)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateDocument_InvalidIdentifier(t *testing.T) {
	s := setupStore(t)
	err := s.CreateDocument(context.Background(), &models.Document{SyncID: "nope", Title: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidIdentifier))
}

func TestCreateDocument_DuplicateIdentifier(t *testing.T) {
	s := setupStore(t)
	doc := newDoc(t, s, "Rent")

	err := s.CreateDocument(context.Background(), &models.Document{SyncID: doc.SyncID, Title: "again"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConstraint))
}

func TestUpdateDocument_VersionOnlyOnBump(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc := newDoc(t, s, "Rent")

	title := "Rent 2024"
	got, err := s.UpdateDocument(ctx, doc.SyncID, &models.DocumentPatch{Title: &title}, false)
	require.NoError(t, err)
	assert.Equal(t, "Rent 2024", got.Title)
	assert.Equal(t, int64(1), got.Version, "plain update never bumps version")

	got, err = s.UpdateDocument(ctx, doc.SyncID, &models.DocumentPatch{}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateDocument_RearmsSyncedDocument(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc := newDoc(t, s, "Rent")

	_, err := s.TransitionState(ctx, doc.SyncID, models.SyncStateUploading)
	require.NoError(t, err)
	_, err = s.TransitionState(ctx, doc.SyncID, models.SyncStateSynced)
	require.NoError(t, err)

	title := "Rent 2024"
	got, err := s.UpdateDocument(ctx, doc.SyncID, &models.DocumentPatch{Title: &title}, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatePendingUpload, got.SyncState)
	assert.Equal(t, int64(2), got.Version)
}

func TestTransitionState_RejectsInvalid(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc := newDoc(t, s, "Rent")

	_, err := s.TransitionState(ctx, doc.SyncID, models.SyncStateSynced)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))

	// rejected transition must not be persisted
	got, err := s.GetDocument(ctx, doc.SyncID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatePendingUpload, got.SyncState)
}

func TestRecoverInFlight(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	up := newDoc(t, s, "interrupted upload")
	_, err := s.TransitionState(ctx, up.SyncID, models.SyncStateUploading)
	require.NoError(t, err)

	down := newDoc(t, s, "interrupted download")
	for _, next := range []models.SyncState{
		models.SyncStateUploading, models.SyncStateSynced,
		models.SyncStatePendingDownload, models.SyncStateDownloading,
	} {
		_, err = s.TransitionState(ctx, down.SyncID, next)
		require.NoError(t, err)
	}

	idle := newDoc(t, s, "untouched")

	n, err := s.RecoverInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetDocument(ctx, up.SyncID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatePendingUpload, got.SyncState)

	got, err = s.GetDocument(ctx, down.SyncID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatePendingDownload, got.SyncState)

	got, err = s.GetDocument(ctx, idle.SyncID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatePendingUpload, got.SyncState)
}

func TestSetConflict_FromDirtyDocument(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc := newDoc(t, s, "Rent")

	remote := doc.Clone()
	remote.Title = "Rent (remote)"
	remote.Version = 2

	conflictID := identifier.Generate()
	require.NoError(t, s.SetConflict(ctx, doc.SyncID, remote, conflictID),
		"conflict entry must work from pendingUpload too")

	got, err := s.GetDocument(ctx, doc.SyncID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateError, got.SyncState)
	assert.Equal(t, conflictID, got.ConflictID)
}

func TestDeleteDocument_CascadesAttachments(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc := newDoc(t, s, "Rent")

	for _, name := range []string{"lease.pdf", "receipt.pdf", "photo.jpg"} {
		require.NoError(t, s.AddAttachment(ctx, &models.FileAttachment{
			OwnerSyncID: doc.SyncID, FileName: name, LocalPath: "/tmp/" + name,
		}))
	}

	require.NoError(t, s.DeleteDocument(ctx, doc.SyncID))

	_, err := s.GetDocument(ctx, doc.SyncID)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	atts, err := s.Attachments(ctx, doc.SyncID)
	require.NoError(t, err)
	assert.Empty(t, atts, "cascade must leave zero attachments")
}

func TestAddAttachment_Invariants(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc := newDoc(t, s, "Rent")

	err := s.AddAttachment(ctx, &models.FileAttachment{OwnerSyncID: doc.SyncID, FileName: "x"})
	require.Error(t, err, "needs a local path or remote key")
	assert.True(t, errors.Is(err, common.ErrConstraint))

	err = s.AddAttachment(ctx, &models.FileAttachment{
		OwnerSyncID: identifier.Generate(), FileName: "x", LocalPath: "/tmp/x",
	})
	assert.True(t, errors.Is(err, common.ErrNotFound), "owner must exist")
}

func TestMarkAttachmentUploaded(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc := newDoc(t, s, "Rent")

	require.NoError(t, s.AddAttachment(ctx, &models.FileAttachment{
		OwnerSyncID: doc.SyncID, FileName: "lease.pdf", LocalPath: "/tmp/lease.pdf",
	}))
	require.NoError(t, s.MarkAttachmentUploaded(ctx, doc.SyncID, "lease.pdf", "objects/abc"))

	atts, err := s.Attachments(ctx, doc.SyncID)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "objects/abc", atts[0].RemoteKey)
}

func TestMarkAttachmentDownloaded(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc := newDoc(t, s, "Rent")

	require.NoError(t, s.AddAttachment(ctx, &models.FileAttachment{
		OwnerSyncID: doc.SyncID, FileName: "lease.pdf", RemoteKey: "objects/abc",
	}))

	needing, err := s.AttachmentsNeedingDownload(ctx)
	require.NoError(t, err)
	require.Len(t, needing, 1)

	require.NoError(t, s.MarkAttachmentDownloaded(ctx, doc.SyncID, "lease.pdf", "/tmp/lease.pdf"))

	needing, err = s.AttachmentsNeedingDownload(ctx)
	require.NoError(t, err)
	assert.Empty(t, needing)

	atts, err := s.Attachments(ctx, doc.SyncID)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "/tmp/lease.pdf", atts[0].LocalPath)
}

func TestConflictLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc := newDoc(t, s, "Rent")

	_, err := s.TransitionState(ctx, doc.SyncID, models.SyncStateUploading)
	require.NoError(t, err)

	remote := doc.Clone()
	remote.Title = "Rent (remote)"
	remote.Version = 2

	conflictID := identifier.Generate()
	require.NoError(t, s.SetConflict(ctx, doc.SyncID, remote, conflictID))

	got, err := s.GetDocument(ctx, doc.SyncID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateError, got.SyncState)
	assert.Equal(t, conflictID, got.ConflictID)

	snap, err := s.ConflictSnapshot(ctx, conflictID)
	require.NoError(t, err)
	assert.Equal(t, "Rent (remote)", snap.Document.Title)
	assert.Equal(t, int64(2), snap.Document.Version)

	require.NoError(t, s.ClearConflict(ctx, doc.SyncID))
	got, err = s.GetDocument(ctx, doc.SyncID)
	require.NoError(t, err)
	assert.Empty(t, got.ConflictID)

	_, err = s.ConflictSnapshot(ctx, conflictID)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestWatermark(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	wm, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	now := time.Now().UTC()
	require.NoError(t, s.SetWatermark(ctx, now))

	wm, err = s.Watermark(ctx)
	require.NoError(t, err)
	assert.True(t, wm.Equal(now))
}
