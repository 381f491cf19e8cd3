package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id string, version int64) *models.Document {
	return &models.Document{SyncID: id, Title: "Insurance", Version: version}
}

func TestCreate_DuplicateIdentifier(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, doc("a", 1)))
	err := m.Create(ctx, doc("a", 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateIdentifier))
}

func TestUpdate_VersionMismatch(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, doc("a", 3)))
	err := m.Update(ctx, doc("a", 4), 2)
	require.Error(t, err)

	var vm *VersionMismatchError
	require.True(t, errors.As(err, &vm))
	assert.Equal(t, int64(3), vm.Remote.Version)
	assert.True(t, errors.Is(err, common.ErrVersionConflict))

	require.NoError(t, m.Update(ctx, doc("a", 4), 3))
	assert.Equal(t, int64(4), m.Get("a").Version)
}

func TestListChangedSince_AdvancesWatermark(t *testing.T) {
	m := NewMemoryAdapter()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	m.Seed(doc("a", 1), t0.Add(time.Minute))
	m.Seed(doc("b", 1), t0.Add(2*time.Minute))

	changed, mark, err := m.ListChangedSince(context.Background(), t0.Add(90*time.Second))
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "b", changed[0].SyncID)
	assert.Equal(t, t0.Add(2*time.Minute), mark)

	changed, _, err = m.ListChangedSince(context.Background(), mark)
	require.NoError(t, err)
	assert.Empty(t, changed, "watermark boundary is exclusive")
}

func TestTransient_Wrapping(t *testing.T) {
	base := errors.New("connection reset")
	assert.True(t, IsTransient(Transient(base)))
	assert.False(t, IsTransient(base))
	assert.Nil(t, Transient(nil))
}

func TestAttachmentRoundTrip(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(src, []byte("pdf bytes"), 0o644))

	key, err := m.UploadAttachment(ctx, &models.FileAttachment{
		OwnerSyncID: "a", FileName: "scan.pdf", LocalPath: src,
	})
	require.NoError(t, err)
	assert.Equal(t, "attachments/a/scan.pdf", key)

	dst := filepath.Join(dir, "restored", "scan.pdf")
	require.NoError(t, m.DownloadAttachment(ctx, key, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), data)

	err = m.DownloadAttachment(ctx, "attachments/missing", dst)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
