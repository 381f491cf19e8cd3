package conflict

import (
	"testing"
	"time"

	"github.com/akaplins/paperkeep/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func pair() (*models.Document, *models.Document) {
	local := &models.Document{
		SyncID:    "9f1c2ad4-63a1-4b6e-8f0d-2b7a9c1d5e3f",
		Title:     "Rent (local)",
		Notes:     "local notes",
		Version:   3,
		UpdatedAt: baseTime.Add(time.Hour),
		SyncState: models.SyncStateUploading,
	}
	remote := &models.Document{
		SyncID:    local.SyncID,
		Title:     "Rent (remote)",
		Notes:     "remote notes",
		Version:   5,
		UpdatedAt: baseTime,
		SyncState: models.SyncStateSynced,
	}
	return local, remote
}

func TestDetected(t *testing.T) {
	local, remote := pair()
	assert.True(t, Detected(local, remote), "diverged versions conflict")

	// same version but differing content must conflict, never overwrite
	remote.Version = local.Version
	assert.True(t, Detected(local, remote))

	// same version, same content: nothing to do
	same := local.Clone()
	assert.False(t, Detected(local, same))
}

func TestResolve_KeepLocal(t *testing.T) {
	local, remote := pair()
	r := NewResolver()
	r.SetNowFunc(func() time.Time { return baseTime })

	res, err := r.Resolve(local, remote, StrategyKeepLocal)
	require.NoError(t, err)

	assert.Equal(t, "Rent (local)", res.Document.Title)
	assert.Equal(t, int64(6), res.Document.Version, "remote version + 1")
	assert.Equal(t, models.SyncStatePendingUpload, res.Document.SyncState)
	assert.Empty(t, res.Document.ConflictID)
	require.Len(t, res.Requeue, 1)
	assert.Equal(t, models.OperationUpdate, res.Requeue[0].Kind)
	assert.True(t, res.DiscardPending)
}

func TestResolve_KeepRemote(t *testing.T) {
	local, remote := pair()
	res, err := NewResolver().Resolve(local, remote, StrategyKeepRemote)
	require.NoError(t, err)

	assert.Equal(t, "Rent (remote)", res.Document.Title)
	assert.Equal(t, int64(5), res.Document.Version)
	assert.Equal(t, models.SyncStateSynced, res.Document.SyncState)
	assert.True(t, res.DiscardPending, "local pending operations discarded")
	assert.Empty(t, res.Requeue)
}

func TestResolve_Merge_LatestFieldWins(t *testing.T) {
	local, remote := pair() // local updated later than remote
	res, err := NewResolver().Resolve(local, remote, StrategyMerge)
	require.NoError(t, err)

	assert.Equal(t, "Rent (local)", res.Document.Title, "later side wins the field")
	assert.Equal(t, int64(6), res.Document.Version, "max(local, remote) + 1")
	assert.Equal(t, models.SyncStatePendingUpload, res.Document.SyncState)
	require.Len(t, res.Requeue, 1)

	// flip recency: remote newer
	local.UpdatedAt = baseTime
	remote.UpdatedAt = baseTime.Add(2 * time.Hour)
	res, err = NewResolver().Resolve(local, remote, StrategyMerge)
	require.NoError(t, err)
	assert.Equal(t, "Rent (remote)", res.Document.Title)
}

func TestResolve_KeepBoth(t *testing.T) {
	local, remote := pair()
	r := NewResolver()
	r.SetIDFunc(func() string { return "11111111-2222-4333-8444-555555555555" })

	res, err := r.Resolve(local, remote, StrategyKeepBoth)
	require.NoError(t, err)

	assert.Equal(t, remote.SyncID, res.Document.SyncID, "remote keeps the original id")
	assert.Equal(t, models.SyncStateSynced, res.Document.SyncState)

	require.NotNil(t, res.ReIdentified)
	assert.Equal(t, "11111111-2222-4333-8444-555555555555", res.ReIdentified.SyncID)
	assert.Equal(t, int64(1), res.ReIdentified.Version, "re-identified local restarts at v1")
	assert.Equal(t, models.SyncStatePendingUpload, res.ReIdentified.SyncState)

	require.Len(t, res.Requeue, 1)
	assert.Equal(t, models.OperationUpload, res.Requeue[0].Kind)
	assert.Equal(t, res.ReIdentified.SyncID, res.Requeue[0].SyncID)
	assert.True(t, res.DiscardPending)
}

func TestResolve_UnknownStrategy(t *testing.T) {
	local, remote := pair()
	_, err := NewResolver().Resolve(local, remote, Strategy("coin-flip"))
	require.Error(t, err)

	_, err = ParseStrategy("coin-flip")
	require.Error(t, err)

	s, err := ParseStrategy("merge")
	require.NoError(t, err)
	assert.Equal(t, StrategyMerge, s)
}
