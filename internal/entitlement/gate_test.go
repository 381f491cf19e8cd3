package entitlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/logging"
	"github.com/akaplins/paperkeep/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider scripts provider responses; errsBeforeSuccess answers fail
// until that many calls have been made.
type fakeProvider struct {
	info              models.EntitlementInfo
	calls             int
	errsBeforeSuccess int
	alwaysFail        bool
}

func (p *fakeProvider) QueryStatus(ctx context.Context) (models.EntitlementInfo, error) {
	p.calls++
	if p.alwaysFail || p.calls <= p.errsBeforeSuccess {
		return models.EntitlementInfo{}, errors.New("provider unreachable")
	}
	return p.info, nil
}

func (p *fakeProvider) Restore(ctx context.Context) (models.EntitlementStatus, error) {
	return p.info.Status, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func activeProvider() *fakeProvider {
	return &fakeProvider{info: models.EntitlementInfo{Status: models.EntitlementActive, PlanID: "plus"}}
}

func newTestGate(p Provider) (*Gate, *time.Time) {
	g := NewGate(p, testLogger(), Config{RetryBase: time.Millisecond})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g.SetNowFunc(func() time.Time { return now })
	return g, &now
}

func TestGetStatus_CacheTTL(t *testing.T) {
	p := activeProvider()
	g, now := newTestGate(p)
	ctx := context.Background()

	info, err := g.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.EntitlementActive, info.Status)
	assert.Equal(t, 1, p.calls)

	// still within the 5 minute TTL: served from cache
	*now = now.Add(4*time.Minute + 59*time.Second)
	_, err = g.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls, "check at T0+4m59s must hit the cache")

	// past the TTL: provider queried again
	*now = now.Add(2 * time.Second)
	_, err = g.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls, "check at T0+5m01s must query the provider")
}

func TestGetStatus_RetriesThenSucceeds(t *testing.T) {
	p := activeProvider()
	p.errsBeforeSuccess = 2
	g, _ := newTestGate(p)

	info, err := g.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.EntitlementActive, info.Status)
	assert.Equal(t, 3, p.calls, "two failures then success within three attempts")
}

func TestGetStatus_FailSafeWithoutCache(t *testing.T) {
	p := &fakeProvider{alwaysFail: true}
	g, _ := newTestGate(p)

	info, err := g.GetStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrEntitlementCheck))
	assert.Equal(t, models.EntitlementNone, info.Status)
	assert.Equal(t, 3, p.calls, "all three attempts exhausted")

	assert.False(t, g.CanPerformCloudSync(context.Background()))
	reason, cause := g.DenialReason()
	assert.Equal(t, models.DenialCheckFailed, cause)
	assert.NotEmpty(t, reason)
}

func TestGetStatus_DegradesToStaleCache(t *testing.T) {
	p := activeProvider()
	g, now := newTestGate(p)
	ctx := context.Background()

	_, err := g.GetStatus(ctx)
	require.NoError(t, err)

	p.alwaysFail = true
	*now = now.Add(10 * time.Minute) // cache expired

	info, err := g.GetStatus(ctx)
	require.NoError(t, err, "stale cache degrades, not fails")
	assert.Equal(t, models.EntitlementActive, info.Status)
	assert.True(t, g.CanPerformCloudSync(ctx))
}

func TestCanPerformCloudSync_DenialCauses(t *testing.T) {
	tests := []struct {
		name   string
		status models.EntitlementStatus
		cause  models.DenialCause
	}{
		{"expired subscription", models.EntitlementExpired, models.DenialExpired},
		{"no subscription", models.EntitlementNone, models.DenialNoEntitlement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGate(&fakeProvider{info: models.EntitlementInfo{Status: tt.status}})
			assert.False(t, g.CanPerformCloudSync(context.Background()))
			_, cause := g.DenialReason()
			assert.Equal(t, tt.cause, cause)
		})
	}
}

func TestExecuteWithGating_LocalAlwaysRuns(t *testing.T) {
	p := &fakeProvider{alwaysFail: true}
	g, _ := newTestGate(p)

	var localRan, cloudRan bool
	err := g.ExecuteWithGating(context.Background(),
		func(ctx context.Context) error { cloudRan = true; return nil },
		func(ctx context.Context) error { localRan = true; return nil },
	)
	require.NoError(t, err, "gating failures are swallowed as a denial")
	assert.True(t, localRan, "local branch must always run")
	assert.False(t, cloudRan, "cloud branch denied on check failure")
}

func TestExecuteWithGating_CloudRunsWhenEntitled(t *testing.T) {
	g, _ := newTestGate(activeProvider())

	var localRan, cloudRan bool
	err := g.ExecuteWithGating(context.Background(),
		func(ctx context.Context) error { cloudRan = true; return nil },
		func(ctx context.Context) error { localRan = true; return nil },
	)
	require.NoError(t, err)
	assert.True(t, localRan)
	assert.True(t, cloudRan)
}

func TestRefresh_BypassesCache(t *testing.T) {
	p := activeProvider()
	g, _ := newTestGate(p)
	ctx := context.Background()

	_, err := g.GetStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, p.calls)

	_, err = g.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls, "refresh must skip the fresh cache")
}

func TestClearCache_ColdStart(t *testing.T) {
	p := activeProvider()
	g, _ := newTestGate(p)
	ctx := context.Background()

	_, err := g.GetStatus(ctx)
	require.NoError(t, err)
	g.ClearCache()

	_, err = g.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestRestore_InvalidatesCache(t *testing.T) {
	p := activeProvider()
	g, _ := newTestGate(p)
	ctx := context.Background()

	_, err := g.GetStatus(ctx)
	require.NoError(t, err)

	status, err := g.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.EntitlementActive, status)

	_, err = g.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls, "cache invalidated by restore")
}
