package entitlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/logging"
	"github.com/akaplins/paperkeep/internal/models"
	"github.com/sethvargo/go-retry"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultRetryBase = time.Second
	// 1 initial attempt + 2 retries = 3 attempts, backing off 1s -> 2s.
	providerRetries = 2
)

// Config tunes the gate. Zero values fall back to defaults.
type Config struct {
	// TTL is how long a fetched status is served from cache.
	TTL time.Duration

	// RetryBase is the first backoff interval of the provider retry loop.
	RetryBase time.Duration
}

type cacheEntry struct {
	info        models.EntitlementInfo
	lastChecked time.Time
}

// Gate decides whether cloud operations may proceed. The decision is cached
// in-process only: a restart always starts cold. On provider failure the gate
// degrades to a stale cached value if one exists, and otherwise fails safe to
// "no entitlement".
type Gate struct {
	provider  Provider
	log       logging.Logger
	ttl       time.Duration
	retryBase time.Duration
	now       func() time.Time

	mu        sync.Mutex
	cache     *cacheEntry
	lastCause models.DenialCause
}

func NewGate(provider Provider, log logging.Logger, cfg Config) *Gate {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	return &Gate{
		provider:  provider,
		log:       log,
		ttl:       cfg.TTL,
		retryBase: cfg.RetryBase,
		now:       time.Now,
	}
}

// SetNowFunc overrides the clock. Used by tests.
func (g *Gate) SetNowFunc(now func() time.Time) { g.now = now }

// GetStatus returns the entitlement status, from cache when fresh, otherwise
// from the provider with retry. After exhausted retries it degrades to a
// stale cache entry when one exists; with no cache at all it fails safe and
// returns common.ErrEntitlementCheck.
func (g *Gate) GetStatus(ctx context.Context) (models.EntitlementInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getStatusLocked(ctx, false)
}

// Refresh bypasses the cache unconditionally and queries the provider.
func (g *Gate) Refresh(ctx context.Context) (models.EntitlementInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getStatusLocked(ctx, true)
}

func (g *Gate) getStatusLocked(ctx context.Context, bypassCache bool) (models.EntitlementInfo, error) {
	if !bypassCache && g.cache != nil && g.now().Sub(g.cache.lastChecked) < g.ttl {
		return g.cache.info, nil
	}

	info, err := g.queryWithRetry(ctx)
	if err != nil {
		if g.cache != nil {
			g.log.Warn(ctx, "entitlement provider unreachable, using stale status",
				"status", g.cache.info.Status, "error", err)
			return g.cache.info, nil
		}
		g.log.Warn(ctx, "entitlement provider unreachable and no cached status, denying cloud sync", "error", err)
		return models.EntitlementInfo{Status: models.EntitlementNone},
			fmt.Errorf("%w: %w", common.ErrEntitlementCheck, err)
	}

	g.cache = &cacheEntry{info: info, lastChecked: g.now()}
	return info, nil
}

func (g *Gate) queryWithRetry(ctx context.Context) (models.EntitlementInfo, error) {
	var info models.EntitlementInfo
	backoff := retry.WithMaxRetries(providerRetries, retry.NewExponential(g.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		info, err = g.provider.QueryStatus(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return info, err
}

// CanPerformCloudSync reports whether cloud operations may proceed right now.
// Check failures are swallowed and treated as a denial, never propagated.
func (g *Gate) CanPerformCloudSync(ctx context.Context) bool {
	info, err := g.GetStatus(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case err != nil:
		g.lastCause = models.DenialCheckFailed
		return false
	case info.Status == models.EntitlementExpired:
		g.lastCause = models.DenialExpired
		return false
	case !info.Allows():
		g.lastCause = models.DenialNoEntitlement
		return false
	}
	g.lastCause = models.DenialNone
	return true
}

// DenialReason returns a human-readable reason and cause for the most recent
// denial. Empty when the last check allowed cloud sync.
func (g *Gate) DenialReason() (string, models.DenialCause) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.lastCause {
	case models.DenialNoEntitlement:
		return "no active subscription", g.lastCause
	case models.DenialCheckFailed:
		return "subscription status could not be verified", g.lastCause
	case models.DenialExpired:
		return "subscription expired", g.lastCause
	}
	return "", models.DenialNone
}

// ExecuteWithGating always runs localFn; cloudFn runs additionally only when
// the gate allows cloud sync. A failed gate check degrades to local-only.
func (g *Gate) ExecuteWithGating(ctx context.Context, cloudFn, localFn func(ctx context.Context) error) error {
	if err := localFn(ctx); err != nil {
		return err
	}
	if !g.CanPerformCloudSync(ctx) {
		reason, cause := g.DenialReason()
		g.log.Info(ctx, "cloud branch skipped", "reason", reason, "cause", cause)
		return nil
	}
	return cloudFn(ctx)
}

// Restore replays a past purchase through the provider and invalidates the
// cache so the next check sees the fresh state.
func (g *Gate) Restore(ctx context.Context) (models.EntitlementStatus, error) {
	status, err := g.provider.Restore(ctx)
	if err != nil {
		return models.EntitlementNone, err
	}
	g.ClearCache()
	return status, nil
}

// ClearCache resets the gate to its cold-start state.
func (g *Gate) ClearCache() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache = nil
	g.lastCause = models.DenialNone
}
