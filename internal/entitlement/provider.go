// Package entitlement gates cloud sync behind a cached, fail-safe
// subscription check. Local-only operations are never blocked by the gate.
package entitlement

import (
	"context"

	"github.com/akaplins/paperkeep/internal/models"
)

// Provider is the external entitlement (billing) backend. Consumed, never
// implemented by the engine beyond the static variant below.
type Provider interface {
	// QueryStatus asks the provider for the current subscription state.
	QueryStatus(ctx context.Context) (models.EntitlementInfo, error)

	// Restore replays a past purchase and returns the resulting status.
	Restore(ctx context.Context) (models.EntitlementStatus, error)
}

// StaticProvider always answers with a fixed status. Useful for local-only
// and development setups where no billing backend exists.
type StaticProvider struct {
	Info models.EntitlementInfo
}

func (p StaticProvider) QueryStatus(ctx context.Context) (models.EntitlementInfo, error) {
	return p.Info, nil
}

func (p StaticProvider) Restore(ctx context.Context) (models.EntitlementStatus, error) {
	return p.Info.Status, nil
}
