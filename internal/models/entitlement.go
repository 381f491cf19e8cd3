package models

import "time"

// EntitlementStatus is the provider-reported subscription state.
type EntitlementStatus string

const (
	EntitlementActive  EntitlementStatus = "active"
	EntitlementExpired EntitlementStatus = "expired"
	EntitlementNone    EntitlementStatus = "none"
)

// EntitlementInfo is the provider's answer to a status query.
type EntitlementInfo struct {
	Status    EntitlementStatus
	ExpiresAt *time.Time
	PlanID    string
}

// Allows reports whether cloud operations may proceed under this status.
func (i EntitlementInfo) Allows() bool {
	return i.Status == EntitlementActive
}

// DenialCause classifies why cloud sync was denied.
type DenialCause string

const (
	DenialNone          DenialCause = ""
	DenialNoEntitlement DenialCause = "no_entitlement"
	DenialCheckFailed   DenialCause = "check_failed"
	DenialExpired       DenialCause = "expired"
)
