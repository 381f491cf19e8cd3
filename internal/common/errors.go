// Package common defines shared sentinel errors used across the PaperKeep
// engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("constraint violation")

	// Identifier errors.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// Sync state machine errors.
	ErrInvalidTransition = errors.New("invalid sync state transition")

	// Sync engine errors.
	ErrVersionConflict = errors.New("version conflict")
	ErrCycleInProgress = errors.New("sync cycle already in progress")

	// Entitlement errors.
	ErrEntitlementCheck = errors.New("entitlement check failed")
)
