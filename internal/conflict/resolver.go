// Package conflict detects version collisions between local and remote
// document snapshots and computes resolution outcomes. The resolver is pure:
// it returns what should happen, the sync engine applies it.
package conflict

import (
	"fmt"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/identifier"
	"github.com/akaplins/paperkeep/internal/models"
)

// Strategy selects how a detected conflict is resolved.
type Strategy string

const (
	StrategyKeepLocal  Strategy = "keepLocal"
	StrategyKeepRemote Strategy = "keepRemote"
	StrategyMerge      Strategy = "merge"
	StrategyKeepBoth   Strategy = "keepBoth"
)

// ParseStrategy maps a user-supplied name to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyKeepLocal, StrategyKeepRemote, StrategyMerge, StrategyKeepBoth:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q", s)
}

// Detected reports whether applying remote over local is a version conflict:
// either the versions diverged, or the versions match but the content does
// not (a silent overwrite would lose data).
func Detected(local, remote *models.Document) bool {
	if remote.Version != local.Version {
		return true
	}
	return !local.ContentEquals(remote)
}

// Resolution is the outcome of resolving one conflict.
type Resolution struct {
	// Document is the canonical document kept under the original identifier.
	Document *models.Document

	// ReIdentified is the local snapshot under a fresh identifier. Set only
	// for keepBoth.
	ReIdentified *models.Document

	// Requeue lists operations the engine must enqueue to propagate the
	// outcome.
	Requeue []*models.SyncOperation

	// DiscardPending tells the engine to drop queued operations for the
	// original identifier.
	DiscardPending bool
}

// Resolver computes resolutions. The id generator and clock are injectable
// for tests.
type Resolver struct {
	generateID func() string
	now        func() time.Time
}

func NewResolver() *Resolver {
	return &Resolver{generateID: identifier.Generate, now: time.Now}
}

// SetIDFunc overrides identifier generation. Used by tests.
func (r *Resolver) SetIDFunc(fn func() string) { r.generateID = fn }

// SetNowFunc overrides the clock. Used by tests.
func (r *Resolver) SetNowFunc(fn func() time.Time) { r.now = fn }

// Resolve applies strategy to a local/remote pair and returns the outcome.
func (r *Resolver) Resolve(local, remote *models.Document, strategy Strategy) (*Resolution, error) {
	switch strategy {
	case StrategyKeepLocal:
		return r.keepLocal(local, remote), nil
	case StrategyKeepRemote:
		return r.keepRemote(remote), nil
	case StrategyMerge:
		return r.merge(local, remote), nil
	case StrategyKeepBoth:
		return r.keepBoth(local, remote), nil
	}
	return nil, fmt.Errorf("unknown conflict strategy %q", strategy)
}

// keepLocal re-submits the local snapshot on top of the remote version.
func (r *Resolver) keepLocal(local, remote *models.Document) *Resolution {
	doc := local.Clone()
	doc.Version = remote.Version + 1
	doc.SyncState = models.SyncStatePendingUpload
	doc.ConflictID = ""
	return &Resolution{
		Document:       doc,
		DiscardPending: true,
		Requeue: []*models.SyncOperation{{
			Kind:       models.OperationUpdate,
			SyncID:     doc.SyncID,
			Document:   doc.Clone(),
			EnqueuedAt: r.now(),
		}},
	}
}

// keepRemote overwrites local state; pending local operations are discarded.
func (r *Resolver) keepRemote(remote *models.Document) *Resolution {
	doc := remote.Clone()
	doc.SyncState = models.SyncStateSynced
	doc.ConflictID = ""
	return &Resolution{Document: doc, DiscardPending: true}
}

// merge keeps, per field, the side with the later updated_at, and bumps the
// version past both sides.
func (r *Resolver) merge(local, remote *models.Document) *Resolution {
	newer, older := local, remote
	if remote.UpdatedAt.After(local.UpdatedAt) {
		newer, older = remote, local
	}

	doc := older.Clone()
	patch := &models.DocumentPatch{}
	if newer.Title != older.Title {
		patch.Title = &newer.Title
	}
	if newer.Category != older.Category {
		patch.Category = &newer.Category
	}
	if newer.Notes != older.Notes {
		patch.Notes = &newer.Notes
	}
	if len(newer.Labels) > 0 || len(older.Labels) > 0 {
		labels := newer.Labels
		patch.Labels = &labels
	}
	if newer.RenewalDate != nil {
		patch.RenewalDate = newer.RenewalDate
	}
	patch.Apply(doc)

	doc.Version = max(local.Version, remote.Version) + 1
	doc.UpdatedAt = newer.UpdatedAt
	doc.SyncState = models.SyncStatePendingUpload
	doc.ConflictID = ""
	return &Resolution{
		Document:       doc,
		DiscardPending: true,
		Requeue: []*models.SyncOperation{{
			Kind:       models.OperationUpdate,
			SyncID:     doc.SyncID,
			Document:   doc.Clone(),
			EnqueuedAt: r.now(),
		}},
	}
}

// keepBoth keeps the remote under the original identifier and re-queues the
// local snapshot as a brand-new document.
func (r *Resolver) keepBoth(local, remote *models.Document) *Resolution {
	kept := remote.Clone()
	kept.SyncState = models.SyncStateSynced
	kept.ConflictID = ""

	reborn := local.Clone()
	reborn.SyncID = r.generateID()
	reborn.Version = 1
	reborn.SyncState = models.SyncStatePendingUpload
	reborn.ConflictID = ""

	return &Resolution{
		Document:       kept,
		ReIdentified:   reborn,
		DiscardPending: true,
		Requeue: []*models.SyncOperation{{
			Kind:       models.OperationUpload,
			SyncID:     reborn.SyncID,
			Document:   reborn.Clone(),
			EnqueuedAt: r.now(),
		}},
	}
}

// VersionConflictError wraps common.ErrVersionConflict with both snapshots so
// callers can route the pair to a resolution strategy.
type VersionConflictError struct {
	Local  *models.Document
	Remote *models.Document
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: local v%d, remote v%d",
		e.Local.SyncID, e.Local.Version, e.Remote.Version)
}

func (e *VersionConflictError) Unwrap() error { return common.ErrVersionConflict }
