// Package models defines the client-side data model of the PaperKeep sync
// engine: documents, file attachments, queued sync operations and the events
// the engine publishes while reconciling local and remote state.
package models

import (
	"slices"
	"time"
)

// Document is a locally stored, remotely synchronized document record.
//
// SyncID is the immutable, globally unique join key between the local row and
// its remote counterpart. Version is monotonic and bumped only through
// BumpVersion: a plain field update never changes it, the caller decides when
// a mutation represents a new syncable revision.
type Document struct {
	SyncID      string
	Title       string
	Category    string
	Notes       string
	Labels      []string
	RenewalDate *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
	SyncState   SyncState

	// ConflictID references a stored remote snapshot when a version conflict
	// is awaiting a resolution strategy. Empty means no conflict.
	ConflictID string
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	c.Labels = slices.Clone(d.Labels)
	if d.RenewalDate != nil {
		rd := *d.RenewalDate
		c.RenewalDate = &rd
	}
	return &c
}

// BumpVersion marks the document as a new syncable revision.
func (d *Document) BumpVersion() {
	d.Version++
}

// ContentEquals compares the user-visible fields, ignoring sync bookkeeping
// (state, version, conflict id, timestamps).
func (d *Document) ContentEquals(other *Document) bool {
	if d.Title != other.Title || d.Category != other.Category || d.Notes != other.Notes {
		return false
	}
	if !slices.Equal(d.Labels, other.Labels) {
		return false
	}
	switch {
	case d.RenewalDate == nil && other.RenewalDate == nil:
	case d.RenewalDate == nil || other.RenewalDate == nil:
		return false
	case !d.RenewalDate.Equal(*other.RenewalDate):
		return false
	}
	return true
}

// DocumentPatch is an explicit partial update: only non-nil fields are
// applied. It replaces ad-hoc copy-with mutation so that invariants (version,
// sync id) cannot be touched by a field update.
type DocumentPatch struct {
	Title       *string    `json:"title,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	Labels      *[]string  `json:"labels,omitempty"`
	RenewalDate *time.Time `json:"renewal_date,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p *DocumentPatch) IsZero() bool {
	return p == nil || (p.Title == nil && p.Category == nil && p.Notes == nil &&
		p.Labels == nil && p.RenewalDate == nil)
}

// Apply copies the set fields of p onto d.
func (p *DocumentPatch) Apply(d *Document) {
	if p == nil {
		return
	}
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	if p.Labels != nil {
		d.Labels = slices.Clone(*p.Labels)
	}
	if p.RenewalDate != nil {
		rd := *p.RenewalDate
		d.RenewalDate = &rd
	}
}

// Overlay merges a later patch over p, the later patch winning per field.
func (p *DocumentPatch) Overlay(later *DocumentPatch) *DocumentPatch {
	if p == nil {
		return later
	}
	if later == nil {
		return p
	}
	merged := *p
	if later.Title != nil {
		merged.Title = later.Title
	}
	if later.Category != nil {
		merged.Category = later.Category
	}
	if later.Notes != nil {
		merged.Notes = later.Notes
	}
	if later.Labels != nil {
		merged.Labels = later.Labels
	}
	if later.RenewalDate != nil {
		merged.RenewalDate = later.RenewalDate
	}
	return &merged
}
