// Package syncqueue holds the ordered multiset of pending sync operations,
// keyed by sync identifier, and reduces it through consolidation so that at
// most one document-level operation per identifier reaches the remote.
package syncqueue

import (
	"context"
	"sort"
	"sync"

	"github.com/akaplins/paperkeep/internal/models"
	"github.com/akaplins/paperkeep/internal/repositories/operations"
)

// Queue is the in-memory operation queue with write-through persistence for
// crash durability. All methods are safe for concurrent use.
type Queue struct {
	mu   sync.Mutex
	ops  []*models.SyncOperation
	repo operations.Repository
}

// New returns an empty queue persisting through repo. A nil repo keeps the
// queue purely in memory (tests).
func New(repo operations.Repository) *Queue {
	return &Queue{repo: repo}
}

// Load replaces the in-memory state with the persisted rows, ordered by
// enqueue time. Called once at startup.
func (q *Queue) Load(ctx context.Context) error {
	if q.repo == nil {
		return nil
	}
	ops, err := q.repo.GetAll(ctx)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.ops = ops
	q.mu.Unlock()
	return nil
}

// Enqueue appends an operation and persists it.
func (q *Queue) Enqueue(ctx context.Context, op *models.SyncOperation) error {
	if q.repo != nil {
		if err := q.repo.Append(ctx, op); err != nil {
			return err
		}
	}
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
	return nil
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Snapshot returns the queued operations ordered by enqueue time.
func (q *Queue) Snapshot() []*models.SyncOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*models.SyncOperation, len(q.ops))
	copy(out, q.ops)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EnqueuedAt.Before(out[j].EnqueuedAt) })
	return out
}

// Remove drops every queued operation for the given identifier, in memory and
// in the persisted queue. Used after a successful remote application and when
// a resolution discards local pending work.
func (q *Queue) Remove(ctx context.Context, syncID string) error {
	if q.repo != nil {
		if _, err := q.repo.DeleteBySyncID(ctx, syncID); err != nil {
			return err
		}
	}
	q.mu.Lock()
	kept := q.ops[:0]
	for _, op := range q.ops {
		if op.SyncID != syncID {
			kept = append(kept, op)
		}
	}
	q.ops = kept
	q.mu.Unlock()
	return nil
}
