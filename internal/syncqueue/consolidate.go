package syncqueue

import (
	"context"
	"sort"

	"github.com/akaplins/paperkeep/internal/models"
)

// ConsolidationReport summarizes one consolidation pass. Used for tests and
// telemetry, not for UI.
type ConsolidationReport struct {
	OriginalCount int
	FinalCount    int

	// Reduced maps each touched identifier to the number of operations
	// removed for it.
	Reduced map[string]int
}

// Consolidate groups queued operations by identifier and reduces each group,
// in enqueue order, to at most one operation:
//
//   - delete overrides and discards everything queued before it;
//   - upload/update after a delete is a re-creation and replaces the delete;
//   - consecutive upload/update operations merge field-by-field, the later
//     operation winning per field; the kind stays upload if any member was an
//     upload, the priority is the maximum observed, and the earliest enqueue
//     time is kept so FIFO fairness across identifiers is preserved.
//
// The queue and its persisted rows are rewritten with the reduced set.
func (q *Queue) Consolidate(ctx context.Context) (*ConsolidationReport, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	report := &ConsolidationReport{
		OriginalCount: len(q.ops),
		Reduced:       make(map[string]int),
	}

	groups := make(map[string][]*models.SyncOperation)
	order := make([]string, 0)
	for _, op := range q.ops {
		if _, seen := groups[op.SyncID]; !seen {
			order = append(order, op.SyncID)
		}
		groups[op.SyncID] = append(groups[op.SyncID], op)
	}

	var reduced []*models.SyncOperation
	for _, syncID := range order {
		group := groups[syncID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].EnqueuedAt.Before(group[j].EnqueuedAt)
		})

		result := reduceGroup(group)
		removed := len(group)
		if result != nil {
			reduced = append(reduced, result)
			removed--
		}
		if removed > 0 {
			report.Reduced[syncID] = removed
		}

		if q.repo != nil && removed > 0 {
			var replacement []*models.SyncOperation
			if result != nil {
				replacement = []*models.SyncOperation{result}
			}
			if err := q.repo.Replace(ctx, syncID, replacement); err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(reduced, func(i, j int) bool {
		return reduced[i].EnqueuedAt.Before(reduced[j].EnqueuedAt)
	})
	q.ops = reduced
	report.FinalCount = len(reduced)
	return report, nil
}

// reduceGroup folds an enqueue-ordered group into at most one operation.
func reduceGroup(group []*models.SyncOperation) *models.SyncOperation {
	var result *models.SyncOperation
	for _, op := range group {
		switch {
		case op.Kind == models.OperationDelete:
			result = op
		case result == nil || result.Kind == models.OperationDelete:
			// first write, or a re-creation after a queued delete
			result = op
		default:
			result = mergeOps(result, op)
		}
	}
	return result
}

// mergeOps merges a later upload/update over an earlier one.
func mergeOps(earlier, later *models.SyncOperation) *models.SyncOperation {
	merged := &models.SyncOperation{
		SyncID:     earlier.SyncID,
		Kind:       models.OperationUpdate,
		EnqueuedAt: earlier.EnqueuedAt,
		Priority:   max(earlier.Priority, later.Priority),
	}
	if earlier.Kind == models.OperationUpload || later.Kind == models.OperationUpload {
		merged.Kind = models.OperationUpload
	}

	switch {
	case later.Patch != nil:
		// later touched specific fields: apply them over the earlier payload
		if earlier.Document != nil {
			doc := earlier.Document.Clone()
			later.Patch.Apply(doc)
			if later.Document != nil {
				doc.UpdatedAt = later.Document.UpdatedAt
				doc.Version = later.Document.Version
			}
			merged.Document = doc
		} else if later.Document != nil {
			merged.Document = later.Document.Clone()
		}
		merged.Patch = earlier.Patch.Overlay(later.Patch)
	case later.Document != nil:
		// later carried a full snapshot: it wins wholesale
		merged.Document = later.Document.Clone()
		merged.Patch = nil
	default:
		merged.Document = earlier.Document
		merged.Patch = earlier.Patch
	}
	return merged
}
