package cli

import (
	"context"
	"log"

	"github.com/akaplins/paperkeep/internal/models"
)

// Status summarizes the queue, the per-state document counts and the
// entitlement verdict.
func (a *App) Status(ctx context.Context) error {
	docs, err := a.store.ListDocuments(ctx)
	if err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	counts := make(map[models.SyncState]int)
	conflicted := 0
	for _, doc := range docs {
		counts[doc.SyncState]++
		if doc.ConflictID != "" {
			conflicted++
		}
	}

	log.Printf("Identity: %s", a.identity)
	log.Printf("Documents: %d total, %d conflicted", len(docs), conflicted)
	for _, state := range []models.SyncState{
		models.SyncStatePendingUpload, models.SyncStateUploading,
		models.SyncStatePendingDownload, models.SyncStateDownloading,
		models.SyncStateSynced, models.SyncStateError,
	} {
		if counts[state] > 0 {
			log.Printf("  %s: %d", state, counts[state])
		}
	}
	log.Printf("Queued operations: %d", a.queue.Len())

	if a.gate.CanPerformCloudSync(ctx) {
		log.Println("Cloud sync: allowed")
	} else {
		reason, cause := a.gate.DenialReason()
		log.Printf("Cloud sync: denied (%s, %s)", reason, cause)
	}
	return nil
}
