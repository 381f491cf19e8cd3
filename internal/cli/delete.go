package cli

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/akaplins/paperkeep/internal/models"
)

// Delete removes a document locally and queues the remote deletion.
func (a *App) Delete(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Enter document id to delete", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if err := a.store.DeleteDocument(ctx, id); err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}
	if err := a.queue.Enqueue(ctx, &models.SyncOperation{
		Kind:       models.OperationDelete,
		SyncID:     id,
		EnqueuedAt: time.Now(),
	}); err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	log.Printf("Deleted %s", id)
	return nil
}
