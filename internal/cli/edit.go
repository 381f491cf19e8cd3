package cli

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/akaplins/paperkeep/internal/models"
)

// Edit applies a partial update to a document and queues it for sync. Empty
// inputs leave the corresponding field untouched. The version is bumped only
// when this is the first edit since the last sync; further edits fold into
// the same pending revision.
func (a *App) Edit(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Enter document id to edit", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	doc, err := a.store.GetDocument(ctx, id)
	if err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	patch := &models.DocumentPatch{}
	title, err := GetSimpleText(a.reader, "Title (empty to keep "+doc.Title+")", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if title != "" {
		patch.Title = &title
	}
	category, err := GetSimpleText(a.reader, "Category (empty to keep)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if category != "" {
		patch.Category = &category
	}
	notes, err := GetMultiline(a.reader, "Notes (empty to keep)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if notes != "" {
		patch.Notes = &notes
	}

	if patch.IsZero() {
		log.Println("Nothing to change")
		return nil
	}

	bump := doc.SyncState == models.SyncStateSynced
	updated, err := a.store.UpdateDocument(ctx, doc.SyncID, patch, bump)
	if err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}
	if err := a.queue.Enqueue(ctx, &models.SyncOperation{
		Kind:       models.OperationUpdate,
		SyncID:     updated.SyncID,
		Document:   updated.Clone(),
		Patch:      patch,
		EnqueuedAt: time.Now(),
	}); err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	log.Printf("Updated %s (v%d)", updated.SyncID, updated.Version)
	return nil
}
