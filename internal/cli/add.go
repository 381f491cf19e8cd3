package cli

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/akaplins/paperkeep/internal/identifier"
	"github.com/akaplins/paperkeep/internal/models"
)

// Add creates a document locally and queues it for upload. The document is
// usable immediately; sync happens in the background.
func (a *App) Add(ctx context.Context) error {
	title, err := GetSimpleText(a.reader, "Title", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	category, err := GetSimpleText(a.reader, "Category", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	notes, err := GetMultiline(a.reader, "Notes", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	labels, err := GetLabels(a.reader, os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	doc := &models.Document{
		SyncID:   identifier.Generate(),
		Title:    title,
		Category: category,
		Notes:    notes,
		Labels:   labels,
	}

	renewal, err := GetSimpleText(a.reader, "Renewal date (YYYY-MM-DD, empty for none)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if renewal != "" {
		rd, err := time.Parse("2006-01-02", renewal)
		if err != nil {
			log.Printf("invalid renewal date: %v", err)
			return err
		}
		doc.RenewalDate = &rd
	}

	if err := a.store.CreateDocument(ctx, doc); err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}
	if err := a.queue.Enqueue(ctx, &models.SyncOperation{
		Kind:       models.OperationUpload,
		SyncID:     doc.SyncID,
		Document:   doc.Clone(),
		EnqueuedAt: time.Now(),
	}); err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	log.Printf("Created %s", doc.SyncID)
	return nil
}
