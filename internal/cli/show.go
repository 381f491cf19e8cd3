package cli

import (
	"context"
	"log"
	"os"
)

// Show prints one document in detail, including attachments and any pending
// conflict.
func (a *App) Show(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Enter document id to show", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	doc, err := a.store.GetDocument(ctx, id)
	if err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	log.Printf("Title: %s", doc.Title)
	log.Printf("Category: %s", doc.Category)
	log.Printf("Version: %d", doc.Version)
	log.Printf("State: %s", doc.SyncState)
	if doc.Notes != "" {
		log.Printf("Notes: %s", doc.Notes)
	}
	if doc.RenewalDate != nil {
		log.Printf("Renewal date: %s", doc.RenewalDate.Format("2006-01-02"))
	}
	for _, label := range doc.Labels {
		log.Printf("Label: %s", label)
	}

	atts, err := a.store.Attachments(ctx, id)
	if err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}
	for _, att := range atts {
		status := "local only"
		switch {
		case att.RemoteKey != "" && att.LocalPath != "":
			status = "synced"
		case att.NeedsDownload():
			status = "remote only"
		}
		log.Printf("Attachment: %s (%d bytes, %s)", att.FileName, att.FileSize, status)
	}

	if doc.ConflictID != "" {
		snap, err := a.store.ConflictSnapshot(ctx, doc.ConflictID)
		if err != nil {
			log.Printf("Error: %s", err.Error())
			return err
		}
		log.Printf("CONFLICT with remote v%d %q, detected %s; run 'resolve'",
			snap.Document.Version, snap.Document.Title, snap.DetectedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
