package cli

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// List prints every document with its sync state.
func (a *App) List(ctx context.Context) error {
	docs, err := a.store.ListDocuments(ctx)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	for _, doc := range docs {
		line := fmt.Sprintf("%s  v%d  [%s]  %s", doc.SyncID, doc.Version, doc.SyncState, doc.Title)
		if doc.ConflictID != "" {
			line += "  (conflict!)"
		}
		if len(doc.Labels) > 0 {
			line += "  " + strings.Join(doc.Labels, ",")
		}
		fmt.Println(line)
	}
	return nil
}
