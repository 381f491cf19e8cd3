package cli

import (
	"context"
	"log"
	"os"

	"github.com/akaplins/paperkeep/internal/conflict"
)

// Resolve applies a conflict resolution strategy to a suspended document.
func (a *App) Resolve(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Enter document id to resolve", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	raw, err := GetSimpleText(a.reader, "Strategy (keepLocal, keepRemote, merge, keepBoth)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	strategy, err := conflict.ParseStrategy(raw)
	if err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	res, err := a.orch.ResolveConflict(ctx, id, strategy)
	if err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	log.Printf("Resolved %s with %s, kept %q at v%d", id, strategy, res.Document.Title, res.Document.Version)
	if res.ReIdentified != nil {
		log.Printf("Local copy kept as new document %s", res.ReIdentified.SyncID)
	}
	return nil
}
