package cli

import (
	"context"
	"log"
)

// Restore replays a past subscription purchase and reports the new status.
func (a *App) Restore(ctx context.Context) error {
	status, err := a.gate.Restore(ctx)
	if err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}
	log.Printf("Subscription status: %s", status)
	return nil
}
