package cli

import (
	"context"
	"log"
	"os"
)

// Switch changes the active identity. Each identity has its own local
// database; the in-flight sync cycle (if any) is drained first so the store
// is never swapped underneath the engine.
func (a *App) Switch(ctx context.Context) error {
	identity, err := GetSimpleText(a.reader, "Enter identity name", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if identity == "" || identity == a.identity {
		log.Printf("Staying on identity %q", a.identity)
		return nil
	}

	a.orch.WaitIdle()
	if err := a.store.Close(); err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	if err := a.openIdentity(ctx, identity); err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}
	a.gate.ClearCache()

	log.Printf("Switched to identity %q", identity)
	return nil
}
