package cli

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
)

// Sync runs one cycle immediately and prints the outcome.
func (a *App) Sync(ctx context.Context) error {
	sum, err := a.orch.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, common.ErrCycleInProgress) {
			log.Println("A sync cycle is already running")
			return nil
		}
		log.Printf("Error: %s", err.Error())
		return err
	}

	if sum.LocalOnly {
		log.Printf("Local-only: %s", sum.Reason)
		return nil
	}
	log.Printf("Sync finished in %s: uploaded %d, downloaded %d, conflicts %d, failed %d",
		sum.Elapsed.Round(time.Millisecond), sum.Uploaded, sum.Downloaded, sum.Conflicts, sum.Failed)
	return nil
}
