// Package cli is the interactive front end: a small REPL over the sync
// engine, plus the composition root wiring store, queue, gate, resolver and
// remote adapter together.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akaplins/paperkeep/internal/config"
	"github.com/akaplins/paperkeep/internal/entitlement"
	"github.com/akaplins/paperkeep/internal/logging"
	"github.com/akaplins/paperkeep/internal/models"
	"github.com/akaplins/paperkeep/internal/remote"
	"github.com/akaplins/paperkeep/internal/repositories/operations"
	"github.com/akaplins/paperkeep/internal/store"
	"github.com/akaplins/paperkeep/internal/syncer"
	"github.com/akaplins/paperkeep/internal/syncqueue"
	_ "modernc.org/sqlite"
)

// App ties the engine components to the interactive loop. One App serves one
// identity at a time; Switch tears the storage side down and rebuilds it.
type App struct {
	config   *config.Config
	log      logging.Logger
	adapter  remote.Adapter
	provider entitlement.Provider

	store    *store.Store
	queue    *syncqueue.Queue
	gate     *entitlement.Gate
	orch     *syncer.Orchestrator
	identity string

	reader *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	a := &App{
		config: c,
		log:    logger,
		// local-only defaults; a cloud build swaps these for real backends
		adapter:  remote.NewMemoryAdapter(),
		provider: entitlement.StaticProvider{Info: models.EntitlementInfo{Status: models.EntitlementActive}},
		reader:   bufio.NewReader(os.Stdin),
	}
	if err := a.openIdentity(context.Background(), "default"); err != nil {
		return nil, err
	}
	return a, nil
}

// openIdentity opens (or creates) the per-identity database and rebuilds the
// engine stack on top of it.
func (a *App) openIdentity(ctx context.Context, identity string) error {
	st, err := store.Open(ctx, a.identityDSN(identity))
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}

	// a crash mid-transfer leaves documents in uploading/downloading; back
	// them out before the persisted queue replays their operations
	recovered, err := st.RecoverInFlight(ctx)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("recovering interrupted transfers: %w", err)
	}
	if recovered > 0 {
		a.log.Warn(ctx, "recovered interrupted transfers", "count", recovered)
	}

	q := syncqueue.New(operations.NewSQLiteRepository(st.DB()))
	if err := q.Load(ctx); err != nil {
		_ = st.Close()
		return fmt.Errorf("loading persisted queue: %w", err)
	}

	a.store = st
	a.queue = q
	a.gate = entitlement.NewGate(a.provider, a.log, entitlement.Config{TTL: a.config.EntitlementTTL})
	a.orch = syncer.New(st, q, a.gate, a.adapter, a.log, syncer.Config{
		MaxParallel:   a.config.MaxParallelOps,
		AttachmentDir: a.config.AttachmentDir,
	})
	a.identity = identity
	return nil
}

func (a *App) identityDSN(identity string) string {
	base := a.config.DatabasePath
	if identity == "default" {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + identity + ext
}

// Run starts the background sync ticker and the REPL, and blocks until the
// user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = a.store.Close() }()

	go a.printEvents(ctx)
	go a.backgroundSync(ctx)

	fmt.Println("PaperKeep CLI (type 'help' for commands)")
	runREPL(ctx, a, func() string { return a.identity }, bufio.NewScanner(os.Stdin))
}

// backgroundSync runs a cycle on every tick. A cycle already in flight makes
// the tick a no-op.
func (a *App) backgroundSync(ctx context.Context) {
	if a.config.SyncInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := a.orch.RunCycle(ctx); err != nil {
				a.log.Debug(ctx, "background cycle skipped", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) printEvents(ctx context.Context) {
	for {
		select {
		case ev := <-a.orch.Events():
			if ev.Type == models.EventConflictDetected || ev.Type == models.EventSyncFailed {
				log.Printf("[%s] %s %s", ev.Type, ev.SyncID, ev.Message)
			}
		case <-ctx.Done():
			return
		}
	}
}
