// Package syncer runs synchronization cycles: consolidate the queue, gate on
// entitlement, push pending operations to the remote with bounded parallelism,
// then pull remote changes newer than the stored watermark.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/conflict"
	"github.com/akaplins/paperkeep/internal/entitlement"
	"github.com/akaplins/paperkeep/internal/filex"
	"github.com/akaplins/paperkeep/internal/identifier"
	"github.com/akaplins/paperkeep/internal/logging"
	"github.com/akaplins/paperkeep/internal/models"
	"github.com/akaplins/paperkeep/internal/remote"
	"github.com/akaplins/paperkeep/internal/store"
	"github.com/akaplins/paperkeep/internal/syncqueue"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxParallel = 3
	defaultRetryBase   = 500 * time.Millisecond
	defaultEventBuffer = 64
	// 1 initial attempt + 2 retries per remote call.
	remoteRetries = 2
)

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	// MaxParallel bounds concurrent remote operations within one cycle.
	MaxParallel int

	// RetryBase is the first backoff interval for transient remote failures.
	RetryBase time.Duration

	// EventBuffer sizes the event channel. Slow consumers lose events rather
	// than stall the engine.
	EventBuffer int

	// AttachmentDir is where downloaded attachment files land, one
	// subdirectory per document.
	AttachmentDir string
}

// Summary describes the outcome of one sync cycle.
type Summary struct {
	Uploaded   int
	Downloaded int
	Failed     int
	Conflicts  int
	Elapsed    time.Duration

	// LocalOnly is set when the entitlement gate denied cloud sync; Reason
	// carries the human-readable denial.
	LocalOnly bool
	Reason    string
}

// Orchestrator coordinates the store, queue, gate, resolver and remote
// adapter. At most one cycle runs at a time; a concurrent RunCycle returns
// common.ErrCycleInProgress instead of queueing up behind the first.
type Orchestrator struct {
	store    *store.Store
	queue    *syncqueue.Queue
	gate     *entitlement.Gate
	adapter  remote.Adapter
	resolver *conflict.Resolver
	log      logging.Logger

	maxParallel   int
	retryBase     time.Duration
	attachmentDir string
	now           func() time.Time
	generateID    func() string

	cycleMu sync.Mutex
	events  chan models.SyncEvent
	locks   *keyedLocks
}

func New(st *store.Store, q *syncqueue.Queue, gate *entitlement.Gate, adapter remote.Adapter, log logging.Logger, cfg Config) *Orchestrator {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if cfg.AttachmentDir == "" {
		cfg.AttachmentDir = "attachments"
	}
	return &Orchestrator{
		store:         st,
		queue:         q,
		gate:          gate,
		adapter:       adapter,
		resolver:      conflict.NewResolver(),
		log:           log,
		maxParallel:   cfg.MaxParallel,
		retryBase:     cfg.RetryBase,
		attachmentDir: cfg.AttachmentDir,
		now:           time.Now,
		generateID:    identifier.Generate,
		events:        make(chan models.SyncEvent, cfg.EventBuffer),
		locks:         newKeyedLocks(),
	}
}

// SetNowFunc overrides the clock. Used by tests.
func (o *Orchestrator) SetNowFunc(now func() time.Time) { o.now = now }

// SetIDFunc overrides identifier generation. Used by tests.
func (o *Orchestrator) SetIDFunc(fn func() string) { o.generateID = fn }

// Events exposes the engine's event stream. The channel is never closed.
func (o *Orchestrator) Events() <-chan models.SyncEvent { return o.events }

// WaitIdle blocks until no cycle is running. Callers switching identity use
// it to drain in-flight work before swapping the store underneath the engine.
func (o *Orchestrator) WaitIdle() {
	o.cycleMu.Lock()
	o.cycleMu.Unlock() // acquire-release: returns once no cycle holds the lock
}

func (o *Orchestrator) emit(typ models.SyncEventType, syncID, message string) {
	ev := models.SyncEvent{Type: typ, SyncID: syncID, Message: message, Timestamp: o.now()}
	select {
	case o.events <- ev:
	default:
		// consumer is behind, dropping beats stalling the cycle
	}
}

// RunCycle performs one full synchronization cycle. Cancellation via ctx is
// honored between operations; the operation in flight finishes first.
func (o *Orchestrator) RunCycle(ctx context.Context) (*Summary, error) {
	if !o.cycleMu.TryLock() {
		return nil, common.ErrCycleInProgress
	}
	defer o.cycleMu.Unlock()

	started := o.now()
	o.emit(models.EventSyncStarted, "", "sync cycle started")

	if !o.gate.CanPerformCloudSync(ctx) {
		reason, cause := o.gate.DenialReason()
		o.log.Info(ctx, "cloud sync denied, staying local-only", "reason", reason, "cause", cause)
		o.emit(models.EventSyncCompleted, "", "local-only: "+reason)
		return &Summary{LocalOnly: true, Reason: reason, Elapsed: o.now().Sub(started)}, nil
	}

	report, err := o.queue.Consolidate(ctx)
	if err != nil {
		return nil, fmt.Errorf("consolidating queue: %w", err)
	}
	if report.OriginalCount != report.FinalCount {
		o.log.Debug(ctx, "queue consolidated",
			"before", report.OriginalCount, "after", report.FinalCount)
	}

	summary := &Summary{}
	var summaryMu sync.Mutex
	uploadedNow := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxParallel)
	for _, op := range o.queue.Snapshot() {
		op := op
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o.locks.Lock(op.SyncID)
			defer o.locks.Unlock(op.SyncID)

			outcome := o.processOperation(gctx, op)
			summaryMu.Lock()
			defer summaryMu.Unlock()
			switch outcome {
			case outcomeApplied:
				summary.Uploaded++
				uploadedNow[op.SyncID] = true
			case outcomeConflict:
				summary.Conflicts++
			case outcomeFailed:
				summary.Failed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.emit(models.EventSyncFailed, "", "sync cycle interrupted")
		summary.Elapsed = o.now().Sub(started)
		return summary, err
	}

	if err := ctx.Err(); err != nil {
		summary.Elapsed = o.now().Sub(started)
		return summary, err
	}

	downloaded, conflicts, err := o.pullRemoteChanges(ctx, uploadedNow)
	summary.Downloaded = downloaded
	summary.Conflicts += conflicts
	if err != nil {
		o.emit(models.EventSyncFailed, "", "download phase failed: "+err.Error())
		summary.Elapsed = o.now().Sub(started)
		return summary, err
	}

	if err := o.downloadAttachments(ctx); err != nil {
		o.log.Warn(ctx, "attachment download incomplete", "error", err)
	}

	summary.Elapsed = o.now().Sub(started)
	o.emit(models.EventSyncCompleted, "",
		fmt.Sprintf("uploaded %d, downloaded %d, failed %d", summary.Uploaded, summary.Downloaded, summary.Failed))
	return summary, nil
}

type opOutcome int

const (
	outcomeSkipped opOutcome = iota
	outcomeApplied
	outcomeConflict
	outcomeFailed
)

func (o *Orchestrator) processOperation(ctx context.Context, op *models.SyncOperation) opOutcome {
	if op.Kind == models.OperationDelete {
		return o.processDelete(ctx, op)
	}

	doc, err := o.store.GetDocument(ctx, op.SyncID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// document vanished since enqueue, nothing to push
			_ = o.queue.Remove(ctx, op.SyncID)
			return outcomeSkipped
		}
		o.log.Error(ctx, "loading document for sync", "sync_id", op.SyncID, "error", err)
		return outcomeFailed
	}
	if doc.ConflictID != "" {
		o.log.Debug(ctx, "skipping conflicted document", "sync_id", op.SyncID)
		return outcomeSkipped
	}

	if doc, err = o.markUploading(ctx, doc); err != nil {
		o.log.Error(ctx, "state transition failed", "sync_id", op.SyncID, "error", err)
		return outcomeFailed
	}
	o.emit(models.EventStateChanged, doc.SyncID, string(models.SyncStateUploading))

	pushErr := o.push(ctx, op, doc)

	var vm *remote.VersionMismatchError
	switch {
	case pushErr == nil:
		if _, err := o.store.TransitionState(ctx, doc.SyncID, models.SyncStateSynced); err != nil {
			o.log.Error(ctx, "marking synced", "sync_id", doc.SyncID, "error", err)
			return outcomeFailed
		}
		if err := o.uploadAttachments(ctx, doc.SyncID); err != nil {
			o.log.Warn(ctx, "attachment upload incomplete", "sync_id", doc.SyncID, "error", err)
		}
		_ = o.queue.Remove(ctx, doc.SyncID)
		o.emit(models.EventDocumentUploaded, doc.SyncID, doc.Title)
		return outcomeApplied

	case errors.As(pushErr, &vm):
		conflictID := o.generateID()
		if err := o.store.SetConflict(ctx, doc.SyncID, vm.Remote, conflictID); err != nil {
			o.log.Error(ctx, "recording conflict", "sync_id", doc.SyncID, "error", err)
			return outcomeFailed
		}
		o.emit(models.EventConflictDetected, doc.SyncID,
			fmt.Sprintf("local v%d vs remote v%d", doc.Version, vm.Remote.Version))
		return outcomeConflict

	default:
		if _, err := o.store.TransitionState(ctx, doc.SyncID, models.SyncStateError); err != nil {
			o.log.Error(ctx, "marking error state", "sync_id", doc.SyncID, "error", err)
		}
		o.emit(models.EventSyncFailed, doc.SyncID, pushErr.Error())
		o.log.Warn(ctx, "operation failed", "sync_id", doc.SyncID, "kind", op.Kind, "error", pushErr)
		return outcomeFailed
	}
}

// markUploading moves the document into uploading, taking the extra hop
// through pendingUpload when it sits in error from a previous cycle. A
// document already in uploading is an interrupted attempt replayed from the
// persisted queue; it stays put and the push is retried.
func (o *Orchestrator) markUploading(ctx context.Context, doc *models.Document) (*models.Document, error) {
	switch doc.SyncState {
	case models.SyncStateUploading:
		return doc, nil
	case models.SyncStateError:
		d, err := o.store.TransitionState(ctx, doc.SyncID, models.SyncStatePendingUpload)
		if err != nil {
			return nil, err
		}
		doc = d
	}
	return o.store.TransitionState(ctx, doc.SyncID, models.SyncStateUploading)
}

// push sends one upload or update to the remote, retrying transient failures.
func (o *Orchestrator) push(ctx context.Context, op *models.SyncOperation, doc *models.Document) error {
	return o.withRetry(ctx, func(ctx context.Context) error {
		switch op.Kind {
		case models.OperationUpload:
			err := o.adapter.Create(ctx, doc)
			if errors.Is(err, remote.ErrDuplicateIdentifier) {
				return o.recreateUnderFreshID(ctx, doc)
			}
			return err
		case models.OperationUpdate:
			return o.adapter.Update(ctx, doc, doc.Version-1)
		}
		return fmt.Errorf("unexpected operation kind %q", op.Kind)
	})
}

// recreateUnderFreshID handles a remote identifier collision on create: the
// document is re-identified locally and the create retried exactly once.
func (o *Orchestrator) recreateUnderFreshID(ctx context.Context, doc *models.Document) error {
	oldID := doc.SyncID
	doc.SyncID = o.generateID()
	o.log.Warn(ctx, "remote identifier collision, re-identifying document",
		"old_sync_id", oldID, "sync_id", doc.SyncID)

	if err := o.store.PutDocument(ctx, doc); err != nil {
		return err
	}
	if err := o.store.DeleteDocument(ctx, oldID); err != nil {
		return err
	}
	_ = o.queue.Remove(ctx, oldID)
	return o.adapter.Create(ctx, doc)
}

func (o *Orchestrator) processDelete(ctx context.Context, op *models.SyncOperation) opOutcome {
	err := o.withRetry(ctx, func(ctx context.Context) error {
		return o.adapter.Delete(ctx, op.SyncID)
	})
	if err != nil {
		o.emit(models.EventSyncFailed, op.SyncID, err.Error())
		o.log.Warn(ctx, "remote delete failed", "sync_id", op.SyncID, "error", err)
		return outcomeFailed
	}
	_ = o.queue.Remove(ctx, op.SyncID)
	o.emit(models.EventStateChanged, op.SyncID, "deleted")
	return outcomeApplied
}

// withRetry retries fn on transient remote failures with exponential backoff.
// Permanent failures surface immediately.
func (o *Orchestrator) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(remoteRetries, retry.NewExponential(o.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if remote.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (o *Orchestrator) uploadAttachments(ctx context.Context, syncID string) error {
	atts, err := o.store.Attachments(ctx, syncID)
	if err != nil {
		return err
	}
	for _, att := range atts {
		if att.RemoteKey != "" || att.LocalPath == "" {
			continue
		}
		key, err := o.adapter.UploadAttachment(ctx, att)
		if err != nil {
			return err
		}
		if err := o.store.MarkAttachmentUploaded(ctx, att.OwnerSyncID, att.FileName, key); err != nil {
			return err
		}
	}
	return nil
}

// pullRemoteChanges applies remote documents changed since the watermark,
// skipping identifiers uploaded in this same cycle and conflicted documents.
func (o *Orchestrator) pullRemoteChanges(ctx context.Context, uploadedNow map[string]bool) (downloaded, conflicts int, err error) {
	watermark, err := o.store.Watermark(ctx)
	if err != nil {
		return 0, 0, err
	}

	var changed []*models.Document
	var newMark time.Time
	err = o.withRetry(ctx, func(ctx context.Context) error {
		var e error
		changed, newMark, e = o.adapter.ListChangedSince(ctx, watermark)
		return e
	})
	if err != nil {
		return 0, 0, fmt.Errorf("listing remote changes: %w", err)
	}

	for _, rdoc := range changed {
		if err := ctx.Err(); err != nil {
			return downloaded, conflicts, err
		}
		if uploadedNow[rdoc.SyncID] {
			continue
		}
		applied, conflicted, err := o.applyRemote(ctx, rdoc)
		if err != nil {
			o.log.Error(ctx, "applying remote change", "sync_id", rdoc.SyncID, "error", err)
			continue
		}
		if applied {
			downloaded++
		}
		if conflicted {
			conflicts++
		}
	}

	if newMark.After(watermark) {
		if err := o.store.SetWatermark(ctx, newMark); err != nil {
			return downloaded, conflicts, err
		}
	}
	return downloaded, conflicts, nil
}

// applyRemote folds one remote snapshot into the local store.
func (o *Orchestrator) applyRemote(ctx context.Context, rdoc *models.Document) (applied, conflicted bool, err error) {
	o.locks.Lock(rdoc.SyncID)
	defer o.locks.Unlock(rdoc.SyncID)

	local, err := o.store.GetDocument(ctx, rdoc.SyncID)
	if errors.Is(err, common.ErrNotFound) {
		incoming := rdoc.Clone()
		incoming.SyncState = models.SyncStateSynced
		incoming.ConflictID = ""
		if err := o.store.PutDocument(ctx, incoming); err != nil {
			return false, false, err
		}
		o.emit(models.EventDocumentDownloaded, incoming.SyncID, incoming.Title)
		return true, false, nil
	}
	if err != nil {
		return false, false, err
	}

	if local.ConflictID != "" {
		return false, false, nil
	}
	if local.Version == rdoc.Version && local.ContentEquals(rdoc) {
		return false, false, nil
	}

	if local.SyncState == models.SyncStateSynced || local.SyncState == models.SyncStatePendingDownload ||
		local.SyncState == models.SyncStateDownloading {
		// no local edits, fast-forward to the remote snapshot; a document
		// already in downloading is an interrupted fetch being retried
		if local.SyncState == models.SyncStateSynced {
			if _, err := o.store.TransitionState(ctx, local.SyncID, models.SyncStatePendingDownload); err != nil {
				return false, false, err
			}
		}
		if local.SyncState != models.SyncStateDownloading {
			if _, err := o.store.TransitionState(ctx, local.SyncID, models.SyncStateDownloading); err != nil {
				return false, false, err
			}
		}
		incoming := rdoc.Clone()
		incoming.SyncState = models.SyncStateSynced
		incoming.ConflictID = ""
		if err := o.store.PutDocument(ctx, incoming); err != nil {
			return false, false, err
		}
		o.emit(models.EventDocumentDownloaded, incoming.SyncID, incoming.Title)
		return true, false, nil
	}

	// local has unsynced edits and remote moved too
	if conflict.Detected(local, rdoc) {
		conflictID := o.generateID()
		if err := o.store.SetConflict(ctx, local.SyncID, rdoc, conflictID); err != nil {
			return false, false, err
		}
		o.emit(models.EventConflictDetected, local.SyncID,
			fmt.Sprintf("local v%d vs remote v%d", local.Version, rdoc.Version))
		return false, true, nil
	}
	return false, false, nil
}

func (o *Orchestrator) downloadAttachments(ctx context.Context) error {
	atts, err := o.store.AttachmentsNeedingDownload(ctx)
	if err != nil {
		return err
	}
	for _, att := range atts {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir, err := filex.EnsureDir(o.attachmentDir, att.OwnerSyncID)
		if err != nil {
			return err
		}
		localPath := filepath.Join(dir, att.FileName)
		err = o.withRetry(ctx, func(ctx context.Context) error {
			return o.adapter.DownloadAttachment(ctx, att.RemoteKey, localPath)
		})
		if err != nil {
			o.log.Warn(ctx, "attachment download failed",
				"sync_id", att.OwnerSyncID, "file", att.FileName, "error", err)
			continue
		}
		if err := o.store.MarkAttachmentDownloaded(ctx, att.OwnerSyncID, att.FileName, localPath); err != nil {
			return err
		}
	}
	return nil
}

// ResolveConflict applies a resolution strategy to a suspended document and
// re-queues whatever the outcome requires.
func (o *Orchestrator) ResolveConflict(ctx context.Context, syncID string, strategy conflict.Strategy) (*conflict.Resolution, error) {
	o.locks.Lock(syncID)
	defer o.locks.Unlock(syncID)

	local, err := o.store.GetDocument(ctx, syncID)
	if err != nil {
		return nil, err
	}
	if local.ConflictID == "" {
		return nil, fmt.Errorf("document %s has no pending conflict", syncID)
	}
	snap, err := o.store.ConflictSnapshot(ctx, local.ConflictID)
	if err != nil {
		return nil, err
	}

	res, err := o.resolver.Resolve(local, snap.Document, strategy)
	if err != nil {
		return nil, err
	}

	if res.DiscardPending {
		if err := o.queue.Remove(ctx, syncID); err != nil {
			return nil, err
		}
	}
	if err := o.store.ClearConflict(ctx, syncID); err != nil {
		return nil, err
	}
	if err := o.store.PutDocument(ctx, res.Document); err != nil {
		return nil, err
	}
	if res.ReIdentified != nil {
		if err := o.store.PutDocument(ctx, res.ReIdentified); err != nil {
			return nil, err
		}
	}
	for _, op := range res.Requeue {
		if err := o.queue.Enqueue(ctx, op); err != nil {
			return nil, err
		}
	}

	o.emit(models.EventStateChanged, syncID, "conflict resolved: "+string(strategy))
	o.log.Info(ctx, "conflict resolved", "sync_id", syncID, "strategy", strategy)
	return res, nil
}

// Watch consumes the remote subscription until ctx is done, marking changed
// synced documents pendingDownload so the next cycle picks them up.
func (o *Orchestrator) Watch(ctx context.Context) error {
	ch, err := o.adapter.Subscribe(ctx, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-ch:
			if !ok {
				return nil
			}
			o.noteRemoteChange(ctx, change)
		}
	}
}

func (o *Orchestrator) noteRemoteChange(ctx context.Context, change remote.Change) {
	o.locks.Lock(change.Document.SyncID)
	defer o.locks.Unlock(change.Document.SyncID)

	local, err := o.store.GetDocument(ctx, change.Document.SyncID)
	if err != nil || local.SyncState != models.SyncStateSynced || local.ConflictID != "" {
		return
	}
	if local.Version >= change.Document.Version {
		return
	}
	if _, err := o.store.TransitionState(ctx, local.SyncID, models.SyncStatePendingDownload); err != nil {
		o.log.Warn(ctx, "marking pending download", "sync_id", local.SyncID, "error", err)
		return
	}
	o.emit(models.EventStateChanged, local.SyncID, string(models.SyncStatePendingDownload))
}
