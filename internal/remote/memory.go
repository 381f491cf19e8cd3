package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/models"
)

// MemoryAdapter is an in-process Adapter used by tests and local-only runs.
// It enforces the same optimistic-concurrency contract a real backend would.
type MemoryAdapter struct {
	mu      sync.Mutex
	docs    map[string]*models.Document
	touched map[string]time.Time
	objects map[string][]byte
	subs    []*memorySub
	now     func() time.Time

	// FailWith, when set, is returned by every mutating call. Tests use it
	// to script outages.
	FailWith error
}

type memorySub struct {
	ch     chan Change
	filter func(syncID string) bool
	done   <-chan struct{}
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		docs:    make(map[string]*models.Document),
		touched: make(map[string]time.Time),
		objects: make(map[string][]byte),
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock. Used by tests.
func (m *MemoryAdapter) SetNowFunc(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryAdapter) Create(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if _, ok := m.docs[doc.SyncID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, doc.SyncID)
	}
	m.storeLocked(doc)
	return nil
}

func (m *MemoryAdapter) Update(ctx context.Context, doc *models.Document, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	current, ok := m.docs[doc.SyncID]
	if !ok {
		return fmt.Errorf("%w: remote document %s", common.ErrNotFound, doc.SyncID)
	}
	if current.Version != expectedVersion {
		return &VersionMismatchError{
			SyncID:          doc.SyncID,
			ExpectedVersion: expectedVersion,
			Remote:          current.Clone(),
		}
	}
	m.storeLocked(doc)
	return nil
}

func (m *MemoryAdapter) Delete(ctx context.Context, syncID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	delete(m.docs, syncID)
	delete(m.touched, syncID)
	return nil
}

func (m *MemoryAdapter) ListChangedSince(ctx context.Context, watermark time.Time) ([]*models.Document, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, watermark, m.FailWith
	}
	newMark := watermark
	var changed []*models.Document
	for id, at := range m.touched {
		if !at.After(watermark) {
			continue
		}
		changed = append(changed, m.docs[id].Clone())
		if at.After(newMark) {
			newMark = at
		}
	}
	return changed, newMark, nil
}

func (m *MemoryAdapter) Subscribe(ctx context.Context, filter func(syncID string) bool) (<-chan Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &memorySub{ch: make(chan Change, 16), filter: filter, done: ctx.Done()}
	m.subs = append(m.subs, sub)
	return sub.ch, nil
}

func (m *MemoryAdapter) UploadAttachment(ctx context.Context, att *models.FileAttachment) (string, error) {
	m.mu.Lock()
	fail := m.FailWith
	m.mu.Unlock()
	if fail != nil {
		return "", fail
	}

	data, err := os.ReadFile(att.LocalPath)
	if err != nil {
		return "", fmt.Errorf("reading attachment %s: %w", att.LocalPath, err)
	}
	key := fmt.Sprintf("attachments/%s/%s", att.OwnerSyncID, att.FileName)

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryAdapter) DownloadAttachment(ctx context.Context, remoteKey, localPath string) error {
	m.mu.Lock()
	data, ok := m.objects[remoteKey]
	fail := m.FailWith
	m.mu.Unlock()
	if fail != nil {
		return fail
	}
	if !ok {
		return fmt.Errorf("%w: remote object %s", common.ErrNotFound, remoteKey)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o644)
}

// Seed plants a remote document directly, bypassing the Adapter contract.
// Used by tests to simulate changes made on another device.
func (m *MemoryAdapter) Seed(doc *models.Document, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.SyncID] = doc.Clone()
	m.touched[doc.SyncID] = at
	m.notifyLocked(doc, at)
}

// Get returns the current remote snapshot, nil when absent.
func (m *MemoryAdapter) Get(syncID string) *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[syncID]
	if !ok {
		return nil
	}
	return doc.Clone()
}

// Len reports how many documents exist remotely.
func (m *MemoryAdapter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *MemoryAdapter) storeLocked(doc *models.Document) {
	at := m.now()
	m.docs[doc.SyncID] = doc.Clone()
	m.touched[doc.SyncID] = at
	m.notifyLocked(doc, at)
}

func (m *MemoryAdapter) notifyLocked(doc *models.Document, at time.Time) {
	alive := m.subs[:0]
	for _, sub := range m.subs {
		select {
		case <-sub.done:
			close(sub.ch)
			continue
		default:
		}
		alive = append(alive, sub)
		if sub.filter != nil && !sub.filter(doc.SyncID) {
			continue
		}
		select {
		case sub.ch <- Change{Document: doc.Clone(), OccurredAt: at}:
		default: // slow subscriber, drop
		}
	}
	m.subs = alive
}
