package conflicts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/akaplins/paperkeep/internal/dbx"
	"github.com/akaplins/paperkeep/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, snap *Snapshot) error {
	doc, err := json.Marshal(snap.Document)
	if err != nil {
		return fmt.Errorf("failed to encode conflict snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conflict_snapshots (id, sync_id, document, detected_at)
		VALUES (?, ?, ?, ?)`,
		snap.ID, snap.SyncID, string(doc), snap.DetectedAt.UnixNano())
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "constraint") {
			return fmt.Errorf("%w: conflict snapshot %s", common.ErrConstraint, snap.ID)
		}
		return fmt.Errorf("failed to insert conflict snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Snapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, sync_id, document, detected_at FROM conflict_snapshots WHERE id=?`, id)

	var (
		snap       Snapshot
		doc        string
		detectedAt int64
	)
	err := row.Scan(&snap.ID, &snap.SyncID, &doc, &detectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conflict snapshot %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select conflict snapshot: %w", err)
	}
	var d models.Document
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, fmt.Errorf("failed to decode conflict snapshot: %w", err)
	}
	snap.Document = &d
	snap.DetectedAt = time.Unix(0, detectedAt)
	return &snap, nil
}

func (r *SQLiteRepository) DeleteBySyncID(ctx context.Context, syncID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM conflict_snapshots WHERE sync_id=?`, syncID); err != nil {
		return fmt.Errorf("failed to delete conflict snapshots: %w", err)
	}
	return nil
}
