package operations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akaplins/paperkeep/internal/dbx"
	"github.com/akaplins/paperkeep/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
// Replace runs several statements; wrap it in dbx.WithTx when atomicity is
// required.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, op *models.SyncOperation) error {
	doc, patch, err := encodePayload(op)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_operations (kind, sync_id, document, patch, enqueued_at, priority)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(op.Kind), op.SyncID, doc, patch, op.EnqueuedAt.UnixNano(), op.Priority)
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted id: %w", err)
	}
	op.ID = id
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.SyncOperation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, sync_id, document, patch, enqueued_at, priority
		FROM sync_operations ORDER BY enqueued_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncOperation
	for rows.Next() {
		var (
			op         models.SyncOperation
			kind       string
			doc, patch sql.NullString
			enqueuedAt int64
		)
		if err := rows.Scan(&op.ID, &kind, &op.SyncID, &doc, &patch, &enqueuedAt, &op.Priority); err != nil {
			return nil, err
		}
		op.Kind = models.OperationKind(kind)
		op.EnqueuedAt = time.Unix(0, enqueuedAt)
		if doc.Valid && doc.String != "" {
			var d models.Document
			if err := json.Unmarshal([]byte(doc.String), &d); err != nil {
				return nil, fmt.Errorf("failed to decode operation document: %w", err)
			}
			op.Document = &d
		}
		if patch.Valid && patch.String != "" {
			var p models.DocumentPatch
			if err := json.Unmarshal([]byte(patch.String), &p); err != nil {
				return nil, fmt.Errorf("failed to decode operation patch: %w", err)
			}
			op.Patch = &p
		}
		result = append(result, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_operations WHERE id=?`, id); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBySyncID(ctx context.Context, syncID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_operations WHERE sync_id=?`, syncID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete operations: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra, nil
}

func (r *SQLiteRepository) Replace(ctx context.Context, syncID string, ops []*models.SyncOperation) error {
	if _, err := r.DeleteBySyncID(ctx, syncID); err != nil {
		return err
	}
	for _, op := range ops {
		if err := r.Append(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

func encodePayload(op *models.SyncOperation) (doc, patch any, err error) {
	if op.Document != nil {
		b, err := json.Marshal(op.Document)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode operation document: %w", err)
		}
		doc = string(b)
	}
	if op.Patch != nil {
		b, err := json.Marshal(op.Patch)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode operation patch: %w", err)
		}
		patch = string(b)
	}
	return doc, patch, nil
}
