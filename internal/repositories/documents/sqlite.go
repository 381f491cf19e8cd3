package documents

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

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const documentColumns = `sync_id, title, category, notes, labels, renewal_date, created_at, updated_at, sync_state, version, conflict_id`

func (r *SQLiteRepository) Insert(ctx context.Context, doc *models.Document) error {
	labels, err := marshalLabels(doc.Labels)
	if err != nil {
		return err
	}
	query := `INSERT INTO documents (` + documentColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		doc.SyncID, doc.Title, doc.Category, doc.Notes, labels,
		nullableTime(doc.RenewalDate), doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano(),
		string(doc.SyncState), doc.Version, nullableString(doc.ConflictID))
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("%w: document %s", common.ErrConstraint, doc.SyncID)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, doc *models.Document) error {
	labels, err := marshalLabels(doc.Labels)
	if err != nil {
		return err
	}
	query := `UPDATE documents SET title=?, category=?, notes=?, labels=?, renewal_date=?,
			updated_at=?, sync_state=?, version=?, conflict_id=? WHERE sync_id=?`
	res, err := r.db.ExecContext(ctx, query,
		doc.Title, doc.Category, doc.Notes, labels, nullableTime(doc.RenewalDate),
		doc.UpdatedAt.UnixNano(), string(doc.SyncState), doc.Version,
		nullableString(doc.ConflictID), doc.SyncID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("%w: document %s", common.ErrNotFound, doc.SyncID)
	}
	return nil
}

func (r *SQLiteRepository) GetBySyncID(ctx context.Context, syncID string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE sync_id=?`
	row := r.db.QueryRowContext(ctx, query, syncID)
	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", common.ErrNotFound, syncID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select document: %w", err)
	}
	return doc, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at`
	return r.queryDocuments(ctx, query)
}

func (r *SQLiteRepository) GetBySyncState(ctx context.Context, state models.SyncState) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE sync_state=? ORDER BY created_at`
	return r.queryDocuments(ctx, query, string(state))
}

func (r *SQLiteRepository) GetNeedingUpload(ctx context.Context) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE sync_state IN (?, ?) ORDER BY created_at`
	return r.queryDocuments(ctx, query,
		string(models.SyncStatePendingUpload), string(models.SyncStateError))
}

func (r *SQLiteRepository) Delete(ctx context.Context, syncID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE sync_id=?`, syncID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("%w: document %s", common.ErrNotFound, syncID)
	}
	return nil
}

func (r *SQLiteRepository) queryDocuments(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanDocument(scan func(dest ...any) error) (*models.Document, error) {
	var (
		doc        models.Document
		labels     string
		renewal    sql.NullInt64
		createdAt  int64
		updatedAt  int64
		state      string
		conflictID sql.NullString
	)
	err := scan(&doc.SyncID, &doc.Title, &doc.Category, &doc.Notes, &labels,
		&renewal, &createdAt, &updatedAt, &state, &doc.Version, &conflictID)
	if err != nil {
		return nil, err
	}
	if labels != "" {
		if err := json.Unmarshal([]byte(labels), &doc.Labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels: %w", err)
		}
	}
	if renewal.Valid {
		t := time.Unix(0, renewal.Int64)
		doc.RenewalDate = &t
	}
	doc.CreatedAt = time.Unix(0, createdAt)
	doc.UpdatedAt = time.Unix(0, updatedAt)
	doc.SyncState = models.SyncState(state)
	doc.ConflictID = conflictID.String
	return &doc, nil
}

func marshalLabels(labels []string) (string, error) {
	if len(labels) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("failed to encode labels: %w", err)
	}
	return string(b), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func isConstraintErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "constraint")
}
