package attachments

import (
	"context"
	"database/sql"
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

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const attachmentColumns = `owner_sync_id, file_name, local_path, remote_key, file_size, added_at, label`

func (r *SQLiteRepository) Insert(ctx context.Context, att *models.FileAttachment) error {
	query := `INSERT INTO file_attachments (` + attachmentColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		att.OwnerSyncID, att.FileName, att.LocalPath, att.RemoteKey,
		att.FileSize, att.AddedAt.UnixNano(), att.Label)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "constraint") {
			return fmt.Errorf("%w: attachment %s/%s", common.ErrConstraint, att.OwnerSyncID, att.FileName)
		}
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, att *models.FileAttachment) error {
	query := `UPDATE file_attachments SET local_path=?, remote_key=?, file_size=?, label=?
			WHERE owner_sync_id=? AND file_name=?`
	res, err := r.db.ExecContext(ctx, query,
		att.LocalPath, att.RemoteKey, att.FileSize, att.Label, att.OwnerSyncID, att.FileName)
	if err != nil {
		return fmt.Errorf("failed to update attachment: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("%w: attachment %s/%s", common.ErrNotFound, att.OwnerSyncID, att.FileName)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerSyncID, fileName string) (*models.FileAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM file_attachments WHERE owner_sync_id=? AND file_name=?`
	row := r.db.QueryRowContext(ctx, query, ownerSyncID, fileName)
	att, err := scanAttachment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: attachment %s/%s", common.ErrNotFound, ownerSyncID, fileName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select attachment: %w", err)
	}
	return att, nil
}

func (r *SQLiteRepository) GetByOwner(ctx context.Context, ownerSyncID string) ([]*models.FileAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM file_attachments WHERE owner_sync_id=? ORDER BY file_name`
	return r.queryAttachments(ctx, query, ownerSyncID)
}

func (r *SQLiteRepository) GetNeedingDownload(ctx context.Context) ([]*models.FileAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM file_attachments
			WHERE remote_key != '' AND local_path = '' ORDER BY owner_sync_id, file_name`
	return r.queryAttachments(ctx, query)
}

func (r *SQLiteRepository) DeleteByOwner(ctx context.Context, ownerSyncID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM file_attachments WHERE owner_sync_id=?`, ownerSyncID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete attachments: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerSyncID, fileName string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM file_attachments WHERE owner_sync_id=? AND file_name=?`, ownerSyncID, fileName)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("%w: attachment %s/%s", common.ErrNotFound, ownerSyncID, fileName)
	}
	return nil
}

func (r *SQLiteRepository) queryAttachments(ctx context.Context, query string, args ...any) ([]*models.FileAttachment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []*models.FileAttachment
	for rows.Next() {
		att, err := scanAttachment(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanAttachment(scan func(dest ...any) error) (*models.FileAttachment, error) {
	var (
		att     models.FileAttachment
		addedAt int64
	)
	err := scan(&att.OwnerSyncID, &att.FileName, &att.LocalPath, &att.RemoteKey,
		&att.FileSize, &addedAt, &att.Label)
	if err != nil {
		return nil, err
	}
	att.AddedAt = time.Unix(0, addedAt)
	return &att, nil
}
