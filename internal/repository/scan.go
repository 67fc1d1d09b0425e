package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/CardScan/internal/model"
)

// ScanRepository wraps all SQL used by the CLI and the worker.
type ScanRepository struct {
	pool *pgxpool.Pool
}

// NewScanRepository constructs a repository.
func NewScanRepository(pool *pgxpool.Pool) *ScanRepository {
	return &ScanRepository{pool: pool}
}

// Create inserts a queued scan before the worker picks it up.
func (r *ScanRepository) Create(ctx context.Context, scan *model.Scan) error {
	now := time.Now().UTC()
	scan.Status = model.StatusQueued
	scan.CreatedAt = now
	scan.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scans (id, file_name, object_key, status, report, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, scan.ID, scan.FileName, scan.ObjectKey, scan.Status, "", nil, scan.CreatedAt, scan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// Get returns a scan by id.
func (r *ScanRepository) Get(ctx context.Context, id string) (*model.Scan, error) {
	var (
		scan         model.Scan
		processedKey sql.NullString
		errorMsg     sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, file_name, object_key, processed_key, status, COALESCE(report,''), error_message, created_at, updated_at
		FROM scans WHERE id=$1
	`, id)
	if err := row.Scan(&scan.ID, &scan.FileName, &scan.ObjectKey, &processedKey, &scan.Status, &scan.Report, &errorMsg, &scan.CreatedAt, &scan.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("select scan %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("select scan: %w", err)
	}
	if processedKey.Valid {
		key := processedKey.String
		scan.ProcessedKey = &key
	}
	if errorMsg.Valid {
		msg := errorMsg.String
		scan.ErrorMessage = &msg
	}
	return &scan, nil
}

// MarkProcessing sets the status to processing.
func (r *ScanRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, model.StatusProcessing, nil, nil, nil)
}

// MarkFailed records why the scan could not be decoded.
func (r *ScanRepository) MarkFailed(ctx context.Context, id string, msg string) error {
	return r.updateStatus(ctx, id, model.StatusFailed, nil, nil, &msg)
}

// MarkCompleted stores the report and the key of its uploaded copy.
func (r *ScanRepository) MarkCompleted(ctx context.Context, id, processedKey, report string) error {
	return r.updateStatus(ctx, id, model.StatusCompleted, &processedKey, &report, nil)
}

func (r *ScanRepository) updateStatus(ctx context.Context, id string, status model.ScanStatus, processedKey *string, report *string, errorMsg *string) error {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE scans
		SET status=$1,
			processed_key = COALESCE($2, processed_key),
			report = COALESCE($3, report),
			error_message = $4,
			updated_at=$5
		WHERE id=$6
	`, status, processedKey, report, errorMsg, now, id)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update scan %s: %w", id, model.ErrNotFound)
	}
	return nil
}
