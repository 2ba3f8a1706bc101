package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nlieb/chatmux/models"
	"github.com/nlieb/chatmux/repositories"
	"go.uber.org/zap"
)

// RequestRecordRepository implements the repositories.RequestRecordRepository interface
type RequestRecordRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRequestRecordRepository creates a new request record repository
func NewRequestRecordRepository(db *DB, logger *zap.Logger) repositories.RequestRecordRepository {
	return &RequestRecordRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a finalized request record
func (r *RequestRecordRepository) Insert(ctx context.Context, rec *models.RequestRecord) error {
	query := `
		INSERT INTO request_records (
			id, status, mode, provider, model, cache_hit,
			attempts, latency_ms, error_kind, created_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Status,
		rec.Mode,
		rec.Provider,
		rec.Model,
		rec.CacheHit,
		rec.Attempts,
		rec.LatencyMs,
		rec.ErrorKind,
		rec.CreatedAt,
		rec.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert request record: %w", err)
	}

	r.logger.Debug("request record inserted",
		zap.String("id", rec.ID.String()),
		zap.String("status", string(rec.Status)))
	return nil
}

// GetByID retrieves a request record by ID
func (r *RequestRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error) {
	query := `
		SELECT id, status, mode, provider, model, cache_hit,
		       attempts, latency_ms, error_kind, created_at, completed_at
		FROM request_records
		WHERE id = $1
	`

	rec := &models.RequestRecord{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Status,
		&rec.Mode,
		&rec.Provider,
		&rec.Model,
		&rec.CacheHit,
		&rec.Attempts,
		&rec.LatencyMs,
		&rec.ErrorKind,
		&rec.CreatedAt,
		&rec.CompletedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", repositories.ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("failed to get request record: %w", err)
	}

	return rec, nil
}

// List retrieves recent request records with pagination, newest first
func (r *RequestRecordRepository) List(ctx context.Context, limit, offset int) ([]*models.RequestRecord, error) {
	query := `
		SELECT id, status, mode, provider, model, cache_hit,
		       attempts, latency_ms, error_kind, created_at, completed_at
		FROM request_records
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	return r.queryRecords(ctx, query, limit, offset)
}

// GetByStatus retrieves request records by terminal status with pagination
func (r *RequestRecordRepository) GetByStatus(ctx context.Context, status models.RecordStatus, limit, offset int) ([]*models.RequestRecord, error) {
	query := `
		SELECT id, status, mode, provider, model, cache_hit,
		       attempts, latency_ms, error_kind, created_at, completed_at
		FROM request_records
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryRecords(ctx, query, status, limit, offset)
}

// GetByProvider retrieves request records answered by a provider with pagination
func (r *RequestRecordRepository) GetByProvider(ctx context.Context, provider string, limit, offset int) ([]*models.RequestRecord, error) {
	query := `
		SELECT id, status, mode, provider, model, cache_hit,
		       attempts, latency_ms, error_kind, created_at, completed_at
		FROM request_records
		WHERE provider = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryRecords(ctx, query, provider, limit, offset)
}

// SummarizeByProvider aggregates per-provider outcomes since the given time
func (r *RequestRecordRepository) SummarizeByProvider(ctx context.Context, since time.Time) ([]*repositories.ProviderSummary, error) {
	query := `
		SELECT
			provider,
			COUNT(*) as requests,
			COUNT(CASE WHEN status = 'completed' THEN 1 END) as completed,
			COUNT(CASE WHEN status = 'failed' THEN 1 END) as failed,
			COUNT(CASE WHEN cache_hit THEN 1 END) as cache_hits,
			COALESCE(AVG(latency_ms), 0) as avg_latency_ms
		FROM request_records
		WHERE created_at >= $1 AND provider <> ''
		GROUP BY provider
		ORDER BY requests DESC
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize request records: %w", err)
	}
	defer rows.Close()

	var summaries []*repositories.ProviderSummary
	for rows.Next() {
		s := &repositories.ProviderSummary{}
		err := rows.Scan(
			&s.Provider,
			&s.Requests,
			&s.Completed,
			&s.Failed,
			&s.CacheHits,
			&s.AvgLatencyMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating provider summary rows: %w", err)
	}

	return summaries, nil
}

// queryRecords is a helper method to query multiple request records
func (r *RequestRecordRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*models.RequestRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query request records: %w", err)
	}
	defer rows.Close()

	var records []*models.RequestRecord
	for rows.Next() {
		rec := &models.RequestRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.Status,
			&rec.Mode,
			&rec.Provider,
			&rec.Model,
			&rec.CacheHit,
			&rec.Attempts,
			&rec.LatencyMs,
			&rec.ErrorKind,
			&rec.CreatedAt,
			&rec.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating request record rows: %w", err)
	}

	return records, nil
}
