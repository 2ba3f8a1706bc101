package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nlieb/chatmux/models"
)

// ErrRecordNotFound is returned when no request record matches a lookup
var ErrRecordNotFound = errors.New("request record not found")

// RequestRecordRepository handles chat request record data operations
type RequestRecordRepository interface {
	// Insert inserts a finalized request record
	Insert(ctx context.Context, rec *models.RequestRecord) error

	// GetByID retrieves a request record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error)

	// List retrieves recent request records with pagination, newest first
	List(ctx context.Context, limit, offset int) ([]*models.RequestRecord, error)

	// GetByStatus retrieves request records by terminal status with pagination
	GetByStatus(ctx context.Context, status models.RecordStatus, limit, offset int) ([]*models.RequestRecord, error)

	// GetByProvider retrieves request records answered by a provider with pagination
	GetByProvider(ctx context.Context, provider string, limit, offset int) ([]*models.RequestRecord, error)

	// SummarizeByProvider aggregates per-provider outcomes since the given time
	SummarizeByProvider(ctx context.Context, since time.Time) ([]*ProviderSummary, error)
}

// ProviderSummary represents aggregated request outcomes for one provider
type ProviderSummary struct {
	Provider     string  `json:"provider"`
	Requests     int     `json:"requests"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	CacheHits    int     `json:"cache_hits"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}
