package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordStatus represents the terminal outcome of a chat request
type RecordStatus string

const (
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusFailed    RecordStatus = "failed"   // every provider path exhausted
	RecordStatusRejected  RecordStatus = "rejected" // invalid input, never dispatched
)

// ValidRecordStatus reports whether s is a known terminal status.
func ValidRecordStatus(s RecordStatus) bool {
	return s == RecordStatusCompleted || s == RecordStatusFailed || s == RecordStatusRejected
}

// RequestRecord is the operational trace of one chat request: routing
// outcome, attempt count and latency. Message content is never stored.
type RequestRecord struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Status    RecordStatus `json:"status" db:"status"`
	Mode      string       `json:"mode" db:"mode"`

	// Provider is the provider that produced the answer, or the last one
	// tried before failure; empty for rejected requests
	Provider string `json:"provider,omitempty" db:"provider"`

	// Model is the model identifier reported by the provider
	Model string `json:"model,omitempty" db:"model"`

	CacheHit bool `json:"cache_hit" db:"cache_hit"`

	// Attempts counts provider dispatches across retries and failovers
	Attempts  int `json:"attempts" db:"attempts"`
	LatencyMs int `json:"latency_ms" db:"latency_ms"`

	// ErrorKind classifies the terminal error for failed/rejected requests
	ErrorKind *string `json:"error_kind,omitempty" db:"error_kind"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// TableName returns the table name for the RequestRecord model
func (RequestRecord) TableName() string {
	return "request_records"
}

// NewRequestRecord creates a pending record for an accepted request
func NewRequestRecord(mode string) *RequestRecord {
	return &RequestRecord{
		ID:        uuid.New(),
		Mode:      mode,
		CreatedAt: time.Now(),
	}
}

// MarkCompleted finalizes the record for a successful answer
func (r *RequestRecord) MarkCompleted(provider, model string, cacheHit bool, attempts, latencyMs int) {
	r.Status = RecordStatusCompleted
	r.Provider = provider
	r.Model = model
	r.CacheHit = cacheHit
	r.Attempts = attempts
	r.LatencyMs = latencyMs
	now := time.Now()
	r.CompletedAt = &now
}

// MarkFailed finalizes the record when every provider path was exhausted
func (r *RequestRecord) MarkFailed(provider, errorKind string, attempts, latencyMs int) {
	r.Status = RecordStatusFailed
	r.Provider = provider
	r.ErrorKind = &errorKind
	r.Attempts = attempts
	r.LatencyMs = latencyMs
	now := time.Now()
	r.CompletedAt = &now
}

// MarkRejected finalizes the record for input that never reached a provider
func (r *RequestRecord) MarkRejected(errorKind string) {
	r.Status = RecordStatusRejected
	r.ErrorKind = &errorKind
	now := time.Now()
	r.CompletedAt = &now
}
