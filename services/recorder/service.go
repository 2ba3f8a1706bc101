package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nlieb/chatmux/models"
	"github.com/nlieb/chatmux/repositories"
	"go.uber.org/zap"
)

// Service persists finalized request records asynchronously so the
// request path never waits on the database
type Service struct {
	repo        repositories.RequestRecordRepository
	logger      *zap.Logger
	recordChan  chan *models.RequestRecord
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the recorder Service
type Config struct {
	BufferSize  int // Size of the record buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1024,
		WorkerCount: 2,
	}
}

// NewService creates a new recorder Service instance
func NewService(repo repositories.RequestRecordRepository, logger *zap.Logger, config Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		repo:        repo,
		logger:      logger,
		recordChan:  make(chan *models.RequestRecord, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
		started:     false,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("recorder service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started recorder service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the recorder service
// Waits for all pending records to be persisted
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("recorder service not started")
	}
	s.mu.Unlock()

	s.logger.Info("stopping recorder service", zap.Int("pending_records", len(s.recordChan)))

	// Close the record channel (no more records will be accepted)
	close(s.recordChan)

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("recorder service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("recorder service stop timeout after %v", timeout)
	}
}

// Record queues a request record for persistence (non-blocking)
// Returns immediately, the record is inserted in the background
func (s *Service) Record(rec *models.RequestRecord) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("recorder service not started")
	}
	s.mu.Unlock()

	select {
	case s.recordChan <- rec:
		return nil
	default:
		// Channel is full, log warning and drop record
		s.logger.Warn("record channel full, dropping record",
			zap.String("id", rec.ID.String()),
			zap.String("status", string(rec.Status)))
		return fmt.Errorf("record buffer full")
	}
}

// RecordBlocking queues a request record synchronously (blocking)
// Waits until the record is queued or the context is cancelled
func (s *Service) RecordBlocking(ctx context.Context, rec *models.RequestRecord) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("recorder service not started")
	}
	s.mu.Unlock()

	select {
	case s.recordChan <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("recorder service stopped")
	}
}

// worker persists records from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("recorder worker started", zap.Int("worker_id", id))

	for rec := range s.recordChan {
		if err := s.persistRecord(rec); err != nil {
			s.logger.Error("failed to persist request record",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("id", rec.ID.String()),
				zap.String("status", string(rec.Status)))
		}
	}

	s.logger.Debug("recorder worker stopped", zap.Int("worker_id", id))
}

// persistRecord inserts a single record with a bounded timeout
func (s *Service) persistRecord(rec *models.RequestRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.Insert(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert request record: %w", err)
	}

	return nil
}

// GetStats returns statistics about the recorder service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingRecords: len(s.recordChan),
		WorkerCount:    s.workerCount,
		Started:        s.started,
	}
}

// Stats represents recorder service statistics
type Stats struct {
	BufferSize     int
	PendingRecords int
	WorkerCount    int
	Started        bool
}
