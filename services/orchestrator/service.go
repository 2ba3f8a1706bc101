package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nlieb/chatmux/internal/observability"
	"github.com/nlieb/chatmux/models"
	"github.com/nlieb/chatmux/services"
	"github.com/nlieb/chatmux/services/cache"
	"github.com/nlieb/chatmux/services/providers"
	"github.com/nlieb/chatmux/services/recorder"
	"github.com/nlieb/chatmux/services/registry"
)

// Request represents one incoming chat request
type Request struct {
	// Message is the current user message
	Message string

	// Mode selects fast or deep answering; empty defaults to fast
	Mode providers.Mode

	// History contains prior conversation turns, oldest first
	History []providers.Message
}

// Result is the terminal outcome of a successfully answered request
type Result struct {
	Content        string         `json:"content"`
	ReasoningTrace string         `json:"reasoning_trace,omitempty"`
	Mode           providers.Mode `json:"mode"`
	Model          string         `json:"model"`

	// Provider names the provider that produced the answer; "cache" on a hit
	Provider string `json:"provider"`

	CacheHit         bool `json:"cache_hit"`
	Attempts         int  `json:"attempts"`
	ProcessingTimeMs int  `json:"processing_time_ms"`
}

// Config tunes the dispatch loop
type Config struct {
	// DefaultTimeout bounds a single dispatch attempt when the provider
	// configuration carries no timeout of its own
	DefaultTimeout time.Duration
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 30 * time.Second,
	}
}

// Service drives each request through cache check, provider selection,
// dispatch, and retry/failover until a terminal result. It never fabricates
// an answer: when every provider path is exhausted the caller gets the error.
type Service struct {
	config   Config
	registry *registry.Registry
	cache    *cache.Cache
	adapters *providers.Registry
	recorder *recorder.Service // optional; nil disables persistence
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewService creates an orchestrator with all its collaborators. The
// recorder may be nil when request persistence is not configured.
func NewService(
	cfg Config,
	reg *registry.Registry,
	respCache *cache.Cache,
	adapters *providers.Registry,
	rec *recorder.Service,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		config:   cfg,
		registry: reg,
		cache:    respCache,
		adapters: adapters,
		recorder: rec,
		metrics:  metrics,
		logger:   logger,
	}
}

// Chat answers one request. Invalid input fails immediately with a
// validation error and never enters the retry machinery; a cache hit skips
// provider dispatch entirely; otherwise providers are tried in fallback
// order, retrying each up to its configured limit, until success or
// exhaustion.
func (s *Service) Chat(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	// Step 1: validate input
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.metrics.RecordRequest(string(req.Mode), observability.OutcomeValidationFailed)
		s.recordRejected(string(req.Mode), "empty_message")
		return nil, services.ErrEmptyMessage
	}

	mode := req.Mode
	if mode == "" {
		mode = providers.ModeFast
	}
	if !providers.ValidMode(mode) {
		s.metrics.RecordRequest(string(req.Mode), observability.OutcomeValidationFailed)
		s.recordRejected(string(req.Mode), "invalid_mode")
		return nil, services.ErrInvalidMode
	}

	rec := models.NewRequestRecord(string(mode))

	s.logger.Info("starting chat request",
		zap.String("request_id", rec.ID.String()),
		zap.String("mode", string(mode)),
		zap.Int("history_turns", len(req.History)))

	// Step 2: cache check
	s.logger.Debug("step 1: checking cache", zap.String("request_id", rec.ID.String()))
	if payload, ok := s.cache.Get(message, string(mode)); ok {
		s.metrics.RecordCacheEvent(observability.CacheEventHit)
		return s.finishSuccess(rec, payload, "cache", true, 0, start)
	}
	s.metrics.RecordCacheEvent(observability.CacheEventMiss)

	// Step 3: select the best available provider
	s.logger.Debug("step 2: selecting provider", zap.String("request_id", rec.ID.String()))
	current, ok := s.registry.BestAvailable()
	if !ok {
		snapshot := s.registry.StatusSnapshot()
		s.logger.Warn("no providers available",
			zap.String("request_id", rec.ID.String()),
			zap.Int("providers", len(snapshot)))

		s.finishFailure(rec, "", "no_providers_available", 0, start, string(mode), observability.OutcomeExhausted)
		return nil, services.NewDomainError(services.ErrorTypeExhausted, "no providers available", nil).
			WithDetail("providers", snapshot)
	}

	// Step 4: dispatch loop. Bounded because every provider allows at most
	// maxRetries attempts and each switch moves strictly forward in
	// fallback order.
	adapterReq := &providers.Request{
		Message: message,
		Mode:    mode,
		History: req.History,
	}

	var lastErr error
	attempts := 0 // attempts against the current provider
	totalAttempts := 0

	for {
		s.logger.Debug("step 3: dispatching to provider",
			zap.String("request_id", rec.ID.String()),
			zap.String("provider", current),
			zap.Int("attempt", attempts+1))

		payload, err := s.dispatch(ctx, current, adapterReq)
		totalAttempts++

		if err == nil {
			s.registry.MarkHealthy(current)
			s.metrics.RecordDispatch(current, "success")

			if s.cache.ShouldCache(message, string(mode)) {
				s.cache.Set(message, string(mode), payload, 0)
				s.metrics.RecordCacheEvent(observability.CacheEventSet)
			}

			return s.finishSuccess(rec, payload, current, false, totalAttempts, start)
		}

		lastErr = err
		s.registry.MarkUnhealthy(current, err)
		s.metrics.RecordDispatch(current, dispatchResult(err))

		s.logger.Debug("dispatch failed",
			zap.String("request_id", rec.ID.String()),
			zap.String("provider", current),
			zap.Int("attempt", attempts+1),
			zap.Error(err))

		// The caller may have gone away while the attempt ran. Health was
		// already updated above; a timeout is evidence about the provider
		// whether or not anyone is still waiting for the answer.
		if ctx.Err() != nil {
			s.finishFailure(rec, current, "cancelled", totalAttempts, start, string(mode), observability.OutcomeCancelled)
			return nil, ctx.Err()
		}

		attempts++
		if s.registry.CanRetry(current, attempts) {
			continue
		}

		next, ok := s.registry.NextProvider(current)
		if !ok {
			snapshot := s.registry.StatusSnapshot()
			s.logger.Warn("all providers exhausted",
				zap.String("request_id", rec.ID.String()),
				zap.Int("total_attempts", totalAttempts),
				zap.Error(lastErr))

			s.finishFailure(rec, current, "all_providers_failed", totalAttempts, start, string(mode), observability.OutcomeExhausted)
			return nil, services.NewExhaustedError(lastErr).
				WithDetail("providers", snapshot).
				WithDetail("attempts", totalAttempts)
		}

		s.logger.Debug("switching provider",
			zap.String("request_id", rec.ID.String()),
			zap.String("from", current),
			zap.String("to", next))

		current = next
		attempts = 0
	}
}

// dispatch runs one attempt against one provider under its configured
// timeout. No registry or cache lock is held while the call is in flight.
func (s *Service) dispatch(ctx context.Context, name string, req *providers.Request) (*providers.NormalizedResponse, error) {
	adapter, err := s.adapters.Get(name)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, "no adapter registered for provider", err).
			WithDetail("provider", name)
	}

	timeout := s.registry.DispatchTimeout(name, s.config.DefaultTimeout)
	dispatchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return adapter.Execute(dispatchCtx, req)
}

// finishSuccess finalizes metrics, the request record, and the result for
// an answered request
func (s *Service) finishSuccess(rec *models.RequestRecord, payload *providers.NormalizedResponse, provider string, cacheHit bool, attempts int, start time.Time) (*Result, error) {
	latencyMs := int(time.Since(start).Milliseconds())

	rec.MarkCompleted(provider, payload.Model, cacheHit, attempts, latencyMs)
	s.record(rec)

	s.metrics.RecordRequest(string(payload.Mode), observability.OutcomeSuccess)
	s.metrics.ObserveRequestDuration(string(payload.Mode), time.Since(start).Seconds())

	s.logger.Info("chat request completed",
		zap.String("request_id", rec.ID.String()),
		zap.String("provider", provider),
		zap.Bool("cache_hit", cacheHit),
		zap.Int("attempts", attempts),
		zap.Int("latency_ms", latencyMs))

	return &Result{
		Content:          payload.Content,
		ReasoningTrace:   payload.ReasoningTrace,
		Mode:             payload.Mode,
		Model:            payload.Model,
		Provider:         provider,
		CacheHit:         cacheHit,
		Attempts:         attempts,
		ProcessingTimeMs: latencyMs,
	}, nil
}

// finishFailure finalizes metrics and the request record for a request
// that ended without an answer
func (s *Service) finishFailure(rec *models.RequestRecord, provider, errorKind string, attempts int, start time.Time, mode, outcome string) {
	latencyMs := int(time.Since(start).Milliseconds())

	rec.MarkFailed(provider, errorKind, attempts, latencyMs)
	s.record(rec)

	s.metrics.RecordRequest(mode, outcome)
	s.metrics.ObserveRequestDuration(mode, time.Since(start).Seconds())
}

// recordRejected persists a validation rejection
func (s *Service) recordRejected(mode, errorKind string) {
	rec := models.NewRequestRecord(mode)
	rec.MarkRejected(errorKind)
	s.record(rec)
}

// record hands a finalized request record to the recorder, when one is
// configured
func (s *Service) record(rec *models.RequestRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(rec); err != nil {
		s.logger.Debug("request record dropped", zap.Error(err))
	}
}

// dispatchResult maps a dispatch error to its metrics label
func dispatchResult(err error) string {
	if kind := providers.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
