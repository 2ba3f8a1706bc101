package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nlieb/chatmux/internal/observability"
)

// HealthCheck probes a provider directly and reports whether it is serving.
// Optional; providers without one recover through optimistic decay.
type HealthCheck func(ctx context.Context) bool

// ProviderConfig is the immutable per-provider configuration. It is created
// once at process start and never mutated.
type ProviderConfig struct {
	// Name identifies the provider
	Name string

	// Priority orders fallback; lower is preferred
	Priority int

	// Enabled is derived once at startup from credentials/reachability
	Enabled bool

	// MaxRetries bounds consecutive attempts against this provider
	MaxRetries int

	// Timeout bounds a single dispatch attempt
	Timeout time.Duration

	// HealthCheck optionally probes the provider during recovery
	HealthCheck HealthCheck `json:"-"`
}

// Config tunes recovery probing. All delays are policy, not correctness.
type Config struct {
	// DecayProbeDelay schedules the reset probe after a failure that has not
	// yet tripped the unhealthy threshold
	DecayProbeDelay time.Duration

	// UnhealthyProbeDelay is the base recovery delay once a provider trips
	UnhealthyProbeDelay time.Duration

	// MaxProbeDelay caps severity-scaled recovery delays
	MaxProbeDelay time.Duration

	// ProbeSweepInterval is how often the recovery worker wakes
	ProbeSweepInterval time.Duration

	// HealthCheckTimeout bounds one custom health check invocation
	HealthCheckTimeout time.Duration
}

// DefaultConfig returns seconds-scale probing defaults
func DefaultConfig() Config {
	return Config{
		DecayProbeDelay:     10 * time.Second,
		UnhealthyProbeDelay: 30 * time.Second,
		MaxProbeDelay:       5 * time.Minute,
		ProbeSweepInterval:  5 * time.Second,
		HealthCheckTimeout:  5 * time.Second,
	}
}

// ProviderStatus is the read-only diagnostic view of one provider
type ProviderStatus struct {
	Name                string     `json:"name"`
	Priority            int        `json:"priority"`
	Enabled             bool       `json:"enabled"`
	Healthy             bool       `json:"healthy"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	LastCheckedAt       *time.Time `json:"last_checked_at,omitempty"`
	NextProbeAt         *time.Time `json:"next_probe_at,omitempty"`
}

// record holds one provider's mutable health state. Every field below mu is
// guarded by it; a record's mutex is never held across a network call.
type record struct {
	mu sync.Mutex

	config              ProviderConfig
	isHealthy           bool
	lastError           error
	lastCheckedAt       time.Time
	consecutiveFailures int

	// nextProbeAt is zero when no recovery probe is pending
	nextProbeAt time.Time
}

// Registry tracks configuration and live health for every provider and
// derives the fallback order consulted on each dispatch. Health state is
// process-wide on purpose: one request's failure immediately steers routing
// for every concurrent request.
type Registry struct {
	config  Config
	records map[string]*record

	// order is the fallback order: enabled providers by ascending priority.
	// Computed once at construction and immutable afterwards.
	order []string

	// all lists every configured provider in priority order, for snapshots
	all []string

	metrics *observability.Metrics
	logger  *zap.Logger
}

// New builds a registry from the startup provider set
func New(cfg Config, providers []ProviderConfig, metrics *observability.Metrics, logger *zap.Logger) *Registry {
	r := &Registry{
		config:  cfg,
		records: make(map[string]*record, len(providers)),
		metrics: metrics,
		logger:  logger,
	}

	sorted := make([]ProviderConfig, len(providers))
	copy(sorted, providers)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Name < sorted[j].Name
	})

	for _, pc := range sorted {
		if _, exists := r.records[pc.Name]; exists {
			continue
		}
		r.records[pc.Name] = &record{
			config:    pc,
			isHealthy: true,
		}
		r.all = append(r.all, pc.Name)
		if pc.Enabled {
			r.order = append(r.order, pc.Name)
		}
		metrics.SetProviderHealthy(pc.Name, true)
	}

	logger.Info("provider registry initialized",
		zap.Int("providers", len(r.all)),
		zap.Strings("fallback_order", r.order))

	return r
}

// FallbackOrder returns a copy of the enabled, priority-sorted provider order
func (r *Registry) FallbackOrder() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Size returns the number of configured providers
func (r *Registry) Size() int {
	return len(r.all)
}

// BestAvailable returns the first healthy provider in fallback order. A
// false result means every enabled provider is unhealthy; that is a
// terminal, fail-fast signal, not something to retry.
func (r *Registry) BestAvailable() (string, bool) {
	for _, name := range r.order {
		if r.healthyNow(name) {
			return name, true
		}
	}
	return "", false
}

// NextProvider returns the first healthy provider strictly after current in
// fallback order, skipping unhealthy entries
func (r *Registry) NextProvider(current string) (string, bool) {
	start := -1
	for i, name := range r.order {
		if name == current {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	for _, name := range r.order[start+1:] {
		if r.healthyNow(name) {
			return name, true
		}
	}
	return "", false
}

// CanRetry reports whether the same provider may be attempted again. A
// provider that was just marked unhealthy mid-loop must not be retried.
func (r *Registry) CanRetry(name string, attempts int) bool {
	rec, ok := r.records[name]
	if !ok {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	return attempts < rec.config.MaxRetries && rec.isHealthy
}

// IsHealthy reports the provider's current health flag
func (r *Registry) IsHealthy(name string) bool {
	return r.healthyNow(name)
}

// DispatchTimeout returns the per-attempt timeout configured for a provider,
// or the fallback when the provider is unknown. Provider config is immutable
// after construction, so no lock is needed.
func (r *Registry) DispatchTimeout(name string, fallback time.Duration) time.Duration {
	rec, ok := r.records[name]
	if !ok || rec.config.Timeout <= 0 {
		return fallback
	}
	return rec.config.Timeout
}

// MarkHealthy records a successful outcome: failures reset, pending probes
// clear. Idempotent; logs only a genuine unhealthy-to-healthy transition.
func (r *Registry) MarkHealthy(name string) {
	rec, ok := r.records[name]
	if !ok {
		return
	}

	rec.mu.Lock()
	recovered := !rec.isHealthy
	rec.isHealthy = true
	rec.consecutiveFailures = 0
	rec.lastError = nil
	rec.lastCheckedAt = time.Now()
	rec.nextProbeAt = time.Time{}
	rec.mu.Unlock()

	r.metrics.SetProviderHealthy(name, true)

	if recovered {
		r.logger.Info("provider recovered", zap.String("provider", name))
	}
}

// MarkUnhealthy records a failed outcome. Crossing the provider's MaxRetries
// threshold flips it unhealthy and schedules a recovery probe whose delay
// grows with the length of the failure run; below the threshold a shorter
// decay probe is scheduled so isolated errors self-heal.
func (r *Registry) MarkUnhealthy(name string, cause error) {
	rec, ok := r.records[name]
	if !ok {
		return
	}

	now := time.Now()

	rec.mu.Lock()
	rec.consecutiveFailures++
	rec.lastError = cause
	rec.lastCheckedAt = now

	failures := rec.consecutiveFailures
	tripped := false
	if failures >= rec.config.MaxRetries {
		tripped = rec.isHealthy
		rec.isHealthy = false
		rec.nextProbeAt = now.Add(r.recoveryDelay(failures, rec.config.MaxRetries))
	} else {
		rec.nextProbeAt = now.Add(r.config.DecayProbeDelay)
	}
	healthy := rec.isHealthy
	rec.mu.Unlock()

	r.metrics.SetProviderHealthy(name, healthy)

	if tripped {
		r.logger.Warn("provider marked unhealthy",
			zap.String("provider", name),
			zap.Int("consecutive_failures", failures),
			zap.Error(cause))
	} else {
		r.logger.Debug("provider failure recorded",
			zap.String("provider", name),
			zap.Int("consecutive_failures", failures),
			zap.Bool("healthy", healthy),
			zap.Error(cause))
	}
}

// StatusSnapshot returns a consistent read-only copy of every provider's
// health, in priority order
func (r *Registry) StatusSnapshot() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(r.all))
	for _, name := range r.all {
		rec := r.records[name]

		rec.mu.Lock()
		status := ProviderStatus{
			Name:                rec.config.Name,
			Priority:            rec.config.Priority,
			Enabled:             rec.config.Enabled,
			Healthy:             rec.isHealthy,
			ConsecutiveFailures: rec.consecutiveFailures,
		}
		if rec.lastError != nil {
			status.LastError = rec.lastError.Error()
		}
		if !rec.lastCheckedAt.IsZero() {
			checked := rec.lastCheckedAt
			status.LastCheckedAt = &checked
		}
		if !rec.nextProbeAt.IsZero() {
			probe := rec.nextProbeAt
			status.NextProbeAt = &probe
		}
		rec.mu.Unlock()

		out = append(out, status)
	}
	return out
}

// healthyNow reads one record's health flag under its lock
func (r *Registry) healthyNow(name string) bool {
	rec, ok := r.records[name]
	if !ok {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.isHealthy
}

// recoveryDelay scales the base recovery delay with how deep into a failure
// run the provider is, capped at MaxProbeDelay.
func (r *Registry) recoveryDelay(failures, maxRetries int) time.Duration {
	over := failures - maxRetries
	if over < 0 {
		over = 0
	}
	delay := r.config.UnhealthyProbeDelay * time.Duration(over+1)
	if delay > r.config.MaxProbeDelay {
		delay = r.config.MaxProbeDelay
	}
	return delay
}
