package registry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartRecoveryWorker runs a background goroutine that periodically executes
// due recovery probes. The goroutine exits when ctx is cancelled.
func (r *Registry) StartRecoveryWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.config.ProbeSweepInterval)
		defer ticker.Stop()

		r.logger.Debug("recovery worker started",
			zap.Duration("sweep_interval", r.config.ProbeSweepInterval))

		for {
			select {
			case <-ctx.Done():
				r.logger.Debug("recovery worker stopped")
				return
			case <-ticker.C:
				r.RunDueProbes(ctx)
			}
		}
	}()
}

// RunDueProbes executes every recovery probe whose scheduled time has passed
// and returns how many ran. Exposed so the sweep can be driven directly.
func (r *Registry) RunDueProbes(ctx context.Context) int {
	now := time.Now()
	ran := 0

	for _, name := range r.all {
		rec := r.records[name]

		rec.mu.Lock()
		due := !rec.nextProbeAt.IsZero() && !rec.nextProbeAt.After(now)
		if !due {
			rec.mu.Unlock()
			continue
		}
		// claim the probe so overlapping sweeps cannot double-run it
		rec.nextProbeAt = time.Time{}
		check := rec.config.HealthCheck
		rec.mu.Unlock()

		r.probe(ctx, name, check)
		ran++

		select {
		case <-ctx.Done():
			return ran
		default:
		}
	}

	return ran
}

// probe restores or re-arms a single provider. A custom health check runs
// outside any lock and its boolean result is applied as-is; without one,
// recovery forgives one failure per probe so concurrent foreground updates
// are never clobbered.
func (r *Registry) probe(ctx context.Context, name string, check HealthCheck) {
	if check != nil {
		probeCtx, cancel := context.WithTimeout(ctx, r.config.HealthCheckTimeout)
		ok := check(probeCtx)
		cancel()

		if ok {
			r.MarkHealthy(name)
			return
		}

		rec := r.records[name]
		rec.mu.Lock()
		rec.lastCheckedAt = time.Now()
		rec.nextProbeAt = time.Now().Add(r.recoveryDelay(rec.consecutiveFailures, rec.config.MaxRetries))
		rec.mu.Unlock()

		r.logger.Debug("health check failed, probe rescheduled",
			zap.String("provider", name))
		return
	}

	rec := r.records[name]
	rec.mu.Lock()
	if rec.consecutiveFailures > 0 {
		rec.consecutiveFailures--
	}
	remaining := rec.consecutiveFailures
	rec.lastCheckedAt = time.Now()
	if remaining > 0 {
		rec.nextProbeAt = time.Now().Add(r.config.DecayProbeDelay)
	}
	rec.mu.Unlock()

	if remaining == 0 {
		r.MarkHealthy(name)
		return
	}

	r.logger.Debug("provider failure count decayed",
		zap.String("provider", name),
		zap.Int("consecutive_failures", remaining))
}
