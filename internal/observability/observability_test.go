package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"json info", "info", "json", false},
		{"console debug", "debug", "console", false},
		{"text warn", "warn", "text", false},
		{"unknown format falls back to json", "info", "yaml", false},
		{"invalid level", "shouting", "json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Debug("probe")
			_ = logger.Sync()
		})
	}
}

func TestNewLogger_LevelApplied(t *testing.T) {
	logger, err := NewLogger("error", "json")
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("fast", OutcomeSuccess)
	m.RecordRequest("fast", OutcomeSuccess)
	m.RecordRequest("deep", OutcomeExhausted)
	m.RecordDispatch("openai", "success")
	m.RecordDispatch("openai", "network")
	m.RecordCacheEvent(CacheEventHit)
	m.ObserveRequestDuration("fast", 0.05)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCount.WithLabelValues("fast", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCount.WithLabelValues("deep", OutcomeExhausted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchCount.WithLabelValues("openai", "network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEvents.WithLabelValues(CacheEventHit)))
}

func TestMetrics_ProviderHealthyGauge(t *testing.T) {
	m := NewMetrics()

	m.SetProviderHealthy("openai", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderHealthy.WithLabelValues("openai")))

	m.SetProviderHealthy("openai", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ProviderHealthy.WithLabelValues("openai")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRequest("fast", OutcomeSuccess)
		m.RecordDispatch("openai", "success")
		m.SetProviderHealthy("openai", true)
		m.RecordCacheEvent(CacheEventMiss)
		m.ObserveRequestDuration("deep", 1.5)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("fast", OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatmux_requests_total")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()

	a.RecordRequest("fast", OutcomeSuccess)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RequestCount.WithLabelValues("fast", OutcomeSuccess)))
}
