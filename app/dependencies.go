package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nlieb/chatmux/config"
	"github.com/nlieb/chatmux/internal/observability"
	"github.com/nlieb/chatmux/repositories"
	"github.com/nlieb/chatmux/repositories/postgres"
	"github.com/nlieb/chatmux/services/cache"
	"github.com/nlieb/chatmux/services/orchestrator"
	"github.com/nlieb/chatmux/services/providers"
	"github.com/nlieb/chatmux/services/recorder"
	"github.com/nlieb/chatmux/services/registry"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// DB is nil when request recording is disabled
	DB *postgres.DB

	// Repositories
	RequestRecords repositories.RequestRecordRepository

	// Chat pipeline
	Adapters     *providers.Registry
	Health       *registry.Registry
	Cache        *cache.Cache
	Recorder     *recorder.Service
	Orchestrator *orchestrator.Service

	// healthChecks collects per-provider probes built during adapter setup
	healthChecks map[string]registry.HealthCheck

	cancelWorkers context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:       cfg,
		Logger:       logger,
		Metrics:      observability.NewMetrics(),
		healthChecks: make(map[string]registry.HealthCheck),
	}

	if err := deps.initAdapters(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize provider adapters: %w", err)
	}

	deps.initHealth(cfg)
	deps.initCache(cfg)

	if err := deps.initRecording(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize request recording: %w", err)
	}

	deps.initOrchestrator(cfg)

	if err := deps.startWorkers(); err != nil {
		return nil, fmt.Errorf("failed to start background workers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initAdapters builds one adapter per enabled provider and registers it
func (d *Dependencies) initAdapters(cfg *config.Config) error {
	adapters := providers.NewRegistry()

	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			d.Logger.Info("provider disabled, no adapter registered",
				zap.String("provider", pc.Name))
			continue
		}

		var adapter providers.Adapter
		switch pc.Kind {
		case "http":
			httpAdapter := providers.NewHTTPAdapter(providers.HTTPConfig{
				Name:      pc.Name,
				BaseURL:   pc.BaseURL,
				APIKey:    pc.APIKey,
				Model:     pc.Model,
				DeepModel: pc.DeepModel,
				Timeout:   pc.Timeout,
			}, d.Logger)
			d.healthChecks[pc.Name] = httpAdapter.Healthy
			adapter = httpAdapter
		case "static":
			adapter = providers.NewStaticAdapter(pc.Name)
		default:
			return fmt.Errorf("unknown provider kind %q for provider %q", pc.Kind, pc.Name)
		}

		if err := adapters.Register(adapter); err != nil {
			return fmt.Errorf("failed to register provider %q: %w", pc.Name, err)
		}

		d.Logger.Info("provider adapter registered",
			zap.String("provider", pc.Name),
			zap.String("kind", pc.Kind))
	}

	d.Adapters = adapters
	return nil
}

// initHealth builds the provider health registry from the configured set
func (d *Dependencies) initHealth(cfg *config.Config) {
	providerConfigs := make([]registry.ProviderConfig, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		providerConfigs = append(providerConfigs, registry.ProviderConfig{
			Name:        pc.Name,
			Priority:    pc.Priority,
			Enabled:     pc.Enabled,
			MaxRetries:  pc.MaxRetries,
			Timeout:     pc.Timeout,
			HealthCheck: d.healthChecks[pc.Name],
		})
	}

	d.Health = registry.New(registry.Config{
		DecayProbeDelay:     cfg.Registry.DecayProbeDelay,
		UnhealthyProbeDelay: cfg.Registry.UnhealthyProbeDelay,
		MaxProbeDelay:       cfg.Registry.MaxProbeDelay,
		ProbeSweepInterval:  cfg.Registry.ProbeSweepInterval,
		HealthCheckTimeout:  cfg.Registry.HealthCheckTimeout,
	}, providerConfigs, d.Metrics, d.Logger)
}

// initCache builds the response cache and optionally seeds canonical entries
func (d *Dependencies) initCache(cfg *config.Config) {
	d.Cache = cache.New(cache.Config{
		Capacity:        cfg.Cache.Capacity,
		DefaultTTL:      cfg.Cache.DefaultTTL,
		WarmupTTL:       cfg.Cache.WarmupTTL,
		MinLength:       cfg.Cache.MinLength,
		MaxLength:       cfg.Cache.MaxLength,
		ScoreWeight:     cfg.Cache.ScoreWeight,
		CleanupInterval: cfg.Cache.CleanupInterval,
	}, d.Logger)

	if cfg.Cache.WarmupEnabled {
		seeded := d.Cache.Warmup()
		d.Logger.Info("response cache warmed", zap.Int("entries", seeded))
	}
}

// initRecording connects the database and builds the recording pipeline.
// Recording is optional: without a database the service answers requests
// normally and simply keeps no request log.
func (d *Dependencies) initRecording(ctx context.Context, cfg *config.Config) error {
	if !cfg.RecordingEnabled() {
		d.Logger.Info("request recording disabled, no database configured")
		return nil
	}

	db, err := postgres.NewDB(*cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.DB = db
	d.RequestRecords = postgres.NewRequestRecordRepository(db, d.Logger)
	d.Recorder = recorder.NewService(d.RequestRecords, d.Logger, recorder.Config{
		BufferSize:  cfg.Recorder.BufferSize,
		WorkerCount: cfg.Recorder.WorkerCount,
	})

	return nil
}

// initOrchestrator wires the dispatch loop over the other components
func (d *Dependencies) initOrchestrator(cfg *config.Config) {
	d.Orchestrator = orchestrator.NewService(orchestrator.Config{
		DefaultTimeout: cfg.Orchestrator.DefaultTimeout,
	}, d.Health, d.Cache, d.Adapters, d.Recorder, d.Metrics, d.Logger)
}

// startWorkers launches the background goroutines: recovery probing, cache
// cleanup, and record persistence. All stop when Close cancels their context.
func (d *Dependencies) startWorkers() error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancelWorkers = cancel

	d.Health.StartRecoveryWorker(ctx)
	d.Cache.StartCleanupWorker(ctx)

	if d.Recorder != nil {
		if err := d.Recorder.Start(); err != nil {
			return fmt.Errorf("failed to start recorder: %w", err)
		}
	}

	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.cancelWorkers != nil {
		d.cancelWorkers()
	}

	// Drain buffered records before the database goes away
	if d.Recorder != nil {
		if err := d.Recorder.Stop(d.Config.Recorder.StopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain recorder: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
