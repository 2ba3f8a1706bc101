package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nlieb/chatmux/utils"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: when nil, request recording is disabled.
	Providers     []ProviderConfig
	Registry      RegistryConfig
	Cache         CacheConfig
	Recorder      RecorderConfig
	Orchestrator  OrchestratorConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ProviderConfig holds one declared chat provider. Providers are declared by
// name in PROVIDERS and configured through PROVIDER_<NAME>_* variables.
type ProviderConfig struct {
	// Name identifies the provider ("openai", "groq", "local", ...)
	Name string

	// Kind selects the adapter: "http" for OpenAI-compatible remote
	// backends, "static" for the deterministic local adapter
	Kind string

	// APIKey for bearer authentication; empty for unauthenticated backends
	APIKey string

	// BaseURL is the API root for http providers
	BaseURL string

	// Model used for fast mode
	Model string

	// DeepModel used for deep mode; falls back to Model when empty
	DeepModel string

	// Priority orders fallback; lower is preferred
	Priority int

	// MaxRetries bounds consecutive attempts against this provider
	MaxRetries int

	// Timeout bounds a single dispatch attempt
	Timeout time.Duration

	// Enabled providers participate in routing
	Enabled bool
}

// RegistryConfig holds provider health recovery tuning
type RegistryConfig struct {
	DecayProbeDelay     time.Duration
	UnhealthyProbeDelay time.Duration
	MaxProbeDelay       time.Duration
	ProbeSweepInterval  time.Duration
	HealthCheckTimeout  time.Duration
}

// CacheConfig holds response cache tuning
type CacheConfig struct {
	Capacity        int
	DefaultTTL      time.Duration
	WarmupTTL       time.Duration
	MinLength       int
	MaxLength       int
	ScoreWeight     int64
	CleanupInterval time.Duration
	WarmupEnabled   bool
}

// RecorderConfig holds request recording worker tuning
type RecorderConfig struct {
	BufferSize  int
	WorkerCount int
	StopTimeout time.Duration
}

// OrchestratorConfig holds request orchestration tuning
type OrchestratorConfig struct {
	// DefaultTimeout bounds a dispatch attempt for providers without their
	// own timeout
	DefaultTimeout time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database:  loadDatabaseConfig(),
		Providers: loadProviderConfigs(),
		Registry: RegistryConfig{
			DecayProbeDelay:     getEnvAsDuration("REGISTRY_DECAY_PROBE_DELAY", 10*time.Second),
			UnhealthyProbeDelay: getEnvAsDuration("REGISTRY_UNHEALTHY_PROBE_DELAY", 30*time.Second),
			MaxProbeDelay:       getEnvAsDuration("REGISTRY_MAX_PROBE_DELAY", 5*time.Minute),
			ProbeSweepInterval:  getEnvAsDuration("REGISTRY_PROBE_SWEEP_INTERVAL", 5*time.Second),
			HealthCheckTimeout:  getEnvAsDuration("REGISTRY_HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
		Cache: CacheConfig{
			Capacity:        getEnvAsInt("CACHE_CAPACITY", 1000),
			DefaultTTL:      getEnvAsDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
			WarmupTTL:       getEnvAsDuration("CACHE_WARMUP_TTL", 24*time.Hour),
			MinLength:       getEnvAsInt("CACHE_MIN_LENGTH", 2),
			MaxLength:       getEnvAsInt("CACHE_MAX_LENGTH", 500),
			ScoreWeight:     int64(getEnvAsInt("CACHE_SCORE_WEIGHT", 60_000)),
			CleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
			WarmupEnabled:   getEnvAsBool("CACHE_WARMUP_ENABLED", true),
		},
		Recorder: RecorderConfig{
			BufferSize:  getEnvAsInt("RECORDER_BUFFER_SIZE", 1024),
			WorkerCount: getEnvAsInt("RECORDER_WORKER_COUNT", 2),
			StopTimeout: getEnvAsDuration("RECORDER_STOP_TIMEOUT", 5*time.Second),
		},
		Orchestrator: OrchestratorConfig{
			DefaultTimeout: getEnvAsDuration("ORCHESTRATOR_DEFAULT_TIMEOUT", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be declared in PROVIDERS")
	}

	seen := make(map[string]bool, len(c.Providers))
	enabled := 0
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider name cannot be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %q declared more than once", p.Name)
		}
		seen[p.Name] = true

		if err := utils.ValidateOneOf(p.Kind, providerEnvKey(p.Name, "KIND"), []string{"http", "static"}); err != nil {
			return err
		}
		if p.Kind == "http" && p.BaseURL == "" {
			return fmt.Errorf("provider %q requires %s", p.Name, providerEnvKey(p.Name, "BASE_URL"))
		}
		if p.Kind == "http" && p.Model == "" {
			return fmt.Errorf("provider %q requires %s", p.Name, providerEnvKey(p.Name, "MODEL"))
		}
		if p.MaxRetries < 0 {
			return fmt.Errorf("provider %q max retries cannot be negative", p.Name)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("provider %q timeout must be positive", p.Name)
		}
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}

	// Remote provider required in production (static adapters only echo)
	if c.IsProduction() {
		remote := false
		for _, p := range c.Providers {
			if p.Enabled && p.Kind == "http" {
				remote = true
				break
			}
		}
		if !remote {
			return fmt.Errorf("at least one http provider must be configured in production")
		}
	}

	if err := utils.ValidateOneOf(c.Observability.LogLevel, "LOG_LEVEL", []string{"debug", "info", "warn", "error"}); err != nil {
		return err
	}
	if err := utils.ValidateOneOf(c.Observability.LogFormat, "LOG_FORMAT", []string{"json", "console", "text"}); err != nil {
		return err
	}

	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive")
	}
	if c.Cache.MinLength > c.Cache.MaxLength {
		return fmt.Errorf("cache min length cannot exceed max length")
	}

	if c.Recorder.BufferSize <= 0 {
		return fmt.Errorf("recorder buffer size must be positive")
	}
	if c.Recorder.WorkerCount <= 0 {
		return fmt.Errorf("recorder worker count must be positive")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// RecordingEnabled reports whether request recording is configured
func (c *Config) RecordingEnabled() bool {
	return c.Database != nil
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither is set; request recording is disabled without a database.
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return &DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	if os.Getenv("DB_HOST") == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "chatmux"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "chatmux"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadProviderConfigs loads the declared provider set from PROVIDERS and
// PROVIDER_<NAME>_* env vars. Declaration order sets the default priority.
func loadProviderConfigs() []ProviderConfig {
	names := strings.Split(getEnv("PROVIDERS", "local"), ",")

	configs := make([]ProviderConfig, 0, len(names))
	for i, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}

		baseURL := getEnv(providerEnvKey(name, "BASE_URL"), "")

		// Kind defaults to http when a base URL is configured, static otherwise
		kind := getEnv(providerEnvKey(name, "KIND"), "")
		if kind == "" {
			if baseURL != "" {
				kind = "http"
			} else {
				kind = "static"
			}
		}

		configs = append(configs, ProviderConfig{
			Name:       name,
			Kind:       kind,
			APIKey:     getEnv(providerEnvKey(name, "API_KEY"), ""),
			BaseURL:    baseURL,
			Model:      getEnv(providerEnvKey(name, "MODEL"), ""),
			DeepModel:  getEnv(providerEnvKey(name, "DEEP_MODEL"), ""),
			Priority:   getEnvAsInt(providerEnvKey(name, "PRIORITY"), i+1),
			MaxRetries: getEnvAsInt(providerEnvKey(name, "MAX_RETRIES"), 2),
			Timeout:    getEnvAsDuration(providerEnvKey(name, "TIMEOUT"), 30*time.Second),
			Enabled:    getEnvAsBool(providerEnvKey(name, "ENABLED"), true),
		})
	}

	return configs
}

// providerEnvKey builds the env var name for one provider setting,
// e.g. ("openai", "API_KEY") -> "PROVIDER_OPENAI_API_KEY"
func providerEnvKey(name, suffix string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return "PROVIDER_" + normalized + "_" + suffix
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
