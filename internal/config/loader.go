package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"webenv/internal/envconfig"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix prefixes every service environment override.
const DefaultEnvPrefix = "WEBENV"

// Loader handles configuration loading from YAML files and environment variables
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, envPrefix string) *Loader {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}
	return &Loader{
		configPath: configPath,
		envPrefix:  envPrefix,
	}
}

// ConfigPath returns the YAML file the loader reads, possibly empty.
func (l *Loader) ConfigPath() string { return l.configPath }

// EnvPrefix returns the prefix used for environment overrides.
func (l *Loader) EnvPrefix() string { return l.envPrefix }

// Load loads configuration from YAML file and applies environment variable overrides
func (l *Loader) Load() (*envconfig.Config, error) {
	config := &envconfig.Config{}

	// Defaults whose zero value means "off" are seeded before decoding so an
	// explicit false or 0 survives.
	config.Template.Watch = true
	config.Metrics.Enabled = true
	config.Server.RateLimit = 60

	// Load from YAML file if it exists
	if l.configPath != "" {
		if err := l.loadFromYAML(config); err != nil {
			return nil, fmt.Errorf("failed to load YAML config: %w", err)
		}
	}

	// Apply defaults
	l.applyDefaults(config)

	// Apply environment variable overrides
	l.applyEnvOverrides(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromYAML loads configuration from YAML file
func (l *Loader) loadFromYAML(config *envconfig.Config) error {
	if _, err := os.Stat(l.configPath); os.IsNotExist(err) {
		return nil // Config file is optional
	}

	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// applyDefaults applies default values to configuration fields
func (l *Loader) applyDefaults(config *envconfig.Config) {
	// Server defaults
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 10 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 10 * time.Second
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 120 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}
	if config.Server.MaxHeaderBytes == 0 {
		config.Server.MaxHeaderBytes = 1048576 // 1MB
	}
	if config.Server.RateLimit < 0 {
		config.Server.RateLimit = 0
	}

	// Template defaults
	if config.Template.ExamplePath == "" {
		config.Template.ExamplePath = "web/env-config.example.js"
	}
	if config.Template.LocalPath == "" {
		config.Template.LocalPath = "web/env-config.js"
	}
	if config.Template.DotEnvPath == "" {
		config.Template.DotEnvPath = ".env"
	}
	if config.Template.GitignorePath == "" {
		config.Template.GitignorePath = ".gitignore"
	}
	if config.Template.Namespace == "" {
		config.Template.Namespace = "window.ENV"
	}
	if config.Template.Debounce == 0 {
		config.Template.Debounce = 500 * time.Millisecond
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}

	// Metrics defaults
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = "webenv"
	}

	// Cache defaults
	if config.Cache.KeyPrefix == "" {
		config.Cache.KeyPrefix = "webenv:"
	}
	if config.Cache.MaxKeys == 0 {
		config.Cache.MaxKeys = 1000
	}
	if config.Cache.CleanupInterval == 0 {
		config.Cache.CleanupInterval = 10 * time.Minute
	}
	if config.Cache.DefaultTTL == 0 {
		config.Cache.DefaultTTL = time.Hour
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func (l *Loader) applyEnvOverrides(config *envconfig.Config) {
	// Server overrides
	if port := l.getenv("SERVER_PORT"); port != "" {
		config.Server.Port = port
	}
	if host := l.getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if timeout := l.getenv("SERVER_READ_TIMEOUT"); timeout != "" {
		if duration, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = duration
		}
	}
	if timeout := l.getenv("SERVER_WRITE_TIMEOUT"); timeout != "" {
		if duration, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = duration
		}
	}
	if timeout := l.getenv("SERVER_SHUTDOWN_TIMEOUT"); timeout != "" {
		if duration, err := time.ParseDuration(timeout); err == nil {
			config.Server.ShutdownTimeout = duration
		}
	}
	if limit := l.getenv("RATE_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			config.Server.RateLimit = n
		}
	}
	if origins := l.getenv("ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}

	// Template overrides
	if path := l.getenv("TEMPLATE_EXAMPLE_PATH"); path != "" {
		config.Template.ExamplePath = path
	}
	if path := l.getenv("TEMPLATE_LOCAL_PATH"); path != "" {
		config.Template.LocalPath = path
	}
	if path := l.getenv("DOTENV_PATH"); path != "" {
		config.Template.DotEnvPath = path
	}
	if path := l.getenv("GITIGNORE_PATH"); path != "" {
		config.Template.GitignorePath = path
	}
	if ns := l.getenv("TEMPLATE_NAMESPACE"); ns != "" {
		config.Template.Namespace = ns
	}
	if quiet, ok := l.getbool("QUIET"); ok {
		config.Template.Quiet = quiet
	}
	if strict, ok := l.getbool("STRICT"); ok {
		config.Template.Strict = strict
	}
	if watch, ok := l.getbool("WATCH"); ok {
		config.Template.Watch = watch
	}
	if debounce := l.getenv("WATCH_DEBOUNCE"); debounce != "" {
		if duration, err := time.ParseDuration(debounce); err == nil {
			config.Template.Debounce = duration
		}
	}

	// Credentials overrides
	if path := l.getenv("CREDENTIALS_PATH"); path != "" {
		config.Credentials.Path = path
	}
	if encoded := l.getenv("CREDENTIALS_BASE64"); encoded != "" {
		config.Credentials.Base64 = encoded
	}

	// Logging overrides
	if level := l.getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := l.getenv("LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := l.getenv("LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	// Metrics overrides
	if enabled := l.getenv("METRICS_ENABLED"); enabled != "" {
		config.Metrics.Enabled = strings.ToLower(enabled) == "true"
	}
	if path := l.getenv("METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	// Cache overrides
	if cacheType := l.getenv("CACHE_TYPE"); cacheType != "" {
		config.Cache.Type = envconfig.ParseCacheType(cacheType)
	}
	if redisURL := l.getenv("REDIS_URL"); redisURL != "" {
		config.Cache.RedisURL = redisURL
	}
	if redisPassword := l.getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.Cache.RedisPassword = redisPassword
	}
	if redisDB := l.getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			config.Cache.RedisDB = db
		}
	}
}

func (l *Loader) getenv(name string) string {
	return os.Getenv(l.envPrefix + "_" + name)
}

func (l *Loader) getbool(name string) (bool, bool) {
	v := l.getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
