package envconfig

import (
	"fmt"
	"time"
)

// Config represents the service configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Template    TemplateConfig    `yaml:"template"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Cache       CacheConfig       `yaml:"cache"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`

	// Firebase holds field values set directly in the YAML file. They sit
	// above the local env-config.js and below .env and the environment.
	Firebase FirebaseConfig `yaml:"firebase"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            string        `yaml:"port" default:"8080"`
	Host            string        `yaml:"host" default:"0.0.0.0"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" default:"1048576"` // 1MB
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RateLimit       int           `yaml:"rate_limit" default:"60"` // POST requests per minute per client IP, 0 disables
}

// TemplateConfig locates the template, its local copy and the generated script.
type TemplateConfig struct {
	ExamplePath   string        `yaml:"example_path" default:"web/env-config.example.js"`
	LocalPath     string        `yaml:"local_path" default:"web/env-config.js"`
	DotEnvPath    string        `yaml:"dotenv_path" default:".env"`
	GitignorePath string        `yaml:"gitignore_path" default:".gitignore"`
	Namespace     string        `yaml:"namespace" default:"window.ENV"`
	Quiet         bool          `yaml:"quiet"`
	Strict        bool          `yaml:"strict"`
	Watch         bool          `yaml:"watch" default:"true"`
	Debounce      time.Duration `yaml:"debounce" default:"500ms"`
}

// CredentialsConfig holds the service account used by the Admin SDK.
// With neither field set, application default credentials are used.
type CredentialsConfig struct {
	Path   string `yaml:"path"`
	Base64 string `yaml:"base64"`
}

// Source returns how the credentials are supplied.
func (c CredentialsConfig) Source() string {
	switch {
	case c.Base64 != "":
		return "base64"
	case c.Path != "":
		return "file"
	default:
		return "default"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("%w: server port is required", ErrConfigurationError)
	}
	if c.Template.LocalPath == "" {
		return fmt.Errorf("%w: template local path is required", ErrConfigurationError)
	}
	if c.Template.Namespace == "" {
		return fmt.Errorf("%w: template namespace is required", ErrConfigurationError)
	}
	if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("%w: redis cache requires redis_url", ErrConfigurationError)
	}
	return nil
}
