package envconfig

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`    // debug, info, warn, error
	Format string `yaml:"format" default:"json"`   // json, text
	Output string `yaml:"output" default:"stdout"` // stdout, stderr
}
