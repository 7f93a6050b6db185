package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"webenv/internal/envconfig"
	"webenv/internal/script"
	"webenv/web"
)

// RecordLoader produces the current Firebase web config.
type RecordLoader interface {
	Load() (envconfig.Loaded, error)
}

// FirebaseLoader assembles the Firebase web config from its layers, lowest
// precedence first: the local env-config.js (or the example template when the
// local copy is missing), the firebase section of the YAML file, the dotenv
// file and finally the process environment.
type FirebaseLoader struct {
	template   envconfig.TemplateConfig
	fromYAML   envconfig.FirebaseConfig
	configPath string
	env        envconfig.ConfigLoader
	logger     envconfig.Logger
}

// NewFirebaseLoader creates a loader for the given service configuration.
func NewFirebaseLoader(cfg *envconfig.Config, configPath, envPrefix string, logger envconfig.Logger) *FirebaseLoader {
	return &FirebaseLoader{
		template:   cfg.Template,
		fromYAML:   cfg.Firebase,
		configPath: configPath,
		env:        NewEnvConfigLoader(envPrefix),
		logger:     logger,
	}
}

// WatchPaths returns the files whose changes should trigger a reload.
func (l *FirebaseLoader) WatchPaths() []string {
	paths := []string{l.template.LocalPath}
	if l.template.DotEnvPath != "" {
		paths = append(paths, l.template.DotEnvPath)
	}
	return paths
}

// Load builds the record. Missing fields are logged one by one; in strict
// mode they fail the load with ErrIncompleteConfig.
func (l *FirebaseLoader) Load() (envconfig.Loaded, error) {
	loaded := envconfig.Loaded{Sources: make(map[string]envconfig.Source)}
	origins := make(map[envconfig.Source]string)

	base, source, origin, err := l.loadScript()
	if err != nil {
		return envconfig.Loaded{}, err
	}
	l.apply(&loaded, base, source)
	origins[source] = origin

	l.apply(&loaded, l.fromYAML, envconfig.SourceYAML)
	origins[envconfig.SourceYAML] = l.configPath

	dotenv, err := l.loadDotEnv()
	if err != nil {
		return envconfig.Loaded{}, err
	}
	l.apply(&loaded, dotenv, envconfig.SourceDotEnv)
	origins[envconfig.SourceDotEnv] = l.template.DotEnvPath

	l.apply(&loaded, l.loadEnvironment(), envconfig.SourceEnvironment)
	origins[envconfig.SourceEnvironment] = "environment"

	primary := loaded.Primary()
	loaded.Origin = origins[primary]

	l.logger.Info("firebase config loaded",
		"source", primary.String(),
		"file", loaded.Origin,
		"fingerprint", loaded.Config.Fingerprint(),
	)
	l.logger.Debug("firebase config values", "config", loaded.Config)

	missing := loaded.Config.Missing()
	for _, key := range missing {
		l.logger.Warn("firebase config field is empty", "field", key)
	}
	if l.template.Strict && len(missing) > 0 {
		return envconfig.Loaded{}, loaded.Config.Validate()
	}

	return loaded, nil
}

func (l *FirebaseLoader) apply(loaded *envconfig.Loaded, layer envconfig.FirebaseConfig, source envconfig.Source) {
	for _, f := range layer.Fields() {
		if envconfig.IsSet(f.Value) {
			loaded.Sources[f.Key] = source
		}
	}
	loaded.Config = loaded.Config.Merge(layer)
}

// loadScript reads the local copy, falling back to the example template on
// disk and then to the embedded one.
func (l *FirebaseLoader) loadScript() (envconfig.FirebaseConfig, envconfig.Source, string, error) {
	s, err := script.ParseFile(l.template.LocalPath)
	switch {
	case err == nil:
		l.logUnknown(s, l.template.LocalPath)
		return s.Config(), envconfig.SourceLocal, l.template.LocalPath, nil
	case !errors.Is(err, os.ErrNotExist):
		return envconfig.FirebaseConfig{}, envconfig.SourceNone, "", fmt.Errorf("%w: %w", envconfig.ErrConfigurationError, err)
	}

	l.logger.Warn("local config not found, using example template",
		"local", l.template.LocalPath,
		"example", l.template.ExamplePath,
	)

	s, err = script.ParseFile(l.template.ExamplePath)
	switch {
	case err == nil:
		l.logUnknown(s, l.template.ExamplePath)
		return s.Config(), envconfig.SourceExample, l.template.ExamplePath, nil
	case !errors.Is(err, os.ErrNotExist):
		return envconfig.FirebaseConfig{}, envconfig.SourceNone, "", fmt.Errorf("%w: %w", envconfig.ErrConfigurationError, err)
	}

	s, err = script.Parse(bytes.NewReader(web.ExampleTemplate))
	if err != nil {
		return envconfig.FirebaseConfig{}, envconfig.SourceNone, "", fmt.Errorf("%w: embedded template: %w", envconfig.ErrTemplateNotFound, err)
	}
	l.logger.Debug("using embedded example template", "name", web.ExampleTemplateName)
	return s.Config(), envconfig.SourceExample, web.ExampleTemplateName, nil
}

func (l *FirebaseLoader) logUnknown(s *script.Script, path string) {
	for _, key := range s.Unknown {
		l.logger.Debug("ignoring unknown key in script", "file", path, "key", key)
	}
}

// loadDotEnv reads the dotenv file. A missing file is not an error.
func (l *FirebaseLoader) loadDotEnv() (envconfig.FirebaseConfig, error) {
	if l.template.DotEnvPath == "" {
		return envconfig.FirebaseConfig{}, nil
	}

	values, err := godotenv.Read(l.template.DotEnvPath)
	if errors.Is(err, os.ErrNotExist) {
		return envconfig.FirebaseConfig{}, nil
	}
	if err != nil {
		return envconfig.FirebaseConfig{}, fmt.Errorf("%w: failed to read %s: %w", envconfig.ErrConfigurationError, l.template.DotEnvPath, err)
	}

	return envconfig.FromMap(values), nil
}

func (l *FirebaseLoader) loadEnvironment() envconfig.FirebaseConfig {
	values := make(map[string]string)
	for _, key := range envconfig.Keys() {
		if v, ok := l.env.Get(key); ok {
			values[key] = v
		}
	}

	for key := range l.env.HasPrefix("firebase_") {
		name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if !envconfig.IsKey(name) {
			l.logger.Debug("ignoring unknown firebase variable", "name", name)
		}
	}

	return envconfig.FromMap(values)
}
