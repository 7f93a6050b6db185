package config

import (
	"os"
	"strings"
)

// EnvConfigLoader implements envconfig.ConfigLoader over the process
// environment. A key is looked up as PREFIX_KEY first, then as the bare KEY.
type EnvConfigLoader struct {
	envPrefix string
}

// NewEnvConfigLoader creates a new environment-based config loader
func NewEnvConfigLoader(envPrefix string) *EnvConfigLoader {
	return &EnvConfigLoader{envPrefix: envPrefix}
}

// Get retrieves a configuration value by key
func (e *EnvConfigLoader) Get(key string) (string, bool) {
	if value := os.Getenv(e.buildEnvKey(key)); value != "" {
		return value, true
	}

	if e.envPrefix != "" {
		if value := os.Getenv(envName(key)); value != "" {
			return value, true
		}
	}

	return "", false
}

// HasPrefix returns all keys that start with the given prefix, in dotted
// lower case. Prefixed variables win over bare ones.
func (e *EnvConfigLoader) HasPrefix(prefix string) map[string]string {
	result := make(map[string]string)

	environ := os.Environ()
	if e.envPrefix != "" {
		e.collectEnvWithPrefix(environ, "", envName(prefix), result)
	}
	e.collectEnvWithPrefix(environ, e.envPrefix, e.buildEnvKey(prefix), result)

	return result
}

func (e *EnvConfigLoader) collectEnvWithPrefix(environ []string, envPrefix, namePrefix string, result map[string]string) {
	for _, env := range environ {
		name, value, ok := strings.Cut(env, "=")
		if !ok || value == "" || !strings.HasPrefix(name, namePrefix) {
			continue
		}
		if envPrefix != "" {
			name = strings.TrimPrefix(name, envPrefix+"_")
		}
		result[strings.ReplaceAll(strings.ToLower(name), "_", ".")] = value
	}
}

// buildEnvKey builds an environment variable key from a config key
func (e *EnvConfigLoader) buildEnvKey(key string) string {
	if e.envPrefix != "" {
		return e.envPrefix + "_" + envName(key)
	}
	return envName(key)
}

// envName converts dots and dashes to underscores and uppercases the key.
func envName(key string) string {
	name := strings.ReplaceAll(key, ".", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return strings.ToUpper(name)
}
