package envconfig

// ConfigLoader looks up configuration values by key.
type ConfigLoader interface {
	// Get retrieves a configuration value by key
	Get(key string) (string, bool)

	// HasPrefix returns all keys that start with the given prefix
	HasPrefix(prefix string) map[string]string
}
