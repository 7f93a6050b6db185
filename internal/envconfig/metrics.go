package envconfig

import "time"

// Metrics interface for monitoring and observability
type Metrics interface {
	// result: "ok", "not_modified", "error"
	IncScriptRequests(format string, result string)
	// result: "success", "failure"
	IncReloads(result string)
	IncCacheHits(kind string)
	IncCacheMisses(kind string)
	IncTokenVerifications(result string)

	ObserveRenderDuration(duration time.Duration)
	ObserveVerifyDuration(duration time.Duration)
	ObserveHTTPRequest(route string, status int, duration time.Duration)

	SetMissingFields(count int)
	SetFirebaseStatus(healthy bool)
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" default:"true"`
	Path      string `yaml:"path" default:"/metrics"`
	Namespace string `yaml:"namespace" default:"webenv"`
}
