package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"webenv/internal/envconfig"
	"webenv/internal/firebase"
	"webenv/internal/script"
)

// RecordSource exposes the current Firebase web config.
type RecordSource interface {
	Get() envconfig.Loaded
	Reload(ctx context.Context) error
}

// TokenVerifier verifies Firebase ID tokens from an Authorization header.
type TokenVerifier interface {
	Verify(ctx context.Context, authHeader string) (*firebase.Claims, error)
}

// AdminChecker reports whether the Admin SDK can be used with a config.
type AdminChecker interface {
	Check(ctx context.Context, cfg envconfig.FirebaseConfig) error
}

// HealthStatus represents health check status
type HealthStatus int

const (
	HealthStatusHealthy HealthStatus = iota
	HealthStatusUnhealthy
	HealthStatusDegraded
)

// String returns the string representation of the health status
func (h HealthStatus) String() string {
	switch h {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusUnhealthy:
		return "unhealthy"
	case HealthStatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler interface
func (h HealthStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// Options configure the served script.
type Options struct {
	Script   script.Options
	CacheTTL time.Duration // lifetime of rendered scripts in the cache
}

// Handlers contains all HTTP handlers with shared dependencies
type Handlers struct {
	records  RecordSource
	verifier TokenVerifier
	admin    AdminChecker
	cache    envconfig.Cache
	opts     Options
	variant  string
	logger   envconfig.Logger
	metrics  envconfig.Metrics
}

// NewHandlers creates a new handlers instance with injected dependencies.
// verifier and admin may be nil when the Admin SDK is not used.
func NewHandlers(records RecordSource, verifier TokenVerifier, admin AdminChecker, cache envconfig.Cache, opts Options, logger envconfig.Logger, metrics envconfig.Metrics) *Handlers {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	opts.Script.Origin = ""
	return &Handlers{
		records:  records,
		verifier: verifier,
		admin:    admin,
		cache:    cache,
		opts:     opts,
		variant:  scriptVariant(opts.Script),
		logger:   logger.With("component", "handlers"),
		metrics:  metrics,
	}
}

// scriptVariant identifies the render options that shape the script body.
func scriptVariant(opts script.Options) string {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = script.DefaultNamespace
	}
	fileName := opts.FileName
	if fileName == "" {
		fileName = script.DefaultFileName
	}
	return fmt.Sprintf("%s\x00%s\x00%t", namespace, fileName, opts.Quiet)
}

// scriptVersion hashes the config fingerprint together with the render
// options. It is both the ETag and the render cache key.
func (h *Handlers) scriptVersion(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint + "\x00" + h.variant))
	return hex.EncodeToString(sum[:8])
}

// ScriptHandler handles GET /env-config.js. The ETag changes with the config
// and the render options, so browsers revalidate cheaply and pick up reloads.
func (h *Handlers) ScriptHandler(w http.ResponseWriter, r *http.Request) {
	loaded := h.records.Get()
	version := h.scriptVersion(loaded.Config.Fingerprint())
	etag := `"` + version + `"`

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		h.metrics.IncScriptRequests("js", "not_modified")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body, err := h.renderScript(r.Context(), loaded.Config, version)
	if err != nil {
		h.metrics.IncScriptRequests("js", "error")
		h.logger.Error("failed to render script", "error", err)
		h.writeError(w, envconfig.ErrorToHTTPError(err), http.StatusInternalServerError)
		return
	}

	h.metrics.IncScriptRequests("js", "ok")
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("failed to write script", "error", err)
	}
}

// renderScript returns the rendered script, cached by version.
func (h *Handlers) renderScript(ctx context.Context, cfg envconfig.FirebaseConfig, version string) ([]byte, error) {
	key := "script:" + version

	if body, err := h.cache.Get(ctx, key); err == nil {
		h.metrics.IncCacheHits("script")
		return body, nil
	} else if !errors.Is(err, envconfig.ErrCacheKeyNotFound) {
		h.logger.Debug("cache get error", "key", key, "error", err)
	}
	h.metrics.IncCacheMisses("script")

	start := time.Now()
	body, err := script.Bytes(cfg, h.opts.Script)
	if err != nil {
		return nil, err
	}
	h.metrics.ObserveRenderDuration(time.Since(start))

	if err := h.cache.Set(ctx, key, body, h.opts.CacheTTL); err != nil {
		h.logger.Debug("cache set error", "key", key, "error", err)
	}
	return body, nil
}

// ConfigJSONHandler handles GET /env-config.json
func (h *Handlers) ConfigJSONHandler(w http.ResponseWriter, r *http.Request) {
	loaded := h.records.Get()
	etag := `"` + loaded.Config.Fingerprint() + `"`

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		h.metrics.IncScriptRequests("json", "not_modified")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.metrics.IncScriptRequests("json", "ok")
	h.writeJSON(w, http.StatusOK, loaded.Config)
}

// VerifyHandler handles POST /verify requests
func (h *Handlers) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		h.writeError(w, envconfig.ErrorToHTTPError(envconfig.ErrFirebaseUnavailable), http.StatusServiceUnavailable)
		return
	}

	claims, err := h.verifier.Verify(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.logger.Debug("token verification failed", "error", err)
		h.writeError(w, envconfig.ErrorToHTTPError(err), envconfig.ErrorToHTTPStatus(err))
		return
	}

	h.setUserHeaders(w, claims)
	h.writeJSON(w, http.StatusOK, claims)
}

// setUserHeaders sets user information headers for reverse proxies
func (h *Handlers) setUserHeaders(w http.ResponseWriter, claims *firebase.Claims) {
	w.Header().Set("X-User-ID", claims.Subject)
	w.Header().Set("X-Token-Expires", claims.ExpiresAt.Format(time.RFC3339))

	if claims.Email != "" {
		w.Header().Set("X-User-Email", claims.Email)
	}
	if claims.EmailVerified {
		w.Header().Set("X-User-Email-Verified", "true")
	}
}

// ReloadResponse describes the record after a reload.
type ReloadResponse struct {
	Fingerprint string   `json:"fingerprint"`
	Source      string   `json:"source"`
	Origin      string   `json:"origin,omitempty"`
	Missing     []string `json:"missing,omitempty"`
}

// ReloadHandler handles POST /reload
func (h *Handlers) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Reload(r.Context()); err != nil {
		h.logger.Warn("reload request failed", "error", err)
		h.writeError(w, envconfig.ErrorToHTTPError(err), envconfig.ErrorToHTTPStatus(err))
		return
	}

	loaded := h.records.Get()
	h.writeJSON(w, http.StatusOK, ReloadResponse{
		Fingerprint: loaded.Config.Fingerprint(),
		Source:      loaded.Primary().String(),
		Origin:      loaded.Origin,
		Missing:     loaded.Config.Missing(),
	})
}

// HealthCheckHandler handles GET /health requests. Missing fields or an
// unusable Admin SDK degrade the service; an empty config makes it unhealthy.
func (h *Handlers) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	loaded := h.records.Get()
	missing := loaded.Config.Missing()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Config: ConfigHealth{
			Status:      HealthStatusHealthy,
			Fingerprint: loaded.Config.Fingerprint(),
			Source:      loaded.Primary(),
			Origin:      loaded.Origin,
			Missing:     missing,
		},
	}

	switch {
	case loaded.Config.IsZero():
		response.Config.Status = HealthStatusUnhealthy
	case len(missing) > 0:
		response.Config.Status = HealthStatusDegraded
	}

	if h.admin == nil {
		response.Firebase = FirebaseHealth{Status: HealthStatusDegraded, Error: "admin client disabled"}
	} else if err := h.admin.Check(ctx, loaded.Config); err != nil {
		response.Firebase = FirebaseHealth{Status: HealthStatusDegraded, Error: err.Error()}
	} else {
		response.Firebase = FirebaseHealth{Status: HealthStatusHealthy, ProjectID: loaded.Config.ProjectID}
	}

	cacheStats := h.cache.Stats()
	response.Cache = CacheHealth{
		Type:   cacheStats.Type,
		Status: HealthStatusHealthy,
		Stats:  cacheStats,
	}

	for _, s := range []HealthStatus{response.Config.Status, response.Firebase.Status} {
		if s == HealthStatusUnhealthy || (s == HealthStatusDegraded && response.Status == HealthStatusHealthy) {
			response.Status = s
		}
	}

	statusCode := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	h.writeJSON(w, statusCode, response)

	h.logger.Debug("health check completed", "status", response.Status, "missing", len(missing))
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (h *Handlers) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handlers) writeError(w http.ResponseWriter, httpErr *envconfig.HTTPError, statusCode int) {
	h.writeJSON(w, statusCode, httpErr)

	h.logger.Debug("request failed",
		"code", httpErr.Code,
		"message", httpErr.Message,
		"details", httpErr.Details,
		"status", statusCode)
}

// HealthResponse types
type HealthResponse struct {
	Status    HealthStatus   `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Config    ConfigHealth   `json:"config"`
	Firebase  FirebaseHealth `json:"firebase"`
	Cache     CacheHealth    `json:"cache"`
}

type ConfigHealth struct {
	Status      HealthStatus     `json:"status"`
	Fingerprint string           `json:"fingerprint"`
	Source      envconfig.Source `json:"source"`
	Origin      string           `json:"origin,omitempty"`
	Missing     []string         `json:"missing,omitempty"`
}

type FirebaseHealth struct {
	Status    HealthStatus `json:"status"`
	ProjectID string       `json:"project_id,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type CacheHealth struct {
	Type   envconfig.CacheType  `json:"type"`
	Status HealthStatus         `json:"status"`
	Stats  envconfig.CacheStats `json:"stats"`
}
