package firebase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	firebaseAuth "firebase.google.com/go/v4/auth"

	"webenv/internal/envconfig"
	"webenv/pkg/concurrency"
)

// DefaultTokenTTL caps how long verified claims are cached. Firebase ID
// tokens live for one hour.
const DefaultTokenTTL = time.Hour

// Verifier checks Firebase ID tokens against the project in the current web
// config. Verified claims are cached until the token expires.
type Verifier struct {
	clients ClientProvider
	record  func() envconfig.FirebaseConfig
	cache   envconfig.Cache
	locks   *concurrency.MutexManager
	logger  envconfig.Logger
	metrics envconfig.Metrics
	now     func() time.Time
}

// NewVerifier creates a verifier. record returns the web config in effect.
func NewVerifier(clients ClientProvider, record func() envconfig.FirebaseConfig, cache envconfig.Cache, locks *concurrency.MutexManager, logger envconfig.Logger, metrics envconfig.Metrics) *Verifier {
	return &Verifier{
		clients: clients,
		record:  record,
		cache:   cache,
		locks:   locks,
		logger:  logger.With("component", "verifier"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Verify validates the bearer token in an Authorization header value.
func (v *Verifier) Verify(ctx context.Context, authHeader string) (claims *Claims, err error) {
	start := time.Now()
	defer func() {
		v.metrics.ObserveVerifyDuration(time.Since(start))
		v.metrics.IncTokenVerifications(resultLabel(err))
	}()

	token, ok := bearerToken(authHeader)
	if !ok {
		return nil, envconfig.ErrInvalidToken
	}

	cfg := v.record()
	cacheKey := CacheKey(token)

	// Concurrent requests with the same token wait for one verification.
	v.locks.Lock(cacheKey)
	defer v.locks.Unlock(cacheKey)

	if cached := v.getCachedClaims(ctx, cacheKey, cfg.ProjectID); cached != nil {
		v.metrics.IncCacheHits("token")
		v.logger.Debug("cache hit for token verification", "subject", cached.Subject)
		return cached, nil
	}
	v.metrics.IncCacheMisses("token")

	client, err := v.clients.Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	verified, err := client.VerifyIDToken(ctx, token)
	if err != nil {
		v.logger.Debug("token verification failed", "error", err)
		return nil, mapFirebaseError(err)
	}

	claims = claimsFromToken(verified)
	if cfg.ProjectID != "" && claims.Audience != cfg.ProjectID {
		v.logger.Debug("token minted for another project", "aud", claims.Audience, "project_id", cfg.ProjectID)
		return nil, envconfig.ErrInvalidAudience
	}

	v.setCachedClaims(ctx, cacheKey, claims)
	v.logger.Debug("token verified and cached", "subject", claims.Subject)
	return claims, nil
}

// CacheKey returns the cache key for a raw ID token.
func CacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "firebase:" + hex.EncodeToString(sum[:])[:16]
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func (v *Verifier) getCachedClaims(ctx context.Context, cacheKey, projectID string) *Claims {
	data, err := v.cache.Get(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, envconfig.ErrCacheKeyNotFound) {
			v.logger.Debug("cache get error", "key", cacheKey, "error", err)
		}
		return nil
	}

	var claims Claims
	if err := json.Unmarshal(data, &claims); err != nil {
		v.logger.Debug("cache unmarshal error", "key", cacheKey, "error", err)
		return nil
	}

	if claims.Expired(v.now()) || (projectID != "" && claims.Audience != projectID) {
		v.logger.Debug("dropping stale cached claims", "key", cacheKey, "expires_at", claims.ExpiresAt)
		_ = v.cache.Delete(ctx, cacheKey)
		return nil
	}

	return &claims
}

func (v *Verifier) setCachedClaims(ctx context.Context, cacheKey string, claims *Claims) {
	data, err := json.Marshal(claims)
	if err != nil {
		v.logger.Debug("cache marshal error", "key", cacheKey, "error", err)
		return
	}

	ttl := DefaultTokenTTL
	if !claims.ExpiresAt.IsZero() {
		remaining := claims.ExpiresAt.Sub(v.now())
		if remaining <= 0 {
			return
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	if err := v.cache.Set(ctx, cacheKey, data, ttl); err != nil {
		v.logger.Debug("cache set error", "key", cacheKey, "error", err)
		return
	}
	v.logger.Debug("cached token verification result", "key", cacheKey, "ttl", ttl)
}

// mapFirebaseError maps Admin SDK errors to domain errors.
func mapFirebaseError(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case firebaseAuth.IsIDTokenExpired(err), strings.Contains(msg, "expired"):
		return envconfig.ErrTokenExpired
	case strings.Contains(msg, "issuer"):
		return envconfig.ErrInvalidIssuer
	case strings.Contains(msg, "audience"):
		return envconfig.ErrInvalidAudience
	default:
		return envconfig.ErrInvalidToken
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, envconfig.ErrTokenExpired):
		return "expired"
	case errors.Is(err, envconfig.ErrFirebaseUnavailable), errors.Is(err, envconfig.ErrProjectMismatch):
		return "unavailable"
	case envconfig.IsUserError(err):
		return "invalid"
	default:
		return "error"
	}
}
