// Package testutil provides common utilities and helpers for testing
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"webenv/internal/envconfig"
)

// TestFirebaseConfig returns a complete web config for a fake project.
func TestFirebaseConfig() envconfig.FirebaseConfig {
	return envconfig.FirebaseConfig{
		APIKey:            "AIzaSyTestKeyTestKeyTestKey",
		AuthDomain:        "demo-app.firebaseapp.com",
		ProjectID:         "demo-app",
		StorageBucket:     "demo-app.firebasestorage.app",
		MessagingSenderID: "1234567890",
		AppID:             "1:1234567890:web:abcdef",
	}
}

// TestConfig returns a service config with defaults suitable for tests.
func TestConfig() *envconfig.Config {
	return &envconfig.Config{
		Server: envconfig.ServerConfig{
			Port:            "0",
			Host:            "127.0.0.1",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
		},
		Template: envconfig.TemplateConfig{
			LocalPath: "env-config.js",
			Namespace: "window.ENV",
		},
		Metrics: envconfig.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// WriteFile writes content under dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ClearFirebaseEnv unsets every FIREBASE_* variable for the duration of the test.
func ClearFirebaseEnv(t *testing.T, prefixes ...string) {
	t.Helper()
	for _, k := range envconfig.Keys() {
		names := []string{k}
		for _, p := range prefixes {
			names = append(names, p+"_"+k)
		}
		for _, name := range names {
			if old, ok := os.LookupEnv(name); ok {
				require.NoError(t, os.Unsetenv(name))
				t.Cleanup(func() { _ = os.Setenv(name, old) })
			}
		}
	}
}

// MockCache creates a mock cache for testing
func MockCache() *MockCacheImpl {
	return &MockCacheImpl{}
}

// MockCacheImpl is a mock implementation of Cache for testing
type MockCacheImpl struct {
	mock.Mock
}

func (m *MockCacheImpl) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheImpl) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheImpl) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheImpl) Exists(ctx context.Context, key string) bool {
	args := m.Called(ctx, key)
	return args.Bool(0)
}

func (m *MockCacheImpl) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockCacheImpl) Stats() envconfig.CacheStats {
	args := m.Called()
	return args.Get(0).(envconfig.CacheStats)
}

// MockLogger creates a mock logger for testing
func MockLogger() *MockLoggerImpl {
	return &MockLoggerImpl{}
}

// MockLoggerImpl is a mock implementation of Logger for testing
type MockLoggerImpl struct {
	mock.Mock
}

func (m *MockLoggerImpl) Info(msg string, keysAndValues ...any) {
	m.Called(append([]any{msg}, keysAndValues...)...)
}

func (m *MockLoggerImpl) Debug(msg string, keysAndValues ...any) {
	m.Called(append([]any{msg}, keysAndValues...)...)
}

func (m *MockLoggerImpl) Error(msg string, keysAndValues ...any) {
	m.Called(append([]any{msg}, keysAndValues...)...)
}

func (m *MockLoggerImpl) Warn(msg string, keysAndValues ...any) {
	m.Called(append([]any{msg}, keysAndValues...)...)
}

func (m *MockLoggerImpl) With(keysAndValues ...any) envconfig.Logger {
	args := m.Called(keysAndValues)
	return args.Get(0).(envconfig.Logger)
}

// NopLogger discards everything. Use it where log calls are not under test.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any)           {}
func (NopLogger) Info(string, ...any)            {}
func (NopLogger) Warn(string, ...any)            {}
func (NopLogger) Error(string, ...any)           {}
func (n NopLogger) With(...any) envconfig.Logger { return n }

// Entry is one call captured by RecordingLogger.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// RecordingLogger keeps every call so tests can assert on what was logged.
// It is safe for concurrent use.
type RecordingLogger struct {
	store  *entryStore
	fields []any
}

type entryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecordingLogger creates an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{store: &entryStore{}}
}

func (r *RecordingLogger) record(level, msg string, kv []any) {
	fields := make(map[string]any)
	all := append(append([]any{}, r.fields...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		if k, ok := all[i].(string); ok {
			fields[k] = all[i+1]
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.entries = append(r.store.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

func (r *RecordingLogger) Debug(msg string, kv ...any) { r.record("debug", msg, kv) }
func (r *RecordingLogger) Info(msg string, kv ...any)  { r.record("info", msg, kv) }
func (r *RecordingLogger) Warn(msg string, kv ...any)  { r.record("warn", msg, kv) }
func (r *RecordingLogger) Error(msg string, kv ...any) { r.record("error", msg, kv) }

func (r *RecordingLogger) With(kv ...any) envconfig.Logger {
	return &RecordingLogger{store: r.store, fields: append(append([]any{}, r.fields...), kv...)}
}

// Entries returns everything logged so far, including by derived loggers.
func (r *RecordingLogger) Entries() []Entry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]Entry(nil), r.store.entries...)
}

// Find returns the first entry with msg.
func (r *RecordingLogger) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

// Count returns how many entries were logged at level.
func (r *RecordingLogger) Count(level string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockMetrics creates a mock metrics for testing
func MockMetrics() *MockMetricsImpl {
	return &MockMetricsImpl{}
}

// MockMetricsImpl is a mock implementation of Metrics for testing
type MockMetricsImpl struct {
	mock.Mock
}

func (m *MockMetricsImpl) IncScriptRequests(format string, result string) {
	m.Called(format, result)
}

func (m *MockMetricsImpl) IncReloads(result string) {
	m.Called(result)
}

func (m *MockMetricsImpl) IncCacheHits(kind string) {
	m.Called(kind)
}

func (m *MockMetricsImpl) IncCacheMisses(kind string) {
	m.Called(kind)
}

func (m *MockMetricsImpl) IncTokenVerifications(result string) {
	m.Called(result)
}

func (m *MockMetricsImpl) ObserveRenderDuration(duration time.Duration) {
	m.Called(duration)
}

func (m *MockMetricsImpl) ObserveVerifyDuration(duration time.Duration) {
	m.Called(duration)
}

func (m *MockMetricsImpl) ObserveHTTPRequest(route string, status int, duration time.Duration) {
	m.Called(route, status, duration)
}

func (m *MockMetricsImpl) SetMissingFields(count int) {
	m.Called(count)
}

func (m *MockMetricsImpl) SetFirebaseStatus(healthy bool) {
	m.Called(healthy)
}

// MustNotPanic ensures that a function doesn't panic
func MustNotPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Function panicked: %v", r)
		}
	}()
	fn()
}
