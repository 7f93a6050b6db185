package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"webenv/internal/envconfig"
	"webenv/internal/testutil"
)

type loaderFunc func() (envconfig.Loaded, error)

func (f loaderFunc) Load() (envconfig.Loaded, error) { return f() }

func loadedWith(projectID string) envconfig.Loaded {
	cfg := testutil.TestFirebaseConfig()
	cfg.ProjectID = projectID
	return envconfig.Loaded{
		Config:  cfg,
		Sources: map[string]envconfig.Source{envconfig.KeyProjectID: envconfig.SourceLocal},
	}
}

func permissiveMetrics() *testutil.MockMetricsImpl {
	m := testutil.MockMetrics()
	m.On("IncReloads", mock.Anything).Maybe()
	m.On("SetMissingFields", mock.Anything).Maybe()
	return m
}

func TestHolder_Reload(t *testing.T) {
	next := loadedWith("second")
	loader := loaderFunc(func() (envconfig.Loaded, error) { return next, nil })

	metrics := testutil.MockMetrics()
	metrics.On("SetMissingFields", 0).Twice()
	metrics.On("IncReloads", "success").Once()

	logger := testutil.NewRecordingLogger()
	holder := NewHolder(loadedWith("first"), loader, nil, 0, logger, metrics)
	assert.Equal(t, "first", holder.Config().ProjectID)

	require.NoError(t, holder.Reload(context.Background()))
	assert.Equal(t, "second", holder.Config().ProjectID)
	assert.Equal(t, next, holder.Get())

	entry, ok := logger.Find("firebase config reloaded")
	require.True(t, ok)
	assert.Equal(t, []string{envconfig.KeyProjectID}, entry.Fields["changed"])
	assert.Equal(t, "config", entry.Fields["component"])

	metrics.AssertExpectations(t)
}

func TestHolder_ReloadWithoutChanges(t *testing.T) {
	same := loadedWith("same")
	logger := testutil.NewRecordingLogger()
	holder := NewHolder(same, loaderFunc(func() (envconfig.Loaded, error) { return same, nil }), nil, 0, logger, permissiveMetrics())

	require.NoError(t, holder.Reload(context.Background()))

	_, ok := logger.Find("firebase config reloaded, no changes")
	assert.True(t, ok)
}

func TestHolder_ReloadFailureKeepsPrevious(t *testing.T) {
	loadErr := errors.New("disk on fire")
	loader := loaderFunc(func() (envconfig.Loaded, error) { return envconfig.Loaded{}, loadErr })

	metrics := testutil.MockMetrics()
	metrics.On("SetMissingFields", 0).Once()
	metrics.On("IncReloads", "failure").Once()

	logger := testutil.NewRecordingLogger()
	holder := NewHolder(loadedWith("kept"), loader, nil, 0, logger, metrics)

	err := holder.Reload(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, envconfig.ErrReloadFailed)
	assert.ErrorIs(t, err, loadErr)
	assert.Equal(t, "kept", holder.Config().ProjectID)
	assert.Equal(t, 1, logger.Count("error"))

	metrics.AssertExpectations(t)
}

func TestHolder_Listeners(t *testing.T) {
	logger := testutil.NewRecordingLogger()
	holder := NewHolder(loadedWith("first"), loaderFunc(func() (envconfig.Loaded, error) {
		return loadedWith("second"), nil
	}), nil, 0, logger, permissiveMetrics())

	ready := make(chan envconfig.Loaded, 1)
	full := make(chan envconfig.Loaded)
	holder.RegisterListener(ready)
	holder.RegisterListener(full)

	require.NoError(t, holder.Reload(context.Background()))

	select {
	case got := <-ready:
		assert.Equal(t, "second", got.Config.ProjectID)
	default:
		t.Fatal("listener was not notified")
	}

	_, skipped := logger.Find("skipped notifying config listener, channel full")
	assert.True(t, skipped)
}

func TestHolder_StartWatcherWithoutPaths(t *testing.T) {
	holder := NewHolder(loadedWith("x"), nil, nil, 0, testutil.NopLogger{}, permissiveMetrics())

	require.NoError(t, holder.StartWatcher(context.Background()))
	holder.Stop()
}

func TestHolder_WatchReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	testutil.ClearFirebaseEnv(t, "FBTEST")

	dir := t.TempDir()
	tmpl := templateIn(dir)
	testutil.WriteFile(t, dir, "env-config.js", localScript)

	loader := newFirebaseLoader(tmpl, envconfig.FirebaseConfig{}, testutil.NopLogger{})
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewHolder(initial, loader, loader.WatchPaths(), 20*time.Millisecond, testutil.NopLogger{}, permissiveMetrics())

	updates := make(chan envconfig.Loaded, 4)
	holder.RegisterListener(updates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, holder.StartWatcher(ctx))
	defer holder.Stop()

	// Unrelated files in the same directory are ignored.
	testutil.WriteFile(t, dir, "notes.txt", "hello")

	testutil.WriteFile(t, dir, ".env", "FIREBASE_PROJECT_ID=watched-project\n")

	assert.Eventually(t, func() bool {
		select {
		case got := <-updates:
			return got.Config.ProjectID == "watched-project"
		default:
			return holder.Config().ProjectID == "watched-project"
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, envconfig.SourceDotEnv, holder.Get().Sources[envconfig.KeyProjectID])
}

func TestHolder_WatchKeepsConfigOnBadEdit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	testutil.ClearFirebaseEnv(t, "FBTEST")

	dir := t.TempDir()
	tmpl := templateIn(dir)
	local := testutil.WriteFile(t, dir, "env-config.js", localScript)

	loader := newFirebaseLoader(tmpl, envconfig.FirebaseConfig{}, testutil.NopLogger{})
	initial, err := loader.Load()
	require.NoError(t, err)

	var failures atomic.Int32
	metrics := testutil.MockMetrics()
	metrics.On("SetMissingFields", mock.Anything).Maybe()
	metrics.On("IncReloads", "failure").Run(func(mock.Arguments) { failures.Add(1) }).Maybe()
	metrics.On("IncReloads", "success").Maybe()

	holder := NewHolder(initial, loader, loader.WatchPaths(), 20*time.Millisecond, testutil.NopLogger{}, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, holder.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(local, []byte(`window.ENV = { FIREBASE_API_KEY: `), 0o644))

	assert.Eventually(t, func() bool { return failures.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "local-project", holder.Config().ProjectID)

	cancel()
	holder.Stop()
}

func TestHolder_StartWatcherMissingDirectory(t *testing.T) {
	holder := NewHolder(loadedWith("x"), nil, []string{filepath.Join(t.TempDir(), "absent", "env-config.js")}, 0, testutil.NopLogger{}, permissiveMetrics())

	err := holder.StartWatcher(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch")
}
