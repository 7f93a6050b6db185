package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"webenv/internal/envconfig"
)

var _ envconfig.ConfigLoader = (*EnvConfigLoader)(nil)

func TestNewEnvConfigLoader(t *testing.T) {
	assert.Equal(t, &EnvConfigLoader{envPrefix: "TEST"}, NewEnvConfigLoader("TEST"))
}

func TestEnvConfigLoader_Get(t *testing.T) {
	t.Setenv("ECL_FIREBASE_PROJECT_ID", "prefixed-project")
	t.Setenv("FIREBASE_PROJECT_ID", "bare-project")
	t.Setenv("FIREBASE_APP_ID", "bare-app")
	t.Setenv("ECL_EMPTY_VALUE", "")

	loader := NewEnvConfigLoader("ECL")

	tests := []struct {
		name     string
		key      string
		expected string
		found    bool
	}{
		{"prefixed wins over bare", "FIREBASE_PROJECT_ID", "prefixed-project", true},
		{"dotted key maps to env name", "firebase.project_id", "prefixed-project", true},
		{"bare environment fallback", "FIREBASE_APP_ID", "bare-app", true},
		{"empty env value", "empty.value", "", false},
		{"missing", "nonexistent.key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := loader.Get(tt.key)
			assert.Equal(t, tt.expected, value)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestEnvConfigLoader_NoPrefix(t *testing.T) {
	t.Setenv("FIREBASE_AUTH_DOMAIN", "demo.firebaseapp.com")

	loader := NewEnvConfigLoader("")

	value, ok := loader.Get("firebase-auth-domain")
	assert.True(t, ok)
	assert.Equal(t, "demo.firebaseapp.com", value)
}

func TestEnvConfigLoader_HasPrefix(t *testing.T) {
	t.Setenv("ECLP_FIREBASE_API_KEY", "prefixed-key")
	t.Setenv("FIREBASE_API_KEY", "bare-key")
	t.Setenv("FIREBASE_APP_ID", "bare-app")
	t.Setenv("ECLP_OTHER_VALUE", "ignored")

	result := NewEnvConfigLoader("ECLP").HasPrefix("firebase_")

	assert.Equal(t, "prefixed-key", result["firebase.api.key"])
	assert.Equal(t, "bare-app", result["firebase.app.id"])
	assert.NotContains(t, result, "other.value")
}
