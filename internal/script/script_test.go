package script

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webenv/internal/envconfig"
	"webenv/web"
)

func sampleConfig() envconfig.FirebaseConfig {
	return envconfig.FirebaseConfig{
		APIKey:            "AIzaSyExampleKey",
		AuthDomain:        "demo-app.firebaseapp.com",
		ProjectID:         "demo-app",
		StorageBucket:     "demo-app.firebasestorage.app",
		MessagingSenderID: "1234567890",
		AppID:             "1:1234567890:web:abcdef",
	}
}

func TestRender_Default(t *testing.T) {
	out, err := Bytes(sampleConfig(), Options{})
	require.NoError(t, err)

	expected := `// env-config.js
// Firebase web config for local development
//
// SETUP INSTRUCTIONS:
// 1. Copy env-config.example.js to env-config.js (or run ` + "`webenv init`" + `)
// 2. Replace the placeholder values with your actual Firebase config
// 3. NEVER commit env-config.js to version control!

window.ENV = {
    FIREBASE_API_KEY: "AIzaSyExampleKey",
    FIREBASE_AUTH_DOMAIN: "demo-app.firebaseapp.com",
    FIREBASE_PROJECT_ID: "demo-app",
    FIREBASE_STORAGE_BUCKET: "demo-app.firebasestorage.app",
    FIREBASE_MESSAGING_SENDER_ID: "1234567890",
    FIREBASE_APP_ID: "1:1234567890:web:abcdef"
};

console.log('✅ Firebase config loaded from env-config.js');
`
	assert.Equal(t, expected, string(out))
}

func TestRender_LogFollowsAssignment(t *testing.T) {
	out, err := Bytes(sampleConfig(), Options{})
	require.NoError(t, err)

	s := string(out)
	assign := strings.Index(s, "window.ENV = {")
	log := strings.Index(s, "console.log(")
	require.NotEqual(t, -1, assign)
	require.NotEqual(t, -1, log)
	assert.Less(t, assign, log)
}

func TestRender_Options(t *testing.T) {
	out, err := Bytes(sampleConfig(), Options{
		Namespace: "globalThis.FIREBASE",
		FileName:  "firebase.js",
		Origin:    ".env",
		Quiet:     true,
	})
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "// firebase.js\n// Firebase web config for local development\n// Generated from .env.\n"))
	assert.Contains(t, s, "// 1. Copy firebase.example.js to firebase.js")
	assert.Contains(t, s, "// 3. NEVER commit firebase.js to version control!")
	assert.Contains(t, s, "globalThis.FIREBASE = {")
	assert.NotContains(t, s, "console.log")
}

func TestRender_ReproducesExampleTemplate(t *testing.T) {
	parsed, err := Parse(bytes.NewReader(web.ExampleTemplate))
	require.NoError(t, err)

	out, err := Bytes(parsed.Config(), Options{FileName: web.ExampleTemplateName})
	require.NoError(t, err)
	assert.Equal(t, string(web.ExampleTemplate), string(out))
}

func TestRender_InvalidNamespace(t *testing.T) {
	for _, ns := range []string{"window.ENV; alert(1)", "1abc", "a..b", "window ENV"} {
		_, err := Bytes(sampleConfig(), Options{Namespace: ns})
		assert.ErrorIs(t, err, ErrInvalidNamespace, ns)
	}
}

func TestRender_EscapesValues(t *testing.T) {
	cfg := sampleConfig()
	cfg.AppID = `</script><script>alert("x")</script>`
	cfg.APIKey = "line\nbreak"

	out, err := Bytes(cfg, Options{FileName: "it's.js"})
	require.NoError(t, err)

	s := string(out)
	assert.NotContains(t, s, "</script>")
	assert.Contains(t, s, `"line\nbreak"`)
	assert.Contains(t, s, `loaded from it\'s.js`)

	// and the values survive a round trip through the parser
	parsed, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed.Config())
}

func TestParse_ExampleTemplate(t *testing.T) {
	s, err := Parse(strings.NewReader(string(web.ExampleTemplate)))
	require.NoError(t, err)

	assert.Equal(t, "window.ENV", s.Namespace)
	assert.Len(t, s.Values, 6)
	assert.Empty(t, s.Unknown)
	for _, k := range envconfig.Keys() {
		assert.NotEmpty(t, s.Values[k], k)
	}
	assert.Equal(t, "your-project-id", s.Config().ProjectID)
}

func TestParse_Variants(t *testing.T) {
	src := `
// leading comment with window.FAKE = { nope: "x" } inside? no, it's a comment
/* block
   comment */
window.ENV = {
    'FIREBASE_API_KEY': 'single-quoted',
    "FIREBASE_AUTH_DOMAIN": "https://demo.example.com//path", // trailing comment
    FIREBASE_PROJECT_ID: ` + "`backtick`" + `,
    FIREBASE_MESSAGING_SENDER_ID: 1234567890,
    FIREBASE_APP_ID: "café \x41",
    EXTRA_FLAG: true,
};
`
	s, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "window.ENV", s.Namespace)
	assert.Equal(t, "single-quoted", s.Values["FIREBASE_API_KEY"])
	assert.Equal(t, "https://demo.example.com//path", s.Values["FIREBASE_AUTH_DOMAIN"])
	assert.Equal(t, "backtick", s.Values["FIREBASE_PROJECT_ID"])
	assert.Equal(t, "1234567890", s.Values["FIREBASE_MESSAGING_SENDER_ID"])
	assert.Equal(t, "café A", s.Values["FIREBASE_APP_ID"])
	assert.Equal(t, []string{"EXTRA_FLAG"}, s.Unknown)

	cfg := s.Config()
	assert.Equal(t, "", cfg.StorageBucket)
	assert.Equal(t, []string{envconfig.KeyStorageBucket}, cfg.Missing())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		err  error
	}{
		{name: "no assignment", src: `console.log("hi")`, err: ErrNoAssignment},
		{name: "only a comment", src: `// window.ENV = {}`, err: ErrNoAssignment},
		{name: "unterminated object", src: `window.ENV = { A: "b"`, err: ErrMalformedObject},
		{name: "unterminated string", src: `window.ENV = { A: "b }`, err: ErrMalformedObject},
		{name: "missing colon", src: `window.ENV = { A "b" }`, err: ErrMalformedObject},
		{name: "empty value", src: `window.ENV = { A: , }`, err: ErrMalformedObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParse_EmptyObject(t *testing.T) {
	s, err := Parse(strings.NewReader("window.ENV = {};"))
	require.NoError(t, err)
	assert.Empty(t, s.Values)
	assert.True(t, s.Config().IsZero())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "public", "env-config.js")

	require.NoError(t, WriteFile(path, sampleConfig(), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "// env-config.js")

	parsed, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleConfig(), parsed.Config())

	// overwrite in place
	updated := sampleConfig()
	updated.ProjectID = "changed"
	require.NoError(t, WriteFile(path, updated, Options{Quiet: true}))

	parsed, err = ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "changed", parsed.Config().ProjectID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWriteFile_InvalidOptionsKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env-config.js")
	require.NoError(t, os.WriteFile(path, []byte("window.ENV = {};\n"), 0o644))

	err := WriteFile(path, sampleConfig(), Options{Namespace: "bad namespace"})
	assert.ErrorIs(t, err, ErrInvalidNamespace)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "window.ENV = {};\n", string(data))
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.js"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
