package envconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Field keys as they appear in env-config.js, .env files and the environment.
const (
	KeyAPIKey            = "FIREBASE_API_KEY"
	KeyAuthDomain        = "FIREBASE_AUTH_DOMAIN"
	KeyProjectID         = "FIREBASE_PROJECT_ID"
	KeyStorageBucket     = "FIREBASE_STORAGE_BUCKET"
	KeyMessagingSenderID = "FIREBASE_MESSAGING_SENDER_ID"
	KeyAppID             = "FIREBASE_APP_ID"
)

var keys = []string{
	KeyAPIKey,
	KeyAuthDomain,
	KeyProjectID,
	KeyStorageBucket,
	KeyMessagingSenderID,
	KeyAppID,
}

// FirebaseConfig is the web client configuration exposed to the browser.
// Values are plain strings and are not checked unless strict mode asks for it.
type FirebaseConfig struct {
	APIKey            string `json:"FIREBASE_API_KEY" yaml:"FIREBASE_API_KEY"`
	AuthDomain        string `json:"FIREBASE_AUTH_DOMAIN" yaml:"FIREBASE_AUTH_DOMAIN"`
	ProjectID         string `json:"FIREBASE_PROJECT_ID" yaml:"FIREBASE_PROJECT_ID"`
	StorageBucket     string `json:"FIREBASE_STORAGE_BUCKET" yaml:"FIREBASE_STORAGE_BUCKET"`
	MessagingSenderID string `json:"FIREBASE_MESSAGING_SENDER_ID" yaml:"FIREBASE_MESSAGING_SENDER_ID"`
	AppID             string `json:"FIREBASE_APP_ID" yaml:"FIREBASE_APP_ID"`
}

// Field is a single key/value pair of the configuration.
type Field struct {
	Key   string
	Value string
}

// Keys returns the six field keys in canonical order.
func Keys() []string {
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// IsKey reports whether key names one of the six fields.
func IsKey(key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// FromMap builds a config from a key/value map. Unknown keys are ignored.
func FromMap(values map[string]string) FirebaseConfig {
	var c FirebaseConfig
	for _, k := range keys {
		if v, ok := values[k]; ok {
			c.set(k, v)
		}
	}
	return c
}

// Fields returns the fields in canonical order.
func (c FirebaseConfig) Fields() []Field {
	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		v, _ := c.Get(k)
		fields = append(fields, Field{Key: k, Value: v})
	}
	return fields
}

// Map returns the fields as a map keyed by field key.
func (c FirebaseConfig) Map() map[string]string {
	m := make(map[string]string, len(keys))
	for _, f := range c.Fields() {
		m[f.Key] = f.Value
	}
	return m
}

// Get returns the value for key. The bool is false for unknown keys.
func (c FirebaseConfig) Get(key string) (string, bool) {
	switch key {
	case KeyAPIKey:
		return c.APIKey, true
	case KeyAuthDomain:
		return c.AuthDomain, true
	case KeyProjectID:
		return c.ProjectID, true
	case KeyStorageBucket:
		return c.StorageBucket, true
	case KeyMessagingSenderID:
		return c.MessagingSenderID, true
	case KeyAppID:
		return c.AppID, true
	default:
		return "", false
	}
}

// With returns a copy of c with key set to value.
func (c FirebaseConfig) With(key, value string) (FirebaseConfig, error) {
	if !c.set(key, value) {
		return c, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	return c, nil
}

func (c *FirebaseConfig) set(key, value string) bool {
	switch key {
	case KeyAPIKey:
		c.APIKey = value
	case KeyAuthDomain:
		c.AuthDomain = value
	case KeyProjectID:
		c.ProjectID = value
	case KeyStorageBucket:
		c.StorageBucket = value
	case KeyMessagingSenderID:
		c.MessagingSenderID = value
	case KeyAppID:
		c.AppID = value
	default:
		return false
	}
	return true
}

// IsSet reports whether a field value counts as present. Blank values do not.
func IsSet(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Merge returns c overlaid with every set field of over.
func (c FirebaseConfig) Merge(over FirebaseConfig) FirebaseConfig {
	for _, f := range over.Fields() {
		if IsSet(f.Value) {
			c.set(f.Key, f.Value)
		}
	}
	return c
}

// Missing returns the keys whose value is empty, in canonical order.
func (c FirebaseConfig) Missing() []string {
	var missing []string
	for _, f := range c.Fields() {
		if !IsSet(f.Value) {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

// IsZero reports whether every field is empty.
func (c FirebaseConfig) IsZero() bool {
	return c == FirebaseConfig{}
}

// Validate reports missing fields. The loader only calls it in strict mode.
func (c FirebaseConfig) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Fingerprint is a short stable hash over the ordered fields.
func (c FirebaseConfig) Fingerprint() string {
	h := sha256.New()
	for _, f := range c.Fields() {
		h.Write([]byte(f.Key))
		h.Write([]byte{0})
		h.Write([]byte(f.Value))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Redacted returns a copy that is safe to log.
func (c FirebaseConfig) Redacted() FirebaseConfig {
	c.APIKey = mask(c.APIKey)
	return c
}

func mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
