// Package firebase uses the web config on the server side: it builds the
// Admin SDK app for the configured project and verifies ID tokens minted by
// the browser client.
package firebase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	firebaseAuth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"webenv/internal/envconfig"
)

// TokenVerifier is the part of the Admin SDK auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseAuth.Token, error)
}

// NewApp builds an Admin SDK app for the project and storage bucket in cfg.
// Credentials come from base64 JSON, a file, or application default
// credentials, in that order. Without a project ID in cfg the service
// account's project is used.
func NewApp(ctx context.Context, cfg envconfig.FirebaseConfig, creds envconfig.CredentialsConfig) (*firebase.App, error) {
	opts, err := credentialOptions(creds)
	if err != nil {
		return nil, err
	}

	projectID := cfg.ProjectID
	if projectID == "" && creds.Base64 != "" {
		if extracted, err := ProjectIDFromCredentials(creds.Base64); err == nil {
			projectID = extracted
		}
	}
	if projectID == "" {
		return nil, envconfig.ErrMissingProjectID
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     projectID,
		StorageBucket: cfg.StorageBucket,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

// NewAuthClient builds the app and returns its Auth client.
func NewAuthClient(ctx context.Context, cfg envconfig.FirebaseConfig, creds envconfig.CredentialsConfig) (TokenVerifier, error) {
	app, err := NewApp(ctx, cfg, creds)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase Auth client: %w", err)
	}
	return client, nil
}

func credentialOptions(creds envconfig.CredentialsConfig) ([]option.ClientOption, error) {
	switch creds.Source() {
	case "base64":
		credentialsJSON, err := base64.StdEncoding.DecodeString(creds.Base64)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode base64: %w", envconfig.ErrInvalidCredentials, err)
		}
		return []option.ClientOption{option.WithCredentialsJSON(credentialsJSON)}, nil
	case "file":
		return []option.ClientOption{option.WithCredentialsFile(creds.Path)}, nil
	default:
		// GOOGLE_APPLICATION_CREDENTIALS or the metadata server.
		return nil, nil
	}
}

// ProjectIDFromCredentials extracts project_id from base64 encoded service
// account JSON.
func ProjectIDFromCredentials(credentialsBase64 string) (string, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode base64: %w", envconfig.ErrInvalidCredentials, err)
	}
	return projectIDFromJSON(credentialsJSON)
}

// CredentialsProjectID returns the project of the configured service account,
// or "" when application default credentials are used.
func CredentialsProjectID(creds envconfig.CredentialsConfig) (string, error) {
	switch creds.Source() {
	case "base64":
		return ProjectIDFromCredentials(creds.Base64)
	case "file":
		data, err := os.ReadFile(creds.Path)
		if err != nil {
			return "", fmt.Errorf("%w: %w", envconfig.ErrInvalidCredentials, err)
		}
		return projectIDFromJSON(data)
	default:
		return "", nil
	}
}

func projectIDFromJSON(data []byte) (string, error) {
	var credentials struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &credentials); err != nil {
		return "", fmt.Errorf("%w: failed to parse JSON: %w", envconfig.ErrInvalidCredentials, err)
	}
	if credentials.ProjectID == "" {
		return "", fmt.Errorf("%w: project_id not found", envconfig.ErrInvalidCredentials)
	}
	return credentials.ProjectID, nil
}
