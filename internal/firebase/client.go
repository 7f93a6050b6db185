package firebase

import (
	"context"
	"fmt"
	"sync"

	"webenv/internal/envconfig"
)

// ClientFactory builds a token verifier for a web config.
type ClientFactory func(ctx context.Context, cfg envconfig.FirebaseConfig, creds envconfig.CredentialsConfig) (TokenVerifier, error)

// ClientProvider hands out a verifier for the current web config.
type ClientProvider interface {
	Client(ctx context.Context, cfg envconfig.FirebaseConfig) (TokenVerifier, error)
}

// Admin lazily builds the Admin SDK client and rebuilds it when the project
// or storage bucket of the web config changes.
type Admin struct {
	creds   envconfig.CredentialsConfig
	strict  bool
	factory ClientFactory
	logger  envconfig.Logger
	metrics envconfig.Metrics

	mu     sync.Mutex
	client TokenVerifier
	key    string
}

// AdminOption configures an Admin.
type AdminOption func(*Admin)

// WithClientFactory replaces the Admin SDK client constructor.
func WithClientFactory(f ClientFactory) AdminOption {
	return func(a *Admin) { a.factory = f }
}

// NewAdmin creates an Admin. In strict mode a service account belonging to
// another project is an error instead of a warning.
func NewAdmin(creds envconfig.CredentialsConfig, strict bool, logger envconfig.Logger, metrics envconfig.Metrics, opts ...AdminOption) *Admin {
	a := &Admin{
		creds:   creds,
		strict:  strict,
		factory: NewAuthClient,
		logger:  logger.With("component", "firebase"),
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Client returns the verifier for cfg, building it on first use.
func (a *Admin) Client(ctx context.Context, cfg envconfig.FirebaseConfig) (TokenVerifier, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := cfg.ProjectID + "\x00" + cfg.StorageBucket
	if a.client != nil && a.key == key {
		return a.client, nil
	}

	if err := a.checkProject(cfg); err != nil {
		return nil, err
	}

	client, err := a.factory(ctx, cfg, a.creds)
	if err != nil {
		a.logger.Error("failed to initialize firebase admin client", "project_id", cfg.ProjectID, "error", err)
		return nil, fmt.Errorf("%w: %w", envconfig.ErrFirebaseUnavailable, err)
	}

	if a.client != nil {
		a.logger.Info("firebase admin client rebuilt for new config", "project_id", cfg.ProjectID)
	} else {
		a.logger.Info("firebase admin client initialized", "project_id", cfg.ProjectID, "credentials", a.creds.Source())
	}
	a.client, a.key = client, key
	return client, nil
}

// Check initializes the client for cfg and records the outcome.
func (a *Admin) Check(ctx context.Context, cfg envconfig.FirebaseConfig) error {
	_, err := a.Client(ctx, cfg)
	a.metrics.SetFirebaseStatus(err == nil)
	return err
}

func (a *Admin) checkProject(cfg envconfig.FirebaseConfig) error {
	credsProject, err := CredentialsProjectID(a.creds)
	if err != nil {
		return fmt.Errorf("%w: %w", envconfig.ErrFirebaseUnavailable, err)
	}
	if credsProject == "" || cfg.ProjectID == "" || credsProject == cfg.ProjectID {
		return nil
	}

	if a.strict {
		return fmt.Errorf("%w: credentials belong to %q, config names %q", envconfig.ErrProjectMismatch, credsProject, cfg.ProjectID)
	}
	a.logger.Warn("service account project does not match FIREBASE_PROJECT_ID",
		"credentials_project", credsProject,
		"project_id", cfg.ProjectID,
	)
	return nil
}
