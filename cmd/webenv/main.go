package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"webenv/internal/cache"
	"webenv/internal/config"
	"webenv/internal/envconfig"
	"webenv/internal/firebase"
	"webenv/internal/handlers"
	"webenv/internal/logging"
	"webenv/internal/metrics"
	"webenv/internal/script"
	"webenv/pkg/concurrency"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(argv []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("webenv", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		configFile = flags.String("config", "", "Path to configuration file")
		envPrefix  = flags.String("env-prefix", config.DefaultEnvPrefix, "Environment variable prefix")
	)
	flags.Usage = func() { usage(flags) }
	if err := flags.Parse(argv); err != nil {
		return 2
	}

	command := "serve"
	args := flags.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	// Load main configuration
	loader := config.NewLoader(*configFile, *envPrefix)
	mainConfig, err := loader.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration loading failed: %v\n", err)
		return 1
	}

	logger, err := newLogger(mainConfig.Logging, command, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}

	app := &application{
		config:     mainConfig,
		configPath: loader.ConfigPath(),
		envPrefix:  loader.EnvPrefix(),
		logger:     logger,
		stdout:     stdout,
		stderr:     stderr,
	}

	switch command {
	case "serve":
		err = app.serve(args)
	case "render":
		err = app.render(args)
	case "init":
		err = app.scaffold(args)
	case "check":
		err = app.check(args)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		usage(flags)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		return 1
	}
	return 0
}

// newLogger builds the logger for a command. Only serve logs to stdout;
// the other commands keep stdout for their own output.
func newLogger(cfg envconfig.LoggingConfig, command string, stdout, stderr io.Writer) (envconfig.Logger, error) {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		if command == "serve" {
			return logging.NewLoggerTo(stdout, cfg)
		}
		return logging.NewLoggerTo(stderr, cfg)
	case "stderr":
		return logging.NewLoggerTo(stderr, cfg)
	default:
		return logging.NewLogger(cfg)
	}
}

func usage(flags *flag.FlagSet) {
	fmt.Fprintf(flags.Output(), `Usage: webenv [flags] <command> [command flags]

Commands:
  serve               serve env-config.js and reload it on change (default)
  render [-out path]  write env-config.js from the layered sources, - for stdout
  init [-force]       create the local env-config.js from the template
  check               initialize the Firebase Admin SDK against the config

Flags:
`)
	flags.PrintDefaults()
}

type application struct {
	config     *envconfig.Config
	configPath string
	envPrefix  string
	logger     envconfig.Logger
	stdout     io.Writer
	stderr     io.Writer
}

func (a *application) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *application) firebaseLoader() *config.FirebaseLoader {
	return config.NewFirebaseLoader(a.config, a.configPath, a.envPrefix, a.logger)
}

func (a *application) serve(args []string) error {
	fs := a.flagSet("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.logger.Info("starting webenv", "version", version)

	var (
		m              envconfig.Metrics = metrics.Nop{}
		metricsHandler http.Handler
	)
	if a.config.Metrics.Enabled {
		pm, err := metrics.NewMetrics(a.config.Metrics)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		m, metricsHandler = pm, pm.Handler()
	}

	loader := a.firebaseLoader()
	initial, err := loader.Load()
	if err != nil {
		return err
	}

	holder := config.NewHolder(initial, loader, loader.WatchPaths(), a.config.Template.Debounce, a.logger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.config.Template.Watch {
		if err := holder.StartWatcher(ctx); err != nil {
			a.logger.Warn("config watcher unavailable, reload with POST /reload", "error", err)
		}
	}
	defer holder.Stop()

	// Initialize cache (Redis with memory fallback)
	cacheInstance, err := cache.NewCache(a.config.Cache, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer cacheInstance.Close()

	admin := firebase.NewAdmin(a.config.Credentials, a.config.Template.Strict, a.logger, m)
	verifier := firebase.NewVerifier(admin, holder.Config, cacheInstance, concurrency.NewMutexManager(), a.logger, m)

	h := handlers.NewHandlers(holder, verifier, admin, cacheInstance, handlers.Options{
		Script: script.Options{
			Namespace: a.config.Template.Namespace,
			Quiet:     a.config.Template.Quiet,
		},
		CacheTTL: a.config.Cache.DefaultTTL,
	}, a.logger, m)

	server := handlers.NewServer(a.config, h, metricsHandler, a.logger, m)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	var runErr error
	select {
	case runErr = <-serverErrors:
		a.logger.Error("server error", "error", runErr)
	case sig := <-interrupt:
		a.logger.Info("received interrupt signal", "signal", sig.String())
	}

	// Graceful shutdown
	a.logger.Info("starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	a.logger.Info("shutdown complete")
	return runErr
}

func (a *application) render(args []string) error {
	fs := a.flagSet("render")
	out := fs.String("out", a.config.Template.LocalPath, "Output path, - for stdout")
	quiet := fs.Bool("quiet", a.config.Template.Quiet, "Omit the console log line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loaded, err := a.firebaseLoader().Load()
	if err != nil {
		return err
	}

	opts := script.Options{
		Namespace: a.config.Template.Namespace,
		Origin:    loaded.Origin,
		Quiet:     *quiet,
	}

	if *out == "-" {
		return script.Render(a.stdout, loaded.Config, opts)
	}
	if err := script.WriteFile(*out, loaded.Config, opts); err != nil {
		return err
	}

	a.logger.Info("env-config written",
		"path", *out,
		"source", loaded.Primary().String(),
		"fingerprint", loaded.Config.Fingerprint(),
		"missing", len(loaded.Config.Missing()),
	)
	return nil
}

func (a *application) scaffold(args []string) error {
	fs := a.flagSet("init")
	force := fs.Bool("force", false, "Overwrite an existing local copy")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := config.Scaffold(a.config.Template, *force, a.logger)
	if err != nil {
		return err
	}
	if result.Created {
		fmt.Fprintf(a.stdout, "created %s, fill in your Firebase web config there\n", a.config.Template.LocalPath)
	}
	return nil
}

func (a *application) check(args []string) error {
	fs := a.flagSet("check")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loaded, err := a.firebaseLoader().Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	admin := firebase.NewAdmin(a.config.Credentials, a.config.Template.Strict, a.logger, metrics.Nop{})
	if err := admin.Check(ctx, loaded.Config); err != nil {
		return err
	}

	a.logger.Info("firebase admin check passed",
		"project_id", loaded.Config.ProjectID,
		"credentials", a.config.Credentials.Source(),
	)
	return nil
}
