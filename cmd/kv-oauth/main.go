package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	kvoauth "github.com/giantswarm/kv-oauth"
	"github.com/giantswarm/kv-oauth/instrumentation"
	"github.com/giantswarm/kv-oauth/security"
	"github.com/giantswarm/kv-oauth/storage"
	"github.com/giantswarm/kv-oauth/storage/memory"
	"github.com/giantswarm/kv-oauth/storage/valkey"
)

// Version information (set via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	envFile   string
	logLevel  string
	logFormat string
)

const shutdownTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:   "kv-oauth",
	Short: "OAuth2 sign-in with provider tokens kept in a key-value store",
	Long: `Sign users in with Discord, GitHub or Google and keep their provider
tokens in memory or in Valkey, keyed by a random session cookie.

Configuration is read from the environment (and an optional .env file):
  <PROVIDER>_CLIENT_ID, <PROVIDER>_CLIENT_SECRET, <PROVIDER>_REDIRECT_URI,
  <PROVIDER>_SCOPES for DISCORD, GITHUB and GOOGLE; KV_OAUTH_* for the
  handler; VALKEY_* for the store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sign-in, callback, sign-out and session endpoints",
	RunE:  runServe,
}

var genKeyCmd = &cobra.Command{
	Use:   "gen-key",
	Short: "Print a new base64 token encryption key",
	Long:  `Print a random AES-256 key suitable for KV_OAUTH_ENCRYPTION_KEY.`,
	RunE:  runGenKey,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration without serving",
	RunE:  runCheckConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run:   runVersion,
}

// serveEnv holds the settings only the serve command needs
type serveEnv struct {
	Addr             string `env:"KV_OAUTH_ADDR" envDefault:":8080"`
	ValkeyAddr       string `env:"VALKEY_ADDR"`
	ValkeyPassword   string `env:"VALKEY_PASSWORD"`
	ValkeyDB         int    `env:"VALKEY_DB"`
	ValkeyKeyPrefix  string `env:"VALKEY_KEY_PREFIX"`
	TelemetryEnabled bool   `env:"KV_OAUTH_TELEMETRY"`
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Path to a .env file; a missing file is ignored")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error) - overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (json, text) - overrides LOG_FORMAT")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(genKeyCmd)
	rootCmd.AddCommand(checkConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEnv loads envFile into the process environment without overriding
// variables that are already set.
func loadEnv() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := loadEnv(); err != nil {
		return err
	}
	logger := newLogger(firstNonEmpty(logLevel, os.Getenv("LOG_LEVEL")), firstNonEmpty(logFormat, os.Getenv("LOG_FORMAT")), os.Stdout)
	slog.SetDefault(logger)

	var senv serveEnv
	if err := env.Parse(&senv); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	cfg, err := kvoauth.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.Logger = logger

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName:    instrumentation.DefaultServiceName,
		ServiceVersion: version,
		Enabled:        senv.TelemetryEnabled,
	})
	if err != nil {
		return fmt.Errorf("init instrumentation: %w", err)
	}
	defer func() {
		if err := inst.Shutdown(context.Background()); err != nil {
			logger.Warn("Instrumentation shutdown failed", "error", err)
		}
	}()

	store, closeStore, err := openStore(senv, logger, inst)
	if err != nil {
		return err
	}
	defer closeStore()

	h, err := kvoauth.New(cfg, store)
	if err != nil {
		return fmt.Errorf("configure handler: %w", err)
	}
	defer h.Close()
	h.SetInstrumentation(inst)

	mux := http.NewServeMux()
	mux.Handle("/", h)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              senv.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving", "addr", senv.Addr, "providers", h.Server().ProviderNames())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the Valkey store when VALKEY_ADDR is set and the
// in-memory store otherwise.
func openStore(senv serveEnv, logger *slog.Logger, inst *instrumentation.Instrumentation) (storage.Store, func(), error) {
	if senv.ValkeyAddr != "" {
		vs, err := valkey.New(valkey.Config{
			Address:   senv.ValkeyAddr,
			Password:  senv.ValkeyPassword,
			DB:        senv.ValkeyDB,
			KeyPrefix: senv.ValkeyKeyPrefix,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		vs.SetInstrumentation(inst)
		return vs, vs.Close, nil
	}

	logger.Warn("VALKEY_ADDR not set; sessions live in memory and are lost on restart")
	ms := memory.New()
	ms.SetLogger(logger)
	ms.SetInstrumentation(inst)
	return ms, ms.Stop, nil
}

func runGenKey(cmd *cobra.Command, _ []string) error {
	key, err := security.GenerateKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), security.KeyToBase64(key))
	return err
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	if err := loadEnv(); err != nil {
		return err
	}
	cfg, err := kvoauth.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration is valid")
	for _, p := range cfg.Providers {
		fmt.Fprintf(out, "  provider: %s\n", p.Kind)
	}
	return nil
}

func runVersion(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "kv-oauth %s\n", version)
	fmt.Fprintf(out, "  commit:  %s\n", commit)
	fmt.Fprintf(out, "  built:   %s\n", buildDate)
	fmt.Fprintf(out, "  go:      %s\n", runtime.Version())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
