package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clientauth/sessionkit/pkg/authenticator"
	"github.com/clientauth/sessionkit/pkg/authenticator/oauth2password"
	"github.com/clientauth/sessionkit/pkg/config"
	"github.com/clientauth/sessionkit/pkg/logging"
	"github.com/clientauth/sessionkit/pkg/session"
	"github.com/clientauth/sessionkit/pkg/store"
)

var (
	cfgFile string
	version = "dev" // Set by build
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sessionkit",
	Short: "sessionkit - client-side session authentication",
	Long: `sessionkit manages an authenticated session against an OAuth2 token
server: it logs in with the password grant, persists the session across
invocations through a configurable store, keeps the access token fresh,
and picks up session changes made by other processes sharing the store.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "sessionkit.yaml", "Path to configuration file")
}

// environment bundles everything a subcommand needs.
type environment struct {
	config  *config.Config
	logger  logging.Logger
	store   store.Store
	manager *session.Manager
}

// buildEnvironment loads the config and wires logger, store, registry and
// session manager together.
func buildEnvironment() (*environment, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	var rotation *logging.RotationConfig
	if cfg.Logging.File != nil && cfg.Logging.File.Path != "" {
		rotation = &logging.RotationConfig{
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAge:     cfg.Logging.File.MaxAge,
			Compress:   cfg.Logging.File.Compress,
		}
	}
	logger, err := logging.NewWithRotation("sessionkit", logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Color, rotation)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	st, err := store.New(cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	registry := authenticator.NewRegistry()
	pw := cfg.Authenticators.OAuth2Password
	registry.Register(oauth2password.Name, oauth2password.New(oauth2password.Config{
		ClientID:                     pw.ClientID,
		TokenEndpoint:                pw.TokenEndpoint,
		RevocationEndpoint:           pw.RevocationEndpoint,
		RefreshAccessTokens:          pw.RefreshAccessTokens,
		RefreshAccessTokensWithScope: pw.RefreshAccessTokensWithScope,
		Logger:                       logger,
	}))

	return &environment{
		config:  cfg,
		logger:  logger,
		store:   st,
		manager: session.NewManager(registry, st, logger),
	}, nil
}

func (e *environment) Close() {
	e.manager.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("Failed to close store", "error", err)
	}
}
