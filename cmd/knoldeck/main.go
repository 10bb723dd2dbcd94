// Package main provides the CLI entrypoint for knoldeck.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/app"
	"github.com/conorfennell/knoldeck/internal/config"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/generate"
	"github.com/conorfennell/knoldeck/internal/storage"
)

var configPath string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "knoldeck",
		Short:        "Leitner-box flashcards in the terminal and the browser",
		SilenceUsage: true,
		RunE:         runStudyCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default: ./"+config.DefaultFile+" if present)")
	flags.String("db", "knoldeck.db", "path to the state database")
	flags.String("backend", storage.KindSQLite, "storage backend: sqlite or bolt")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")

	rootCmd.AddCommand(newDeckCmd())
	rootCmd.AddCommand(newCardCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newDueCmd())
	rootCmd.AddCommand(newStudyCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// env is everything a command needs once configuration is resolved.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend storage.Backend
	app     *app.App
}

func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg.Log, cmd.ErrOrStderr())

	backend, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store %s: %w", cfg.Storage.Backend, cfg.Storage.Path, err)
	}
	a, err := app.Open(cmd.Context(), backend, app.Options{Logger: logger, PersistTimeout: cfg.Storage.Timeout})
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	logger.Debug("Store opened", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)
	return &env{cfg: cfg, logger: logger, backend: backend, app: a}, nil
}

func (e *env) Close() error {
	return e.backend.Close()
}

// factory builds generation sources from the loaded config. progress
// receives git clone output and may be nil.
func (e *env) factory(progress io.Writer) *generate.Factory {
	g := e.cfg.Generate
	return &generate.Factory{
		GeminiAPIKey: g.Gemini.APIKey,
		GeminiModel:  g.Gemini.Model,
		GeminiCount:  g.Gemini.Count,
		TriviaURL:    g.Trivia.BaseURL,
		TriviaAmount: g.Trivia.Amount,
		GeoURL:       g.Geo.BaseURL,
		GeoCount:     g.Geo.Count,
		GitCacheDir:  g.Git.CacheDir,
		Progress:     progress,
		Logger:       e.logger,
	}
}

// withEnv opens the environment around run.
func withEnv(run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return run(cmd, args, e)
	}
}

// warnOnly downgrades a persistence failure after a successful mutation to a
// warning on stderr.
func warnOnly(cmd *cobra.Command, err error) error {
	if err != nil && errors.Is(err, domain.ErrPersistence) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		return nil
	}
	return err
}
