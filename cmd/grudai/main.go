package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"grudai/internal/chat"
	"grudai/internal/config"
	"grudai/internal/logging"
	"grudai/internal/relay"
	"grudai/internal/server"
	"grudai/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "grudai",
	Short: "GrudAI - project-scoped LLM chat server",
	Long: `GrudAI is a multi-turn LLM chat server. Each project carries its own
persona: a system prompt, a model, saved prompts and uploaded reference
files, all of which feed the context sent upstream on every turn.

Responses stream back to the client as server-sent events.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// serveCmd starts the HTTP server (same as running with no subcommand)
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GrudAI HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("No API key configured; set OPENROUTER_API_KEY or llm.api_key")
	}

	if err := logging.Initialize(logging.Options{
		Enabled: cfg.Logging.Enabled,
		Level:   cfg.Logging.Level,
		Dir:     cfg.Logging.Dir,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()
	logging.Boot("Starting %s %s", cfg.Name, cfg.Version)

	st, err := store.NewLocalStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	relayCfg := relay.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.GetLLMTimeout(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		SiteURL:     cfg.LLM.SiteURL,
		SiteName:    cfg.LLM.SiteName,
	}
	rly := relay.New(relay.NewClient(relayCfg))

	svc := chat.NewService(st, rly,
		chat.WithFileContextChars(cfg.Uploads.ContextChars))

	auth, err := tokenAuthFromEnv(st)
	if err != nil {
		return err
	}

	handler := server.New(server.Options{
		Store:      st,
		Chat:       svc,
		Auth:       auth,
		UploadsDir: cfg.Uploads.Dir,
		MaxUpload:  cfg.MaxUploadBytes(),
		Version:    cfg.Version,
	})

	httpServer := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     handler,
		ReadTimeout: cfg.GetReadTimeout(),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("GrudAI listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// tokenAuthFromEnv builds the bearer-token authenticator. GRUDAI_TOKEN maps
// one static token to a single local user, created on first run. Session
// issuance beyond this stays external.
func tokenAuthFromEnv(st *store.LocalStore) (server.Authenticator, error) {
	token := os.Getenv("GRUDAI_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GRUDAI_TOKEN must be set")
	}

	user, err := st.GetUserByEmail("local@grudai")
	if err != nil {
		if err != store.ErrNotFound {
			return nil, fmt.Errorf("failed to look up local user: %w", err)
		}
		id, err := st.CreateUser("local@grudai", "Local User", "")
		if err != nil {
			return nil, fmt.Errorf("failed to create local user: %w", err)
		}
		return server.NewTokenAuthenticator(map[string]int64{token: id}), nil
	}
	return server.NewTokenAuthenticator(map[string]int64{token: user.ID}), nil
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "grudai.yaml", "Path to config file")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
