// Package main provides the scribed binary: the SCRIBE orchestration server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AdamTheFirstGitman/scribe/agent"
	anthropicmodel "github.com/AdamTheFirstGitman/scribe/model/anthropic"
	openaimodel "github.com/AdamTheFirstGitman/scribe/model/openai"

	"github.com/AdamTheFirstGitman/scribe/config"
	"github.com/AdamTheFirstGitman/scribe/discussion"
	"github.com/AdamTheFirstGitman/scribe/intent"
	"github.com/AdamTheFirstGitman/scribe/logging"
	"github.com/AdamTheFirstGitman/scribe/memory"
	"github.com/AdamTheFirstGitman/scribe/metrics"
	"github.com/AdamTheFirstGitman/scribe/model"
	"github.com/AdamTheFirstGitman/scribe/note"
	"github.com/AdamTheFirstGitman/scribe/retrieval"
	"github.com/AdamTheFirstGitman/scribe/router"
	"github.com/AdamTheFirstGitman/scribe/server"
	"github.com/AdamTheFirstGitman/scribe/tool"
	"github.com/AdamTheFirstGitman/scribe/transcribe"
	"github.com/AdamTheFirstGitman/scribe/workflow"
)

const (
	version = "0.1.0"
	appName = "scribed"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Multi-agent note orchestration server",
		Long: `Scribed routes user requests between two agents, Plume (writing and
restitution) and Mimir (research and archiving), streams their work as
newline-delimited JSON and persists notes and conversations to SQLite.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, version)
		},
	})

	return cmd
}

func run(configPath string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewSlogLogger(logLevel(cfg.Log.Level), cfg.Log.Format, false)
	logger.Info("starting server", "port", cfg.Server.Port, "db", cfg.Database.Path)

	store, err := note.NewSQLite(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("close database", "error", closeErr.Error())
		}
	}()

	retriever := retrieval.NewLocal(store)

	registry := tool.NewRegistry(tool.WithCallTimeout(cfg.Tools.CallTimeout))
	if err := tool.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	deps := tool.Deps{Notes: store, Retriever: retriever}
	agentLogger := func(o *agent.Options) { o.Logger = logger }
	plume := agent.NewPlume(buildModel(cfg, cfg.Models.PlumeModel), registry, deps, agentLogger)
	mimir := agent.NewMimir(buildModel(cfg, cfg.Models.MimirModel), registry, deps, agentLogger)

	disc := discussion.NewEngine(plume, mimir, discussionOptions(cfg, logger)...)

	rt := router.New(routerOptions(cfg, logger)...)

	collab := workflow.Collaborators{
		Retriever:   retriever,
		Memory:      memory.NewInMemoryStore(),
		Notes:       store,
		Checkpoints: store,
	}
	if cfg.Models.OpenAIAPIKey != "" {
		collab.Transcriber = transcribe.NewWhisper(cfg.Models.OpenAIAPIKey)
	}

	orch := workflow.New(rt, plume, mimir, disc, collab, func(o *workflow.Options) {
		o.Logger = logger
		o.Metrics = metrics.New(prometheus.DefaultRegisterer)
	})

	srv := server.New(orch, store,
		server.WithKeepaliveInterval(cfg.Server.KeepaliveInterval),
		server.WithStreamBudget(cfg.Server.StreamBudget),
		server.WithLogger(logger),
	)

	// No WriteTimeout: streaming responses stay open past any fixed bound.
	httpSrv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     srv.Routes(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}



// buildModel picks the provider from the model name prefix. Without any API
// key it falls back to a mock so the server still starts for local work.
func buildModel(cfg *config.Config, name string) model.Model {
	switch {
	case strings.HasPrefix(name, "claude") && cfg.Models.AnthropicAPIKey != "":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(name)
			o.APIKey = cfg.Models.AnthropicAPIKey
		})
	case cfg.Models.OpenAIAPIKey != "":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.Model = name
			o.APIKey = cfg.Models.OpenAIAPIKey
		})
	default:
		return model.NewMockModel(name)
	}
}

func discussionOptions(cfg *config.Config, logger logging.Logger) []func(o *discussion.Options) {
	return []func(o *discussion.Options){
		discussion.WithMaxTurns(cfg.Discussion.MaxTurns),
		discussion.WithStallGuard(cfg.Discussion.StallTurns),
		discussion.WithLogger(logger),
	}
}

func routerOptions(cfg *config.Config, logger logging.Logger) []func(o *router.Options) {
	opts := []func(o *router.Options){router.WithLogger(logger)}
	if cfg.Routing.MentionStrategy == "word" {
		opts = append(opts, router.WithStrategy(router.MatchWordBoundary))
	}
	if cfg.Routing.Classifier == "model" {
		clf := intent.NewModelClassifier(buildModel(cfg, cfg.Models.ClassifierModel))
		opts = append(opts, router.WithClassifier(clf))
	}
	return opts
}

func logLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
