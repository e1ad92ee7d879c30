package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pe200012/llmq-horizon/internal/agent"
	"github.com/pe200012/llmq-horizon/internal/agent/providers"
	"github.com/pe200012/llmq-horizon/internal/channels"
	"github.com/pe200012/llmq-horizon/internal/channels/onebot"
	"github.com/pe200012/llmq-horizon/internal/channels/telegram"
	"github.com/pe200012/llmq-horizon/internal/commands"
	"github.com/pe200012/llmq-horizon/internal/config"
	"github.com/pe200012/llmq-horizon/internal/gateway"
	"github.com/pe200012/llmq-horizon/internal/observability"
	"github.com/pe200012/llmq-horizon/internal/sessions"
	"github.com/pe200012/llmq-horizon/internal/skills"
	"github.com/pe200012/llmq-horizon/internal/tools"
	"github.com/pe200012/llmq-horizon/internal/tools/core"
)

// buildServeCmd creates the "serve" command that runs the bot.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Horizon bot",
		Long: `Start the Horizon bot with all configured channels.

The bot will:
1. Load configuration from the specified file
2. Discover skills and register core tools
3. Initialize the LLM provider
4. Connect the enabled channel adapters (OneBot, Telegram)
5. Serve Prometheus metrics when enabled

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  horizon serve

  # Start with custom config
  horizon serve --config /etc/horizon/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "horizon.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	// A local .env is optional; environment variables referenced by the
	// config file are expanded during Load.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
		cfg.Plugin.Debug = true
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: debug,
	})
	logger.Info("configuration loaded",
		"config", configPath,
		"llm_provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		go func() {
			logger.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := observability.Serve(cfg.Metrics.Listen); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	skillReg, err := skills.Discover(cfg.Skills.Dir, logger)
	if err != nil {
		return fmt.Errorf("discover skills: %w", err)
	}
	logger.Info("skills discovered", "count", len(skillReg.Names()))

	toolReg := tools.NewRegistry()
	core.RegisterAll(toolReg, skillReg, core.Options{
		TavilyAPIKey: os.Getenv("TAVILY_API_KEY"),
	})
	resolver := tools.NewResolver(skillReg, toolReg, nil)

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return err
	}

	history, closeHistory, err := buildHistory(cfg.Session)
	if err != nil {
		return err
	}
	defer closeHistory()

	mgr := sessions.NewManager(cfg.Session, cfg.Skills.Defaults, logger, metrics)
	pipeline := agent.NewPipeline(provider, skillReg, resolver, cfg.LLM, cfg.Session.MaxHistoryMessages, logger, metrics)

	registry := channels.NewRegistry()
	trigger := channels.Trigger{Modes: cfg.Plugin.TriggerMode, Words: cfg.Plugin.TriggerWords}
	if cfg.Channels.OneBot.Enabled {
		registry.Register(onebot.NewAdapter(cfg.Channels.OneBot, trigger, logger))
	}
	if cfg.Channels.Telegram.Enabled {
		registry.Register(telegram.NewAdapter(cfg.Channels.Telegram, trigger, logger))
	}
	if len(registry.All()) == 0 {
		return fmt.Errorf("no channels enabled")
	}

	gw := gateway.New(cfg.Plugin, cfg.Responses, mgr, history, pipeline, registry, logger, metrics)
	gw.SetAdmin(commands.NewHandler(mgr, skillReg, gw, logger))

	if err := registry.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	logger.Info("horizon started", "channels", len(registry.All()))

	gw.Run(ctx)

	logger.Info("shutdown signal received, stopping channels")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := registry.StopAll(shutdownCtx); err != nil {
		logger.Error("channel shutdown failed", "error", err)
	}

	logger.Info("horizon stopped")
	return nil
}

// buildProvider selects the model backend from configuration.
func buildProvider(cfg config.LLMConfig) (agent.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return providers.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "anthropic":
		return providers.NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// buildHistory selects the conversation store: SQLite when a path is
// configured, in-memory otherwise.
func buildHistory(cfg config.SessionConfig) (sessions.History, func(), error) {
	if cfg.HistoryPath == "" {
		return sessions.NewMemoryHistory(cfg.MaxHistoryMessages), func() {}, nil
	}
	store, err := sessions.NewSQLiteHistory(cfg.HistoryPath, cfg.MaxHistoryMessages)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}
