package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/lernbot/internal/handler"
	"github.com/pavelanni/lernbot/internal/llm"
	"github.com/pavelanni/lernbot/internal/session"
	"github.com/pavelanni/lernbot/internal/store"
	"github.com/pavelanni/lernbot/internal/store/postgres"
)

func main() {
	// A missing .env is fine; flags, env and config files still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lernbot",
		Short: "German exam preparation tutor for the chat",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), grantCmd(), exportCmd(), chatCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addStoreFlags registers the record store and logging flags every command shares.
func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "lernbot.db", "SQLite database path")
	f.String("database-url", "", "PostgreSQL DSN (overrides --db)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// addLLMFlags registers the text generation flags.
func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-provider", "", "LLM provider (openrouter, openai, anthropic, gemini, mock); empty picks the first API key found")
	f.String("llm-key", "", "API key for the LLM provider")
	f.String("llm-model", "", "Model name (provider default if empty)")
	f.String("llm-url", "", "Base URL for OpenAI-compatible providers")
	f.Duration("llm-timeout", llm.DefaultConfig().Timeout, "Timeout for one LLM call, retries included")
	f.String("whisper-key", "", "OpenAI API key for voice transcription (empty disables voice)")
	f.String("whisper-url", "", "Base URL for the transcription API")
	f.String("lang", "en", "Fallback UI language (en, de)")
	f.Duration("session-timeout", session.DefaultTimeout, "Idle time before a chat session is dropped")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("LERNBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("lernbot")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/lernbot")
	v.AddConfigPath("/etc/lernbot")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// recordStore is what the commands need from either backend.
type recordStore interface {
	session.Store
	handler.AdminStore
	Close() error
}

func openStore(v *viper.Viper) (recordStore, error) {
	if dsn := v.GetString("database-url"); dsn != "" {
		s, err := postgres.Open(dsn)
		if err != nil {
			return nil, err
		}
		slog.Info("using postgres store")
		return s, nil
	}
	s, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, err
	}
	slog.Info("using sqlite store", "path", v.GetString("db"))
	return s, nil
}

// llmConfig starts from the discovered API keys and applies explicit flags.
func llmConfig(v *viper.Viper) (llm.Config, error) {
	cfg, found := llm.DiscoverConfig()
	if !found {
		cfg = llm.DefaultConfig()
	}
	if p := v.GetString("llm-provider"); p != "" && p != cfg.Provider {
		base := llm.DefaultConfig()
		base.Provider = p
		cfg = base
	}
	key, model, url := v.GetString("llm-key"), v.GetString("llm-model"), v.GetString("llm-url")

	switch cfg.Provider {
	case llm.ProviderAnthropic:
		setIf(&cfg.Anthropic.APIKey, key)
		setIf(&cfg.Anthropic.Model, model)
	case llm.ProviderOpenAI:
		setIf(&cfg.OpenAI.APIKey, key)
		setIf(&cfg.OpenAI.Model, model)
		setIf(&cfg.OpenAI.BaseURL, url)
	case llm.ProviderGemini:
		setIf(&cfg.Gemini.APIKey, key)
		setIf(&cfg.Gemini.Model, model)
	case llm.ProviderOpenRouter:
		setIf(&cfg.OpenRouter.APIKey, key)
		setIf(&cfg.OpenRouter.Model, model)
		setIf(&cfg.OpenRouter.BaseURL, url)
	}
	if d := v.GetDuration("llm-timeout"); d > 0 {
		cfg.Timeout = d
	}
	return cfg, cfg.Validate()
}

func setIf(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// newOrchestrator wires the text generation and speech backends around s.
func newOrchestrator(ctx context.Context, v *viper.Viper, s session.Store) (*session.Orchestrator, error) {
	cfg, err := llmConfig(v)
	if err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	provider, err := llm.NewProvider(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	slog.Info("LLM provider ready", "provider", cfg.Provider, "model", provider.ModelID())

	transcriber := speechFromFlags(v)
	return session.New(s, llm.New(provider, cfg.Timeout), transcriber, v.GetDuration("session-timeout")), nil
}

// evictEvery is how often idle sessions are swept.
const evictEvery = time.Minute
