package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/lernbot/internal/handler"
	appI18n "github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/speech"
	"github.com/pavelanni/lernbot/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat gateway and admin API",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("questions", "q", nil, "Question JSON files to import at startup (repeatable)")
	f.String("admin-password", "", "Admin API password (or set LERNBOT_ADMIN_PASSWORD)")
	f.String("jwt-secret", "", "Secret for signing admin API tokens (or set LERNBOT_JWT_SECRET)")
	f.StringSlice("allowed-origins", nil, "Origins allowed to open the websocket (empty allows all)")
	return cmd
}

func speechFromFlags(v *viper.Viper) speech.Transcriber {
	return speech.New(v.GetString("whisper-key"), v.GetString("whisper-url"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := importFiles(ctx, db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	bot, err := newOrchestrator(ctx, v, db)
	if err != nil {
		return err
	}
	go bot.RunEvictor(ctx, evictEvery)

	cfg, err := gatewayConfig(v)
	if err != nil {
		return err
	}
	h := handler.New(bot, db, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r}
	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"lang", lang,
			"session_timeout", v.GetDuration("session-timeout"),
			"admin_api", len(cfg.AdminPasswordHash) > 0 && len(cfg.JWTSecret) > 0,
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shut down", "error", err)
	}
	slog.Info("server exited")
	return nil
}

// gatewayConfig hashes the admin password once so it never stays in memory
// as plain text.
func gatewayConfig(v *viper.Viper) (handler.Config, error) {
	cfg := handler.Config{
		JWTSecret:      []byte(v.GetString("jwt-secret")),
		Lang:           v.GetString("lang"),
		AllowedOrigins: v.GetStringSlice("allowed-origins"),
	}
	password := v.GetString("admin-password")
	if password == "" {
		slog.Info("admin API disabled: no admin password")
		return cfg, nil
	}
	if len(cfg.JWTSecret) == 0 {
		slog.Warn("admin API disabled: admin password set without a JWT secret")
		return cfg, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return cfg, fmt.Errorf("hash admin password: %w", err)
	}
	cfg.AdminPasswordHash = hash
	return cfg, nil
}

// importFiles imports each question file, skipping files already imported
// unchanged.
func importFiles(ctx context.Context, db recordStore, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := store.ImportFile(ctx, db, path, data); err != nil {
			return err
		}
	}
	return nil
}
