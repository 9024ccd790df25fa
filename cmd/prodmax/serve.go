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

	"github.com/spf13/cobra"

	adapthttp "prodmax/internal/adapter/http"
	"prodmax/internal/adapter/maxapi"
	"prodmax/internal/adapter/memory"
	"prodmax/internal/adapter/postgres"
	"prodmax/internal/app"
	"prodmax/internal/bot"
	"prodmax/internal/clock"
	"prodmax/internal/config"
	"prodmax/internal/domain"
)

// store is everything the services persist through.
type store interface {
	domain.UserRepository
	domain.TaskRepository
	domain.PomodoroRepository
	domain.HabitRepository
	domain.GoalRepository
}

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and the pomodoro scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func openStore(cfg config.Config, logger *slog.Logger) (store, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}
	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := cfg.Logger()
	if cfg.MaxBotToken == "" {
		logger.Warn("MAX_BOT_TOKEN is empty; replies will be rejected by the API")
	}

	cal, err := cfg.Calendar()
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	clk := clock.System{}
	client := maxapi.New(cfg.MaxAPIURL, cfg.MaxBotToken, cfg.MaxAPITimeout, logger)

	users := app.NewUserService(app.UserRepos{Users: st, Tasks: st, Pomodoros: st, Habits: st}, client, cal, clk)
	pomodoro := app.NewPomodoroService(app.PomodoroDeps{
		Sessions: st,
		Tasks:    st,
		XP:       users,
		Registry: app.NewSessionRegistry(clk),
		Notifier: bot.NewNotifier(users, client),
		Clock:    clk,
		Logger:   logger,
	}, app.PomodoroConfig{
		DefaultMinutes: cfg.PomodoroMinutes,
		MaxMinutes:     cfg.PomodoroMaxMinutes,
		XPAward:        cfg.PomodoroXP,
		PersistTimeout: cfg.PersistTimeout,
	})

	if _, err := pomodoro.ReconcileOrphans(ctx); err != nil {
		return err
	}

	router := bot.NewRouter(bot.Services{
		Users:    users,
		Tasks:    app.NewTaskService(st, users, clk),
		Pomodoro: pomodoro,
		Habits:   app.NewHabitService(st, users, cal, clk),
		Goals:    app.NewGoalService(st, users, clk),
	}, client, logger)

	auth := app.NewAdminAuth(cfg.AdminTokenHash, cfg.WebhookSecret)
	h := adapthttp.New(router, client, auth, adapthttp.Options{
		WebhookURL:    cfg.WebhookURL,
		WebhookSecret: cfg.WebhookSecret,
		Clock:         clk,
		Logger:        logger,
	}).Handler()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "store", cfg.Store, "timezone", cal.Location().String())
		errCh <- srv.ListenAndServe()
	}()

	// The store is closed by the deferred closeStore, so in-flight expiry
	// callbacks must finish before serve returns.
	stopScheduler := func(ctx context.Context) {
		if err := pomodoro.Shutdown(ctx); err != nil {
			logger.Error("pomodoro shutdown", "error", err)
		}
	}

	select {
	case err := <-errCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		stopScheduler(shutdownCtx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	stopScheduler(shutdownCtx)
	return nil
}

func migrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("migrate needs the postgres store, got %q", cfg.Store)
			}
			db, err := postgres.Open(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db open: %w", err)
			}
			defer func() { _ = db.Close() }()
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
