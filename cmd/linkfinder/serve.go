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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/qepting91/linkfinder/internal/api"
	"github.com/qepting91/linkfinder/internal/dashboard"
	"github.com/qepting91/linkfinder/internal/feedback"
	"github.com/qepting91/linkfinder/internal/scheduler"
)

const (
	initialRefreshDelay = 2 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the dashboard and the background jobs",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.close()

	sched := scheduler.New(logger)
	if a.cfg.ReadOnly {
		logger.Info("read-only host, background jobs disabled")
	} else {
		if err := sched.Add("cache-refresh", a.cfg.CacheRefresh, initialRefreshDelay, a.refresher().Run); err != nil {
			return err
		}
		cleanup := func(context.Context) {
			a.feedback.Cleanup()
			if err := a.feedback.Save(); err != nil {
				logger.Warn("feedback save after cleanup failed", "err", err)
			}
		}
		if err := sched.Add("feedback-cleanup", feedback.CleanupInterval, -1, cleanup); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Options{
		Pipeline:  a.service,
		Feedback:  a.feedback,
		Dashboard: dashboard.New(a.cache, a.feedback, logger),
		Gatherer:  a.registry,
		Logger:    logger,
	})
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "port", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "err", err)
	}
	if err := a.cache.Save(); err != nil {
		logger.Warn("cache save on shutdown failed", "err", err)
	}
	return nil
}
