package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"plainpost/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("api stopped")
	}
	_ = logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg core.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UsesDefaultSecrets() {
		logger.Warn("default JWT_SECRET or SESSION_KEY in use; set real secrets before exposing this server")
	}

	store, err := core.OpenStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var views core.ViewCounter = core.NoopViewCounter{}
	if cfg.RedisURL != "" {
		redisClient, err := core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		views = core.NewRedisViewCounter(redisClient)
	}

	creds := core.NewCredentialStore(store.Users, logger)
	if err := core.BootstrapAuthor(ctx, cfg, store.Users, creds, logger); err != nil {
		return fmt.Errorf("bootstrap author: %w", err)
	}

	router, err := core.NewRouter(cfg, core.Services{
		Store:       store,
		Credentials: creds,
		Tokens:      core.NewTokenService(cfg.JWTSecret, logger),
		Sanitizer:   core.NewContentSanitizer(),
		Guard:       core.NewAuthorizationGuard(store.Posts, logger),
		Flash:       core.NewFlasher(cfg, logger),
		Views:       views,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": srv.Addr, "storage": store.Driver, "views": views.Enabled()}).Info("starting api server")
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

	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
