// Package main is the entry point for the messaging backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/academy-platform/dashboard-messaging/internal/config"
	"github.com/academy-platform/dashboard-messaging/internal/handler"
	natsclient "github.com/academy-platform/dashboard-messaging/internal/nats"
	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
	"github.com/academy-platform/dashboard-messaging/pkg/tracing"
)

const serviceName = "dashboard-messaging"

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting messaging backend", zap.String("env", cfg.Env))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	hub := service.NewHub()
	notifiers := []service.Notifier{hub}

	// NATS fan-out is optional
	var natsClient *natsclient.Client
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     serviceName,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		publisher := natsclient.NewPublisher(natsClient)
		if err := publisher.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		notifiers = append(notifiers, publisher)
	} else {
		log.Info("NATS_URL not set, notification fan-out disabled")
	}

	directory := service.NewDirectory()
	messageSvc := service.NewMessageService(directory, service.Notifiers(notifiers...), log.Named("messages"))

	if cfg.Seed {
		if err := service.SeedDirectory(directory); err != nil {
			log.Fatal("failed to seed directory", zap.Error(err))
		}
		if err := service.SeedMessages(ctx, directory, messageSvc); err != nil {
			log.Fatal("failed to seed messages", zap.Error(err))
		}
		log.Info("seeded demo academy", zap.Int("users", len(directory.Users())))
	}

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          cfg.JWTExpiration,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		AllowedOrigins:    cfg.AllowedOrigins,
		DevTokens:         cfg.Development(),
	}, handler.Deps{
		Messages:   messageSvc,
		Directory:  directory,
		Hub:        hub,
		NATSClient: natsClient,
		Logger:     log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
