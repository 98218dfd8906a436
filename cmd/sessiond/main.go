// Package main is the entry point for the session daemon: one chat session
// engine fronted by an HTTP command surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-session-engine/internal/config"
	"github.com/capitalize-ai/chat-session-engine/internal/handler"
	"github.com/capitalize-ai/chat-session-engine/internal/middleware"
	natsclient "github.com/capitalize-ai/chat-session-engine/internal/nats"
	"github.com/capitalize-ai/chat-session-engine/internal/session"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
	"github.com/capitalize-ai/chat-session-engine/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting session daemon", zap.String("chat_id", cfg.ChatID))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-session-engine", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	nc, err := natsclient.Connect(natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer nc.Close()

	transport := natsclient.NewTransport(nc, log)
	pushFeed := natsclient.NewPushFeed(nc, log)

	// Open the session: push subscription is acquired here and released at
	// close on every exit path.
	engine, err := session.Open(ctx, session.Config{
		ChatID:     cfg.ChatID,
		PageSize:   cfg.PageSize,
		RPCTimeout: cfg.RPCTimeout,
	}, transport, pushFeed, log)
	if err != nil {
		log.Error("failed to open session", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("session close", zap.Error(err))
		}
	}()

	engine.SubmitInitialLoad()

	healthHandler := handler.NewHealthHandler(nc)
	sessionHandler := handler.NewSessionHandler(engine, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/session", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/", sessionHandler.Snapshot)
		r.Post("/load", sessionHandler.Load)
		r.Post("/older", sessionHandler.OlderPage)
		r.Post("/messages", sessionHandler.Send)
		r.Post("/stop", sessionHandler.Stop)
		r.Delete("/related-questions", sessionHandler.ClearRelatedQuestions)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("stopped")
}
