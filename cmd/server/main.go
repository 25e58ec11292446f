// Package main is the entrypoint for the RescueDesk API server.
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

	"github.com/go-playground/validator/v10"
	"github.com/kiranshivaraju/rescuedesk/internal/action"
	"github.com/kiranshivaraju/rescuedesk/internal/api"
	"github.com/kiranshivaraju/rescuedesk/internal/api/handler"
	mw "github.com/kiranshivaraju/rescuedesk/internal/api/middleware"
	"github.com/kiranshivaraju/rescuedesk/internal/backoffice"
	"github.com/kiranshivaraju/rescuedesk/internal/cache"
	"github.com/kiranshivaraju/rescuedesk/internal/collab"
	"github.com/kiranshivaraju/rescuedesk/internal/collab/mock"
	"github.com/kiranshivaraju/rescuedesk/internal/config"
	"github.com/kiranshivaraju/rescuedesk/internal/events"
	"github.com/kiranshivaraju/rescuedesk/internal/messaging"
	"github.com/kiranshivaraju/rescuedesk/internal/pipeline"
	"github.com/kiranshivaraju/rescuedesk/internal/solution"
	"github.com/kiranshivaraju/rescuedesk/internal/store"
	"github.com/kiranshivaraju/rescuedesk/internal/triage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config; fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"collab_backend", cfg.Backoffice.Backend,
		"records_backend", cfg.Backoffice.RecordsBackend,
		"messaging_channel", cfg.Messaging.Channel,
		"kafka", cfg.Kafka.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	pgStore := store.NewPostgresStore(pool)

	// 5. Kafka producers, if configured
	var (
		notifier pipeline.Notifier
		outbound messaging.Sender
	)
	if cfg.Kafka.Enabled() {
		outcomes := events.NewProducer(events.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.OutcomesTopic))
		defer closeLogged("outcome producer", outcomes.Close)
		notifier = outcomes

		queue := events.NewProducer(events.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.OutboundTopic))
		defer closeLogged("outbound producer", queue.Close)
		outbound = queue
	}

	// 6. Collaborators and pipeline
	collabs, err := buildCollaborators(cfg, pgStore, outbound)
	if err != nil {
		return fmt.Errorf("build collaborators: %w", err)
	}
	slog.Info("collaborators initialized", "backend", cfg.Backoffice.Backend, "messenger", cfg.Messaging.Channel)

	policies := collabs.lookups.Policies
	if cfg.Pipeline.PolicyCacheTTL > 0 {
		policies = pipeline.NewCachedPolicyLookup(policies, redisCache, cfg.Pipeline.PolicyCacheTTL)
	}

	svc := pipeline.NewService(
		triage.NewStage(collabs.lookups.Customers, collabs.lookups.Transcripts, cfg.Policy.Triage),
		solution.NewStage(policies, collabs.lookups.Orders, cfg.Policy.Solution),
		action.NewStage(collabs.executors, collabs.messenger, collabs.records, cfg.Messaging.DefaultChannel),
		pgStore,
		redisCache,
		notifier,
		cfg.Pipeline,
	)

	// 7. Incident consumer, if configured
	consumerDone := make(chan error, 1)
	if cfg.Kafka.Enabled() {
		reader := events.NewReader(cfg.Kafka.Brokers, cfg.Kafka.IncidentsTopic, cfg.Kafka.GroupID)
		consumer := events.NewConsumer(reader, svc, cfg.Kafka.Workers)
		go func() {
			slog.Info("incident consumer started", "topic", cfg.Kafka.IncidentsTopic, "workers", cfg.Kafka.Workers)
			consumerDone <- consumer.Run(ctx)
			closeLogged("incident consumer", consumer.Close)
		}()
	} else {
		close(consumerDone)
	}

	// 8. Build router with dependencies
	checks := map[string]handler.Check{
		"database": pgStore.Ping,
		"cache":    redisCache.Ping,
	}
	if collabs.ready != nil {
		checks["backoffice"] = collabs.ready
	}
	router := api.NewRouter(newDependencies(cfg, svc, pgStore, redisCache, checks))

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case err := <-consumerDone:
		if err != nil {
			return fmt.Errorf("incident consumer: %w", err)
		}
		<-ctx.Done()
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		slog.Warn("incident consumer did not drain before shutdown timeout")
	}

	if err := svc.Drain(shutdownCtx); err != nil {
		slog.Warn("triggered runs did not finish before shutdown timeout", "error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// collaborators is the set of external services the stages call.
type collaborators struct {
	lookups   collab.Lookups
	executors collab.Executors
	messenger collab.Messenger
	records   collab.RecordKeeper
	// ready is nil unless a remote back office is in use.
	ready handler.Check
}

// buildCollaborators picks collaborator implementations from config.
// records is used when RECORDS_BACKEND is postgres; outbound may be nil when
// Kafka is not configured.
func buildCollaborators(cfg *config.Config, records collab.RecordKeeper, outbound messaging.Sender) (*collaborators, error) {
	var client *backoffice.HTTPClient
	if cfg.Backoffice.BaseURL != "" {
		client = backoffice.NewHTTPClient(cfg.Backoffice.BaseURL, cfg.Backoffice.APIKey, cfg.Backoffice.Timeout)
	}

	c := &collaborators{}
	switch cfg.Backoffice.Backend {
	case "mock":
		demo := mock.New()
		c.lookups = demo.Lookups()
		c.executors = demo.Executors()
	case "http":
		if client == nil {
			return nil, fmt.Errorf("collab backend http needs BACKOFFICE_BASE_URL")
		}
		c.lookups = client.Lookups()
		c.executors = client.Executors()
	default:
		return nil, fmt.Errorf("unknown collab backend %q", cfg.Backoffice.Backend)
	}

	switch cfg.Backoffice.RecordsBackend {
	case "postgres":
		c.records = records
	case "http":
		if client == nil {
			return nil, fmt.Errorf("records backend http needs BACKOFFICE_BASE_URL")
		}
		c.records = client
	default:
		return nil, fmt.Errorf("unknown records backend %q", cfg.Backoffice.RecordsBackend)
	}

	channels := messaging.Channels{Outbound: outbound}
	if client != nil {
		channels.Backoffice = client
	}
	m, err := messaging.NewMessenger(cfg.Messaging.Channel, channels)
	if err != nil {
		return nil, err
	}
	c.messenger = m

	if client != nil {
		c.ready = client.Ready
	}
	return c, nil
}

// newDependencies wires handlers to their services. The customer records
// listing is only served when records are kept in Postgres.
func newDependencies(cfg *config.Config, svc *pipeline.Service, st store.Store, ca cache.Cache, checks map[string]handler.Check) api.Dependencies {
	v := validator.New()

	deps := api.Dependencies{
		Auth:      mw.NewAuth(st),
		RateLimit: mw.NewRateLimit(ca, cfg.Server.RateLimitPerMinute),

		HealthHandler:    handler.NewHealthHandler(checks),
		SubmitIncident:   handler.NewSubmitIncidentHandler(svc, v),
		ListIncidents:    handler.NewListIncidentsHandler(st),
		GetIncident:      handler.NewGetIncidentHandler(svc),
		IncidentState:    handler.NewIncidentStateHandler(svc),
		CreateKeyHandler: handler.NewCreateKeyHandler(st, v),
		ListKeysHandler:  handler.NewListKeysHandler(st),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(st),
	}
	if cfg.Backoffice.RecordsBackend == "postgres" {
		deps.ListCustomerRecords = handler.NewListRecordsHandler(st)
	}
	return deps
}

func closeLogged(name string, fn func() error) {
	if err := fn(); err != nil {
		slog.Warn("close failed", "component", name, "error", err)
	}
}
