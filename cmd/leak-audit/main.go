// cmd/leak-audit/main.go
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

	"leak-audit/internal/api"
	"leak-audit/internal/audit"
	"leak-audit/internal/common/auth"
	awsclient "leak-audit/internal/common/aws"
	"leak-audit/internal/common/camunda"
	"leak-audit/internal/common/config"
	"leak-audit/internal/common/database"
	"leak-audit/internal/common/logger"
	"leak-audit/internal/common/observability"
	"leak-audit/internal/crm"
	"leak-audit/internal/notify"
	"leak-audit/internal/repository"
	"leak-audit/internal/snapshot"

	rla "leak-audit/internal/workers/audit/run-leak-audit"
	sla "leak-audit/internal/workers/audit/send-leak-alert"
)

func fatal(log logger.Logger, msg string, err error) {
	log.Error(msg, map[string]interface{}{"error": err})
	_ = log.Sync()
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output).
		WithFields(map[string]interface{}{"service": cfg.App.Name})
	defer log.Sync()
	log.Info("starting leak audit service", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(observability.Options{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		log.Warn("observability degraded", map[string]interface{}{"error": err})
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			log.Warn("observability shutdown failed", map[string]interface{}{"error": err})
		}
	}()

	var registryOpts []crm.Option
	if cfg.Audit.SimulateLatency {
		registryOpts = append(registryOpts, crm.WithSimulatedLatency())
	}
	deps := audit.Deps{
		Registry:          crm.Default(registryOpts...),
		Observability:     obs,
		Logger:            log,
		SideEffectTimeout: config.GetDuration(cfg.Audit.SideEffectTimeout),
	}
	checks := map[string]api.Checker{}
	var sources []snapshot.Source
	var dedupe notify.Deduper

	// --- PostgreSQL ---
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err = database.RetryWithBackoff(ctx, func(ctx context.Context) error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			fatal(log, "postgres failed after retries", err)
		}
		defer pg.Close()

		if cfg.Database.Postgres.AutoMigrate {
			if err := repository.Migrate(ctx, pg.DB); err != nil {
				fatal(log, "schema migration failed", err)
			}
		}

		deps.Runs = repository.NewAuditRepository(pg.DB)
		sources = append(sources, snapshot.NewPostgresSource(pg.DB))
		checks["postgres"] = pg
		log.Info("PostgreSQL connected successfully", nil)
	}
	if cfg.Audit.DemoFallback {
		sources = append(sources, snapshot.DemoSource{})
	}
	deps.Snapshot = snapshot.NewChain(log, sources...)

	// --- Redis ---
	if cfg.Database.Redis.Enabled {
		var rdb *database.RedisClient
		err = database.RetryWithBackoff(ctx, func(ctx context.Context) error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			fatal(log, "redis failed after retries", err)
		}
		defer rdb.Close()

		deps.Cache = repository.NewReportCache(rdb.Client, config.GetSeconds(cfg.Audit.CacheTTL))
		deps.Connections = repository.NewConnectionStore(rdb.Client, config.GetSeconds(cfg.Audit.ConnectionTTL))
		dedupe = notify.NewRedisDeduper(rdb.Client, config.GetSeconds(cfg.Audit.AlertDedupeTTL))
		checks["redis"] = rdb
		log.Info("Redis connected successfully", nil)
	}

	// --- Elasticsearch ---
	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err = database.RetryWithBackoff(ctx, func(ctx context.Context) error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			fatal(log, "elasticsearch failed after retries", err)
		}

		index := repository.NewLeakIndex(es.Client, es.Index)
		if err := index.EnsureIndex(ctx); err != nil {
			log.Warn("failed to ensure leak index", map[string]interface{}{"error": err, "index": es.Index})
		}
		deps.Index = index
		checks["elasticsearch"] = es
		log.Info("Elasticsearch connected successfully", nil)
	}

	svc := audit.NewService(deps)

	// --- Notifications ---
	var emailSender notify.EmailSender
	var smsSender notify.SMSSender
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.Notifications.Region)
		if err != nil {
			fatal(log, "aws config failed", err)
		}
		if cfg.Notifications.Email.Enabled {
			emailSender = awsclient.NewSESClient(awsCfg, cfg.Notifications.Email.FromEmail)
		}
		if cfg.Notifications.SMS.Enabled {
			smsSender = awsclient.NewSNSClient(awsCfg, cfg.Notifications.SMS.SenderID)
		}
	}
	notifier := notify.NewNotifier(emailSender, smsSender, dedupe, log)

	// --- Zeebe workers ---
	var workers []*camunda.Worker
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = database.RetryWithBackoff(ctx, func(ctx context.Context) error {
			var err error
			zeebe, err = camunda.NewClient(ctx, camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			fatal(log, "zeebe client failed after retries", err)
		}
		defer zeebe.Close()
		checks["zeebe"] = api.CheckFunc(zeebe.HealthCheck)
		log.Info("Zeebe client connected successfully", nil)

		if config.IsWorkerEnabled(cfg, rla.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, rla.TaskType)
			handler := rla.NewHandler(&rla.Config{Timeout: config.GetDuration(wcfg.Timeout)}, svc, obs, log)
			workers = append(workers, camunda.NewWorker(zeebe.Zeebe(), camunda.WorkerOptions{
				TaskType:      rla.TaskType,
				MaxJobsActive: wcfg.MaxJobsActive,
				Timeout:       config.GetDuration(wcfg.Timeout),
			}, handler, log))
		}
		if config.IsWorkerEnabled(cfg, sla.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, sla.TaskType)
			handler := sla.NewHandler(&sla.Config{Timeout: config.GetDuration(wcfg.Timeout)}, notifier, obs, log)
			workers = append(workers, camunda.NewWorker(zeebe.Zeebe(), camunda.WorkerOptions{
				TaskType:      sla.TaskType,
				MaxJobsActive: wcfg.MaxJobsActive,
				Timeout:       config.GetDuration(wcfg.Timeout),
			}, handler, log))
		}
	}

	// --- HTTP API ---
	var httpServer *http.Server
	if cfg.Server.Enabled {
		if cfg.Auth.JWTSecret == "" {
			log.Warn("auth.jwt_secret is empty, protected routes will answer 500", nil)
		}
		issuer := auth.NewIssuer(cfg.Auth.JWTSecret, config.GetSeconds(cfg.Auth.TokenTTL), cfg.Auth.Email, cfg.Auth.Password)
		server := api.NewServer(api.Options{
			Service:        svc,
			Issuer:         issuer,
			Logger:         log,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Checks:         checks,
		})
		httpServer = &http.Server{
			Addr:         cfg.Server.Address,
			Handler:      server.Handler(),
			ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
			WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
		}

		go func() {
			log.Info("HTTP API listening", map[string]interface{}{"address": cfg.Server.Address})
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server failed", map[string]interface{}{"error": err})
				stop()
			}
		}()
	}

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("Shutdown signal received, stopping...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP shutdown failed", map[string]interface{}{"error": err})
		}
	}
	for _, w := range workers {
		w.Stop()
	}

	log.Info("leak audit service stopped", nil)
}
