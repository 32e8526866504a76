package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	caphandler "subvault/internal/capability/handler"
	capmetrics "subvault/internal/capability/metrics"
	capservice "subvault/internal/capability/service"
	capstore "subvault/internal/capability/store"
	"subvault/internal/jwttoken"
	"subvault/internal/platform/config"
	"subvault/internal/platform/httpserver"
	"subvault/internal/platform/logger"
	platmetrics "subvault/internal/platform/metrics"
	platformredis "subvault/internal/platform/redis"
	reghandler "subvault/internal/registry/handler"
	regmetrics "subvault/internal/registry/metrics"
	regservice "subvault/internal/registry/service"
	regstore "subvault/internal/registry/store"
	"subvault/pkg/platform/events/kafka"
	"subvault/pkg/platform/events/publisher"
	eventsmemory "subvault/pkg/platform/events/store/memory"
	eventspg "subvault/pkg/platform/events/store/postgres"
)

// main wires stores, services and handlers, and runs the HTTP server until a
// termination signal. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: PostgreSQL when configured, in-memory otherwise.
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var accountStore capservice.AccountStore
	var subscriptionStore regservice.SubscriptionStore
	if db != nil {
		accountStore = capstore.NewPostgres(db)
		subscriptionStore = regstore.NewPostgresSubscriptionStore(db)
	} else {
		accountStore = capstore.NewInMemory()
		subscriptionStore = regstore.NewInMemorySubscriptionStore()
	}

	// Grants: Redis when configured, in-memory otherwise.
	var grantStore regservice.GrantStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		grantStore = regstore.NewRedisGrantStore(redisClient.Client)
		log.Info("using redis grant store")
	} else {
		grantStore = regstore.NewInMemoryGrantStore()
	}

	// Events: Kafka when brokers are configured, otherwise an in-process
	// async publisher backed by the configured storage.
	var eventPublisher regservice.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, kafka.WithLogger(log))
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = kafkaPub.Close(closeCtx)
		}()
		eventPublisher = kafkaPub
		log.Info("using kafka event publisher", "topic", cfg.Kafka.Topic)
	} else {
		var pub *publisher.Publisher
		if db != nil {
			pub = publisher.NewPublisher(eventspg.New(db), publisher.WithLogger(log), publisher.WithAsyncBuffer(256))
		} else {
			pub = publisher.NewPublisher(eventsmemory.NewInMemoryStore(), publisher.WithLogger(log), publisher.WithAsyncBuffer(256))
		}
		defer pub.Close()
		eventPublisher = pub
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "subvault")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)
	httpMetrics := platmetrics.New()

	authority := capservice.New(accountStore,
		capservice.WithLogger(log),
		capservice.WithMetrics(capmetrics.New()),
	)
	registry := regservice.New(subscriptionStore, grantStore, authority,
		regservice.WithLogger(log),
		regservice.WithMetrics(regmetrics.New()),
		regservice.WithEventPublisher(eventPublisher),
	)

	router := chi.NewRouter()
	caphandler.New(authority, jwtService, log, httpMetrics, validator).Register(router)
	reghandler.New(registry, jwtService, log, httpMetrics, validator).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting subvault", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("subvault stopped")
}
