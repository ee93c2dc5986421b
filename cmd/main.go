/**
 * @description
 * Entrypoint for the remit-orchestrator. Wires configuration, the transfer
 * store (PostgreSQL when a DATABASE_URL is configured, in-memory otherwise),
 * the Redis-backed webhook deduper, the RabbitMQ status event producer, the
 * three provider clients, the quote sweeper, and the HTTP server, then runs
 * until interrupted.
 *
 * Infrastructure that is unavailable at startup degrades instead of blocking:
 * a missing broker falls back to a no-op producer and a missing Redis falls
 * back to the in-process deduper. The store is the one dependency the service
 * will not start without when configured.
 */

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stablepath/remit-orchestrator/internal/api"
	"github.com/stablepath/remit-orchestrator/internal/app"
	"github.com/stablepath/remit-orchestrator/internal/config"
	"github.com/stablepath/remit-orchestrator/internal/store"
	"github.com/stablepath/remit-orchestrator/pkg/collectionclient"
	"github.com/stablepath/remit-orchestrator/pkg/conversionclient"
	"github.com/stablepath/remit-orchestrator/pkg/payoutclient"
	"github.com/stablepath/remit-orchestrator/pkg/rabbitmq"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"cannot load config\" err=%v", err)
	}

	ctx := context.Background()

	// Store: PostgreSQL when configured, in-memory otherwise (local dev, tests).
	var repo store.Repository
	if cfg.DatabaseURL != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("level=fatal component=main msg=\"invalid database url\" err=%v", err)
		}
		poolCfg.MaxConns = 10
		poolCfg.MinConns = 2
		poolCfg.MaxConnLifetime = time.Hour
		poolCfg.MaxConnIdleTime = 30 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			log.Fatalf("level=fatal component=main msg=\"cannot connect to database\" err=%v", err)
		}
		defer pool.Close()

		pg := store.NewPostgresRepository(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("level=fatal component=main msg=\"store migration failed\" err=%v", err)
		}
		repo = pg
		log.Println("level=info component=main msg=\"using postgres transfer store\"")
	} else {
		repo = store.NewMemoryRepository()
		log.Println("level=warn component=main msg=\"DATABASE_URL not set; using in-memory transfer store\"")
	}

	// RabbitMQ producer for transfer status events. Best-effort: a missing
	// broker must not stop transfers from moving.
	var producer rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			log.Printf("level=warn component=main msg=\"rabbitmq unavailable; status events disabled\" err=%v", err)
			producer = &rabbitmq.FallbackProducer{}
		} else {
			producer = p
		}
	} else {
		producer = &rabbitmq.FallbackProducer{}
	}
	defer producer.Close()

	collection := collectionclient.NewClient(cfg.CollectionAPIBaseURL, cfg.CollectionAPIKey)
	conversion := conversionclient.NewClient(cfg.ConversionAPIBaseURL, cfg.ConversionAPIKey)
	payout := payoutclient.NewClient(cfg.PayoutAPIBaseURL, cfg.PayoutAPIKey)

	service := app.NewService(
		repo,
		collection,
		conversion,
		payout,
		producer,
		cfg.PlatformFeeBps,
		time.Duration(cfg.QuoteTTLSeconds)*time.Second,
		cfg.WebhookCallbackBaseURL,
	)

	// Redis-backed webhook dedup for multi-instance deployments. Falls back to
	// the in-process deduper when Redis is absent or unreachable.
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("level=warn component=main msg=\"invalid redis url; using in-memory webhook dedup\" err=%v", err)
		} else {
			rdb := redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := rdb.Ping(pingCtx).Err()
			cancel()
			if err != nil {
				log.Printf("level=warn component=main msg=\"redis unreachable; using in-memory webhook dedup\" err=%v", err)
			} else {
				defer rdb.Close()
				ttl := time.Duration(cfg.WebhookDedupTTLMinutes) * time.Minute
				service.SetWebhookDeduper(app.NewRedisWebhookDeduper(rdb, "", ttl))
				log.Println("level=info component=main msg=\"using redis webhook dedup\"")
			}
		}
	}

	sweeper := app.NewQuoteSweeper(repo, cfg.QuoteSweepSchedule)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("level=fatal component=main msg=\"cannot start quote sweeper\" err=%v", err)
	}

	handlers := api.NewTransferHandlers(service)
	webhookHandlers := api.NewWebhookHandlers(service, cfg.WebhookSecret)
	if cfg.WebhookSecret == "" {
		log.Println("level=warn component=main msg=\"WEBHOOK_SECRET not set; all provider webhooks will be rejected\"")
	}

	router := api.Routes(handlers, webhookHandlers, cfg.InternalAPIKey, cfg.AllowedOrigins())

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=main msg=\"remit-orchestrator listening\" port=%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("level=fatal component=main msg=\"server stopped\" err=%v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("level=info component=main msg=\"shutting down\"")

	<-sweeper.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=main msg=\"graceful shutdown failed\" err=%v", err)
	}
	log.Println("level=info component=main msg=\"server exited\"")
}
