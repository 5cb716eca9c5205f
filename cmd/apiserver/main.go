package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flagwise/moderation/internal/audit"
	"github.com/flagwise/moderation/internal/cache"
	"github.com/flagwise/moderation/internal/community"
	"github.com/flagwise/moderation/internal/completion"
	"github.com/flagwise/moderation/internal/events"
	"github.com/flagwise/moderation/internal/httpapi"
	"github.com/flagwise/moderation/internal/messaging"
	"github.com/flagwise/moderation/internal/metrics"
	"github.com/flagwise/moderation/internal/moderation"
	"github.com/flagwise/moderation/internal/ratelimit"
)

func main() {
	log.Println("Starting Flagwise moderation service...")

	// --- Completion backend (required) ---
	completionConfig := completion.DefaultConfig(os.Getenv("CEREBRAS_API_KEY"))
	if v := os.Getenv("CEREBRAS_BASE_URL"); v != "" {
		completionConfig.BaseURL = v
	}
	if v := os.Getenv("CEREBRAS_MODEL"); v != "" {
		completionConfig.Model = v
	}
	if v := os.Getenv("COMPLETION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			completionConfig.Timeout = d
		}
	}

	completer, err := completion.NewClient(completionConfig)
	if err != nil {
		log.Fatalf("completion backend not configured: %v (set CEREBRAS_API_KEY)", err)
	}

	// --- HTTP server config ---
	apiConfig := httpapi.DefaultConfig()
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		apiConfig.ListenAddr = v
	}
	if v := os.Getenv("CHECK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			apiConfig.CheckTimeout = d
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		apiConfig.CORSOrigins = strings.Split(v, ",")
	}

	// --- Redis (optional: verdict cache + check rate limiting) ---
	var rdb *redis.Client
	var verdictCache *cache.Cache
	var limiter *ratelimit.Limiter
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		cancel()

		cacheTTL := cache.DefaultTTL
		if v := os.Getenv("VERDICT_CACHE_TTL"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cacheTTL = d
			}
		}
		verdictCache = cache.New(rdb, cacheTTL)
		limiter = ratelimit.NewLimiter(rdb)
	}

	// --- Postgres (optional: moderation decision audit log) ---
	var db *sql.DB
	var auditStore *audit.Store
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			log.Fatalf("failed to open Postgres: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(ctx); err != nil {
			cancel()
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		cancel()
		if err := audit.Migrate(db); err != nil {
			log.Fatalf("failed to migrate audit schema: %v", err)
		}
		auditStore = audit.NewStore(db)
	}

	// --- NATS (optional: verdict/lifecycle event publishing) ---
	var natsClient *messaging.Client
	if url := os.Getenv("NATS_URL"); url != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = url
		natsConfig.Name = "flagwise-apiserver"
		natsClient, err = messaging.NewClient(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
	}

	registry := community.NewStore()
	engine := moderation.NewEngine(completer)
	hub := events.NewHub(func(n int) {
		metrics.EventClients.Set(float64(n))
	})

	server := httpapi.NewServer(apiConfig, httpapi.Deps{
		Registry:  registry,
		Engine:    engine,
		Cache:     verdictCache,
		Audit:     auditStore,
		Limiter:   limiter,
		Publisher: natsClient,
		Hub:       hub,
	})

	log.Printf("Flagwise moderation service running")
	log.Printf("  listen_addr:   %s", apiConfig.ListenAddr)
	log.Printf("  model:         %s", completer.Model())
	log.Printf("  check_timeout: %s", apiConfig.CheckTimeout)
	log.Printf("  redis:         %v", rdb != nil)
	log.Printf("  postgres:      %v", db != nil)
	log.Printf("  nats:          %v", natsClient != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down...", sig)
	case err := <-errCh:
		log.Printf("server error: %v, shutting down...", err)
	}

	if err := server.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	hub.Close()
	if natsClient != nil {
		natsClient.Close()
	}
	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
}
