/**
 * @description
 * Entry point for the giving-service: donation payments, payment callbacks,
 * event registration and the maintenance endpoints the scheduler calls.
 *
 * @notes
 * - Storage is PostgreSQL when DATABASE_URL is set and a local BoltDB file
 *   otherwise. Redis, RabbitMQ, SMTP and live Venco credentials are optional;
 *   each degrades to a logged fallback when absent.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/api"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/app"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/config"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/logging"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/store"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/mailer"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/rabbitmq"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/vencoclient"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("level=warn component=bootstrap msg=\".env file could not be loaded\" err=%v", err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"failed to load configuration\" err=%v", err)
	}
	logger := logging.New("giving-service", cfg.LogDebug, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repository, closeStore := openRepository(ctx, cfg)
	defer closeStore()

	var limiter app.RateLimiter
	if cfg.PaymentRateLimitPerMinute > 0 {
		if redisClient := connectRedis(cfg.RedisURL); redisClient != nil {
			defer redisClient.Close()
			limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix, cfg.PaymentRateLimitPerMinute, time.Minute)
		}
	}

	var publisher rabbitmq.Publisher = rabbitmq.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
			logger.Info("rabbitmq connected", "exchange", rabbitmq.Exchange)
		} else {
			logger.Warn("failed to connect to RabbitMQ, using fallback publisher", "error", err)
		}
	}
	defer publisher.Close()

	var notifier app.Notifier = mailer.Noop{}
	if cfg.MailConfigured() {
		m, err := mailer.New(cfg.SMTPHost, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
		if err != nil {
			logger.Warn("invalid SMTP configuration; donation receipts disabled", "error", err)
		} else {
			notifier = m
		}
	} else {
		logger.Warn("SMTP not configured; donation receipts disabled")
	}

	venco := vencoclient.NewClient(cfg.VencoAPIBaseURL, cfg.VencoAPIKey, cfg.VencoSecretKey)
	if !venco.IsConfigured() {
		logger.Warn("Venco credentials missing; payments run in test mode")
	}

	giving := app.NewGivingService(repository, venco, notifier, publisher, app.GivingConfig{
		FeeRule:        cfg.FeeRule(),
		Currency:       cfg.Currency,
		CallbackURL:    cfg.PublicBaseURL + "/payments",
		SuccessURL:     cfg.PaymentSuccessURL,
		FailureURL:     cfg.PaymentFailureURL,
		AnonymousDonor: cfg.AnonymousDonor(),
	}, logger)
	events := app.NewEventService(repository, publisher, logger)

	if strings.TrimSpace(cfg.MemberJWKSURL) == "" {
		logger.Warn("MEMBER_JWKS_URL not set; member endpoints will reject every request")
	}
	if cfg.InternalAPIKey == "" {
		logger.Warn("INTERNAL_API_KEY not set; internal endpoints are unauthenticated")
	}

	handler := api.NewHandler(giving, events, cfg.DonationPendingTTL(), logger)
	router := api.NewRouter(handler, api.RouterOptions{
		Verifier:       api.NewMemberVerifier(cfg.MemberJWKSURL),
		InternalAPIKey: cfg.InternalAPIKey,
		RateLimiter:    limiter,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort, "fee_rule", cfg.FeeRule().String(), "test_mode", !venco.IsConfigured())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	giving.Wait()
	logger.Info("server stopped")
}

func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func()) {
	if cfg.DatabaseURL == "" {
		bolt, err := store.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"unable to open bolt store\" path=%s err=%v", cfg.BoltPath, err)
		}
		log.Printf("level=info component=bootstrap msg=\"using bolt store\" path=%s", cfg.BoltPath)
		return store.NewKVRepository(bolt), func() { bolt.Close() }
	}

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"unable to parse database URL\" err=%v", err)
	}
	pgConfig.MaxConns = 20
	pgConfig.MinConns = 2
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"unable to connect to database\" err=%v", err)
	}
	if err := store.Migrate(ctx, dbpool); err != nil {
		dbpool.Close()
		log.Fatalf("level=fatal component=bootstrap msg=\"schema migration failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"database connection established\"")
	return store.NewPostgresRepository(dbpool), dbpool.Close
}

func connectRedis(redisURL string) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; payment rate limiting disabled\" env=REDIS_URL")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; payment rate limiting disabled\" err=%v", err)
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; payment rate limiting disabled\" err=%v", err)
		client.Close()
		return nil
	}
	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}
