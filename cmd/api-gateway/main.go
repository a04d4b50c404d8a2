package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	_ "github.com/noah-isme/storefront-api/api/swagger"
	"github.com/noah-isme/storefront-api/internal/handler"
	"github.com/noah-isme/storefront-api/internal/repository"
	"github.com/noah-isme/storefront-api/internal/server"
	"github.com/noah-isme/storefront-api/internal/service"
	"github.com/noah-isme/storefront-api/pkg/cache"
	"github.com/noah-isme/storefront-api/pkg/config"
	"github.com/noah-isme/storefront-api/pkg/database"
	"github.com/noah-isme/storefront-api/pkg/events"
	"github.com/noah-isme/storefront-api/pkg/jobs"
	"github.com/noah-isme/storefront-api/pkg/logger"
	"github.com/noah-isme/storefront-api/pkg/telemetry"
)

// @title Storefront API
// @version 1.0.0
// @description Authentication, sessions, catalog search and carts for the storefront.
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		ServiceName:   cfg.ServiceName,
		Environment:   cfg.Env,
		CollectorAddr: cfg.Telemetry.CollectorAddr,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Warnw("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	publisher, closePublisher := newPublisher(ctx, cfg, logr)
	defer closePublisher()

	metrics := service.NewMetricsService()
	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.Expiration,
		RefreshTTL:    cfg.JWT.RefreshExpiration,
		Issuer:        cfg.JWT.Issuer,
	})

	users := repository.NewUserRepository(db)
	sessions := service.NewSessionService(repository.NewSessionRepository(db), metrics, logr, cfg.Sessions.SweepInterval)
	blacklist := service.NewTokenBlacklist(repository.NewBlacklistRepository(rdb), tokens, logr)
	breach := service.NewBreachDetector(tokens, sessions, blacklist, publisher, metrics, logr)
	auth := service.NewAuthService(service.AuthDependencies{
		Users:     users,
		Tokens:    tokens,
		Sessions:  sessions,
		Blacklist: blacklist,
		Breach:    breach,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logr,
	}, service.AuthConfig{BcryptCost: cfg.Security.BcryptCost})

	productCache := service.NewProductCache(repository.NewCacheRepository(rdb), metrics, cfg.Catalog.CacheTTL, logr)
	catalogRepo := repository.NewCatalogRepository(db)

	authLimiter, err := newAuthLimiter(rdb, cfg.Security.AuthRateLimit)
	if err != nil {
		return err
	}

	sessions.StartSweeper(ctx)

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		Logger:      logr,
		Metrics:     metrics,
		Tokens:      tokens,
		Blacklist:   blacklist,
		Auth:        auth,
		Addresses:   service.NewAddressService(users, nil, logr),
		Catalog:     service.NewCatalogService(catalogRepo, productCache, metrics, nil, logr),
		Carts:       service.NewCartService(repository.NewCartRepository(db), catalogRepo, nil, logr),
		Users:       service.NewUserService(users, publisher, nil, logr),
		Publisher:   publisher,
		AuthLimiter: authLimiter,
		Readiness: map[string]handler.ReadinessCheck{
			"postgres": pingPostgres(db),
			"redis":    pingRedis(rdb),
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newPublisher returns the security event sink. Without brokers events are dropped.
func newPublisher(ctx context.Context, cfg *config.Config, logr *zap.Logger) (events.Publisher, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NopPublisher{}, func() {}
	}

	kafka, err := events.NewKafkaPublisher(ctx, events.KafkaConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
		Topic:    cfg.Kafka.SecurityTopic,
	})
	if err != nil {
		logr.Sugar().Warnw("kafka unavailable, security events disabled", "error", err)
		return events.NopPublisher{}, func() {}
	}

	async := events.NewAsyncPublisher(kafka, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 3,
		RetryDelay: 200 * time.Millisecond,
		Logger:     logr,
	})
	async.Start(ctx)
	return async, func() {
		async.Stop()
		kafka.Close()
	}
}

func newAuthLimiter(rdb *redis.Client, formatted string) (*limiter.Limiter, error) {
	if formatted == "" {
		return nil, nil
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse auth rate limit %q: %w", formatted, err)
	}
	store, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "storefront:auth-limit"})
	if err != nil {
		return nil, fmt.Errorf("create rate limit store: %w", err)
	}
	return limiter.New(store, rate), nil
}

func pingPostgres(db *sqlx.DB) handler.ReadinessCheck {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

func pingRedis(rdb *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}
