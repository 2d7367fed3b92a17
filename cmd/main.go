package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	policy, err := pricing.ParsePolicy(cfg.PriceFallback)
	if err != nil {
		return err
	}

	dbPort, err := strconv.Atoi(cfg.DBPort)
	if err != nil {
		return fmt.Errorf("invalid DB_PORT %q: %w", cfg.DBPort, err)
	}
	cred := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              dbPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
		MaxOpenConns:      cfg.DBMaxOpenConns,
		MaxIdleConns:      cfg.DBMaxIdleConns,
	}

	repo, err := repository.NewRepository(cred, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(cred); err != nil {
		return err
	}
	log.Info("migrations applied", zap.String("path", cfg.MigrationsPath))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	reg := metrics.NewRegistry()
	cartCache := cache.NewRedisCache(redisClient)
	carts := service.NewCartService(repo, cartCache, reg, log)
	resolver := pricing.NewResolver(policy, log, reg.PriceFallback)
	orders := service.NewOrderService(repo, repo, carts, resolver, reg, log)

	writer := publisher.NewKafkaWriter(cfg.OutboxTopic, cfg.KafkaBrokers...)
	poller := publisher.NewOutboxPoller(repo, writer, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	router := h.NewRouter(h.RouterConfig{
		Cart:           carts,
		Orders:         orders,
		Metrics:        reg,
		Logger:         log,
		JWTSecret:      []byte(cfg.JWTSecret),
		FrontendURL:    cfg.FrontendURL,
		RequestTimeout: cfg.RequestTimeout,
		CheckoutPerMin: cfg.CheckoutRatePerMin,
		Health: func(r *http.Request) error {
			return repo.Ping(r.Context())
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("storefront starting", zap.String("addr", srv.Addr), zap.String("price_policy", string(policy)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-serverErr:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	stop()
	wg.Wait()
	if err := writer.Close(); err != nil {
		log.Warn("kafka writer close failed", zap.Error(err))
	}

	log.Info("server exited")
	return nil
}
