package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront/internal/cache"
	"storefront/internal/config"
	httpx "storefront/internal/http"
	"storefront/internal/publisher"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/session"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "storefront").Logger()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("mongodb disconnect failed")
		}
	}()
	log.Info().Str("uri", cfg.MongoURI).Str("db", cfg.MongoDBName).Msg("connected to mongodb")

	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatal().Err(err).Msg("index creation failed")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")

	cartRepo := repository.NewCartRepository(mongoDB)
	orderRepo := repository.NewOrderRepository(mongoDB)
	userRepo := repository.NewUserRepository(mongoDB)
	productRepo := repository.NewProductRepository(mongoDB)

	cartCache := cache.NewRedisCache(redisClient)
	sessions := session.NewStore(redisClient, cfg.SessionTTL)

	orderEvents := publisher.NewOrderEvents(cfg.KafkaBrokers...)
	defer orderEvents.Close()

	cartService := service.NewCartService(cartRepo, cartCache)
	orderService := service.NewOrderService(orderRepo, userRepo, productRepo, cartService, orderEvents)
	accountService := service.NewAccountService(userRepo)
	addressService := service.NewAddressService(userRepo)

	router := httpx.NewRouter(httpx.RouterDeps{
		Carts:          cartService,
		Orders:         orderService,
		Accounts:       accountService,
		Addresses:      addressService,
		Catalog:        httpx.NewCatalogHandler(productRepo),
		Sessions:       sessions,
		SessionTTL:     cfg.SessionTTL,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxRequestBodySize,
		SecureCookies:  cfg.SecureCookies,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("storefront listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
