package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/mongomart/internal/cache"
	"github.com/fjod/mongomart/internal/config"
	h "github.com/fjod/mongomart/internal/http"
	"github.com/fjod/mongomart/internal/importer"
	"github.com/fjod/mongomart/internal/logger"
	"github.com/fjod/mongomart/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(logger.Options{
		Service: "storefront",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	st, err := openStores(connectCtx, cfg)
	cancelConnect()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	var cartCache cache.CartCache
	var redisClient *redis.Client
	if cfg.CacheEnabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// the breaker keeps requests flowing while Redis is down
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis not reachable at startup")
		}
		cartCache = cache.NewBreakerCache(cache.NewRedisCache(redisClient, cfg.CacheTTL), cache.BreakerSettings{
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("cache breaker state changed")
			},
		})
	}

	catalogService := service.NewCatalogService(st.items)
	cartService := service.NewCartService(st.carts, cartCache, log)

	router := h.NewRouter(h.RouterConfig{
		Catalog:        catalogService,
		Cart:           cartService,
		Logger:         log,
		PageSize:       cfg.PageSize,
		DefaultUserID:  cfg.DefaultUserID,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var imp *importer.Importer
	importerDone := make(chan struct{})
	if cfg.ImporterEnabled() {
		imp = importer.New(catalogService, importer.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.CatalogTopic,
		}, log)
		go func() {
			defer close(importerDone)
			imp.Run(ctx)
		}()
	} else {
		close(importerDone)
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	<-importerDone
	if imp != nil {
		if err := imp.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close importer")
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}
	if err := st.close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to close store")
	}

	log.Info().Msg("storefront stopped")
}
