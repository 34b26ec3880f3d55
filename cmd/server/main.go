// Package main initializes and starts the PomeloX identity server,
// setting up configuration, logging, storage, the remote API client,
// services and handlers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/cache"
	"github.com/atinyakov/PomeloX/internal/config"
	"github.com/atinyakov/PomeloX/internal/db"
	"github.com/atinyakov/PomeloX/internal/decoder"
	"github.com/atinyakov/PomeloX/internal/identity"
	"github.com/atinyakov/PomeloX/internal/logger"
	"github.com/atinyakov/PomeloX/internal/middleware"
	"github.com/atinyakov/PomeloX/internal/pomelox"
	"github.com/atinyakov/PomeloX/internal/qrcode"
	"github.com/atinyakov/PomeloX/internal/repository"
	"github.com/atinyakov/PomeloX/internal/server/handler/http"
	"github.com/atinyakov/PomeloX/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache: Redis when configured, otherwise process memory.
	var store cache.Cache
	if options.RedisAddr != "" {
		client, err := cache.DialRedis(ctx, options.RedisAddr, options.RedisPassword)
		if err != nil {
			zapLogger.Fatal("cannot connect to redis", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		store = cache.NewRedis(client)
	} else {
		mem := cache.NewMemory()
		mem.StartJanitor(ctx, time.Minute, zapLogger)
		store = mem
		zapLogger.Warn("REDIS_ADDR not set, using in-memory cache")
	}

	catalog, err := identity.LoadCatalog(options.CatalogPath)
	if err != nil {
		zapLogger.Fatal("cannot load catalog", zap.Error(err))
	}
	mapper := identity.NewMapper(catalog)

	upstream := service.NewPomeloXUpstream(pomelox.New(options.PomeloXBaseURL, pomelox.WithLogger(zapLogger)))

	identityOpts := []service.IdentityOption{}
	if options.JWTSecret != "" {
		signer, err := qrcode.NewSigner(options.JWTSecret, time.Duration(options.SignedTTL))
		if err != nil {
			zapLogger.Fatal("cannot create signer", zap.Error(err))
		}
		identityOpts = append(identityOpts, service.WithSigner(signer))
	} else {
		zapLogger.Warn("JWT_SECRET not set, signed identity codes are disabled")
	}

	// Initialize PostgreSQL connection and scan log cleaner.
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer func() { _ = postgresDB.Close() }()

		db.StartScanLogCleaner(ctx, postgresDB,
			time.Duration(options.CleanInterval),
			time.Duration(options.ScanRetention),
			zapLogger,
		)
		identityOpts = append(identityOpts,
			service.WithScanLog(repository.NewPostgresScanLogRepository(postgresDB)),
			service.WithRevocations(repository.NewPostgresRevocationRepository(postgresDB)),
		)
	} else {
		zapLogger.Warn("DATABASE_DSN not set, scan logging is disabled")
	}

	// Initialize business-logic services.
	identityService := service.NewIdentityService(upstream, mapper, store, zapLogger, identityOpts...)
	activityService := service.NewActivityService(upstream, decoder.New(decoder.Options{}), store, zapLogger)
	volunteerService := service.NewVolunteerService(upstream, mapper, store, zapLogger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	middleware.MustRegisterMetrics(registry)
	service.MustRegisterMetrics(registry)

	var limiter *middleware.RateLimiter
	if options.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(ctx, options.RateLimit, options.RateBurst)
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(http.Handlers{
		Identity:  &http.IdentityHandler{IdentityService: identityService, Log: zapLogger},
		Activity:  &http.ActivityHandler{ActivityService: activityService, Log: zapLogger},
		Volunteer: &http.VolunteerHandler{VolunteerService: volunteerService, Log: zapLogger},
		Metrics:   middleware.MetricsHandler(registry),
	}, zapLogger, limiter)

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	if options.TLSCert != "" && options.TLSKey != "" {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
