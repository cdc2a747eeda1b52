package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "electricity-billing/api/swagger" // swagger docs
	"electricity-billing/internal/clock"
	"electricity-billing/internal/config"
	"electricity-billing/internal/database"
	"electricity-billing/internal/lock"
	"electricity-billing/internal/logger"
	"electricity-billing/internal/metrics"
	"electricity-billing/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// @title           Electricity Billing API
// @version         1.0
// @description     Multi-tenant electricity billing: providers, time-versioned pricing, invoices and their audit trail.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}

	locker := lock.NewNoop()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, 5*time.Second, 100*time.Millisecond, 30)
		log.Info("using redis price-change lock", zap.String("addr", cfg.Redis.Addr))
	}

	app, err := server.New(server.Deps{
		Config:  cfg,
		DB:      db,
		Locker:  locker,
		Clock:   clock.New(),
		Metrics: metrics.Default(),
		Log:     log,
	})
	if err != nil {
		log.Fatal("failed to build application", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go app.Hub.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
