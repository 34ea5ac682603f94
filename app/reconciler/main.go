// Job: ledger reconciliation. Recomputes every member's balance from the
// ledger fold and repairs cached balances and tiers that drifted, on an
// interval, until stopped.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyaltyHub/business/mission"
	"loyaltyHub/business/reward"
	"loyaltyHub/business/wheel"
	psqlRepo "loyaltyHub/internal/repository/postgres"
	redisRepo "loyaltyHub/internal/repository/redis"
	"loyaltyHub/pkg/config"
	"loyaltyHub/pkg/database"
	redisdb "loyaltyHub/pkg/database/redis"
	"loyaltyHub/pkg/logger"
	"loyaltyHub/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	defer logger.Sync()
	logger.Info("Starting loyalty reconciler", "version", cfg.App.Version)

	metrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected successfully")

	quotaLoc, err := time.LoadLocation(cfg.Loyalty.QuotaTimezone)
	if err != nil {
		logger.Fatal("Invalid quota timezone", "timezone", cfg.Loyalty.QuotaTimezone, "error", err)
	}

	// cache is optional: reconciliation still runs without it
	var cache reward.BalanceCache
	redisClient, err := redisdb.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, balance cache disabled", "error", err)
	} else {
		defer redisdb.CloseRedisClient(redisClient)
		cache = redisRepo.NewBalanceCache(redisClient, cfg.Loyalty.BalanceCacheTTL)
	}

	store := psqlRepo.NewStore(db)
	wheelService := wheel.NewWheelService(quotaLoc)
	missionService := mission.NewMissionService()
	rewardService := reward.NewRewardService(store, wheelService, missionService, cache, nil)

	// metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Loyalty.MetricsListenAddr, Handler: mux}
	go func() {
		logger.Info("Metrics listening", "address", cfg.Loyalty.MetricsListenAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start metrics server", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Loyalty.ReconcileInterval)
		defer ticker.Stop()
		for {
			runOnce(ctx, rewardService, cfg)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down reconciler...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", "error", err)
	}

	logger.Info("Reconciler stopped")
}

func runOnce(ctx context.Context, svc *reward.RewardService, cfg *config.Config) {
	start := time.Now()
	repaired, err := svc.ReconcileAll(ctx, cfg.Loyalty.ReconcileWorkers, cfg.Loyalty.ReconcilePageSize)
	if err != nil {
		logger.Error("Reconcile run failed", "error", err, "repaired", repaired)
		return
	}
	logger.Info("Reconcile run finished",
		"repaired", repaired,
		"duration", time.Since(start).String())
}
