// Package main is the entry point for the sticker rank bot.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sticker-rank-bot/internal/bot"
	"sticker-rank-bot/internal/config"
	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/pkg/db"
	"sticker-rank-bot/internal/repository"
	"sticker-rank-bot/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ladder, err := cfg.Upgrade.Ladder()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid upgrade requirements")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Repositories
	playerRepo := repository.NewPlayerRepository(dbPool.Pool)
	stickerRepo := repository.NewStickerRepository(dbPool.Pool)
	holdingRepo := repository.NewHoldingRepository(dbPool.Pool)
	historyRepo := repository.NewHistoryRepository(dbPool.Pool)
	achievementRepo := repository.NewAchievementRepository(dbPool.Pool)
	txManager := repository.NewTxManager(dbPool.Pool)

	// Services share one lock so grants and upgrades never interleave.
	holdingLock := service.NewHoldingLock()
	metrics := service.NewMetrics(prometheus.DefaultRegisterer)

	upgradeService := service.NewUpgradeService(
		txManager,
		holdingRepo,
		historyRepo,
		achievementRepo,
		stickerRepo,
		ladder,
		holdingLock,
		metrics,
		service.UpgradeOptions{
			MaxRetries:   cfg.Upgrade.MaxRetries,
			RetryBackoff: cfg.Upgrade.RetryBackoff,
			LockTimeout:  cfg.Upgrade.LockTimeout,
			TxTimeout:    cfg.Upgrade.TxTimeout,
		},
	)
	collectionService := service.NewCollectionService(holdingRepo, stickerRepo, holdingLock, metrics, cfg.Upgrade.LockTimeout)
	accountService := service.NewAccountService(playerRepo, collectionService, cfg.Catalog.StarterCopies)

	catalog := make([]model.Sticker, 0, len(cfg.Catalog.Stickers))
	for _, st := range cfg.Catalog.Stickers {
		catalog = append(catalog, model.Sticker{ID: st.ID, Name: st.Name, BaseRarity: st.Rarity})
	}
	if err := collectionService.SyncCatalog(ctx, catalog); err != nil {
		log.Fatal().Err(err).Msg("Failed to sync sticker catalog")
	}

	metricsServer := startMetricsServer(cfg.Metrics.Addr, dbPool)

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:            cfg,
		AccountService:    accountService,
		UpgradeService:    upgradeService,
		CollectionService: collectionService,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go telegramBot.Start()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	telegramBot.Stop()
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	log.Info().Msg("Bot stopped gracefully")
}

// startMetricsServer serves /metrics and /healthz. It returns nil when addr
// is empty.
func startMetricsServer(addr string, pool *db.Pool) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.HealthCheck(r.Context(), 2*time.Second); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}
