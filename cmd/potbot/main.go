package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/potbot/config"
	"github.com/alejandrodnm/potbot/internal/adapters/notify"
	"github.com/alejandrodnm/potbot/internal/adapters/steamgw"
	"github.com/alejandrodnm/potbot/internal/adapters/storage"
	"github.com/alejandrodnm/potbot/internal/engine"
	"github.com/alejandrodnm/potbot/internal/ports"
	"github.com/alejandrodnm/potbot/internal/pricing"
	"github.com/alejandrodnm/potbot/internal/retry"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	console := flag.Bool("console", false, "notify to stdout instead of gateway chat")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("potbot starting",
		"config", *configPath,
		"catalog", cfg.Trading.CatalogID,
		"gateway", cfg.Trading.GatewayBase,
		"min_bet", cfg.Game.MinBetCents,
		"fee", cfg.Game.FeePercent,
	)

	client := steamgw.NewClient(cfg.Trading.GatewayBase, cfg.Trading.GatewayToken)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	policy := retry.Policy{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: cfg.RetryBackoff()}

	prices := pricing.NewCache(pricing.Config{
		CatalogID:       cfg.Trading.CatalogID,
		RefreshInterval: cfg.PriceRefresh(),
		MaxAge:          cfg.PriceFreshness(),
		Retry:           policy,
	}, client)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var notifier ports.Notifier
	if *console || len(cfg.Trading.AdminIDs) == 0 {
		notifier = notify.NewConsole()
	} else {
		chat := notify.NewChat(client, cfg.Trading.AdminIDs)
		go chat.Run(ctx)
		notifier = chat
	}

	engCfg := engine.DefaultConfig()
	engCfg.CatalogID = cfg.Trading.CatalogID
	engCfg.MinBet = cfg.Game.MinBetCents
	engCfg.MaxItemsPerTrade = cfg.Game.MaxItemsPerTrade
	engCfg.MaxItemsTotal = cfg.Game.MaxItemsTotal
	engCfg.MaxItemsPerUser = cfg.Game.MaxItemsPerUser
	engCfg.MinBettors = cfg.Game.MinBettors
	engCfg.MinLiquidity = cfg.Pricing.MinLiquidity
	engCfg.LockDuration = cfg.LockDuration()
	engCfg.FeePercent = cfg.Game.FeePercent
	engCfg.PriceFreshness = cfg.PriceFreshness()
	engCfg.PollInterval = cfg.PollInterval()
	engCfg.ReconcileInterval = cfg.ReconcileInterval()
	engCfg.Retry = policy
	engCfg.PersistBackoff = cfg.RetryBackoff()

	if err := prices.Refresh(ctx); err != nil {
		slog.Warn("initial valuation fetch failed, intake will retry", "err", err)
	}
	go prices.Run(ctx)

	eng := engine.New(engCfg, store, client, prices, notifier)

	if *console {
		go printStanding(ctx, eng)
	}

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("potbot stopped cleanly")
}

// printStanding prints the round standing table every 30s in console mode.
func printStanding(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			round, ledger := eng.Snapshot()
			fmt.Print(notify.RenderRound(round, ledger))
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
