package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"arbflow/aggregator"
	"arbflow/channels"
	"arbflow/config"
	"arbflow/logger"
	"arbflow/notify"
	"arbflow/processor"
	"arbflow/reader"
	"arbflow/reader/binance"
	"arbflow/reader/bybit"
	"arbflow/reader/kucoin"
	"arbflow/reader/okx"
	"arbflow/scanner"
	"arbflow/server"
	"arbflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Arbflow.Name,
		"version": cfg.Arbflow.Version,
		"env":     config.AppEnvironment(),
	}).Info("starting arbflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace, cfg.Metrics.DashboardName)
		logger.StartReport(ctx, log, 30*time.Second)
	}

	pipeline := channels.NewChannels(
		cfg.Channels.OpportunityBuffer,
		cfg.Channels.FailureBuffer,
	)
	defer pipeline.Close()

	registry := reader.NewRegistry()
	for _, name := range cfg.EnabledExchanges() {
		exCfg := cfg.Exchanges[name]
		switch name {
		case "binance":
			registry.Register(binance.NewGateway(exCfg))
		case "bybit":
			registry.Register(bybit.NewGateway(exCfg))
		case "okx":
			registry.Register(okx.NewGateway(exCfg))
		case "kucoin":
			registry.Register(kucoin.NewGateway(exCfg))
		default:
			log.WithComponent("main").WithFields(logger.Fields{
				"exchange": name,
			}).Warn("no gateway implementation for configured exchange")
		}
	}

	rateLimits := make(map[string]config.RateLimitConfig, len(cfg.Exchanges))
	for name, exCfg := range cfg.Exchanges {
		rateLimits[name] = exCfg.RateLimit
	}

	collector := aggregator.New(cfg.Aggregator, registry, rateLimits)
	evaluator := processor.NewEvaluator(cfg.Evaluator.Risk)

	var settingsStore *writer.SettingsStore
	var tradeLogStore *writer.TradeLogStore
	if cfg.Storage.Postgres.Enabled {
		pool, err := writer.NewPool(ctx, cfg.Storage.Postgres)
		if err != nil {
			log.WithError(err).Error("failed to connect to postgres")
			os.Exit(1)
		}
		defer pool.Close()
		settingsStore = writer.NewSettingsStore(pool)
		tradeLogStore = writer.NewTradeLogStore(pool)
	} else {
		log.WithComponent("main").Info("postgres disabled; settings and trade logs are unavailable")
	}

	// The scanner requires the interface, and a nil *SettingsStore inside a
	// non-nil interface would defeat its nil check.
	var settingsSource scanner.SettingsSource
	if settingsStore != nil {
		settingsSource = settingsStore
	}

	scan := scanner.New(cfg, collector, evaluator, pipeline, settingsSource)

	fanout := writer.NewFanout(pipeline.Batches)

	var cache *writer.Cache
	if cfg.Storage.Redis.Enabled {
		cache = writer.NewCache(cfg.Storage.Redis)
		defer cache.Close()
		fanout.AddSink("redis_cache", cache)
		scan.WarmStart(ctx, cache)
	}

	if cfg.Storage.Kafka.Enabled {
		kafkaWriter, err := writer.NewKafkaWriter(cfg.Storage.Kafka)
		if err != nil {
			log.WithError(err).Error("failed to create kafka writer")
			os.Exit(1)
		}
		defer kafkaWriter.Close()
		fanout.AddSink("kafka", kafkaWriter)
	}

	hub := server.NewHub()
	fanout.AddSink("ws_hub", hub)

	var senders []notify.Sender
	if cfg.Notify.Telegram.Enabled {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID))
	}
	pump := notify.NewPump(pipeline.Failures, senders)

	if err := fanout.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start batch fanout")
		os.Exit(1)
	}
	if err := pump.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start notify pump")
		os.Exit(1)
	}
	if err := scan.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start scanner")
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		var settings server.SettingsStore
		if settingsStore != nil {
			settings = settingsStore
		}
		var tradeLogs server.TradeLogStore
		if tradeLogStore != nil {
			tradeLogs = tradeLogStore
		}
		api := server.New(cfg, scan, settings, tradeLogs, hub)
		go func() {
			serverErr <- api.Run(ctx)
		}()
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("api server failed")
		}
	}

	log.Info("starting graceful shutdown")
	cancel()

	scan.Stop()
	fanout.Stop()
	pump.Stop()

	log.Info("arbflow stopped")
}
