package app

import (
	"fmt"
	"time"

	"voyant/internal/analysis/visual"
	"voyant/internal/config"
	"voyant/internal/decision"
	"voyant/internal/executor"
	"voyant/internal/gateway/binance"
	"voyant/internal/gateway/notifier"
	"voyant/internal/gateway/sentiment"
	"voyant/internal/logger"
	"voyant/internal/oracle"
	"voyant/internal/pkg/circuit"
	"voyant/internal/pkg/retry"
	"voyant/internal/reflection"
	"voyant/internal/scheduler"
	"voyant/internal/snapshot"
	"voyant/internal/store"
	httpapi "voyant/internal/transport/http"
)

// Build wires the full trading loop from config. Nothing starts here; Run
// owns the lifecycle.
func Build(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	source := binance.New(binance.Config{
		APIKey:      cfg.Exchange.APIKey,
		APISecret:   cfg.Exchange.APISecret,
		RESTBaseURL: cfg.Market.RESTBaseURL,
		HTTPTimeout: time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	})

	breaker := circuit.NewBreaker("market-source",
		cfg.Market.BreakerTrips,
		time.Duration(cfg.Market.BreakerExpiry)*time.Second)

	snapshots, err := snapshot.NewBuilder(snapshot.BuilderParams{
		Source:   source,
		Symbol:   cfg.Market.Symbol,
		Interval: cfg.Market.Interval,
		Lookback: cfg.Market.Lookback,
		BookTop:  cfg.Market.OrderBookTop,
		Policy: retry.Policy{
			MaxAttempts: cfg.Market.Retry.MaxAttempts,
			BaseDelay:   cfg.Market.Retry.BaseDelay(),
			MaxDelay:    cfg.Market.Retry.MaxDelay(),
			// Credential and permission failures burn the retry budget
			// without ever succeeding; fail fast on those.
			Retryable: func(err error) bool { return !binance.IsPermanent(err) },
		},
		Breaker: breaker,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot builder: %w", err)
	}

	oracleClient := oracle.NewClient(
		cfg.Oracle.APIURL,
		cfg.Oracle.APIKey,
		cfg.Oracle.Model,
		time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second,
		cfg.Oracle.MaxRetries,
	)

	var chart decision.ChartRenderer
	if cfg.Chart.Enabled && cfg.Oracle.SupportsVision {
		chart = visual.NewRenderer()
	}

	fusion, err := decision.NewEngine(decision.EngineParams{
		Oracle:          oracleClient,
		Chart:           chart,
		MinNotionalUSD:  cfg.Exchange.MinNotionalUSD,
		ConfidenceFloor: cfg.Trading.ConfidenceFloor,
	})
	if err != nil {
		return nil, fmt.Errorf("fusion engine: %w", err)
	}

	ledger, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	exec, err := executor.NewEngine(executor.EngineParams{
		Trader:         source,
		Balances:       source,
		Ledger:         ledger,
		MinNotionalUSD: cfg.Exchange.MinNotionalUSD,
		DryRun:         cfg.Trading.DryRun,
	})
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}

	reflector, err := reflection.NewGenerator(reflection.GeneratorParams{
		Oracle: oracleClient,
		Store:  ledger,
	})
	if err != nil {
		return nil, fmt.Errorf("reflection generator: %w", err)
	}

	var fearGreed *sentiment.Client
	if cfg.Sentiment.Enabled {
		fearGreed = sentiment.NewClient(cfg.Sentiment.APIURL,
			time.Duration(cfg.Sentiment.TimeoutSeconds)*time.Second)
	}

	var notify notifier.Notifier = notifier.Noop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	sched := scheduler.NewContext(cfg.Schedule.MaxConsecutiveFails, func(consecutive int, lastErr error) {
		msg := fmt.Sprintf("voyant: %d consecutive decision-cycle failures on %s, last error: %v",
			consecutive, cfg.Market.Symbol, lastErr)
		if err := notify.SendText(msg); err != nil {
			logger.Errorf("app: escalation notify failed: %v", err)
		}
	})

	httpServer, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Ledger:    ledger,
		Scheduler: sched,
	})
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	return &App{
		cfg:        cfg,
		source:     source,
		snapshots:  snapshots,
		fusion:     fusion,
		exec:       exec,
		ledger:     ledger,
		reflector:  reflector,
		fearGreed:  fearGreed,
		notify:     notify,
		sched:      sched,
		httpServer: httpServer,
	}, nil
}
