package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/internal/api/twelvedata"
	"github.com/Alias1177/goldscalper/internal/broker"
	"github.com/Alias1177/goldscalper/internal/config"
	"github.com/Alias1177/goldscalper/internal/database"
	"github.com/Alias1177/goldscalper/internal/filters"
	"github.com/Alias1177/goldscalper/internal/metrics"
	httpClient "github.com/Alias1177/goldscalper/internal/platform/http"
	"github.com/Alias1177/goldscalper/internal/telegram"
	"github.com/Alias1177/goldscalper/internal/trading/executor"
	"github.com/Alias1177/goldscalper/internal/trading/profit"
	"github.com/Alias1177/goldscalper/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("Starting Gold Scalper")

	opts, err := config.LoadOptions(cfg.SettingsFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SettingsFile).Msg("Failed to load trading options")
	}
	store := config.NewStore(opts)
	if status, warnings := opts.Health(); len(warnings) > 0 {
		log.Warn().Str("health", status).Strs("warnings", warnings).Msg("Options health check")
	}
	printOptions(opts)

	// 3. Market data and paper gateway
	feed := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         cfg.TwelveAPIKey,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
	})
	tf, err := models.ParseTimeframe(opts.Trading.Timeframe)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timeframe")
	}
	source := broker.NewCachingSource(feed, time.Duration(cfg.BarCacheSeconds)*time.Second)
	paper := broker.NewPaper(source, broker.PaperOptions{
		Symbol:    symbolInfo(opts.Trading.Symbol, cfg.GatewaySpread),
		Timeframe: tf,
		Balance:   cfg.GatewayBalance,
		Leverage:  cfg.GatewayLeverage,
	})
	gateway := broker.NewReconnecting(paper, time.Minute)

	// 4. Daily stats
	stats, closeStats, err := openStats(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StatsBackend).Msg("Failed to open stats store")
	}
	defer closeStats()
	tracker := profit.NewTracker(opts.ProfitTarget, stats)

	news := filters.NewNewsFilter(opts.Filters, httpClient.NewClient(httpClient.ClientOptions{
		Timeout:        10 * time.Second,
		RequestsPerSec: 1,
	}))

	// 5. Metrics
	metrics.Register()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	// 6. Telegram command center
	var bot *telegram.Bot
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot, err = telegram.New(cfg.TelegramToken, cfg.TelegramChatID, nil)
		if err != nil {
			log.Error().Err(err).Msg("Telegram disabled")
			bot = nil
		}
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set, notifications disabled")
	}

	deps := executor.Deps{
		Gateway: gateway,
		Store:   store,
		Profit:  tracker,
		News:    news,
	}
	if bot != nil {
		deps.Notifier = bot
	}
	exec, err := executor.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create executor")
	}
	// The bot outlives the control loop so the final status message is delivered.
	botCtx, stopBot := context.WithCancel(context.Background())
	botDone := make(chan struct{})
	if bot != nil {
		bot.SetController(exec)
		go func() {
			defer close(botDone)
			bot.Run(botCtx)
		}()
	} else {
		close(botDone)
	}

	// 7. Control loop
	runErr := exec.Run(ctx)
	stopBot()
	<-botDone
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error().Err(runErr).Msg("Executor stopped")
		os.Exit(1)
	}
	log.Info().Msg("Gold Scalper stopped")
}

// setupLogging configures the global logger
func setupLogging(logLevel, format string) {
	if strings.ToLower(format) != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

func printOptions(o config.Options) {
	log.Info().
		Str("symbol", o.Trading.Symbol).
		Str("timeframe", o.Trading.Timeframe).
		Float64("default_lot", o.Trading.DefaultLot).
		Int("max_positions", o.Trading.MaxPositions).
		Float64("risk_per_trade_pct", o.Risk.RiskPerTradePct).
		Str("mode_override", o.Signals.ModeOverride).
		Bool("mtf", o.Signals.EnableMTF).
		Str("htf", o.Signals.HigherTimeframe).
		Bool("profit_target", o.ProfitTarget.Enabled).
		Str("preset", o.ActivePreset).
		Msg("Options loaded")
}

// openStats selects the daily stats backend.
func openStats(ctx context.Context, cfg *config.Config) (profit.StatsStore, func(), error) {
	switch strings.ToLower(cfg.StatsBackend) {
	case "postgres":
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		return database.NewPostgresStats(db), func() { db.Close() }, nil
	case "redis":
		rs, err := database.NewRedisStats(ctx, database.RedisParams{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { rs.Close() }, nil
	}
	return profit.NewMemoryStore(), func() {}, nil
}

// symbolInfo describes the instrument quoted by the paper gateway.
func symbolInfo(name string, spread int) models.SymbolInfo {
	info := models.SymbolInfo{
		Name:         name,
		Point:        0.00001,
		Digits:       5,
		VolumeMin:    0.01,
		VolumeMax:    50,
		VolumeStep:   0.01,
		ContractSize: 100000,
		Spread:       spread,
	}
	if strings.HasPrefix(name, "XAU") {
		info.Point, info.Digits, info.ContractSize = 0.01, 2, 100
	}
	return info
}
