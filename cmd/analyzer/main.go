package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/internal/analysis/regime"
	"github.com/Alias1177/goldscalper/internal/analysis/strategy"
	"github.com/Alias1177/goldscalper/internal/api/twelvedata"
	"github.com/Alias1177/goldscalper/internal/config"
	"github.com/Alias1177/goldscalper/internal/filters"
	"github.com/Alias1177/goldscalper/internal/market"
	"github.com/Alias1177/goldscalper/internal/trading/risk"
	"github.com/Alias1177/goldscalper/models"
)

func main() {
	calibrationDays := flag.Int("calibrate-days", 5, "days of history used to calibrate the regime thresholds (0 disables)")
	balance := flag.Float64("balance", 1000, "account balance used for the sizing preview")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.LogLevel)

	opts, err := config.LoadOptions(cfg.SettingsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load trading options")
	}

	// 2. Setup API client
	client := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         cfg.TwelveAPIKey,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
	})

	if err := run(ctx, client, opts, *calibrationDays, *balance); err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

func run(ctx context.Context, client *twelvedata.Client, opts config.Options, calibrationDays int, balance float64) error {
	symbol := opts.Trading.Symbol
	tf, err := models.ParseTimeframe(opts.Trading.Timeframe)
	if err != nil {
		return err
	}
	htfTF, err := models.ParseTimeframe(opts.Signals.HigherTimeframe)
	if err != nil {
		return err
	}

	// 3. Fetch market data
	bars, err := client.Bars(ctx, symbol, tf, opts.Trading.Bars)
	if err != nil {
		return fmt.Errorf("fetching %s bars: %w", tf, err)
	}
	series, err := market.NewSeries(bars)
	if err != nil {
		return err
	}
	if series.Len() == 0 {
		return fmt.Errorf("no %s bars for %s", tf, symbol)
	}

	var htf *market.Series
	if opts.Signals.EnableMTF {
		if hb, err := client.Bars(ctx, symbol, htfTF, 200); err != nil {
			log.Warn().Err(err).Msg("Higher timeframe fetch failed")
		} else if htf, err = market.NewSeries(hb); err != nil {
			log.Warn().Err(err).Msg("Higher timeframe bars rejected")
			htf = nil
		}
	}

	// 4. Market regime
	detector := regime.NewDetector(opts.Regime, symbol)
	calibration := series
	if calibrationDays > 0 {
		if hist, err := client.HistoricalBars(ctx, symbol, tf, calibrationDays); err != nil {
			log.Warn().Err(err).Msg("History fetch failed, calibrating on the live window")
		} else if s, err := market.NewSeries(hist); err == nil {
			calibration = s
		}
	}
	if !detector.Calibrate(calibration) {
		log.Warn().Int("bars", calibration.Len()).Msg("Calibration skipped")
	}
	assessment := detector.Detect(series)
	rec := regime.Recommend(assessment)
	printRegime(detector, assessment, rec)

	// 5. Strategy
	engine := strategy.NewEngine(opts)
	engine.UpdateDynamicConfidence(assessment)
	engine.SetRegimeDetails(assessment.Details)

	now := series.Last().Time
	_, session := filters.NewSessionFilter(opts.Filters).Allowed(now)
	override, err := models.ParseMode(opts.Signals.ModeOverride)
	if err != nil {
		override = models.ModeAuto
	}
	result, ok := engine.Analyze(series, htf, session, override)
	printResult(series.Last(), result, ok)

	if !ok {
		return nil
	}
	// 6. Sizing preview
	info := previewSymbol(symbol, series.Last().Close)
	atr, hasATR := engine.ATR(series)
	if !hasATR {
		return nil
	}
	plan, err := risk.NewManager(opts).Plan(balance, series.Last().Close, result.Side, atr, info, result.Mode)
	if err != nil {
		fmt.Printf("Sizing: %v\n", err)
		return nil
	}
	fmt.Println("\n===== SIZING PREVIEW =====")
	fmt.Printf("Entry: %.2f | SL: %.2f | TP: %.2f | R:R 1:%.2f\n", plan.Entry, plan.StopLoss, plan.TakeProfit, plan.RiskRewardRatio)
	fmt.Printf("Lot: %.2f | Risk: $%.2f | Tier: %s\n", plan.Lot, plan.Risk, plan.Tier)
	return nil
}

func printRegime(d *regime.Detector, a regime.Assessment, rec regime.Recommendation) {
	fmt.Println("\n===== MARKET REGIME =====")
	fmt.Println(d.Summary())
	fmt.Printf("ADX: %.1f | ATR Ratio: %.2f | BB Width: %.3f%%\n", a.Details.ADX, a.Details.ATRRatio, a.Details.BBWidthPct*100)
	if a.Details.Note != "" {
		fmt.Printf("Note: %s\n", a.Details.Note)
	}
	if a.Details.Warning != "" {
		fmt.Printf("Warning: %s\n", a.Details.Warning)
	}
	fmt.Printf("Recommendation: %s x%.2f (%s)\n", rec.Mode, rec.LotMultiplier, rec.Note)
}

func printResult(last models.Bar, r strategy.Result, ok bool) {
	fmt.Println("\n===== SIGNAL =====")
	fmt.Printf("Last Bar: %s O: %.2f H: %.2f L: %.2f C: %.2f\n",
		last.Time.UTC().Format(time.DateTime), last.Open, last.High, last.Low, last.Close)
	fmt.Printf("Mode: %s | Buy: %.2f | Sell: %.2f | Min: %.2f\n", r.Mode, r.BuyScore, r.SellScore, r.MinConf)
	if ok {
		fmt.Printf("Direction: %s | Confidence: %.2f\n", r.Side, r.Confidence)
	} else {
		fmt.Println("Direction: none")
	}
	if s := strategy.Summary(r); s != "" {
		fmt.Printf("Signals: %s\n", s)
	}
	fmt.Println()
}

// previewSymbol quotes the last close with a zero spread.
func previewSymbol(name string, price float64) models.SymbolInfo {
	info := models.SymbolInfo{
		Name: name, Point: 0.00001, Digits: 5,
		VolumeMin: 0.01, VolumeMax: 50, VolumeStep: 0.01,
		ContractSize: 100000, Bid: price, Ask: price, TradeAllowed: true,
	}
	if info.IsGold() {
		info.Point, info.Digits, info.ContractSize = 0.01, 2, 100
	}
	return info
}
