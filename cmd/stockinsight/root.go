package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/krxlab/stock-insight/internal/analyzer"
	"github.com/krxlab/stock-insight/internal/cache"
	"github.com/krxlab/stock-insight/internal/collectors"
	"github.com/krxlab/stock-insight/internal/config"
	"github.com/krxlab/stock-insight/internal/database"
	"github.com/krxlab/stock-insight/internal/kafka"
)

const migrationsDir = "db/migrations"

var (
	logLevel     string
	analysisFile string
)

var rootCmd = &cobra.Command{
	Use:           "stockinsight",
	Short:         "Korean stock analysis pipeline: collect, analyze, report",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&analysisFile, "analysis-config", "", "YAML file overriding indicator and run parameters")
}

// Execute runs the CLI with ctx controlling graceful shutdown
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if analysisFile != "" {
		cfg.Analysis.File = analysisFile
	}
	if cfg.Analysis.File != "" {
		if err := cfg.LoadAnalysisFile(cfg.Analysis.File); err != nil {
			return nil, fmt.Errorf("failed to load analysis config: %w", err)
		}
	}
	return cfg, nil
}

type appOptions struct {
	// optionalDB degrades a missing database to a warning; the analysis
	// pipeline then runs without persistence or signal history.
	optionalDB bool
	skipAI     bool
}

// app bundles the components shared by the report and serve commands
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	db       *database.DB
	cache    *cache.Cache
	prices   *collectors.PriceCollector
	producer *kafka.Producer
	analyzer *analyzer.StockAnalyzer
}

func newApp(cfg *config.Config, logger zerolog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		if !opts.optionalDB {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Warn().Err(err).Msg("database unavailable, continuing without persistence")
	} else {
		a.db = db
	}

	redis, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, continuing without collector cache")
	} else {
		a.cache = redis
	}

	client := collectors.NewClient(cfg.Collector.Timeout, cfg.Collector.RateLimit, cfg.Collector.Burst, logger)
	a.prices = collectors.NewPriceCollector(cfg.Collector.MarketBaseURL, client, a.cache, logger)
	dart := collectors.NewDartCollector(cfg.Collector.DartBaseURL, cfg.Collector.DartAPIKey, client, a.cache, logger)
	news := collectors.NewNewsCollector(cfg.Collector.NaverAPIBaseURL, cfg.Collector.NaverClientID, cfg.Collector.NaverClientSecret, client, a.cache, logger)

	apiKey := cfg.OpenAI.APIKey
	if opts.skipAI {
		apiKey = ""
	}
	ai := analyzer.NewAIAnalyzer(apiKey, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, logger)

	a.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SignalsTopic)

	deps := analyzer.Deps{
		Market:    a.prices,
		Funds:     dart,
		News:      news,
		AI:        ai,
		Publisher: a.producer,
	}
	// assign only a live DB so the interface stays nil, not a typed nil
	if a.db != nil {
		deps.Repo = a.db
	}
	a.analyzer = analyzer.New(deps, cfg.Analysis.Indicators, logger)

	return a, nil
}

func (a *app) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close kafka producer")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close database")
		}
	}
}

func openDB(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
