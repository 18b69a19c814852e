package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/krxlab/stock-insight/internal/collectors"
	"github.com/krxlab/stock-insight/internal/models"
	"github.com/krxlab/stock-insight/internal/notify"
	"github.com/krxlab/stock-insight/internal/report"
)

var (
	reportTop        int
	reportMarket     string
	reportPeriod     string
	reportSkipAI     bool
	reportSkipNotify bool
)

var reportCmd = &cobra.Command{
	Use:   "report [code...]",
	Short: "Analyze stocks and render HTML reports",
	Long: `Runs the analysis pipeline for each stock: price history, technical
indicators, trading signals, fundamentals, news sentiment and AI commentary,
rendered into an HTML report.

Stocks come from the arguments, from --top N by trading value, or from the
enabled watchlist when neither is given.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportTop, "top", 0, "analyze the top N stocks by trading value")
	reportCmd.Flags().StringVar(&reportMarket, "market", models.MarketKOSPI, "market for the --top ranking: KOSPI or KOSDAQ")
	reportCmd.Flags().StringVar(&reportPeriod, "period", "", "price history window: 1w, 1m, 3m, 6m or 1y (default from config)")
	reportCmd.Flags().BoolVar(&reportSkipAI, "skip-ai", false, "skip AI commentary even when an API key is configured")
	reportCmd.Flags().BoolVar(&reportSkipNotify, "skip-notify", false, "skip the Kakao notification")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	period := reportPeriod
	if period == "" {
		period = cfg.Analysis.Period
	}
	if _, ok := models.PeriodDays[period]; !ok {
		return fmt.Errorf("unknown period %q", period)
	}

	for _, code := range args {
		if !collectors.IsValidCode(code) {
			return fmt.Errorf("invalid stock code %q: a six-digit code is required", code)
		}
	}
	if len(args) > 0 && reportTop > 0 {
		return fmt.Errorf("pass stock codes or --top, not both")
	}

	market := strings.ToUpper(reportMarket)
	if market != models.MarketKOSPI && market != models.MarketKOSDAQ {
		return fmt.Errorf("unknown market %q", reportMarket)
	}

	app, err := newApp(cfg, logger, appOptions{optionalDB: true, skipAI: reportSkipAI})
	if err != nil {
		return err
	}
	defer app.Close()

	codes, err := resolveCodes(ctx, app, args, market)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		return fmt.Errorf("no stocks to analyze: pass codes, --top, or add watchlist entries")
	}

	gen, err := report.NewGenerator(cfg.Report.OutputDir, cfg.Report.Keep, logger)
	if err != nil {
		return err
	}

	var notifier notify.Notifier = notify.Noop{}
	if !reportSkipNotify {
		notifier = notify.NewKakaoNotifier(cfg.Kakao.RESTAPIKey, cfg.Kakao.TokenPath, logger)
	}

	failed := 0
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := buildReport(ctx, app, gen, notifier, code, period); err != nil {
			logger.Error().Err(err).Str("code", code).Msg("report failed")
			failed++
		}
	}

	if removed, err := gen.Cleanup(); err != nil {
		logger.Warn().Err(err).Msg("failed to clean up old reports")
	} else if removed > 0 {
		logger.Info().Int("removed", removed).Msg("removed old reports")
	}

	if app.db != nil && cfg.Database.PriceRetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.Database.PriceRetentionDays)
		if pruned, err := app.db.DeletePricesOlderThan(cutoff); err != nil {
			logger.Warn().Err(err).Msg("failed to prune old prices")
		} else if pruned > 0 {
			logger.Info().Int64("rows", pruned).Time("cutoff", cutoff).Msg("pruned old prices")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d reports failed", failed, len(codes))
	}
	return nil
}

// resolveCodes picks the stocks to analyze: explicit codes, the --top
// ranking, or the enabled watchlist. An empty watchlist falls back to the
// configured top count.
func resolveCodes(ctx context.Context, app *app, args []string, market string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	n := reportTop
	if n <= 0 {
		if app.db != nil {
			items, err := app.db.GetWatchlist(true)
			if err != nil {
				return nil, fmt.Errorf("failed to load watchlist: %w", err)
			}
			if len(items) > 0 {
				codes := make([]string, 0, len(items))
				for _, item := range items {
					codes = append(codes, item.Code)
				}
				return codes, nil
			}
		}
		n = app.cfg.Analysis.TopCount
	}

	ranked, err := app.prices.TopByTradingValue(ctx, market, n)
	if err == nil {
		codes := make([]string, 0, len(ranked))
		for _, s := range ranked {
			codes = append(codes, s.Code)
		}
		return codes, nil
	}

	if app.db != nil {
		app.logger.Warn().Err(err).Msg("market ranking unavailable, ranking from stored prices")
		if codes, dbErr := app.db.TopByTradingValue(n); dbErr == nil && len(codes) > 0 {
			return codes, nil
		}
	}
	return nil, fmt.Errorf("failed to rank stocks by trading value: %w", err)
}

func buildReport(ctx context.Context, app *app, gen *report.Generator, notifier notify.Notifier, code, period string) error {
	rep, err := app.analyzer.Analyze(ctx, code, period)
	if err != nil {
		return err
	}

	path, err := gen.Render(rep)
	if err != nil {
		return err
	}

	if app.db != nil {
		record := &models.ReportRecord{
			ID:          rep.ID,
			Code:        code,
			Period:      period,
			FilePath:    path,
			GeneratedAt: rep.GeneratedAt,
		}
		if err := app.db.CreateReportRecord(record); err != nil {
			app.logger.Warn().Err(err).Str("code", code).Msg("failed to record report")
		}
	}

	if err := notifier.NotifyReport(ctx, rep, reportURL(app.cfg.Report.BaseURL, path)); err != nil {
		app.logger.Warn().Err(err).Str("code", code).Msg("failed to send notification")
	}

	fmt.Printf("%s (%s): %s, %d signal(s)\n", rep.Stock.Name, code, path, len(rep.Signals))
	return nil
}

// reportURL maps a rendered file to its public URL when a base is configured
func reportURL(baseURL, path string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + filepath.Base(path)
}
