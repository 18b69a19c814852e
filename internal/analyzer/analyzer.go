package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krxlab/stock-insight/internal/indicators"
	"github.com/krxlab/stock-insight/internal/models"
)

// indicatorWarmupDays is the extra calendar lookback fetched before the
// requested window. The slowest oscillator needs 51 trading days before
// its first defined value; weekends and holidays thin calendar days out.
const indicatorWarmupDays = 90

const (
	disclosureCount = 5
	newsMonths      = 6
	newsLimit       = 10
)

// MarketData supplies listing info and daily price bars
type MarketData interface {
	GetStockInfo(ctx context.Context, code string) (*models.StockInfo, error)
	GetDailyPrices(ctx context.Context, code string, from, to time.Time) ([]models.PricePoint, error)
}

// Fundamentals supplies filings data. Enabled is false when the upstream
// is not configured; the analyzer then skips these sections.
type Fundamentals interface {
	Enabled() bool
	GetCompanyProfile(ctx context.Context, code string) (*models.CompanyProfile, error)
	GetFinancials(ctx context.Context, code string, years []int) ([]models.FinancialData, error)
	GetRecentDisclosures(ctx context.Context, code string, count int) ([]models.Disclosure, error)
}

// NewsSearcher finds recent coverage for a company name
type NewsSearcher interface {
	Enabled() bool
	SearchNews(ctx context.Context, company string, months, limit int) ([]models.NewsArticle, error)
}

// Commentator writes AI commentary for a report
type Commentator interface {
	Enabled() bool
	SummarizeNews(ctx context.Context, stockName string, articles []models.NewsArticle) (string, error)
	ScoreSentiment(ctx context.Context, stockName string, articles []models.NewsArticle) (*float64, []string, error)
	OverallOpinion(ctx context.Context, report *models.StockReport) (string, error)
}

// Repository persists what an analysis run produced
type Repository interface {
	UpsertStock(s *models.StockInfo) error
	GetStock(code string) (*models.StockInfo, error)
	CreatePriceBatch(prices []models.PricePoint) error
	UpsertIndicators(code string, points []models.IndicatorPoint) error
	CreateSignals(code string, date time.Time, signals []models.Signal) error
}

// SignalPublisher fans generated signals out to downstream consumers
type SignalPublisher interface {
	PublishSignals(ctx context.Context, code string, date time.Time, signals []models.Signal) error
}

// StockAnalyzer runs the full analysis pipeline for one stock: listing
// info, price history, indicators, signals, filings, news and AI
// commentary, assembled into a StockReport. Price data is the only
// mandatory input; every other section degrades to absence.
type StockAnalyzer struct {
	market MarketData
	funds  Fundamentals
	news   NewsSearcher
	ai     Commentator
	repo   Repository
	pub    SignalPublisher
	calc   *indicators.Calculator
	logger zerolog.Logger
}

// Deps bundles the analyzer's collaborators. Funds, News, AI and
// Publisher may be nil.
type Deps struct {
	Market    MarketData
	Funds     Fundamentals
	News      NewsSearcher
	AI        Commentator
	Repo      Repository
	Publisher SignalPublisher
}

func New(deps Deps, params indicators.Params, logger zerolog.Logger) *StockAnalyzer {
	return &StockAnalyzer{
		market: deps.Market,
		funds:  deps.Funds,
		news:   deps.News,
		ai:     deps.AI,
		repo:   deps.Repo,
		pub:    deps.Publisher,
		calc:   indicators.NewCalculator(params),
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze builds a report for code over the given period label
func (sa *StockAnalyzer) Analyze(ctx context.Context, code, period string) (*models.StockReport, error) {
	days, ok := models.PeriodDays[period]
	if !ok {
		return nil, fmt.Errorf("unknown report period %q", period)
	}

	logger := sa.logger.With().Str("code", code).Str("period", period).Logger()

	info, err := sa.resolveStock(ctx, code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	windowStart := now.AddDate(0, 0, -days)
	fetchStart := windowStart.AddDate(0, 0, -indicatorWarmupDays)

	prices, err := sa.market.GetDailyPrices(ctx, code, fetchStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to collect prices for %s: %w", code, err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no price data for %s", code)
	}
	if sa.repo != nil {
		if err := sa.repo.CreatePriceBatch(prices); err != nil {
			logger.Warn().Err(err).Msg("failed to persist price bars")
		}
	}

	points := sa.calc.CalculateAll(prices)
	if sa.repo != nil {
		if err := sa.repo.UpsertIndicators(code, points); err != nil {
			logger.Warn().Err(err).Msg("failed to persist indicator snapshots")
		}
	}

	signals := sa.calc.GenerateSignals(points)
	latestDate := prices[len(prices)-1].Date
	if len(signals) > 0 {
		if sa.repo != nil {
			if err := sa.repo.CreateSignals(code, latestDate, signals); err != nil {
				logger.Warn().Err(err).Msg("failed to persist signals")
			}
		}
		if sa.pub != nil {
			if err := sa.pub.PublishSignals(ctx, code, latestDate, signals); err != nil {
				logger.Warn().Err(err).Msg("failed to publish signals")
			}
		}
	}

	report := &models.StockReport{
		ID:          uuid.New(),
		Stock:       *info,
		Period:      period,
		Signals:     signals,
		GeneratedAt: now,
	}
	report.Prices, report.Indicators = trimToWindow(prices, points, windowStart)
	if len(report.Prices) == 0 {
		return nil, fmt.Errorf("no price data for %s within the last %d days", code, days)
	}

	sa.collectFundamentals(ctx, report, logger)
	sa.collectNewsAndCommentary(ctx, report, logger)

	logger.Info().Int("bars", len(report.Prices)).Int("signals", len(signals)).Msg("analysis complete")
	return report, nil
}

// resolveStock fetches listing info, falling back to the stored row when
// the market API is down
func (sa *StockAnalyzer) resolveStock(ctx context.Context, code string) (*models.StockInfo, error) {
	info, err := sa.market.GetStockInfo(ctx, code)
	if err != nil {
		if sa.repo != nil {
			if stored, dbErr := sa.repo.GetStock(code); dbErr == nil {
				sa.logger.Warn().Err(err).Str("code", code).Msg("using stored listing info")
				return stored, nil
			}
		}
		return nil, fmt.Errorf("failed to resolve stock %s: %w", code, err)
	}

	if sa.repo != nil {
		if err := sa.repo.UpsertStock(info); err != nil {
			sa.logger.Warn().Err(err).Str("code", code).Msg("failed to persist listing info")
		}
	}
	return info, nil
}

func (sa *StockAnalyzer) collectFundamentals(ctx context.Context, report *models.StockReport, logger zerolog.Logger) {
	if sa.funds == nil || !sa.funds.Enabled() {
		return
	}
	code := report.Stock.Code

	profile, err := sa.funds.GetCompanyProfile(ctx, code)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping company profile")
	} else {
		report.Profile = profile
	}

	financials, err := sa.funds.GetFinancials(ctx, code, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping financials")
	} else {
		report.Financials = financials
	}

	disclosures, err := sa.funds.GetRecentDisclosures(ctx, code, disclosureCount)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping disclosures")
	} else {
		report.Disclosures = disclosures
	}
}

func (sa *StockAnalyzer) collectNewsAndCommentary(ctx context.Context, report *models.StockReport, logger zerolog.Logger) {
	name := report.Stock.Name
	if name == "" {
		name = report.Stock.Code
	}

	if sa.news != nil && sa.news.Enabled() {
		articles, err := sa.news.SearchNews(ctx, name, newsMonths, newsLimit)
		if err != nil {
			logger.Warn().Err(err).Msg("skipping news")
		} else {
			report.News = articles
		}
	}

	if sa.ai == nil || !sa.ai.Enabled() {
		return
	}

	analysis := &models.AIAnalysis{GeneratedAt: time.Now()}
	if len(report.News) > 0 {
		summary, err := sa.ai.SummarizeNews(ctx, name, report.News)
		if err != nil {
			logger.Warn().Err(err).Msg("skipping news summary")
		} else {
			analysis.NewsSummary = summary
		}

		score, issues, err := sa.ai.ScoreSentiment(ctx, name, report.News)
		if err != nil {
			logger.Warn().Err(err).Msg("skipping sentiment score")
		} else {
			analysis.SentimentScore = score
			analysis.KeyIssues = issues
		}
	}
	report.Analysis = analysis

	opinion, err := sa.ai.OverallOpinion(ctx, report)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping overall opinion")
	} else {
		analysis.Opinion = opinion
	}
}

// trimToWindow drops the warm-up bars fetched only so indicators are
// defined from the first visible day
func trimToWindow(prices []models.PricePoint, points []models.IndicatorPoint, start time.Time) ([]models.PricePoint, []models.IndicatorPoint) {
	cut := 0
	for cut < len(prices) && prices[cut].Date.Before(start) {
		cut++
	}
	return prices[cut:], points[cut:]
}
