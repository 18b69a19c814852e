package collectors

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/krxlab/stock-insight/internal/cache"
	"github.com/krxlab/stock-insight/internal/models"
)

const (
	dartStatusOK     = "000"
	dartStatusNoData = "013"

	reportCodeAnnual = "11011"
	reportCodeQ3     = "11014"

	disclosureViewerURL = "https://dart.fss.or.kr/dsaf001/main.do?rcpNo="
)

// DartCollector fetches company profiles, financial statements and recent
// filings from the DART open API. All calls are no-ops returning empty
// results when no API key is configured.
type DartCollector struct {
	baseURL string
	apiKey  string
	client  *Client
	cache   *cache.Cache
	logger  zerolog.Logger

	mu        sync.Mutex
	corpCodes map[string]string // stock code -> DART corp code
}

// NewDartCollector builds a DART collector. cache may be nil.
func NewDartCollector(baseURL, apiKey string, client *Client, c *cache.Cache, logger zerolog.Logger) *DartCollector {
	return &DartCollector{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
		cache:   c,
		logger:  logger.With().Str("collector", "dart").Logger(),
	}
}

// Enabled reports whether an API key is configured
func (dc *DartCollector) Enabled() bool {
	return dc.apiKey != ""
}

type corpCodeEntry struct {
	CorpCode  string `xml:"corp_code"`
	CorpName  string `xml:"corp_name"`
	StockCode string `xml:"stock_code"`
}

type corpCodeFile struct {
	Entries []corpCodeEntry `xml:"list"`
}

type dartListItem struct {
	CorpName string `json:"corp_name"`
	ReportNm string `json:"report_nm"`
	RceptNo  string `json:"rcept_no"`
	FlrNm    string `json:"flr_nm"`
	RceptDt  string `json:"rcept_dt"`
}

type dartListResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	List    []dartListItem `json:"list"`
}

type dartAccountRow struct {
	FsDiv        string `json:"fs_div"`
	SjDiv        string `json:"sj_div"`
	AccountNm    string `json:"account_nm"`
	ThstrmAmount string `json:"thstrm_amount"`
	FrmtrmAmount string `json:"frmtrm_amount"`
}

type dartFinstateResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	List    []dartAccountRow `json:"list"`
}

type dartCompanyResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	CorpName    string `json:"corp_name"`
	CorpNameEng string `json:"corp_name_eng"`
	CeoNm       string `json:"ceo_nm"`
	EstDt       string `json:"est_dt"`
	Adres       string `json:"adres"`
	HmURL       string `json:"hm_url"`
}

// GetCompanyProfile fetches the DART company overview for a stock code
func (dc *DartCollector) GetCompanyProfile(ctx context.Context, stockCode string) (*models.CompanyProfile, error) {
	if !dc.Enabled() {
		return nil, nil
	}

	corpCode, err := dc.resolveCorpCode(ctx, stockCode)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/company.json?crtfc_key=%s&corp_code=%s",
		dc.baseURL, url.QueryEscape(dc.apiKey), corpCode)

	var resp dartCompanyResponse
	if err := dc.client.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get company profile for %s: %w", stockCode, err)
	}
	if resp.Status != dartStatusOK {
		return nil, fmt.Errorf("dart company lookup for %s failed: %s %s", stockCode, resp.Status, resp.Message)
	}

	return &models.CompanyProfile{
		Name:        resp.CorpName,
		EnglishName: resp.CorpNameEng,
		CEO:         resp.CeoNm,
		Founded:     resp.EstDt,
		Address:     resp.Adres,
		Homepage:    resp.HmURL,
	}, nil
}

// GetFinancials fetches key financials for the given business years. A nil
// years slice means the current and previous year. Years with no filing are
// skipped, not errors.
func (dc *DartCollector) GetFinancials(ctx context.Context, stockCode string, years []int) ([]models.FinancialData, error) {
	if !dc.Enabled() {
		return nil, nil
	}

	cacheKey := cache.FinancialsKey(stockCode)
	var cached []models.FinancialData
	if dc.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	corpCode, err := dc.resolveCorpCode(ctx, stockCode)
	if err != nil {
		return nil, err
	}

	if len(years) == 0 {
		current := time.Now().Year()
		years = []int{current, current - 1}
	}

	var financials []models.FinancialData
	for _, year := range years {
		fin, err := dc.fetchYearFinancials(ctx, stockCode, corpCode, year)
		if err != nil {
			dc.logger.Warn().Err(err).Str("code", stockCode).Int("year", year).Msg("skipping year with failed financials fetch")
			continue
		}
		if fin != nil {
			financials = append(financials, *fin)
		}
	}

	dc.cacheSet(ctx, cacheKey, financials)
	return financials, nil
}

// fetchYearFinancials tries the annual report first, then the most recent
// quarterly filing
func (dc *DartCollector) fetchYearFinancials(ctx context.Context, stockCode, corpCode string, year int) (*models.FinancialData, error) {
	for _, reportCode := range []string{reportCodeAnnual, reportCodeQ3} {
		reqURL := fmt.Sprintf("%s/fnlttSinglAcnt.json?crtfc_key=%s&corp_code=%s&bsns_year=%d&reprt_code=%s",
			dc.baseURL, url.QueryEscape(dc.apiKey), corpCode, year, reportCode)

		var resp dartFinstateResponse
		if err := dc.client.GetJSON(ctx, reqURL, nil, &resp); err != nil {
			return nil, err
		}
		if resp.Status == dartStatusNoData || len(resp.List) == 0 {
			continue
		}
		if resp.Status != dartStatusOK {
			return nil, fmt.Errorf("dart finstate for %s/%d failed: %s %s", stockCode, year, resp.Status, resp.Message)
		}

		period := fmt.Sprintf("%d", year)
		if reportCode == reportCodeQ3 {
			period = fmt.Sprintf("%dQ3", year)
		}
		return parseFinancials(stockCode, period, resp.List), nil
	}
	return nil, nil
}

// parseFinancials extracts the headline accounts from a statement row set,
// preferring consolidated (CFS) rows over separate (OFS) ones
func parseFinancials(stockCode, period string, rows []dartAccountRow) *models.FinancialData {
	fsDiv := "CFS"
	hasConsolidated := false
	for _, row := range rows {
		if row.FsDiv == "CFS" {
			hasConsolidated = true
			break
		}
	}
	if !hasConsolidated {
		fsDiv = "OFS"
	}

	find := func(names ...string) (current, prior decimal.Decimal, ok bool) {
		for _, row := range rows {
			if row.FsDiv != fsDiv {
				continue
			}
			for _, name := range names {
				if strings.Contains(row.AccountNm, name) {
					cur, curOK := parseDartAmount(row.ThstrmAmount)
					if !curOK {
						continue
					}
					prev, _ := parseDartAmount(row.FrmtrmAmount)
					return cur, prev, true
				}
			}
		}
		return decimal.Decimal{}, decimal.Decimal{}, false
	}

	fin := &models.FinancialData{Code: stockCode, Period: period}

	revenue, priorRevenue, hasRevenue := find("매출액", "영업수익")
	if hasRevenue {
		fin.Revenue = revenue
		if !priorRevenue.IsZero() {
			growth, _ := revenue.Sub(priorRevenue).Div(priorRevenue).Mul(decimal.NewFromInt(100)).Float64()
			fin.RevenueGrowth = &growth
		}
	}

	operating, _, hasOperating := find("영업이익")
	if hasOperating {
		fin.OperatingProfit = operating
		if hasRevenue && !revenue.IsZero() {
			margin, _ := operating.Div(revenue).Mul(decimal.NewFromInt(100)).Float64()
			fin.OperatingMargin = &margin
		}
	}

	netIncome, _, hasNet := find("당기순이익", "분기순이익")
	if hasNet {
		fin.NetIncome = netIncome
		if hasRevenue && !revenue.IsZero() {
			margin, _ := netIncome.Div(revenue).Mul(decimal.NewFromInt(100)).Float64()
			fin.NetMargin = &margin
		}
	}

	liabilities, _, hasLiabilities := find("부채총계")
	equity, _, hasEquity := find("자본총계")
	if hasEquity && !equity.IsZero() {
		if hasLiabilities {
			ratio, _ := liabilities.Div(equity).Mul(decimal.NewFromInt(100)).Float64()
			fin.DebtRatio = &ratio
		}
		if hasNet {
			roe, _ := netIncome.Div(equity).Mul(decimal.NewFromInt(100)).Float64()
			fin.ROE = &roe
		}
	}

	return fin
}

// parseDartAmount converts DART's comma-separated amount strings; "-" and
// empty mean not reported
func parseDartAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// GetRecentDisclosures fetches the latest filings for a stock code, newest
// first, over the trailing 90 days
func (dc *DartCollector) GetRecentDisclosures(ctx context.Context, stockCode string, count int) ([]models.Disclosure, error) {
	if !dc.Enabled() {
		return nil, nil
	}
	if count <= 0 {
		count = 5
	}

	cacheKey := cache.DisclosuresKey(stockCode)
	var cached []models.Disclosure
	if dc.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	corpCode, err := dc.resolveCorpCode(ctx, stockCode)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	begin := end.AddDate(0, 0, -90)
	reqURL := fmt.Sprintf("%s/list.json?crtfc_key=%s&corp_code=%s&bgn_de=%s&end_de=%s&page_no=1&page_count=%d",
		dc.baseURL, url.QueryEscape(dc.apiKey), corpCode,
		begin.Format(krxDateFormat), end.Format(krxDateFormat), count)

	var resp dartListResponse
	if err := dc.client.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get disclosures for %s: %w", stockCode, err)
	}
	if resp.Status == dartStatusNoData {
		return nil, nil
	}
	if resp.Status != dartStatusOK {
		return nil, fmt.Errorf("dart disclosure list for %s failed: %s %s", stockCode, resp.Status, resp.Message)
	}

	disclosures := make([]models.Disclosure, 0, len(resp.List))
	for _, item := range resp.List {
		filedAt, err := time.Parse(krxDateFormat, item.RceptDt)
		if err != nil {
			continue
		}
		disclosures = append(disclosures, models.Disclosure{
			Title:   item.ReportNm,
			Filer:   item.FlrNm,
			FiledAt: filedAt,
			URL:     disclosureViewerURL + item.RceptNo,
		})
	}

	dc.cacheSet(ctx, cacheKey, disclosures)
	return disclosures, nil
}

// resolveCorpCode maps a stock code to its DART corp code, downloading the
// registry zip on first use
func (dc *DartCollector) resolveCorpCode(ctx context.Context, stockCode string) (string, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.corpCodes == nil {
		codes, err := dc.downloadCorpCodes(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load dart corp codes: %w", err)
		}
		dc.corpCodes = codes
	}

	corpCode, ok := dc.corpCodes[stockCode]
	if !ok {
		return "", fmt.Errorf("%w: no dart registration for %s", ErrStockNotFound, stockCode)
	}
	return corpCode, nil
}

// downloadCorpCodes fetches DART's corpCode.xml archive (a zip holding one
// XML document) and indexes listed companies by stock code
func (dc *DartCollector) downloadCorpCodes(ctx context.Context) (map[string]string, error) {
	reqURL := fmt.Sprintf("%s/corpCode.xml?crtfc_key=%s", dc.baseURL, url.QueryEscape(dc.apiKey))

	body, err := dc.client.Get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to open corp code archive: %w", err)
	}

	var doc corpCodeFile
	for _, f := range archive.File {
		if !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in corp code archive: %w", f.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxResponseBytes))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s in corp code archive: %w", f.Name, err)
		}
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse corp code registry: %w", err)
		}
		break
	}

	codes := make(map[string]string, len(doc.Entries))
	for _, entry := range doc.Entries {
		stockCode := strings.TrimSpace(entry.StockCode)
		if stockCode == "" {
			continue
		}
		codes[stockCode] = entry.CorpCode
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("corp code registry contained no listed companies")
	}

	dc.logger.Debug().Int("count", len(codes)).Msg("loaded dart corp code registry")
	return codes, nil
}

func (dc *DartCollector) cacheGet(ctx context.Context, key string, dest any) bool {
	if dc.cache == nil {
		return false
	}
	found, err := dc.cache.GetJSON(ctx, key, dest)
	if err != nil {
		dc.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	return found
}

func (dc *DartCollector) cacheSet(ctx context.Context, key string, value any) {
	if dc.cache == nil {
		return
	}
	if err := dc.cache.SetJSON(ctx, key, value); err != nil {
		dc.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}
