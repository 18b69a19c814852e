// Package report renders stock analysis reports to self-contained HTML
// files and prunes old ones.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/krxlab/stock-insight/internal/models"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

const defaultKeep = 10

// recentPriceRows caps the price table so long periods do not produce
// thousand-row reports
const recentPriceRows = 15

// Generator writes rendered reports under a single output directory
type Generator struct {
	dir    string
	keep   int
	tmpl   *template.Template
	logger zerolog.Logger
}

// NewGenerator creates the output directory if needed. keep <= 0 selects
// the default retention of 10 files.
func NewGenerator(dir string, keep int, logger zerolog.Logger) (*Generator, error) {
	if dir == "" {
		dir = "reports"
	}
	if keep <= 0 {
		keep = defaultKeep
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	tmpl, err := template.New("report.html.tmpl").Funcs(templateFuncs).ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}

	return &Generator{
		dir:    dir,
		keep:   keep,
		tmpl:   tmpl,
		logger: logger.With().Str("component", "report").Logger(),
	}, nil
}

// Render writes the report to {code}_{period}_{yyyymmdd}.html and returns
// the file path
func (g *Generator) Render(r *models.StockReport) (string, error) {
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("failed to render report for %s: %w", r.Stock.Code, err)
	}

	name := fmt.Sprintf("%s_%s_%s.html", r.Stock.Code, r.Period, r.GeneratedAt.Format("20060102"))
	path := filepath.Join(g.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}

	g.logger.Info().Str("code", r.Stock.Code).Str("path", path).Msg("report written")
	return path, nil
}

// Cleanup deletes the oldest report files beyond the retention count and
// returns how many were removed
func (g *Generator) Cleanup() (int, error) {
	paths, err := filepath.Glob(filepath.Join(g.dir, "*.html"))
	if err != nil {
		return 0, fmt.Errorf("failed to list reports: %w", err)
	}
	if len(paths) <= g.keep {
		return 0, nil
	}

	type fileAge struct {
		path    string
		modTime time.Time
	}
	files := make([]fileAge, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, fileAge{path: p, modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	removed := 0
	for _, f := range files[g.keep:] {
		if err := os.Remove(f.path); err != nil {
			g.logger.Warn().Err(err).Str("path", f.path).Msg("failed to remove old report")
			continue
		}
		removed++
	}

	if removed > 0 {
		g.logger.Info().Int("removed", removed).Msg("pruned old reports")
	}
	return removed, nil
}

var templateFuncs = template.FuncMap{
	"comma":          comma,
	"commaInt":       func(v int64) string { return comma(decimal.NewFromInt(v)) },
	"f1":             optFloat(1),
	"f2":             optFloat(2),
	"f4":             optFloat(4),
	"date":           func(t time.Time) string { return t.Format("2006-01-02") },
	"datetime":       func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"recent":         recentPrices,
	"signalClass":    signalClass,
	"changeClass":    changeClass,
	"sentimentLabel": sentimentLabel,
}

// comma renders a decimal with thousands separators, dropping the
// fraction part
func comma(d decimal.Decimal) string {
	s := d.StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// optFloat formats an optional value, printing a dash when undefined
func optFloat(digits int) func(*float64) string {
	format := fmt.Sprintf("%%.%df", digits)
	return func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf(format, *v)
	}
}

// recentPrices returns the newest bars first, capped for display
func recentPrices(prices []models.PricePoint) []models.PricePoint {
	n := len(prices)
	if n > recentPriceRows {
		n = recentPriceRows
	}
	out := make([]models.PricePoint, 0, n)
	for i := len(prices) - 1; i >= len(prices)-n; i-- {
		out = append(out, prices[i])
	}
	return out
}

func signalClass(t models.SignalType) string {
	switch t {
	case models.SignalBuy:
		return "buy"
	case models.SignalSell:
		return "sell"
	default:
		return "hold"
	}
}

func changeClass(rate *float64) string {
	if rate == nil {
		return ""
	}
	if *rate > 0 {
		return "up"
	}
	if *rate < 0 {
		return "down"
	}
	return ""
}

func sentimentLabel(score *float64) string {
	if score == nil {
		return "평가 없음"
	}
	switch {
	case *score >= 0.2:
		return "긍정적"
	case *score <= -0.2:
		return "부정적"
	default:
		return "중립"
	}
}
