package collectors

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/krxlab/stock-insight/internal/cache"
	"github.com/krxlab/stock-insight/internal/models"
)

const (
	newsPageSize = 100
	// maxNewsStart is the deepest page offset the search API accepts
	maxNewsStart = 1000

	defaultNewsLimit = 10

	// newsDedupThreshold is the word-overlap ratio above which two
	// headlines are treated as the same story
	newsDedupThreshold = 0.7
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// newsSources maps outlet domains to display names; unknown outlets fall
// back to the first label of their host name
var newsSources = map[string]string{
	"yna.co.kr":      "연합뉴스",
	"hankyung.com":   "한국경제",
	"mk.co.kr":       "매일경제",
	"chosun.com":     "조선일보",
	"joongang.co.kr": "중앙일보",
	"donga.com":      "동아일보",
	"hani.co.kr":     "한겨레",
	"khan.co.kr":     "경향신문",
	"mt.co.kr":       "머니투데이",
	"edaily.co.kr":   "이데일리",
	"sedaily.com":    "서울경제",
	"fnnews.com":     "파이낸셜뉴스",
}

// NewsCollector searches Naver news for company coverage. Results are
// cleaned of markup, deduplicated by headline similarity and ordered
// newest first.
type NewsCollector struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *Client
	cache        *cache.Cache
	logger       zerolog.Logger
}

// NewNewsCollector builds a news collector. cache may be nil.
func NewNewsCollector(baseURL, clientID, clientSecret string, client *Client, c *cache.Cache, logger zerolog.Logger) *NewsCollector {
	return &NewsCollector{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       client,
		cache:        c,
		logger:       logger.With().Str("collector", "news").Logger(),
	}
}

// Enabled reports whether API credentials are configured
func (nc *NewsCollector) Enabled() bool {
	return nc.clientID != "" && nc.clientSecret != ""
}

type naverNewsItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

type naverNewsResponse struct {
	Total   int             `json:"total"`
	Start   int             `json:"start"`
	Display int             `json:"display"`
	Items   []naverNewsItem `json:"items"`
}

// SearchNews fetches recent articles mentioning company, published within
// the trailing months window, up to limit articles after deduplication
func (nc *NewsCollector) SearchNews(ctx context.Context, company string, months, limit int) ([]models.NewsArticle, error) {
	if !nc.Enabled() {
		return nil, nil
	}
	if months <= 0 {
		months = 6
	}
	if limit <= 0 {
		limit = defaultNewsLimit
	}

	cacheKey := cache.NewsKey(company)
	var cached []models.NewsArticle
	if nc.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	cutoff := time.Now().AddDate(0, 0, -months*30)
	header := http.Header{}
	header.Set("X-Naver-Client-Id", nc.clientID)
	header.Set("X-Naver-Client-Secret", nc.clientSecret)

	articles := make([]models.NewsArticle, 0, limit)
	var keptTitles []string

	for start := 1; start <= maxNewsStart && len(articles) < limit; start += newsPageSize {
		reqURL := fmt.Sprintf("%s/v1/search/news.json?query=%s&display=%d&start=%d&sort=date",
			nc.baseURL, url.QueryEscape(company), newsPageSize, start)

		var resp naverNewsResponse
		if err := nc.client.GetJSON(ctx, reqURL, header, &resp); err != nil {
			return nil, fmt.Errorf("failed to search news for %s: %w", company, err)
		}

		reachedCutoff := false
		for _, item := range resp.Items {
			publishedAt := parseNewsDate(item.PubDate)
			if publishedAt.Before(cutoff) {
				// results are newest first, so everything after
				// this is older still
				reachedCutoff = true
				break
			}

			title := cleanHTML(item.Title)
			if title == "" || isDuplicateTitle(title, keptTitles) {
				continue
			}

			link := item.OriginalLink
			if link == "" {
				link = item.Link
			}

			articles = append(articles, models.NewsArticle{
				Title:       title,
				Description: cleanHTML(item.Description),
				URL:         link,
				Source:      sourceFromURL(link),
				PublishedAt: publishedAt,
			})
			keptTitles = append(keptTitles, title)
			if len(articles) >= limit {
				break
			}
		}

		if reachedCutoff || len(resp.Items) < newsPageSize {
			break
		}
	}

	nc.logger.Debug().Str("company", company).Int("count", len(articles)).Msg("collected news")
	nc.cacheSet(ctx, cacheKey, articles)
	return articles, nil
}

// parseNewsDate reads the search API's RFC 1123 timestamps; unparseable
// values count as just published
func parseNewsDate(s string) time.Time {
	t, err := time.Parse(time.RFC1123Z, s)
	if err != nil {
		return time.Now()
	}
	return t
}

// cleanHTML strips tags and entities the search API embeds in titles and
// summaries, collapsing runs of whitespace
func cleanHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// isDuplicateTitle reports whether title retells a story already kept
func isDuplicateTitle(title string, kept []string) bool {
	for _, other := range kept {
		if titleSimilarity(title, other) >= newsDedupThreshold {
			return true
		}
	}
	return false
}

// titleSimilarity scores two headlines by word overlap: twice the shared
// word count over the total distinct word count, in [0, 1]
func titleSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for w := range setA {
		if setB[w] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(setA)+len(setB))
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// sourceFromURL derives an outlet name from an article link
func sourceFromURL(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	host = strings.TrimPrefix(host, "news.")

	if name, ok := newsSources[host]; ok {
		return name
	}
	if idx := strings.IndexByte(host, '.'); idx > 0 {
		return host[:idx]
	}
	return host
}

func (nc *NewsCollector) cacheGet(ctx context.Context, key string, dest any) bool {
	if nc.cache == nil {
		return false
	}
	found, err := nc.cache.GetJSON(ctx, key, dest)
	if err != nil {
		nc.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	return found
}

func (nc *NewsCollector) cacheSet(ctx context.Context, key string, value any) {
	if nc.cache == nil {
		return
	}
	if err := nc.cache.SetJSON(ctx, key, value); err != nil {
		nc.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}
