package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/krxlab/stock-insight/internal/models"
)

const (
	defaultAuthBaseURL = "https://kauth.kakao.com"
	defaultAPIBaseURL  = "https://kapi.kakao.com"

	oauthTokenPath = "/oauth/token"
	memoSendPath   = "/v2/api/talk/memo/default/send"

	// maxDescriptionRunes is the feed template's description limit
	maxDescriptionRunes = 180
)

type kakaoToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// KakaoNotifier sends "to me" feed messages through the Kakao talk memo
// API. Tokens live in a JSON file obtained out of band; an expired access
// token is refreshed with the stored refresh token and written back.
type KakaoNotifier struct {
	apiKey    string
	tokenFile string
	authURL   string
	apiURL    string
	client    *http.Client
	logger    zerolog.Logger

	mu    sync.Mutex
	token *kakaoToken
}

// NewKakaoNotifier builds a notifier. An empty restAPIKey disables it.
func NewKakaoNotifier(restAPIKey, tokenFile string, logger zerolog.Logger) *KakaoNotifier {
	return &KakaoNotifier{
		apiKey:    restAPIKey,
		tokenFile: tokenFile,
		authURL:   defaultAuthBaseURL,
		apiURL:    defaultAPIBaseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger.With().Str("component", "kakao").Logger(),
	}
}

// Enabled reports whether the notifier is configured
func (k *KakaoNotifier) Enabled() bool {
	return k.apiKey != "" && k.tokenFile != ""
}

// NotifyReport sends a feed message summarizing the report. A 401 from
// the memo API triggers one token refresh and retry.
func (k *KakaoNotifier) NotifyReport(ctx context.Context, report *models.StockReport, reportURL string) error {
	if !k.Enabled() {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	token, err := k.ensureToken()
	if err != nil {
		return err
	}

	payload := feedTemplate(report, reportURL)
	status, err := k.sendMemo(ctx, token.AccessToken, payload)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := k.refreshToken(ctx); err != nil {
			return err
		}
		status, err = k.sendMemo(ctx, k.token.AccessToken, payload)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("kakao memo send failed with status %d", status)
	}

	k.logger.Info().Str("code", report.Stock.Code).Msg("kakao notification sent")
	return nil
}

// sendMemo posts the template object. Non-200 statuses are returned to
// the caller, not turned into errors, so it can decide about retrying.
func (k *KakaoNotifier) sendMemo(ctx context.Context, accessToken, templateObject string) (int, error) {
	form := url.Values{"template_object": {templateObject}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.apiURL+memoSendPath, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send kakao memo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read kakao response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	var out struct {
		ResultCode int `json:"result_code"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode kakao response: %w", err)
	}
	if out.ResultCode != 0 {
		return resp.StatusCode, fmt.Errorf("kakao memo send returned result code %d", out.ResultCode)
	}
	return resp.StatusCode, nil
}

// ensureToken lazily loads the token file
func (k *KakaoNotifier) ensureToken() (*kakaoToken, error) {
	if k.token != nil {
		return k.token, nil
	}

	data, err := os.ReadFile(k.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read kakao token file: %w", err)
	}
	var token kakaoToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse kakao token file: %w", err)
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return nil, fmt.Errorf("kakao token file %s is missing tokens", k.tokenFile)
	}

	k.token = &token
	return k.token, nil
}

// refreshToken trades the refresh token for a new access token and
// persists the result
func (k *KakaoNotifier) refreshToken(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {k.apiKey},
		"refresh_token": {k.token.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.authURL+oauthTokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to refresh kakao token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read kakao token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kakao token refresh failed with status %d", resp.StatusCode)
	}

	var out kakaoToken
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("failed to parse kakao token response: %w", err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("kakao token refresh returned no access token")
	}

	k.token.AccessToken = out.AccessToken
	// Kakao only rotates the refresh token when it nears expiry
	if out.RefreshToken != "" {
		k.token.RefreshToken = out.RefreshToken
	}

	if err := k.saveToken(); err != nil {
		k.logger.Warn().Err(err).Msg("failed to persist refreshed kakao token")
	}
	k.logger.Debug().Msg("kakao access token refreshed")
	return nil
}

func (k *KakaoNotifier) saveToken() error {
	data, err := json.MarshalIndent(k.token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(k.tokenFile, data, 0o600)
}

type kakaoLink struct {
	WebURL       string `json:"web_url,omitempty"`
	MobileWebURL string `json:"mobile_web_url,omitempty"`
}

type kakaoContent struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        kakaoLink `json:"link"`
}

type kakaoButton struct {
	Title string    `json:"title"`
	Link  kakaoLink `json:"link"`
}

type kakaoFeed struct {
	ObjectType string        `json:"object_type"`
	Content    kakaoContent  `json:"content"`
	Buttons    []kakaoButton `json:"buttons,omitempty"`
}

// feedTemplate renders the feed template object for a report
func feedTemplate(r *models.StockReport, reportURL string) string {
	link := kakaoLink{WebURL: reportURL, MobileWebURL: reportURL}
	feed := kakaoFeed{
		ObjectType: "feed",
		Content: kakaoContent{
			Title:       fmt.Sprintf("%s (%s) 분석 리포트", r.Stock.Name, r.Stock.Code),
			Description: buildDescription(r),
			Link:        link,
		},
	}
	if reportURL != "" {
		feed.Buttons = []kakaoButton{{Title: "리포트 보기", Link: link}}
	}

	data, _ := json.Marshal(feed)
	return string(data)
}

func buildDescription(r *models.StockReport) string {
	var b strings.Builder
	if latest := r.LatestPrice(); latest != nil {
		fmt.Fprintf(&b, "종가 %s원", latest.Close.StringFixed(0))
		if latest.ChangeRate != nil {
			fmt.Fprintf(&b, " (%+.2f%%)", *latest.ChangeRate)
		}
	}

	if len(r.Signals) == 0 {
		b.WriteString("\n매매 신호 없음")
	} else {
		for _, s := range r.Signals {
			fmt.Fprintf(&b, "\n%s %s (강도 %d)", s.Indicator, s.Type, s.Strength)
		}
	}

	if r.Analysis != nil && r.Analysis.SentimentScore != nil {
		fmt.Fprintf(&b, "\n뉴스 심리 %.2f", *r.Analysis.SentimentScore)
	}

	desc := b.String()
	if runes := []rune(desc); len(runes) > maxDescriptionRunes {
		desc = string(runes[:maxDescriptionRunes])
	}
	return desc
}
