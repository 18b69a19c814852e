package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/krxlab/stock-insight/internal/models"
)

const (
	maxKeyIssues = 5

	systemPrompt = "당신은 한국 주식 시장을 담당하는 증권사 애널리스트입니다. 간결하고 객관적으로 답변하세요."
)

// completionClient is the slice of the OpenAI client the analyzer needs
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AIAnalyzer produces model-generated commentary for stock reports: a news
// summary, a sentiment score with key issues, and an overall opinion. All
// methods are no-ops returning empty results when no API key is configured.
type AIAnalyzer struct {
	client    completionClient
	model     string
	maxTokens int
	logger    zerolog.Logger
}

// NewAIAnalyzer builds an analyzer. An empty apiKey disables it; an empty
// model selects gpt-4o-mini. maxTokens caps the completion budget of every
// request when positive.
func NewAIAnalyzer(apiKey, model string, maxTokens int, logger zerolog.Logger) *AIAnalyzer {
	if model == "" {
		model = openai.GPT4oMini
	}
	a := &AIAnalyzer{
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.With().Str("component", "ai").Logger(),
	}
	if apiKey != "" {
		a.client = openai.NewClient(apiKey)
	}
	return a
}

// Enabled reports whether an API key was configured
func (a *AIAnalyzer) Enabled() bool {
	return a.client != nil
}

// SummarizeNews condenses the given articles into a short Korean summary
func (a *AIAnalyzer) SummarizeNews(ctx context.Context, stockName string, articles []models.NewsArticle) (string, error) {
	if !a.Enabled() || len(articles) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s 관련 최근 뉴스 기사들입니다.\n\n", stockName)
	for i, article := range articles {
		fmt.Fprintf(&b, "%d. %s", i+1, article.Title)
		if article.Description != "" {
			fmt.Fprintf(&b, " - %s", article.Description)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\n핵심 내용을 3줄 이내로 요약해 주세요.")

	summary, err := a.chat(ctx, b.String(), 0.3, 500)
	if err != nil {
		return "", fmt.Errorf("failed to summarize news for %s: %w", stockName, err)
	}
	return summary, nil
}

type sentimentResult struct {
	Score     float64  `json:"score"`
	KeyIssues []string `json:"key_issues"`
}

// ScoreSentiment rates the news mood for a stock from -1 (bearish) to
// 1 (bullish) and extracts up to five key issues
func (a *AIAnalyzer) ScoreSentiment(ctx context.Context, stockName string, articles []models.NewsArticle) (*float64, []string, error) {
	if !a.Enabled() || len(articles) == 0 {
		return nil, nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "다음은 %s 관련 뉴스 제목들입니다.\n\n", stockName)
	for i, article := range articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, article.Title)
	}
	b.WriteString("\n투자 심리를 평가해 아래 형식의 JSON만 출력하세요. score는 -1(매우 부정)부터 1(매우 긍정) 사이의 숫자입니다.\n")
	b.WriteString(`{"score": 0.0, "key_issues": ["핵심 이슈 1", "핵심 이슈 2"]}`)

	content, err := a.chat(ctx, b.String(), 0.2, 400)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to score sentiment for %s: %w", stockName, err)
	}

	var result sentimentResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return nil, nil, fmt.Errorf("failed to parse sentiment response: %w", err)
	}

	score := result.Score
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	issues := result.KeyIssues
	if len(issues) > maxKeyIssues {
		issues = issues[:maxKeyIssues]
	}
	return &score, issues, nil
}

// OverallOpinion writes a short investment opinion from everything the
// report gathered
func (a *AIAnalyzer) OverallOpinion(ctx context.Context, report *models.StockReport) (string, error) {
	if !a.Enabled() {
		return "", nil
	}

	opinion, err := a.chat(ctx, buildOpinionPrompt(report), 0.5, 700)
	if err != nil {
		return "", fmt.Errorf("failed to build opinion for %s: %w", report.Stock.Code, err)
	}
	return opinion, nil
}

func (a *AIAnalyzer) chat(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	if a.maxTokens > 0 && maxTokens > a.maxTokens {
		maxTokens = a.maxTokens
	}
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// extractJSON unwraps a fenced code block if the model added one
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// buildOpinionPrompt flattens the report into prompt text, skipping
// sections the report does not have
func buildOpinionPrompt(r *models.StockReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "종목: %s (%s, %s)\n", r.Stock.Name, r.Stock.Code, r.Stock.Market)

	if latest := r.LatestPrice(); latest != nil {
		fmt.Fprintf(&b, "최근 종가: %s원", latest.Close.StringFixed(0))
		if latest.ChangeRate != nil {
			fmt.Fprintf(&b, " (전일 대비 %.2f%%)", *latest.ChangeRate)
		}
		b.WriteByte('\n')
	}

	if ind := r.LatestIndicator(); ind != nil {
		if ind.RSI != nil {
			fmt.Fprintf(&b, "RSI(14): %.1f\n", *ind.RSI)
		}
		if ind.MACD != nil && ind.MACDSignal != nil {
			fmt.Fprintf(&b, "MACD: %.2f / 시그널: %.2f\n", *ind.MACD, *ind.MACDSignal)
		}
		if ind.Trix != nil {
			fmt.Fprintf(&b, "TRIX: %.4f\n", *ind.Trix)
		}
	}

	if len(r.Signals) > 0 {
		b.WriteString("매매 신호:\n")
		for _, s := range r.Signals {
			fmt.Fprintf(&b, "- %s %s (강도 %d): %s\n", s.Indicator, s.Type, s.Strength, s.Reason)
		}
	}

	if len(r.Financials) > 0 {
		fin := r.Financials[0]
		fmt.Fprintf(&b, "최근 실적(%s): 매출 %s, 영업이익 %s", fin.Period,
			fin.Revenue.StringFixed(0), fin.OperatingProfit.StringFixed(0))
		if fin.OperatingMargin != nil {
			fmt.Fprintf(&b, ", 영업이익률 %.1f%%", *fin.OperatingMargin)
		}
		b.WriteByte('\n')
	}

	if r.Analysis != nil {
		if r.Analysis.NewsSummary != "" {
			fmt.Fprintf(&b, "뉴스 요약: %s\n", r.Analysis.NewsSummary)
		}
		if r.Analysis.SentimentScore != nil {
			fmt.Fprintf(&b, "뉴스 심리 점수: %.2f (-1~1)\n", *r.Analysis.SentimentScore)
		}
	}

	b.WriteString("\n위 정보를 바탕으로 투자 의견을 5문장 이내로 작성하세요. 매수/중립/매도 관점을 명확히 하고 주요 리스크를 한 가지 이상 언급하세요.")
	return b.String()
}
