package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxlab/stock-insight/internal/models"
)

type mockCompletion struct {
	response string
	err      error
	requests []openai.ChatCompletionRequest
}

func (m *mockCompletion) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.response}},
		},
	}, nil
}

func newMockAIAnalyzer(mock *mockCompletion) *AIAnalyzer {
	return &AIAnalyzer{client: mock, model: openai.GPT4oMini, logger: zerolog.Nop()}
}

func sampleArticles() []models.NewsArticle {
	return []models.NewsArticle{
		{Title: "삼성전자 반도체 실적 개선", Description: "HBM 수요 증가", PublishedAt: time.Now()},
		{Title: "삼성전자 신규 파운드리 수주", PublishedAt: time.Now()},
	}
}

func TestAIAnalyzerDisabled(t *testing.T) {
	ctx := context.Background()
	a := NewAIAnalyzer("", "", 0, zerolog.Nop())

	assert.False(t, a.Enabled())

	summary, err := a.SummarizeNews(ctx, "삼성전자", sampleArticles())
	require.NoError(t, err)
	assert.Empty(t, summary)

	score, issues, err := a.ScoreSentiment(ctx, "삼성전자", sampleArticles())
	require.NoError(t, err)
	assert.Nil(t, score)
	assert.Nil(t, issues)

	opinion, err := a.OverallOpinion(ctx, &models.StockReport{})
	require.NoError(t, err)
	assert.Empty(t, opinion)
}

func TestSummarizeNews(t *testing.T) {
	ctx := context.Background()

	t.Run("builds a numbered prompt and trims the reply", func(t *testing.T) {
		mock := &mockCompletion{response: "  반도체 업황이 개선되고 있다.\n"}
		a := newMockAIAnalyzer(mock)

		summary, err := a.SummarizeNews(ctx, "삼성전자", sampleArticles())
		require.NoError(t, err)
		assert.Equal(t, "반도체 업황이 개선되고 있다.", summary)

		require.Len(t, mock.requests, 1)
		req := mock.requests[0]
		assert.Equal(t, openai.GPT4oMini, req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "1. 삼성전자 반도체 실적 개선 - HBM 수요 증가")
		assert.Contains(t, req.Messages[1].Content, "2. 삼성전자 신규 파운드리 수주")
	})

	t.Run("skips the API for an empty article list", func(t *testing.T) {
		mock := &mockCompletion{response: "unused"}
		a := newMockAIAnalyzer(mock)

		summary, err := a.SummarizeNews(ctx, "삼성전자", nil)
		require.NoError(t, err)
		assert.Empty(t, summary)
		assert.Empty(t, mock.requests)
	})

	t.Run("propagates API errors", func(t *testing.T) {
		a := newMockAIAnalyzer(&mockCompletion{err: errors.New("quota exceeded")})

		_, err := a.SummarizeNews(ctx, "삼성전자", sampleArticles())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to summarize news")
	})

	t.Run("caps completion tokens at the configured budget", func(t *testing.T) {
		mock := &mockCompletion{response: "요약"}
		a := newMockAIAnalyzer(mock)
		a.maxTokens = 200

		_, err := a.SummarizeNews(ctx, "삼성전자", sampleArticles())
		require.NoError(t, err)
		require.Len(t, mock.requests, 1)
		assert.Equal(t, 200, mock.requests[0].MaxTokens)
	})
}

func TestScoreSentiment(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a plain JSON reply", func(t *testing.T) {
		a := newMockAIAnalyzer(&mockCompletion{response: `{"score": 0.45, "key_issues": ["HBM 수요", "파운드리 수주"]}`})

		score, issues, err := a.ScoreSentiment(ctx, "삼성전자", sampleArticles())
		require.NoError(t, err)
		require.NotNil(t, score)
		assert.InDelta(t, 0.45, *score, 1e-9)
		assert.Equal(t, []string{"HBM 수요", "파운드리 수주"}, issues)
	})

	t.Run("unwraps fenced code blocks", func(t *testing.T) {
		a := newMockAIAnalyzer(&mockCompletion{response: "```json\n{\"score\": -0.2, \"key_issues\": [\"규제 리스크\"]}\n```"})

		score, issues, err := a.ScoreSentiment(ctx, "삼성전자", sampleArticles())
		require.NoError(t, err)
		require.NotNil(t, score)
		assert.InDelta(t, -0.2, *score, 1e-9)
		assert.Equal(t, []string{"규제 리스크"}, issues)
	})

	t.Run("clamps scores into the valid range", func(t *testing.T) {
		a := newMockAIAnalyzer(&mockCompletion{response: `{"score": 3.7, "key_issues": []}`})

		score, _, err := a.ScoreSentiment(ctx, "삼성전자", sampleArticles())
		require.NoError(t, err)
		require.NotNil(t, score)
		assert.InDelta(t, 1.0, *score, 1e-9)
	})

	t.Run("caps key issues at five", func(t *testing.T) {
		a := newMockAIAnalyzer(&mockCompletion{response: `{"score": 0, "key_issues": ["1","2","3","4","5","6","7"]}`})

		_, issues, err := a.ScoreSentiment(ctx, "삼성전자", sampleArticles())
		require.NoError(t, err)
		assert.Len(t, issues, maxKeyIssues)
	})

	t.Run("returns error for an unparseable reply", func(t *testing.T) {
		a := newMockAIAnalyzer(&mockCompletion{response: "주가가 오를 것 같습니다."})

		_, _, err := a.ScoreSentiment(ctx, "삼성전자", sampleArticles())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse sentiment response")
	})
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"score": 1}`, `{"score": 1}`},
		{"```json\n{\"score\": 1}\n```", `{"score": 1}`},
		{"```\n{\"score\": 1}\n```", `{"score": 1}`},
		{"  {\"score\": 1}  ", `{"score": 1}`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extractJSON(tt.in), "input %q", tt.in)
	}
}

func TestBuildOpinionPrompt(t *testing.T) {
	rsi := 28.4
	change := -1.7
	margin := 18.2
	sentiment := 0.3

	report := &models.StockReport{
		Stock: models.StockInfo{Code: "005930", Name: "삼성전자", Market: models.MarketKOSPI},
		Prices: []models.PricePoint{
			{Close: decimal.NewFromInt(71000)},
			{Close: decimal.NewFromInt(69800), ChangeRate: &change},
		},
		Indicators: []models.IndicatorPoint{{RSI: &rsi}},
		Signals: []models.Signal{
			{Indicator: models.IndicatorRSI, Type: models.SignalBuy, Strength: 4, Reason: "RSI 28.4 - entered oversold zone"},
		},
		Financials: []models.FinancialData{
			{Period: "2024", Revenue: decimal.NewFromInt(300000), OperatingProfit: decimal.NewFromInt(54600), OperatingMargin: &margin},
		},
		Analysis: &models.AIAnalysis{NewsSummary: "업황 회복 기대", SentimentScore: &sentiment},
	}

	prompt := buildOpinionPrompt(report)
	assert.Contains(t, prompt, "삼성전자 (005930, KOSPI)")
	assert.Contains(t, prompt, "최근 종가: 69800원 (전일 대비 -1.70%)")
	assert.Contains(t, prompt, "RSI(14): 28.4")
	assert.Contains(t, prompt, "- RSI BUY (강도 4): RSI 28.4 - entered oversold zone")
	assert.Contains(t, prompt, "매출 300000, 영업이익 54600, 영업이익률 18.2%")
	assert.Contains(t, prompt, "뉴스 요약: 업황 회복 기대")
	assert.Contains(t, prompt, "뉴스 심리 점수: 0.30")

	t.Run("omits sections without data", func(t *testing.T) {
		prompt := buildOpinionPrompt(&models.StockReport{
			Stock: models.StockInfo{Code: "000660", Name: "SK하이닉스", Market: models.MarketKOSPI},
		})
		assert.NotContains(t, prompt, "최근 종가")
		assert.NotContains(t, prompt, "매매 신호")
		assert.NotContains(t, prompt, "최근 실적")
	})
}
