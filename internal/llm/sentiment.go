package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const sentimentSystemPrompt = `You are a market sentiment rater. Given a stock
symbol and a date, rate the market sentiment for that stock as of that date
on a scale from -1.0 (strongly bearish) to 1.0 (strongly bullish).
Respond with JSON only: {"score": <number>, "reason": "<one sentence>"}`

// SentimentScorer rates symbol sentiment through a chat provider. It
// satisfies the prediction sub-model scorer boundary.
type SentimentScorer struct {
	provider Provider
}

func NewSentimentScorer(provider Provider) *SentimentScorer {
	return &SentimentScorer{provider: provider}
}

// Score asks the provider for a sentiment rating in [-1, 1].
func (s *SentimentScorer) Score(ctx context.Context, symbol string, asOf time.Time) (float64, error) {
	resp, err := s.provider.Chat(ctx, ChatRequest{
		SystemPrompt: sentimentSystemPrompt,
		Messages: []Message{
			{Role: "user", Content: fmt.Sprintf("Symbol: %s\nDate: %s", symbol, asOf.Format("2006-01-02"))},
		},
		MaxTokens: 256,
		JSONMode:  true,
	})
	if err != nil {
		return 0, fmt.Errorf("sentiment chat: %w", err)
	}

	var parsed struct {
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	}
	content := strings.TrimSpace(resp.Content)
	// Some providers wrap JSON in a code fence despite JSON mode.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return 0, fmt.Errorf("parsing sentiment response %q: %w", resp.Content, err)
	}

	if parsed.Score < -1 {
		parsed.Score = -1
	}
	if parsed.Score > 1 {
		parsed.Score = 1
	}
	return parsed.Score, nil
}
