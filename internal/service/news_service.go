package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"newsroom-server/internal/clients"
	"newsroom-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const newsFetchSystemPrompt = `You are a news desk assistant for a short-form video channel. Given a channel topic and a date, return the most relevant recent news as JSON only, no prose:
{"news":[{"title":"","summary":"","source":"","url":""}]}
Return between 5 and 12 items, most newsworthy first.`

// NewsService fetches headline candidates for a channel through the text
// generation model.
type NewsService struct {
	ai     clients.AIClient
	logger *zap.Logger
}

// NewNewsService creates the news service.
func NewNewsService(ai clients.AIClient, logger *zap.Logger) *NewsService {
	return &NewsService{ai: ai, logger: logger.Named("NewsService")}
}

type newsFetchResponse struct {
	News []models.NewsItem `json:"news"`
}

// FetchNews returns headline candidates for the channel and date. Every
// item gets a server-side id so selection can reference items stably.
func (s *NewsService) FetchNews(ctx context.Context, channelID string, newsDate time.Time) ([]models.NewsItem, error) {
	userInput := fmt.Sprintf("Channel: %s\nDate: %s", channelID, newsDate.Format("2006-01-02"))

	raw, usage, err := s.ai.GenerateText(ctx, newsFetchSystemPrompt, userInput)
	if err != nil {
		return nil, fmt.Errorf("news fetch generation failed: %w", err)
	}

	var resp newsFetchResponse
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &resp); err != nil {
		return nil, &models.UpstreamError{Provider: "ai", Status: 0, Body: "news response is not valid JSON"}
	}
	if len(resp.News) == 0 {
		return nil, &models.UpstreamError{Provider: "ai", Status: 0, Body: "news response contained no items"}
	}

	for i := range resp.News {
		if resp.News[i].ID == "" {
			resp.News[i].ID = uuid.NewString()
		}
	}

	s.logger.Info("News fetched",
		zap.String("channelID", channelID),
		zap.Int("items", len(resp.News)),
		zap.Int("promptTokens", usage.PromptTokens),
		zap.Int("completionTokens", usage.CompletionTokens))
	return resp.News, nil
}
