package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"newsroom-server/internal/clients"
	"newsroom-server/internal/models"

	"go.uber.org/zap"
)

const scriptSystemPrompt = `You are a scriptwriter for a two-anchor short-form news show. Given selected news items, write a punchy script as JSON only, no prose:
{"scenes":{"scene_01":{"title":"","speaker":"","text":""}},"viral_metadata":{"title":"","description":"","tags":[]}}
Scene keys must sort in presentation order. Speakers alternate between "anchor_a" and "anchor_b". Keep each scene under 40 words.`

// maxSummaryRunes caps each news summary fed into the prompt when the
// assembled prompt would blow the token budget.
const maxSummaryRunes = 280

// ScriptResult is everything one generation run produces.
type ScriptResult struct {
	Script   models.Script
	Viral    *models.ViralMetadata
	Segments []models.Segment
	Quality  *models.QualityAnalysis
}

// ScriptService turns selected news into a scene script with publishing
// metadata, derived segments and an advisory quality score.
type ScriptService struct {
	ai         clients.AIClient
	analyzer   ScriptAnalyzer
	model      string
	tokenLimit int
	logger     *zap.Logger
}

// NewScriptService creates the script service.
func NewScriptService(ai clients.AIClient, analyzer ScriptAnalyzer, model string, tokenLimit int, logger *zap.Logger) *ScriptService {
	return &ScriptService{
		ai:         ai,
		analyzer:   analyzer,
		model:      model,
		tokenLimit: tokenLimit,
		logger:     logger.Named("ScriptService"),
	}
}

type scriptResponse struct {
	Scenes models.Script         `json:"scenes"`
	Viral  *models.ViralMetadata `json:"viral_metadata"`
}

// Generate produces a script from the production's selected news items.
// Improvement notes from previous review rounds are appended to the
// prompt so regeneration converges instead of starting over.
func (s *ScriptService) Generate(ctx context.Context, p *models.Production, improvements []string) (*ScriptResult, error) {
	selected := selectedNews(p)
	if len(selected) == 0 {
		return nil, &models.DependencyNotReadyError{Step: models.StepScriptGenerate, Reason: "no news items selected"}
	}

	userInput := s.buildUserInput(selected, improvements)
	if tokens := clients.EstimateTokens(s.model, scriptSystemPrompt+userInput); tokens > s.tokenLimit {
		s.logger.Warn("Prompt over token budget, truncating summaries",
			zap.Int("tokens", tokens), zap.Int("limit", s.tokenLimit))
		userInput = s.buildUserInput(truncateSummaries(selected), improvements)
		if tokens = clients.EstimateTokens(s.model, scriptSystemPrompt+userInput); tokens > s.tokenLimit {
			return nil, &models.ValidationError{Field: "selected_news_ids", Reason: "selection too large for the script token budget"}
		}
	}

	raw, usage, err := s.ai.GenerateText(ctx, scriptSystemPrompt, userInput)
	if err != nil {
		return nil, fmt.Errorf("script generation failed: %w", err)
	}

	var resp scriptResponse
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &resp); err != nil {
		return nil, &models.UpstreamError{Provider: "ai", Status: 0, Body: "script response is not valid JSON"}
	}
	if len(resp.Scenes) == 0 {
		return nil, &models.UpstreamError{Provider: "ai", Status: 0, Body: "script response contained no scenes"}
	}

	result := &ScriptResult{
		Script:   resp.Scenes,
		Viral:    resp.Viral,
		Segments: SegmentsFromScript(resp.Scenes),
	}

	// Quality analysis is advisory. A failure is logged and swallowed.
	if s.analyzer != nil {
		if quality, analysisErr := s.analyzer.AnalyzeScript(ctx, scriptText(resp.Scenes)); analysisErr != nil {
			s.logger.Warn("Script quality analysis unavailable", zap.Error(analysisErr))
		} else {
			result.Quality = quality
		}
	}

	s.logger.Info("Script generated",
		zap.String("productionID", p.ID.String()),
		zap.Int("scenes", len(resp.Scenes)),
		zap.Int("segments", len(result.Segments)),
		zap.Int("totalTokens", usage.TotalTokens))
	return result, nil
}

// SegmentsFromScript flattens a scene map into the ordered segment list,
// one segment per scene, ordered by scene key.
func SegmentsFromScript(script models.Script) []models.Segment {
	keys := make([]string, 0, len(script))
	for key := range script {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	segments := make([]models.Segment, 0, len(keys))
	for _, key := range keys {
		scene := script[key]
		segments = append(segments, models.Segment{
			Speaker:    scene.Speaker,
			Text:       scene.Text,
			SceneTitle: scene.Title,
			SceneKey:   key,
		})
	}
	return segments
}

func (s *ScriptService) buildUserInput(selected []models.NewsItem, improvements []string) string {
	var b strings.Builder
	b.WriteString("Selected news items:\n")
	for i, item := range selected {
		fmt.Fprintf(&b, "%d. %s", i+1, item.Title)
		if item.Summary != "" {
			fmt.Fprintf(&b, " -- %s", item.Summary)
		}
		if item.Source != "" {
			fmt.Fprintf(&b, " (%s)", item.Source)
		}
		b.WriteString("\n")
	}
	if len(improvements) > 0 {
		b.WriteString("\nApply these improvements over the previous version:\n")
		for _, note := range improvements {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}
	return b.String()
}

// selectedNews resolves the selected ids against the fetched list,
// preserving selection order and dropping ids that no longer resolve.
func selectedNews(p *models.Production) []models.NewsItem {
	byID := make(map[string]models.NewsItem, len(p.FetchedNews))
	for _, item := range p.FetchedNews {
		byID[item.ID] = item
	}
	selected := make([]models.NewsItem, 0, len(p.SelectedNewsIDs))
	for _, id := range p.SelectedNewsIDs {
		if item, ok := byID[id]; ok {
			selected = append(selected, item)
		}
	}
	return selected
}

func truncateSummaries(items []models.NewsItem) []models.NewsItem {
	out := make([]models.NewsItem, len(items))
	copy(out, items)
	for i := range out {
		if runes := []rune(out[i].Summary); len(runes) > maxSummaryRunes {
			out[i].Summary = string(runes[:maxSummaryRunes]) + "…"
		}
	}
	return out
}

func scriptText(script models.Script) string {
	var b strings.Builder
	for _, seg := range SegmentsFromScript(script) {
		fmt.Fprintf(&b, "%s: %s\n", seg.Speaker, seg.Text)
	}
	return b.String()
}

// cleanModelJSON strips markdown code fences models wrap around JSON.
func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
