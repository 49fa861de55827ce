package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsroom-server/internal/config"
	"newsroom-server/internal/models"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient provides two Gemini surfaces: script quality analysis via
// the genai SDK, and VEO video generation via the long-running predict
// REST endpoint. It is the fallback video provider behind Wavespeed.
type GeminiClient struct {
	apiKey        string
	videoModel    string
	analysisModel *genai.GenerativeModel
	sdk           *genai.Client
	pollInterval  time.Duration
	timeout       time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewGeminiClient creates the client. Returns a nil-safe client when the
// key is absent; every call then fails with a configuration error.
func NewGeminiClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*GeminiClient, error) {
	c := &GeminiClient{
		apiKey:       cfg.GeminiAPIKey,
		videoModel:   cfg.GeminiVideoModel,
		pollInterval: 5 * time.Second,
		timeout:      cfg.GenerationTimeout,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       logger.Named("GeminiClient"),
	}
	if cfg.GeminiAPIKey == "" {
		return c, nil
	}

	sdk, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.sdk = sdk
	c.analysisModel = sdk.GenerativeModel("gemini-1.5-flash")
	return c, nil
}

// Configured reports whether the API key is present.
func (c *GeminiClient) Configured() bool { return c.apiKey != "" }

// Close releases the underlying SDK client.
func (c *GeminiClient) Close() error {
	if c.sdk != nil {
		return c.sdk.Close()
	}
	return nil
}

const qualityAnalysisPrompt = `You are a short-form news video editor. Score the following script on a 0-10 scale for: hook, clarity, pacing, virality. Respond with JSON only: {"scores":{"hook":0,"clarity":0,"pacing":0,"virality":0},"overall":0,"comments":""}`

// AnalyzeScript scores a generated script. Analysis failures are soft;
// callers treat a nil result as "no analysis available".
func (c *GeminiClient) AnalyzeScript(ctx context.Context, scriptText string) (*models.QualityAnalysis, error) {
	if c.analysisModel == nil {
		return nil, &models.ConfigurationError{Key: "GEMINI_API_KEY", Hint: "set the key to enable script analysis"}
	}
	if strings.TrimSpace(scriptText) == "" {
		return nil, &models.ValidationError{Field: "script", Reason: "must not be empty"}
	}

	resp, err := c.analysisModel.GenerateContent(ctx, genai.Text(qualityAnalysisPrompt), genai.Text(scriptText))
	if err != nil {
		return nil, fmt.Errorf("gemini script analysis failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &models.UpstreamError{Provider: "gemini", Status: http.StatusOK, Body: "empty analysis response"}
	}

	var textBuilder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			textBuilder.WriteString(string(txt))
		}
	}

	cleaned := cleanJSONString(textBuilder.String())
	var analysis models.QualityAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	return &analysis, nil
}

// cleanJSONString strips markdown code fences the model tends to wrap
// around JSON output.
func cleanJSONString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

type veoOperationResponse struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// GenerateVideo runs a VEO long-running prediction and returns the
// resulting video URI.
func (c *GeminiClient) GenerateVideo(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", &models.ConfigurationError{Key: "GEMINI_API_KEY", Hint: "set the key to enable fallback video generation"}
	}

	payload := map[string]any{
		"instances": []map[string]any{{"prompt": prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal veo request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s", geminiAPIBase, c.videoModel, c.apiKey)
	op, err := c.doOperation(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}

	log := c.logger.With(zap.String("operation", op.Name))
	log.Debug("VEO generation started")

	deadline := time.Now().Add(c.timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("veo operation %s timed out after %v", op.Name, c.timeout)
		}

		pollURL := fmt.Sprintf("%s/%s?key=%s", geminiAPIBase, op.Name, c.apiKey)
		op, err = c.doOperation(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return "", err
		}
	}

	if op.Error != nil {
		return "", &models.UpstreamError{Provider: "gemini", Status: http.StatusOK, Body: op.Error.Message}
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		return "", &models.UpstreamError{Provider: "gemini", Status: http.StatusOK, Body: "veo operation completed without samples"}
	}

	log.Debug("VEO generation completed")
	return op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI, nil
}

func (c *GeminiClient) doOperation(ctx context.Context, method, url string, body []byte) (*veoOperationResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build veo request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("veo request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamError{Provider: "gemini", Status: resp.StatusCode, Body: string(respBody)}
	}

	var op veoOperationResponse
	if err := json.Unmarshal(respBody, &op); err != nil {
		return nil, fmt.Errorf("failed to decode veo operation: %w", err)
	}
	return &op, nil
}
