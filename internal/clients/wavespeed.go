package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"newsroom-server/internal/config"
	"newsroom-server/internal/models"

	"go.uber.org/zap"
)

// WavespeedClient drives task-based video generation on the Wavespeed
// API: submit a task, then poll the prediction result until it reaches a
// terminal state.
type WavespeedClient struct {
	baseURL      string
	apiKey       string
	model        string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewWavespeedClient creates the client. The API key may be absent; each
// call then fails with a configuration error so the provider chain can
// fall back.
func NewWavespeedClient(cfg *config.Config, logger *zap.Logger) *WavespeedClient {
	return &WavespeedClient{
		baseURL:      cfg.WavespeedBaseURL,
		apiKey:       cfg.WavespeedAPIKey,
		model:        cfg.WavespeedModel,
		pollInterval: 3 * time.Second,
		timeout:      cfg.GenerationTimeout,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       logger.Named("WavespeedClient"),
	}
}

// Configured reports whether the API key is present.
func (c *WavespeedClient) Configured() bool { return c.apiKey != "" }

type wavespeedSubmitResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type wavespeedResultResponse struct {
	Data struct {
		ID      string   `json:"id"`
		Status  string   `json:"status"`
		Outputs []string `json:"outputs"`
		Error   string   `json:"error"`
	} `json:"data"`
}

// GenerateVideo submits a talking-segment video task and waits for its
// result URL. The audio URL is passed through so the provider lip-syncs
// against the already generated narration.
func (c *WavespeedClient) GenerateVideo(ctx context.Context, prompt, imageURL, audioURL string) (string, error) {
	payload := map[string]any{
		"prompt": prompt,
	}
	if imageURL != "" {
		payload["image"] = imageURL
	}
	if audioURL != "" {
		payload["audio"] = audioURL
	}
	return c.RunTask(ctx, c.model, payload)
}

// RunTask submits a task for an arbitrary Wavespeed model and polls it
// to completion. Used both for segment video generation and for the
// final composite render.
func (c *WavespeedClient) RunTask(ctx context.Context, model string, payload map[string]any) (string, error) {
	if c.apiKey == "" {
		return "", &models.ConfigurationError{Key: "WAVESPEED_API_KEY", Hint: "set the key to enable video generation"}
	}

	taskID, err := c.submit(ctx, model, payload)
	if err != nil {
		return "", err
	}

	log := c.logger.With(zap.String("taskID", taskID), zap.String("model", model))
	log.Debug("Wavespeed task submitted")

	deadline := time.Now().Add(c.timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("wavespeed task %s timed out after %v", taskID, c.timeout)
		}

		result, err := c.result(ctx, taskID)
		if err != nil {
			return "", err
		}
		switch result.Data.Status {
		case "completed":
			if len(result.Data.Outputs) == 0 {
				return "", &models.UpstreamError{Provider: "wavespeed", Status: http.StatusOK, Body: "task completed without outputs"}
			}
			log.Debug("Wavespeed task completed")
			return result.Data.Outputs[0], nil
		case "failed":
			return "", &models.UpstreamError{Provider: "wavespeed", Status: http.StatusOK, Body: result.Data.Error}
		default:
			// created or processing, keep polling
		}
	}
}

func (c *WavespeedClient) submit(ctx context.Context, model string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal wavespeed payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/v3/%s", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build wavespeed request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wavespeed submit failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &models.UpstreamError{Provider: "wavespeed", Status: resp.StatusCode, Body: string(respBody)}
	}

	var submitResp wavespeedSubmitResponse
	if err := json.Unmarshal(respBody, &submitResp); err != nil {
		return "", fmt.Errorf("failed to decode wavespeed submit response: %w", err)
	}
	if submitResp.Data.ID == "" {
		return "", &models.UpstreamError{Provider: "wavespeed", Status: resp.StatusCode, Body: "submit response without task id"}
	}
	return submitResp.Data.ID, nil
}

func (c *WavespeedClient) result(ctx context.Context, taskID string) (*wavespeedResultResponse, error) {
	url := fmt.Sprintf("%s/api/v3/predictions/%s/result", c.baseURL, taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build wavespeed result request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wavespeed result poll failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamError{Provider: "wavespeed", Status: resp.StatusCode, Body: string(respBody)}
	}

	var result wavespeedResultResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode wavespeed result: %w", err)
	}
	return &result, nil
}
