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

// ElevenLabsClient calls the ElevenLabs REST API for speech, sound
// effects and music generation. All requests carry the xi-api-key header.
type ElevenLabsClient struct {
	baseURL    string
	apiKey     string
	voiceID    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewElevenLabsClient creates the client. A missing API key is allowed;
// each call fails its own request with a configuration error instead.
func NewElevenLabsClient(cfg *config.Config, logger *zap.Logger) *ElevenLabsClient {
	return &ElevenLabsClient{
		baseURL:    cfg.ElevenLabsBaseURL,
		apiKey:     cfg.ElevenLabsAPIKey,
		voiceID:    cfg.ElevenLabsVoiceID,
		model:      cfg.ElevenLabsModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger.Named("ElevenLabsClient"),
	}
}

// Configured reports whether the API key is present.
func (c *ElevenLabsClient) Configured() bool { return c.apiKey != "" }

func (c *ElevenLabsClient) requireKey() error {
	if c.apiKey == "" {
		return &models.ConfigurationError{Key: "ELEVENLABS_API_KEY", Hint: "set the key to enable audio generation"}
	}
	return nil
}

type ttsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings map[string]any `json:"voice_settings,omitempty"`
}

// GenerateSpeech synthesizes narration audio for one segment. Returns
// the mp3 bytes and an estimated duration in seconds.
func (c *ElevenLabsClient) GenerateSpeech(ctx context.Context, text, voiceID string) ([]byte, float64, error) {
	if err := c.requireKey(); err != nil {
		return nil, 0, err
	}
	if voiceID == "" {
		voiceID = c.voiceID
	}

	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal tts request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	audio, err := c.post(ctx, url, body, "audio/mpeg")
	if err != nil {
		return nil, 0, err
	}

	// Rough duration from mp3 size at 128 kbit/s. The player-side value
	// is authoritative; this only seeds the segment record.
	duration := float64(len(audio)) * 8 / 128000
	c.logger.Debug("Speech generated", zap.Int("bytes", len(audio)), zap.Float64("duration", duration))
	return audio, duration, nil
}

type soundEffectRequest struct {
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	PromptInfluence float64 `json:"prompt_influence,omitempty"`
}

// GenerateSoundEffect generates a short effect from a text prompt.
func (c *ElevenLabsClient) GenerateSoundEffect(ctx context.Context, prompt string, durationSeconds float64) ([]byte, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(soundEffectRequest{
		Text:            prompt,
		DurationSeconds: durationSeconds,
		PromptInfluence: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sound effect request: %w", err)
	}

	return c.post(ctx, c.baseURL+"/v1/sound-generation", body, "audio/mpeg")
}

type musicRequest struct {
	Prompt        string `json:"prompt"`
	MusicLengthMs int    `json:"music_length_ms,omitempty"`
}

// GenerateMusic generates a background music track from a style prompt.
func (c *ElevenLabsClient) GenerateMusic(ctx context.Context, prompt string, lengthMs int) ([]byte, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(musicRequest{Prompt: prompt, MusicLengthMs: lengthMs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal music request: %w", err)
	}

	return c.post(ctx, c.baseURL+"/v1/music", body, "audio/mpeg")
}

func (c *ElevenLabsClient) post(ctx context.Context, url string, body []byte, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build elevenlabs request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read elevenlabs response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamError{Provider: "elevenlabs", Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
