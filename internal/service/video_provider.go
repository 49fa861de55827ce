package service

import (
	"context"

	"newsroom-server/internal/clients"

	"go.uber.org/zap"
)

// Provider names recorded per segment so a mixed batch stays auditable.
const (
	VideoProviderWavespeed = "wavespeed"
	VideoProviderGemini    = "gemini"
)

var _ VideoGenerator = (*FallbackVideoGenerator)(nil)

// FallbackVideoGenerator tries Wavespeed first and falls back to Gemini
// VEO when Wavespeed is unconfigured or fails. The winning provider name
// is returned alongside the URL.
type FallbackVideoGenerator struct {
	wavespeed *clients.WavespeedClient
	gemini    *clients.GeminiClient
	logger    *zap.Logger
}

// NewFallbackVideoGenerator wires the provider chain.
func NewFallbackVideoGenerator(wavespeed *clients.WavespeedClient, gemini *clients.GeminiClient, logger *zap.Logger) *FallbackVideoGenerator {
	return &FallbackVideoGenerator{
		wavespeed: wavespeed,
		gemini:    gemini,
		logger:    logger.Named("FallbackVideoGenerator"),
	}
}

// GenerateSegmentVideo runs the chain for one segment.
func (g *FallbackVideoGenerator) GenerateSegmentVideo(ctx context.Context, prompt, imageURL, audioURL string) (string, string, error) {
	url, primaryErr := g.wavespeed.GenerateVideo(ctx, prompt, imageURL, audioURL)
	if primaryErr == nil {
		return url, VideoProviderWavespeed, nil
	}
	if ctx.Err() != nil {
		return "", "", ctx.Err()
	}
	if g.gemini == nil || !g.gemini.Configured() {
		return "", "", primaryErr
	}

	g.logger.Warn("Wavespeed generation failed, falling back to Gemini", zap.Error(primaryErr))
	url, fallbackErr := g.gemini.GenerateVideo(ctx, prompt)
	if fallbackErr != nil {
		// The primary error is the one worth surfacing.
		g.logger.Error("Gemini fallback also failed", zap.Error(fallbackErr))
		return "", "", primaryErr
	}
	return url, VideoProviderGemini, nil
}
