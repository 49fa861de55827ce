package service

import (
	"context"

	"newsroom-server/internal/models"
)

// SpeechGenerator produces narration audio for one segment.
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, text, voiceID string) (data []byte, durationSeconds float64, err error)
}

// VideoGenerator produces one segment video lip-synced to its audio and
// reports which provider produced it.
type VideoGenerator interface {
	GenerateSegmentVideo(ctx context.Context, prompt, imageURL, audioURL string) (url, provider string, err error)
}

// ScriptAnalyzer scores a generated script. Analysis is advisory, a
// failure never blocks the wizard.
type ScriptAnalyzer interface {
	AnalyzeScript(ctx context.Context, scriptText string) (*models.QualityAnalysis, error)
}

// FinalRenderer composes the per-segment videos into the final cut.
type FinalRenderer interface {
	RenderFinal(ctx context.Context, p *models.Production) (videoURL, posterURL string, err error)
}

// VideoPublisher uploads the final video to the target platform and
// returns the platform video id.
type VideoPublisher interface {
	Configured() bool
	Upload(ctx context.Context, videoURL string, meta *models.ViralMetadata) (videoID string, err error)
}
