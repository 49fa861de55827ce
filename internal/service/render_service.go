package service

import (
	"context"
	"fmt"

	"newsroom-server/internal/clients"
	"newsroom-server/internal/interfaces"
	"newsroom-server/internal/models"

	"go.uber.org/zap"
)

var _ FinalRenderer = (*WavespeedFinalRenderer)(nil)

// WavespeedFinalRenderer composes the per-segment videos into one final
// cut through a Wavespeed merge task, then mirrors the result into object
// storage so the published URL does not depend on provider retention.
type WavespeedFinalRenderer struct {
	wavespeed  *clients.WavespeedClient
	store      interfaces.ObjectStore
	mergeModel string
	logger     *zap.Logger
}

// NewWavespeedFinalRenderer creates the renderer.
func NewWavespeedFinalRenderer(wavespeed *clients.WavespeedClient, store interfaces.ObjectStore, mergeModel string, logger *zap.Logger) *WavespeedFinalRenderer {
	return &WavespeedFinalRenderer{
		wavespeed:  wavespeed,
		store:      store,
		mergeModel: mergeModel,
		logger:     logger.Named("FinalRenderer"),
	}
}

// RenderFinal merges every segment video that reached done, in segment
// order, and returns the mirrored storage URL.
func (r *WavespeedFinalRenderer) RenderFinal(ctx context.Context, p *models.Production) (string, string, error) {
	var videoURLs []string
	for i := range p.Segments {
		st := p.SegmentStatus.Status(i)
		if st.Video == models.UnitDone && st.VideoURL != "" {
			videoURLs = append(videoURLs, st.VideoURL)
		}
	}
	if len(videoURLs) == 0 {
		return "", "", &models.DependencyNotReadyError{Step: models.StepRenderFinal, Reason: "no segment has finished video"}
	}

	payload := map[string]any{
		"videos": videoURLs,
	}
	providerURL, err := r.wavespeed.RunTask(ctx, r.mergeModel, payload)
	if err != nil {
		return "", "", err
	}

	data, contentType, err := r.store.Download(ctx, providerURL)
	if err != nil {
		// Provider URL still works, keep it rather than failing the step.
		r.logger.Warn("Failed to mirror final video into storage, keeping provider URL",
			zap.String("productionID", p.ID.String()), zap.Error(err))
		return providerURL, "", nil
	}
	if contentType == "" {
		contentType = "video/mp4"
	}

	path := fmt.Sprintf("productions/%s/final/final.mp4", p.ID)
	if err := r.store.Upload(ctx, path, data, contentType, true); err != nil {
		r.logger.Warn("Failed to upload final video to storage, keeping provider URL",
			zap.String("productionID", p.ID.String()), zap.Error(err))
		return providerURL, "", nil
	}

	url := r.store.PublicURL(path)
	r.logger.Info("Final video rendered",
		zap.String("productionID", p.ID.String()),
		zap.Int("segments", len(videoURLs)),
		zap.String("url", url))
	return url, "", nil
}
