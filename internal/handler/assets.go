package handler

import (
	"net/http"

	"newsroom-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AssetHandler exposes the cache-or-generate asset endpoints. Both
// endpoints answer 200 whenever the handler itself ran; per-asset
// failures travel in the report body.
type AssetHandler struct {
	assets *service.AssetService
	logger *zap.Logger
}

// NewAssetHandler creates the asset handler.
func NewAssetHandler(assets *service.AssetService, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{assets: assets, logger: logger.Named("AssetHandler")}
}

// uploadAudio runs one cache-or-generate invocation over the configured
// music and sound-effect catalog.
func (h *AssetHandler) uploadAudio(c *gin.Context) {
	var req service.AssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
		return
	}
	if !req.Music && !req.SoundEffects {
		// Nothing selected means everything.
		req.Music = true
		req.SoundEffects = true
	}

	report := h.assets.EnsureAssets(c.Request.Context(), req)
	c.JSON(http.StatusOK, report)
}

type uploadAudioSimpleRequest struct {
	Files []service.VerbatimFile `json:"files"`
}

// uploadAudioSimple mirrors externally hosted files into storage
// verbatim, without any generation.
func (h *AssetHandler) uploadAudioSimple(c *gin.Context) {
	var req uploadAudioSimpleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
		return
	}

	report := &service.AssetReport{}
	valid := make([]service.VerbatimFile, 0, len(req.Files))
	for _, file := range req.Files {
		if file.Name == "" || file.URL == "" || (file.Type != "music" && file.Type != "sound-effect") {
			report.Results.Errors = append(report.Results.Errors, service.AssetFailure{
				File:  file.Name,
				Error: "each file needs name, url and a type of music or sound-effect",
			})
			continue
		}
		valid = append(valid, file)
	}

	result := h.assets.UploadVerbatim(c.Request.Context(), valid)
	result.Results.Errors = append(result.Results.Errors, report.Results.Errors...)
	result.Summary.Errors = len(result.Results.Errors)
	result.Success = result.Summary.Errors == 0
	c.JSON(http.StatusOK, result)
}
