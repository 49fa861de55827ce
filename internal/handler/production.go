package handler

import (
	"net/http"
	"strconv"
	"time"

	"newsroom-server/internal/models"
	"newsroom-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductionHandler exposes the wizard operations over HTTP.
type ProductionHandler struct {
	wizard *service.WizardService
	logger *zap.Logger
}

// NewProductionHandler creates the production handler.
func NewProductionHandler(wizard *service.WizardService, logger *zap.Logger) *ProductionHandler {
	return &ProductionHandler{wizard: wizard, logger: logger.Named("ProductionHandler")}
}

func (h *ProductionHandler) productionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid production id"})
		return uuid.Nil, false
	}
	return id, true
}

type createProductionRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	NewsDate  string `json:"news_date"`
}

func (h *ProductionHandler) createProduction(c *gin.Context) {
	var req createProductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
		return
	}

	var newsDate time.Time
	if req.NewsDate != "" {
		parsed, err := time.Parse("2006-01-02", req.NewsDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, APIError{Error: "news_date must be YYYY-MM-DD"})
			return
		}
		newsDate = parsed
	}

	p, err := h.wizard.CreateProduction(c.Request.Context(), req.ChannelID, newsDate)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProductionHandler) getProduction(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	p, err := h.wizard.GetProduction(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProductionHandler) listProductions(c *gin.Context) {
	channelID := c.Query("channel_id")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, APIError{Error: "channel_id query parameter is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	productions, err := h.wizard.ListProductions(c.Request.Context(), channelID, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"productions": productions})
}

func (h *ProductionHandler) fetchNews(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	p, err := h.wizard.FetchNews(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type selectNewsRequest struct {
	NewsIDs []string `json:"news_ids" binding:"required"`
}

func (h *ProductionHandler) selectNews(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	var req selectNewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
		return
	}
	p, err := h.wizard.SelectNews(c.Request.Context(), id, req.NewsIDs)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type generateScriptRequest struct {
	Improvements []string `json:"improvements"`
}

func (h *ProductionHandler) generateScript(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	var req generateScriptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
			return
		}
	}
	p, err := h.wizard.GenerateScript(c.Request.Context(), id, req.Improvements)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProductionHandler) approveScript(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	p, err := h.wizard.ApproveScript(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type restoreScriptRequest struct {
	Version int `json:"version" binding:"required"`
}

func (h *ProductionHandler) restoreScript(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	var req restoreScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
		return
	}
	p, err := h.wizard.RestoreScriptVersion(c.Request.Context(), id, req.Version)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type editSegmentRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *ProductionHandler) editSegmentText(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid segment index"})
		return
	}
	var req editSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
		return
	}
	p, err := h.wizard.EditSegmentText(c.Request.Context(), id, index, req.Text)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type startBatchRequest struct {
	SegmentIndex *int `json:"segment_index"`
}

func (h *ProductionHandler) startBatch(media string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.productionID(c)
		if !ok {
			return
		}
		var req startBatchRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
				return
			}
		}
		p, err := h.wizard.StartBatch(c.Request.Context(), id, media, req.SegmentIndex)
		if err != nil {
			handleServiceError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusAccepted, p)
	}
}

type cancelBatchRequest struct {
	Media string `json:"media" binding:"required"`
}

func (h *ProductionHandler) cancelBatch(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	var req cancelBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := h.wizard.CancelBatch(id, req.Media); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

type navigateRequest struct {
	Step models.WizardStep `json:"step" binding:"required"`
}

func (h *ProductionHandler) navigate(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body: " + err.Error()})
		return
	}
	p, err := h.wizard.Navigate(c.Request.Context(), id, req.Step)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProductionHandler) renderFinal(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	p, err := h.wizard.RenderFinal(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProductionHandler) publish(c *gin.Context) {
	id, ok := h.productionID(c)
	if !ok {
		return
	}
	p, err := h.wizard.Publish(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
