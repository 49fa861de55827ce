package handler

import (
	"net/http"
	"time"

	"newsroom-server/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HealthHandler reports process liveness plus dependency and provider
// availability.
type HealthHandler struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	redis  *redis.Client
	logger *zap.Logger
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, pool: pool, redis: redisClient, logger: logger.Named("HealthHandler")}
}

func (h *HealthHandler) health(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	dbOK := true
	if err := h.pool.Ping(ctx); err != nil {
		h.logger.Warn("Health check: database ping failed", zap.Error(err))
		dbOK = false
		status = http.StatusServiceUnavailable
	}
	redisOK := true
	if err := h.redis.Ping(ctx).Err(); err != nil {
		h.logger.Warn("Health check: redis ping failed", zap.Error(err))
		redisOK = false
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":    map[bool]string{true: "ok", false: "degraded"}[dbOK && redisOK],
		"timestamp": time.Now().UTC(),
		"dependencies": gin.H{
			"postgres": dbOK,
			"redis":    redisOK,
		},
		"providers": gin.H{
			"elevenlabs": h.cfg.ElevenLabsAPIKey != "",
			"openai":     h.cfg.OpenAIAPIKey != "",
			"wavespeed":  h.cfg.WavespeedAPIKey != "",
			"gemini":     h.cfg.GeminiAPIKey != "",
			"youtube":    h.cfg.YouTubeRefreshToken != "",
			"storage":    h.cfg.StorageURL != "" && h.cfg.StorageServiceKey != "",
		},
	})
}
