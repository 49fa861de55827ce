package handler

import (
	"newsroom-server/internal/config"
	"newsroom-server/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

// NewRouter assembles the HTTP surface: proxies, asset endpoints, the
// wizard API, websocket subscriptions and operational endpoints.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	proxies *ProxyHandler,
	assets *AssetHandler,
	productions *ProductionHandler,
	wsHandler *WSHandler,
	health *HealthHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ZapLogging(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Request-ID")
	router.Use(cors.New(corsConfig))

	prom := ginprometheus.NewPrometheus("gin")
	prom.Use(router)

	router.GET("/health", health.health)

	api := router.Group("/api")
	{
		// Generation proxies. Any method, path selected by query param.
		api.Any("/elevenlabs", proxies.Proxy("elevenlabs"))
		api.Any("/openai", proxies.Proxy("openai"))
		api.Any("/wavespeed", proxies.Proxy("wavespeed"))
		api.Any("/wavespeed-proxy/*path", proxies.ProxyCatchAll("wavespeed"))

		api.POST("/upload-audio", assets.uploadAudio)
		api.POST("/upload-audio-simple", assets.uploadAudioSimple)

		prods := api.Group("/productions")
		{
			prods.POST("", productions.createProduction)
			prods.GET("", productions.listProductions)
			prods.GET("/:id", productions.getProduction)

			prods.POST("/:id/news/fetch", productions.fetchNews)
			prods.POST("/:id/news/select", productions.selectNews)
			prods.POST("/:id/script/generate", productions.generateScript)
			prods.POST("/:id/script/approve", productions.approveScript)
			prods.POST("/:id/script/restore", productions.restoreScript)
			prods.POST("/:id/segments/:index/text", productions.editSegmentText)
			prods.POST("/:id/audio/generate", productions.startBatch("audio"))
			prods.POST("/:id/video/generate", productions.startBatch("video"))
			prods.POST("/:id/batch/cancel", productions.cancelBatch)
			prods.POST("/:id/navigate", productions.navigate)
			prods.POST("/:id/render", productions.renderFinal)
			prods.POST("/:id/publish", productions.publish)
		}
	}

	router.GET("/ws/productions/:id", wsHandler.subscribe)

	return router
}
