package handler

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsroom-server/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// upstream describes one proxied provider.
type upstream struct {
	name        string
	baseURL     string
	apiKey      string
	queryParam  string
	setAuth     func(req *http.Request, apiKey string)
	alwaysAudio func(endpoint string) bool
}

// ProxyHandler relays browser requests to the generation providers,
// injecting credentials server-side so keys never reach the client.
type ProxyHandler struct {
	upstreams  map[string]*upstream
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProxyHandler builds the provider table from configuration.
func NewProxyHandler(cfg *config.Config, logger *zap.Logger) *ProxyHandler {
	bearer := func(req *http.Request, apiKey string) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return &ProxyHandler{
		upstreams: map[string]*upstream{
			"elevenlabs": {
				name:       "elevenlabs",
				baseURL:    strings.TrimRight(cfg.ElevenLabsBaseURL, "/"),
				apiKey:     cfg.ElevenLabsAPIKey,
				queryParam: "endpoint",
				setAuth: func(req *http.Request, apiKey string) {
					req.Header.Set("xi-api-key", apiKey)
				},
			},
			"openai": {
				name:       "openai",
				baseURL:    strings.TrimRight(cfg.OpenAIBaseURL, "/"),
				apiKey:     cfg.OpenAIAPIKey,
				queryParam: "endpoint",
				setAuth:    bearer,
				// Speech synthesis returns audio regardless of what the
				// upstream declares.
				alwaysAudio: func(endpoint string) bool { return endpoint == "audio/speech" },
			},
			"wavespeed": {
				name:       "wavespeed",
				baseURL:    strings.TrimRight(cfg.WavespeedBaseURL, "/"),
				apiKey:     cfg.WavespeedAPIKey,
				queryParam: "path",
				setAuth:    bearer,
			},
		},
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger.Named("ProxyHandler"),
	}
}

// Proxy returns the handler for one named provider. The relative
// upstream path comes from the provider's query parameter.
func (h *ProxyHandler) Proxy(name string) gin.HandlerFunc {
	up := h.upstreams[name]
	return func(c *gin.Context) {
		h.forward(c, up, c.Query(up.queryParam))
	}
}

// ProxyCatchAll returns the handler for path-style proxy routes where
// the relative upstream path is the rest of the URL.
func (h *ProxyHandler) ProxyCatchAll(name string) gin.HandlerFunc {
	up := h.upstreams[name]
	return func(c *gin.Context) {
		h.forward(c, up, strings.TrimLeft(c.Param("path"), "/"))
	}
}

func (h *ProxyHandler) forward(c *gin.Context, up *upstream, endpoint string) {
	if c.Request.Method == http.MethodOptions {
		c.Status(http.StatusOK)
		return
	}

	// Short correlation id for log lines only.
	reqID := uuid.NewString()[:8]
	start := time.Now()
	log := h.logger.With(
		zap.String("proxy", up.name),
		zap.String("reqID", reqID),
		zap.String("endpoint", endpoint),
		zap.String("method", c.Request.Method))

	if endpoint == "health" || endpoint == "ping" {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"service":          up.name,
			"apiKeyConfigured": up.apiKey != "",
		})
		return
	}

	if endpoint == "" {
		c.JSON(http.StatusBadRequest, APIError{Error: fmt.Sprintf("missing %q query parameter", up.queryParam)})
		return
	}
	if up.apiKey == "" {
		log.Error("Proxy request without configured API key")
		c.JSON(http.StatusInternalServerError, APIError{
			Error: fmt.Sprintf("%s API key is not configured on the server", up.name),
		})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Error("Failed to read request body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Error: "failed to read request body"})
		return
	}

	url := up.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, url, strings.NewReader(string(body)))
	if err != nil {
		log.Error("Failed to build upstream request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Error: "failed to build upstream request"})
		return
	}
	if contentType := c.ContentType(); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	up.setAuth(req, up.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		log.Error("Upstream request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Error: fmt.Sprintf("upstream request failed: %v", err)})
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read upstream response", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Error: "failed to read upstream response"})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	log.Info("Proxy request finished",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBody)),
		zap.Duration("elapsed", time.Since(start)))

	isAudio := strings.Contains(contentType, "audio") ||
		(up.alwaysAudio != nil && up.alwaysAudio(endpoint) && resp.StatusCode == http.StatusOK)
	switch {
	case isAudio:
		// Base64 envelope so the caller never needs to stream binary.
		c.JSON(http.StatusOK, gin.H{
			"audio":       base64.StdEncoding.EncodeToString(respBody),
			"contentType": contentType,
			"size":        len(respBody),
		})
	case strings.Contains(contentType, "application/json"):
		c.Data(resp.StatusCode, "application/json", respBody)
	default:
		if contentType == "" {
			contentType = "text/plain"
		}
		c.Data(resp.StatusCode, contentType, respBody)
	}
}
