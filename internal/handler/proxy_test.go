package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsroom-server/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newProxyRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewProxyHandler(cfg, zap.NewNop())
	router := gin.New()
	router.Any("/api/elevenlabs", h.Proxy("elevenlabs"))
	router.Any("/api/openai", h.Proxy("openai"))
	router.Any("/api/wavespeed", h.Proxy("wavespeed"))
	router.Any("/api/wavespeed-proxy/*path", h.ProxyCatchAll("wavespeed"))
	return router
}

func TestProxyHealthShortCircuitsWithoutUpstreamCall(t *testing.T) {
	upstreamCalled := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalled = true
	}))
	defer upstream.Close()

	router := newProxyRouter(&config.Config{ElevenLabsBaseURL: upstream.URL, ElevenLabsAPIKey: "key"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/elevenlabs?endpoint=health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "elevenlabs", resp["service"])
	assert.Equal(t, true, resp["apiKeyConfigured"])
	assert.False(t, upstreamCalled, "health never reaches the upstream")
}

func TestProxyHealthReportsMissingKey(t *testing.T) {
	router := newProxyRouter(&config.Config{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/openai?endpoint=ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["apiKeyConfigured"])
}

func TestProxyRejectsWhenKeyNotConfigured(t *testing.T) {
	router := newProxyRouter(&config.Config{ElevenLabsBaseURL: "http://unused"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/elevenlabs?endpoint=text-to-speech/abc", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "elevenlabs API key is not configured on the server", resp.Error)
}

func TestProxyRequiresEndpointParameter(t *testing.T) {
	router := newProxyRouter(&config.Config{ElevenLabsAPIKey: "key"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/elevenlabs", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "endpoint")
}

func TestProxyOptionsAlwaysSucceeds(t *testing.T) {
	router := newProxyRouter(&config.Config{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/elevenlabs", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProxyWrapsAudioInBase64Envelope(t *testing.T) {
	audio := []byte{0xFF, 0xF3, 0x01, 0x02}
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("xi-api-key")
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer upstream.Close()

	router := newProxyRouter(&config.Config{ElevenLabsBaseURL: upstream.URL, ElevenLabsAPIKey: "secret"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/elevenlabs?endpoint=text-to-speech/voice1",
		strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "secret", gotAuth, "credential is injected server-side")

	var resp struct {
		Audio       string `json:"audio"`
		ContentType string `json:"contentType"`
		Size        int    `json:"size"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, base64.StdEncoding.EncodeToString(audio), resp.Audio)
	assert.Equal(t, "audio/mpeg", resp.ContentType)
	assert.Equal(t, len(audio), resp.Size)
}

func TestProxyTreatsOpenAISpeechAsAudio(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// OpenAI speech responses do not declare an audio content type.
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("binary-audio"))
	}))
	defer upstream.Close()

	router := newProxyRouter(&config.Config{OpenAIBaseURL: upstream.URL, OpenAIAPIKey: "key"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/openai?endpoint=audio/speech", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["audio"])
}

func TestProxyRelaysJSONWithUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer upstream.Close()

	router := newProxyRouter(&config.Config{OpenAIBaseURL: upstream.URL, OpenAIAPIKey: "key"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/openai?endpoint=chat/completions", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":{"message":"rate limited"}}`, w.Body.String())
}

func TestProxyCatchAllForwardsPath(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	router := newProxyRouter(&config.Config{WavespeedBaseURL: upstream.URL, WavespeedAPIKey: "key"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/wavespeed-proxy/predictions/abc/result", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/predictions/abc/result", gotPath)
}
