package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsroom-server/internal/config"
	"newsroom-server/internal/interfaces"
	"newsroom-server/internal/models"

	"go.uber.org/zap"
)

// Compile-time interface check.
var _ interfaces.ObjectStore = (*supabaseStore)(nil)

// supabaseStore talks to a Supabase-compatible storage REST API with a
// service-role key, so server-side writes bypass row-level security.
type supabaseStore struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSupabaseStore creates the object store client. Returns a
// configuration error when the storage URL or service key is absent.
func NewSupabaseStore(cfg *config.Config, logger *zap.Logger) (interfaces.ObjectStore, error) {
	if cfg.StorageURL == "" {
		return nil, &models.ConfigurationError{Key: "STORAGE_URL", Hint: "set the storage project URL"}
	}
	if cfg.StorageServiceKey == "" {
		return nil, &models.ConfigurationError{Key: "STORAGE_SERVICE_KEY", Hint: "set the service-role key for server-side writes"}
	}
	return &supabaseStore{
		baseURL:    strings.TrimRight(cfg.StorageURL, "/"),
		bucket:     cfg.StorageBucket,
		serviceKey: cfg.StorageServiceKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.Named("SupabaseStore"),
	}, nil
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
}

func (s *supabaseStore) List(ctx context.Context, prefix string) ([]interfaces.ObjectInfo, error) {
	url := fmt.Sprintf("%s/storage/v1/object/list/%s", s.baseURL, s.bucket)
	body, err := json.Marshal(listRequest{Prefix: prefix, Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage list request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamError{Provider: "storage", Status: resp.StatusCode, Body: string(respBody)}
	}

	var objects []interfaces.ObjectInfo
	if err := json.Unmarshal(respBody, &objects); err != nil {
		return nil, fmt.Errorf("failed to decode storage listing: %w", err)
	}
	return objects, nil
}

func (s *supabaseStore) Upload(ctx context.Context, path string, data []byte, contentType string, upsert bool) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(path, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if upsert {
		req.Header.Set("x-upsert", "true")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &models.UpstreamError{Provider: "storage", Status: resp.StatusCode, Body: string(respBody)}
	}

	s.logger.Debug("Object uploaded", zap.String("path", path), zap.Int("size", len(data)))
	return nil
}

func (s *supabaseStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(path, "/"))
}

func (s *supabaseStore) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, "", &models.UpstreamError{Provider: "download", Status: resp.StatusCode, Body: string(respBody)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read downloaded body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
