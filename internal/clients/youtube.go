package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"newsroom-server/internal/config"
	"newsroom-server/internal/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeClient uploads rendered videos through the YouTube Data API v3
// using an OAuth2 refresh-token credential.
type YouTubeClient struct {
	clientID     string
	clientSecret string
	refreshToken string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewYouTubeClient creates the client. Credentials may be absent; Upload
// then fails with a configuration error.
func NewYouTubeClient(cfg *config.Config, logger *zap.Logger) *YouTubeClient {
	return &YouTubeClient{
		clientID:     cfg.YouTubeClientID,
		clientSecret: cfg.YouTubeClientSecret,
		refreshToken: cfg.YouTubeRefreshToken,
		httpClient:   &http.Client{Timeout: 10 * time.Minute},
		logger:       logger.Named("YouTubeClient"),
	}
}

// Configured reports whether the OAuth credential triple is present.
func (c *YouTubeClient) Configured() bool {
	return c.clientID != "" && c.clientSecret != "" && c.refreshToken != ""
}

// Upload downloads the rendered video from videoURL and uploads it with
// the given metadata. Returns the new YouTube video id.
func (c *YouTubeClient) Upload(ctx context.Context, videoURL string, meta *models.ViralMetadata) (string, error) {
	if !c.Configured() {
		return "", &models.ConfigurationError{
			Key:  "YOUTUBE_CLIENT_ID/YOUTUBE_CLIENT_SECRET/YOUTUBE_REFRESH_TOKEN",
			Hint: "set the OAuth credential triple to enable publishing",
		}
	}
	if meta == nil {
		return "", &models.ValidationError{Field: "viral_metadata", Reason: "must be present before publishing"}
	}

	conf := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: c.refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	oauthClient := oauth2.NewClient(ctx, conf.TokenSource(ctx, token))

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(oauthClient))
	if err != nil {
		return "", fmt.Errorf("failed to create youtube service: %w", err)
	}

	// Stream the rendered file straight from storage into the resumable
	// upload, no temp file.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build video download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download rendered video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &models.UpstreamError{Provider: "storage", Status: resp.StatusCode, Body: "rendered video download failed"}
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  "25", // News & Politics
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Media(resp.Body)

	uploaded, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload failed: %w", err)
	}

	c.logger.Info("Video uploaded to YouTube",
		zap.String("videoID", uploaded.Id), zap.String("title", meta.Title))
	return uploaded.Id, nil
}
