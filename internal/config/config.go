package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the full configuration for the newsroom server. It is
// built once at startup and passed into every constructor; business logic
// never reads the environment directly.
type Config struct {
	// Server settings
	Env      string `envconfig:"APP_ENV" default:"development"`
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// PostgreSQL settings
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Secret field, loaded from a secret file
	DBPassword string

	// Redis settings
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	// RabbitMQ settings
	RabbitMQURL            string `envconfig:"RABBITMQ_URL" required:"true"`
	ClientUpdatesQueueName string `envconfig:"CLIENT_UPDATES_QUEUE_NAME" default:"client_updates"`

	// Object storage (Supabase-style REST API)
	StorageURL        string `envconfig:"STORAGE_URL"`
	StorageBucket     string `envconfig:"STORAGE_BUCKET" default:"assets"`
	StorageServiceKey string `envconfig:"STORAGE_SERVICE_KEY"`

	// Generation providers. Keys are optional here; each call site fails
	// its own request with a configuration error when the key it needs
	// is absent.
	ElevenLabsAPIKey  string `envconfig:"ELEVENLABS_API_KEY"`
	ElevenLabsBaseURL string `envconfig:"ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io"`
	ElevenLabsVoiceID string `envconfig:"ELEVENLABS_VOICE_ID" default:"pNInz6obpgDQGcFmaJgB"`
	ElevenLabsModel   string `envconfig:"ELEVENLABS_MODEL" default:"eleven_multilingual_v2"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`

	WavespeedAPIKey     string `envconfig:"WAVESPEED_API_KEY"`
	WavespeedBaseURL    string `envconfig:"WAVESPEED_BASE_URL" default:"https://api.wavespeed.ai"`
	WavespeedModel      string `envconfig:"WAVESPEED_MODEL" default:"wavespeed-ai/ovi"`
	WavespeedMergeModel string `envconfig:"WAVESPEED_MERGE_MODEL" default:"wavespeed-ai/video-merge"`

	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	GeminiVideoModel string `envconfig:"GEMINI_VIDEO_MODEL" default:"veo-2.0-generate-001"`

	YouTubeClientID     string `envconfig:"YOUTUBE_CLIENT_ID"`
	YouTubeClientSecret string `envconfig:"YOUTUBE_CLIENT_SECRET"`
	YouTubeRefreshToken string `envconfig:"YOUTUBE_REFRESH_TOKEN"`

	// AI text generation settings
	AIProvider       string        `envconfig:"AI_PROVIDER" default:"openai"`
	ScriptModel      string        `envconfig:"SCRIPT_MODEL" default:"gpt-4o"`
	OllamaBaseURL    string        `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	OllamaModel      string        `envconfig:"OLLAMA_MODEL" default:"llama3"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIBaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"2s"`
	ScriptTokenLimit int           `envconfig:"SCRIPT_TOKEN_LIMIT" default:"8000"`

	// Segment batch concurrency caps. Audio defaults to 2 to stay under
	// the TTS provider's concurrent-request ceiling.
	AudioConcurrency  int           `envconfig:"AUDIO_CONCURRENCY" default:"2"`
	VideoConcurrency  int           `envconfig:"VIDEO_CONCURRENCY" default:"4"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"300s"`

	PublicURLCacheTTL time.Duration `envconfig:"PUBLIC_URL_CACHE_TTL" default:"10m"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads configuration from environment variables and secret
// files. Provider API keys may come from either source; the database
// password must come from a secret file or DB_PASSWORD.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var err error
	cfg.DBPassword, err = ReadSecret("db_password", "DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// Secret files override env values for provider keys when present.
	overrideFromSecret(&cfg.ElevenLabsAPIKey, "elevenlabs_api_key")
	overrideFromSecret(&cfg.OpenAIAPIKey, "openai_api_key")
	overrideFromSecret(&cfg.WavespeedAPIKey, "wavespeed_api_key")
	overrideFromSecret(&cfg.GeminiAPIKey, "gemini_api_key")
	overrideFromSecret(&cfg.StorageServiceKey, "storage_service_key")
	overrideFromSecret(&cfg.YouTubeClientSecret, "youtube_client_secret")
	overrideFromSecret(&cfg.YouTubeRefreshToken, "youtube_refresh_token")

	log.Printf("Newsroom server configuration loaded:")
	log.Printf("  Env: %s, Port: %s, LogLevel: %s", cfg.Env, cfg.Port, cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  Redis: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Client Updates Queue: %s", cfg.ClientUpdatesQueueName)
	log.Printf("  Storage: %s bucket %q", cfg.StorageURL, cfg.StorageBucket)
	log.Printf("  AI provider: %s (model %s)", cfg.AIProvider, cfg.ScriptModel)
	log.Printf("  Providers configured: elevenlabs=%t openai=%t wavespeed=%t gemini=%t youtube=%t",
		cfg.ElevenLabsAPIKey != "", cfg.OpenAIAPIKey != "", cfg.WavespeedAPIKey != "",
		cfg.GeminiAPIKey != "", cfg.YouTubeRefreshToken != "")
	log.Printf("  Concurrency: audio=%d video=%d", cfg.AudioConcurrency, cfg.VideoConcurrency)

	return &cfg, nil
}
