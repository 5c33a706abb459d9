package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	// GitHub access
	GitHubToken string
	GitHubAPI   string
	GitHubHost  string
	// Default repo owner when a caller provides a bare repo name
	DefaultRepoOwner string
	// AI review
	OpenAIAPIKey     string
	Model            string
	ReviewMaxTokens  int
	ReviewRubricFile string
	// Persisted state
	StateFile string
	// Feed poller
	PollInterval time.Duration
	// Request executor
	HTTPRetries int
	HTTPBackoff time.Duration
	// Notification delivery
	NotifyWebhookURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:             getEnvDefault("PORT", "8080"),
		AllowedOrigin:    getEnvDefault("ALLOWED_ORIGIN", "*"),
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		GitHubAPI:        getEnvDefault("GITHUB_API", "https://api.github.com"),
		GitHubHost:       getEnvDefault("GITHUB_HOST", "github.com"),
		DefaultRepoOwner: os.Getenv("DEFAULT_REPO_OWNER"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		Model:            getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		ReviewMaxTokens:  getEnvIntDefault("REVIEW_MAX_TOKENS", 150),
		ReviewRubricFile: getEnvDefault("REVIEW_RUBRIC_FILE", "./prompts/review.yaml"),
		StateFile:        getEnvDefault("STATE_FILE", "data/repowatch.json"),
		PollInterval:     getEnvDurationDefault("POLL_INTERVAL", time.Minute),
		HTTPRetries:      getEnvIntDefault("HTTP_RETRIES", 3),
		HTTPBackoff:      getEnvDurationDefault("HTTP_BACKOFF", time.Second),
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("warning: OPENAI_API_KEY is not set; AI review will report itself unavailable")
	}
	if cfg.GitHubToken == "" {
		log.Println("warning: GITHUB_TOKEN is not set; GitHub calls will be unauthenticated and rate-limited")
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			return d
		}
	}
	return def
}
