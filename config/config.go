package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/joho/godotenv"

	"github.com/use-agent/chateval/models"
)

// Config holds all harness configuration.
type Config struct {
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Judge    JudgeConfig
	Tracking TrackingConfig
	Runner   RunnerConfig
	Cache    CacheConfig
	Webhook  WebhookConfig
	Server   ServerConfig
	Log      LogConfig
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity.
	MaxPages int // default: 2

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls how a prompt is submitted and its answer read.
type ScraperConfig struct {
	// TargetURL is the chat application to drive.
	TargetURL string // default: "https://chat.langchain.com"

	// Timeout bounds the wait for the answer to finish rendering.
	// It does not bound navigation or the whole scrape call.
	Timeout time.Duration // default: 30000ms

	// NavigationTimeout is the max time for page load and input lookup.
	NavigationTimeout time.Duration // default: 15s

	// PollInterval is how often the answer container is sampled while
	// waiting for completion.
	PollInterval time.Duration // default: 300ms

	// StablePolls is how many consecutive unchanged samples of the
	// answer text count as "rendering finished".
	StablePolls int // default: 3

	// InputSelector locates the prompt input control.
	InputSelector string // default: `div[role="textbox"], textarea`

	// AnswerSelector locates answer containers; the last match is read.
	AnswerSelector string // default: `[class*="message"], [class*="response"], [class*="assistant"]`

	// LoadingSelector matches the streaming/loading indicator whose
	// absence signals completion.
	LoadingSelector string // default: `[class*="loading"], [class*="streaming"]`

	// CompleteSelector matches an element that only appears once the
	// answer is fully rendered (the Copy button on the current page).
	CompleteSelector string // default: `button[aria-label="Copy"], button[title="Copy"]`

	// MessageSelector matches individual transcript messages, for the
	// message count carried on the response record.
	MessageSelector string // default: `[class*="message"]`

	// AcceptLanguage is sent as an extra header when non-empty.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// BlockedResourceTypes lists resource types to block during the
	// scrape. default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// JudgeConfig controls the LLM-as-judge provider.
type JudgeConfig struct {
	// APIKey authenticates against the grading model provider. Required.
	APIKey string // env: OPENAI_API_KEY

	// Model is the grading model name.
	Model string // default: "gpt-4o-mini"

	// BaseURL is the OpenAI-compatible API root.
	BaseURL string // default: "https://api.openai.com/v1"
}

// TrackingConfig controls the results-tracking service.
type TrackingConfig struct {
	// APIKey authenticates against the tracking service. Required.
	APIKey string // env: LANGSMITH_API_KEY

	// BaseURL is the tracking API root.
	BaseURL string // default: "https://api.smith.langchain.com"

	// AppURL is the hosted UI root used to build result links.
	AppURL string // default: "https://smith.langchain.com"

	// DatasetName overrides the dataset name registered in the service.
	DatasetName string

	// ExperimentPrefix prefixes the per-run experiment name.
	ExperimentPrefix string // default: "chateval"
}

// RunnerConfig controls the per-example evaluation loop.
type RunnerConfig struct {
	// ContinueOnScrapeError records a failed example and moves on when
	// true; aborts the run when false. Judge errors always abort.
	ContinueOnScrapeError bool // default: true

	// ScrapeRPS paces scrape calls against the chat site.
	ScrapeRPS float64 // default: 0.5

	// Burst is the pacing token bucket size.
	Burst int // default: 1
}

// CacheConfig controls the scraped-answer cache.
type CacheConfig struct {
	// Enabled toggles answer caching across examples and runs.
	Enabled bool // default: false

	// MaxEntries is the maximum number of cached answers.
	MaxEntries int // default: 256

	// TTL is how long a cached answer stays valid.
	TTL time.Duration // default: 1h
}

// WebhookConfig controls the optional run-completion webhook.
type WebhookConfig struct {
	URL    string
	Secret string
}

// ServerConfig controls the local results viewer.
type ServerConfig struct {
	Addr string // default: "127.0.0.1:8418"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from the environment with sane defaults.
// A .env file in the working directory is folded in first, when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Browser: BrowserConfig{
			Headless:   envBoolOr("CHATEVAL_HEADLESS", true),
			MaxPages:   envIntOr("CHATEVAL_MAX_PAGES", 2),
			NoSandbox:  envBoolOr("CHATEVAL_NO_SANDBOX", false),
			BrowserBin: os.Getenv("CHATEVAL_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			TargetURL:         envOr("CHATEVAL_TARGET_URL", "https://chat.langchain.com"),
			Timeout:           time.Duration(envIntOr("CHATEVAL_TIMEOUT_MS", 30000)) * time.Millisecond,
			NavigationTimeout: envDurationOr("CHATEVAL_NAV_TIMEOUT", 15*time.Second),
			PollInterval:      envDurationOr("CHATEVAL_POLL_INTERVAL", 300*time.Millisecond),
			StablePolls:       envIntOr("CHATEVAL_STABLE_POLLS", 3),
			InputSelector:     envOr("CHATEVAL_INPUT_SELECTOR", `div[role="textbox"], textarea`),
			AnswerSelector: envOr("CHATEVAL_ANSWER_SELECTOR",
				`[class*="message"], [class*="response"], [class*="assistant"]`),
			LoadingSelector: envOr("CHATEVAL_LOADING_SELECTOR",
				`[class*="loading"], [class*="streaming"]`),
			CompleteSelector: envOr("CHATEVAL_COMPLETE_SELECTOR",
				`button[aria-label="Copy"], button[title="Copy"]`),
			MessageSelector: envOr("CHATEVAL_MESSAGE_SELECTOR", `[class*="message"]`),
			AcceptLanguage:  envOr("CHATEVAL_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			BlockedResourceTypes: envSliceOr("CHATEVAL_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Judge: JudgeConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envOr("CHATEVAL_JUDGE_MODEL", "gpt-4o-mini"),
			BaseURL: envOr("CHATEVAL_JUDGE_BASE_URL", "https://api.openai.com/v1"),
		},
		Tracking: TrackingConfig{
			APIKey:           os.Getenv("LANGSMITH_API_KEY"),
			BaseURL:          envOr("CHATEVAL_TRACKING_BASE_URL", "https://api.smith.langchain.com"),
			AppURL:           envOr("CHATEVAL_TRACKING_APP_URL", "https://smith.langchain.com"),
			DatasetName:      os.Getenv("CHATEVAL_DATASET_NAME"),
			ExperimentPrefix: envOr("CHATEVAL_EXPERIMENT_PREFIX", "chateval"),
		},
		Runner: RunnerConfig{
			ContinueOnScrapeError: envBoolOr("CHATEVAL_CONTINUE_ON_SCRAPE_ERROR", true),
			ScrapeRPS:             envFloatOr("CHATEVAL_SCRAPE_RPS", 0.5),
			Burst:                 envIntOr("CHATEVAL_SCRAPE_BURST", 1),
		},
		Cache: CacheConfig{
			Enabled:    envBoolOr("CHATEVAL_CACHE_ENABLED", false),
			MaxEntries: envIntOr("CHATEVAL_CACHE_MAX_ENTRIES", 256),
			TTL:        envDurationOr("CHATEVAL_CACHE_TTL", time.Hour),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("CHATEVAL_WEBHOOK_URL"),
			Secret: os.Getenv("CHATEVAL_WEBHOOK_SECRET"),
		},
		Server: ServerConfig{
			Addr: envOr("CHATEVAL_SERVE_ADDR", "127.0.0.1:8418"),
		},
		Log: LogConfig{
			Level:  envOr("CHATEVAL_LOG_LEVEL", "info"),
			Format: envOr("CHATEVAL_LOG_FORMAT", "json"),
		},
	}
}

// Validate checks required credentials and selector syntax. It must pass
// before any browser or provider is touched.
func (c *Config) Validate() error {
	if c.Judge.APIKey == "" {
		return models.NewScrapeError(models.ErrCodeConfig,
			"missing required environment variable OPENAI_API_KEY (grading model provider key)", nil)
	}
	if c.Tracking.APIKey == "" {
		return models.NewScrapeError(models.ErrCodeConfig,
			"missing required environment variable LANGSMITH_API_KEY (results tracking key)", nil)
	}
	return c.ValidateScraper()
}

// ValidateScraper checks only the scraping surface (selectors, timeout).
// Used by entrypoints that scrape without grading.
func (c *Config) ValidateScraper() error {
	if c.Scraper.Timeout <= 0 {
		return models.NewScrapeError(models.ErrCodeConfig,
			"CHATEVAL_TIMEOUT_MS must be positive", nil)
	}
	selectors := map[string]string{
		"CHATEVAL_INPUT_SELECTOR":    c.Scraper.InputSelector,
		"CHATEVAL_ANSWER_SELECTOR":   c.Scraper.AnswerSelector,
		"CHATEVAL_LOADING_SELECTOR":  c.Scraper.LoadingSelector,
		"CHATEVAL_COMPLETE_SELECTOR": c.Scraper.CompleteSelector,
		"CHATEVAL_MESSAGE_SELECTOR":  c.Scraper.MessageSelector,
	}
	for key, sel := range selectors {
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return models.NewScrapeError(models.ErrCodeConfig,
				fmt.Sprintf("invalid CSS selector in %s: %q", key, sel), err)
		}
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
