package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/bidrank/internal/rank"
	"github.com/dgallion1/bidrank/internal/rater"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Scoring
	WeightsFile     string
	RaterProvider   string
	RaterModel      string
	RaterAPIKey     string
	RaterBaseURL    string
	RaterTimeout    time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxPromptTokens int

	// Worker pool
	WorkerCount       int
	MaxConcurrentRate int
	MaxQueueSize      int

	// Upload limits
	MaxUploadBytes int64
	MaxBatchSize   int

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	StorePath   string
	CORSOrigins []string
}

// ConfigError reports an unusable setting or weights file.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// providerKeyEnv is the provider-specific variable consulted when
// RATER_API_KEY is unset.
var providerKeyEnv = map[string]string{
	rater.ProviderClaude: "ANTHROPIC_API_KEY",
	rater.ProviderGemini: "GEMINI_API_KEY",
	rater.ProviderOpenAI: "OPENAI_API_KEY",
}

// Load reads settings from the environment, after loading .env if present.
func Load() Config {
	_ = godotenv.Load()

	provider := strings.ToLower(envOr("RATER_PROVIDER", rater.ProviderGemini))
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("BIDRANK_API_KEY"),

		WeightsFile:     os.Getenv("WEIGHTS_FILE"),
		RaterProvider:   provider,
		RaterModel:      os.Getenv("RATER_MODEL"),
		RaterAPIKey:     envOr("RATER_API_KEY", os.Getenv(providerKeyEnv[provider])),
		RaterBaseURL:    os.Getenv("RATER_BASE_URL"),
		RaterTimeout:    envDuration("RATER_TIMEOUT", 60*time.Second),
		RateLimitRPS:    envFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:  envInt("RATE_LIMIT_BURST", 5),
		MaxPromptTokens: envInt("MAX_PROMPT_TOKENS", 6000),

		WorkerCount:       envInt("WORKER_COUNT", 2),
		MaxConcurrentRate: envInt("MAX_CONCURRENT_RATE", 5),
		MaxQueueSize:      envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB per batch
		MaxBatchSize:   envInt("MAX_BATCH_SIZE", 50),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		StorePath:   envOr("STORE_PATH", "bidrank.db"),
		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),
	}
	if provider == rater.ProviderGemini && cfg.RaterAPIKey == "" {
		cfg.RaterAPIKey = os.Getenv("GOOGLE_API_KEY")
	}

	if cfg.RaterTimeout <= 0 {
		cfg.RaterTimeout = 60 * time.Second
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 1
	}
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = 6000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxConcurrentRate <= 0 {
		cfg.MaxConcurrentRate = 5
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 50
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks settings shared by the server and the CLI.
func (c Config) Validate() error {
	if _, ok := providerKeyEnv[c.RaterProvider]; !ok {
		return &ConfigError{Field: "RATER_PROVIDER", Err: fmt.Errorf("unknown provider %q", c.RaterProvider)}
	}
	if c.RateLimitRPS < 0 {
		return &ConfigError{Field: "RATE_LIMIT_RPS", Err: fmt.Errorf("must not be negative: %g", c.RateLimitRPS)}
	}
	return nil
}

// ValidateServer additionally requires the HTTP bearer token.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return &ConfigError{Field: "BIDRANK_API_KEY", Err: fmt.Errorf("is required")}
	}
	return nil
}

// LoadWeights reads a weights file. An empty path yields the defaults.
func LoadWeights(path string) (rank.Weights, error) {
	if path == "" {
		return rank.DefaultWeights(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return rank.Weights{}, &ConfigError{Field: "weights", Err: err}
	}
	defer f.Close()

	w, err := rank.ParseWeights(f)
	if err != nil {
		return rank.Weights{}, &ConfigError{Field: "weights", Err: fmt.Errorf("%s: %w", path, err)}
	}
	return w, nil
}

// RaterOptions maps the scoring settings onto rater options.
func (c Config) RaterOptions() rater.Options {
	return rater.Options{
		Timeout:         c.RaterTimeout,
		RatePerSecond:   c.RateLimitRPS,
		Burst:           c.RateLimitBurst,
		MaxPromptTokens: c.MaxPromptTokens,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
