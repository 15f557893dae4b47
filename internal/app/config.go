package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	LogLevel    string
	SentryDSN   string

	// Speech-to-text
	STTProvider    string // whisper or deepgram
	STTLanguage    string
	OpenAIAPIKey   string
	WhisperBaseURL string
	WhisperModel   string
	DeepgramAPIKey string
	DeepgramURL    string
	DeepgramModel  string

	// Summarization (OpenAI-compatible chat completions)
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int

	// Bounds for every model call and for startup warmup retries
	ModelTimeout   time.Duration
	WarmupInterval time.Duration

	// Sessions
	TemplatesPath string
	AudioDir      string
	MaxUploadMB   int

	// JWT Authentication (disabled when empty)
	JWTSecret string

	// Discord webhook for session alerts (disabled when empty)
	DiscordWebhookURL string

	ShutdownTimeout time.Duration
}

func LoadConfigFromEnv() Config {
	openAIKey := getenv("OPENAI_API_KEY", "")

	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		SentryDSN:   getenv("SENTRY_DSN", ""),

		// Speech-to-text
		STTProvider:    strings.ToLower(getenv("STT_PROVIDER", "whisper")),
		STTLanguage:    getenv("STT_LANGUAGE", "en"),
		OpenAIAPIKey:   openAIKey,
		WhisperBaseURL: getenv("WHISPER_BASE_URL", "https://api.openai.com/v1"),
		WhisperModel:   getenv("WHISPER_MODEL", "whisper-1"),
		DeepgramAPIKey: getenv("DEEPGRAM_API_KEY", ""),
		DeepgramURL:    getenv("DEEPGRAM_URL", "wss://api.deepgram.com/v1/listen"),
		DeepgramModel:  getenv("DEEPGRAM_MODEL", "nova-2-medical"),

		// Summarization
		LLMBaseURL:     getenv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      getenv("LLM_API_KEY", openAIKey),
		LLMModel:       getenv("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature: getenvFloatClamped("LLM_TEMPERATURE", 0.3, 0.0, 2.0),
		LLMMaxTokens:   getenvIntClamped("LLM_MAX_TOKENS", 1000, 64, 16000),

		ModelTimeout:   getenvDuration("MODEL_TIMEOUT", 2*time.Minute),
		WarmupInterval: getenvDuration("WARMUP_INTERVAL", 5*time.Second),

		// Sessions
		TemplatesPath: getenv("TEMPLATES_PATH", ""),
		AudioDir:      getenv("AUDIO_DIR", ""),
		MaxUploadMB:   getenvIntClamped("MAX_UPLOAD_MB", 50, 1, 1024),

		JWTSecret: os.Getenv("JWT_SECRET"),

		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),

		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Validate reports configuration that would make the service unusable.
func (c Config) Validate() error {
	var errs []error
	switch c.STTProvider {
	case "whisper":
		if c.OpenAIAPIKey == "" && strings.Contains(c.WhisperBaseURL, "api.openai.com") {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the OpenAI whisper endpoint"))
		}
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			errs = append(errs, errors.New("DEEPGRAM_API_KEY is required when STT_PROVIDER=deepgram"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STT_PROVIDER %q (want whisper or deepgram)", c.STTProvider))
	}
	if c.ModelTimeout <= 0 {
		errs = append(errs, errors.New("MODEL_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvIntClamped parses an int env var, falling back to def when unset or
// invalid and clamping the result to [min, max].
func getenvIntClamped(k string, def, min, max int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// getenvFloatClamped parses a float env var, falling back to def when unset
// or invalid and clamping the result to [min, max].
func getenvFloatClamped(k string, def, min, max float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func getenvDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
