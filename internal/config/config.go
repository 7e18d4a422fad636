// Package config builds the service configuration once at startup. Values
// are layered: built-in defaults, then the YAML file named by CONFIG_FILE,
// then the process environment (including a .env file, if present).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mediaquiz/internal/r2"
	"mediaquiz/internal/retry"
)

// Providers for transcription and quiz generation.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const mib = 1 << 20

// Config is the whole service configuration.
type Config struct {
	Port        string `yaml:"port"`
	GinMode     string `yaml:"gin_mode"`
	FrontendURL string `yaml:"frontend_url"`
	UserAgent   string `yaml:"user_agent"`

	TranscribeProvider string `yaml:"transcribe_provider"`
	QuizProvider       string `yaml:"quiz_provider"`

	OpenAI   OpenAIConfig   `yaml:"openai"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Fallback FallbackConfig `yaml:"video_fallback"`
	R2       r2.Config      `yaml:"r2"`
	Limits   LimitsConfig   `yaml:"limits"`
	Retry    RetryConfig    `yaml:"retry"`

	NotifyWebhookURL string        `yaml:"notify_webhook_url"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

type OpenAIConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	TranscribeModel string `yaml:"transcribe_model"`
	QuizModel       string `yaml:"quiz_model"`
	Language        string `yaml:"language"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// FallbackConfig points at the secondary video resolution service. An empty
// Endpoint is allowed; requests that need it fail with a configuration error.
type FallbackConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// LimitsConfig holds per-channel byte ceilings and quiz bounds.
type LimitsConfig struct {
	UploadBytes int64 `yaml:"upload_bytes"`
	DirectBytes int64 `yaml:"direct_bytes"`
	VideoBytes  int64 `yaml:"video_bytes"`

	DefaultQuestions int `yaml:"default_questions"`
	MaxQuestions     int `yaml:"max_questions"`
	MaxSourceChars   int `yaml:"max_source_chars"`

	// LenientUnknownAsMP3 accepts unrecognised bytes as mp3.
	LenientUnknownAsMP3 bool `yaml:"lenient_unknown_as_mp3"`
}

// Backoff is the retry budget of one collaborator.
type Backoff struct {
	Tries     int           `yaml:"tries"`
	BaseDelay time.Duration `yaml:"base_delay"`
}

type RetryConfig struct {
	Direct     Backoff       `yaml:"direct"`
	Video      Backoff       `yaml:"video"`
	Fallback   Backoff       `yaml:"fallback"`
	Transcribe Backoff       `yaml:"transcribe"`
	Quiz       Backoff       `yaml:"quiz"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// Policy turns b into a retry.Policy capped at the configured max delay.
func (r RetryConfig) Policy(b Backoff) retry.Policy {
	return retry.Policy{Tries: b.Tries, BaseDelay: b.BaseDelay, MaxDelay: r.MaxDelay}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:               "10000",
		GinMode:            "release",
		FrontendURL:        "*",
		UserAgent:          "Mozilla/5.0 (compatible; mediaquiz/1.0)",
		TranscribeProvider: ProviderOpenAI,
		QuizProvider:       ProviderOpenAI,
		OpenAI: OpenAIConfig{
			TranscribeModel: "gpt-4o-transcribe",
			QuizModel:       "gpt-4o-mini",
			Language:        "pt",
		},
		Gemini: GeminiConfig{Model: "gemini-2.0-flash"},
		Limits: LimitsConfig{
			UploadBytes:      25 * mib,
			DirectBytes:      25 * mib,
			VideoBytes:       20 * mib,
			DefaultQuestions: 5,
			MaxQuestions:     20,
			MaxSourceChars:   120000,
		},
		Retry: RetryConfig{
			Direct:     Backoff{Tries: 4, BaseDelay: 600 * time.Millisecond},
			Video:      Backoff{Tries: 3, BaseDelay: 400 * time.Millisecond},
			Fallback:   Backoff{Tries: 3, BaseDelay: 500 * time.Millisecond},
			Transcribe: Backoff{Tries: 5, BaseDelay: 700 * time.Millisecond},
			Quiz:       Backoff{Tries: 4, BaseDelay: 600 * time.Millisecond},
			MaxDelay:   30 * time.Second,
		},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load reads .env (if present), the optional YAML file and the environment,
// then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
		log.Println("INFO: .env file not found. Relying on system environment variables.")
	} else {
		log.Println("INFO: .env file loaded successfully.")
	}

	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from defaults, the YAML file named by CONFIG_FILE
// and the variables visible through lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		log.Printf("INFO: Loaded configuration file %s", path)
	}

	e := env{lookup: lookup}
	e.str("PORT", &cfg.Port)
	e.str("GIN_MODE", &cfg.GinMode)
	e.str("FRONTEND_URL", &cfg.FrontendURL)
	e.str("USER_AGENT", &cfg.UserAgent)
	e.str("TRANSCRIBE_PROVIDER", &cfg.TranscribeProvider)
	e.str("QUIZ_PROVIDER", &cfg.QuizProvider)

	e.str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	e.str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	e.str("OPENAI_TRANSCRIBE_MODEL", &cfg.OpenAI.TranscribeModel)
	e.str("OPENAI_QUIZ_MODEL", &cfg.OpenAI.QuizModel)
	e.str("TRANSCRIBE_LANGUAGE", &cfg.OpenAI.Language)
	e.str("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	e.str("GEMINI_MODEL", &cfg.Gemini.Model)

	e.str("VIDEO_FALLBACK_ENDPOINT", &cfg.Fallback.Endpoint)
	e.str("VIDEO_FALLBACK_TOKEN", &cfg.Fallback.Token)

	e.str("R2_ACCOUNT_ID", &cfg.R2.AccountID)
	e.str("R2_ACCESS_KEY_ID", &cfg.R2.AccessKeyID)
	e.str("R2_SECRET_ACCESS_KEY", &cfg.R2.SecretAccessKey)
	e.str("R2_ENDPOINT", &cfg.R2.Endpoint)

	e.str("NOTIFY_WEBHOOK_URL", &cfg.NotifyWebhookURL)

	e.size("MAX_UPLOAD_BYTES", &cfg.Limits.UploadBytes)
	e.size("MAX_DIRECT_BYTES", &cfg.Limits.DirectBytes)
	e.size("MAX_VIDEO_BYTES", &cfg.Limits.VideoBytes)
	var payload int64
	if e.size("MAX_PAYLOAD_BYTES", &payload) {
		cfg.Limits.UploadBytes, cfg.Limits.DirectBytes, cfg.Limits.VideoBytes = payload, payload, payload
	}
	e.number("DEFAULT_QUESTIONS", &cfg.Limits.DefaultQuestions)
	e.number("MAX_QUESTIONS", &cfg.Limits.MaxQuestions)
	e.number("MAX_SOURCE_CHARS", &cfg.Limits.MaxSourceChars)
	e.flag("LENIENT_UNKNOWN_AS_MP3", &cfg.Limits.LenientUnknownAsMP3)

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	cfg.TranscribeProvider = strings.ToLower(cfg.TranscribeProvider)
	cfg.QuizProvider = strings.ToLower(cfg.QuizProvider)
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem that would stop the service from serving.
func (c *Config) Validate() error {
	var errs []error
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("PORT %q is not a valid port", c.Port))
	}

	for _, sel := range []struct{ name, value string }{
		{"TRANSCRIBE_PROVIDER", c.TranscribeProvider},
		{"QUIZ_PROVIDER", c.QuizProvider},
	} {
		switch sel.value {
		case ProviderOpenAI:
			if c.OpenAI.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s=%s requires OPENAI_API_KEY", sel.name, sel.value))
			}
		case ProviderGemini:
			if c.Gemini.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s=%s requires GEMINI_API_KEY", sel.name, sel.value))
			}
		default:
			errs = append(errs, fmt.Errorf("%s %q is not one of %s, %s", sel.name, sel.value, ProviderOpenAI, ProviderGemini))
		}
	}

	l := c.Limits
	if l.UploadBytes <= 0 || l.DirectBytes <= 0 || l.VideoBytes <= 0 {
		errs = append(errs, errors.New("byte ceilings must be positive"))
	}
	if l.MaxQuestions <= 0 || l.DefaultQuestions <= 0 || l.DefaultQuestions > l.MaxQuestions {
		errs = append(errs, fmt.Errorf("DEFAULT_QUESTIONS (%d) must be between 1 and MAX_QUESTIONS (%d)", l.DefaultQuestions, l.MaxQuestions))
	}
	if l.MaxSourceChars < 0 {
		errs = append(errs, errors.New("MAX_SOURCE_CHARS must not be negative"))
	}
	if c.Fallback.Endpoint == "" {
		log.Println("WARN: VIDEO_FALLBACK_ENDPOINT not set; rate-limited video requests will fail with FALLBACK_NOT_CONFIGURED.")
	}
	return errors.Join(errs...)
}

// env collects typed overrides and their parse errors.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *env) number(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *env) size(key string, dst *int64) bool {
	v, ok := e.get(key)
	if !ok {
		return false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return false
	}
	*dst = n
	return true
}

func (e *env) flag(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*dst = b
	}
}
