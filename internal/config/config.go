// Package config loads service configuration from an optional YAML file, a
// .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"meeting-insights-go/internal/diarization"
	"meeting-insights-go/internal/retry"
	"meeting-insights-go/internal/transcription"
)

const DefaultPath = "config/config.yaml"

// Summarizer providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server struct {
		Host                  string `yaml:"host"`
		Port                  int    `yaml:"port"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	} `yaml:"server"`

	Bhashini struct {
		ConfigURL               string `yaml:"config_url"`
		ComputeURL              string `yaml:"compute_url"`
		InferenceKey            string `yaml:"-"`
		UserID                  string `yaml:"user_id"`
		ULCAAPIKey              string `yaml:"-"`
		PipelineID              string `yaml:"pipeline_id"`
		ASRServiceID            string `yaml:"asr_service_id"`
		TranslationServiceID    string `yaml:"translation_service_id"`
		TimeoutSeconds          int    `yaml:"timeout_seconds"`
		DiscoveryTimeoutSeconds int    `yaml:"discovery_timeout_seconds"`
	} `yaml:"bhashini"`

	Diarization struct {
		ComputeURL       string                       `yaml:"compute_url"`
		DefaultServiceID string                       `yaml:"default_service_id"`
		Services         []diarization.SpeakerService `yaml:"services"`
		TimeoutSeconds   int                          `yaml:"timeout_seconds"`
	} `yaml:"diarization"`

	Summarizer struct {
		Provider       string `yaml:"provider"`
		Model          string `yaml:"model"`
		BaseURL        string `yaml:"base_url"`
		GeminiAPIKey   string `yaml:"-"`
		OpenAIAPIKey   string `yaml:"-"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"summarizer"`

	Retry struct {
		MaxAttempts int `yaml:"max_attempts"`
		BaseDelayMs int `yaml:"base_delay_ms"`
	} `yaml:"retry"`

	Storage struct {
		Database   string `yaml:"database"`
		ScratchDir string `yaml:"scratch_dir"`
	} `yaml:"storage"`

	Limits struct {
		MaxUploadMB int `yaml:"max_upload_mb"`
	} `yaml:"limits"`
}

func Default() Config {
	var c Config
	c.Server.Port = 8080
	c.Server.RequestTimeoutSeconds = 300
	c.Bhashini.ConfigURL = transcription.DefaultConfigURL
	c.Bhashini.TimeoutSeconds = 60
	c.Bhashini.DiscoveryTimeoutSeconds = 10
	c.Diarization.DefaultServiceID = "ai4bharat/speaker-diarization"
	c.Diarization.TimeoutSeconds = 60
	c.Summarizer.TimeoutSeconds = 120
	c.Retry.MaxAttempts = retry.DefaultMaxAttempts
	c.Retry.BaseDelayMs = int(retry.DefaultBaseDelay / time.Millisecond)
	c.Storage.Database = "data/outcomes.db"
	c.Limits.MaxUploadMB = 50
	return c
}

// Load reads .env (if present), then the YAML file at path (if present),
// then applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.fill()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(dst *int, key string) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, v)
		}
		*dst = n
		return nil
	}

	str(&c.Bhashini.InferenceKey, "BHASHINI_AUTH_TOKEN")
	str(&c.Bhashini.UserID, "BHASHINI_USER_ID")
	str(&c.Bhashini.ULCAAPIKey, "BHASHINI_ULCA_API_KEY")
	str(&c.Bhashini.PipelineID, "BHASHINI_PIPELINE_ID")
	str(&c.Bhashini.ComputeURL, "BHASHINI_COMPUTE_URL")
	str(&c.Summarizer.GeminiAPIKey, "GEMINI_API_KEY")
	str(&c.Summarizer.OpenAIAPIKey, "OPENAI_API_KEY")
	str(&c.Summarizer.Provider, "SUMMARIZER_PROVIDER")
	str(&c.Storage.Database, "DATABASE_PATH")

	for key, dst := range map[string]*int{
		"PORT":          &c.Server.Port,
		"MAX_UPLOAD_MB": &c.Limits.MaxUploadMB,
	} {
		if err := num(dst, key); err != nil {
			return err
		}
	}
	return nil
}

// fill derives values left empty.
func (c *Config) fill() {
	if c.Diarization.ComputeURL == "" {
		c.Diarization.ComputeURL = c.Bhashini.ComputeURL
	}
	c.Summarizer.Provider = strings.ToLower(strings.TrimSpace(c.Summarizer.Provider))
	if c.Summarizer.Provider == "" {
		c.Summarizer.Provider = ProviderGemini
		if c.Summarizer.GeminiAPIKey == "" && c.Summarizer.OpenAIAPIKey != "" {
			c.Summarizer.Provider = ProviderOpenAI
		}
	}
	// model names are provider specific
	if c.Summarizer.Provider == ProviderOpenAI && strings.HasPrefix(c.Summarizer.Model, "gemini") {
		c.Summarizer.Model = ""
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
	}
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.Limits.MaxUploadMB) * 1024 * 1024
}

func (c Config) Discovery() transcription.DiscoveryConfig {
	return transcription.DiscoveryConfig{
		ConfigURL:  c.Bhashini.ConfigURL,
		UserID:     c.Bhashini.UserID,
		ULCAAPIKey: c.Bhashini.ULCAAPIKey,
		PipelineID: c.Bhashini.PipelineID,
		Timeout:    seconds(c.Bhashini.DiscoveryTimeoutSeconds),
	}
}

func (c Config) Transcription() transcription.Config {
	return transcription.Config{
		ComputeURL:           c.Bhashini.ComputeURL,
		InferenceKey:         c.Bhashini.InferenceKey,
		ASRServiceID:         c.Bhashini.ASRServiceID,
		TranslationServiceID: c.Bhashini.TranslationServiceID,
		Timeout:              seconds(c.Bhashini.TimeoutSeconds),
		Retry:                c.RetryPolicy(),
	}
}

func (c Config) DiarizationClient() diarization.Config {
	return diarization.Config{
		ComputeURL:       c.Diarization.ComputeURL,
		InferenceKey:     c.Bhashini.InferenceKey,
		DefaultServiceID: c.Diarization.DefaultServiceID,
		Services:         c.Diarization.Services,
		Timeout:          seconds(c.Diarization.TimeoutSeconds),
		Retry:            c.RetryPolicy(),
	}
}

// WithEndpoint returns a copy pointing both speech clients at a discovered
// compute endpoint.
func (c Config) WithEndpoint(ep transcription.Endpoint) Config {
	if c.Diarization.ComputeURL == "" || c.Diarization.ComputeURL == c.Bhashini.ComputeURL {
		c.Diarization.ComputeURL = ep.ComputeURL
	}
	c.Bhashini.ComputeURL = ep.ComputeURL
	if ep.InferenceKey != "" {
		c.Bhashini.InferenceKey = ep.InferenceKey
	}
	return c
}

func (c Config) RequestTimeout() time.Duration {
	return seconds(c.Server.RequestTimeoutSeconds)
}

func (c Config) SummarizerTimeout() time.Duration {
	return seconds(c.Summarizer.TimeoutSeconds)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
