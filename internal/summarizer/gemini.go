package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/retry"
	"meeting-insights-go/internal/upstream"
)

const (
	GeminiService      = "gemini"
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel = "gemini-pro"
)

type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Retry   retry.Policy
}

type GeminiBackend struct {
	cfg GeminiConfig
	up  *upstream.Client
	log *logrus.Entry
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (r geminiResponse) text() (string, bool) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", false
	}
	return r.Candidates[0].Content.Parts[0].Text, true
}

func NewGemini(cfg GeminiConfig, log *logrus.Entry) *GeminiBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &GeminiBackend{
		cfg: cfg,
		up:  upstream.NewClient(GeminiService, cfg.Timeout),
		log: log.WithField("component", "gemini"),
	}
}

func (g *GeminiBackend) Name() string { return GeminiService }

func (g *GeminiBackend) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.BaseURL, "/"), url.PathEscape(g.cfg.Model), url.QueryEscape(g.cfg.APIKey))
}

func (g *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	if g.cfg.APIKey == "" {
		return "", apierror.New(apierror.KindAuth, GeminiService, "api key missing")
	}
	payload := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}

	var body []byte
	err := g.cfg.Retry.Do(ctx, func(attempt int) error {
		b, err := g.up.PostJSON(ctx, g.endpoint(), nil, payload)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, func(err error, wait time.Duration) {
		g.log.WithField("error", err.Error()).WithField("wait", wait.String()).Warn("gemini attempt failed, backing off")
	})
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apierror.Wrap(apierror.KindInvalidResponse, GeminiService, err)
	}
	text, ok := resp.text()
	if !ok {
		return "", apierror.New(apierror.KindIncomplete, GeminiService, "no candidates in response")
	}
	return text, nil
}
