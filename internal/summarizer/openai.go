package summarizer

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/retry"
)

const (
	OpenAIService      = "openai"
	DefaultOpenAIModel = openai.GPT4oMini
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Retry   retry.Policy
}

type OpenAIBackend struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	retry   retry.Policy
	log     *logrus.Entry
}

func NewOpenAI(cfg OpenAIConfig, log *logrus.Entry) *OpenAIBackend {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		log:     log.WithField("component", "openai"),
	}
}

func (o *OpenAIBackend) Name() string { return OpenAIService }

func (o *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You analyze meetings and answer only with JSON."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var answer string
	err := o.retry.Do(ctx, func(attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		resp, err := o.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return apierror.New(apierror.KindIncomplete, OpenAIService, "no choices in response")
		}
		answer = resp.Choices[0].Message.Content
		return nil
	}, func(err error, wait time.Duration) {
		o.log.WithField("error", err.Error()).WithField("wait", wait.String()).Warn("openai attempt failed, backing off")
	})
	return answer, err
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apierror.FromStatus(OpenAIService, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apierror.FromStatus(OpenAIService, reqErr.HTTPStatusCode, reqErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apierror.Wrap(apierror.KindTimeout, OpenAIService, err)
	}
	return apierror.Wrap(apierror.KindUnreachable, OpenAIService, err)
}
