package transcription

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/types"
	"meeting-insights-go/internal/upstream"
)

const (
	DefaultConfigURL        = "https://meity-auth.ulcacontrib.org/ulca/apis/v0/model/getModelsPipeline"
	DefaultDiscoveryTimeout = 10 * time.Second
)

type DiscoveryConfig struct {
	ConfigURL  string
	UserID     string
	ULCAAPIKey string
	PipelineID string
	Timeout    time.Duration
}

// Enabled reports whether enough credentials are set to run discovery.
func (d DiscoveryConfig) Enabled() bool {
	return d.UserID != "" && d.ULCAAPIKey != "" && d.PipelineID != ""
}

// Endpoint is the inference endpoint resolved from the pipeline config call.
type Endpoint struct {
	ComputeURL   string
	InferenceKey string
}

type discoveryRequest struct {
	PipelineTasks         []upstream.PipelineTask `json:"pipelineTasks"`
	PipelineRequestConfig struct {
		PipelineID string `json:"pipelineId"`
	} `json:"pipelineRequestConfig"`
}

type discoveryResponse struct {
	PipelineInferenceAPIEndPoint struct {
		CallbackURL     string `json:"callbackUrl"`
		InferenceAPIKey struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"inferenceApiKey"`
	} `json:"pipelineInferenceAPIEndPoint"`
}

// Discover asks the pipeline config service for the compute endpoint and its
// inference key. It is called once at startup; the result is read-only.
func Discover(ctx context.Context, cfg DiscoveryConfig, langs types.LanguagePair, log *logrus.Entry) (Endpoint, error) {
	if cfg.ConfigURL == "" {
		cfg.ConfigURL = DefaultConfigURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDiscoveryTimeout
	}
	log = log.WithField("component", "transcription.discovery")

	var req discoveryRequest
	req.PipelineTasks = []upstream.PipelineTask{
		{TaskType: TaskASR, Config: upstream.TaskConfig{Language: &upstream.LanguageConfig{SourceLanguage: langs.Source}}},
		{TaskType: TaskTranslation, Config: upstream.TaskConfig{Language: &upstream.LanguageConfig{SourceLanguage: langs.Source, TargetLanguage: langs.Target}}},
	}
	req.PipelineRequestConfig.PipelineID = cfg.PipelineID

	up := upstream.NewClient(Service, cfg.Timeout)
	body, err := up.PostJSON(ctx, cfg.ConfigURL, map[string]string{
		"userID":     cfg.UserID,
		"ulcaApiKey": cfg.ULCAAPIKey,
	}, req)
	if err != nil {
		log.WithField("error", err.Error()).Warn("pipeline discovery failed")
		return Endpoint{}, err
	}

	var resp discoveryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Endpoint{}, apierror.Wrap(apierror.KindInvalidResponse, Service, err)
	}
	ep := Endpoint{
		ComputeURL:   resp.PipelineInferenceAPIEndPoint.CallbackURL,
		InferenceKey: resp.PipelineInferenceAPIEndPoint.InferenceAPIKey.Value,
	}
	if ep.ComputeURL == "" {
		return Endpoint{}, apierror.New(apierror.KindIncomplete, Service, "pipeline config has no callbackUrl")
	}
	log.WithField("compute_url", ep.ComputeURL).Info("pipeline endpoint discovered")
	return ep, nil
}
