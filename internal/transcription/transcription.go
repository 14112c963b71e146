package transcription

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/language"
	"meeting-insights-go/internal/retry"
	"meeting-insights-go/internal/types"
	"meeting-insights-go/internal/upstream"
)

const (
	Service          = "bhashini"
	TaskASR          = "asr"
	TaskTranslation  = "translation"
	TransportFormat  = "wav"
	TransportRate    = 16000
	DefaultTimeout   = 60 * time.Second
	minPipelineStage = 2
)

type Config struct {
	ComputeURL           string
	InferenceKey         string
	ASRServiceID         string
	TranslationServiceID string
	Timeout              time.Duration
	Retry                retry.Policy
}

// Client runs the two-stage asr -> translation pipeline.
type Client struct {
	cfg Config
	up  *upstream.Client
	log *logrus.Entry
}

func New(cfg Config, log *logrus.Entry) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg: cfg,
		up:  upstream.NewClient(Service, cfg.Timeout),
		log: log.WithField("component", "transcription"),
	}
}

// Transcribe sends the audio through asr and translation. It fails only with
// an *apierror.Error after retries are exhausted or on a non-retryable status.
func (c *Client) Transcribe(ctx context.Context, audioBase64 string, langs types.LanguagePair) (types.TranscriptionResult, error) {
	langs = language.NormalizePair(langs.Source, langs.Target)
	log := c.log.WithFields(logrus.Fields{
		"source_language": langs.Source,
		"target_language": langs.Target,
	})
	if c.cfg.ComputeURL == "" {
		return failedResult(langs), apierror.New(apierror.KindInternal, Service, "compute endpoint not configured")
	}

	payload := c.buildRequest(audioBase64, langs)
	var resp upstream.PipelineResponse
	err := c.cfg.Retry.Do(ctx, func(attempt int) error {
		log.WithField("attempt", attempt+1).Info("sending pipeline request")
		body, err := c.up.PostJSON(ctx, c.cfg.ComputeURL, map[string]string{"Authorization": c.cfg.InferenceKey}, payload)
		if err != nil {
			return err
		}
		resp = upstream.PipelineResponse{}
		if err := json.Unmarshal(body, &resp); err != nil {
			return apierror.Wrap(apierror.KindInvalidResponse, Service, err)
		}
		return nil
	}, func(err error, wait time.Duration) {
		log.WithField("error", err.Error()).WithField("wait", wait.String()).Warn("pipeline attempt failed, backing off")
	})
	if err != nil {
		log.WithField("error", err.Error()).Error("pipeline request failed")
		return failedResult(langs), err
	}

	if len(resp.PipelineResponse) < minPipelineStage {
		log.WithField("stages", len(resp.PipelineResponse)).Error("incomplete pipeline response")
		return failedResult(langs), apierror.New(apierror.KindIncomplete, Service, "pipeline returned fewer than 2 stages")
	}

	result := Reconcile(transcriptOf(resp), translationOf(resp), langs)
	log.WithFields(logrus.Fields{
		"status":             result.Status,
		"transcript_length":  len(result.Transcript),
		"translation_length": len(result.Translation),
	}).Info("pipeline response parsed")
	return result, nil
}

func (c *Client) buildRequest(audioBase64 string, langs types.LanguagePair) upstream.PipelineRequest {
	return upstream.PipelineRequest{
		PipelineTasks: []upstream.PipelineTask{
			{
				TaskType: TaskASR,
				Config: upstream.TaskConfig{
					Language:     &upstream.LanguageConfig{SourceLanguage: langs.Source},
					ServiceID:    c.cfg.ASRServiceID,
					AudioFormat:  TransportFormat,
					SamplingRate: TransportRate,
				},
			},
			{
				TaskType: TaskTranslation,
				Config: upstream.TaskConfig{
					Language:  &upstream.LanguageConfig{SourceLanguage: langs.Source, TargetLanguage: langs.Target},
					ServiceID: c.cfg.TranslationServiceID,
				},
			},
		},
		InputData: upstream.AudioPayload(audioBase64),
	}
}

func transcriptOf(r upstream.PipelineResponse) string {
	s, ok := r.Stage(TaskASR, 0)
	if !ok {
		return ""
	}
	return s.FirstString("source")
}

func translationOf(r upstream.PipelineResponse) string {
	s, ok := r.Stage(TaskTranslation, 1)
	if !ok {
		return ""
	}
	return s.FirstString("target")
}

// Reconcile trims both texts, backfills the translation from the transcript
// when source and target are the same language, and derives the status.
func Reconcile(transcript, translation string, langs types.LanguagePair) types.TranscriptionResult {
	transcript = strings.TrimSpace(transcript)
	translation = strings.TrimSpace(translation)
	if translation == "" && transcript != "" && langs.Source == langs.Target {
		translation = transcript
	}
	status := types.TranscriptionSuccess
	switch {
	case transcript == "" && translation == "":
		status = types.TranscriptionFailed
	case transcript == "" || translation == "":
		status = types.TranscriptionPartial
	}
	return types.TranscriptionResult{
		Transcript:       transcript,
		Translation:      translation,
		DetectedLanguage: langs.Source,
		Status:           status,
	}
}

func failedResult(langs types.LanguagePair) types.TranscriptionResult {
	return types.TranscriptionResult{DetectedLanguage: langs.Source, Status: types.TranscriptionFailed}
}
