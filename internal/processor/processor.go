package processor

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/language"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/types"
)

const DefaultMaxBytes = 50 * 1024 * 1024

type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (types.PipelineOutcome, error)
	DiarizeOnly(ctx context.Context, requestID string, buf types.AudioBuffer, serviceID string) types.DiarizationOutcome
}

type Store interface {
	Save(ctx context.Context, out types.PipelineOutcome) error
}

type Options struct {
	MaxBytes int64
	// Timeout bounds one whole request. Zero means no extra deadline.
	Timeout time.Duration
}

// Processor validates caller input, runs the pipeline and records the result.
type Processor struct {
	runner Runner
	store  Store
	opts   Options
	log    *logrus.Entry
}

// Input is one caller request. Exactly one of Audio and AudioBase64 is used;
// raw bytes win when both are set.
type Input struct {
	RequestID          string
	Audio              []byte
	AudioBase64        string
	Format             string
	SourceLanguage     string
	TargetLanguage     string
	Context            string
	IncludeDiarization bool
	SpeakerServiceID   string
}

func New(runner Runner, store Store, opts Options, log *logrus.Entry) *Processor {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Processor{runner: runner, store: store, opts: opts, log: log.WithField("component", "processor")}
}

func (p *Processor) Process(ctx context.Context, in Input) (types.PipelineOutcome, error) {
	start := time.Now()
	buf, err := p.audio(in)
	if err != nil {
		return types.PipelineOutcome{}, err
	}
	reqID := requestID(in.RequestID)
	log := p.log.WithFields(logrus.Fields{"req_id": reqID, "format": buf.Format, "bytes": len(buf.Data)})
	log.Info("processing audio")

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	out, err := p.runner.Run(ctx, pipeline.Request{
		RequestID:          reqID,
		Audio:              buf,
		Languages:          types.LanguagePair{Source: in.SourceLanguage, Target: in.TargetLanguage},
		PriorContext:       in.Context,
		IncludeDiarization: in.IncludeDiarization,
		SpeakerServiceID:   in.SpeakerServiceID,
	})
	if err != nil {
		log.WithField("error", err.Error()).Warn("pipeline failed")
		return types.PipelineOutcome{}, err
	}

	if p.store != nil {
		if err := p.store.Save(context.WithoutCancel(ctx), out); err != nil {
			log.WithField("error", err.Error()).Error("failed to persist outcome")
		}
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("audio processed")
	return out, nil
}

func (p *Processor) Diarize(ctx context.Context, in Input) (types.DiarizationOutcome, error) {
	buf, err := p.audio(in)
	if err != nil {
		return types.DiarizationOutcome{}, err
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	out := p.runner.DiarizeOnly(ctx, requestID(in.RequestID), buf, in.SpeakerServiceID)
	p.log.WithFields(logrus.Fields{"req_id": out.RequestID, "speakers": out.SpeakerCount, "status": out.Status}).Info("diarization processed")
	return out, nil
}

// audio validates and decodes the caller's recording.
func (p *Processor) audio(in Input) (types.AudioBuffer, error) {
	data := in.Audio
	if len(data) == 0 {
		encoded := stripDataURL(strings.TrimSpace(in.AudioBase64))
		if encoded == "" {
			return types.AudioBuffer{}, apierror.Validation("no audio provided")
		}
		if int64(base64.StdEncoding.DecodedLen(len(encoded))) > p.opts.MaxBytes+3 {
			return types.AudioBuffer{}, tooLarge(p.opts.MaxBytes)
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return types.AudioBuffer{}, apierror.Validation("audioData is not valid base64")
		}
		data = decoded
	}
	if len(data) == 0 {
		return types.AudioBuffer{}, apierror.Validation("audio is empty")
	}
	if int64(len(data)) > p.opts.MaxBytes {
		return types.AudioBuffer{}, tooLarge(p.opts.MaxBytes)
	}
	return types.AudioBuffer{Data: data, Format: language.NormalizeFormat(in.Format)}, nil
}

func (p *Processor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.Timeout > 0 {
		return context.WithTimeout(ctx, p.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func tooLarge(limit int64) error {
	return apierror.Validation(fmt.Sprintf("file too large (>%dMB)", limit/(1024*1024)))
}

// stripDataURL drops a "data:audio/wav;base64," prefix.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i != -1 {
			return s[i+1:]
		}
	}
	return s
}

func requestID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.New().String()
}
