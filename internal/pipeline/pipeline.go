package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/language"
	"meeting-insights-go/internal/types"
)

// NoSpeechPlaceholder is analysed when neither the recording nor the
// caller's notes produced any text.
const NoSpeechPlaceholder = "No speech could be transcribed from the recording and no meeting notes were provided."

// Stage names used in PipelineOutcome.Stages.
const (
	StageNormalize     = "normalize"
	StageTranscription = "transcription"
	StageDiarization   = "diarization"
	StageAnalysis      = "analysis"
)

type Normalizer interface {
	Normalize(types.AudioBuffer) (types.NormalizedAudio, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioBase64 string, langs types.LanguagePair) (types.TranscriptionResult, error)
}

type Diarizer interface {
	Diarize(ctx context.Context, audioBase64, serviceID string) types.Stage[[]types.SpeakerProfile]
}

type Summarizer interface {
	Summarize(ctx context.Context, text, priorContext string) types.Stage[types.AnalysisResult]
}

type Deps struct {
	Normalizer  Normalizer
	Transcriber Transcriber
	Diarizer    Diarizer
	Summarizer  Summarizer
}

type Request struct {
	RequestID          string
	Audio              types.AudioBuffer
	Languages          types.LanguagePair
	PriorContext       string
	IncludeDiarization bool
	SpeakerServiceID   string
}

type Orchestrator struct {
	deps Deps
	log  *logrus.Entry
}

func New(deps Deps, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{deps: deps, log: log.WithField("component", "pipeline")}
}

type diarizationResult struct {
	stage    types.Stage[[]types.SpeakerProfile]
	duration time.Duration
}

// Run executes one request. Only a transcription failure is returned as an
// error; diarization and analysis problems are reported in the outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request) (types.PipelineOutcome, error) {
	start := time.Now()
	langs := language.NormalizePair(req.Languages.Source, req.Languages.Target)
	log := o.log.WithFields(logrus.Fields{"req_id": req.RequestID, "source": langs.Source, "target": langs.Target})

	var stages []types.StageReport
	audio, audioReport, normStage := o.normalize(req.Audio)
	stages = append(stages, normStage)

	diaCtx, cancelDiarization := context.WithCancel(ctx)
	defer cancelDiarization()
	var diaCh chan diarizationResult
	if req.IncludeDiarization {
		diaCh = make(chan diarizationResult, 1)
		go func() {
			diaCh <- o.diarize(diaCtx, audio.Transport, req.SpeakerServiceID)
		}()
	}

	trStart := time.Now()
	tr, err := o.deps.Transcriber.Transcribe(ctx, audio.Transport, langs)
	if err != nil {
		log.WithField("error", err.Error()).Error("transcription failed, aborting request")
		return types.PipelineOutcome{}, fmt.Errorf("transcription: %w", err)
	}
	stages = append(stages, types.StageReport{
		Name:       StageTranscription,
		Status:     transcriptionStage(tr.Status),
		DurationMs: time.Since(trStart).Milliseconds(),
	})

	speakers := []types.SpeakerProfile{}
	diaStatus := types.StageDisabled
	if diaCh != nil {
		var res diarizationResult
		select {
		case res = <-diaCh:
		case <-ctx.Done():
			res = diarizationResult{stage: types.Failed([]types.SpeakerProfile{}, ctx.Err().Error())}
		}
		speakers = res.stage.Value
		if speakers == nil {
			speakers = []types.SpeakerProfile{}
		}
		diaStatus = res.stage.Status
		stages = append(stages, types.StageReport{
			Name: StageDiarization, Status: diaStatus, Detail: res.stage.Detail, DurationMs: res.duration.Milliseconds(),
		})
	} else {
		stages = append(stages, types.StageReport{Name: StageDiarization, Status: types.StageDisabled})
	}

	content := AnalysisInput(tr, req.PriorContext)
	if len(speakers) > 1 {
		content += "\n\n" + aggregator.Breakdown(speakers)
	}

	anStart := time.Now()
	prior := req.PriorContext
	if strings.TrimSpace(tr.Translation) == "" && strings.TrimSpace(tr.Transcript) == "" {
		// the notes already are the analysis input
		prior = ""
	}
	analysis := o.deps.Summarizer.Summarize(ctx, content, prior)
	stages = append(stages, types.StageReport{
		Name: StageAnalysis, Status: analysis.Status, Detail: analysis.Detail, DurationMs: time.Since(anStart).Milliseconds(),
	})

	out := types.PipelineOutcome{
		RequestID:         req.RequestID,
		Languages:         langs,
		Transcription:     tr,
		Speakers:          speakers,
		SpeakerCount:      len(speakers),
		DiarizationStatus: diaStatus,
		Analysis:          analysis.Value,
		AnalysisStatus:    analysis.Status,
		Audio:             audioReport,
		Stages:            stages,
		DurationMs:        time.Since(start).Milliseconds(),
		CreatedAt:         time.Now().UTC(),
	}
	log.WithFields(logrus.Fields{
		"transcription": tr.Status,
		"diarization":   diaStatus,
		"analysis":      analysis.Status,
		"speakers":      len(speakers),
		"duration_ms":   out.DurationMs,
	}).Info("pipeline completed")
	return out, nil
}

// DiarizeOnly normalizes the audio and runs diarization alone.
func (o *Orchestrator) DiarizeOnly(ctx context.Context, requestID string, buf types.AudioBuffer, serviceID string) types.DiarizationOutcome {
	start := time.Now()
	audio, audioReport, _ := o.normalize(buf)
	res := o.diarize(ctx, audio.Transport, serviceID)
	speakers := res.stage.Value
	if speakers == nil {
		speakers = []types.SpeakerProfile{}
	}
	return types.DiarizationOutcome{
		RequestID:    requestID,
		Speakers:     speakers,
		SpeakerCount: len(speakers),
		Status:       res.stage.Status,
		Detail:       res.stage.Detail,
		Audio:        audioReport,
		DurationMs:   time.Since(start).Milliseconds(),
	}
}

// AnalysisInput picks what the summarizer sees: the translation, else the
// transcript, else the caller's notes, else a placeholder. Never empty.
func AnalysisInput(tr types.TranscriptionResult, priorContext string) string {
	for _, candidate := range []string{tr.Translation, tr.Transcript, priorContext} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return NoSpeechPlaceholder
}

func (o *Orchestrator) normalize(buf types.AudioBuffer) (types.NormalizedAudio, types.AudioReport, types.StageReport) {
	start := time.Now()
	audio, err := o.deps.Normalizer.Normalize(buf)
	report := types.AudioReport{
		Format:     buf.Format,
		Path:       audio.Path,
		SampleRate: audio.SampleRate,
		BestEffort: audio.BestEffort,
	}
	stage := types.StageReport{Name: StageNormalize, Status: types.StageCompleted, DurationMs: time.Since(start).Milliseconds()}
	switch {
	case err != nil:
		o.log.WithField("error", err.Error()).Warn("normalization failed, sending original bytes")
		stage.Status, stage.Detail = types.StageDegraded, err.Error()
	case audio.BestEffort:
		stage.Status, stage.Detail = types.StageDegraded, "original bytes sent unresampled"
	}
	return audio, report, stage
}

func (o *Orchestrator) diarize(ctx context.Context, audioBase64, serviceID string) diarizationResult {
	start := time.Now()
	if o.deps.Diarizer == nil {
		return diarizationResult{stage: types.Failed([]types.SpeakerProfile{}, "diarization not configured")}
	}
	st := o.deps.Diarizer.Diarize(ctx, audioBase64, serviceID)
	return diarizationResult{stage: st, duration: time.Since(start)}
}

func transcriptionStage(s types.TranscriptionStatus) types.StageStatus {
	switch s {
	case types.TranscriptionSuccess:
		return types.StageCompleted
	case types.TranscriptionPartial:
		return types.StageDegraded
	default:
		return types.StageFailed
	}
}
