// internal/types/outcome.go
package types

import "time"

// --------------------------------------------
// Stage status shared by every pipeline stage
// --------------------------------------------
type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageDegraded  StageStatus = "degraded"
	StageFailed    StageStatus = "failed"
	StageDisabled  StageStatus = "disabled"
)

// Stage carries the value of a stage that is allowed to fail softly,
// together with how it ended.
type Stage[T any] struct {
	Value  T           `json:"value"`
	Status StageStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

func Completed[T any](v T) Stage[T] {
	return Stage[T]{Value: v, Status: StageCompleted}
}

func Degraded[T any](v T, detail string) Stage[T] {
	return Stage[T]{Value: v, Status: StageDegraded, Detail: detail}
}

func Failed[T any](v T, detail string) Stage[T] {
	return Stage[T]{Value: v, Status: StageFailed, Detail: detail}
}

// --------------------------------------------
// Per-stage diagnostics
// --------------------------------------------
type StageReport struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Detail     string      `json:"detail,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

type AudioReport struct {
	Format     string `json:"format"`
	Path       string `json:"path"`
	SampleRate int    `json:"sample_rate"`
	BestEffort bool   `json:"best_effort"`
}

// --------------------------------------------
// FINAL output of one pipeline run
// --------------------------------------------
type PipelineOutcome struct {
	RequestID         string              `json:"requestId"`
	Languages         LanguagePair        `json:"languages"`
	Transcription     TranscriptionResult `json:"transcription"`
	Speakers          []SpeakerProfile    `json:"speakers"`
	SpeakerCount      int                 `json:"speakerCount"`
	DiarizationStatus StageStatus         `json:"diarizationStatus"`
	Analysis          AnalysisResult      `json:"analysis"`
	AnalysisStatus    StageStatus         `json:"analysisStatus"`
	Audio             AudioReport         `json:"audio"`
	Stages            []StageReport       `json:"stages"`
	DurationMs        int64               `json:"durationMs"`
	CreatedAt         time.Time           `json:"createdAt"`
}

// DiarizationOutcome is the result of a diarization-only request.
type DiarizationOutcome struct {
	RequestID    string           `json:"requestId"`
	Speakers     []SpeakerProfile `json:"speakers"`
	SpeakerCount int              `json:"speakerCount"`
	Status       StageStatus      `json:"status"`
	Detail       string           `json:"detail,omitempty"`
	Audio        AudioReport      `json:"audio"`
	DurationMs   int64            `json:"durationMs"`
}
