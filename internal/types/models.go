package types

// AudioBuffer is the caller-supplied recording. It is not modified after construction.
type AudioBuffer struct {
	Data   []byte `json:"-"`
	Format string `json:"format"`
}

// Normalization paths reported in NormalizedAudio.Path.
const (
	PathPrimary     = "primary"
	PathSecondary   = "secondary"
	PathDecimated   = "decimated"
	PathPassthrough = "passthrough"
)

// NormalizedAudio is decoded mono audio plus the base64 WAV sent upstream.
type NormalizedAudio struct {
	Samples    []float32 `json:"-"`
	SampleRate int       `json:"sample_rate"`
	Transport  string    `json:"-"`
	BestEffort bool      `json:"best_effort"`
	Path       string    `json:"path"`
}

// LanguagePair holds base language codes (no region subtag).
type LanguagePair struct {
	Source string `json:"sourceLanguage"`
	Target string `json:"targetLanguage"`
}

type TranscriptionStatus string

const (
	TranscriptionSuccess TranscriptionStatus = "success"
	TranscriptionPartial TranscriptionStatus = "partial"
	TranscriptionFailed  TranscriptionStatus = "failed"
)

type TranscriptionResult struct {
	Transcript       string              `json:"transcript"`
	Translation      string              `json:"translation"`
	DetectedLanguage string              `json:"detectedLanguage"`
	Status           TranscriptionStatus `json:"status"`
}

// SpeakerSegment times are in seconds.
type SpeakerSegment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

type SpeakerProfile struct {
	ID                string           `json:"speakerId"`
	Label             string           `json:"label"`
	Segments          []SpeakerSegment `json:"segments"`
	TotalDuration     float64          `json:"totalDuration"`
	PercentageOfTotal float64          `json:"percentageOfTotal"`
}

// Action item priorities.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

type ActionItem struct {
	Item     string `json:"item"`
	Assignee string `json:"assignee"`
	Priority string `json:"priority"`
	DueDate  string `json:"dueDate"`
}

// AnalysisResult is never absent from an outcome, only degraded.
type AnalysisResult struct {
	Summary      string       `json:"summary"`
	ActionItems  []ActionItem `json:"actionItems"`
	KeyDecisions []string     `json:"keyDecisions"`
}

// DegradedAnalysis returns a placeholder analysis with empty lists.
func DegradedAnalysis(summary string) AnalysisResult {
	return AnalysisResult{
		Summary:      summary,
		ActionItems:  []ActionItem{},
		KeyDecisions: []string{},
	}
}
