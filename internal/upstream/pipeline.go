package upstream

import (
	"encoding/json"
	"strconv"
	"strings"
)

// -------------------------------
//  Request
// -------------------------------

type PipelineRequest struct {
	PipelineTasks []PipelineTask `json:"pipelineTasks"`
	InputData     InputData      `json:"inputData"`
}

type PipelineTask struct {
	TaskType string     `json:"taskType"`
	Config   TaskConfig `json:"config"`
}

type TaskConfig struct {
	Language     *LanguageConfig `json:"language,omitempty"`
	ServiceID    string          `json:"serviceId,omitempty"`
	AudioFormat  string          `json:"audioFormat,omitempty"`
	SamplingRate int             `json:"samplingRate,omitempty"`
}

type LanguageConfig struct {
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

type InputData struct {
	Audio []AudioInput `json:"audio"`
}

type AudioInput struct {
	AudioContent string `json:"audioContent"`
}

// AudioPayload wraps one base64 recording as pipeline input.
func AudioPayload(audioBase64 string) InputData {
	return InputData{Audio: []AudioInput{{AudioContent: audioBase64}}}
}

// -------------------------------
//  Response
// -------------------------------

// PipelineResponse keeps stage outputs raw. Their shape differs per task type
// and is not reliable, so callers go through the accessors below.
type PipelineResponse struct {
	PipelineResponse []StageResponse `json:"pipelineResponse"`
}

type StageResponse struct {
	TaskType string          `json:"taskType"`
	Output   json.RawMessage `json:"output"`
}

// Stage returns the stage with the given task type, falling back to the
// stage at position index.
func (r PipelineResponse) Stage(taskType string, index int) (StageResponse, bool) {
	for _, s := range r.PipelineResponse {
		if strings.EqualFold(s.TaskType, taskType) {
			return s, true
		}
	}
	if index >= 0 && index < len(r.PipelineResponse) {
		return r.PipelineResponse[index], true
	}
	return StageResponse{}, false
}

// Outputs returns the output entries as objects. Entries that are not objects
// are skipped; a missing or malformed output yields nil.
func (s StageResponse) Outputs() []map[string]json.RawMessage {
	var raw []json.RawMessage
	if err := json.Unmarshal(s.Output, &raw); err != nil {
		return nil
	}
	out := make([]map[string]json.RawMessage, 0, len(raw))
	for _, r := range raw {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(r, &obj); err == nil && obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

// FirstString returns output[0].<field>, or "" when the path is absent.
func (s StageResponse) FirstString(field string) string {
	outputs := s.Outputs()
	if len(outputs) == 0 {
		return ""
	}
	return String(outputs[0][field])
}

// String decodes a JSON string, returning "" for anything else.
func String(raw json.RawMessage) string {
	var v string
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return ""
	}
	return v
}

// Number decodes a JSON number or numeric string.
func Number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	if s := String(raw); s != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
