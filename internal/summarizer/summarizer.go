package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/actionable"
	"meeting-insights-go/internal/types"
)

// Placeholder summaries.
const (
	NoContentSummary   = "No content to analyze."
	UnavailableSummary = "AI Analysis unavailable."
)

const DefaultTimeout = 120 * time.Second

// Backend produces the raw model answer for a prompt.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

type Summarizer struct {
	backend Backend
	log     *logrus.Entry
}

func New(backend Backend, log *logrus.Entry) *Summarizer {
	return &Summarizer{backend: backend, log: log.WithField("component", "summarizer")}
}

// Summarize never fails the caller. Blank input, backend errors and
// unparseable answers all come back as a degraded or failed stage.
func (s *Summarizer) Summarize(ctx context.Context, text, priorContext string) types.Stage[types.AnalysisResult] {
	if strings.TrimSpace(text) == "" {
		return types.Degraded(types.DegradedAnalysis(NoContentSummary), "empty input")
	}
	if s.backend == nil {
		return types.Failed(types.DegradedAnalysis(UnavailableSummary), "no summarizer backend configured")
	}

	log := s.log.WithField("backend", s.backend.Name())
	start := time.Now()
	raw, err := s.backend.Generate(ctx, BuildPrompt(text, priorContext))
	if err != nil {
		log.WithField("error", err.Error()).Error("summarizer request failed")
		return types.Failed(types.DegradedAnalysis(UnavailableSummary), err.Error())
	}

	result, ok := Parse(raw)
	if !ok {
		summary := strings.TrimSpace(stripFences(raw))
		if summary == "" {
			log.Warn("model answer was empty")
			return types.Degraded(types.DegradedAnalysis(UnavailableSummary), "empty model answer")
		}
		log.Warn("model answer was not valid JSON, using raw text as summary")
		return types.Degraded(types.DegradedAnalysis(summary), "unparseable model answer")
	}
	log.WithFields(logrus.Fields{
		"action_items": len(result.ActionItems),
		"decisions":    len(result.KeyDecisions),
		"duration_ms":  time.Since(start).Milliseconds(),
	}).Info("analysis completed")
	return types.Completed(result)
}

// BuildPrompt embeds the optional prior context and the text, and asks
// for the JSON shape Parse understands.
func BuildPrompt(text, priorContext string) string {
	var b strings.Builder
	b.WriteString("Analyze the following meeting transcript/translation.\n")
	if c := strings.TrimSpace(priorContext); c != "" {
		fmt.Fprintf(&b, "Context: %s\n", c)
	}
	fmt.Fprintf(&b, "Text: %s\n\n", strings.TrimSpace(text))
	b.WriteString(`Return strictly valid JSON:
{
  "summary": "Concise summary",
  "actionItems": [{"item": "What", "assignee": "Who", "priority": "High/Medium/Low", "dueDate": "YYYY-MM-DD"}],
  "keyDecisions": ["Decision 1", "Decision 2"]
}`)
	return b.String()
}

// Parse extracts the first JSON object from a model answer and coerces it.
// ok is false when no object could be decoded.
func Parse(raw string) (types.AnalysisResult, bool) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return types.AnalysisResult{}, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return types.AnalysisResult{}, false
	}

	summary, _ := obj["summary"].(string)
	items, _ := obj["actionItems"].([]any)
	decisions, _ := obj["keyDecisions"].([]any)
	return types.AnalysisResult{
		Summary:      strings.TrimSpace(summary),
		ActionItems:  actionable.Normalize(items),
		KeyDecisions: actionable.Decisions(decisions),
	}, true
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, f := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, f, "")
	}
	return strings.TrimSpace(s)
}

// extractJSON returns the first balanced {...} that is valid JSON.
// Braces inside string literals are ignored.
func extractJSON(s string) string {
	s = stripFences(s)
	for from := 0; from < len(s); {
		start := strings.IndexByte(s[from:], '{')
		if start == -1 {
			return ""
		}
		start += from
		if end := matchBrace(s, start); end != -1 {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate
			}
		}
		from = start + 1
	}
	return ""
}

func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
