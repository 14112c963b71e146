package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/retry"
	"meeting-insights-go/internal/types"
)

type stubBackend struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.answer, s.err
}

var fastRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestSummarizeEmptyTextSkipsBackend(t *testing.T) {
	b := &stubBackend{}
	stage := New(b, logger.Nop().Entry).Summarize(context.Background(), "   ", "")
	if b.calls != 0 {
		t.Fatal("backend should not be called for blank text")
	}
	if stage.Status != types.StageDegraded || stage.Value.Summary != NoContentSummary {
		t.Fatalf("unexpected stage %+v", stage)
	}
	if stage.Value.ActionItems == nil || stage.Value.KeyDecisions == nil {
		t.Fatal("lists must be empty, not nil")
	}
}

func TestSummarizeFencedAnswer(t *testing.T) {
	b := &stubBackend{answer: "Here you go:\n```json\n{\"summary\":\"Budget agreed {final}\",\"actionItems\":[{\"item\":\"Send deck\",\"priority\":\"high\"}],\"keyDecisions\":[\"Approve budget\",7]}\n```"}
	stage := New(b, logger.Nop().Entry).Summarize(context.Background(), "we agreed the budget", "Q3 planning")
	if stage.Status != types.StageCompleted {
		t.Fatalf("expected completed, got %s", stage.Status)
	}
	got := stage.Value
	if got.Summary != "Budget agreed {final}" {
		t.Errorf("unexpected summary %q", got.Summary)
	}
	if len(got.ActionItems) != 1 || got.ActionItems[0].Assignee != "Not specified" || got.ActionItems[0].Priority != types.PriorityHigh {
		t.Errorf("unexpected items %+v", got.ActionItems)
	}
	if len(got.KeyDecisions) != 1 || got.KeyDecisions[0] != "Approve budget" {
		t.Errorf("unexpected decisions %+v", got.KeyDecisions)
	}
	if !strings.Contains(b.prompt, "Context: Q3 planning") || !strings.Contains(b.prompt, "we agreed the budget") {
		t.Errorf("prompt missing inputs: %s", b.prompt)
	}
}

func TestSummarizeMalformedAnswerUsesRawText(t *testing.T) {
	b := &stubBackend{answer: "The team talked about hiring."}
	stage := New(b, logger.Nop().Entry).Summarize(context.Background(), "text", "")
	if stage.Status != types.StageDegraded {
		t.Fatalf("expected degraded, got %s", stage.Status)
	}
	if stage.Value.Summary != "The team talked about hiring." || len(stage.Value.ActionItems) != 0 || len(stage.Value.KeyDecisions) != 0 {
		t.Fatalf("unexpected fallback %+v", stage.Value)
	}
}

func TestSummarizeBlankAnswerIsPlaceholder(t *testing.T) {
	for _, answer := range []string{"", "   ", "```json\n```"} {
		stage := New(&stubBackend{answer: answer}, logger.Nop().Entry).Summarize(context.Background(), "text", "")
		if stage.Status != types.StageDegraded || stage.Value.Summary != UnavailableSummary {
			t.Fatalf("answer %q: unexpected stage %+v", answer, stage)
		}
	}
}

func TestSummarizeBackendErrorIsPlaceholder(t *testing.T) {
	b := &stubBackend{err: errors.New("boom")}
	stage := New(b, logger.Nop().Entry).Summarize(context.Background(), "text", "")
	if stage.Status != types.StageFailed || stage.Value.Summary != UnavailableSummary {
		t.Fatalf("unexpected stage %+v", stage)
	}
}

func TestBuildPromptOmitsEmptyContext(t *testing.T) {
	p := BuildPrompt("hello", "  ")
	if strings.Contains(p, "Context:") {
		t.Fatal("empty context should be omitted")
	}
	if !strings.Contains(p, `"keyDecisions"`) {
		t.Fatal("prompt should describe the JSON shape")
	}
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`noise {"a":1} trailing {"b":2}`:  `{"a":1}`,
		`{"a":"}"}`:                       `{"a":"}"}`,
		"```json\n{\"a\":{\"b\":[1]}}\n```": `{"a":{"b":[1]}}`,
		`{broken {"ok":true}`:             `{"ok":true}`,
		`no braces`:                       ``,
		`{"unterminated":`:                ``,
	}
	for in, want := range cases {
		if got := extractJSON(in); got != want {
			t.Errorf("extractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey string
	var req geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&req)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"summary\":\"ok\"}"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{BaseURL: srv.URL, APIKey: "k1", Model: "gemini-pro", Retry: fastRetry}, logger.Nop().Entry)
	out, err := g.Generate(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"summary":"ok"}` {
		t.Errorf("unexpected answer %q", out)
	}
	if gotPath != "/v1beta/models/gemini-pro:generateContent" || gotKey != "k1" {
		t.Errorf("unexpected request %s key=%s", gotPath, gotKey)
	}
	if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "prompt text" {
		t.Errorf("unexpected body %+v", req)
	}
}

func TestGeminiNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{BaseURL: srv.URL, APIKey: "k", Retry: fastRetry}, logger.Nop().Entry)
	if _, err := g.Generate(context.Background(), "p"); apierror.KindOf(err) != apierror.KindIncomplete {
		t.Fatalf("expected incomplete response, got %v", err)
	}
}

func TestGeminiRetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{BaseURL: srv.URL, APIKey: "k", Retry: fastRetry}, logger.Nop().Entry)
	stage := New(g, logger.Nop().Entry).Summarize(context.Background(), "text", "")
	if stage.Status != types.StageFailed || stage.Value.Summary != UnavailableSummary {
		t.Fatalf("unexpected stage %+v", stage)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestGeminiMissingKey(t *testing.T) {
	g := NewGemini(GeminiConfig{}, logger.Nop().Entry)
	if _, err := g.Generate(context.Background(), "p"); apierror.KindOf(err) != apierror.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"summary\":\"from openai\"}"}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Retry: fastRetry}, logger.Nop().Entry)
	stage := New(o, logger.Nop().Entry).Summarize(context.Background(), "text", "")
	if stage.Status != types.StageCompleted || stage.Value.Summary != "from openai" {
		t.Fatalf("unexpected stage %+v", stage)
	}
}

func TestOpenAIAuthErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Retry: fastRetry}, logger.Nop().Entry)
	_, err := o.Generate(context.Background(), "p")
	if apierror.KindOf(err) != apierror.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
