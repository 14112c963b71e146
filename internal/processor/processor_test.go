package processor

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/types"
)

type fakeRunner struct {
	req      pipeline.Request
	err      error
	deadline bool
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.Request) (types.PipelineOutcome, error) {
	f.req = req
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return types.PipelineOutcome{}, f.err
	}
	return types.PipelineOutcome{RequestID: req.RequestID}, nil
}

func (f *fakeRunner) DiarizeOnly(_ context.Context, id string, buf types.AudioBuffer, serviceID string) types.DiarizationOutcome {
	f.req = pipeline.Request{RequestID: id, Audio: buf, SpeakerServiceID: serviceID}
	return types.DiarizationOutcome{RequestID: id, Status: types.StageCompleted, Speakers: []types.SpeakerProfile{}}
}

type memStore struct {
	saved []types.PipelineOutcome
	err   error
}

func (m *memStore) Save(_ context.Context, out types.PipelineOutcome) error {
	m.saved = append(m.saved, out)
	return m.err
}

func TestProcessBase64(t *testing.T) {
	runner, store := &fakeRunner{}, &memStore{}
	p := New(runner, store, Options{Timeout: time.Minute}, logger.Nop().Entry)

	out, err := p.Process(context.Background(), Input{
		RequestID:          "req-1",
		AudioBase64:        "data:audio/wav;base64," + base64.StdEncoding.EncodeToString([]byte("RIFFdata")),
		Format:             ".MP3",
		SourceLanguage:     "hi",
		TargetLanguage:     "en",
		Context:            "weekly sync",
		IncludeDiarization: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.RequestID != "req-1" || len(store.saved) != 1 {
		t.Fatalf("outcome not stored: %+v", store.saved)
	}
	if string(runner.req.Audio.Data) != "RIFFdata" || runner.req.Audio.Format != "mp3" {
		t.Errorf("unexpected audio %q/%s", runner.req.Audio.Data, runner.req.Audio.Format)
	}
	if runner.req.PriorContext != "weekly sync" || !runner.req.IncludeDiarization {
		t.Errorf("request fields not forwarded: %+v", runner.req)
	}
	if !runner.deadline {
		t.Error("expected a request deadline")
	}
}

func TestProcessGeneratesRequestID(t *testing.T) {
	runner := &fakeRunner{}
	p := New(runner, nil, Options{}, logger.Nop().Entry)
	out, err := p.Process(context.Background(), Input{Audio: []byte("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.RequestID) != 36 {
		t.Fatalf("expected a uuid request id, got %q", out.RequestID)
	}
	if runner.req.Audio.Format != "wav" {
		t.Errorf("missing format should default to wav, got %s", runner.req.Audio.Format)
	}
}

func TestProcessValidation(t *testing.T) {
	p := New(&fakeRunner{}, nil, Options{MaxBytes: 8}, logger.Nop().Entry)
	cases := map[string]Input{
		"missing":   {},
		"bad b64":   {AudioBase64: "!!not base64!!"},
		"too large": {Audio: []byte(strings.Repeat("a", 9))},
		"large b64": {AudioBase64: base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 64)))},
	}
	for name, in := range cases {
		_, err := p.Process(context.Background(), in)
		if apierror.KindOf(err) != apierror.KindValidation || apierror.StatusOf(err) != http.StatusBadRequest {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestProcessPropagatesPipelineError(t *testing.T) {
	cause := apierror.New(apierror.KindTimeout, "bhashini", "deadline")
	store := &memStore{}
	p := New(&fakeRunner{err: cause}, store, Options{}, logger.Nop().Entry)
	_, err := p.Process(context.Background(), Input{Audio: []byte("x")})
	if !errors.Is(err, cause) {
		t.Fatalf("expected pipeline error, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("failed requests must not be stored")
	}
}

func TestProcessStoreFailureIsNotFatal(t *testing.T) {
	p := New(&fakeRunner{}, &memStore{err: errors.New("disk full")}, Options{}, logger.Nop().Entry)
	if _, err := p.Process(context.Background(), Input{Audio: []byte("x")}); err != nil {
		t.Fatalf("store failure should only be logged, got %v", err)
	}
}

func TestDiarize(t *testing.T) {
	runner := &fakeRunner{}
	p := New(runner, nil, Options{}, logger.Nop().Entry)
	out, err := p.Diarize(context.Background(), Input{RequestID: "d-1", Audio: []byte("x"), SpeakerServiceID: "svc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.RequestID != "d-1" || runner.req.SpeakerServiceID != "svc" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if _, err := p.Diarize(context.Background(), Input{}); apierror.KindOf(err) != apierror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
