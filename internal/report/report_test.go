package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"meeting-insights-go/internal/types"
)

func sampleOutcome() types.PipelineOutcome {
	return types.PipelineOutcome{
		RequestID:     "req-42",
		Languages:     types.LanguagePair{Source: "hi", Target: "en"},
		Transcription: types.TranscriptionResult{Transcript: "namaste", Translation: "hello", Status: types.TranscriptionSuccess},
		Speakers: []types.SpeakerProfile{
			{ID: "S0", Label: "Speaker 1", TotalDuration: 6, PercentageOfTotal: 60, Segments: make([]types.SpeakerSegment, 2)},
			{ID: "S1", Label: "Speaker 2", TotalDuration: 4, PercentageOfTotal: 40, Segments: make([]types.SpeakerSegment, 1)},
		},
		SpeakerCount:      2,
		DiarizationStatus: types.StageCompleted,
		Analysis: types.AnalysisResult{
			Summary:      "Budget approved",
			ActionItems:  []types.ActionItem{{Item: "Send deck", Assignee: "Asha", Priority: "High", DueDate: "2025-02-01"}},
			KeyDecisions: []string{"Approve budget", "Hire QA"},
		},
		AnalysisStatus: types.StageCompleted,
		CreatedAt:      time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC),
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleOutcome()); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{SheetSummary, SheetActions, SheetDecisions, SheetSpeakers}
	if len(sheets) != len(want) {
		t.Fatalf("expected sheets %v, got %v", want, sheets)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Fatalf("expected sheets %v, got %v", want, sheets)
		}
	}

	if v, _ := f.GetCellValue(SheetSummary, "B1"); v != "Value" {
		t.Errorf("unexpected summary header %q", v)
	}
	if v, _ := f.GetCellValue(SheetSummary, "B2"); v != "req-42" {
		t.Errorf("unexpected request id cell %q", v)
	}
	actions, _ := f.GetRows(SheetActions)
	if len(actions) != 2 || actions[1][0] != "Send deck" || actions[1][2] != "High" {
		t.Errorf("unexpected action rows %v", actions)
	}
	decisions, _ := f.GetRows(SheetDecisions)
	if len(decisions) != 3 || decisions[2][1] != "Hire QA" {
		t.Errorf("unexpected decision rows %v", decisions)
	}
	speakers, _ := f.GetRows(SheetSpeakers)
	if len(speakers) != 3 || speakers[1][0] != "Speaker 1" || speakers[2][4] != "1" {
		t.Errorf("unexpected speaker rows %v", speakers)
	}
}

func TestWriteEmptyOutcome(t *testing.T) {
	var buf bytes.Buffer
	out := types.PipelineOutcome{RequestID: "empty", Analysis: types.DegradedAnalysis("No content to analyze.")}
	if err := Write(&buf, out); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetActions)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}
