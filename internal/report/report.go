// Package report renders a pipeline outcome as an xlsx workbook.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"meeting-insights-go/internal/types"
)

// Sheet names, in workbook order.
const (
	SheetSummary   = "Summary"
	SheetActions   = "Action Items"
	SheetDecisions = "Decisions"
	SheetSpeakers  = "Speakers"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Write renders out and writes the workbook to w.
func Write(w io.Writer, out types.PipelineOutcome) error {
	f, err := Build(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Build returns the workbook. The caller closes it.
func Build(out types.PipelineOutcome) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetActions, SheetDecisions, SheetSpeakers} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("new sheet %s: %w", name, err)
		}
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	w := &sheetWriter{f: f, header: header}
	w.table(SheetSummary, []any{"Field", "Value"}, summaryRows(out))
	w.table(SheetActions, []any{"Item", "Assignee", "Priority", "Due Date"}, actionRows(out.Analysis.ActionItems))
	w.table(SheetDecisions, []any{"#", "Decision"}, decisionRows(out.Analysis.KeyDecisions))
	w.table(SheetSpeakers, []any{"Speaker", "Id", "Total Seconds", "Share %", "Segments"}, speakerRows(out.Speakers))
	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	f.SetActiveSheet(0)
	return f, nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) table(sheet string, head []any, rows [][]any) {
	if w.err != nil {
		return
	}
	if err := w.f.SetSheetRow(sheet, "A1", &head); err != nil {
		w.err = fmt.Errorf("%s header: %w", sheet, err)
		return
	}
	last, _ := excelize.CoordinatesToCellName(len(head), 1)
	if err := w.f.SetCellStyle(sheet, "A1", last, w.header); err != nil {
		w.err = fmt.Errorf("%s header style: %w", sheet, err)
		return
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
			w.err = fmt.Errorf("%s row %d: %w", sheet, i+2, err)
			return
		}
	}
	if err := w.f.SetColWidth(sheet, "A", "A", 22); err != nil {
		w.err = err
		return
	}
	lastCol, _ := excelize.ColumnNumberToName(len(head))
	if lastCol != "A" {
		w.err = w.f.SetColWidth(sheet, "B", lastCol, 40)
	}
}

func summaryRows(out types.PipelineOutcome) [][]any {
	return [][]any{
		{"Request ID", out.RequestID},
		{"Created", out.CreatedAt.Format("2006-01-02 15:04:05 MST")},
		{"Source Language", out.Languages.Source},
		{"Target Language", out.Languages.Target},
		{"Transcription Status", string(out.Transcription.Status)},
		{"Transcript", out.Transcription.Transcript},
		{"Translation", out.Transcription.Translation},
		{"Summary", out.Analysis.Summary},
		{"Analysis Status", string(out.AnalysisStatus)},
		{"Diarization Status", string(out.DiarizationStatus)},
		{"Speaker Count", out.SpeakerCount},
		{"Audio Path", out.Audio.Path},
		{"Best Effort Audio", out.Audio.BestEffort},
		{"Duration (ms)", out.DurationMs},
	}
}

func actionRows(items []types.ActionItem) [][]any {
	rows := make([][]any, 0, len(items))
	for _, a := range items {
		rows = append(rows, []any{a.Item, a.Assignee, a.Priority, a.DueDate})
	}
	return rows
}

func decisionRows(decisions []string) [][]any {
	rows := make([][]any, 0, len(decisions))
	for i, d := range decisions {
		rows = append(rows, []any{i + 1, d})
	}
	return rows
}

func speakerRows(speakers []types.SpeakerProfile) [][]any {
	rows := make([][]any, 0, len(speakers))
	for _, s := range speakers {
		rows = append(rows, []any{s.Label, s.ID, s.TotalDuration, s.PercentageOfTotal, len(s.Segments)})
	}
	return rows
}
