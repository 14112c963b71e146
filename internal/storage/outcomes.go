package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"meeting-insights-go/internal/types"
)

var ErrNotFound = errors.New("outcome not found")

// fixed width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OutcomeDB keeps finished pipeline outcomes in SQLite.
type OutcomeDB struct {
	db *sql.DB
}

// OutcomeSummary is one row of List.
type OutcomeSummary struct {
	RequestID         string            `json:"requestId"`
	CreatedAt         time.Time         `json:"createdAt"`
	SourceLanguage    string            `json:"sourceLanguage"`
	TargetLanguage    string            `json:"targetLanguage"`
	DiarizationStatus types.StageStatus `json:"diarizationStatus"`
	AnalysisStatus    types.StageStatus `json:"analysisStatus"`
	SpeakerCount      int               `json:"speakerCount"`
	DurationMs        int64             `json:"durationMs"`
}

func Open(dbPath string) (*OutcomeDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		request_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		source_language TEXT NOT NULL,
		target_language TEXT NOT NULL,
		diarization_status TEXT NOT NULL,
		analysis_status TEXT NOT NULL,
		speaker_count INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_created_at ON outcomes(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &OutcomeDB{db: db}, nil
}

// Save stores or replaces an outcome keyed by its request id.
func (o *OutcomeDB) Save(ctx context.Context, out types.PipelineOutcome) error {
	if out.RequestID == "" {
		return errors.New("outcome has no request id")
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO outcomes (request_id, created_at, source_language, target_language,
		diarization_status, analysis_status, speaker_count, duration_ms, payload)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = o.db.ExecContext(ctx, query, out.RequestID, out.CreatedAt.UTC().Format(timeLayout),
		out.Languages.Source, out.Languages.Target, string(out.DiarizationStatus), string(out.AnalysisStatus),
		out.SpeakerCount, out.DurationMs, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}
	return nil
}

func (o *OutcomeDB) Get(ctx context.Context, requestID string) (types.PipelineOutcome, error) {
	var payload string
	err := o.db.QueryRowContext(ctx, `SELECT payload FROM outcomes WHERE request_id = ?`, requestID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return types.PipelineOutcome{}, ErrNotFound
	}
	if err != nil {
		return types.PipelineOutcome{}, fmt.Errorf("failed to get outcome: %w", err)
	}

	var out types.PipelineOutcome
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return types.PipelineOutcome{}, fmt.Errorf("failed to decode outcome: %w", err)
	}
	return out, nil
}

// List returns the newest outcomes first.
func (o *OutcomeDB) List(ctx context.Context, limit int) ([]OutcomeSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT request_id, created_at, source_language, target_language, diarization_status,
		analysis_status, speaker_count, duration_ms
	FROM outcomes ORDER BY created_at DESC LIMIT ?
	`
	rows, err := o.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	summaries := []OutcomeSummary{}
	for rows.Next() {
		var (
			s                 OutcomeSummary
			createdAt         string
			diarization, anal string
		)
		if err := rows.Scan(&s.RequestID, &createdAt, &s.SourceLanguage, &s.TargetLanguage,
			&diarization, &anal, &s.SpeakerCount, &s.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		s.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		s.DiarizationStatus = types.StageStatus(diarization)
		s.AnalysisStatus = types.StageStatus(anal)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (o *OutcomeDB) Close() error {
	return o.db.Close()
}
