package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l5summary"
	"github.com/banshee-data/posture.report/internal/results"
)

// ReportRow is the indexed summary of a stored report.
type ReportRow struct {
	SessionID            string    `json:"session_id"`
	TotalEvents          int       `json:"total_events"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
	FramesAnalyzed       int       `json:"frames_analyzed"`
	CreatedAt            time.Time `json:"created_at"`
}

// SaveReport stores r under id, replacing any previous report and its
// periods.
func (db *DB) SaveReport(ctx context.Context, id string, r l5summary.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM posture_periods WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear periods: %w", err)
	}

	s := r.Summary.AnalysisSettings
	_, err = tx.ExecContext(ctx, `
		INSERT INTO posture_reports (
			session_id, total_events, total_duration_seconds, frames_analyzed,
			window_duration, fps, skip_frames, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			total_events = excluded.total_events,
			total_duration_seconds = excluded.total_duration_seconds,
			frames_analyzed = excluded.frames_analyzed,
			window_duration = excluded.window_duration,
			fps = excluded.fps,
			skip_frames = excluded.skip_frames,
			report_json = excluded.report_json`,
		id, r.Summary.TotalEvents, r.Summary.TotalDurationSeconds, r.FramesAnalyzed,
		s.WindowDuration, s.FPS, s.SkipFrames, string(body),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posture_periods (
			session_id, label, seq, start_frame, end_frame, duration_frames, duration_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, lr := range r.Labels {
		for i, p := range lr.Periods {
			if _, err := stmt.ExecContext(ctx, id, string(lr.Label), i+1,
				p.StartFrame, p.EndFrame, p.DurationFrames, p.DurationSeconds); err != nil {
				return fmt.Errorf("failed to insert period: %w", err)
			}
		}
	}

	return tx.Commit()
}

// LoadReport returns the report stored under id. Missing ids return an
// error wrapping results.ErrNotFound.
func (db *DB) LoadReport(ctx context.Context, id string) (l5summary.Report, error) {
	var body string
	err := db.QueryRowContext(ctx, `SELECT report_json FROM posture_reports WHERE session_id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return l5summary.Report{}, fmt.Errorf("%w: %s", results.ErrNotFound, id)
	}
	if err != nil {
		return l5summary.Report{}, err
	}

	var r l5summary.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return l5summary.Report{}, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return r, nil
}

// DeleteReport removes the report and periods stored under id.
func (db *DB) DeleteReport(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM posture_periods WHERE session_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM posture_reports WHERE session_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", results.ErrNotFound, id)
	}
	return tx.Commit()
}

// ListReports returns the most recent report summaries, newest first.
func (db *DB) ListReports(ctx context.Context, limit int) ([]ReportRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, total_events, total_duration_seconds, frames_analyzed, created_at
		FROM posture_reports ORDER BY created_at DESC, session_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ReportRow{}
	for rows.Next() {
		var r ReportRow
		if err := rows.Scan(&r.SessionID, &r.TotalEvents, &r.TotalDurationSeconds, &r.FramesAnalyzed, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LabelTotals returns the number of stored periods per label across all
// reports.
func (db *DB) LabelTotals(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT label, COUNT(*) FROM posture_periods GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		out[label] = n
	}
	return out, rows.Err()
}
