package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SweepRun is one completed (or in-flight) pass of a monitor loop,
// kept for ops visibility over the admin API.
type SweepRun struct {
	RunID      string
	Monitor    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Entities   int
	Errors     int
}

func (s *Store) InsertSweepRun(ctx context.Context, runID, monitor string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sweep_runs (run_id, monitor, started_at) VALUES (?,?,?)
`, runID, monitor, fmtTime(startedAt))
	if err != nil {
		return fmt.Errorf("insert sweep run: %w", err)
	}
	return nil
}

func (s *Store) FinishSweepRun(ctx context.Context, runID string, entities, errCount int) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE sweep_runs SET finished_at=?, entities=?, errors=? WHERE run_id=?
`, fmtTime(time.Now()), entities, errCount, runID)
	if err != nil {
		return fmt.Errorf("finish sweep run: %w", err)
	}
	return nil
}

func (s *Store) ListSweepRuns(ctx context.Context, monitor string, limit int) ([]SweepRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows *sql.Rows
	var err error
	if monitor == "" {
		rows, err = s.db.QueryContext(ctx, `
SELECT run_id, monitor, started_at, finished_at, entities, errors
FROM sweep_runs ORDER BY started_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT run_id, monitor, started_at, finished_at, entities, errors
FROM sweep_runs WHERE monitor=? ORDER BY started_at DESC LIMIT ?`, monitor, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SweepRun
	for rows.Next() {
		var r SweepRun
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.RunID, &r.Monitor, &startedAt, &finishedAt, &r.Entities, &r.Errors); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(startedAt)
		if finishedAt.Valid && finishedAt.String != "" {
			t := parseTime(finishedAt.String)
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
