package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"xbrl_lookup/pkg/models"
)

// Fixed width so started_at sorts as text
const runTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// RecordRun stores one integration attempt.
func (s *Store) RecordRun(ctx context.Context, run models.Run) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO integration_runs (id, identifier, cik, status, stage, message, fact_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Identifier, nullString(run.CIK), run.Status, nullString(run.Stage), nullString(run.Message),
		run.FactCount, run.StartedAt.UTC().Format(runTimeLayout), run.FinishedAt.UTC().Format(runTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns the latest integration attempts, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, identifier, cik, status, stage, message, fact_count, started_at, finished_at
		FROM integration_runs
		ORDER BY started_at DESC, id
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("runs query failed: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		var (
			r                   models.Run
			cik, stage, message sql.NullString
			started, finished   string
		)
		if err := rows.Scan(&r.ID, &r.Identifier, &cik, &r.Status, &stage, &message, &r.FactCount, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CIK = cik.String
		r.Stage = stage.String
		r.Message = message.String
		r.StartedAt, _ = time.Parse(runTimeLayout, started)
		r.FinishedAt, _ = time.Parse(runTimeLayout, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
