package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RunsRepo persists the score_runs audit trail.
type RunsRepo struct {
	s *Store
}

// Create opens a run in started state and returns its id.
func (r *RunsRepo) Create(ctx context.Context, runType, gameDate, market, triggeredBy string, metadata map[string]interface{}) (int64, error) {
	var metaJSON *string
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal run metadata: %w", err)
		}
		s := string(b)
		metaJSON = &s
	}
	var datePtr, marketPtr *string
	if gameDate != "" {
		datePtr = &gameDate
	}
	if market != "" {
		marketPtr = &market
	}

	opCtx, cancel := r.s.opCtx(ctx, 1)
	defer cancel()

	run := ScoreRun{
		RunUID:       uuid.NewString(),
		RunType:      runType,
		GameDate:     datePtr,
		Market:       marketPtr,
		TriggeredBy:  triggeredBy,
		Status:       "started",
		MetadataJSON: metaJSON,
		StartedAt:    UTCNow(),
	}

	if r.s.driver == "postgres" {
		var id int64
		rows, err := r.s.db.NamedQueryContext(opCtx, `
INSERT INTO score_runs (run_uid, run_type, game_date, market, triggered_by, status, metadata_json, started_at)
VALUES (:run_uid, :run_type, :game_date, :market, :triggered_by, :status, :metadata_json, :started_at)
RETURNING id`, run)
		if err != nil {
			return 0, fmt.Errorf("create score run: %w", err)
		}
		defer rows.Close()
		if rows.Next() {
			if err := rows.Scan(&id); err != nil {
				return 0, err
			}
		}
		return id, nil
	}

	res, err := r.s.db.NamedExecContext(opCtx, `
INSERT INTO score_runs (run_uid, run_type, game_date, market, triggered_by, status, metadata_json, started_at)
VALUES (:run_uid, :run_type, :game_date, :market, :triggered_by, :status, :metadata_json, :started_at)`, run)
	if err != nil {
		return 0, fmt.Errorf("create score run: %w", err)
	}
	return res.LastInsertId()
}

// Complete marks a run finished with its row count and metadata.
func (r *RunsRepo) Complete(ctx context.Context, runID int64, rowsScored int64, metadata map[string]interface{}) error {
	return r.finish(ctx, runID, "completed", rowsScored, "", metadata)
}

// Fail marks a run failed with an error message.
func (r *RunsRepo) Fail(ctx context.Context, runID int64, errMsg string, metadata map[string]interface{}) error {
	return r.finish(ctx, runID, "failed", 0, errMsg, metadata)
}

func (r *RunsRepo) finish(ctx context.Context, runID int64, status string, rowsScored int64, errMsg string, metadata map[string]interface{}) error {
	var metaJSON *string
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal run metadata: %w", err)
		}
		s := string(b)
		metaJSON = &s
	}
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}
	_, err := r.s.execCtx(ctx, `
UPDATE score_runs SET status = ?, rows_scored = ?, error_message = ?, metadata_json = ?, finished_at = ?
WHERE id = ?`, status, rowsScored, errPtr, metaJSON, UTCNow(), runID)
	return err
}

// LastByType returns the most recent run per run_type.
func (r *RunsRepo) LastByType(ctx context.Context) ([]ScoreRun, error) {
	var out []ScoreRun
	err := r.s.selectCtx(ctx, &out, `
SELECT sr.* FROM score_runs sr
JOIN (
    SELECT run_type, MAX(started_at) AS max_started
    FROM score_runs GROUP BY run_type
) latest ON latest.run_type = sr.run_type AND latest.max_started = sr.started_at
ORDER BY sr.run_type`)
	return out, err
}

// ByID loads one run, nil when absent.
func (r *RunsRepo) ByID(ctx context.Context, runID int64) (*ScoreRun, error) {
	var run ScoreRun
	err := r.s.getCtx(ctx, &run, `SELECT * FROM score_runs WHERE id = ?`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// TableCounts reports row counts for the status command.
func (r *RunsRepo) TableCounts(ctx context.Context) (map[string]int64, error) {
	tables := []string{
		"games", "pitch_events", "batter_stats", "pitcher_stats",
		"batter_daily_features", "pitcher_daily_features",
		"team_daily_features", "game_context_features",
		"market_odds", "model_scores", "market_outcomes",
		"bets", "closing_lines", "lineups", "stadiums", "score_runs",
	}
	out := make(map[string]int64, len(tables))
	for _, t := range tables {
		var n int64
		if err := r.s.getCtx(ctx, &n, "SELECT COUNT(*) FROM "+t); err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		out[t] = n
	}
	return out, nil
}
