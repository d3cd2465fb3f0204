package store

import (
	"context"
	"fmt"
)

// ScoresRepo persists scored selections with supersede semantics.
type ScoresRepo struct {
	s *Store
}

const insertScoreSQL = `
INSERT INTO model_scores (
    game_date, game_id, event_id, market, entity_type,
    player_id, player_name, team_id, opponent_team_id,
    team_abbr, opponent_team_abbr, selection_key, side, bet_type, line,
    model_score, model_prob, model_projection, book_implied_prob, edge,
    signal, confidence_band, visibility_tier, sportsbook,
    factors_json, reasons_json, risk_flags_json,
    lineup_confirmed, weather_final, is_active, score_run_id, created_at
) VALUES (
    :game_date, :game_id, :event_id, :market, :entity_type,
    :player_id, :player_name, :team_id, :opponent_team_id,
    :team_abbr, :opponent_team_abbr, :selection_key, :side, :bet_type, :line,
    :model_score, :model_prob, :model_projection, :book_implied_prob, :edge,
    :signal, :confidence_band, :visibility_tier, :sportsbook,
    :factors_json, :reasons_json, :risk_flags_json,
    :lineup_confirmed, :weather_final, :is_active, :score_run_id, :created_at
)`

// InsertWithSupersede writes a run's rows and, in the same transaction,
// sets is_active=0 on older active rows sharing the natural key
// (market, game_id, entity, bet_type, line). Never updates prior rows
// in place.
func (r *ScoresRepo) InsertWithSupersede(ctx context.Context, rows []ModelScore) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	opCtx, cancel := r.s.opCtx(ctx, len(rows))
	defer cancel()

	tx, err := r.s.db.BeginTxx(opCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin score tx: %w", err)
	}
	defer tx.Rollback()

	supersede := r.s.rebind(`
UPDATE model_scores SET is_active = 0
WHERE market = ? AND game_id = ? AND bet_type = ?
  AND COALESCE(player_id, -1) = ?
  AND COALESCE(team_id, '') = ?
  AND COALESCE(line, -999999) = ?
  AND score_run_id <> ?
  AND is_active = 1`)

	var total int64
	for start := 0; start < len(rows); start += DefaultBatchSize {
		end := start + DefaultBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		for _, row := range chunk {
			pid := int64(-1)
			if row.PlayerID != nil {
				pid = *row.PlayerID
			}
			team := ""
			if row.TeamID != nil {
				team = *row.TeamID
			}
			line := float64(-999999)
			if row.Line != nil {
				line = *row.Line
			}
			if _, err := tx.ExecContext(opCtx, supersede,
				row.Market, row.GameID, row.BetType, pid, team, line, row.ScoreRunID); err != nil {
				return total, fmt.Errorf("supersede %s: %w", row.Market, err)
			}
		}
		res, err := tx.NamedExecContext(opCtx, insertScoreSQL, chunk)
		if err != nil {
			return total, fmt.Errorf("insert scores %d..%d: %w", start, end, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		} else {
			total += int64(end - start)
		}
	}
	if err := tx.Commit(); err != nil {
		return total, fmt.Errorf("commit score tx: %w", err)
	}
	return total, nil
}

// Active returns the active rows for a date and market.
func (r *ScoresRepo) Active(ctx context.Context, gameDate, market string) ([]ModelScore, error) {
	var out []ModelScore
	err := r.s.selectCtx(ctx, &out, `
SELECT * FROM model_scores
WHERE game_date = ? AND market = ? AND is_active = 1
ORDER BY model_score DESC, id`, gameDate, market)
	return out, err
}

// ActiveForDate returns all active rows for a date across markets.
func (r *ScoresRepo) ActiveForDate(ctx context.Context, gameDate string) ([]ModelScore, error) {
	var out []ModelScore
	err := r.s.selectCtx(ctx, &out, `
SELECT * FROM model_scores
WHERE game_date = ? AND is_active = 1
ORDER BY market, model_score DESC`, gameDate)
	return out, err
}

// DeactivateForGame marks active rows inactive for one (date, game,
// market) ahead of a lineup-triggered rescore.
func (r *ScoresRepo) DeactivateForGame(ctx context.Context, gameDate string, gameID int64, market string) (int64, error) {
	return r.s.execCtx(ctx, `
UPDATE model_scores SET is_active = 0
WHERE game_date = ? AND game_id = ? AND market = ? AND is_active = 1`,
		gameDate, gameID, market)
}

// ActiveInRange returns active rows for one market over an inclusive
// date range, optionally filtered by signal. Ordered by date then game
// so backtests walk the store chronologically.
func (r *ScoresRepo) ActiveInRange(ctx context.Context, market, startDate, endDate string, signals []string) ([]ModelScore, error) {
	q := `
SELECT * FROM model_scores
WHERE market = ? AND game_date >= ? AND game_date <= ? AND is_active = 1`
	args := []interface{}{market, startDate, endDate}
	if len(signals) > 0 {
		q += ` AND signal IN (`
		for i, sig := range signals {
			if i > 0 {
				q += ","
			}
			q += "?"
			args = append(args, sig)
		}
		q += `)`
	}
	q += ` ORDER BY game_date, game_id, created_at, id`

	var out []ModelScore
	err := r.s.selectCtx(ctx, &out, q, args...)
	return out, err
}

// TopAlertRows returns active rows for alerting: matching signals, a
// score floor and a row cap.
func (r *ScoresRepo) TopAlertRows(ctx context.Context, gameDate, market string, signals []string, minScore float64, limit int) ([]ModelScore, error) {
	if len(signals) == 0 {
		signals = []string{"BET"}
	}
	q := `
SELECT * FROM model_scores
WHERE game_date = ? AND market = ? AND is_active = 1 AND model_score >= ? AND signal IN (`
	args := []interface{}{gameDate, market, minScore}
	for i, sig := range signals {
		if i > 0 {
			q += ","
		}
		q += "?"
		args = append(args, sig)
	}
	q += `) ORDER BY model_score DESC, edge DESC LIMIT ?`
	args = append(args, limit)

	var out []ModelScore
	err := r.s.selectCtx(ctx, &out, q, args...)
	return out, err
}
