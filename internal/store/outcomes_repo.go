package store

import (
	"context"
	"database/sql"
	"errors"
)

// OutcomesRepo persists realized outcomes, bets and closing lines.
type OutcomesRepo struct {
	s *Store
}

const upsertOutcomeSQL = `
INSERT INTO market_outcomes (
    game_date, game_id, market, selection_key, outcome_value, outcome_text, settled_at
) VALUES (
    :game_date, :game_id, :market, :selection_key, :outcome_value, :outcome_text, :settled_at
)
ON CONFLICT (selection_key, game_date) DO UPDATE SET
    outcome_value = excluded.outcome_value,
    outcome_text = excluded.outcome_text,
    settled_at = excluded.settled_at`

// UpsertOutcomes writes outcome rows keyed by selection per date.
func (r *OutcomesRepo) UpsertOutcomes(ctx context.Context, rows []MarketOutcome) (int64, error) {
	return namedBatch(ctx, r.s, upsertOutcomeSQL, rows)
}

// OutcomesFor loads all outcomes for a date, optionally one market.
func (r *OutcomesRepo) OutcomesFor(ctx context.Context, gameDate, market string) ([]MarketOutcome, error) {
	if market == "" {
		var out []MarketOutcome
		err := r.s.selectCtx(ctx, &out,
			`SELECT * FROM market_outcomes WHERE game_date = ?`, gameDate)
		return out, err
	}
	var out []MarketOutcome
	err := r.s.selectCtx(ctx, &out,
		`SELECT * FROM market_outcomes WHERE game_date = ? AND market = ?`, gameDate, market)
	return out, err
}

// OutcomeFor loads one outcome row, nil when the selection is ungraded.
func (r *OutcomesRepo) OutcomeFor(ctx context.Context, gameDate, selectionKey string) (*MarketOutcome, error) {
	var row MarketOutcome
	err := r.s.getCtx(ctx, &row,
		`SELECT * FROM market_outcomes WHERE game_date = ? AND selection_key = ?`, gameDate, selectionKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

const insertBetSQL = `
INSERT INTO bets (
    game_date, game_id, market, selection_key, side, line,
    odds_american, implied_prob_open, stake_units, status, placed_at
) VALUES (
    :game_date, :game_id, :market, :selection_key, :side, :line,
    :odds_american, :implied_prob_open, :stake_units, :status, :placed_at
)`

// InsertBet logs one wager in pending state.
func (r *OutcomesRepo) InsertBet(ctx context.Context, b Bet) error {
	opCtx, cancel := r.s.opCtx(ctx, 1)
	defer cancel()
	_, err := r.s.db.NamedExecContext(opCtx, insertBetSQL, b)
	return err
}

// PendingBets returns unsettled bets for a date.
func (r *OutcomesRepo) PendingBets(ctx context.Context, gameDate string) ([]Bet, error) {
	var out []Bet
	err := r.s.selectCtx(ctx, &out,
		`SELECT * FROM bets WHERE game_date = ? AND status = 'pending'`, gameDate)
	return out, err
}

// SettleBet finalizes one bet with settlement, profit and CLV fields.
func (r *OutcomesRepo) SettleBet(ctx context.Context, b Bet) error {
	_, err := r.s.execCtx(ctx, `
UPDATE bets SET
    status = ?, profit_units = ?, implied_prob_close = ?,
    clv_open_to_close = ?, line_delta = ?, settled_at = ?
WHERE id = ?`,
		b.Status, b.ProfitUnits, b.ImpliedProbClose,
		b.ClvOpenToClose, b.LineDelta, b.SettledAt, b.ID)
	return err
}

const upsertClosingLineSQL = `
INSERT INTO closing_lines (
    game_date, selection_key, sportsbook, price_american,
    implied_probability, line, captured_at
) VALUES (
    :game_date, :selection_key, :sportsbook, :price_american,
    :implied_probability, :line, :captured_at
)
ON CONFLICT (game_date, selection_key) DO UPDATE SET
    sportsbook = excluded.sportsbook,
    price_american = excluded.price_american,
    implied_probability = excluded.implied_probability,
    line = excluded.line,
    captured_at = excluded.captured_at`

// UpsertClosingLines writes the chosen closing snapshot per selection.
func (r *OutcomesRepo) UpsertClosingLines(ctx context.Context, rows []ClosingLine) (int64, error) {
	return namedBatch(ctx, r.s, upsertClosingLineSQL, rows)
}

// ClosingLineFor loads the stored closing line, nil when absent.
func (r *OutcomesRepo) ClosingLineFor(ctx context.Context, gameDate, selectionKey string) (*ClosingLine, error) {
	var row ClosingLine
	err := r.s.getCtx(ctx, &row,
		`SELECT * FROM closing_lines WHERE game_date = ? AND selection_key = ?`, gameDate, selectionKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
