package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// OddsRepo persists normalized odds snapshots.
type OddsRepo struct {
	s *Store
}

const insertOddsSQL = `
INSERT INTO market_odds (
    game_date, game_id, event_id, market, entity_type,
    player_id, player_name, team_abbr, bet_type, side, line,
    price_american, decimal_odds, implied_probability,
    selection_key, sportsbook, is_best_available, fetched_at
) VALUES (
    :game_date, :game_id, :event_id, :market, :entity_type,
    :player_id, :player_name, :team_abbr, :bet_type, :side, :line,
    :price_american, :decimal_odds, :implied_probability,
    :selection_key, :sportsbook, :is_best_available, :fetched_at
)
ON CONFLICT (selection_key, sportsbook, fetched_at) DO NOTHING`

// Insert appends odds snapshot rows. Re-delivery of the same snapshot
// is a no-op via the natural-key conflict clause.
func (r *OddsRepo) Insert(ctx context.Context, rows []MarketOdds) (int64, error) {
	return namedBatch(ctx, r.s, insertOddsSQL, rows)
}

// RecomputeBestAvailable atomically re-marks is_best_available for every
// selection key on a date: the latest snapshot per book competes and the
// lowest implied probability wins.
func (r *OddsRepo) RecomputeBestAvailable(ctx context.Context, gameDate string) error {
	opCtx, cancel := r.s.opCtx(ctx, 1)
	defer cancel()

	tx, err := r.s.db.BeginTxx(opCtx, nil)
	if err != nil {
		return fmt.Errorf("begin best-available tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(opCtx, r.s.rebind(
		`UPDATE market_odds SET is_best_available = 0 WHERE game_date = ?`), gameDate); err != nil {
		return fmt.Errorf("clear best-available: %w", err)
	}

	// Latest snapshot per (selection, book), then lowest implied
	// probability per selection.
	best := `
UPDATE market_odds SET is_best_available = 1
WHERE id IN (
    SELECT id FROM (
        SELECT mo.id, mo.selection_key,
               mo.implied_probability,
               ROW_NUMBER() OVER (
                   PARTITION BY mo.selection_key
                   ORDER BY mo.implied_probability ASC, mo.id ASC
               ) AS rnk
        FROM market_odds mo
        JOIN (
            SELECT selection_key, sportsbook, MAX(fetched_at) AS max_fetched
            FROM market_odds
            WHERE game_date = ?
            GROUP BY selection_key, sportsbook
        ) latest
          ON latest.selection_key = mo.selection_key
         AND latest.sportsbook = mo.sportsbook
         AND latest.max_fetched = mo.fetched_at
        WHERE mo.game_date = ?
    ) ranked
    WHERE ranked.rnk = 1
)`
	if _, err := tx.ExecContext(opCtx, r.s.rebind(best), gameDate, gameDate); err != nil {
		return fmt.Errorf("mark best-available: %w", err)
	}
	return tx.Commit()
}

// BestForMarket returns best-available rows for a market on a date,
// optionally scoped to one game.
func (r *OddsRepo) BestForMarket(ctx context.Context, gameDate, market string, gameID *int64) ([]MarketOdds, error) {
	q := `SELECT * FROM market_odds
WHERE game_date = ? AND market = ? AND is_best_available = 1`
	args := []interface{}{gameDate, market}
	if gameID != nil {
		q += ` AND game_id = ?`
		args = append(args, *gameID)
	}
	q += ` ORDER BY selection_key`
	var out []MarketOdds
	err := r.s.selectCtx(ctx, &out, q, args...)
	return out, err
}

// OpenRowAsOf returns the earliest snapshot for a selection fetched at
// or before cutoff. Backtests use it so open odds never postdate the
// score they are joined to.
func (r *OddsRepo) OpenRowAsOf(ctx context.Context, gameDate, selectionKey, cutoff string) (*MarketOdds, error) {
	var row MarketOdds
	err := r.s.getCtx(ctx, &row, `
SELECT * FROM market_odds
WHERE game_date = ? AND selection_key = ? AND fetched_at <= ?
ORDER BY fetched_at ASC LIMIT 1`, gameDate, selectionKey, cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// LatestRow returns the most recent snapshot for a selection across
// books ("latest_pregame" closing policy).
func (r *OddsRepo) LatestRow(ctx context.Context, gameDate, selectionKey string) (*MarketOdds, error) {
	var row MarketOdds
	err := r.s.getCtx(ctx, &row, `
SELECT * FROM market_odds
WHERE game_date = ? AND selection_key = ?
ORDER BY fetched_at DESC, id DESC LIMIT 1`, gameDate, selectionKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// BestRow returns the current best-available snapshot for a selection
// ("best_available" closing policy).
func (r *OddsRepo) BestRow(ctx context.Context, gameDate, selectionKey string) (*MarketOdds, error) {
	var row MarketOdds
	err := r.s.getCtx(ctx, &row, `
SELECT * FROM market_odds
WHERE game_date = ? AND selection_key = ? AND is_best_available = 1
ORDER BY fetched_at DESC LIMIT 1`, gameDate, selectionKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// BatterIDs returns distinct player ids priced in player markets on a
// date. Feature builders fold them into the batter pool.
func (r *OddsRepo) BatterIDs(ctx context.Context, gameDate string) ([]int64, error) {
	var out []int64
	err := r.s.selectCtx(ctx, &out, `
SELECT DISTINCT player_id FROM market_odds
WHERE game_date = ? AND entity_type = 'player' AND player_id IS NOT NULL`, gameDate)
	return out, err
}

// SelectionKeys returns the distinct selection keys priced on a date for
// the given markets.
func (r *OddsRepo) SelectionKeys(ctx context.Context, gameDate string, markets []string) ([]string, error) {
	if len(markets) == 0 {
		var out []string
		err := r.s.selectCtx(ctx, &out,
			`SELECT DISTINCT selection_key FROM market_odds WHERE game_date = ?`, gameDate)
		return out, err
	}
	q, args, err := sqlx.In(
		`SELECT DISTINCT selection_key FROM market_odds WHERE game_date = ? AND market IN (?)`,
		gameDate, markets)
	if err != nil {
		return nil, err
	}
	var out []string
	err = r.s.selectCtx(ctx, &out, q, args...)
	return out, err
}
