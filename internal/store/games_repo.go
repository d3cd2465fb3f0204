package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GamesRepo persists the schedule.
type GamesRepo struct {
	s *Store
}

const upsertGameSQL = `
INSERT INTO games (
    game_id, game_date, game_time, home_team, away_team,
    home_pitcher_id, away_pitcher_id, home_pitcher_name, away_pitcher_name,
    home_pitcher_hand, away_pitcher_hand, stadium_id, umpire_name,
    status, home_score, away_score
) VALUES (
    :game_id, :game_date, :game_time, :home_team, :away_team,
    :home_pitcher_id, :away_pitcher_id, :home_pitcher_name, :away_pitcher_name,
    :home_pitcher_hand, :away_pitcher_hand, :stadium_id, :umpire_name,
    :status, :home_score, :away_score
)
ON CONFLICT (game_id) DO UPDATE SET
    game_time = excluded.game_time,
    home_pitcher_id = excluded.home_pitcher_id,
    away_pitcher_id = excluded.away_pitcher_id,
    home_pitcher_name = excluded.home_pitcher_name,
    away_pitcher_name = excluded.away_pitcher_name,
    home_pitcher_hand = excluded.home_pitcher_hand,
    away_pitcher_hand = excluded.away_pitcher_hand,
    stadium_id = excluded.stadium_id,
    umpire_name = excluded.umpire_name,
    status = excluded.status,
    home_score = excluded.home_score,
    away_score = excluded.away_score`

// Upsert writes schedule rows keyed by game_id.
func (r *GamesRepo) Upsert(ctx context.Context, games []Game) (int64, error) {
	return namedBatch(ctx, r.s, upsertGameSQL, games)
}

// ForDate returns all games scheduled on a date.
func (r *GamesRepo) ForDate(ctx context.Context, gameDate string) ([]Game, error) {
	var out []Game
	err := r.s.selectCtx(ctx, &out,
		`SELECT * FROM games WHERE game_date = ? ORDER BY game_id`, gameDate)
	return out, err
}

// ByID returns one game or nil when absent.
func (r *GamesRepo) ByID(ctx context.Context, gameID int64) (*Game, error) {
	var g Game
	err := r.s.getCtx(ctx, &g, `SELECT * FROM games WHERE game_id = ?`, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load game %d: %w", gameID, err)
	}
	return &g, nil
}

// FinalsInRange returns finished games with game_date in [start, end).
// Team run-rate features read from it.
func (r *GamesRepo) FinalsInRange(ctx context.Context, start, end string) ([]Game, error) {
	var out []Game
	err := r.s.selectCtx(ctx, &out, `
SELECT * FROM games
WHERE game_date >= ? AND game_date < ? AND status = 'final'
ORDER BY game_date, game_id`, start, end)
	return out, err
}

// Dates returns the distinct game dates within [start, end].
func (r *GamesRepo) Dates(ctx context.Context, start, end string) ([]string, error) {
	var out []string
	err := r.s.selectCtx(ctx, &out,
		`SELECT DISTINCT game_date FROM games WHERE game_date >= ? AND game_date <= ? ORDER BY game_date`,
		start, end)
	return out, err
}
