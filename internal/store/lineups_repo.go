package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LineupsRepo persists versioned lineup snapshots.
type LineupsRepo struct {
	s *Store
}

const insertLineupSQL = `
INSERT INTO lineups (
    game_date, game_id, team_id, player_id, batting_order, position,
    is_starter, confirmed, source, fetched_at, active_version
) VALUES (
    :game_date, :game_id, :team_id, :player_id, :batting_order, :position,
    :is_starter, :confirmed, :source, :fetched_at, :active_version
)`

// ReplaceSnapshot deactivates the current active version for the
// (date, game, team) and inserts the new snapshot in one transaction.
func (r *LineupsRepo) ReplaceSnapshot(ctx context.Context, gameDate string, gameID int64, teamID string, rows []Lineup) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	opCtx, cancel := r.s.opCtx(ctx, len(rows))
	defer cancel()

	tx, err := r.s.db.BeginTxx(opCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin lineup tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(opCtx, r.s.rebind(`
UPDATE lineups SET active_version = 0
WHERE game_date = ? AND game_id = ? AND team_id = ? AND active_version = 1`),
		gameDate, gameID, teamID); err != nil {
		return 0, fmt.Errorf("deactivate lineup version: %w", err)
	}

	res, err := tx.NamedExecContext(opCtx, insertLineupSQL, rows)
	if err != nil {
		return 0, fmt.Errorf("insert lineup snapshot: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("commit lineup tx: %w", err)
	}
	return n, nil
}

// ActiveSnapshot returns the active lineup rows for (date, game, team).
func (r *LineupsRepo) ActiveSnapshot(ctx context.Context, gameDate string, gameID int64, teamID string) ([]Lineup, error) {
	var out []Lineup
	err := r.s.selectCtx(ctx, &out, `
SELECT * FROM lineups
WHERE game_date = ? AND game_id = ? AND team_id = ? AND active_version = 1
ORDER BY batting_order, player_id`, gameDate, gameID, teamID)
	return out, err
}

// SnapshotsForDate returns every lineup row for a date across versions,
// newest snapshots first. The rescore job diffs consecutive versions.
func (r *LineupsRepo) SnapshotsForDate(ctx context.Context, gameDate string) ([]Lineup, error) {
	var out []Lineup
	err := r.s.selectCtx(ctx, &out, `
SELECT * FROM lineups
WHERE game_date = ?
ORDER BY game_id, team_id, fetched_at DESC, batting_order, player_id`, gameDate)
	return out, err
}

// SlotFor returns the active batting order and confirmed flag for a
// player, or (nil, 0) when the player is not in the active snapshot.
func (r *LineupsRepo) SlotFor(ctx context.Context, gameDate string, gameID, playerID int64) (*int, int, error) {
	var row struct {
		BattingOrder *int `db:"batting_order"`
		Confirmed    int  `db:"confirmed"`
	}
	err := r.s.getCtx(ctx, &row, `
SELECT batting_order, confirmed FROM lineups
WHERE game_date = ? AND game_id = ? AND player_id = ? AND active_version = 1
ORDER BY fetched_at DESC LIMIT 1`, gameDate, gameID, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return row.BattingOrder, row.Confirmed, nil
}

// RecentSlots returns each player's most common batting slot over the
// trailing window before the date. Feature builders use it as the
// probable lineup when no snapshot is posted.
func (r *LineupsRepo) RecentSlots(ctx context.Context, start, end string) (map[int64]int, error) {
	var rows []struct {
		PlayerID     int64 `db:"player_id"`
		BattingOrder int   `db:"batting_order"`
		N            int   `db:"n"`
	}
	err := r.s.selectCtx(ctx, &rows, `
SELECT player_id, batting_order, COUNT(*) AS n
FROM lineups
WHERE game_date >= ? AND game_date < ?
  AND batting_order IS NOT NULL AND is_starter = 1
GROUP BY player_id, batting_order
ORDER BY player_id, n DESC`, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int)
	for _, row := range rows {
		if _, seen := out[row.PlayerID]; !seen {
			out[row.PlayerID] = row.BattingOrder
		}
	}
	return out, nil
}
