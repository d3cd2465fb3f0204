package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// ChangedLineup marks one (game, team) whose active snapshot moved.
type ChangedLineup struct {
	GameID          int64
	TeamID          string
	Confirmed       bool
	BecameConfirmed bool
}

// LineupSync reports one lineup fetch pass.
type LineupSync struct {
	GamesSeen    int
	RowsInserted int64
	Changed      []ChangedLineup
}

// SyncLineups pulls boxscore lineups for every game on the date and
// inserts a new snapshot only where the posted lineup differs from the
// active one. Unchanged snapshots cost nothing, so the job can poll.
func (p *Pipeline) SyncLineups(ctx context.Context, gameDate string) (*LineupSync, error) {
	games, err := p.s.Games.ForDate(ctx, gameDate)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}

	sync := &LineupSync{GamesSeen: len(games)}
	fetchedAt := store.UTCNow()
	for _, g := range games {
		snaps, err := p.mlb.Lineups(ctx, g.GameID, g.Status)
		if err != nil {
			p.log.Warn().Err(err).Int64("game_id", g.GameID).Msg("lineup fetch failed")
			continue
		}
		for _, snap := range snaps {
			confirmed := 0
			if snap.Confirmed {
				confirmed = 1
			}
			rows := snap.Rows
			for i := range rows {
				rows[i].GameDate = gameDate
				rows[i].GameID = g.GameID
				rows[i].Confirmed = confirmed
				rows[i].Source = "mlb_stats_api"
				rows[i].FetchedAt = fetchedAt
				rows[i].ActiveVersion = 1
			}

			existing, err := p.s.Lineups.ActiveSnapshot(ctx, gameDate, g.GameID, snap.TeamID)
			if err != nil {
				return sync, fmt.Errorf("active snapshot game %d: %w", g.GameID, err)
			}
			if lineupSignature(existing) == lineupSignature(rows) {
				continue
			}

			n, err := p.s.Lineups.ReplaceSnapshot(ctx, gameDate, g.GameID, snap.TeamID, rows)
			if err != nil {
				return sync, fmt.Errorf("replace snapshot game %d: %w", g.GameID, err)
			}
			sync.RowsInserted += n
			sync.Changed = append(sync.Changed, ChangedLineup{
				GameID:          g.GameID,
				TeamID:          snap.TeamID,
				Confirmed:       snap.Confirmed,
				BecameConfirmed: snap.Confirmed && !anyConfirmed(existing),
			})
		}
	}

	p.log.Info().
		Str("date", gameDate).
		Int("games", sync.GamesSeen).
		Int("changed", len(sync.Changed)).
		Int64("rows", sync.RowsInserted).
		Msg("lineups synced")
	return sync, nil
}

// lineupSignature canonicalizes a snapshot for change detection:
// sorted (player, order, position, starter, confirmed) tuples.
func lineupSignature(rows []store.Lineup) string {
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		order := -1
		if r.BattingOrder != nil {
			order = *r.BattingOrder
		}
		pos := ""
		if r.Position != nil {
			pos = *r.Position
		}
		parts = append(parts, fmt.Sprintf("%d|%d|%s|%d|%d", r.PlayerID, order, pos, r.IsStarter, r.Confirmed))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

func anyConfirmed(rows []store.Lineup) bool {
	for _, r := range rows {
		if r.Confirmed == 1 {
			return true
		}
	}
	return false
}
