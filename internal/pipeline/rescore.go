package pipeline

import (
	"context"
	"fmt"

	"github.com/ballparklabs/mlbedge/internal/scoring"
)

// RescoreResult summarizes one lineup-triggered rescore pass.
type RescoreResult struct {
	GameDate     string
	Lineups      *LineupSync
	GamesChanged []int64
	RowsScored   int64
}

// RescoreOnLineup refetches lineups and, for every game whose snapshot
// changed or just became confirmed, supersedes the game's active rows
// with a fresh score under a lineup_rescore run. Unchanged games keep
// their rows; a lineup wobble should never churn the whole slate.
func (p *Pipeline) RescoreOnLineup(ctx context.Context, gameDate string, sendAlerts bool) (*RescoreResult, error) {
	sync, err := p.SyncLineups(ctx, gameDate)
	if err != nil {
		return nil, err
	}
	res := &RescoreResult{GameDate: gameDate, Lineups: sync}

	// Unconfirmed edits still move batter projections, so any change
	// triggers a rescore of its game.
	seen := make(map[int64]bool)
	for _, ch := range sync.Changed {
		seen[ch.GameID] = true
	}
	for gameID := range seen {
		res.GamesChanged = append(res.GamesChanged, gameID)
	}
	if len(res.GamesChanged) == 0 {
		p.log.Info().Str("date", gameDate).Msg("no lineup changes, nothing to rescore")
		return res, nil
	}

	for _, market := range lineupSensitiveMarkets() {
		n, err := p.runStage(ctx, "lineup_rescore", gameDate, market, "lineup", func(ctx context.Context, runID int64) (int64, error) {
			var total int64
			for _, gameID := range res.GamesChanged {
				gameID := gameID
				n, err := p.engine.ScoreMarket(ctx, gameDate, market, runID, &gameID)
				if err != nil {
					return total, fmt.Errorf("game %d: %w", gameID, err)
				}
				if n == 0 {
					// The model produced nothing this time; retire
					// stale rows instead of leaving them active.
					if _, err := p.s.Scores.DeactivateForGame(ctx, gameDate, gameID, market); err != nil {
						return total, err
					}
				}
				total += n
			}
			return total, nil
		})
		if err != nil {
			return res, err
		}
		res.RowsScored += n

		if sendAlerts && n > 0 {
			if err := p.alerter.SendMarketAlerts(ctx, gameDate, market); err != nil {
				p.log.Warn().Err(err).Str("market", market).Msg("alert send failed")
			}
		}
	}

	p.log.Info().
		Str("date", gameDate).
		Int("games", len(res.GamesChanged)).
		Int64("rows", res.RowsScored).
		Msg("lineup rescore complete")
	return res, nil
}

// lineupSensitiveMarkets lists markets whose model reads the posted
// lineup: every market where lineups are required or recommended.
func lineupSensitiveMarkets() []string {
	var out []string
	for _, market := range scoring.SupportedMarkets() {
		spec, err := scoring.SpecFor(market)
		if err != nil {
			continue
		}
		if spec.Lineup != scoring.LineupNotRequired {
			out = append(out, market)
		}
	}
	return out
}
