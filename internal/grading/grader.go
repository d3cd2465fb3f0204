// Package grading resolves scored selections against realized results:
// it extracts outcome values per selection key, captures closing lines,
// and settles logged bets with profit and closing-line value.
package grading

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// Closing-line policies. latest_pregame takes the newest snapshot across
// books; best_available takes the flagged best row.
const (
	ClosingLatestPregame = "latest_pregame"
	ClosingBestAvailable = "best_available"
)

// statuses that mean a game's result is bankable.
var finalStatuses = map[string]bool{
	"final":     true,
	"game over": true,
	"completed": true,
}

var voidStatuses = map[string]bool{
	"cancelled": true,
	"postponed": true,
}

// Linescore is per-inning run scoring, used for first-five markets.
type Linescore struct {
	HomeByInning []int
	AwayByInning []int
}

// LinescoreProvider supplies per-inning scoring for a final game. A nil
// provider leaves first-five selections ungraded.
type LinescoreProvider interface {
	Linescore(ctx context.Context, gameID int64) (*Linescore, error)
}

// Grader settles one date at a time.
type Grader struct {
	s             *store.Store
	log           zerolog.Logger
	linescores    LinescoreProvider
	closingPolicy string
}

func New(s *store.Store, logger zerolog.Logger, linescores LinescoreProvider, closingPolicy string) *Grader {
	if closingPolicy == "" {
		closingPolicy = ClosingLatestPregame
	}
	return &Grader{
		s:             s,
		log:           logger.With().Str("component", "grading").Logger(),
		linescores:    linescores,
		closingPolicy: closingPolicy,
	}
}

// Summary reports what one grading pass did.
type Summary struct {
	Outcomes     int64
	ClosingLines int64
	BetsSettled  int64
}

// GradeDate extracts outcomes for every final game on the date, captures
// closing lines for the graded selections, and settles pending bets.
// Selections for games that are not yet final stay ungraded.
func (g *Grader) GradeDate(ctx context.Context, gameDate string) (Summary, error) {
	var sum Summary

	games, err := g.s.Games.ForDate(ctx, gameDate)
	if err != nil {
		return sum, fmt.Errorf("load games: %w", err)
	}
	byGame := make(map[int64]store.Game, len(games))
	finalCount := 0
	for _, gm := range games {
		byGame[gm.GameID] = gm
		if isFinal(gm) {
			finalCount++
		}
	}
	if finalCount == 0 {
		g.log.Info().Str("date", gameDate).Msg("no final games to grade")
		return sum, nil
	}

	lines, err := g.statLines(ctx, gameDate)
	if err != nil {
		return sum, err
	}

	selections, err := g.selectionsForDate(ctx, gameDate)
	if err != nil {
		return sum, err
	}

	var outcomes []store.MarketOutcome
	settledAt := store.UTCNow()
	for key, gameID := range selections {
		gm, ok := byGame[gameID]
		if !ok || !isFinal(gm) {
			continue
		}
		outcome, err := g.outcomeFor(ctx, key, gm, lines)
		if err != nil {
			g.log.Warn().Err(err).Str("selection", key).Msg("outcome skipped")
			continue
		}
		if outcome == nil {
			continue
		}
		outcome.GameDate = gameDate
		outcome.GameID = gameID
		outcome.SelectionKey = key
		outcome.SettledAt = settledAt
		outcomes = append(outcomes, *outcome)
	}

	if len(outcomes) > 0 {
		n, err := g.s.Outcomes.UpsertOutcomes(ctx, outcomes)
		if err != nil {
			return sum, fmt.Errorf("upsert outcomes: %w", err)
		}
		sum.Outcomes = n

		sum.ClosingLines, err = g.captureClosingLines(ctx, gameDate, outcomes)
		if err != nil {
			return sum, err
		}
	}

	sum.BetsSettled, err = g.settleBets(ctx, gameDate, byGame)
	if err != nil {
		return sum, err
	}

	g.log.Info().Str("date", gameDate).
		Int64("outcomes", sum.Outcomes).
		Int64("closing_lines", sum.ClosingLines).
		Int64("bets_settled", sum.BetsSettled).
		Msg("date graded")
	return sum, nil
}

func isFinal(gm store.Game) bool {
	return finalStatuses[strings.ToLower(gm.Status)]
}

// selectionsForDate enumerates selection keys worth grading: everything
// actively scored plus anything a pending bet references.
func (g *Grader) selectionsForDate(ctx context.Context, gameDate string) (map[string]int64, error) {
	out := make(map[string]int64)

	scores, err := g.s.Scores.ActiveForDate(ctx, gameDate)
	if err != nil {
		return nil, fmt.Errorf("load active scores: %w", err)
	}
	for _, row := range scores {
		if row.SelectionKey != nil {
			out[*row.SelectionKey] = row.GameID
		}
	}

	bets, err := g.s.Outcomes.PendingBets(ctx, gameDate)
	if err != nil {
		return nil, fmt.Errorf("load pending bets: %w", err)
	}
	for _, b := range bets {
		out[b.SelectionKey] = b.GameID
	}
	return out, nil
}

// captureClosingLines snapshots the closing row per graded selection
// under the configured policy.
func (g *Grader) captureClosingLines(ctx context.Context, gameDate string, outcomes []store.MarketOutcome) (int64, error) {
	capturedAt := store.UTCNow()
	var rows []store.ClosingLine
	for _, o := range outcomes {
		row, err := g.closingRow(ctx, gameDate, o.SelectionKey)
		if err != nil {
			return 0, err
		}
		if row == nil {
			continue
		}
		rows = append(rows, store.ClosingLine{
			GameDate:      gameDate,
			SelectionKey:  o.SelectionKey,
			Sportsbook:    row.Sportsbook,
			PriceAmerican: row.PriceAmerican,
			ImpliedProb:   row.ImpliedProb,
			Line:          row.Line,
			CapturedAt:    capturedAt,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := g.s.Outcomes.UpsertClosingLines(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("upsert closing lines: %w", err)
	}
	return n, nil
}

func (g *Grader) closingRow(ctx context.Context, gameDate, selectionKey string) (*store.MarketOdds, error) {
	if g.closingPolicy == ClosingBestAvailable {
		return g.s.Odds.BestRow(ctx, gameDate, selectionKey)
	}
	return g.s.Odds.LatestRow(ctx, gameDate, selectionKey)
}

// settleBets resolves every pending bet whose outcome is now known.
// Bets on cancelled games void at zero profit.
func (g *Grader) settleBets(ctx context.Context, gameDate string, byGame map[int64]store.Game) (int64, error) {
	bets, err := g.s.Outcomes.PendingBets(ctx, gameDate)
	if err != nil {
		return 0, err
	}
	var settled int64
	for _, b := range bets {
		gm, ok := byGame[b.GameID]
		if ok && voidStatuses[strings.ToLower(gm.Status)] {
			if err := g.finishBet(ctx, b, "void", 0); err != nil {
				return settled, err
			}
			settled++
			continue
		}

		outcome, err := g.s.Outcomes.OutcomeFor(ctx, gameDate, b.SelectionKey)
		if err != nil {
			return settled, err
		}
		if outcome == nil {
			continue
		}
		result := Settle(b.Side, b.Line, outcome.OutcomeValue)
		profit := Profit(result, b.OddsAmerican, b.StakeUnits)

		closing, err := g.s.Outcomes.ClosingLineFor(ctx, gameDate, b.SelectionKey)
		if err != nil {
			return settled, err
		}
		if closing != nil {
			b.ImpliedProbClose = &closing.ImpliedProb
			clv := b.ImpliedProbOpen - closing.ImpliedProb
			b.ClvOpenToClose = &clv
			if b.Line != nil && closing.Line != nil {
				delta := *closing.Line - *b.Line
				b.LineDelta = &delta
			}
		}
		if err := g.finishBet(ctx, b, result, profit); err != nil {
			return settled, err
		}
		settled++
	}
	return settled, nil
}

func (g *Grader) finishBet(ctx context.Context, b store.Bet, status string, profit float64) error {
	now := store.UTCNow()
	b.Status = status
	b.ProfitUnits = &profit
	b.SettledAt = &now
	if err := g.s.Outcomes.SettleBet(ctx, b); err != nil {
		return fmt.Errorf("settle bet %d: %w", b.ID, err)
	}
	return nil
}

// parseKey wraps the odds-package parser with grading's error context.
func parseKey(key string) (oddskit.Selection, error) {
	sel, err := oddskit.ParseSelectionKey(key)
	if err != nil {
		return sel, fmt.Errorf("parse selection: %w", err)
	}
	return sel, nil
}
