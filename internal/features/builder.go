package features

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ballparklabs/mlbedge/internal/store"
)

const dateLayout = "2006-01-02"

// Builder derives the feature store for one date at a time.
type Builder struct {
	s   *store.Store
	log zerolog.Logger
}

func NewBuilder(s *store.Store) *Builder {
	return &Builder{s: s, log: log.With().Str("component", "features").Logger()}
}

// Result summarizes one build pass.
type Result struct {
	GameDate    string
	WindowRows  int64
	BatterRows  int64
	PitcherRows int64
	TeamRows    int64
	ContextRows int64
	Warnings    []string
}

func dateAdd(gameDate string, days int) (string, error) {
	t, err := time.Parse(dateLayout, gameDate)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", gameDate, err)
	}
	return t.AddDate(0, 0, days).Format(dateLayout), nil
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// BuildAll runs window stats then the four daily feature tables.
func (b *Builder) BuildAll(ctx context.Context, gameDate string) (*Result, error) {
	res := &Result{GameDate: gameDate}

	n, err := b.BuildWindowStats(ctx, gameDate)
	if err != nil {
		return res, fmt.Errorf("window stats: %w", err)
	}
	res.WindowRows = n

	n, warns, err := b.BuildBatterFeatures(ctx, gameDate)
	if err != nil {
		return res, fmt.Errorf("batter features: %w", err)
	}
	res.BatterRows = n
	res.Warnings = append(res.Warnings, warns...)

	n, warns, err = b.BuildPitcherFeatures(ctx, gameDate)
	if err != nil {
		return res, fmt.Errorf("pitcher features: %w", err)
	}
	res.PitcherRows = n
	res.Warnings = append(res.Warnings, warns...)

	n, err = b.BuildTeamFeatures(ctx, gameDate)
	if err != nil {
		return res, fmt.Errorf("team features: %w", err)
	}
	res.TeamRows = n

	n, warns, err = b.BuildGameContext(ctx, gameDate)
	if err != nil {
		return res, fmt.Errorf("game context: %w", err)
	}
	res.ContextRows = n
	res.Warnings = append(res.Warnings, warns...)

	b.log.Info().
		Str("game_date", gameDate).
		Int64("window_rows", res.WindowRows).
		Int64("batter_rows", res.BatterRows).
		Int64("pitcher_rows", res.PitcherRows).
		Int64("team_rows", res.TeamRows).
		Int64("context_rows", res.ContextRows).
		Int("warnings", len(res.Warnings)).
		Msg("feature build complete")
	return res, nil
}

// BuildWindowStats aggregates raw events into rolling window rows with
// stat_date = gameDate. Each window covers [gameDate-W, gameDate), the
// right endpoint open so the target day never leaks in.
func (b *Builder) BuildWindowStats(ctx context.Context, gameDate string) (int64, error) {
	maxWindow := BatterWindows[len(BatterWindows)-1]
	start, err := dateAdd(gameDate, -maxWindow)
	if err != nil {
		return 0, err
	}
	events, err := b.s.Events.EventsInRange(ctx, start, gameDate)
	if err != nil {
		return 0, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	byBatter := map[int64][]store.PitchEvent{}
	byPitcher := map[int64][]store.PitchEvent{}
	for _, ev := range events {
		byBatter[ev.BatterID] = append(byBatter[ev.BatterID], ev)
		byPitcher[ev.PitcherID] = append(byPitcher[ev.PitcherID], ev)
	}

	windowStarts := map[int]string{}
	for _, w := range append(append([]int{}, BatterWindows...), PitcherWindows...) {
		if _, ok := windowStarts[w]; ok {
			continue
		}
		ws, err := dateAdd(gameDate, -w)
		if err != nil {
			return 0, err
		}
		windowStarts[w] = ws
	}

	var batterRows []store.BatterStats
	for pid, evs := range byBatter {
		for _, w := range BatterWindows {
			agg := &batterAgg{}
			for _, ev := range evs {
				if ev.GameDate >= windowStarts[w] {
					agg.add(ev)
				}
			}
			if row := agg.toStats(pid, gameDate, w); row != nil {
				batterRows = append(batterRows, *row)
			}
		}
	}

	var pitcherRows []store.PitcherStats
	for pid, evs := range byPitcher {
		// The widest window's velocity anchors the per-window trend.
		anchor := &pitcherAgg{}
		for _, ev := range evs {
			anchor.add(ev)
		}
		anchorVelo := safeAvg(anchor.fbVeloSum, anchor.fbVeloCount)

		for _, w := range PitcherWindows {
			agg := &pitcherAgg{}
			for _, ev := range evs {
				if ev.GameDate >= windowStarts[w] {
					agg.add(ev)
				}
			}
			if row := agg.toStats(pid, gameDate, w, anchorVelo); row != nil {
				pitcherRows = append(pitcherRows, *row)
			}
		}
	}

	var total int64
	n, err := b.s.Events.UpsertBatterStats(ctx, batterRows)
	if err != nil {
		return total, fmt.Errorf("upsert batter stats: %w", err)
	}
	total += n
	n, err = b.s.Events.UpsertPitcherStats(ctx, pitcherRows)
	if err != nil {
		return total, fmt.Errorf("upsert pitcher stats: %w", err)
	}
	total += n
	return total, nil
}
