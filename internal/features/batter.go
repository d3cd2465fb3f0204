package features

import (
	"context"
	"fmt"
	"sort"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// BuildBatterFeatures writes one batter_daily_features row per pooled
// batter for the date. The pool is the union of posted lineups, priced
// player props and recent window stats for teams playing that day; a
// batter with no window history before the date is skipped.
func (b *Builder) BuildBatterFeatures(ctx context.Context, gameDate string) (int64, []string, error) {
	windows, err := b.s.Events.LatestBatterWindows(ctx, gameDate, BatterWindows)
	if err != nil {
		return 0, nil, fmt.Errorf("load batter windows: %w", err)
	}
	byPlayer := map[int64]map[int]store.BatterStats{}
	for _, row := range windows {
		if byPlayer[row.PlayerID] == nil {
			byPlayer[row.PlayerID] = map[int]store.BatterStats{}
		}
		byPlayer[row.PlayerID][row.WindowDays] = row
	}

	pool := map[int64]bool{}
	teams, err := b.teamsOnDate(ctx, gameDate)
	if err != nil {
		return 0, nil, err
	}
	for pid, wr := range byPlayer {
		team := ""
		for _, w := range []int{30, 14, 7} {
			if row, ok := wr[w]; ok && row.Team != nil {
				team = *row.Team
				break
			}
		}
		if teams[team] {
			pool[pid] = true
		}
	}
	lineupRows, err := b.s.Lineups.SnapshotsForDate(ctx, gameDate)
	if err != nil {
		return 0, nil, fmt.Errorf("load lineups: %w", err)
	}
	for _, row := range lineupRows {
		if row.ActiveVersion == 1 {
			pool[row.PlayerID] = true
		}
	}
	oddsIDs, err := b.s.Odds.BatterIDs(ctx, gameDate)
	if err != nil {
		return 0, nil, fmt.Errorf("load priced batters: %w", err)
	}
	for _, pid := range oddsIDs {
		pool[pid] = true
	}

	if len(pool) == 0 {
		return 0, []string{"no batter pool for date"}, nil
	}

	slotStart, err := dateAdd(gameDate, -30)
	if err != nil {
		return 0, nil, err
	}
	recentSlots, err := b.s.Lineups.RecentSlots(ctx, slotStart, gameDate)
	if err != nil {
		return 0, nil, fmt.Errorf("load recent slots: %w", err)
	}

	ids := make([]int64, 0, len(pool))
	for pid := range pool {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var rows []store.BatterFeatures
	missing := 0
	for _, pid := range ids {
		wr := byPlayer[pid]
		if len(wr) == 0 {
			missing++
			continue
		}
		rows = append(rows, buildBatterRow(gameDate, pid, wr, recentSlots))
	}

	var warns []string
	if missing > 0 {
		warns = append(warns, fmt.Sprintf("%d pooled batters had no window stats before date", missing))
	}
	if len(rows) == 0 {
		return 0, append(warns, "no batter feature rows generated"), nil
	}
	n, err := b.s.Features.UpsertBatterFeatures(ctx, rows)
	if err != nil {
		return 0, warns, fmt.Errorf("upsert batter features: %w", err)
	}
	return n, warns, nil
}

func buildBatterRow(gameDate string, pid int64, wr map[int]store.BatterStats, recentSlots map[int64]int) store.BatterFeatures {
	w7, w14, w30 := wr[7], wr[14], wr[30]

	row := store.BatterFeatures{GameDate: gameDate, PlayerID: pid}
	for _, src := range []store.BatterStats{w30, w14, w7} {
		if row.PlayerName == nil && src.PlayerName != nil {
			row.PlayerName = src.PlayerName
		}
		if row.TeamID == nil && src.Team != nil {
			row.TeamID = src.Team
		}
		if row.Bats == nil && src.BatHand != nil {
			row.Bats = src.BatHand
		}
	}

	if _, ok := wr[7]; ok {
		row.PA7 = iptr(w7.PA)
	}
	if _, ok := wr[14]; ok {
		row.PA14 = iptr(w14.PA)
	}
	if _, ok := wr[30]; ok {
		row.PA30 = iptr(w30.PA)
	}

	row.KPct14 = w14.KPct
	row.KPct30 = w30.KPct
	row.BBPct14 = w14.BBPct
	row.BarrelPct14 = w14.BarrelPct
	row.BarrelPct30 = w30.BarrelPct
	row.HardHitPct14 = w14.HardHitPct
	row.AvgExitVelo14 = w14.AvgExitVelo
	row.SweetSpotPct14 = w14.SweetSpotPct
	row.FBPct14 = w14.FBPct
	row.PullPct14 = w14.PullPct

	row.ISO7 = w7.ISO
	row.ISO14 = w14.ISO
	row.ISO30 = w30.ISO
	row.SLG14 = w14.SLG
	row.TBPerPA14 = w14.TBPerPA
	row.TBPerPA30 = w30.TBPerPA

	row.HitRate7 = w7.HitRate
	row.HitRate14 = w14.HitRate
	row.HitRate30 = w30.HitRate
	row.HRRate14 = w14.HRRate
	row.HRRate30 = w30.HRRate
	row.DoublesRate14 = w14.DoublesRate
	row.TriplesRate14 = w14.TriplesRate

	// Split metrics fall back to overall rates when the sample is thin.
	row.ISOVsLHP = firstFloat(w30.ISOVsLHP, w14.ISOVsLHP, w30.ISO)
	row.ISOVsRHP = firstFloat(w30.ISOVsRHP, w14.ISOVsRHP, w30.ISO)
	row.HitRateVsLHP = w30.HitRate
	row.HitRateVsRHP = w30.HitRate
	row.KPctVsLHP = firstFloat(w30.KPct, w14.KPct)
	row.KPctVsRHP = firstFloat(w30.KPct, w14.KPct)

	if w7.ISO != nil && w30.ISO != nil {
		row.HotColdDeltaISO = fptr(round3(*w7.ISO - *w30.ISO))
	}
	if w7.HitRate != nil && w30.HitRate != nil {
		row.HotColdDeltaHitRate = fptr(round3(*w7.HitRate - *w30.HitRate))
	}
	if slot, ok := recentSlots[pid]; ok {
		row.RecentLineupSlot = iptr(slot)
	}
	return row
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func (b *Builder) teamsOnDate(ctx context.Context, gameDate string) (map[string]bool, error) {
	games, err := b.s.Games.ForDate(ctx, gameDate)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	teams := map[string]bool{}
	for _, g := range games {
		teams[g.HomeTeam] = true
		teams[g.AwayTeam] = true
	}
	return teams, nil
}
