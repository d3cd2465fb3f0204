package features

import (
	"context"
	"fmt"
	"sort"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// starterContext is the schedule-side view of one probable starter.
type starterContext struct {
	teamID string
	oppID  string
}

// BuildPitcherFeatures writes one pitcher_daily_features row per
// probable starter on the date. Recent-start workload and
// times-through-order tendencies are derived from raw events.
func (b *Builder) BuildPitcherFeatures(ctx context.Context, gameDate string) (int64, []string, error) {
	games, err := b.s.Games.ForDate(ctx, gameDate)
	if err != nil {
		return 0, nil, fmt.Errorf("load games: %w", err)
	}
	starters := map[int64]starterContext{}
	for _, g := range games {
		if g.HomePitcherID != nil {
			starters[*g.HomePitcherID] = starterContext{teamID: g.HomeTeam, oppID: g.AwayTeam}
		}
		if g.AwayPitcherID != nil {
			starters[*g.AwayPitcherID] = starterContext{teamID: g.AwayTeam, oppID: g.HomeTeam}
		}
	}
	if len(starters) == 0 {
		return 0, []string{"no probable starters for date"}, nil
	}

	windows, err := b.s.Events.LatestPitcherWindows(ctx, gameDate, PitcherWindows)
	if err != nil {
		return 0, nil, fmt.Errorf("load pitcher windows: %w", err)
	}
	byPitcher := map[int64]map[int]store.PitcherStats{}
	for _, row := range windows {
		if byPitcher[row.PlayerID] == nil {
			byPitcher[row.PlayerID] = map[int]store.PitcherStats{}
		}
		byPitcher[row.PlayerID][row.WindowDays] = row
	}

	workloads, ttos, err := b.recentStarterWork(ctx, gameDate, starters)
	if err != nil {
		return 0, nil, err
	}

	ids := make([]int64, 0, len(starters))
	for pid := range starters {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var rows []store.PitcherFeatures
	missing := 0
	for _, pid := range ids {
		wr := byPitcher[pid]
		if len(wr) == 0 {
			missing++
			continue
		}
		rows = append(rows, buildPitcherRow(gameDate, pid, starters[pid], wr, workloads[pid], ttos[pid]))
	}

	var warns []string
	if missing > 0 {
		warns = append(warns, fmt.Sprintf("%d probable starters had no window stats before date", missing))
	}
	if len(rows) == 0 {
		return 0, append(warns, "no pitcher feature rows generated"), nil
	}
	n, err := b.s.Features.UpsertPitcherFeatures(ctx, rows)
	if err != nil {
		return 0, warns, fmt.Errorf("upsert pitcher features: %w", err)
	}
	return n, warns, nil
}

// starterWorkload is outs and pitch counts over the last five starts.
type starterWorkload struct {
	outsAvg    *float64
	pitchesAvg *float64
}

// ttoProfile carries times-through-order degradation rates.
type ttoProfile struct {
	kDecayPct     *float64
	hrIncreasePct *float64
	endurance     *float64
}

// paEvent is one PA-terminal event inside a start, ordered by at-bat.
type paEvent struct {
	atBat int64
	k     bool
	hr    bool
}

// recentStarterWork scans events before the date and derives per-start
// workload plus TTO splits for the probable starters.
func (b *Builder) recentStarterWork(ctx context.Context, gameDate string, starters map[int64]starterContext) (map[int64]starterWorkload, map[int64]ttoProfile, error) {
	start, err := dateAdd(gameDate, -45)
	if err != nil {
		return nil, nil, err
	}
	events, err := b.s.Events.EventsInRange(ctx, start, gameDate)
	if err != nil {
		return nil, nil, fmt.Errorf("load starter events: %w", err)
	}

	type gameLine struct {
		gameDate string
		outs     int
		pitches  int
	}
	perGame := map[int64]map[int64]*gameLine{}
	paByGame := map[int64]map[int64][]paEvent{}

	for _, ev := range events {
		if _, ok := starters[ev.PitcherID]; !ok {
			continue
		}
		if perGame[ev.PitcherID] == nil {
			perGame[ev.PitcherID] = map[int64]*gameLine{}
			paByGame[ev.PitcherID] = map[int64][]paEvent{}
		}
		gl := perGame[ev.PitcherID][ev.GameID]
		if gl == nil {
			gl = &gameLine{gameDate: ev.GameDate}
			perGame[ev.PitcherID][ev.GameID] = gl
		}
		gl.pitches++
		gl.outs += outsRecorded(ev)
		if isPA(ev) {
			atBat := int64(0)
			if ev.AtBatNumber != nil {
				atBat = *ev.AtBatNumber
			}
			paByGame[ev.PitcherID][ev.GameID] = append(paByGame[ev.PitcherID][ev.GameID], paEvent{
				atBat: atBat,
				k:     isStrikeout(ev),
				hr:    eventOf(ev) == "home_run",
			})
		}
	}

	workloads := map[int64]starterWorkload{}
	ttos := map[int64]ttoProfile{}
	for pid, games := range perGame {
		lines := make([]gameLine, 0, len(games))
		for _, gl := range games {
			lines = append(lines, *gl)
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i].gameDate > lines[j].gameDate })
		if len(lines) > 5 {
			lines = lines[:5]
		}
		var outs, pitches float64
		for _, gl := range lines {
			outs += float64(gl.outs)
			pitches += float64(gl.pitches)
		}
		n := float64(len(lines))
		if n > 0 {
			workloads[pid] = starterWorkload{
				outsAvg:    fptr(round1(outs / n)),
				pitchesAvg: fptr(round1(pitches / n)),
			}
		}
		ttos[pid] = computeTTO(paByGame[pid])
	}
	return workloads, ttos, nil
}

// computeTTO splits each start's plate appearances into first, second
// and third time through the order (nine PAs each) and compares K and
// HR rates between the first and third pass. Decay is relative: a
// pitcher whose K rate falls from 25% to 20% decays 20%.
func computeTTO(games map[int64][]paEvent) ttoProfile {
	var pa [3]float64
	var ks [3]float64
	var hrs [3]float64
	for _, pas := range games {
		sort.Slice(pas, func(i, j int) bool { return pas[i].atBat < pas[j].atBat })
		for idx, p := range pas {
			bucket := idx / 9
			if bucket > 2 {
				break
			}
			pa[bucket]++
			if p.k {
				ks[bucket]++
			}
			if p.hr {
				hrs[bucket]++
			}
		}
	}

	var out ttoProfile
	if pa[0] < 18 || pa[2] < 9 {
		return out
	}
	k1 := ks[0] / pa[0]
	k3 := ks[2] / pa[2]
	if k1 > 0 {
		decay := round1((k1 - k3) / k1 * 100)
		out.kDecayPct = &decay
		// Neutral at the league-typical 18% decline.
		endurance := clamp(50+(18-decay)*1.5, 0, 100)
		out.endurance = fptr(round1(endurance))
	}
	hr1 := hrs[0] / pa[0]
	hr3 := hrs[2] / pa[2]
	if hr1 > 0 {
		inc := round1((hr3 - hr1) / hr1 * 100)
		out.hrIncreasePct = &inc
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// starterRoleConfidence grades how established the starter role is from
// batters faced in the trailing windows.
func starterRoleConfidence(wr map[int]store.PitcherStats) float64 {
	row14, ok14 := wr[14]
	row30, ok30 := wr[30]
	if !ok14 && !ok30 {
		return 0.2
	}
	if ok30 {
		bf := float64(row30.BF)
		switch {
		case bf >= 80:
			return 0.9
		case bf >= 50:
			return 0.75
		case bf >= 20:
			return 0.55
		default:
			return 0.35
		}
	}
	bf := float64(row14.BF)
	switch {
	case bf >= 40:
		return 0.7
	case bf >= 20:
		return 0.5
	default:
		return 0.35
	}
}

func buildPitcherRow(gameDate string, pid int64, sc starterContext, wr map[int]store.PitcherStats, work starterWorkload, tto ttoProfile) store.PitcherFeatures {
	w14, w30 := wr[14], wr[30]

	row := store.PitcherFeatures{GameDate: gameDate, PitcherID: pid}
	for _, src := range []store.PitcherStats{w30, w14} {
		if row.PlayerName == nil && src.PlayerName != nil {
			row.PlayerName = src.PlayerName
		}
		if row.TeamID == nil && src.Team != nil {
			row.TeamID = src.Team
		}
		if row.Throws == nil && src.PitchHand != nil {
			row.Throws = src.PitchHand
		}
	}
	if row.TeamID == nil && sc.teamID != "" {
		team := sc.teamID
		row.TeamID = &team
	}

	if _, ok := wr[14]; ok {
		row.BF14 = iptr(w14.BF)
	}
	if _, ok := wr[30]; ok {
		row.BF30 = iptr(w30.BF)
	}
	row.KPct14 = w14.KPct
	row.KPct30 = w30.KPct
	row.BBPct14 = w14.BBPct
	row.BBPct30 = w30.BBPct
	row.HRPer914 = w14.HRPer9
	row.HRPer930 = w30.HRPer9
	row.HRPerFB30 = w30.HRPerFB
	row.HardHitPctAllowed14 = w14.HardHitPctAllowed
	row.HardHitPctAllowed30 = w30.HardHitPctAllowed
	row.BarrelPctAllowed14 = w14.BarrelPctAllowed
	row.AvgExitVeloAllowed14 = w14.AvgExitVeloAllowed
	row.FBPctAllowed14 = w14.FBPctAllowed
	row.WhiffRate14 = w14.WhiffRate
	row.ChaseRate14 = w14.ChaseRate
	row.FastballVelo14 = w14.FastballVelo
	row.FastballVeloDelta = w14.FastballVeloTrend

	row.OutsRecordedAvgLast5 = work.outsAvg
	row.PitchesAvgLast5 = work.pitchesAvg
	row.StarterRoleConfidence = fptr(starterRoleConfidence(wr))

	// Handedness splits fall back to overall rates.
	row.KPctVsLHB = firstFloat(w30.KPct, w14.KPct)
	row.KPctVsRHB = firstFloat(w30.KPct, w14.KPct)

	row.TTOKDecayPct = tto.kDecayPct
	row.TTOHRIncreasePct = tto.hrIncreasePct
	row.TTOEnduranceScore = tto.endurance
	return row
}
