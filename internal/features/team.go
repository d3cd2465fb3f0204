package features

import (
	"context"
	"fmt"
	"sort"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// offenseAgg accumulates one team's offense over its batters' latest
// window rows, weighting rate stats by each batter's sample.
type offenseAgg struct {
	pa, ab, hrs   float64
	kPctW, bbPctW float64
	slgW, isoW    float64
	hitRateW      float64
	tbPerPAW      float64
	walkRateW     float64
}

func (a *offenseAgg) add(row store.BatterStats) {
	pa := float64(row.PA)
	ab := float64(row.AB)
	a.pa += pa
	a.ab += ab
	a.hrs += float64(row.HRs)
	if row.KPct != nil {
		a.kPctW += *row.KPct * pa
	}
	if row.BBPct != nil {
		a.bbPctW += *row.BBPct * pa
	}
	if row.SLG != nil {
		a.slgW += *row.SLG * ab
	}
	if row.ISO != nil {
		a.isoW += *row.ISO * ab
	}
	if row.HitRate != nil {
		a.hitRateW += *row.HitRate * pa
	}
	if row.TBPerPA != nil {
		a.tbPerPAW += *row.TBPerPA * pa
	}
	if row.WalkRate != nil {
		a.walkRateW += *row.WalkRate * pa
	}
}

func (a *offenseAgg) kPct() *float64    { return weighted1(a.kPctW, a.pa) }
func (a *offenseAgg) bbPct() *float64   { return weighted1(a.bbPctW, a.pa) }
func (a *offenseAgg) slg() *float64     { return weighted3(a.slgW, a.ab) }
func (a *offenseAgg) iso() *float64     { return weighted3(a.isoW, a.ab) }
func (a *offenseAgg) hitRate() *float64 { return weighted3(a.hitRateW, a.pa) }
func (a *offenseAgg) tbPerPA() *float64 { return weighted3(a.tbPerPAW, a.pa) }

// ba approximates team batting average as SLG minus ISO, both already
// AB-weighted over the same batters.
func (a *offenseAgg) ba() *float64 {
	slg, iso := a.slg(), a.iso()
	if slg == nil || iso == nil {
		return nil
	}
	return fptr(round3(*slg - *iso))
}

// obp folds approximate hits and walks back over plate appearances.
func (a *offenseAgg) obp() *float64 {
	if a.pa <= 0 {
		return nil
	}
	ba := a.ba()
	if ba == nil {
		return nil
	}
	hits := *ba * a.ab
	walks := a.walkRateW
	return fptr(round3((hits + walks) / a.pa))
}

func (a *offenseAgg) hrRate() *float64 {
	if a.pa <= 0 {
		return nil
	}
	return fptr(round3(a.hrs / a.pa))
}

func weighted1(sum, weight float64) *float64 {
	if weight <= 0 {
		return nil
	}
	return fptr(round1(sum / weight))
}

func weighted3(sum, weight float64) *float64 {
	if weight <= 0 {
		return nil
	}
	return fptr(round3(sum / weight))
}

// bullpenAgg accumulates a team's pitching staff rates weighted by
// batters faced. High-leverage splits need inning-state data the event
// feed lacks, so that column stays null.
type bullpenAgg struct {
	bf            float64
	kPctW, bbPctW float64
	hr9W          float64
}

func (a *bullpenAgg) add(row store.PitcherStats) {
	bf := float64(row.BF)
	a.bf += bf
	if row.KPct != nil {
		a.kPctW += *row.KPct * bf
	}
	if row.BBPct != nil {
		a.bbPctW += *row.BBPct * bf
	}
	if row.HRPer9 != nil {
		a.hr9W += *row.HRPer9 * bf
	}
}

// BuildTeamFeatures writes one team_daily_features row per team playing
// on the date.
func (b *Builder) BuildTeamFeatures(ctx context.Context, gameDate string) (int64, error) {
	teams, err := b.teamsOnDate(ctx, gameDate)
	if err != nil {
		return 0, err
	}
	if len(teams) == 0 {
		return 0, nil
	}

	batterWindows, err := b.s.Events.LatestBatterWindows(ctx, gameDate, []int{14, 30})
	if err != nil {
		return 0, fmt.Errorf("load batter windows: %w", err)
	}
	offense := map[string]map[int]*offenseAgg{}
	for _, row := range batterWindows {
		if row.Team == nil || !teams[*row.Team] {
			continue
		}
		if offense[*row.Team] == nil {
			offense[*row.Team] = map[int]*offenseAgg{14: {}, 30: {}}
		}
		offense[*row.Team][row.WindowDays].add(row)
	}

	pitcherWindows, err := b.s.Events.LatestPitcherWindows(ctx, gameDate, []int{14})
	if err != nil {
		return 0, fmt.Errorf("load pitcher windows: %w", err)
	}
	bullpen := map[string]*bullpenAgg{}
	for _, row := range pitcherWindows {
		if row.Team == nil || !teams[*row.Team] {
			continue
		}
		if bullpen[*row.Team] == nil {
			bullpen[*row.Team] = &bullpenAgg{}
		}
		bullpen[*row.Team].add(row)
	}

	rpg14, err := b.runsPerGame(ctx, gameDate, 14)
	if err != nil {
		return 0, err
	}
	rpg30, err := b.runsPerGame(ctx, gameDate, 30)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(teams))
	for t := range teams {
		ids = append(ids, t)
	}
	sort.Strings(ids)

	var rows []store.TeamFeatures
	for _, team := range ids {
		row := store.TeamFeatures{GameDate: gameDate, TeamID: team}
		if o := offense[team]; o != nil {
			o14, o30 := o[14], o[30]
			row.OffenseKPct14 = o14.kPct()
			row.OffenseBBPct14 = o14.bbPct()
			row.OffenseBA14 = o14.ba()
			row.OffenseOBP14 = o14.obp()
			row.OffenseOBP30 = o30.obp()
			row.OffenseSLG14 = o14.slg()
			row.OffenseSLG30 = o30.slg()
			row.OffenseISO14 = o14.iso()
			row.OffenseISO30 = o30.iso()
			row.OffenseHitRate14 = o14.hitRate()
			row.OffenseTBPerPA14 = o14.tbPerPA()
			row.HRRate14 = o14.hrRate()
			row.HRRate30 = o30.hrRate()
		}
		if rpg, ok := rpg14[team]; ok {
			row.RunsPerGame14 = fptr(rpg)
		}
		if rpg, ok := rpg30[team]; ok {
			row.RunsPerGame30 = fptr(rpg)
		}
		if bp := bullpen[team]; bp != nil && bp.bf > 0 {
			row.BullpenKPct14 = fptr(round1(bp.kPctW / bp.bf))
			hr9 := round2(bp.hr9W / bp.bf)
			row.BullpenHR914 = &hr9
			row.BullpenERAProxy14 = &hr9
			if bb := weighted1(bp.bbPctW, bp.bf); bb != nil {
				row.BullpenWHIPProxy14 = fptr(round2(1 + (*bb/100)*1.5))
			}
		}
		rows = append(rows, row)
	}

	n, err := b.s.Features.UpsertTeamFeatures(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("upsert team features: %w", err)
	}
	return n, nil
}

// runsPerGame computes per-team runs per game from finished games in
// [gameDate-window, gameDate).
func (b *Builder) runsPerGame(ctx context.Context, gameDate string, window int) (map[string]float64, error) {
	start, err := dateAdd(gameDate, -window)
	if err != nil {
		return nil, err
	}
	finals, err := b.s.Games.FinalsInRange(ctx, start, gameDate)
	if err != nil {
		return nil, fmt.Errorf("load finals: %w", err)
	}
	runs := map[string]float64{}
	played := map[string]float64{}
	for _, g := range finals {
		if g.HomeScore == nil || g.AwayScore == nil {
			continue
		}
		runs[g.HomeTeam] += float64(*g.HomeScore)
		runs[g.AwayTeam] += float64(*g.AwayScore)
		played[g.HomeTeam]++
		played[g.AwayTeam]++
	}
	out := map[string]float64{}
	for team, n := range played {
		if n > 0 {
			out[team] = round2(runs[team] / n)
		}
	}
	return out, nil
}
