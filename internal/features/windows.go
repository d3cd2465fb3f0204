package features

import (
	"math"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// BatterWindows and PitcherWindows are the rolling windows in days.
var (
	BatterWindows  = []int{7, 14, 30}
	PitcherWindows = []int{14, 30}
)

func safePct(numer, denom float64) *float64 {
	if denom <= 0 {
		return nil
	}
	v := round1(numer / denom * 100)
	return &v
}

func safeAvg(numer, denom float64) *float64 {
	if denom <= 0 {
		return nil
	}
	v := round1(numer / denom)
	return &v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// calcISO returns SLG minus AVG over the counted hits, nil when no ABs.
func calcISO(singles, doubles, triples, hrs, ab float64) *float64 {
	if ab <= 0 {
		return nil
	}
	hits := singles + doubles + triples + hrs
	avg := hits / ab
	slg := (singles + 2*doubles + 3*triples + 4*hrs) / ab
	v := round3(slg - avg)
	return &v
}

type batterAgg struct {
	playerName string
	team       string
	batHand    string

	pa, ab                         float64
	singles, doubles, triples, hrs float64
	ks, bbs                        float64
	batted, barrels, hardHit       float64
	evSum, laSum                   float64
	sweetSpot, flyBalls, pullFly   float64
	lhpAB, lhpS, lhpD, lhpT, lhpHR float64
	rhpAB, rhpS, rhpD, rhpT, rhpHR float64
}

func (a *batterAgg) add(ev store.PitchEvent) {
	if ev.BatterName != nil && *ev.BatterName != "" {
		a.playerName = *ev.BatterName
	}
	if ev.BatTeam != nil && *ev.BatTeam != "" {
		a.team = *ev.BatTeam
	}
	if ev.Stand != nil && (*ev.Stand == "L" || *ev.Stand == "R" || *ev.Stand == "S") {
		a.batHand = *ev.Stand
	}
	if isPA(ev) {
		a.pa++
	}
	if isAB(ev) {
		a.ab++
	}
	switch eventOf(ev) {
	case "single":
		a.singles++
	case "double":
		a.doubles++
	case "triple":
		a.triples++
	case "home_run":
		a.hrs++
	}
	if isStrikeout(ev) {
		a.ks++
	}
	if isWalk(ev) {
		a.bbs++
	}
	if isBatted(ev) {
		a.batted++
		a.evSum += *ev.LaunchSpeed
		if ev.LaunchAngle != nil {
			a.laSum += *ev.LaunchAngle
		}
	}
	if isBarrel(ev) {
		a.barrels++
	}
	if isHardHit(ev) {
		a.hardHit++
	}
	if isSweetSpot(ev) {
		a.sweetSpot++
	}
	if isFlyBall(ev) {
		a.flyBalls++
	}
	if isPullFly(ev) {
		a.pullFly++
	}
	if ev.PThrows != nil && isAB(ev) {
		switch *ev.PThrows {
		case "L":
			a.lhpAB++
			switch eventOf(ev) {
			case "single":
				a.lhpS++
			case "double":
				a.lhpD++
			case "triple":
				a.lhpT++
			case "home_run":
				a.lhpHR++
			}
		case "R":
			a.rhpAB++
			switch eventOf(ev) {
			case "single":
				a.rhpS++
			case "double":
				a.rhpD++
			case "triple":
				a.rhpT++
			case "home_run":
				a.rhpHR++
			}
		}
	}
}

// toStats renders the aggregate into one batter_stats row, nil when the
// window had no plate appearances.
func (a *batterAgg) toStats(playerID int64, statDate string, windowDays int) *store.BatterStats {
	if a.pa <= 0 {
		return nil
	}
	hits := a.singles + a.doubles + a.triples + a.hrs
	row := store.BatterStats{
		PlayerID:   playerID,
		StatDate:   statDate,
		WindowDays: windowDays,
		PA:         int(a.pa),
		AB:         int(a.ab),
		HRs:        int(a.hrs),
	}
	if a.playerName != "" {
		row.PlayerName = &a.playerName
	}
	if a.team != "" {
		row.Team = &a.team
	}
	if a.batHand != "" {
		row.BatHand = &a.batHand
	}
	row.KPct = safePct(a.ks, a.pa)
	row.BBPct = safePct(a.bbs, a.pa)
	row.BarrelPct = safePct(a.barrels, a.batted)
	row.HardHitPct = safePct(a.hardHit, a.batted)
	row.AvgExitVelo = safeAvg(a.evSum, a.batted)
	row.SweetSpotPct = safePct(a.sweetSpot, a.batted)
	row.FBPct = safePct(a.flyBalls, a.batted)
	row.PullPct = safePct(a.pullFly, a.flyBalls)
	row.ISO = calcISO(a.singles, a.doubles, a.triples, a.hrs, a.ab)
	if a.ab > 0 {
		slg := round3((a.singles + 2*a.doubles + 3*a.triples + 4*a.hrs) / a.ab)
		ba := round3(hits / a.ab)
		row.SLG = &slg
		row.BA = &ba
		row.HitRate = &ba
		sr := round3(a.singles / a.ab)
		dr := round3(a.doubles / a.ab)
		tr := round3(a.triples / a.ab)
		row.SinglesRate = &sr
		row.DoublesRate = &dr
		row.TriplesRate = &tr
	}
	if a.pa > 0 {
		tb := round3((a.singles + 2*a.doubles + 3*a.triples + 4*a.hrs) / a.pa)
		hr := round4(a.hrs / a.pa)
		wr := round3(a.bbs / a.pa)
		row.TBPerPA = &tb
		row.HRRate = &hr
		row.WalkRate = &wr
	}
	row.ISOVsLHP = calcISO(a.lhpS, a.lhpD, a.lhpT, a.lhpHR, a.lhpAB)
	row.ISOVsRHP = calcISO(a.rhpS, a.rhpD, a.rhpT, a.rhpHR, a.rhpAB)
	return &row
}

type pitcherAgg struct {
	playerName string
	team       string
	pitchHand  string

	pitches                        float64
	pa, ab                         float64
	singles, doubles, triples, hrs float64
	ks, bbs                        float64
	outs                           float64
	batted, barrels, hardHit       float64
	evSum                          float64
	flyBalls                       float64
	swings, whiffs                 float64
	inZonePitches, outZonePitches  float64
	chaseSwings                    float64
	fbVeloSum, fbVeloCount         float64
}

func (a *pitcherAgg) add(ev store.PitchEvent) {
	a.pitches++
	if ev.PitcherName != nil && *ev.PitcherName != "" {
		a.playerName = *ev.PitcherName
	}
	if ev.FldTeam != nil && *ev.FldTeam != "" {
		a.team = *ev.FldTeam
	}
	if ev.PThrows != nil && (*ev.PThrows == "L" || *ev.PThrows == "R") {
		a.pitchHand = *ev.PThrows
	}
	if isPA(ev) {
		a.pa++
	}
	if isAB(ev) {
		a.ab++
	}
	switch eventOf(ev) {
	case "single":
		a.singles++
	case "double":
		a.doubles++
	case "triple":
		a.triples++
	case "home_run":
		a.hrs++
	}
	if isStrikeout(ev) {
		a.ks++
	}
	if isWalk(ev) {
		a.bbs++
	}
	a.outs += float64(outsRecorded(ev))
	if isBatted(ev) {
		a.batted++
		a.evSum += *ev.LaunchSpeed
	}
	if isBarrel(ev) {
		a.barrels++
	}
	if isHardHit(ev) {
		a.hardHit++
	}
	if isFlyBall(ev) {
		a.flyBalls++
	}
	if isSwing(ev) {
		a.swings++
	}
	if isWhiff(ev) {
		a.whiffs++
	}
	if inZone(ev) {
		a.inZonePitches++
	}
	if outZone(ev) {
		a.outZonePitches++
	}
	if isChaseSwing(ev) {
		a.chaseSwings++
	}
	if isFastball(ev) {
		a.fbVeloSum += *ev.ReleaseSpeed
		a.fbVeloCount++
	}
}

// toStats renders the aggregate into one pitcher_stats row, nil when no
// pitches fell in the window. seasonFBVelo anchors the velocity trend.
func (a *pitcherAgg) toStats(playerID int64, statDate string, windowDays int, seasonFBVelo *float64) *store.PitcherStats {
	if a.pitches <= 0 {
		return nil
	}
	innings := a.outs / 3.0
	row := store.PitcherStats{
		PlayerID:   playerID,
		StatDate:   statDate,
		WindowDays: windowDays,
		BF:         int(a.pa),
	}
	if a.playerName != "" {
		row.PlayerName = &a.playerName
	}
	if a.team != "" {
		row.Team = &a.team
	}
	if a.pitchHand != "" {
		row.PitchHand = &a.pitchHand
	}
	row.KPct = safePct(a.ks, a.pa)
	row.BBPct = safePct(a.bbs, a.pa)
	if innings > 0 {
		hr9 := round3(a.hrs * 9.0 / innings)
		row.HRPer9 = &hr9
	}
	row.HRPerFB = safePct(a.hrs, a.flyBalls)
	row.HardHitPctAllowed = safePct(a.hardHit, a.batted)
	row.BarrelPctAllowed = safePct(a.barrels, a.batted)
	row.AvgExitVeloAllowed = safeAvg(a.evSum, a.batted)
	row.FBPctAllowed = safePct(a.flyBalls, a.batted)
	row.WhiffRate = safePct(a.whiffs, a.swings)
	row.ChaseRate = safePct(a.chaseSwings, a.outZonePitches)
	row.FastballVelo = safeAvg(a.fbVeloSum, a.fbVeloCount)
	if row.FastballVelo != nil && seasonFBVelo != nil {
		trend := math.Round((*row.FastballVelo-*seasonFBVelo)*100) / 100
		row.FastballVeloTrend = &trend
	}
	return &row
}
