package scoring

import (
	"context"
	"math"

	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// expectedPABySlot is the long-run plate appearance count per lineup
// slot for a nine-inning game.
var expectedPABySlot = map[int]float64{
	1: 4.8, 2: 4.7, 3: 4.55, 4: 4.45, 5: 4.3, 6: 4.15, 7: 4.0, 8: 3.85, 9: 3.75,
}

var hitsOrderScore = map[int]float64{
	1: 72, 2: 78, 3: 82, 4: 78, 5: 68, 6: 58, 7: 45, 8: 35, 9: 28,
}

var hitsWeights = struct {
	contact, hitForm, pitcherContact, order, context, platoon, hotCold, tto, dayNight float64
}{0.22, 0.22, 0.15, 0.12, 0.08, 0.05, 0.05, 0.06, 0.05}

// scoreHits serves both the 1+ hit prop and the hits over/under line.
// The per-PA hit rate model is shared; only the probability mapping and
// row shape differ by market.
func scoreHits(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
	var out []store.ModelScore
	for i := range g.batters {
		bf := &g.batters[i]
		if bf.HitRate14 == nil && bf.HitRate30 == nil {
			continue
		}
		oppTeam, oppSP := g.opponentsOf(orS(bf.TeamID))

		slot, confirmed, err := e.lineupSlot(ctx, g.game.GameDate, g.game.GameID, *bf)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			// Lineup-required market: no slot means no plate
			// appearances to project.
			continue
		}

		var flags []string
		flags = missingFlag(flags, "hit_rate_14", bf.HitRate14)
		if !confirmed {
			flags = append(flags, "lineup_pending")
		}
		weatherPending := g.ctxRow == nil || g.ctxRow.WeatherTempF == nil
		if weatherPending {
			flags = append(flags, "weather_pending")
		}
		if oppSP == nil {
			flags = append(flags, "missing:opposing_starter")
		}

		rate, pa := hitRateAndPA(bf, oppSP, g.ctxRow, *slot, confirmed)
		projection := clampf(rate*pa, 0, 3.5)

		factors := hitsFactors(bf, oppSP, g.ctxRow, *slot)
		score := composite(factors)

		base := store.ModelScore{
			PlayerID:         &bf.PlayerID,
			PlayerName:       bf.PlayerName,
			TeamID:           bf.TeamID,
			OpponentTeamID:   sptr(oppTeam),
			TeamAbbr:         bf.TeamID,
			OpponentTeamAbbr: sptr(oppTeam),
			ModelProjection:  fptr(round3f(projection)),
		}

		if spec.Market == "HITS_1P" {
			out = append(out, hits1PlusRows(g, spec, base, bf.PlayerID, rate, pa, score, factors, flags)...)
		} else {
			out = append(out, hitsLineRows(g, spec, base, bf.PlayerID, rate, pa, score, factors, flags)...)
		}
	}
	return out, nil
}

// hitRateAndPA is the per-PA hit rate after the opposing starter, times
// through the order, weather and day/night adjustments, plus the
// expected plate appearances for the slot.
func hitRateAndPA(bf *store.BatterFeatures, oppSP *store.PitcherFeatures, ctxRow *store.GameContextFeatures, slot int, confirmed bool) (float64, float64) {
	base := 0.6*orF(bf.HitRate14, orF(bf.HitRate30, 0.23)) + 0.4*orF(bf.HitRate30, orF(bf.HitRate14, 0.23))
	base = clampf(base, 0.08, 0.45)

	suppress := 0.0
	boost := 0.0
	if oppSP != nil {
		suppress = (orF(oppSP.KPct14, 22)-22)*0.0025 - (orF(oppSP.HardHitPctAllowed14, 35)-35)*0.0015
		boost = (orF(oppSP.TTOKDecayPct, 18) - 18) * 0.0008
		if slot >= 3 && slot <= 6 {
			boost *= 1.3
		}
	}

	rate := clampf(base-suppress+boost, 0.06, 0.55)
	if ctxRow != nil && ctxRow.WeatherRunMultiplier != nil {
		rate *= *ctxRow.WeatherRunMultiplier
	}
	if ctxRow != nil && ctxRow.IsDayGame != nil && *ctxRow.IsDayGame == 1 {
		rate *= 1.02
	} else {
		rate *= 0.995
	}
	rate = clampf(rate, 0.06, 0.60)

	pa := 4.1
	if v, ok := expectedPABySlot[slot]; ok {
		pa = v
	}
	if !confirmed {
		pa *= 0.95
	}
	return rate, pa
}

func hitsFactors(bf *store.BatterFeatures, oppSP *store.PitcherFeatures, ctxRow *store.GameContextFeatures, slot int) []factor {
	contact := 50.0
	if bf.KPct14 != nil {
		contact = clampf(100-*bf.KPct14*2.2, 0, 100)
	}
	hitForm := 50.0
	if bf.HitRate14 != nil {
		hitForm = clampf(50+(*bf.HitRate14-0.25)*220, 0, 100)
	}
	pitcherContact := 50.0
	ttoScore := 50.0
	if oppSP != nil {
		if oppSP.HardHitPctAllowed14 != nil {
			pitcherContact = clampf(50+(*oppSP.HardHitPctAllowed14-35)*1.5, 0, 100)
		}
		if oppSP.TTOEnduranceScore != nil {
			ttoScore = clampf(100-*oppSP.TTOEnduranceScore, 0, 100)
		}
	}
	order := 50.0
	if v, ok := hitsOrderScore[slot]; ok {
		order = v
	}
	contextScore := 50.0
	dayNight := 47.0
	if ctxRow != nil {
		if ctxRow.WeatherTempF != nil {
			contextScore = clampf(50+(*ctxRow.WeatherTempF-70)*0.7, 0, 100)
		}
		if ctxRow.IsDayGame != nil && *ctxRow.IsDayGame == 1 {
			dayNight = 58.0
		}
	}
	platoon := platoonAdvantage(hitSplitFor(bf, oppSP), bf.HitRate14)
	hotCold := relativeSlope(bf.HotColdDeltaHitRate, bf.HitRate30, 100, 0.05, 10, 90)

	return []factor{
		{"contact_score", contact, hitsWeights.contact},
		{"hit_form_score", hitForm, hitsWeights.hitForm},
		{"pitcher_contact_allow_score", pitcherContact, hitsWeights.pitcherContact},
		{"batting_order_score", order, hitsWeights.order},
		{"context_score", contextScore, hitsWeights.context},
		{"platoon_fit_score", platoon, hitsWeights.platoon},
		{"hot_cold_score", hotCold, hitsWeights.hotCold},
		{"tto_score", ttoScore, hitsWeights.tto},
		{"day_night_score", dayNight, hitsWeights.dayNight},
	}
}

func hitSplitFor(bf *store.BatterFeatures, oppSP *store.PitcherFeatures) *float64 {
	if oppSP == nil || oppSP.Throws == nil {
		return nil
	}
	if *oppSP.Throws == "L" {
		return bf.HitRateVsLHP
	}
	return bf.HitRateVsRHP
}

func hits1PlusRows(g *gameBundle, spec Spec, base store.ModelScore, playerID int64, rate, pa, score float64, factors []factor, flags []string) []store.ModelScore {
	probYes := 1 - math.Pow(1-clampf(rate, 0.01, 0.8), pa)

	var out []store.ModelScore
	priced := false
	for i := range g.odds {
		o := &g.odds[i]
		if o.PlayerID == nil || *o.PlayerID != playerID {
			continue
		}
		priced = true
		row := base
		row.EventID = o.EventID
		row.SelectionKey = sptr(o.SelectionKey)
		row.Side = o.Side
		row.BetType = "HITS_1PLUS"
		row.Line = o.Line
		row.Sportsbook = sptr(o.Sportsbook)
		row.BookImpliedProb = fptr(o.ImpliedProb)

		sideScore, prob := score, probYes
		if o.Side == "NO" {
			sideScore, prob = 100-score, 1-probYes
		}
		row.ModelProb = fptr(round3f(prob))
		edge := probabilityEdgePct(prob, &o.ImpliedProb)
		finalize(&row, spec, sideScore, edge, factors, flags)
		out = append(out, row)
	}
	if !priced {
		row := base
		row.Side = "YES"
		row.BetType = "HITS_1PLUS"
		row.Line = fptr(0.5)
		row.ModelProb = fptr(round3f(probYes))
		row.SelectionKey = sptr(oddskit.SelectionKey(spec.Market, oddskit.PlayerEntity(playerID), "YES", nil))
		finalize(&row, spec, score, nil, factors, flags)
		out = append(out, row)
	}
	return out
}

func hitsLineRows(g *gameBundle, spec Spec, base store.ModelScore, playerID int64, rate, pa, score float64, factors []factor, flags []string) []store.ModelScore {
	lambda := rate * pa

	var out []store.ModelScore
	priced := false
	for i := range g.odds {
		o := &g.odds[i]
		if o.PlayerID == nil || *o.PlayerID != playerID || o.Line == nil {
			continue
		}
		priced = true
		probOver := poissonOverProb(lambda, *o.Line)
		row := base
		row.EventID = o.EventID
		row.SelectionKey = sptr(o.SelectionKey)
		row.Side = o.Side
		row.BetType = "HITS_" + o.Side
		row.Line = o.Line
		row.Sportsbook = sptr(o.Sportsbook)
		row.BookImpliedProb = fptr(o.ImpliedProb)

		sideScore, prob := score, probOver
		if o.Side == "UNDER" {
			sideScore, prob = 100-score, 1-probOver
		}
		row.ModelProb = fptr(round3f(prob))
		edge := probabilityEdgePct(prob, &o.ImpliedProb)
		finalize(&row, spec, sideScore, edge, factors, flags)
		out = append(out, row)
	}
	if !priced {
		line := math.Round(lambda*2) / 2
		if line < 0.5 {
			line = 0.5
		}
		row := base
		row.Side = "OVER"
		row.BetType = "HITS_OVER"
		row.Line = fptr(line)
		row.ModelProb = fptr(round3f(poissonOverProb(lambda, line)))
		row.SelectionKey = sptr(oddskit.SelectionKey(spec.Market, oddskit.PlayerEntity(playerID), "OVER", fptr(line)))
		finalize(&row, spec, score, nil, factors, flags)
		out = append(out, row)
	}
	return out
}
