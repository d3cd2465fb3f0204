package scoring

import (
	"context"
	"math"

	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/store"
)

var tbOrderScore = map[int]float64{
	1: 72, 2: 78, 3: 85, 4: 82, 5: 70, 6: 58, 7: 45, 8: 35, 9: 28,
}

var tbWeights = struct {
	powerForm, tbRate, pitcherDamage, order, parkWeather, xbh, tto, dayNight float64
}{0.24, 0.20, 0.14, 0.12, 0.10, 0.08, 0.07, 0.05}

// scoreTB scores the total-bases line for every lineup batter with a
// banked TB rate. The projection is TB-per-PA adjusted for the opposing
// starter's contact suppression and the run environment.
func scoreTB(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
	var out []store.ModelScore
	for i := range g.batters {
		bf := &g.batters[i]
		if bf.TBPerPA14 == nil && bf.TBPerPA30 == nil {
			continue
		}
		oppTeam, oppSP := g.opponentsOf(orS(bf.TeamID))

		slot, confirmed, err := e.lineupSlot(ctx, g.game.GameDate, g.game.GameID, *bf)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			continue
		}

		var flags []string
		flags = missingFlag(flags, "tb_per_pa_14", bf.TBPerPA14)
		if !confirmed {
			flags = append(flags, "lineup_pending")
		}
		if g.ctxRow == nil || g.ctxRow.WeatherTempF == nil {
			flags = append(flags, "weather_pending")
		}
		if oppSP == nil {
			flags = append(flags, "missing:opposing_starter")
		}

		base := clampf(0.6*orF(bf.TBPerPA14, orF(bf.TBPerPA30, 0.40))+0.4*orF(bf.TBPerPA30, orF(bf.TBPerPA14, 0.40)), 0.10, 0.95)
		penalty := 0.0
		if oppSP != nil {
			penalty = (89-orF(oppSP.AvgExitVeloAllowed14, 89))*0.002 + (35-orF(oppSP.HardHitPctAllowed14, 35))*0.003
		}
		env := tbEnvironment(g.ctxRow)

		pa := 4.05
		if v, ok := expectedPABySlot[*slot]; ok {
			pa = v
		}
		if !confirmed {
			pa *= 0.95
		}
		perPA := clampf((base-penalty)*env, 0.08, 1.10)
		projection := clampf(perPA*pa, 0.1, 6.0)

		factors := tbFactors(bf, oppSP, g.ctxRow, *slot, base, env)
		score := composite(factors)

		rowBase := store.ModelScore{
			PlayerID:         &bf.PlayerID,
			PlayerName:       bf.PlayerName,
			TeamID:           bf.TeamID,
			OpponentTeamID:   sptr(oppTeam),
			TeamAbbr:         bf.TeamID,
			OpponentTeamAbbr: sptr(oppTeam),
			ModelProjection:  fptr(round3f(projection)),
		}

		priced := false
		for j := range g.odds {
			o := &g.odds[j]
			if o.PlayerID == nil || *o.PlayerID != bf.PlayerID || o.Line == nil {
				continue
			}
			priced = true
			probOver := poissonOverProb(projection, *o.Line)
			row := rowBase
			row.EventID = o.EventID
			row.SelectionKey = sptr(o.SelectionKey)
			row.Side = o.Side
			row.BetType = "TB_" + o.Side
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
			line := math.Round(projection*2) / 2
			if line < 0.5 {
				line = 0.5
			}
			row := rowBase
			row.Side = "OVER"
			row.BetType = "TB_OVER"
			row.Line = fptr(line)
			row.ModelProb = fptr(round3f(poissonOverProb(projection, line)))
			row.SelectionKey = sptr(oddskit.SelectionKey(spec.Market, oddskit.PlayerEntity(bf.PlayerID), "OVER", fptr(line)))
			finalize(&row, spec, score, nil, factors, flags)
			out = append(out, row)
		}
	}
	return out, nil
}

func tbEnvironment(ctxRow *store.GameContextFeatures) float64 {
	run, hr, park := 1.0, 1.0, 1.0
	if ctxRow != nil {
		run = orF(ctxRow.WeatherRunMultiplier, 1.0)
		hr = orF(ctxRow.WeatherHRMultiplier, 1.0)
		park = orF(ctxRow.ParkHRFactor, 1.0)
	}
	return clampf(run*hr*park, 0.85, 1.2)
}

func tbFactors(bf *store.BatterFeatures, oppSP *store.PitcherFeatures, ctxRow *store.GameContextFeatures, slot int, baseTB, env float64) []factor {
	powerForm := 50.0
	if bf.ISO14 != nil || bf.SLG14 != nil {
		powerForm = clampf(50+(orF(bf.ISO14, 0.16)-0.16)*260+(orF(bf.SLG14, 0.40)-0.40)*120, 0, 100)
	}
	tbRate := clampf(50+(baseTB-0.42)*150, 0, 100)

	pitcherDamage := 50.0
	ttoScore := 50.0
	if oppSP != nil {
		pitcherDamage = clampf(50+(orF(oppSP.HardHitPctAllowed14, 35)-35)*1.4+(orF(oppSP.BarrelPctAllowed14, 8.5)-8.5)*2.0, 0, 100)
		if oppSP.TTOEnduranceScore != nil {
			ttoScore = clampf(100-*oppSP.TTOEnduranceScore, 0, 100)
		}
	}
	order := 50.0
	if v, ok := tbOrderScore[slot]; ok {
		order = v
	}
	parkWeather := clampf(50+(env-1)*180, 0, 100)

	xbh := clampf(50+orF(bf.DoublesRate14, 0)*200+orF(bf.TriplesRate14, 0)*400+orF(bf.HRRate14, 0)*250, 0, 100)

	dayNight := 47.0
	if ctxRow != nil && ctxRow.IsDayGame != nil && *ctxRow.IsDayGame == 1 {
		dayNight = 56.0
	}

	return []factor{
		{"power_form_score", powerForm, tbWeights.powerForm},
		{"tb_rate_score", tbRate, tbWeights.tbRate},
		{"pitcher_damage_score", pitcherDamage, tbWeights.pitcherDamage},
		{"batting_order_score", order, tbWeights.order},
		{"park_weather_score", parkWeather, tbWeights.parkWeather},
		{"xbh_score", xbh, tbWeights.xbh},
		{"tto_score", ttoScore, tbWeights.tto},
		{"day_night_score", dayNight, tbWeights.dayNight},
	}
}
