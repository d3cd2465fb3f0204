package scoring

import (
	"context"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// hrWeights is the HR composite weight vector. Barrel rate and the
// park/weather environment carry the most signal; the hot/cold factor
// is intentionally light because it regresses hard.
var hrWeights = struct {
	barrel, matchup, parkWeather, pitcherVuln, hotCold float64
}{0.25, 0.20, 0.25, 0.20, 0.10}

// scoreHR scores the yes side of the home-run prop for every priced
// batter in the game.
func scoreHR(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
	byPlayer := make(map[int64]*store.BatterFeatures, len(g.batters))
	for i := range g.batters {
		byPlayer[g.batters[i].PlayerID] = &g.batters[i]
	}

	var out []store.ModelScore
	for i := range g.odds {
		o := &g.odds[i]
		if o.Side != "YES" || o.PlayerID == nil {
			continue
		}
		bf, ok := byPlayer[*o.PlayerID]
		if !ok {
			continue
		}

		oppTeam, oppSP := g.opponentsOf(orS(bf.TeamID))

		var flags []string
		flags = missingFlag(flags, "barrel_pct_14", bf.BarrelPct14)

		slot, confirmed, err := e.lineupSlot(ctx, g.game.GameDate, g.game.GameID, *bf)
		if err != nil {
			return nil, err
		}
		if slot == nil || !confirmed {
			flags = append(flags, "lineup_pending")
		}
		if g.ctxRow == nil || g.ctxRow.WeatherTempF == nil {
			flags = append(flags, "weather_pending")
		}

		barrelScore := percentileRank(bf.BarrelPct14, g.pop.batterBarrel)

		isoSplit := platoonSplitISO(bf, oppSP)
		if isoSplit == nil {
			flags = append(flags, "missing:iso_split")
		}
		var hr9PR, barrelAllowedPR float64 = 50, 50
		if oppSP != nil {
			hr9PR = percentileRank(oppSP.HRPer914, g.pop.pitcherHR9)
			barrelAllowedPR = percentileRank(oppSP.BarrelPctAllowed14, g.pop.pitcherBarrelAllowed)
		} else {
			flags = append(flags, "missing:opposing_starter")
		}
		matchup := 0.65*scaleBetween(isoSplit, 0.10, 0.30) + 0.35*hr9PR
		pitcherVuln := 0.6*hr9PR + 0.4*barrelAllowedPR
		parkWeather := hrParkWeatherScore(g.ctxRow)
		hotCold := scaleBetween(bf.HotColdDeltaISO, -0.08, 0.08)

		factors := []factor{
			{"barrel_score", barrelScore, hrWeights.barrel},
			{"matchup_score", matchup, hrWeights.matchup},
			{"park_weather_score", parkWeather, hrWeights.parkWeather},
			{"pitcher_vuln_score", pitcherVuln, hrWeights.pitcherVuln},
			{"hot_cold_score", hotCold, hrWeights.hotCold},
		}
		score := composite(factors)

		// Composite maps onto a 2% floor HR probability, topping out
		// around the rate of a hot slugger in a launching pad.
		prob := 0.02 + score/100*0.33

		implied := o.ImpliedProb
		edge := probabilityEdgePct(prob, &implied)

		row := store.ModelScore{
			EventID:          o.EventID,
			PlayerID:         o.PlayerID,
			PlayerName:       firstS(bf.PlayerName, o.PlayerName),
			TeamID:           bf.TeamID,
			OpponentTeamID:   sptr(oppTeam),
			TeamAbbr:         bf.TeamID,
			OpponentTeamAbbr: sptr(oppTeam),
			SelectionKey:     sptr(o.SelectionKey),
			Side:             "YES",
			BetType:          "HR_1PLUS",
			Line:             o.Line,
			ModelProb:        fptr(round3f(prob)),
			BookImpliedProb:  fptr(implied),
			Sportsbook:       sptr(o.Sportsbook),
		}
		finalize(&row, spec, score, edge, factors, flags)
		out = append(out, row)
	}
	return out, nil
}

// platoonSplitISO picks the ISO split facing the opposing starter's
// hand, falling back to blended ISO when no split is banked.
func platoonSplitISO(bf *store.BatterFeatures, oppSP *store.PitcherFeatures) *float64 {
	if oppSP != nil && oppSP.Throws != nil {
		if *oppSP.Throws == "L" && bf.ISOVsLHP != nil {
			return bf.ISOVsLHP
		}
		if *oppSP.Throws == "R" && bf.ISOVsRHP != nil {
			return bf.ISOVsRHP
		}
	}
	return firstF(bf.ISO30, bf.ISO14)
}

// hrParkWeatherScore folds park HR factor, wind and temperature into a
// single 0..100 environment score.
func hrParkWeatherScore(ctxRow *store.GameContextFeatures) float64 {
	park, wind, tempMult := 1.0, 1.0, 1.0
	if ctxRow != nil {
		if ctxRow.ParkHRFactor != nil {
			park = *ctxRow.ParkHRFactor
		}
		if ctxRow.WeatherHRMultiplier != nil {
			wind = *ctxRow.WeatherHRMultiplier
		}
		if ctxRow.WeatherTempF != nil {
			tempMult = 0.95 + clampf(*ctxRow.WeatherTempF-50, 0, 40)/40*0.12
		}
	}
	env := park * wind * tempMult
	return scaleBetween(&env, 0.85, 1.20)
}

func orS(v *string) string {
	if v != nil {
		return *v
	}
	return ""
}

func firstS(vals ...*string) *string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}
