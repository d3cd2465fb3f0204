package scoring

import (
	"context"

	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// scoreML scores the full-game moneyline, both sides.
func scoreML(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
	return moneylineRows(g, spec, false), nil
}

// scoreF5ML scores the first-five moneyline. Bullpens have not entered
// the game yet, so the bullpen term is dropped entirely.
func scoreF5ML(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
	return moneylineRows(g, spec, true), nil
}

// starterStrength is a signed run-suppression rating for a probable
// starter, centered on zero for a league-average arm.
func starterStrength(pf *store.PitcherFeatures) float64 {
	if pf == nil {
		return 0
	}
	k := orF(pf.KPct14, 22)
	bb := orF(pf.BBPct14, 8)
	hr9 := orF(pf.HRPer914, 1.1)
	role := orF(pf.StarterRoleConfidence, 0.6)
	return (k-bb)*0.7 - (hr9-1.1)*12 + (role-0.6)*8
}

// offenseStrength is a signed run-scoring rating for a team's offense.
func offenseStrength(tf *store.TeamFeatures) float64 {
	if tf == nil {
		return 0
	}
	return (orF(tf.RunsPerGame14, 4.4)-4.4)*2.8 +
		(orF(tf.OffenseOBP14, 0.320)-0.320)*120 +
		(orF(tf.OffenseSLG14, 0.405)-0.405)*55 +
		(orF(tf.HRRate14, 0.032)-0.032)*180
}

// bullpenStrength is a signed rating for the relief corps, preferring
// high-leverage ERA when banked over the all-relief proxy.
func bullpenStrength(tf *store.TeamFeatures) float64 {
	if tf == nil {
		return 0
	}
	era := orF(tf.BullpenERAProxy14, 4.2)
	if tf.BullpenHighLevERA14 != nil {
		era = 0.6**tf.BullpenHighLevERA14 + 0.4*era
	}
	return (4.2-era)*2 +
		(1.30-orF(tf.BullpenWHIPProxy14, 1.30))*14 +
		(orF(tf.BullpenKPct14, 22)-22)*0.55 -
		(orF(tf.BullpenHR914, 1.1)-1.1)*7
}

func moneylineRows(g *gameBundle, spec Spec, firstFive bool) []store.ModelScore {
	var flags []string
	if g.homeSP == nil {
		flags = append(flags, "missing:home_starter")
	}
	if g.awaySP == nil {
		flags = append(flags, "missing:away_starter")
	}
	if g.home == nil || g.away == nil {
		flags = append(flags, "missing:team_features")
	}
	weatherMult := 1.0
	if g.ctxRow != nil && g.ctxRow.WeatherRunMultiplier != nil {
		weatherMult = *g.ctxRow.WeatherRunMultiplier
	} else {
		flags = append(flags, "weather_pending")
	}

	spDiff := starterStrength(g.homeSP) - starterStrength(g.awaySP)
	offDiff := offenseStrength(g.home) - offenseStrength(g.away)
	bpDiff := 0.0
	if !firstFive {
		bpDiff = bullpenStrength(g.home) - bullpenStrength(g.away)
	}

	homeTotal := starterStrength(g.homeSP) + offenseStrength(g.home)
	awayTotal := starterStrength(g.awaySP) + offenseStrength(g.away)
	if !firstFive {
		homeTotal += bullpenStrength(g.home)
		awayTotal += bullpenStrength(g.away)
	}
	net := homeTotal - awayTotal + 1.8 + (weatherMult-1)*2
	homeProb := sigmoid(net / 8.5)

	factors := []factor{
		{"starter_edge_score", clampf(50+spDiff*2.1, 0, 100), 0.32},
		{"offense_edge_score", clampf(50+offDiff*2.5, 0, 100), 0.28},
		{"home_field_score", 62, 0.14},
		{"weather_context_score", clampf(50+(weatherMult-1)*150, 0, 100), 0.08},
	}
	if !firstFive {
		factors = append(factors, factor{"bullpen_edge_score", clampf(50+bpDiff*3.0, 0, 100), 0.18})
	}

	sides := []struct {
		side string
		team string
		opp  string
		prob float64
		net  float64
	}{
		{"HOME", g.game.HomeTeam, g.game.AwayTeam, homeProb, net},
		{"AWAY", g.game.AwayTeam, g.game.HomeTeam, 1 - homeProb, -net},
	}

	var out []store.ModelScore
	for _, s := range sides {
		sideFactors := factors
		if s.side == "AWAY" {
			sideFactors = flipFactors(factors)
		}
		score := clampf(50+(s.prob-0.5)*90+s.net*0.4, 0, 100)

		row := store.ModelScore{
			TeamID:           sptr(s.team),
			OpponentTeamID:   sptr(s.opp),
			TeamAbbr:         sptr(s.team),
			OpponentTeamAbbr: sptr(s.opp),
			Side:             s.side,
			BetType:          spec.Market + "_" + s.side,
			ModelProb:        fptr(round3f(s.prob)),
		}
		var edge *float64
		if o := oddsFor(g.odds, nil, s.side); o != nil {
			row.EventID = o.EventID
			row.SelectionKey = sptr(o.SelectionKey)
			row.Sportsbook = sptr(o.Sportsbook)
			row.BookImpliedProb = fptr(o.ImpliedProb)
			edge = probabilityEdgePct(s.prob, &o.ImpliedProb)
		} else {
			row.SelectionKey = sptr(oddskit.SelectionKey(spec.Market, oddskit.GameEntity(g.game.GameID), s.side, nil))
		}
		finalize(&row, spec, score, edge, sideFactors, flags)
		out = append(out, row)
	}
	return out
}

// flipFactors mirrors matchup-differential factor scores around the
// neutral 50 for the opposite side of a game market.
func flipFactors(factors []factor) []factor {
	out := make([]factor, len(factors))
	for i, f := range factors {
		out[i] = factor{f.name, clampf(100-f.score, 0, 100), f.weight}
	}
	return out
}
