package scoring

import (
	"context"

	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/store"
)

var kWeights = struct {
	kForm, whiffChase, oppK, pitchRole, contactQuality, context float64
}{0.26, 0.22, 0.18, 0.14, 0.12, 0.08}

// scoreK scores both probable starters' strikeout props. The opponent's
// offensive K rate pushes the score up; hard contact allowed pulls it
// down since balls in play end at-bats without a strikeout.
func scoreK(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
	type starter struct {
		pf      *store.PitcherFeatures
		id      *int64
		name    *string
		team    string
		opp     string
		oppTeam *store.TeamFeatures
	}
	starters := []starter{
		{g.homeSP, g.game.HomePitcherID, g.game.HomePitcherName, g.game.HomeTeam, g.game.AwayTeam, g.away},
		{g.awaySP, g.game.AwayPitcherID, g.game.AwayPitcherName, g.game.AwayTeam, g.game.HomeTeam, g.home},
	}

	contextScore := 50.0
	weatherPending := g.ctxRow == nil || g.ctxRow.WeatherTempF == nil
	if !weatherPending {
		// Cooler air is a slight K tailwind: 40F reads 60, 90F about 45.
		contextScore = clampf(60-clampf(*g.ctxRow.WeatherTempF-40, 0, 50)/50*15, 0, 100)
	}

	var out []store.ModelScore
	for _, sp := range starters {
		if sp.id == nil || sp.pf == nil {
			continue
		}
		var flags []string
		flags = missingFlag(flags, "k_pct_14", sp.pf.KPct14)
		flags = missingFlag(flags, "whiff_rate_14", sp.pf.WhiffRate14)
		if weatherPending {
			flags = append(flags, "weather_pending")
		}

		kForm := percentileRank(sp.pf.KPct14, g.pop.pitcherKPct)
		whiffChase := 0.6*percentileRank(sp.pf.WhiffRate14, g.pop.pitcherWhiff) +
			0.4*percentileRank(sp.pf.ChaseRate14, g.pop.pitcherChase)

		var bf14 *float64
		if sp.pf.BF14 != nil {
			bf14 = fptr(float64(*sp.pf.BF14))
		}
		pitchRole := scaleBetween(bf14, 40, 120)

		contactQuality := 100 - scaleBetween(sp.pf.AvgExitVeloAllowed14, 85, 95)

		oppK := 50.0
		if sp.oppTeam != nil {
			oppK = scaleBetween(sp.oppTeam.OffenseKPct14, 15, 30)
		} else {
			flags = append(flags, "missing:opponent_k_pct")
		}

		factors := []factor{
			{"k_form_score", kForm, kWeights.kForm},
			{"whiff_chase_score", whiffChase, kWeights.whiffChase},
			{"opp_k_score", oppK, kWeights.oppK},
			{"pitch_count_role_score", pitchRole, kWeights.pitchRole},
			{"contact_quality_score", contactQuality, kWeights.contactQuality},
			{"context_score", contextScore, kWeights.context},
		}
		score := composite(factors)
		projection := 3.5 + score/100*5.5

		base := store.ModelScore{
			PlayerID:         sp.id,
			PlayerName:       firstS(sp.pf.PlayerName, sp.name),
			TeamID:           sptr(sp.team),
			OpponentTeamID:   sptr(sp.opp),
			TeamAbbr:         sptr(sp.team),
			OpponentTeamAbbr: sptr(sp.opp),
			ModelProjection:  fptr(round1f(projection)),
		}

		priced := false
		for i := range g.odds {
			o := &g.odds[i]
			if o.PlayerID == nil || *o.PlayerID != *sp.id || o.Line == nil {
				continue
			}
			priced = true
			probOver := sigmoid((projection - *o.Line) / 1.5)
			row := base
			row.EventID = o.EventID
			row.SelectionKey = sptr(o.SelectionKey)
			row.Side = o.Side
			row.BetType = "K_" + o.Side
			row.Line = o.Line
			row.Sportsbook = sptr(o.Sportsbook)
			row.BookImpliedProb = fptr(o.ImpliedProb)

			sideScore := score
			prob := probOver
			if o.Side == "UNDER" {
				sideScore = 100 - score
				prob = 1 - probOver
			}
			row.ModelProb = fptr(round3f(prob))
			edge := probabilityEdgePct(prob, &o.ImpliedProb)
			finalize(&row, spec, sideScore, edge, factors, flags)
			out = append(out, row)
		}
		if !priced {
			row := base
			row.Side = "OVER"
			row.BetType = "K_OVER"
			row.SelectionKey = sptr(oddskit.SelectionKey(spec.Market, oddskit.PlayerEntity(*sp.id), "OVER", nil))
			finalize(&row, spec, score, nil, factors, flags)
			out = append(out, row)
		}
	}
	return out, nil
}
