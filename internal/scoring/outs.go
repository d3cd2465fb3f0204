package scoring

import (
	"context"

	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/store"
)

var outsWeights = struct {
	starterLeash, pitchCount, efficiency, oppPatience, weatherDelay float64
}{0.30, 0.22, 0.24, 0.16, 0.08}

// scoreOuts projects outs recorded for both probable starters. Leash is
// driven by role confidence and recent pitch counts; walks on either
// side of the matchup shorten outings.
func scoreOuts(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
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

	weatherRisk := 0.0
	if g.ctxRow != nil && g.ctxRow.WeatherWindSpeedMPH != nil && *g.ctxRow.WeatherWindSpeedMPH >= 18 {
		weatherRisk = 0.3
	}

	var out []store.ModelScore
	for _, sp := range starters {
		if sp.id == nil || sp.pf == nil {
			continue
		}
		var flags []string
		flags = missingFlag(flags, "outs_recorded_avg_last_5", sp.pf.OutsRecordedAvgLast5)
		flags = missingFlag(flags, "pitches_avg_last_5", sp.pf.PitchesAvgLast5)
		if g.ctxRow == nil || g.ctxRow.WeatherTempF == nil {
			flags = append(flags, "weather_pending")
		}
		if sp.oppTeam == nil {
			flags = append(flags, "missing:opponent_offense")
		}

		role := orF(sp.pf.StarterRoleConfidence, 0.55)
		baseOuts := orF(sp.pf.OutsRecordedAvgLast5, 16.5+role*2.5)
		pitchCap := orF(sp.pf.PitchesAvgLast5, 88)

		oppBB, oppRuns := 8.0, 4.4
		if sp.oppTeam != nil {
			oppBB = orF(sp.oppTeam.OffenseBBPct14, 8.0)
			oppRuns = orF(sp.oppTeam.RunsPerGame14, 4.4)
		}
		adj := -(orF(sp.pf.BBPct14, 8)-8)*0.20 +
			(orF(sp.pf.KPct14, 22)-22)*0.12 -
			(oppBB-8)*0.25 -
			(oppRuns-4.4)*0.25 -
			weatherRisk*1.4

		projection := clampf(baseOuts+(pitchCap-88)*0.06+adj, 9, 24)

		factors := []factor{
			{"starter_leash_score", clampf(role*100, 0, 100), outsWeights.starterLeash},
			{"pitch_count_score", clampf(50+(pitchCap-88)*1.8, 0, 100), outsWeights.pitchCount},
			{"efficiency_score", clampf(50+adj*4, 0, 100), outsWeights.efficiency},
			{"opponent_patience_score", clampf(70-oppBB*3, 0, 100), outsWeights.oppPatience},
			{"weather_delay_score", clampf(65-weatherRisk*70, 0, 100), outsWeights.weatherDelay},
		}
		score := composite(factors)

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
			probOver := sigmoid((projection - *o.Line) / 1.6)
			row := base
			row.EventID = o.EventID
			row.SelectionKey = sptr(o.SelectionKey)
			row.Side = o.Side
			row.BetType = "OUTS_" + o.Side
			row.Line = o.Line
			row.Sportsbook = sptr(o.Sportsbook)
			row.BookImpliedProb = fptr(o.ImpliedProb)

			sideScore, prob := score, probOver
			if o.Side == "UNDER" {
				sideScore, prob = 100-score, 1-probOver
			}
			row.ModelProb = fptr(round3f(prob))
			edge := projectionEdgePct(projection, o.Line)
			if o.Side == "UNDER" && edge != nil {
				edge = fptr(-*edge)
			}
			finalize(&row, spec, sideScore, edge, factors, flags)
			out = append(out, row)
		}
		if !priced {
			line := 15.5
			row := base
			row.Side = "OVER"
			row.BetType = "OUTS_OVER"
			row.Line = fptr(line)
			row.ModelProb = fptr(round3f(sigmoid((projection - line) / 1.6)))
			row.SelectionKey = sptr(oddskit.SelectionKey(spec.Market, oddskit.PlayerEntity(*sp.id), "OVER", fptr(line)))
			finalize(&row, spec, score, nil, factors, flags)
			out = append(out, row)
		}
	}
	return out, nil
}
