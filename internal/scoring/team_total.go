package scoring

import (
	"context"
	"math"
	"strings"

	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/store"
)

var teamTotalWeights = struct {
	offense, starterSuppress, bullpenSuppress, parkWeather float64
}{0.38, 0.24, 0.22, 0.16}

// scoreTeamTotal scores each club's own run total. The expected runs
// blend leans more on the offense than the full-game total does since
// only one lineup is in play.
func scoreTeamTotal(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
	env, _ := runEnvironment(g.ctxRow)

	var flags []string
	if g.homeSP == nil || g.awaySP == nil {
		flags = append(flags, "missing:probable_starter")
	}
	if g.ctxRow == nil || g.ctxRow.WeatherTempF == nil {
		flags = append(flags, "weather_pending")
	}

	type side struct {
		team  string
		opp   string
		home  bool
		tf    *store.TeamFeatures
		oppSP *store.PitcherFeatures
		oppTF *store.TeamFeatures
	}
	sides := []side{
		{g.game.HomeTeam, g.game.AwayTeam, true, g.home, g.awaySP, g.away},
		{g.game.AwayTeam, g.game.HomeTeam, false, g.away, g.homeSP, g.home},
	}

	var out []store.ModelScore
	for _, s := range sides {
		off := offenseRunsBase(s.tf)
		sra := starterRA9(s.oppSP)
		bra := bullpenRA9(s.oppTF)
		ip := starterInnings(s.oppSP)
		allowed := sra*(ip/9) + bra*((9-ip)/9)
		projection := clampf((off*0.56+allowed*0.44)*env, 1.1, 9.0)

		factors := []factor{
			{"offense_strength_score", clampf(50+(off-4.4)*16, 0, 100), teamTotalWeights.offense},
			{"opp_starter_suppress_score", clampf(70-(sra-4.2)*12, 0, 100), teamTotalWeights.starterSuppress},
			{"opp_bullpen_suppress_score", clampf(70-(bra-4.2)*14, 0, 100), teamTotalWeights.bullpenSuppress},
			{"park_weather_score", clampf(50+(env-1)*180, 0, 100), teamTotalWeights.parkWeather},
		}
		score := composite(factors)

		base := store.ModelScore{
			TeamID:           sptr(s.team),
			OpponentTeamID:   sptr(s.opp),
			TeamAbbr:         sptr(s.team),
			OpponentTeamAbbr: sptr(s.opp),
			ModelProjection:  fptr(round3f(projection)),
		}

		priced := false
		for i := range g.odds {
			o := &g.odds[i]
			if o.Line == nil || !teamTotalRowIsFor(o, s.team, s.home) {
				continue
			}
			priced = true
			probOver := sigmoid((projection - *o.Line) / 1.20)
			row := base
			row.EventID = o.EventID
			row.SelectionKey = sptr(o.SelectionKey)
			row.Side = o.Side
			row.BetType = "TEAM_TOTAL_" + o.Side
			row.Line = o.Line
			row.Sportsbook = sptr(o.Sportsbook)
			row.BookImpliedProb = fptr(o.ImpliedProb)

			sideScore, prob := score, probOver
			edge := projectionEdgePct(projection, o.Line)
			if o.Side == "UNDER" {
				sideScore, prob = 100-score, 1-probOver
				if edge != nil {
					edge = fptr(-*edge)
				}
			}
			row.ModelProb = fptr(round3f(prob))
			finalize(&row, spec, sideScore, edge, factors, flags)
			out = append(out, row)
		}
		if !priced {
			line := math.Round(projection*2) / 2
			if line < 0.5 {
				line = 0.5
			}
			row := base
			row.Side = "OVER"
			row.BetType = "TEAM_TOTAL_OVER"
			row.Line = fptr(line)
			row.ModelProb = fptr(round3f(sigmoid((projection - line) / 1.20)))
			row.SelectionKey = sptr(oddskit.SelectionKey(spec.Market, oddskit.TeamEntity(s.team), "OVER", fptr(line)))
			finalize(&row, spec, score, nil, factors, flags)
			out = append(out, row)
		}
	}
	return out, nil
}

// teamTotalRowIsFor matches an odds row to one side's team, preferring
// the book's team tag and falling back to HOME/AWAY key markers.
func teamTotalRowIsFor(o *store.MarketOdds, team string, home bool) bool {
	if o.TeamAbbr != nil && *o.TeamAbbr != "" {
		return *o.TeamAbbr == team
	}
	marker := "|AWAY"
	if home {
		marker = "|HOME"
	}
	return strings.Contains(o.SelectionKey, marker)
}
