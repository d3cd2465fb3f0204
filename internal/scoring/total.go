package scoring

import (
	"context"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// scoreTotal scores the full-game run total against every offered line.
// Without a priced line a game total is meaningless, so unpriced games
// emit nothing.
func scoreTotal(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
	return totalRows(g, spec, false), nil
}

// scoreF5Total scores the first-five total with starters carrying the
// full run-prevention load.
func scoreF5Total(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error) {
	return totalRows(g, spec, true), nil
}

// starterRA9 estimates runs allowed per nine for a starter from the HR,
// contact and walk profile.
func starterRA9(pf *store.PitcherFeatures) float64 {
	if pf == nil {
		return 4.4
	}
	return clampf(4.15+
		(orF(pf.HRPer914, 1.1)-1.1)*1.05+
		(orF(pf.HardHitPctAllowed14, 35)-35)*0.03+
		(orF(pf.BBPct14, 8)-8)*0.10-
		(orF(pf.KPct14, 22)-22)*0.06, 2.2, 7.2)
}

// starterInnings estimates innings pitched from role security and
// recent pitch counts.
func starterInnings(pf *store.PitcherFeatures) float64 {
	if pf == nil {
		return 5.2
	}
	return clampf(4.7+
		(orF(pf.StarterRoleConfidence, 0.5)-0.5)*2+
		(orF(pf.PitchesAvgLast5, 90)-90)*0.015, 3.8, 7.0)
}

// offenseRunsBase is expected runs per game before environment.
func offenseRunsBase(tf *store.TeamFeatures) float64 {
	if tf == nil {
		return 4.4
	}
	return clampf(orF(tf.RunsPerGame14, 4.4)+
		(orF(tf.OffenseISO14, 0.160)-0.160)*8+
		(orF(tf.OffenseOBP14, 0.320)-0.320)*10, 2.8, 6.8)
}

func bullpenRA9(tf *store.TeamFeatures) float64 {
	if tf == nil {
		return 4.2
	}
	return clampf(orF(tf.BullpenERAProxy14, 4.2)+
		(orF(tf.BullpenWHIPProxy14, 1.30)-1.30)*0.8+
		(orF(tf.BullpenHR914, 1.1)-1.1)*0.7, 2.6, 6.5)
}

func runEnvironment(ctxRow *store.GameContextFeatures) (env, ump float64) {
	run, park := 1.0, 1.0
	ump = 1.0
	if ctxRow != nil {
		run = orF(ctxRow.WeatherRunMultiplier, 1.0)
		park = orF(ctxRow.ParkRunsFactor, 1.0)
		ump = orF(ctxRow.UmpireRunEnv, 1.0)
	}
	return clampf(run*ump*park, 0.82, 1.25), ump
}

// expectedTeamRuns blends a team's offense with what the opposing
// starter and bullpen allow over their share of the innings.
func expectedTeamRuns(off, oppSRA, oppBRA, innings, gameInnings, env float64) float64 {
	ip := innings
	if ip > gameInnings {
		ip = gameInnings
	}
	offShare := off * gameInnings / 9
	allowed := oppSRA*(ip/9) + oppBRA*((gameInnings-ip)/9)
	lo, hi := 1.2, 8.0
	if gameInnings < 9 {
		lo, hi = 0.6, 5.0
	}
	return clampf((offShare*0.55+allowed*0.45)*env, lo, hi)
}

func totalRows(g *gameBundle, spec Spec, firstFive bool) []store.ModelScore {
	var flags []string
	if g.homeSP == nil || g.awaySP == nil {
		flags = append(flags, "missing:probable_starter")
	}
	if g.home == nil || g.away == nil {
		flags = append(flags, "missing:team_features")
	}
	if g.ctxRow == nil || g.ctxRow.WeatherTempF == nil {
		flags = append(flags, "weather_pending")
	}

	env, ump := runEnvironment(g.ctxRow)
	homeSRA, awaySRA := starterRA9(g.homeSP), starterRA9(g.awaySP)
	homeBRA, awayBRA := bullpenRA9(g.home), bullpenRA9(g.away)
	homeOff, awayOff := offenseRunsBase(g.home), offenseRunsBase(g.away)

	gameInnings := 9.0
	scale := 1.85
	loT, hiT := 3.5, 16.0
	if firstFive {
		gameInnings = 5.0
		scale = 1.25
		loT, hiT = 1.5, 9.0
	}

	homeExp := expectedTeamRuns(homeOff, awaySRA, awayBRA, starterInnings(g.awaySP), gameInnings, env)
	awayExp := expectedTeamRuns(awayOff, homeSRA, homeBRA, starterInnings(g.homeSP), gameInnings, env)
	projection := clampf(homeExp+awayExp, loT, hiT)

	avgOff := (homeOff + awayOff) / 2
	avgSRA := (homeSRA + awaySRA) / 2
	avgBRA := (homeBRA + awayBRA) / 2

	var factors []factor
	if firstFive {
		factors = []factor{
			{"offense_pace_score", clampf(50+(avgOff-4.4)*14, 0, 100), 0.34},
			{"starter_prevention_score", clampf(70-(avgSRA-4.2)*12, 0, 100), 0.36},
			{"park_weather_score", clampf(50+(env-1)*180, 0, 100), 0.20},
			{"umpire_score", clampf(50+(ump-1)*200, 0, 100), 0.10},
		}
	} else {
		factors = []factor{
			{"offense_pace_score", clampf(50+(avgOff-4.4)*14, 0, 100), 0.30},
			{"starter_prevention_score", clampf(70-(avgSRA-4.2)*12, 0, 100), 0.23},
			{"bullpen_prevention_score", clampf(70-(avgBRA-4.2)*14, 0, 100), 0.20},
			{"park_weather_score", clampf(50+(env-1)*180, 0, 100), 0.17},
			{"umpire_score", clampf(50+(ump-1)*200, 0, 100), 0.10},
		}
	}
	score := composite(factors)

	var out []store.ModelScore
	for i := range g.odds {
		o := &g.odds[i]
		if o.PlayerID != nil || o.Line == nil {
			continue
		}
		probOver := sigmoid((projection - *o.Line) / scale)

		row := store.ModelScore{
			TeamID:           sptr(g.game.HomeTeam),
			OpponentTeamID:   sptr(g.game.AwayTeam),
			TeamAbbr:         sptr(g.game.HomeTeam),
			OpponentTeamAbbr: sptr(g.game.AwayTeam),
			EventID:          o.EventID,
			SelectionKey:     sptr(o.SelectionKey),
			Side:             o.Side,
			BetType:          spec.Market + "_" + o.Side,
			Line:             o.Line,
			Sportsbook:       sptr(o.Sportsbook),
			BookImpliedProb:  fptr(o.ImpliedProb),
			ModelProjection:  fptr(round3f(projection)),
		}
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
	return out
}
