package features

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ballparklabs/mlbedge/internal/store"
)

const windyThresholdMPH = 10.0

// BuildGameContext writes one game_context_features row per game on the
// date, folding park factors, weather, umpire and lineup state together.
func (b *Builder) BuildGameContext(ctx context.Context, gameDate string) (int64, []string, error) {
	games, err := b.s.Games.ForDate(ctx, gameDate)
	if err != nil {
		return 0, nil, fmt.Errorf("load games: %w", err)
	}
	if len(games) == 0 {
		return 0, []string{"no games scheduled for date"}, nil
	}

	season := 0
	if t, perr := time.Parse(dateLayout, gameDate); perr == nil {
		season = t.Year()
	}

	var rows []store.GameContextFeatures
	var warns []string
	for _, g := range games {
		row := store.GameContextFeatures{
			GameDate:  gameDate,
			GameID:    g.GameID,
			StadiumID: g.StadiumID,
		}

		hr, runs, hits, err := b.s.Ref.ParkFactors(ctx, g.StadiumID)
		if err != nil {
			return 0, warns, fmt.Errorf("park factors game %d: %w", g.GameID, err)
		}
		row.ParkHRFactor = fptr(hr)
		row.ParkRunsFactor = fptr(runs)
		row.ParkHitsFactor = fptr(hits)

		wx, err := b.s.Ref.WeatherFor(ctx, gameDate, g.GameID)
		if err != nil {
			return 0, warns, fmt.Errorf("weather game %d: %w", g.GameID, err)
		}
		if wx != nil {
			row.WeatherTempF = wx.TempF
			row.WeatherWindSpeedMPH = wx.WindSpeedMPH
			row.WeatherWindDir = wx.WindDir
			applyWeatherMultipliers(&row, wx)
		} else {
			warns = append(warns, fmt.Sprintf("game %d: no weather", g.GameID))
		}

		if g.UmpireName != nil && *g.UmpireName != "" {
			row.UmpireName = g.UmpireName
			ump, err := b.s.Ref.UmpireFor(ctx, *g.UmpireName, season)
			if err != nil {
				return 0, warns, fmt.Errorf("umpire game %d: %w", g.GameID, err)
			}
			if ump != nil {
				row.UmpireKBoost = ump.KBoost
				row.UmpireRunEnv = ump.RunEnv
			}
		}

		homeConfirmed, err := b.lineupConfirmed(ctx, gameDate, g.GameID, g.HomeTeam)
		if err != nil {
			return 0, warns, err
		}
		awayConfirmed, err := b.lineupConfirmed(ctx, gameDate, g.GameID, g.AwayTeam)
		if err != nil {
			return 0, warns, err
		}
		row.LineupsConfirmedHome = homeConfirmed
		row.LineupsConfirmedAway = awayConfirmed

		if day, ok := isDayGame(g.GameTime); ok {
			row.IsDayGame = iptr(day)
		}
		if g.HomePitcherID != nil && g.AwayPitcherID != nil {
			row.ProbablePitchersSet = 1
		}
		if homeConfirmed == 1 && awayConfirmed == 1 && wx != nil && row.ProbablePitchersSet == 1 {
			row.IsFinalContext = 1
		}
		rows = append(rows, row)
	}

	n, err := b.s.Features.UpsertGameContext(ctx, rows)
	if err != nil {
		return 0, warns, fmt.Errorf("upsert game context: %w", err)
	}
	return n, warns, nil
}

func (b *Builder) lineupConfirmed(ctx context.Context, gameDate string, gameID int64, teamID string) (int, error) {
	rows, err := b.s.Lineups.ActiveSnapshot(ctx, gameDate, gameID, teamID)
	if err != nil {
		return 0, fmt.Errorf("lineup %s game %d: %w", teamID, gameID, err)
	}
	for _, row := range rows {
		if row.Confirmed == 1 {
			return 1, nil
		}
	}
	return 0, nil
}

// applyWeatherMultipliers derives HR, run and temperature multipliers
// from the forecast. Wind only matters above the windy threshold.
func applyWeatherMultipliers(row *store.GameContextFeatures, wx *store.Weather) {
	hrMult := 1.0
	if wx.WindSpeedMPH != nil && *wx.WindSpeedMPH >= windyThresholdMPH && wx.WindDir != nil {
		switch windClass(*wx.WindDir) {
		case "out":
			hrMult = 1.15
		case "in":
			hrMult = 0.85
		case "cross":
			hrMult = 1.02
		}
	}
	tempMult := 1.0
	if wx.TempF != nil {
		t := *wx.TempF
		switch {
		case t >= 80:
			hrMult *= 1.03
		case t <= 55:
			hrMult *= 0.97
		}
		switch {
		case t >= 75:
			tempMult = 1.08
		case t <= 55:
			tempMult = 0.92
		}
	}
	row.WeatherHRMultiplier = fptr(round3(hrMult))
	row.WeatherTempMultiplier = fptr(tempMult)

	if wx.TempF != nil && wx.WindSpeedMPH != nil {
		wind := *wx.WindSpeedMPH
		if wind > 25 {
			wind = 25
		}
		runMult := 1 + (*wx.TempF-65)*0.0025 + wind*0.003
		row.WeatherRunMultiplier = fptr(round3(clamp(runMult, 0.8, 1.25)))
	}
}

func windClass(dir string) string {
	d := strings.ToLower(dir)
	switch {
	case strings.Contains(d, "out"):
		return "out"
	case strings.Contains(d, "in"):
		return "in"
	case strings.Contains(d, "cross") || strings.Contains(d, "l to r") || strings.Contains(d, "r to l"):
		return "cross"
	}
	return ""
}

// isDayGame parses the scheduled first pitch and classifies anything
// before 5pm local as a day game. Both RFC3339 and bare clock formats
// are accepted.
func isDayGame(gameTime string) (int, bool) {
	if gameTime == "" {
		return 0, false
	}
	var hour int
	if t, err := time.Parse(time.RFC3339, gameTime); err == nil {
		hour = t.Hour()
	} else if t, err := time.Parse("15:04", gameTime); err == nil {
		hour = t.Hour()
	} else {
		return 0, false
	}
	if hour < 17 {
		return 1, true
	}
	return 0, true
}
