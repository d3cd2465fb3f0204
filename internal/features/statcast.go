// Package features derives the per-date feature store from raw pitch
// events: rolling window aggregates, batter/pitcher/team daily rows and
// per-game context. Every query it issues is bounded by stat dates
// strictly before the target date.
package features

import "github.com/ballparklabs/mlbedge/internal/store"

// nonABEvents are plate appearance outcomes excluded from at-bats.
var nonABEvents = map[string]struct{}{
	"walk":           {},
	"intent_walk":    {},
	"hit_by_pitch":   {},
	"sac_fly":        {},
	"sac_bunt":       {},
	"catcher_interf": {},
}

var swingDescriptions = map[string]struct{}{
	"swinging_strike":         {},
	"swinging_strike_blocked": {},
	"foul":                    {},
	"foul_tip":                {},
	"hit_into_play":           {},
	"hit_into_play_score":     {},
	"hit_into_play_no_out":    {},
	"foul_bunt":               {},
	"missed_bunt":             {},
	"foul_pitchout":           {},
}

var whiffDescriptions = map[string]struct{}{
	"swinging_strike":         {},
	"swinging_strike_blocked": {},
	"missed_bunt":             {},
}

var fastballTypes = map[string]struct{}{
	"FF": {}, "FA": {}, "FT": {}, "SI": {}, "FC": {},
}

// outsMap translates terminal events to outs recorded.
var outsMap = map[string]int{
	"field_out":                 1,
	"force_out":                 1,
	"grounded_into_double_play": 2,
	"double_play":               2,
	"triple_play":               3,
	"fielders_choice_out":       1,
	"strikeout":                 1,
	"strikeout_double_play":     2,
	"sac_fly":                   1,
	"sac_fly_double_play":       2,
	"sac_bunt":                  1,
	"bunt_groundout":            1,
	"bunt_pop_out":              1,
	"bunt_lineout":              1,
	"lineout":                   1,
	"flyout":                    1,
	"pop_out":                   1,
}

var walkEvents = map[string]struct{}{
	"walk": {}, "intent_walk": {}, "hit_by_pitch": {},
}

func eventOf(ev store.PitchEvent) string {
	if ev.Events == nil {
		return ""
	}
	return *ev.Events
}

func descOf(ev store.PitchEvent) string {
	if ev.Description == nil {
		return ""
	}
	return *ev.Description
}

// isPA reports whether the pitch ends a plate appearance.
func isPA(ev store.PitchEvent) bool { return eventOf(ev) != "" }

func isAB(ev store.PitchEvent) bool {
	e := eventOf(ev)
	if e == "" {
		return false
	}
	_, nonAB := nonABEvents[e]
	return !nonAB
}

func isWalk(ev store.PitchEvent) bool {
	_, ok := walkEvents[eventOf(ev)]
	return ok
}

func isStrikeout(ev store.PitchEvent) bool {
	e := eventOf(ev)
	return e == "strikeout" || e == "strikeout_double_play"
}

// isBatted reports whether the pitch produced a measured batted ball.
func isBatted(ev store.PitchEvent) bool { return ev.LaunchSpeed != nil }

// isBarrel uses the launch_speed_angle classification; code 6 is barrel.
func isBarrel(ev store.PitchEvent) bool {
	return ev.LaunchSpeedAngle != nil && *ev.LaunchSpeedAngle == 6
}

func isHardHit(ev store.PitchEvent) bool {
	return ev.LaunchSpeed != nil && *ev.LaunchSpeed >= 95
}

func isSweetSpot(ev store.PitchEvent) bool {
	return ev.LaunchSpeed != nil && ev.LaunchAngle != nil &&
		*ev.LaunchAngle >= 8 && *ev.LaunchAngle <= 32
}

func isFlyBall(ev store.PitchEvent) bool {
	return ev.LaunchSpeed != nil && ev.LaunchAngle != nil && *ev.LaunchAngle > 25
}

// isPullFly marks fly balls to the batter's pull side. hc_x below 126
// is the pull side for right-handed batters, above for left-handed.
func isPullFly(ev store.PitchEvent) bool {
	if !isFlyBall(ev) || ev.HcX == nil || ev.Stand == nil {
		return false
	}
	switch *ev.Stand {
	case "R":
		return *ev.HcX < 126
	case "L":
		return *ev.HcX > 126
	}
	return false
}

func outsRecorded(ev store.PitchEvent) int { return outsMap[eventOf(ev)] }

func isSwing(ev store.PitchEvent) bool {
	_, ok := swingDescriptions[descOf(ev)]
	return ok
}

func isWhiff(ev store.PitchEvent) bool {
	_, ok := whiffDescriptions[descOf(ev)]
	return ok
}

func inZone(ev store.PitchEvent) bool {
	return ev.Zone != nil && *ev.Zone >= 1 && *ev.Zone <= 9
}

func outZone(ev store.PitchEvent) bool {
	return ev.Zone != nil && !(*ev.Zone >= 1 && *ev.Zone <= 9)
}

func isChaseSwing(ev store.PitchEvent) bool { return isSwing(ev) && outZone(ev) }

func isFastball(ev store.PitchEvent) bool {
	if ev.PitchType == nil || ev.ReleaseSpeed == nil {
		return false
	}
	_, ok := fastballTypes[*ev.PitchType]
	return ok
}

func hitBases(ev store.PitchEvent) int {
	switch eventOf(ev) {
	case "single":
		return 1
	case "double":
		return 2
	case "triple":
		return 3
	case "home_run":
		return 4
	}
	return 0
}
