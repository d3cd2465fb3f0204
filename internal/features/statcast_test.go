package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ballparklabs/mlbedge/internal/store"
)

func strPtr(v string) *string   { return &v }
func i64Ptr(v int64) *int64     { return &v }
func f64Ptr(v float64) *float64 { return &v }

func TestOutsRecorded(t *testing.T) {
	cases := map[string]int{
		"field_out":                 1,
		"grounded_into_double_play": 2,
		"triple_play":               3,
		"strikeout":                 1,
		"strikeout_double_play":     2,
		"single":                    0,
		"walk":                      0,
		"":                          0,
	}
	for event, want := range cases {
		ev := store.PitchEvent{}
		if event != "" {
			ev.Events = strPtr(event)
		}
		assert.Equal(t, want, outsRecorded(ev), event)
	}
}

func TestBarrelUsesLaunchSpeedAngleCode(t *testing.T) {
	assert.True(t, isBarrel(store.PitchEvent{LaunchSpeedAngle: i64Ptr(6)}))
	assert.False(t, isBarrel(store.PitchEvent{LaunchSpeedAngle: i64Ptr(5)}))
	assert.False(t, isBarrel(store.PitchEvent{}))
}

func TestHardHitThreshold(t *testing.T) {
	assert.True(t, isHardHit(store.PitchEvent{LaunchSpeed: f64Ptr(95.0)}))
	assert.False(t, isHardHit(store.PitchEvent{LaunchSpeed: f64Ptr(94.9)}))
	assert.False(t, isHardHit(store.PitchEvent{}))
}

func TestPullFlyDependsOnBatterSide(t *testing.T) {
	fly := store.PitchEvent{LaunchSpeed: f64Ptr(98), LaunchAngle: f64Ptr(30)}

	righty := fly
	righty.Stand = strPtr("R")
	righty.HcX = f64Ptr(100)
	assert.True(t, isPullFly(righty))

	righty.HcX = f64Ptr(150)
	assert.False(t, isPullFly(righty))

	lefty := fly
	lefty.Stand = strPtr("L")
	lefty.HcX = f64Ptr(150)
	assert.True(t, isPullFly(lefty))

	// Grounders never count regardless of spray side.
	grounder := store.PitchEvent{
		LaunchSpeed: f64Ptr(98), LaunchAngle: f64Ptr(5),
		Stand: strPtr("R"), HcX: f64Ptr(100),
	}
	assert.False(t, isPullFly(grounder))
}

func TestChaseSwingNeedsSwingOutsideZone(t *testing.T) {
	chase := store.PitchEvent{Description: strPtr("swinging_strike"), Zone: f64Ptr(13)}
	assert.True(t, isChaseSwing(chase))

	inZoneSwing := store.PitchEvent{Description: strPtr("swinging_strike"), Zone: f64Ptr(5)}
	assert.False(t, isChaseSwing(inZoneSwing))

	take := store.PitchEvent{Description: strPtr("ball"), Zone: f64Ptr(13)}
	assert.False(t, isChaseSwing(take))
}

func TestWalkExcludedFromAtBats(t *testing.T) {
	walk := store.PitchEvent{Events: strPtr("walk")}
	assert.True(t, isPA(walk))
	assert.False(t, isAB(walk))
	assert.True(t, isWalk(walk))

	single := store.PitchEvent{Events: strPtr("single")}
	assert.True(t, isAB(single))
	assert.Equal(t, 1, hitBases(single))
	assert.Equal(t, 4, hitBases(store.PitchEvent{Events: strPtr("home_run")}))
}

func TestFastballTypeGate(t *testing.T) {
	ff := store.PitchEvent{PitchType: strPtr("FF"), ReleaseSpeed: f64Ptr(96.2)}
	assert.True(t, isFastball(ff))
	sl := store.PitchEvent{PitchType: strPtr("SL"), ReleaseSpeed: f64Ptr(86.0)}
	assert.False(t, isFastball(sl))
	noSpeed := store.PitchEvent{PitchType: strPtr("FF")}
	assert.False(t, isFastball(noSpeed))
}
