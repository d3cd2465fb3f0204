package features

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballparklabs/mlbedge/internal/config"
	"github.com/ballparklabs/mlbedge/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := config.DB{
		FallbackPath: filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		QueryTimeout: 10 * time.Second,
	}
	s, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestBuildWindowStatsExcludesTargetDate(t *testing.T) {
	s := openTestStore(t)
	b := NewBuilder(s)
	ctx := context.Background()

	hr := store.PitchEvent{
		GameDate: "2025-06-14", GameID: 1, BatterID: 10, PitcherID: 20,
		Events: strPtr("home_run"), Description: strPtr("hit_into_play_score"),
		LaunchSpeed: f64Ptr(105), LaunchAngle: f64Ptr(28),
	}
	// Same-day strikeouts must not leak into the window.
	k := store.PitchEvent{
		GameDate: "2025-06-15", GameID: 2, BatterID: 10, PitcherID: 20,
		Events: strPtr("strikeout"), Description: strPtr("swinging_strike"),
	}
	_, err := s.Events.InsertEvents(ctx, []store.PitchEvent{hr, k})
	require.NoError(t, err)

	n, err := b.BuildWindowStats(ctx, "2025-06-15")
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))

	rows, err := s.Events.LatestBatterWindows(ctx, "2025-06-16", []int{7})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0].PlayerID)
	assert.Equal(t, 1, rows[0].PA)
	assert.Equal(t, 1, rows[0].HRs)
	require.NotNil(t, rows[0].KPct)
	assert.Equal(t, 0.0, *rows[0].KPct)
}

func TestBuildBatterFeaturesSplitFallback(t *testing.T) {
	s := openTestStore(t)
	b := NewBuilder(s)
	ctx := context.Background()

	_, err := s.Games.Upsert(ctx, []store.Game{{
		GameID: 100, GameDate: "2025-06-15", GameTime: "2025-06-15T23:10:00Z",
		HomeTeam: "NYY", AwayTeam: "BOS", Status: "scheduled",
	}})
	require.NoError(t, err)

	w30 := store.BatterStats{
		PlayerID: 10, StatDate: "2025-06-14", WindowDays: 30,
		Team: strPtr("NYY"), PA: 50, AB: 45,
		ISO: f64Ptr(0.2), HitRate: f64Ptr(0.3), KPct: f64Ptr(25.0),
	}
	w7 := store.BatterStats{
		PlayerID: 10, StatDate: "2025-06-14", WindowDays: 7,
		Team: strPtr("NYY"), PA: 12, AB: 11,
		ISO: f64Ptr(0.25), HitRate: f64Ptr(0.35),
	}
	_, err = s.Events.UpsertBatterStats(ctx, []store.BatterStats{w30, w7})
	require.NoError(t, err)

	n, _, err := b.BuildBatterFeatures(ctx, "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row, err := s.Features.BatterFor(ctx, "2025-06-15", 10)
	require.NoError(t, err)
	require.NotNil(t, row)

	// No split sample recorded, so splits fall back to overall rates.
	require.NotNil(t, row.ISOVsLHP)
	assert.Equal(t, 0.2, *row.ISOVsLHP)
	require.NotNil(t, row.KPctVsRHP)
	assert.Equal(t, 25.0, *row.KPctVsRHP)
	require.NotNil(t, row.HotColdDeltaISO)
	assert.InDelta(t, 0.05, *row.HotColdDeltaISO, 0.001)
	assert.Nil(t, row.RecentLineupSlot)
}

func TestBuildTeamFeatures(t *testing.T) {
	s := openTestStore(t)
	b := NewBuilder(s)
	ctx := context.Background()

	games := []store.Game{
		{GameID: 100, GameDate: "2025-06-15", GameTime: "2025-06-15T23:10:00Z",
			HomeTeam: "NYY", AwayTeam: "BOS", Status: "scheduled"},
		{GameID: 90, GameDate: "2025-06-13", GameTime: "2025-06-13T23:10:00Z",
			HomeTeam: "NYY", AwayTeam: "BOS", Status: "final",
			HomeScore: i64Ptr(5), AwayScore: i64Ptr(3)},
		{GameID: 91, GameDate: "2025-06-14", GameTime: "2025-06-14T23:10:00Z",
			HomeTeam: "BOS", AwayTeam: "NYY", Status: "final",
			HomeScore: i64Ptr(6), AwayScore: i64Ptr(2)},
	}
	_, err := s.Games.Upsert(ctx, games)
	require.NoError(t, err)

	bs := store.BatterStats{
		PlayerID: 10, StatDate: "2025-06-14", WindowDays: 14,
		Team: strPtr("NYY"), PA: 50, AB: 45, HRs: 3,
		KPct: f64Ptr(20.0), BBPct: f64Ptr(10.0),
		SLG: f64Ptr(0.5), ISO: f64Ptr(0.2),
		HitRate: f64Ptr(0.3), TBPerPA: f64Ptr(0.4), WalkRate: f64Ptr(0.1),
	}
	_, err = s.Events.UpsertBatterStats(ctx, []store.BatterStats{bs})
	require.NoError(t, err)

	ps := store.PitcherStats{
		PlayerID: 20, StatDate: "2025-06-14", WindowDays: 14,
		Team: strPtr("NYY"), BF: 40,
		KPct: f64Ptr(25.0), BBPct: f64Ptr(8.0), HRPer9: f64Ptr(1.2),
	}
	_, err = s.Events.UpsertPitcherStats(ctx, []store.PitcherStats{ps})
	require.NoError(t, err)

	n, err := b.BuildTeamFeatures(ctx, "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	nyy, err := s.Features.TeamFor(ctx, "2025-06-15", "NYY")
	require.NoError(t, err)
	require.NotNil(t, nyy)

	require.NotNil(t, nyy.RunsPerGame14)
	assert.InDelta(t, 3.5, *nyy.RunsPerGame14, 0.001)
	require.NotNil(t, nyy.OffenseBA14)
	assert.InDelta(t, 0.3, *nyy.OffenseBA14, 0.001)
	require.NotNil(t, nyy.OffenseOBP14)
	assert.InDelta(t, 0.37, *nyy.OffenseOBP14, 0.001)
	require.NotNil(t, nyy.HRRate14)
	assert.InDelta(t, 0.06, *nyy.HRRate14, 0.001)
	require.NotNil(t, nyy.BullpenERAProxy14)
	assert.InDelta(t, 1.2, *nyy.BullpenERAProxy14, 0.001)
	require.NotNil(t, nyy.BullpenWHIPProxy14)
	assert.InDelta(t, 1.12, *nyy.BullpenWHIPProxy14, 0.001)
	assert.Nil(t, nyy.BullpenHighLevERA14)

	bos, err := s.Features.TeamFor(ctx, "2025-06-15", "BOS")
	require.NoError(t, err)
	require.NotNil(t, bos)
	require.NotNil(t, bos.RunsPerGame14)
	assert.InDelta(t, 4.5, *bos.RunsPerGame14, 0.001)
	// No BOS batters in the window rows.
	assert.Nil(t, bos.OffenseBA14)
}

func TestBuildGameContext(t *testing.T) {
	s := openTestStore(t)
	b := NewBuilder(s)
	ctx := context.Background()

	games := []store.Game{
		{GameID: 100, GameDate: "2025-06-15", GameTime: "2025-06-15T13:05:00Z",
			HomeTeam: "NYY", AwayTeam: "BOS", Status: "scheduled",
			HomePitcherID: i64Ptr(20), AwayPitcherID: i64Ptr(21)},
		{GameID: 101, GameDate: "2025-06-15", GameTime: "2025-06-15T23:10:00Z",
			HomeTeam: "LAD", AwayTeam: "SF", Status: "scheduled"},
	}
	_, err := s.Games.Upsert(ctx, games)
	require.NoError(t, err)

	_, err = s.Ref.UpsertWeather(ctx, []store.Weather{{
		GameDate: "2025-06-15", GameID: 100,
		TempF: f64Ptr(70), WindSpeedMPH: f64Ptr(12), WindDir: strPtr("Out To CF"),
		FetchedAt: store.UTCNow(),
	}})
	require.NoError(t, err)

	now := store.UTCNow()
	for _, team := range []string{"NYY", "BOS"} {
		_, err = s.Lineups.ReplaceSnapshot(ctx, "2025-06-15", 100, team, []store.Lineup{{
			GameDate: "2025-06-15", GameID: 100, TeamID: team, PlayerID: 10,
			BattingOrder: intPtr(1), IsStarter: 1, Confirmed: 1,
			Source: "mlb", FetchedAt: now, ActiveVersion: 1,
		}})
		require.NoError(t, err)
	}

	n, warns, err := b.BuildGameContext(ctx, "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	// Game 101 has no forecast yet.
	assert.NotEmpty(t, warns)

	row, err := s.Features.ContextFor(ctx, "2025-06-15", 100)
	require.NoError(t, err)
	require.NotNil(t, row)

	require.NotNil(t, row.ParkHRFactor)
	assert.Equal(t, 1.0, *row.ParkHRFactor)
	require.NotNil(t, row.WeatherHRMultiplier)
	assert.InDelta(t, 1.15, *row.WeatherHRMultiplier, 0.001)
	require.NotNil(t, row.WeatherRunMultiplier)
	assert.InDelta(t, 1.049, *row.WeatherRunMultiplier, 0.002)
	require.NotNil(t, row.IsDayGame)
	assert.Equal(t, 1, *row.IsDayGame)
	assert.Equal(t, 1, row.LineupsConfirmedHome)
	assert.Equal(t, 1, row.ProbablePitchersSet)
	assert.Equal(t, 1, row.IsFinalContext)

	later, err := s.Features.ContextFor(ctx, "2025-06-15", 101)
	require.NoError(t, err)
	require.NotNil(t, later)
	assert.Equal(t, 0, later.IsFinalContext)
	assert.Equal(t, 0, later.ProbablePitchersSet)
	require.NotNil(t, later.IsDayGame)
	assert.Equal(t, 0, *later.IsDayGame)
}

func TestComputeTTODecay(t *testing.T) {
	games := map[int64][]paEvent{}
	for g := int64(1); g <= 2; g++ {
		var pas []paEvent
		for i := 0; i < 27; i++ {
			p := paEvent{atBat: int64(i + 1)}
			// Three strikeouts in the first pass, two in the third.
			if i < 9 && i%3 == 0 {
				p.k = true
			}
			if i >= 18 && i%4 == 3 {
				p.k = true
			}
			pas = append(pas, p)
		}
		games[g] = pas
	}

	out := computeTTO(games)
	require.NotNil(t, out.kDecayPct)
	assert.InDelta(t, 33.3, *out.kDecayPct, 0.1)
	require.NotNil(t, out.endurance)
	assert.InDelta(t, 27.1, *out.endurance, 0.2)
	// No first-pass homers means no HR trend.
	assert.Nil(t, out.hrIncreasePct)
}

func TestComputeTTOThinSampleIsNil(t *testing.T) {
	games := map[int64][]paEvent{
		1: {{atBat: 1, k: true}, {atBat: 2}, {atBat: 3}},
	}
	out := computeTTO(games)
	assert.Nil(t, out.kDecayPct)
	assert.Nil(t, out.endurance)
	assert.Nil(t, out.hrIncreasePct)
}

func TestStarterRoleConfidenceTiers(t *testing.T) {
	w := func(days, bf int) map[int]store.PitcherStats {
		return map[int]store.PitcherStats{days: {WindowDays: days, BF: bf}}
	}
	assert.Equal(t, 0.9, starterRoleConfidence(w(30, 80)))
	assert.Equal(t, 0.75, starterRoleConfidence(w(30, 55)))
	assert.Equal(t, 0.55, starterRoleConfidence(w(30, 25)))
	assert.Equal(t, 0.35, starterRoleConfidence(w(30, 10)))
	assert.Equal(t, 0.7, starterRoleConfidence(w(14, 45)))
	assert.Equal(t, 0.5, starterRoleConfidence(w(14, 25)))
	assert.Equal(t, 0.35, starterRoleConfidence(w(14, 5)))
	assert.Equal(t, 0.2, starterRoleConfidence(map[int]store.PitcherStats{}))
}

func TestWeatherMultipliers(t *testing.T) {
	row := store.GameContextFeatures{}
	wx := store.Weather{
		TempF: f64Ptr(85), WindSpeedMPH: f64Ptr(15), WindDir: strPtr("In From LF"),
	}
	applyWeatherMultipliers(&row, &wx)

	require.NotNil(t, row.WeatherHRMultiplier)
	assert.InDelta(t, 0.85*1.03, *row.WeatherHRMultiplier, 0.001)
	require.NotNil(t, row.WeatherTempMultiplier)
	assert.Equal(t, 1.08, *row.WeatherTempMultiplier)
	require.NotNil(t, row.WeatherRunMultiplier)
	assert.InDelta(t, 1.095, *row.WeatherRunMultiplier, 0.002)

	// Light wind leaves the HR multiplier on temperature alone.
	calm := store.GameContextFeatures{}
	applyWeatherMultipliers(&calm, &store.Weather{
		TempF: f64Ptr(50), WindSpeedMPH: f64Ptr(4), WindDir: strPtr("Out To CF"),
	})
	require.NotNil(t, calm.WeatherHRMultiplier)
	assert.InDelta(t, 0.97, *calm.WeatherHRMultiplier, 0.001)
	require.NotNil(t, calm.WeatherTempMultiplier)
	assert.Equal(t, 0.92, *calm.WeatherTempMultiplier)
}

func TestIsDayGame(t *testing.T) {
	day, ok := isDayGame("2025-06-15T13:05:00Z")
	assert.True(t, ok)
	assert.Equal(t, 1, day)

	night, ok := isDayGame("19:05")
	assert.True(t, ok)
	assert.Equal(t, 0, night)

	_, ok = isDayGame("not a time")
	assert.False(t, ok)
}

func intPtr(v int) *int { return &v }
