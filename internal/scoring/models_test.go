package scoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballparklabs/mlbedge/internal/config"
	"github.com/ballparklabs/mlbedge/internal/store"
)

const testDate = "2025-06-15"

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

func iptr(v int) *int { return &v }

// seedSlate loads one NYY/BOS game with a lopsided matchup: strong home
// starter and offense against a weak road side.
func seedSlate(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Games.Upsert(ctx, []store.Game{{
		GameID: 100, GameDate: testDate, GameTime: "2025-06-15T23:10:00Z",
		HomeTeam: "NYY", AwayTeam: "BOS",
		HomePitcherID: i64p(20), AwayPitcherID: i64p(21),
		HomePitcherName: sptr("Home Ace"), AwayPitcherName: sptr("Road Arm"),
		Status: "scheduled",
	}})
	require.NoError(t, err)

	_, err = s.Features.UpsertPitcherFeatures(ctx, []store.PitcherFeatures{
		{
			GameDate: testDate, PitcherID: 20, PlayerName: sptr("Home Ace"),
			TeamID: sptr("NYY"), Throws: sptr("R"), BF14: iptr(110),
			KPct14: fptr(28), BBPct14: fptr(6), HRPer914: fptr(0.9),
			WhiffRate14: fptr(14), ChaseRate14: fptr(32),
			AvgExitVeloAllowed14:  fptr(87),
			StarterRoleConfidence: fptr(0.9),
			OutsRecordedAvgLast5:  fptr(18), PitchesAvgLast5: fptr(95),
		},
		{
			GameDate: testDate, PitcherID: 21, PlayerName: sptr("Road Arm"),
			TeamID: sptr("BOS"), Throws: sptr("R"), BF14: iptr(70),
			KPct14: fptr(18), BBPct14: fptr(10), HRPer914: fptr(1.6),
			WhiffRate14: fptr(9), ChaseRate14: fptr(25),
			AvgExitVeloAllowed14: fptr(91), BarrelPctAllowed14: fptr(10),
			HardHitPctAllowed14:   fptr(41),
			StarterRoleConfidence: fptr(0.5),
			OutsRecordedAvgLast5:  fptr(14), PitchesAvgLast5: fptr(82),
		},
	})
	require.NoError(t, err)

	_, err = s.Features.UpsertTeamFeatures(ctx, []store.TeamFeatures{
		{
			GameDate: testDate, TeamID: "NYY",
			RunsPerGame14: fptr(5.5), OffenseOBP14: fptr(0.350),
			OffenseSLG14: fptr(0.450), OffenseISO14: fptr(0.180),
			HRRate14: fptr(0.045), OffenseKPct14: fptr(20), OffenseBBPct14: fptr(9),
		},
		{
			GameDate: testDate, TeamID: "BOS",
			RunsPerGame14: fptr(3.8), OffenseOBP14: fptr(0.300),
			OffenseSLG14: fptr(0.380), OffenseISO14: fptr(0.130),
			HRRate14: fptr(0.025), OffenseKPct14: fptr(26), OffenseBBPct14: fptr(7),
		},
	})
	require.NoError(t, err)

	_, err = s.Features.UpsertGameContext(ctx, []store.GameContextFeatures{{
		GameDate: testDate, GameID: 100,
		ParkHRFactor: fptr(1.0), ParkRunsFactor: fptr(1.0), ParkHitsFactor: fptr(1.0),
		WeatherTempF: fptr(72), WeatherWindSpeedMPH: fptr(6),
		WeatherHRMultiplier: fptr(1.0), WeatherRunMultiplier: fptr(1.0),
		WeatherTempMultiplier: fptr(1.0),
		LineupsConfirmedHome:  1, LineupsConfirmedAway: 1,
		IsDayGame: iptr(0), ProbablePitchersSet: 1, IsFinalContext: 1,
	}})
	require.NoError(t, err)
}

func i64p(v int64) *int64 { return &v }

func insertOdds(t *testing.T, s *store.Store, rows []store.MarketOdds) {
	t.Helper()
	ctx := context.Background()
	now := store.UTCNow()
	for i := range rows {
		rows[i].GameDate = testDate
		rows[i].FetchedAt = now
		rows[i].IsBestAvailable = 0
	}
	_, err := s.Odds.Insert(ctx, rows)
	require.NoError(t, err)
	require.NoError(t, s.Odds.RecomputeBestAvailable(ctx, testDate))
}

func newRun(t *testing.T, s *store.Store, market string) int64 {
	t.Helper()
	runID, err := s.Runs.Create(context.Background(), "score", testDate, market, "test", nil)
	require.NoError(t, err)
	return runID
}

func TestScoreMoneylineLopsidedGame(t *testing.T) {
	s := openTestStore(t)
	seedSlate(t, s)
	ctx := context.Background()

	insertOdds(t, s, []store.MarketOdds{
		{
			GameID: i64p(100), Market: "ML", EntityType: "game",
			BetType: "ML_HOME", Side: "HOME",
			PriceAmerican: -150, DecimalOdds: 1.667, ImpliedProb: 0.6,
			SelectionKey: "ML|game:100|HOME", Sportsbook: "draftkings",
		},
		{
			GameID: i64p(100), Market: "ML", EntityType: "game",
			BetType: "ML_AWAY", Side: "AWAY",
			PriceAmerican: 130, DecimalOdds: 2.3, ImpliedProb: 0.4348,
			SelectionKey: "ML|game:100|AWAY", Sportsbook: "draftkings",
		},
	})

	e := NewEngine(s, zerolog.Nop())
	n, err := e.ScoreMarket(ctx, testDate, "ML", newRun(t, s, "ML"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := s.Scores.Active(ctx, testDate, "ML")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var home, away *store.ModelScore
	for i := range rows {
		switch rows[i].Side {
		case "HOME":
			home = &rows[i]
		case "AWAY":
			away = &rows[i]
		}
	}
	require.NotNil(t, home)
	require.NotNil(t, away)

	require.NotNil(t, home.ModelProb)
	require.NotNil(t, away.ModelProb)
	assert.Greater(t, *home.ModelProb, 0.85)
	assert.InDelta(t, 1.0, *home.ModelProb+*away.ModelProb, 0.001)

	assert.Equal(t, "BET", home.Signal)
	assert.Equal(t, "FREE", home.VisibilityTier)
	assert.Equal(t, "FADE", away.Signal)
	assert.Equal(t, 1, home.LineupConfirmed)
	assert.Equal(t, 1, home.WeatherFinal)
}

func TestScoreHRPricedUniverse(t *testing.T) {
	s := openTestStore(t)
	seedSlate(t, s)
	ctx := context.Background()

	_, err := s.Features.UpsertBatterFeatures(ctx, []store.BatterFeatures{
		{
			GameDate: testDate, PlayerID: 10, PlayerName: sptr("Big Bat"),
			TeamID: sptr("NYY"), Bats: sptr("R"),
			BarrelPct14: fptr(18), ISO30: fptr(0.280), ISOVsRHP: fptr(0.300),
			HotColdDeltaISO: fptr(0.05),
		},
		{
			GameDate: testDate, PlayerID: 11, PlayerName: sptr("Slap Hitter"),
			TeamID: sptr("BOS"), Bats: sptr("L"),
			BarrelPct14: fptr(6), ISO30: fptr(0.110),
		},
	})
	require.NoError(t, err)

	_, err = s.Lineups.ReplaceSnapshot(ctx, testDate, 100, "NYY", []store.Lineup{{
		GameDate: testDate, GameID: 100, TeamID: "NYY", PlayerID: 10,
		BattingOrder: iptr(2), IsStarter: 1, Confirmed: 1,
		Source: "test", FetchedAt: store.UTCNow(), ActiveVersion: 1,
	}})
	require.NoError(t, err)

	insertOdds(t, s, []store.MarketOdds{{
		GameID: i64p(100), Market: "HR", EntityType: "player",
		PlayerID: i64p(10), PlayerName: sptr("Big Bat"),
		BetType: "HR_YES", Side: "YES", Line: fptr(0.5),
		PriceAmerican: 450, DecimalOdds: 5.5, ImpliedProb: 0.1818,
		SelectionKey: "HR|player:10|YES", Sportsbook: "fanduel",
	}})

	e := NewEngine(s, zerolog.Nop())
	n, err := e.ScoreMarket(ctx, testDate, "HR", newRun(t, s, "HR"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := s.Scores.Active(ctx, testDate, "HR")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]

	assert.Equal(t, "YES", row.Side)
	assert.Equal(t, "HR_1PLUS", row.BetType)
	require.NotNil(t, row.PlayerID)
	assert.Equal(t, int64(10), *row.PlayerID)
	require.NotNil(t, row.OpponentTeamID)
	assert.Equal(t, "BOS", *row.OpponentTeamID)

	require.NotNil(t, row.ModelProb)
	assert.GreaterOrEqual(t, *row.ModelProb, 0.02)
	assert.LessOrEqual(t, *row.ModelProb, 0.35)
	require.NotNil(t, row.BookImpliedProb)
	assert.InDelta(t, 0.1818, *row.BookImpliedProb, 0.001)

	assert.NotContains(t, row.RiskFlagsJSON, "lineup_pending")
	assert.NotContains(t, row.RiskFlagsJSON, "weather_pending")
}

func TestScoreHits1PlusWithoutOddsEmitsDefaultRow(t *testing.T) {
	s := openTestStore(t)
	seedSlate(t, s)
	ctx := context.Background()

	_, err := s.Features.UpsertBatterFeatures(ctx, []store.BatterFeatures{{
		GameDate: testDate, PlayerID: 10, PlayerName: sptr("Table Setter"),
		TeamID: sptr("NYY"), Bats: sptr("L"),
		KPct14: fptr(15), HitRate14: fptr(0.30), HitRate30: fptr(0.28),
		HitRateVsRHP: fptr(0.32), HotColdDeltaHitRate: fptr(0.02),
	}})
	require.NoError(t, err)

	_, err = s.Lineups.ReplaceSnapshot(ctx, testDate, 100, "NYY", []store.Lineup{{
		GameDate: testDate, GameID: 100, TeamID: "NYY", PlayerID: 10,
		BattingOrder: iptr(1), IsStarter: 1, Confirmed: 1,
		Source: "test", FetchedAt: store.UTCNow(), ActiveVersion: 1,
	}})
	require.NoError(t, err)

	e := NewEngine(s, zerolog.Nop())
	n, err := e.ScoreMarket(ctx, testDate, "HITS_1P", newRun(t, s, "HITS_1P"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := s.Scores.Active(ctx, testDate, "HITS_1P")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]

	assert.Equal(t, "YES", row.Side)
	require.NotNil(t, row.Line)
	assert.Equal(t, 0.5, *row.Line)
	require.NotNil(t, row.SelectionKey)
	assert.Equal(t, "HITS_1P|player:10|YES", *row.SelectionKey)
	require.NotNil(t, row.ModelProb)
	assert.Greater(t, *row.ModelProb, 0.5)
	assert.Less(t, *row.ModelProb, 1.0)
	// Leadoff hitter in a confirmed lineup: no pending flags.
	assert.Equal(t, "[]", row.RiskFlagsJSON)
}

func TestScoreTotalEmitsBothSidesPerLine(t *testing.T) {
	s := openTestStore(t)
	seedSlate(t, s)
	ctx := context.Background()

	insertOdds(t, s, []store.MarketOdds{
		{
			GameID: i64p(100), Market: "TOTAL", EntityType: "game",
			BetType: "TOTAL_OVER", Side: "OVER", Line: fptr(8.5),
			PriceAmerican: -110, DecimalOdds: 1.909, ImpliedProb: 0.5238,
			SelectionKey: "TOTAL|game:100|line:8.5|OVER", Sportsbook: "draftkings",
		},
		{
			GameID: i64p(100), Market: "TOTAL", EntityType: "game",
			BetType: "TOTAL_UNDER", Side: "UNDER", Line: fptr(8.5),
			PriceAmerican: -110, DecimalOdds: 1.909, ImpliedProb: 0.5238,
			SelectionKey: "TOTAL|game:100|line:8.5|UNDER", Sportsbook: "draftkings",
		},
	})

	e := NewEngine(s, zerolog.Nop())
	n, err := e.ScoreMarket(ctx, testDate, "TOTAL", newRun(t, s, "TOTAL"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := s.Scores.Active(ctx, testDate, "TOTAL")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var over, under *store.ModelScore
	for i := range rows {
		switch rows[i].Side {
		case "OVER":
			over = &rows[i]
		case "UNDER":
			under = &rows[i]
		}
	}
	require.NotNil(t, over)
	require.NotNil(t, under)

	require.NotNil(t, over.ModelProjection)
	require.NotNil(t, under.ModelProjection)
	assert.Equal(t, *over.ModelProjection, *under.ModelProjection)
	assert.GreaterOrEqual(t, *over.ModelProjection, 3.5)
	assert.LessOrEqual(t, *over.ModelProjection, 16.0)

	require.NotNil(t, over.ModelProb)
	require.NotNil(t, under.ModelProb)
	assert.InDelta(t, 1.0, *over.ModelProb+*under.ModelProb, 0.001)
}

func TestScoreTotalWithoutOddsEmitsNothing(t *testing.T) {
	s := openTestStore(t)
	seedSlate(t, s)
	ctx := context.Background()

	e := NewEngine(s, zerolog.Nop())
	n, err := e.ScoreMarket(ctx, testDate, "TOTAL", newRun(t, s, "TOTAL"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestScoreOutsRecordedFallbackLine(t *testing.T) {
	s := openTestStore(t)
	seedSlate(t, s)
	ctx := context.Background()

	e := NewEngine(s, zerolog.Nop())
	n, err := e.ScoreMarket(ctx, testDate, "OUTS_RECORDED", newRun(t, s, "OUTS_RECORDED"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := s.Scores.Active(ctx, testDate, "OUTS_RECORDED")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "OVER", row.Side)
		require.NotNil(t, row.Line)
		assert.Equal(t, 15.5, *row.Line)
		require.NotNil(t, row.ModelProjection)
		assert.GreaterOrEqual(t, *row.ModelProjection, 9.0)
		assert.LessOrEqual(t, *row.ModelProjection, 24.0)
	}
}

func TestScoreMarketSupersedesPriorRun(t *testing.T) {
	s := openTestStore(t)
	seedSlate(t, s)
	ctx := context.Background()

	e := NewEngine(s, zerolog.Nop())
	_, err := e.ScoreMarket(ctx, testDate, "OUTS_RECORDED", newRun(t, s, "OUTS_RECORDED"), nil)
	require.NoError(t, err)
	secondRun := newRun(t, s, "OUTS_RECORDED")
	_, err = e.ScoreMarket(ctx, testDate, "OUTS_RECORDED", secondRun, nil)
	require.NoError(t, err)

	rows, err := s.Scores.Active(ctx, testDate, "OUTS_RECORDED")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, secondRun, row.ScoreRunID)
	}
}
