package grading

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

func sp(v string) *string   { return &v }
func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

func TestSettle(t *testing.T) {
	assert.Equal(t, "win", Settle("OVER", fp(8.5), 9))
	assert.Equal(t, "loss", Settle("OVER", fp(8.5), 8))
	assert.Equal(t, "push", Settle("OVER", fp(8.0), 8))
	assert.Equal(t, "win", Settle("UNDER", fp(8.5), 8))
	assert.Equal(t, "push", Settle("UNDER", fp(8.0), 8))
	assert.Equal(t, "void", Settle("OVER", nil, 8))

	assert.Equal(t, "win", Settle("YES", nil, 1))
	assert.Equal(t, "loss", Settle("YES", nil, 0))
	assert.Equal(t, "win", Settle("NO", nil, 0))

	assert.Equal(t, "win", Settle("HOME", nil, 2))
	assert.Equal(t, "loss", Settle("HOME", nil, -2))
	assert.Equal(t, "push", Settle("HOME", nil, 0))
	assert.Equal(t, "win", Settle("AWAY", nil, -1))
}

func TestProfitUnits(t *testing.T) {
	assert.InDelta(t, 1.5, Profit("win", 150, 1.0), 0.001)
	assert.InDelta(t, 0.8333, Profit("win", -120, 1.0), 0.001)
	assert.InDelta(t, 1.6667, Profit("win", -120, 2.0), 0.001)
	assert.Equal(t, -1.0, Profit("loss", 150, 1.0))
	assert.Equal(t, 0.0, Profit("push", 150, 1.0))
	assert.Equal(t, 0.0, Profit("void", -110, 1.0))
}

func seedFinalGame(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Games.Upsert(ctx, []store.Game{{
		GameID: 100, GameDate: testDate, GameTime: "2025-06-15T23:10:00Z",
		HomeTeam: "NYY", AwayTeam: "BOS", Status: "Final",
		HomeScore: ip(5), AwayScore: ip(3),
	}})
	require.NoError(t, err)

	// Batter 10: homer plus a single. Pitcher 20: two Ks, four outs.
	events := []store.PitchEvent{
		{GameDate: testDate, GameID: 100, BatterID: 10, PitcherID: 99, Events: sp("home_run")},
		{GameDate: testDate, GameID: 100, BatterID: 10, PitcherID: 99, Events: sp("single")},
		{GameDate: testDate, GameID: 100, BatterID: 11, PitcherID: 20, Events: sp("strikeout")},
		{GameDate: testDate, GameID: 100, BatterID: 12, PitcherID: 20, Events: sp("strikeout")},
		{GameDate: testDate, GameID: 100, BatterID: 13, PitcherID: 20, Events: sp("grounded_into_double_play")},
	}
	_, err = s.Events.InsertEvents(context.Background(), events)
	require.NoError(t, err)
}

func scoreRow(market, key, side string, line *float64) store.ModelScore {
	return store.ModelScore{
		GameDate: testDate, GameID: 100, Market: market,
		EntityType: "game", SelectionKey: sp(key), Side: side,
		BetType: market + "_" + side, Line: line,
		ModelScore: 60, Signal: "LEAN", ConfidenceBand: "MEDIUM",
		VisibilityTier: "PRO",
		FactorsJSON:    "{}", ReasonsJSON: "[]", RiskFlagsJSON: "[]",
		IsActive: 1, ScoreRunID: 1,
	}
}

func TestGradeDateExtractsOutcomes(t *testing.T) {
	s := openTestStore(t)
	seedFinalGame(t, s)
	ctx := context.Background()

	rows := []store.ModelScore{
		scoreRow("HR", "HR|player:10|YES", "YES", fp(0.5)),
		scoreRow("TB_LINE", "TB_LINE|player:10|line:1.5|OVER", "OVER", fp(1.5)),
		scoreRow("K", "K|player:20|line:5.5|OVER", "OVER", fp(5.5)),
		scoreRow("OUTS_RECORDED", "OUTS_RECORDED|player:20|line:15.5|OVER", "OVER", fp(15.5)),
		scoreRow("ML", "ML|game:100|HOME", "HOME", nil),
		scoreRow("TOTAL", "TOTAL|game:100|line:8.5|OVER", "OVER", fp(8.5)),
		scoreRow("TEAM_TOTAL", "TEAM_TOTAL|team:NYY|line:4.5|OVER", "OVER", fp(4.5)),
	}
	_, err := s.Scores.InsertWithSupersede(ctx, rows)
	require.NoError(t, err)

	g := New(s, zerolog.Nop(), nil, ClosingLatestPregame)
	sum, err := g.GradeDate(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sum.Outcomes)

	check := func(key string, want float64) {
		t.Helper()
		o, err := s.Outcomes.OutcomeFor(ctx, testDate, key)
		require.NoError(t, err)
		require.NotNil(t, o, key)
		assert.Equal(t, want, o.OutcomeValue, key)
	}
	check("HR|player:10|YES", 1)
	check("TB_LINE|player:10|line:1.5|OVER", 5)
	check("K|player:20|line:5.5|OVER", 2)
	check("OUTS_RECORDED|player:20|line:15.5|OVER", 4)
	check("ML|game:100|HOME", 2)
	check("TOTAL|game:100|line:8.5|OVER", 8)
	check("TEAM_TOTAL|team:NYY|line:4.5|OVER", 5)

	ml, err := s.Outcomes.OutcomeFor(ctx, testDate, "ML|game:100|HOME")
	require.NoError(t, err)
	require.NotNil(t, ml.OutcomeText)
	assert.Equal(t, "NYY", *ml.OutcomeText)
}

func TestGradeDateSettlesBetWithCLV(t *testing.T) {
	s := openTestStore(t)
	seedFinalGame(t, s)
	ctx := context.Background()

	_, err := s.Scores.InsertWithSupersede(ctx, []store.ModelScore{
		scoreRow("ML", "ML|game:100|HOME", "HOME", nil),
	})
	require.NoError(t, err)

	// The market moved toward the home side after the bet went in.
	_, err = s.Odds.Insert(ctx, []store.MarketOdds{{
		GameDate: testDate, GameID: ip(100), Market: "ML", EntityType: "game",
		BetType: "ML_HOME", Side: "HOME",
		PriceAmerican: -180, DecimalOdds: 1.556, ImpliedProb: 0.6429,
		SelectionKey: "ML|game:100|HOME", Sportsbook: "draftkings",
		FetchedAt: store.UTCNow(),
	}})
	require.NoError(t, err)

	require.NoError(t, s.Outcomes.InsertBet(ctx, store.Bet{
		GameDate: testDate, GameID: 100, Market: "ML",
		SelectionKey: "ML|game:100|HOME", Side: "HOME",
		OddsAmerican: -150, ImpliedProbOpen: 0.6,
		StakeUnits: 1.0, Status: "pending", PlacedAt: store.UTCNow(),
	}))

	g := New(s, zerolog.Nop(), nil, ClosingLatestPregame)
	sum, err := g.GradeDate(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.BetsSettled)
	assert.Equal(t, int64(1), sum.ClosingLines)

	pending, err := s.Outcomes.PendingBets(ctx, testDate)
	require.NoError(t, err)
	assert.Empty(t, pending)

	var bets []store.Bet
	require.NoError(t, s.DB().Select(&bets, s.DB().Rebind(
		`SELECT * FROM bets WHERE game_date = ?`), testDate))
	require.Len(t, bets, 1)
	b := bets[0]

	assert.Equal(t, "win", b.Status)
	require.NotNil(t, b.ProfitUnits)
	assert.InDelta(t, 0.6667, *b.ProfitUnits, 0.001)
	require.NotNil(t, b.ImpliedProbClose)
	assert.InDelta(t, 0.6429, *b.ImpliedProbClose, 0.001)
	require.NotNil(t, b.ClvOpenToClose)
	assert.InDelta(t, -0.0429, *b.ClvOpenToClose, 0.001)
	require.NotNil(t, b.SettledAt)
}

type fixedLinescore struct{ ls *Linescore }

func (f fixedLinescore) Linescore(ctx context.Context, gameID int64) (*Linescore, error) {
	return f.ls, nil
}

func TestGradeDateFirstFiveFromLinescore(t *testing.T) {
	s := openTestStore(t)
	seedFinalGame(t, s)
	ctx := context.Background()

	_, err := s.Scores.InsertWithSupersede(ctx, []store.ModelScore{
		scoreRow("F5_TOTAL", "F5_TOTAL|game:100|line:4.5|OVER", "OVER", fp(4.5)),
		scoreRow("F5_ML", "F5_ML|game:100|HOME", "HOME", nil),
	})
	require.NoError(t, err)

	provider := fixedLinescore{&Linescore{
		HomeByInning: []int{1, 0, 2, 0, 0, 0, 2, 0, 0},
		AwayByInning: []int{0, 1, 0, 0, 0, 1, 0, 1, 0},
	}}
	g := New(s, zerolog.Nop(), provider, ClosingLatestPregame)
	_, err = g.GradeDate(ctx, testDate)
	require.NoError(t, err)

	total, err := s.Outcomes.OutcomeFor(ctx, testDate, "F5_TOTAL|game:100|line:4.5|OVER")
	require.NoError(t, err)
	require.NotNil(t, total)
	assert.Equal(t, 4.0, total.OutcomeValue)

	ml, err := s.Outcomes.OutcomeFor(ctx, testDate, "F5_ML|game:100|HOME")
	require.NoError(t, err)
	require.NotNil(t, ml)
	assert.Equal(t, 2.0, ml.OutcomeValue)
}

func TestGradeDateSkipsUnfinishedGames(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Games.Upsert(ctx, []store.Game{{
		GameID: 200, GameDate: testDate, GameTime: "2025-06-15T23:10:00Z",
		HomeTeam: "NYY", AwayTeam: "BOS", Status: "scheduled",
	}})
	require.NoError(t, err)

	g := New(s, zerolog.Nop(), nil, ClosingLatestPregame)
	sum, err := g.GradeDate(ctx, testDate)
	require.NoError(t, err)
	assert.Zero(t, sum.Outcomes)
	assert.Zero(t, sum.BetsSettled)
}
