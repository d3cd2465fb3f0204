package backtest

import (
	"context"
	"encoding/csv"
	"os"
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

const (
	kKey      = "K|player:20|line:6.5|OVER"
	scoredAt  = "2025-06-15T16:00:00Z"
	settledAt = "2025-06-16T03:00:00Z"
)

func seedScore(t *testing.T, s *store.Store, key string, createdAt string) {
	t.Helper()
	_, err := s.Scores.InsertWithSupersede(context.Background(), []store.ModelScore{{
		GameDate: testDate, GameID: 100, Market: "K",
		EntityType: "pitcher", PlayerID: ip(20),
		SelectionKey: sp(key), Side: "OVER", BetType: "K_OVER", Line: fp(6.5),
		ModelScore: 78, ModelProb: fp(0.6), Edge: fp(7.6),
		Signal: "BET", ConfidenceBand: "HIGH", VisibilityTier: "FREE",
		FactorsJSON: `{"k_rate_30":70,"opp_k_rate":64}`,
		ReasonsJSON: "[]", RiskFlagsJSON: "[]",
		IsActive: 1, ScoreRunID: 1, CreatedAt: createdAt,
	}})
	require.NoError(t, err)
}

func seedOdds(t *testing.T, s *store.Store, key, fetchedAt string, price int, implied float64) {
	t.Helper()
	_, err := s.Odds.Insert(context.Background(), []store.MarketOdds{{
		GameDate: testDate, GameID: ip(100), Market: "K", EntityType: "pitcher",
		PlayerID: ip(20), BetType: "K_OVER", Side: "OVER", Line: fp(6.5),
		PriceAmerican: price, DecimalOdds: 1.909, ImpliedProb: implied,
		SelectionKey: key, Sportsbook: "draftkings", FetchedAt: fetchedAt,
	}})
	require.NoError(t, err)
}

func seedOutcome(t *testing.T, s *store.Store, key string, value float64, settled string) {
	t.Helper()
	_, err := s.Outcomes.UpsertOutcomes(context.Background(), []store.MarketOutcome{{
		GameDate: testDate, GameID: 100, Market: "K",
		SelectionKey: key, OutcomeValue: value, SettledAt: settled,
	}})
	require.NoError(t, err)
}

func TestRunSimulatesAndWritesCSV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	outDir := t.TempDir()

	seedScore(t, s, kKey, scoredAt)
	seedOdds(t, s, kKey, "2025-06-15T15:00:00Z", -110, 0.5238)
	// A later snapshot must not be joined as the open price.
	seedOdds(t, s, kKey, "2025-06-15T17:00:00Z", 120, 0.4545)
	seedOutcome(t, s, kKey, 8, settledAt)
	_, err := s.Outcomes.UpsertClosingLines(ctx, []store.ClosingLine{{
		GameDate: testDate, SelectionKey: kKey, Sportsbook: "draftkings",
		PriceAmerican: -150, ImpliedProb: 0.6, Line: fp(6.5),
		CapturedAt: "2025-06-15T22:55:00Z",
	}})
	require.NoError(t, err)

	sum, err := NewRunner(s, zerolog.Nop(), outDir).Run(ctx, Options{
		Market: "K", StartDate: testDate, EndDate: testDate,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.RowsScored)
	assert.Equal(t, 1, sum.RowsSimulated)
	assert.Equal(t, 1, sum.Wins)
	require.NotNil(t, sum.WinRate)
	assert.Equal(t, 1.0, *sum.WinRate)
	// Win at -110 for one unit.
	assert.InDelta(t, 0.9091, sum.TotalProfitUnits, 0.001)

	bucket, ok := sum.ScoreBuckets["70-79"]
	require.True(t, ok)
	assert.Equal(t, 1, bucket.Count)
	require.NotNil(t, bucket.AvgCLV)
	assert.InDelta(t, 0.5238-0.6, *bucket.AvgCLV, 0.0001)

	cal, ok := sum.Calibration["60-69%"]
	require.True(t, ok)
	assert.InDelta(t, 0.6, cal.AvgModelProb, 0.0001)
	assert.InDelta(t, 1.0, cal.RealizedWinRate, 0.0001)

	f, err := os.Open(sum.CSVPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, testDate, records[1][0])
	assert.Equal(t, kKey, records[1][3])
	assert.Equal(t, "-110", records[1][10])
	assert.Equal(t, "win", records[1][15])
}

func TestRunAbortsOnLookahead(t *testing.T) {
	s := openTestStore(t)
	outDir := t.TempDir()

	seedScore(t, s, kKey, scoredAt)
	seedOdds(t, s, kKey, "2025-06-15T15:00:00Z", -110, 0.5238)
	// Outcome settled before the score was created: the model could
	// have seen the result.
	seedOutcome(t, s, kKey, 8, "2025-06-15T12:00:00Z")

	_, err := NewRunner(s, zerolog.Nop(), outDir).Run(context.Background(), Options{
		Market: "K", StartDate: testDate, EndDate: testDate,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvariant)
}

func TestRunSkipsRowsWithoutInputs(t *testing.T) {
	s := openTestStore(t)
	outDir := t.TempDir()
	ctx := context.Background()

	// Score with no odds at all.
	seedScore(t, s, kKey, scoredAt)
	// Score with odds but no graded outcome.
	other := "K|player:21|line:5.5|OVER"
	seedScore(t, s, other, scoredAt)
	seedOdds(t, s, other, "2025-06-15T15:00:00Z", -105, 0.5122)

	sum, err := NewRunner(s, zerolog.Nop(), outDir).Run(ctx, Options{
		Market: "K", StartDate: testDate, EndDate: testDate,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.RowsScored)
	assert.Equal(t, 0, sum.RowsSimulated)
	assert.Nil(t, sum.WinRate)

	f, err := os.Open(sum.CSVPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRunFiltersSignals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedScore(t, s, kKey, scoredAt)
	seedOdds(t, s, kKey, "2025-06-15T15:00:00Z", -110, 0.5238)
	seedOutcome(t, s, kKey, 8, settledAt)

	// The seeded row is BET; a LEAN-only filter must exclude it.
	sum, err := NewRunner(s, zerolog.Nop(), t.TempDir()).Run(ctx, Options{
		Market: "K", StartDate: testDate, EndDate: testDate,
		Signals: []string{"LEAN"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.RowsScored)
}

func TestScoreBucket(t *testing.T) {
	assert.Equal(t, "<50", scoreBucket(12))
	assert.Equal(t, "50-59", scoreBucket(50))
	assert.Equal(t, "60-69", scoreBucket(69.9))
	assert.Equal(t, "70-79", scoreBucket(75))
	assert.Equal(t, "80+", scoreBucket(80))
	assert.Equal(t, "80+", scoreBucket(100))
}

func TestProbBucket(t *testing.T) {
	assert.Equal(t, "unknown", probBucket(nil))
	assert.Equal(t, "0-9%", probBucket(fp(0)))
	assert.Equal(t, "30-39%", probBucket(fp(0.35)))
	assert.Equal(t, "90-99%", probBucket(fp(0.95)))
	assert.Equal(t, "90-99%", probBucket(fp(1.0)))
	assert.Equal(t, "0-9%", probBucket(fp(-0.2)))
}

func TestCorrelation(t *testing.T) {
	corr, ok := correlation([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	require.True(t, ok)
	assert.InDelta(t, 1.0, corr, 0.0001)

	corr, ok = correlation([]float64{1, 2, 3}, []float64{6, 4, 2})
	require.True(t, ok)
	assert.InDelta(t, -1.0, corr, 0.0001)

	_, ok = correlation([]float64{1, 2}, []float64{3, 4})
	assert.False(t, ok)

	_, ok = correlation([]float64{5, 5, 5}, []float64{1, 2, 3})
	assert.False(t, ok)
}

func TestParseFactors(t *testing.T) {
	factors := parseFactors(`{"a":70,"b":55.5}`)
	assert.Equal(t, 70.0, factors["a"])
	assert.Equal(t, 55.5, factors["b"])
	assert.Empty(t, parseFactors(""))
	assert.Empty(t, parseFactors("not json"))
}
