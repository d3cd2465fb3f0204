package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballparklabs/mlbedge/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.DB{
		FallbackPath: filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		QueryTimeout: 10 * time.Second,
	}
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func strPtr(v string) *string   { return &v }
func intPtr(v int) *int         { return &v }
func i64Ptr(v int64) *int64     { return &v }
func f64Ptr(v float64) *float64 { return &v }

func TestMigrateIdempotent(t *testing.T) {
	s := openTestStore(t)
	// Second run must be a no-op, not a failure.
	require.NoError(t, s.Migrate(context.Background()))
	assert.Equal(t, "sqlite", s.Driver())
}

func TestGamesUpsertReplacesMutableColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := Game{
		GameID:   745123,
		GameDate: "2025-06-15",
		GameTime: "2025-06-15T23:10:00Z",
		HomeTeam: "NYY",
		AwayTeam: "BOS",
		Status:   "scheduled",
	}
	_, err := s.Games.Upsert(ctx, []Game{g})
	require.NoError(t, err)

	g.Status = "final"
	g.HomeScore = i64Ptr(5)
	g.AwayScore = i64Ptr(3)
	_, err = s.Games.Upsert(ctx, []Game{g})
	require.NoError(t, err)

	got, err := s.Games.ByID(ctx, 745123)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "final", got.Status)
	require.NotNil(t, got.HomeScore)
	assert.Equal(t, int64(5), *got.HomeScore)

	games, err := s.Games.ForDate(ctx, "2025-06-15")
	require.NoError(t, err)
	assert.Len(t, games, 1)
}

func TestEventsRangeIsRightOpen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows := []PitchEvent{
		{GameDate: "2025-06-13", GameID: 1, BatterID: 10, PitcherID: 20},
		{GameDate: "2025-06-14", GameID: 2, BatterID: 10, PitcherID: 20},
		{GameDate: "2025-06-15", GameID: 3, BatterID: 10, PitcherID: 20},
	}
	_, err := s.Events.InsertEvents(ctx, rows)
	require.NoError(t, err)

	// Target date 2025-06-15: its own events must not leak in.
	got, err := s.Events.EventsInRange(ctx, "2025-06-01", "2025-06-15")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, ev := range got {
		assert.Less(t, ev.GameDate, "2025-06-15")
	}
}

func TestEventsDeleteForDatesIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Events.InsertEvents(ctx, []PitchEvent{
		{GameDate: "2025-06-14", GameID: 2, BatterID: 10, PitcherID: 20},
	})
	require.NoError(t, err)

	require.NoError(t, s.Events.DeleteEventsForDates(ctx, []string{"2025-06-14"}))
	require.NoError(t, s.Events.DeleteEventsForDates(ctx, []string{"2025-06-14"}))

	got, err := s.Events.EventsInRange(ctx, "2025-06-01", "2025-07-01")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func oddsRow(key, book string, price int, implied float64, fetchedAt string) MarketOdds {
	dec := 1 + float64(price)/100
	if price < 0 {
		dec = 1 + 100/float64(-price)
	}
	return MarketOdds{
		GameDate:      "2025-06-15",
		GameID:        i64Ptr(745123),
		Market:        "HR",
		EntityType:    "player",
		PlayerID:      i64Ptr(592450),
		BetType:       "HR_YES",
		Side:          "YES",
		Line:          f64Ptr(0.5),
		PriceAmerican: price,
		DecimalOdds:   dec,
		ImpliedProb:   implied,
		SelectionKey:  key,
		Sportsbook:    book,
		FetchedAt:     fetchedAt,
	}
}

func TestBestAvailableLowestImpliedWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := "HR|player:592450|line:0.5|YES"

	rows := []MarketOdds{
		oddsRow(key, "draftkings", 320, 0.2381, "2025-06-15T14:00:00Z"),
		oddsRow(key, "fanduel", 340, 0.2273, "2025-06-15T14:00:00Z"),
		oddsRow(key, "betmgm", 300, 0.2500, "2025-06-15T14:00:00Z"),
	}
	_, err := s.Odds.Insert(ctx, rows)
	require.NoError(t, err)
	require.NoError(t, s.Odds.RecomputeBestAvailable(ctx, "2025-06-15"))

	best, err := s.Odds.BestForMarket(ctx, "2025-06-15", "HR", nil)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, "fanduel", best[0].Sportsbook)
	assert.Equal(t, 340, best[0].PriceAmerican)
}

func TestBestAvailableUsesLatestSnapshotPerBook(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := "HR|player:592450|line:0.5|YES"

	// fanduel had the best price earlier but its newer snapshot is worse
	// than draftkings. The stale price must not win.
	rows := []MarketOdds{
		oddsRow(key, "fanduel", 360, 0.2174, "2025-06-15T12:00:00Z"),
		oddsRow(key, "fanduel", 290, 0.2564, "2025-06-15T15:00:00Z"),
		oddsRow(key, "draftkings", 310, 0.2439, "2025-06-15T15:00:00Z"),
	}
	_, err := s.Odds.Insert(ctx, rows)
	require.NoError(t, err)
	require.NoError(t, s.Odds.RecomputeBestAvailable(ctx, "2025-06-15"))

	best, err := s.Odds.BestForMarket(ctx, "2025-06-15", "HR", nil)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, "draftkings", best[0].Sportsbook)
}

func TestOddsInsertIgnoresDuplicateSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := "HR|player:592450|line:0.5|YES"

	row := oddsRow(key, "draftkings", 320, 0.2381, "2025-06-15T14:00:00Z")
	_, err := s.Odds.Insert(ctx, []MarketOdds{row})
	require.NoError(t, err)
	_, err = s.Odds.Insert(ctx, []MarketOdds{row})
	require.NoError(t, err)

	keys, err := s.Odds.SelectionKeys(ctx, "2025-06-15", []string{"HR"})
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	var n int
	require.NoError(t, s.getCtx(ctx, &n,
		`SELECT COUNT(*) FROM market_odds WHERE selection_key = ?`, key))
	assert.Equal(t, 1, n)
}

func TestOpenRowAsOfRespectsCutoff(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := "HR|player:592450|line:0.5|YES"

	rows := []MarketOdds{
		oddsRow(key, "draftkings", 320, 0.2381, "2025-06-15T12:00:00Z"),
		oddsRow(key, "draftkings", 300, 0.2500, "2025-06-15T18:00:00Z"),
	}
	_, err := s.Odds.Insert(ctx, rows)
	require.NoError(t, err)

	got, err := s.Odds.OpenRowAsOf(ctx, "2025-06-15", key, "2025-06-15T14:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2025-06-15T12:00:00Z", got.FetchedAt)

	// Cutoff before any snapshot: nothing usable.
	got, err = s.Odds.OpenRowAsOf(ctx, "2025-06-15", key, "2025-06-15T10:00:00Z")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func scoreRow(runID int64, playerID int64, score float64) ModelScore {
	key := "HR|player:592450|line:0.5|YES"
	return ModelScore{
		GameDate:       "2025-06-15",
		GameID:         745123,
		Market:         "HR",
		EntityType:     "player",
		PlayerID:       &playerID,
		SelectionKey:   &key,
		Side:           "YES",
		BetType:        "HR_YES",
		Line:           f64Ptr(0.5),
		ModelScore:     score,
		Signal:         "BET",
		ConfidenceBand: "HIGH",
		VisibilityTier: "FREE",
		FactorsJSON:    "{}",
		ReasonsJSON:    "[]",
		RiskFlagsJSON:  "[]",
		IsActive:       1,
		ScoreRunID:     runID,
		CreatedAt:      UTCNow(),
	}
}

func TestInsertWithSupersedeDeactivatesPriorRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run1, err := s.Runs.Create(ctx, "score", "2025-06-15", "HR", "test", nil)
	require.NoError(t, err)
	_, err = s.Scores.InsertWithSupersede(ctx, []ModelScore{scoreRow(run1, 592450, 81.0)})
	require.NoError(t, err)

	run2, err := s.Runs.Create(ctx, "score", "2025-06-15", "HR", "test", nil)
	require.NoError(t, err)
	_, err = s.Scores.InsertWithSupersede(ctx, []ModelScore{scoreRow(run2, 592450, 76.5)})
	require.NoError(t, err)

	active, err := s.Scores.Active(ctx, "2025-06-15", "HR")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 76.5, active[0].ModelScore)
	assert.Equal(t, run2, active[0].ScoreRunID)

	// History is preserved, not updated in place.
	var total int
	require.NoError(t, s.getCtx(ctx, &total,
		`SELECT COUNT(*) FROM model_scores WHERE game_date = ?`, "2025-06-15"))
	assert.Equal(t, 2, total)
}

func TestSupersedeLeavesOtherPlayersActive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run1, err := s.Runs.Create(ctx, "score", "2025-06-15", "HR", "test", nil)
	require.NoError(t, err)

	other := scoreRow(run1, 660271, 72.0)
	otherKey := "HR|player:660271|line:0.5|YES"
	other.SelectionKey = &otherKey

	_, err = s.Scores.InsertWithSupersede(ctx, []ModelScore{
		scoreRow(run1, 592450, 81.0), other,
	})
	require.NoError(t, err)

	run2, err := s.Runs.Create(ctx, "score", "2025-06-15", "HR", "test", nil)
	require.NoError(t, err)
	_, err = s.Scores.InsertWithSupersede(ctx, []ModelScore{scoreRow(run2, 592450, 70.0)})
	require.NoError(t, err)

	active, err := s.Scores.Active(ctx, "2025-06-15", "HR")
	require.NoError(t, err)
	require.Len(t, active, 2)
	byPlayer := map[int64]ModelScore{}
	for _, row := range active {
		byPlayer[*row.PlayerID] = row
	}
	assert.Equal(t, run2, byPlayer[592450].ScoreRunID)
	assert.Equal(t, run1, byPlayer[660271].ScoreRunID)
}

func TestLineupSnapshotVersioning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1 := []Lineup{
		{GameDate: "2025-06-15", GameID: 745123, TeamID: "NYY", PlayerID: 592450, BattingOrder: intPtr(2), Position: strPtr("CF"), IsStarter: 1, Confirmed: 0, Source: "mlb", FetchedAt: "2025-06-15T14:00:00Z", ActiveVersion: 1},
		{GameDate: "2025-06-15", GameID: 745123, TeamID: "NYY", PlayerID: 665742, BattingOrder: intPtr(3), Position: strPtr("RF"), IsStarter: 1, Confirmed: 0, Source: "mlb", FetchedAt: "2025-06-15T14:00:00Z", ActiveVersion: 1},
	}
	_, err := s.Lineups.ReplaceSnapshot(ctx, "2025-06-15", 745123, "NYY", v1)
	require.NoError(t, err)

	v2 := []Lineup{
		{GameDate: "2025-06-15", GameID: 745123, TeamID: "NYY", PlayerID: 592450, BattingOrder: intPtr(1), Position: strPtr("CF"), IsStarter: 1, Confirmed: 1, Source: "mlb", FetchedAt: "2025-06-15T16:00:00Z", ActiveVersion: 1},
	}
	_, err = s.Lineups.ReplaceSnapshot(ctx, "2025-06-15", 745123, "NYY", v2)
	require.NoError(t, err)

	active, err := s.Lineups.ActiveSnapshot(ctx, "2025-06-15", 745123, "NYY")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(592450), active[0].PlayerID)
	assert.Equal(t, 1, active[0].Confirmed)

	slot, confirmed, err := s.Lineups.SlotFor(ctx, "2025-06-15", 745123, 592450)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, 1, *slot)
	assert.Equal(t, 1, confirmed)

	// Old versions survive for diffing.
	all, err := s.Lineups.SnapshotsForDate(ctx, "2025-06-15")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Runs.Create(ctx, "score", "2025-06-15", "HR", "cli", map[string]interface{}{"markets": 1})
	require.NoError(t, err)
	require.NoError(t, s.Runs.Complete(ctx, id, 42, nil))

	run, err := s.Runs.ByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, int64(42), run.RowsScored)
	assert.NotNil(t, run.FinishedAt)
	assert.NotEmpty(t, run.RunUID)

	failed, err := s.Runs.Create(ctx, "grade", "2025-06-15", "", "cli", nil)
	require.NoError(t, err)
	require.NoError(t, s.Runs.Fail(ctx, failed, "upstream timeout", nil))
	run, err = s.Runs.ByID(ctx, failed)
	require.NoError(t, err)
	require.NotNil(t, run.ErrorMessage)
	assert.Equal(t, "upstream timeout", *run.ErrorMessage)
}

func TestStadiumSeedAndParkFactors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Ref.SeedStadiums(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), n)

	coors, err := s.Ref.StadiumForTeam(ctx, "COL")
	require.NoError(t, err)
	require.NotNil(t, coors)
	assert.Equal(t, "Coors Field", coors.Name)
	assert.Greater(t, coors.ParkRunsFactor, 1.2)

	hr, runs, hits, err := s.Ref.ParkFactors(ctx, &coors.StadiumID)
	require.NoError(t, err)
	assert.Equal(t, coors.ParkHRFactor, hr)
	assert.Equal(t, coors.ParkRunsFactor, runs)
	assert.Equal(t, coors.ParkHitsFactor, hits)

	// Unknown park is neutral.
	unknown := int64(99999)
	hr, runs, hits, err = s.Ref.ParkFactors(ctx, &unknown)
	require.NoError(t, err)
	assert.Equal(t, 1.0, hr)
	assert.Equal(t, 1.0, runs)
	assert.Equal(t, 1.0, hits)
}

func TestOutcomeUpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := "ML|game:745123|HOME"

	_, err := s.Outcomes.UpsertOutcomes(ctx, []MarketOutcome{{
		GameDate: "2025-06-15", GameID: 745123, Market: "ML",
		SelectionKey: key, OutcomeValue: 0, SettledAt: "2025-06-16T03:00:00Z",
	}})
	require.NoError(t, err)

	_, err = s.Outcomes.UpsertOutcomes(ctx, []MarketOutcome{{
		GameDate: "2025-06-15", GameID: 745123, Market: "ML",
		SelectionKey: key, OutcomeValue: 1, SettledAt: "2025-06-16T04:00:00Z",
	}})
	require.NoError(t, err)

	got, err := s.Outcomes.OutcomeFor(ctx, "2025-06-15", key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1.0, got.OutcomeValue)
}

func TestBetSettlement(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bet := Bet{
		GameDate: "2025-06-15", GameID: 745123, Market: "HR",
		SelectionKey: "HR|player:592450|line:0.5|YES", Side: "YES",
		Line: f64Ptr(0.5), OddsAmerican: 150, ImpliedProbOpen: 0.400,
		StakeUnits: 1.0, Status: "pending", PlacedAt: UTCNow(),
	}
	require.NoError(t, s.Outcomes.InsertBet(ctx, bet))

	pending, err := s.Outcomes.PendingBets(ctx, "2025-06-15")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	settled := pending[0]
	settled.Status = "won"
	settled.ProfitUnits = f64Ptr(1.5)
	settled.ImpliedProbClose = f64Ptr(0.524)
	settled.ClvOpenToClose = f64Ptr(-0.124)
	now := UTCNow()
	settled.SettledAt = &now
	require.NoError(t, s.Outcomes.SettleBet(ctx, settled))

	pending, err = s.Outcomes.PendingBets(ctx, "2025-06-15")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
