package pipeline

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballparklabs/mlbedge/internal/config"
	"github.com/ballparklabs/mlbedge/internal/fetch"
	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/store"
)

func rawPrice(side string) fetch.RawPrice {
	return fetch.RawPrice{Market: "ML", Side: side, Price: -120}
}

func ip(v int) *int       { return &v }
func sp(v string) *string { return &v }
func fp(v float64) *float64 {
	return &v
}

func TestLineupSignatureOrderIndependent(t *testing.T) {
	a := []store.Lineup{
		{PlayerID: 1, BattingOrder: ip(1), Position: sp("RF"), IsStarter: 1, Confirmed: 1},
		{PlayerID: 2, BattingOrder: ip(2), Position: sp("SS"), IsStarter: 1, Confirmed: 1},
	}
	b := []store.Lineup{a[1], a[0]}
	assert.Equal(t, lineupSignature(a), lineupSignature(b))
}

func TestLineupSignatureDetectsChanges(t *testing.T) {
	base := []store.Lineup{
		{PlayerID: 1, BattingOrder: ip(1), Position: sp("RF"), IsStarter: 1, Confirmed: 0},
	}

	swapped := []store.Lineup{
		{PlayerID: 1, BattingOrder: ip(2), Position: sp("RF"), IsStarter: 1, Confirmed: 0},
	}
	assert.NotEqual(t, lineupSignature(base), lineupSignature(swapped))

	confirmed := []store.Lineup{
		{PlayerID: 1, BattingOrder: ip(1), Position: sp("RF"), IsStarter: 1, Confirmed: 1},
	}
	assert.NotEqual(t, lineupSignature(base), lineupSignature(confirmed))

	noOrder := []store.Lineup{
		{PlayerID: 1, Position: sp("RF"), IsStarter: 1, Confirmed: 0},
	}
	assert.NotEqual(t, lineupSignature(base), lineupSignature(noOrder))
}

func TestAlerterThresholdOverrides(t *testing.T) {
	cfg := config.Alerts{ThresholdsJSON: `{"HR":{"signals":["BET"],"min_score":80,"max_rows":3}}`}
	a := NewAlerter(cfg, nil, zerolog.Nop())

	hr := a.thresholdFor("HR")
	assert.Equal(t, []string{"BET"}, hr.Signals)
	assert.Equal(t, 80.0, hr.MinScore)
	assert.Equal(t, 3, hr.MaxRows)

	// Unlisted markets fall back to the wildcard defaults.
	k := a.thresholdFor("TB_LINE")
	assert.Equal(t, []string{"BET", "LEAN"}, k.Signals)
	assert.Equal(t, 70.0, k.MinScore)
}

func TestAlerterBadThresholdsFallBack(t *testing.T) {
	a := NewAlerter(config.Alerts{ThresholdsJSON: "{not json"}, nil, zerolog.Nop())
	assert.Equal(t, 72.0, a.thresholdFor("HR").MinScore)
}

func TestBuildPayloadContents(t *testing.T) {
	a := NewAlerter(config.Alerts{DashboardURL: "https://dash.example"}, nil, zerolog.Nop())
	rows := []store.ModelScore{
		{
			GameID: 7, Signal: "BET", Side: "OVER", Line: fp(6.5),
			PlayerName: sp("Gerrit Cole"), ModelScore: 81.2, Edge: fp(0.07),
			LineupConfirmed: 1,
			ReasonsJSON:     `["k_rate_30 elite","opp_k_rate high","velo stable"]`,
			RiskFlagsJSON:   `["bullpen_risk"]`,
		},
	}
	content := a.buildPayload("2025-06-15", "K", rows)
	assert.Contains(t, content, "2025-06-15 K")
	assert.Contains(t, content, "Gerrit Cole OVER 6.5")
	assert.Contains(t, content, "score 81.2")
	assert.Contains(t, content, "edge 0.07")
	assert.Contains(t, content, "lineup Y")
	assert.Contains(t, content, "k_rate_30 elite, opp_k_rate high")
	assert.NotContains(t, content, "velo stable")
	assert.Contains(t, content, "risks: bullpen_risk")
	assert.Contains(t, content, "https://dash.example")
}

func TestBuildPayloadTruncates(t *testing.T) {
	a := NewAlerter(config.Alerts{}, nil, zerolog.Nop())
	name := strings.Repeat("x", 200)
	rows := make([]store.ModelScore, 20)
	for i := range rows {
		rows[i] = store.ModelScore{
			GameID: int64(i), Signal: "BET", Side: "YES",
			PlayerName: sp(name), ModelScore: 75,
			ReasonsJSON: "[]", RiskFlagsJSON: "[]",
		}
	}
	content := a.buildPayload("2025-06-15", "HR", rows)
	assert.LessOrEqual(t, len(content), alertContentMax)
}

func TestTopTags(t *testing.T) {
	assert.Equal(t, "a, b", topTags(`["a","b","c"]`, 2))
	assert.Equal(t, "a", topTags(`["a"]`, 2))
	assert.Equal(t, "", topTags("[]", 2))
	assert.Equal(t, "", topTags("not json", 2))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "aaron judge", normalizeName("Aaron Judge"))
	assert.Equal(t, "aaron judge", normalizeName("Judge, Aaron"))
	assert.Equal(t, "jp crawford", normalizeName("J.P. Crawford"))
	assert.Equal(t, "jp crawford", normalizeName("Crawford, J.P."))
	assert.Equal(t, "luis garcia", normalizeName("  Luis   Garcia "))
}

func TestGameSide(t *testing.T) {
	g := store.Game{HomeTeam: "NYY", AwayTeam: "BOS"}

	side, ok := gameSide(rawPrice("New York Yankees"), g)
	require.True(t, ok)
	assert.Equal(t, "HOME", side)

	side, ok = gameSide(rawPrice("Boston Red Sox"), g)
	require.True(t, ok)
	assert.Equal(t, "AWAY", side)

	side, ok = gameSide(rawPrice("Over"), g)
	require.True(t, ok)
	assert.Equal(t, "OVER", side)

	_, ok = gameSide(rawPrice("Chicago Cubs"), g)
	assert.False(t, ok)
}

func TestStoreRowsFlagsBestPriceInBatch(t *testing.T) {
	norms := []oddskit.Row{
		{GameDate: "2025-06-15", GameID: 100, Market: "K", PlayerName: "Gerrit Cole",
			SelectionKey: "K|player:20|line:6.5|OVER", Sportsbook: "draftkings",
			PriceAmerican: -120, ImpliedProb: 0.5455},
		{GameDate: "2025-06-15", GameID: 100, Market: "K", PlayerName: "Gerrit Cole",
			SelectionKey: "K|player:20|line:6.5|OVER", Sportsbook: "fanduel",
			PriceAmerican: 105, ImpliedProb: 0.4878},
		{GameDate: "2025-06-15", GameID: 100, Market: "TEAM_TOTAL", TeamAbbr: "NYY",
			SelectionKey: "TEAM_TOTAL|team:NYY|line:4.5|OVER", Sportsbook: "draftkings",
			PriceAmerican: -110, ImpliedProb: 0.5238},
	}

	rows := storeRows(norms)
	require.Len(t, rows, 3)

	// The better payout per selection carries the flag into the insert.
	assert.Equal(t, 0, rows[0].IsBestAvailable)
	assert.Equal(t, 1, rows[1].IsBestAvailable)
	assert.Equal(t, 1, rows[2].IsBestAvailable)

	require.NotNil(t, rows[1].PlayerName)
	assert.Equal(t, "Gerrit Cole", *rows[1].PlayerName)
	require.NotNil(t, rows[2].TeamAbbr)
	assert.Equal(t, "NYY", *rows[2].TeamAbbr)
	require.NotNil(t, rows[0].GameID)
	assert.Equal(t, int64(100), *rows[0].GameID)
}

func TestDateRange(t *testing.T) {
	dates, err := dateRange("2025-06-28", "2025-07-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-28", "2025-06-29", "2025-06-30", "2025-07-01", "2025-07-02"}, dates)

	dates, err = dateRange("2025-06-15", "2025-06-15")
	require.NoError(t, err)
	assert.Len(t, dates, 1)

	_, err = dateRange("2025-06-16", "2025-06-15")
	assert.Error(t, err)

	_, err = dateRange("06/15/2025", "2025-06-16")
	assert.Error(t, err)
}

func TestLineupSensitiveMarkets(t *testing.T) {
	markets := lineupSensitiveMarkets()
	assert.Contains(t, markets, "HITS_1P")
	assert.Contains(t, markets, "HR")
	assert.Contains(t, markets, "K")
	assert.NotEmpty(t, markets)
}
