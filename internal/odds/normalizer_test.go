package odds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmericanConversions(t *testing.T) {
	tests := []struct {
		price   int
		decimal float64
		implied float64
	}{
		{+150, 2.50, 0.400},
		{-110, 1.9090909090909092, 0.5238095238095238},
		{+320, 4.20, 0.23809523809523808},
		{+340, 4.40, 0.22727272727272727},
		{-200, 1.50, 0.6666666666666666},
		{+100, 2.00, 0.500},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.decimal, AmericanToDecimal(tt.price), 1e-9, "decimal for %d", tt.price)
		assert.InDelta(t, tt.implied, AmericanToImplied(tt.price), 1e-9, "implied for %d", tt.price)
	}
}

func TestAmericanDecimalRoundTrip(t *testing.T) {
	for _, price := range []int{+100, +105, +150, +320, +1200, -105, -110, -150, -240, -900} {
		assert.Equal(t, price, DecimalToAmerican(AmericanToDecimal(price)), "round trip %d", price)
	}
}

func TestImpliedInUnitInterval(t *testing.T) {
	for _, price := range []int{+10000, +100, -100, -10000} {
		p := AmericanToImplied(price)
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
	}
}

func TestSelectionKeyFormats(t *testing.T) {
	half := 0.5
	line := 6.5
	whole := 7.0

	assert.Equal(t, "HR|player:12345|YES", SelectionKey(MarketHR, PlayerEntity(12345), "OVER", &half))
	assert.Equal(t, "K|player:678|line:6.5|OVER", SelectionKey(MarketK, PlayerEntity(678), "OVER", &line))
	assert.Equal(t, "K|player:678|line:7|UNDER", SelectionKey(MarketK, PlayerEntity(678), "UNDER", &whole))
	assert.Equal(t, "ML|game:9|HOME", SelectionKey(MarketML, GameEntity(9), "HOME", &whole))
	assert.Equal(t, "TEAM_TOTAL|team:NYY|line:4.5|OVER", SelectionKey(MarketTeamTotal, TeamEntity("NYY"), "OVER", &[]float64{4.5}[0]))
}

func TestSelectionKeyHRLineOmitted(t *testing.T) {
	// HR yes/no props arrive priced as over/under 0.5. The key normalizes
	// the side and drops the implicit line.
	half := 0.5
	key := SelectionKey(MarketHR, PlayerEntity(592450), "over", &half)
	assert.Equal(t, "HR|player:592450|YES", key)
}

func TestParseSelectionKeyRoundTrip(t *testing.T) {
	sel, err := ParseSelectionKey("K|player:678|line:6.5|OVER")
	require.NoError(t, err)
	assert.Equal(t, MarketK, sel.Market)
	assert.Equal(t, "OVER", sel.Side)
	require.NotNil(t, sel.Line)
	assert.Equal(t, 6.5, *sel.Line)
	pid, ok := sel.PlayerID()
	require.True(t, ok)
	assert.Equal(t, int64(678), pid)

	sel, err = ParseSelectionKey("ML|game:9|HOME")
	require.NoError(t, err)
	assert.Nil(t, sel.Line)
	gid, ok := sel.GameID()
	require.True(t, ok)
	assert.Equal(t, int64(9), gid)

	sel, err = ParseSelectionKey("TEAM_TOTAL|team:NYY|line:4.5|OVER")
	require.NoError(t, err)
	abbr, ok := sel.TeamAbbr()
	require.True(t, ok)
	assert.Equal(t, "NYY", abbr)
}

func TestParseSelectionKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "HR", "HR|player:1", "K|player:1|6.5|OVER", "K|player:1|line:x|OVER", "A|b|c|d|e"} {
		_, err := ParseSelectionKey(key)
		assert.Error(t, err, key)
	}
}

func TestSelectionEntityMismatch(t *testing.T) {
	sel, err := ParseSelectionKey("ML|game:9|HOME")
	require.NoError(t, err)
	_, ok := sel.PlayerID()
	assert.False(t, ok)
	_, ok = sel.TeamAbbr()
	assert.False(t, ok)
}

func TestNormalizeSide(t *testing.T) {
	assert.Equal(t, "YES", NormalizeSide(MarketHR, "Over"))
	assert.Equal(t, "NO", NormalizeSide(MarketHits1Plus, "under"))
	assert.Equal(t, "OVER", NormalizeSide(MarketK, "over"))
	assert.Equal(t, "HOME", NormalizeSide(MarketML, "home"))
}

func TestInternalMarket(t *testing.T) {
	m, ok := InternalMarket("batter_home_runs")
	require.True(t, ok)
	assert.Equal(t, MarketHR, m)

	m, ok = InternalMarket("h2h")
	require.True(t, ok)
	assert.Equal(t, MarketML, m)

	_, ok = InternalMarket("player_fouls_committed")
	assert.False(t, ok)
}

func TestNormalizeDerivesFields(t *testing.T) {
	pid := int64(592450)
	half := 0.5
	r := Normalize(Row{
		GameDate:      "2024-07-04",
		GameID:        776123,
		Market:        MarketHR,
		EntityType:    "batter",
		PlayerID:      &pid,
		Side:          "Over",
		Line:          &half,
		PriceAmerican: 320,
		Sportsbook:    "draftkings",
	})

	assert.Equal(t, "YES", r.Side)
	assert.InDelta(t, 4.20, r.DecimalOdds, 1e-9)
	assert.InDelta(t, 0.2381, r.ImpliedProb, 1e-4)
	assert.Equal(t, "HR|player:592450|YES", r.SelectionKey)
	assert.Equal(t, "HR_YES", r.BetType)
}

func TestMarkBestAvailable(t *testing.T) {
	pid := int64(1)
	half := 0.5
	mk := func(price int, book string) Row {
		return Normalize(Row{
			GameDate: "2024-07-04", GameID: 1, Market: MarketHR,
			PlayerID: &pid, Side: "OVER", Line: &half,
			PriceAmerican: price, Sportsbook: book,
		})
	}
	rows := []Row{mk(320, "dk"), mk(340, "fd"), mk(300, "mgm")}

	best := MarkBestAvailable(rows)
	require.Len(t, best, 1)
	assert.True(t, best[1], "+340 has lowest implied probability")
	assert.False(t, best[0])
	assert.False(t, best[2])
}
