package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecForNormalizesCase(t *testing.T) {
	spec, err := SpecFor("hr")
	require.NoError(t, err)
	assert.Equal(t, "HR", spec.Market)
	assert.Equal(t, EntityBatter, spec.Entity)
	assert.Equal(t, ConservativeThresholds, spec.Thresholds)

	_, err = SpecFor("NHL_GOALS")
	assert.Error(t, err)
}

func TestEveryMarketHasAModel(t *testing.T) {
	for _, m := range SupportedMarkets() {
		assert.Contains(t, models, m, m)
	}
	assert.Len(t, SupportedMarkets(), 11)
}

func TestThresholdFamilies(t *testing.T) {
	assert.Equal(t, 75.0, DefaultThresholds.Bet.MinScore)
	assert.Equal(t, 5.0, DefaultThresholds.Bet.MinEdge)
	assert.Equal(t, -3.0, DefaultThresholds.Fade.MaxEdge)

	// Conservative tightens every band, aggressive loosens it.
	assert.Greater(t, ConservativeThresholds.Bet.MinScore, DefaultThresholds.Bet.MinScore)
	assert.Less(t, AggressiveThresholds.Bet.MinScore, DefaultThresholds.Bet.MinScore)
	assert.Less(t, ConservativeThresholds.Fade.MaxScore, DefaultThresholds.Fade.MaxScore)
}

func TestLineupRequiredMarkets(t *testing.T) {
	for _, m := range []string{"HITS_1P", "HITS_LINE", "TB_LINE"} {
		spec, err := SpecFor(m)
		require.NoError(t, err)
		assert.Equal(t, LineupRequired, spec.Lineup, m)
	}
	hr, _ := SpecFor("HR")
	assert.Equal(t, LineupRecommended, hr.Lineup)
	assert.Equal(t, PolicyStoreWithRiskFlags, hr.MissingData)
}

func TestDefaultDailyMarketsAreRegistered(t *testing.T) {
	for _, m := range DefaultDailyMarkets {
		_, err := SpecFor(m)
		assert.NoError(t, err, m)
	}
}
