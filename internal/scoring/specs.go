// Package scoring runs the per-market models. Each market has a Spec
// describing its entity type, output shape, thresholds and missing-data
// policy; the shared engine loads the feature bundle per game and
// dispatches to the model registered for the market.
package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// EntityType is the kind of entity a market prices.
type EntityType string

const (
	EntityBatter  EntityType = "batter"
	EntityPitcher EntityType = "pitcher"
	EntityTeam    EntityType = "team"
	EntityGame    EntityType = "game"
)

// OutputType is the model's primary output shape.
type OutputType string

const (
	OutputProbability OutputType = "probability"
	OutputProjection  OutputType = "projection"
	OutputHybrid      OutputType = "hybrid"
)

// EdgeMethod selects how edge percent is computed against the book.
type EdgeMethod string

const (
	EdgeProbVsImplied    EdgeMethod = "prob_vs_implied"
	EdgeProjectionVsLine EdgeMethod = "projection_vs_line"
	EdgeHybrid           EdgeMethod = "hybrid"
)

// LineupRequirement states how much the model depends on posted lineups.
type LineupRequirement string

const (
	LineupRequired    LineupRequirement = "required"
	LineupRecommended LineupRequirement = "recommended"
	LineupNotRequired LineupRequirement = "not_required"
)

// MissingDataPolicy governs behavior when a required input is absent.
type MissingDataPolicy string

const (
	PolicyDegradeConfidence  MissingDataPolicy = "degrade_confidence"
	PolicySkipRow            MissingDataPolicy = "skip_row"
	PolicyStoreWithRiskFlags MissingDataPolicy = "store_with_risk_flags"
)

// SignalThreshold is one band of the signal cutoffs. BET and LEAN read
// MinScore/MinEdge; FADE reads MaxScore/MaxEdge.
type SignalThreshold struct {
	MinScore float64
	MinEdge  float64
	MaxScore float64
	MaxEdge  float64
}

// Thresholds is one preset family of signal cutoffs.
type Thresholds struct {
	Bet  SignalThreshold
	Lean SignalThreshold
	Fade SignalThreshold
}

var (
	DefaultThresholds = Thresholds{
		Bet:  SignalThreshold{MinScore: 75.0, MinEdge: 5.0},
		Lean: SignalThreshold{MinScore: 60.0, MinEdge: 2.5},
		Fade: SignalThreshold{MaxScore: 35.0, MaxEdge: -3.0},
	}
	ConservativeThresholds = Thresholds{
		Bet:  SignalThreshold{MinScore: 78.0, MinEdge: 6.0},
		Lean: SignalThreshold{MinScore: 64.0, MinEdge: 3.5},
		Fade: SignalThreshold{MaxScore: 32.0, MaxEdge: -4.0},
	}
	AggressiveThresholds = Thresholds{
		Bet:  SignalThreshold{MinScore: 72.0, MinEdge: 4.0},
		Lean: SignalThreshold{MinScore: 58.0, MinEdge: 2.0},
		Fade: SignalThreshold{MaxScore: 38.0, MaxEdge: -2.5},
	}
)

// Spec is the registry entry for one market.
type Spec struct {
	Market                string
	Entity                EntityType
	RequiredFeatureTables []string
	Output                OutputType
	Edge                  EdgeMethod
	Thresholds            Thresholds
	Lineup                LineupRequirement
	MissingData           MissingDataPolicy
	WeatherRecommended    bool
}

var batterTables = []string{"batter_daily_features", "pitcher_daily_features", "game_context_features"}
var pitcherTables = []string{"pitcher_daily_features", "team_daily_features", "game_context_features"}
var gameTables = []string{"pitcher_daily_features", "team_daily_features", "game_context_features"}

var specs = map[string]Spec{
	"HR": {
		Market: "HR", Entity: EntityBatter, RequiredFeatureTables: batterTables,
		Output: OutputProbability, Edge: EdgeProbVsImplied,
		Thresholds: ConservativeThresholds, Lineup: LineupRecommended,
		MissingData: PolicyStoreWithRiskFlags, WeatherRecommended: true,
	},
	"K": {
		Market: "K", Entity: EntityPitcher, RequiredFeatureTables: pitcherTables,
		Output: OutputHybrid, Edge: EdgeHybrid,
		Thresholds: DefaultThresholds, Lineup: LineupRecommended,
		MissingData: PolicyStoreWithRiskFlags, WeatherRecommended: true,
	},
	"HITS_1P": {
		Market: "HITS_1P", Entity: EntityBatter, RequiredFeatureTables: batterTables,
		Output: OutputProbability, Edge: EdgeProbVsImplied,
		Thresholds: AggressiveThresholds, Lineup: LineupRequired,
		MissingData: PolicyDegradeConfidence, WeatherRecommended: true,
	},
	"HITS_LINE": {
		Market: "HITS_LINE", Entity: EntityBatter, RequiredFeatureTables: batterTables,
		Output: OutputHybrid, Edge: EdgeHybrid,
		Thresholds: DefaultThresholds, Lineup: LineupRequired,
		MissingData: PolicyDegradeConfidence, WeatherRecommended: true,
	},
	"TB_LINE": {
		Market: "TB_LINE", Entity: EntityBatter, RequiredFeatureTables: batterTables,
		Output: OutputHybrid, Edge: EdgeHybrid,
		Thresholds: DefaultThresholds, Lineup: LineupRequired,
		MissingData: PolicyDegradeConfidence, WeatherRecommended: true,
	},
	"OUTS_RECORDED": {
		Market: "OUTS_RECORDED", Entity: EntityPitcher, RequiredFeatureTables: pitcherTables,
		Output: OutputProjection, Edge: EdgeProjectionVsLine,
		Thresholds: DefaultThresholds, Lineup: LineupRecommended,
		MissingData: PolicyStoreWithRiskFlags, WeatherRecommended: true,
	},
	"ML": {
		Market: "ML", Entity: EntityGame, RequiredFeatureTables: gameTables,
		Output: OutputProbability, Edge: EdgeProbVsImplied,
		Thresholds: DefaultThresholds, Lineup: LineupRecommended,
		MissingData: PolicyStoreWithRiskFlags, WeatherRecommended: true,
	},
	"TOTAL": {
		Market: "TOTAL", Entity: EntityGame, RequiredFeatureTables: gameTables,
		Output: OutputProjection, Edge: EdgeProjectionVsLine,
		Thresholds: DefaultThresholds, Lineup: LineupRecommended,
		MissingData: PolicyStoreWithRiskFlags, WeatherRecommended: true,
	},
	"F5_ML": {
		Market: "F5_ML", Entity: EntityGame, RequiredFeatureTables: gameTables,
		Output: OutputProbability, Edge: EdgeProbVsImplied,
		Thresholds: DefaultThresholds, Lineup: LineupRecommended,
		MissingData: PolicyStoreWithRiskFlags, WeatherRecommended: true,
	},
	"F5_TOTAL": {
		Market: "F5_TOTAL", Entity: EntityGame, RequiredFeatureTables: gameTables,
		Output: OutputProjection, Edge: EdgeProjectionVsLine,
		Thresholds: DefaultThresholds, Lineup: LineupRecommended,
		MissingData: PolicyStoreWithRiskFlags, WeatherRecommended: true,
	},
	"TEAM_TOTAL": {
		Market: "TEAM_TOTAL", Entity: EntityTeam, RequiredFeatureTables: gameTables,
		Output: OutputProjection, Edge: EdgeProjectionVsLine,
		Thresholds: DefaultThresholds, Lineup: LineupRecommended,
		MissingData: PolicyStoreWithRiskFlags, WeatherRecommended: true,
	},
}

// SpecFor returns the registry entry for a market code.
func SpecFor(market string) (Spec, error) {
	spec, ok := specs[strings.ToUpper(market)]
	if !ok {
		return Spec{}, fmt.Errorf("unknown market spec: %s", market)
	}
	return spec, nil
}

// SupportedMarkets lists registered market codes in sorted order.
func SupportedMarkets() []string {
	out := make([]string, 0, len(specs))
	for m := range specs {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// DefaultDailyMarkets is the market set the daily pipeline scores when
// no explicit market is requested.
var DefaultDailyMarkets = []string{"HR", "K", "HITS_1P", "HITS_LINE", "TB_LINE", "OUTS_RECORDED"}
