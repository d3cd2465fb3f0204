package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// Engine dispatches one market per call to its model, sharing a per-game
// feature bundle across models.
type Engine struct {
	s   *store.Store
	log zerolog.Logger
}

func NewEngine(s *store.Store, logger zerolog.Logger) *Engine {
	return &Engine{s: s, log: logger.With().Str("component", "scoring").Logger()}
}

type modelFunc func(ctx context.Context, e *Engine, g *gameBundle, spec Spec) ([]store.ModelScore, error)

var models = map[string]modelFunc{
	"HR":            scoreHR,
	"K":             scoreK,
	"HITS_1P":       scoreHits,
	"HITS_LINE":     scoreHits,
	"TB_LINE":       scoreTB,
	"OUTS_RECORDED": scoreOuts,
	"ML":            scoreML,
	"TOTAL":         scoreTotal,
	"F5_ML":         scoreF5ML,
	"F5_TOTAL":      scoreF5Total,
	"TEAM_TOTAL":    scoreTeamTotal,
}

// gameBundle is everything the models need for one game, loaded once.
type gameBundle struct {
	game    store.Game
	ctxRow  *store.GameContextFeatures
	home    *store.TeamFeatures
	away    *store.TeamFeatures
	homeSP  *store.PitcherFeatures
	awaySP  *store.PitcherFeatures
	odds    []store.MarketOdds
	batters []store.BatterFeatures
	pop     *population
}

// ScoreMarket scores one market across the slate (or a single game when
// onlyGameID is set) and persists the rows under runID. Returns the
// number of active rows written.
func (e *Engine) ScoreMarket(ctx context.Context, gameDate, market string, runID int64, onlyGameID *int64) (int64, error) {
	spec, err := SpecFor(market)
	if err != nil {
		return 0, err
	}
	model, ok := models[spec.Market]
	if !ok {
		return 0, fmt.Errorf("no model registered for market %s", spec.Market)
	}

	games, err := e.s.Games.ForDate(ctx, gameDate)
	if err != nil {
		return 0, fmt.Errorf("load games: %w", err)
	}

	var dateBatters []store.BatterFeatures
	if spec.Entity == EntityBatter {
		dateBatters, err = e.s.Features.BatterForDate(ctx, gameDate)
		if err != nil {
			return 0, fmt.Errorf("load batter features: %w", err)
		}
	}
	pop, err := e.buildPopulation(ctx, gameDate, games, dateBatters)
	if err != nil {
		return 0, fmt.Errorf("build population: %w", err)
	}

	var rows []store.ModelScore
	for _, g := range games {
		if onlyGameID != nil && g.GameID != *onlyGameID {
			continue
		}
		bundle, err := e.loadBundle(ctx, gameDate, g, spec, dateBatters, pop)
		if err != nil {
			return 0, fmt.Errorf("bundle game %d: %w", g.GameID, err)
		}
		scored, err := model(ctx, e, bundle, spec)
		if err != nil {
			return 0, fmt.Errorf("score game %d: %w", g.GameID, err)
		}
		for i := range scored {
			scored[i].GameDate = gameDate
			scored[i].GameID = g.GameID
			scored[i].Market = spec.Market
			scored[i].EntityType = string(spec.Entity)
			scored[i].ScoreRunID = runID
			scored[i].IsActive = 1
			if bundle.ctxRow != nil {
				if bundle.ctxRow.LineupsConfirmedHome == 1 && bundle.ctxRow.LineupsConfirmedAway == 1 {
					scored[i].LineupConfirmed = 1
				}
				if bundle.ctxRow.WeatherTempF != nil {
					scored[i].WeatherFinal = 1
				}
			}
		}
		rows = append(rows, scored...)
	}
	if len(rows) == 0 {
		e.log.Warn().Str("date", gameDate).Str("market", spec.Market).Msg("no rows scored")
		return 0, nil
	}

	n, err := e.s.Scores.InsertWithSupersede(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("persist scores: %w", err)
	}
	e.log.Info().Str("date", gameDate).Str("market", spec.Market).Int64("rows", n).Msg("market scored")
	return n, nil
}

func (e *Engine) loadBundle(ctx context.Context, gameDate string, g store.Game, spec Spec, dateBatters []store.BatterFeatures, pop *population) (*gameBundle, error) {
	b := &gameBundle{game: g, pop: pop}

	var err error
	b.ctxRow, err = e.s.Features.ContextFor(ctx, gameDate, g.GameID)
	if err != nil {
		return nil, err
	}
	b.home, err = e.s.Features.TeamFor(ctx, gameDate, g.HomeTeam)
	if err != nil {
		return nil, err
	}
	b.away, err = e.s.Features.TeamFor(ctx, gameDate, g.AwayTeam)
	if err != nil {
		return nil, err
	}
	if g.HomePitcherID != nil {
		b.homeSP = pop.starters[*g.HomePitcherID]
	}
	if g.AwayPitcherID != nil {
		b.awaySP = pop.starters[*g.AwayPitcherID]
	}
	gid := g.GameID
	b.odds, err = e.s.Odds.BestForMarket(ctx, gameDate, spec.Market, &gid)
	if err != nil {
		return nil, err
	}
	for _, bf := range dateBatters {
		if bf.TeamID != nil && (*bf.TeamID == g.HomeTeam || *bf.TeamID == g.AwayTeam) {
			b.batters = append(b.batters, bf)
		}
	}
	return b, nil
}

// opponentsOf returns (ownTeam, oppTeam, oppStarter) for a batter on one
// side of the game.
func (b *gameBundle) opponentsOf(teamID string) (string, *store.PitcherFeatures) {
	if teamID == b.game.HomeTeam {
		return b.game.AwayTeam, b.awaySP
	}
	return b.game.HomeTeam, b.homeSP
}

// lineupSlot resolves the batting slot for a player, falling back to the
// recent-slot column on the feature row. The second return reports
// whether the active snapshot is confirmed.
func (e *Engine) lineupSlot(ctx context.Context, gameDate string, gameID int64, bf store.BatterFeatures) (*int, bool, error) {
	slot, confirmed, err := e.s.Lineups.SlotFor(ctx, gameDate, gameID, bf.PlayerID)
	if err != nil {
		return nil, false, err
	}
	if slot != nil {
		return slot, confirmed == 1, nil
	}
	return bf.RecentLineupSlot, false, nil
}

// oddsBySelection indexes the bundle's best-available rows by side and,
// for lined markets, the line itself.
func oddsFor(rows []store.MarketOdds, playerID *int64, side string) *store.MarketOdds {
	for i := range rows {
		r := &rows[i]
		if r.Side != side {
			continue
		}
		if playerID != nil {
			if r.PlayerID == nil || *r.PlayerID != *playerID {
				continue
			}
		} else if r.PlayerID != nil {
			continue
		}
		return r
	}
	return nil
}

// ---- shared math ----

type factor struct {
	name   string
	score  float64
	weight float64
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1f(v float64) float64 { return math.Round(v*10) / 10 }
func round3f(v float64) float64 { return math.Round(v*1000) / 1000 }

// scaleBetween maps x linearly from [lo,hi] onto [0,100]. Missing
// values land on the neutral 50.
func scaleBetween(x *float64, lo, hi float64) float64 {
	if x == nil || hi == lo {
		return 50
	}
	return clampf((*x-lo)/(hi-lo)*100, 0, 100)
}

// relativeSlope scores a delta against its own baseline so hot and cold
// streaks read the same for high- and low-baseline players.
func relativeSlope(delta, baseline *float64, scale, floor, loCap, hiCap float64) float64 {
	if delta == nil {
		return 50
	}
	base := floor
	if baseline != nil && *baseline > floor {
		base = *baseline
	}
	return clampf(50+*delta/base*scale, loCap, hiCap)
}

// platoonAdvantage compares a handedness split against the blended rate.
func platoonAdvantage(split, avg *float64) float64 {
	if split == nil || avg == nil || *avg == 0 {
		return 50
	}
	return clampf(50+(*split-*avg)/(*avg)*150, 20, 80)
}

// percentileRank is the share of the population strictly below x, as a
// 0..100 score. Empty populations are neutral.
func percentileRank(x *float64, population []float64) float64 {
	if x == nil || len(population) == 0 {
		return 50
	}
	below := 0
	for _, v := range population {
		if v < *x {
			below++
		}
	}
	return float64(below) / float64(len(population)) * 100
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// poissonOverProb is P(X > floor(line)) for X ~ Poisson(lambda).
func poissonOverProb(lambda, line float64) float64 {
	if lambda <= 0 {
		return 0
	}
	k := int(math.Floor(line))
	cdf := 0.0
	term := math.Exp(-lambda)
	for i := 0; i <= k; i++ {
		if i > 0 {
			term *= lambda / float64(i)
		}
		cdf += term
	}
	return clampf(1-cdf, 0, 1)
}

// probabilityEdgePct is (model - implied) in probability points.
func probabilityEdgePct(modelProb float64, implied *float64) *float64 {
	if implied == nil {
		return nil
	}
	e := round3f((modelProb - *implied) * 100)
	return &e
}

// projectionEdgePct is the projection's percent distance from the line.
func projectionEdgePct(projection float64, line *float64) *float64 {
	if line == nil || *line == 0 {
		return nil
	}
	e := round3f((projection - *line) / math.Abs(*line) * 100)
	return &e
}

// assignSignal maps (score, edge) onto BET/LEAN/FADE/SKIP. Without an
// edge only score thresholds apply; with one, both must clear.
func assignSignal(score float64, edge *float64, th Thresholds) string {
	if edge == nil {
		switch {
		case score >= th.Bet.MinScore:
			return "BET"
		case score >= th.Lean.MinScore:
			return "LEAN"
		case score <= th.Fade.MaxScore:
			return "FADE"
		}
		return "SKIP"
	}
	switch {
	case score >= th.Bet.MinScore && *edge >= th.Bet.MinEdge:
		return "BET"
	case score >= th.Lean.MinScore && *edge >= th.Lean.MinEdge:
		return "LEAN"
	case score <= th.Fade.MaxScore && *edge <= th.Fade.MaxEdge:
		return "FADE"
	}
	return "SKIP"
}

// confidenceBand bands the score, degrading one band as risk flags
// accumulate.
func confidenceBand(score float64, riskFlags []string) string {
	band := "LOW"
	switch {
	case score >= 78:
		band = "HIGH"
	case score >= 60:
		band = "MEDIUM"
	}
	if band == "HIGH" && len(riskFlags) >= 2 {
		band = "MEDIUM"
	} else if band == "MEDIUM" && len(riskFlags) >= 3 {
		band = "LOW"
	}
	return band
}

func visibilityTier(signal, band string) string {
	if signal == "BET" && band == "HIGH" {
		return "FREE"
	}
	return "PRO"
}

// edgeBumpMarkets are the markets whose composite is shifted toward the
// price. Player prop calibrations stay price-free so the probability
// mapping is not distorted near the signal cutoffs.
var edgeBumpMarkets = map[string]bool{
	"ML":            true,
	"TOTAL":         true,
	"TEAM_TOTAL":    true,
	"OUTS_RECORDED": true,
}

// edgeBump shifts the composite toward the market's read of the price,
// capped so the model still dominates.
func edgeBump(market string, score float64, edge *float64) float64 {
	if edge == nil || !edgeBumpMarkets[market] {
		return score
	}
	return clampf(score+clampf(*edge*0.35, -8, 8), 0, 100)
}

func composite(factors []factor) float64 {
	var sum, wsum float64
	for _, f := range factors {
		sum += f.score * f.weight
		wsum += f.weight
	}
	if wsum == 0 {
		return 50
	}
	return sum / wsum
}

// buildReasons keeps the top-k factor tags by score.
func buildReasons(factors []factor, k int) []string {
	sorted := make([]factor, len(factors))
	copy(sorted, factors)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })
	if k > len(sorted) {
		k = len(sorted)
	}
	out := make([]string, 0, k)
	for _, f := range sorted[:k] {
		out = append(out, fmt.Sprintf("%s:%.0f", f.name, f.score))
	}
	return out
}

func factorsJSON(factors []factor) string {
	m := make(map[string]float64, len(factors))
	for _, f := range factors {
		m[f.name] = round1f(f.score)
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func stringsJSON(vals []string) string {
	if vals == nil {
		vals = []string{}
	}
	b, _ := json.Marshal(vals)
	return string(b)
}

// missingFlag appends "missing:<input>" when the pointer is nil and
// reports whether the value was present.
func missingFlag(flags []string, name string, v *float64) []string {
	if v == nil {
		return append(flags, "missing:"+name)
	}
	return flags
}

// finalize fills the derived columns shared by every model: the bumped
// score, signal, bands, tier and JSON payloads.
func finalize(row *store.ModelScore, spec Spec, score float64, edge *float64, factors []factor, flags []string) {
	bumped := edgeBump(spec.Market, clampf(score, 0, 100), edge)
	row.ModelScore = round1f(bumped)
	row.Edge = edge
	row.Signal = assignSignal(bumped, edge, spec.Thresholds)
	row.ConfidenceBand = confidenceBand(bumped, flags)
	row.VisibilityTier = visibilityTier(row.Signal, row.ConfidenceBand)
	row.FactorsJSON = factorsJSON(factors)
	row.ReasonsJSON = stringsJSON(buildReasons(factors, 3))
	row.RiskFlagsJSON = stringsJSON(flags)
}

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func firstF(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func orF(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}
