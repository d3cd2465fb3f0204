// Package backtest replays stored model scores against realized
// outcomes with no lookahead: every open price joined to a score was
// fetched at or before the score was created, and any outcome that was
// already settled when its score was written aborts the run.
package backtest

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ballparklabs/mlbedge/internal/grading"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// Options selects the slice of the store to replay.
type Options struct {
	Market    string
	StartDate string
	EndDate   string
	// Signals filters which scored rows are simulated. Empty means BET
	// only.
	Signals []string
}

// Row is one simulated selection, one CSV line.
type Row struct {
	GameDate        string
	Market          string
	GameID          int64
	SelectionKey    string
	Signal          string
	ModelScore      float64
	ModelProb       *float64
	Edge            *float64
	Side            string
	Line            *float64
	OpenOdds        int
	OpenImpliedProb float64
	CloseImplied    *float64
	CLV             *float64
	OutcomeValue    float64
	Settlement      string
	ProfitUnits     float64
	ScoreBucket     string
	ProbBucket      string

	factorsJSON string
}

// BucketStats aggregates simulated rows sharing a score bucket.
type BucketStats struct {
	Count   int      `json:"count"`
	WinRate *float64 `json:"win_rate,omitempty"`
	ROI     float64  `json:"roi"`
	AvgEdge *float64 `json:"avg_edge,omitempty"`
	AvgCLV  *float64 `json:"avg_clv,omitempty"`
}

// CalibrationStats compares modeled and realized win rates per
// probability bucket.
type CalibrationStats struct {
	Count            int     `json:"count"`
	AvgModelProb     float64 `json:"avg_model_prob"`
	RealizedWinRate  float64 `json:"realized_win_rate"`
	CalibrationError float64 `json:"calibration_error"`
}

// FactorStats is one factor's correlation with realized profit.
type FactorStats struct {
	N              int     `json:"n"`
	CorrWithProfit float64 `json:"corr_with_profit"`
}

// Summary is the backtest report.
type Summary struct {
	Market           string                      `json:"market"`
	StartDate        string                      `json:"start_date"`
	EndDate          string                      `json:"end_date"`
	RowsScored       int                         `json:"rows_scored"`
	RowsSimulated    int                         `json:"rows_simulated"`
	Wins             int                         `json:"wins"`
	Losses           int                         `json:"losses"`
	Pushes           int                         `json:"pushes"`
	WinRate          *float64                    `json:"win_rate,omitempty"`
	ROIUnits         *float64                    `json:"roi_units,omitempty"`
	TotalProfitUnits float64                     `json:"total_profit_units"`
	ScoreBuckets     map[string]BucketStats      `json:"score_buckets,omitempty"`
	Calibration      map[string]CalibrationStats `json:"calibration,omitempty"`
	Factors          map[string]FactorStats      `json:"factors,omitempty"`
	CSVPath          string                      `json:"csv_path"`
}

// Runner replays a market over a date range.
type Runner struct {
	s      *store.Store
	log    zerolog.Logger
	outDir string
}

func NewRunner(s *store.Store, logger zerolog.Logger, outDir string) *Runner {
	return &Runner{
		s:      s,
		log:    logger.With().Str("component", "backtest").Logger(),
		outDir: outDir,
	}
}

// Run simulates every qualifying scored row and writes the CSV export.
// Rows without a matching as-of price or graded outcome are skipped,
// not errors: sparse odds coverage is normal in historical data.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	signals := opts.Signals
	if len(signals) == 0 {
		signals = []string{"BET"}
	}
	scores, err := r.s.Scores.ActiveInRange(ctx, opts.Market, opts.StartDate, opts.EndDate, signals)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}

	sum := &Summary{
		Market:    opts.Market,
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
	}
	sum.RowsScored = len(scores)

	var rows []Row
	for _, score := range scores {
		row, ok, err := r.simulate(ctx, score)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	sum.RowsSimulated = len(rows)

	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	sum.CSVPath = filepath.Join(r.outDir, fmt.Sprintf("backtest_results_%s.csv", opts.Market))
	if err := WriteCSV(sum.CSVPath, rows); err != nil {
		return nil, err
	}

	aggregate(sum, rows)
	r.log.Info().
		Str("market", opts.Market).
		Int("scored", sum.RowsScored).
		Int("simulated", sum.RowsSimulated).
		Str("csv", sum.CSVPath).
		Msg("backtest complete")
	return sum, nil
}

// simulate joins one score to its as-of open price, outcome and closing
// line. The false return means the row lacked inputs and is skipped.
func (r *Runner) simulate(ctx context.Context, score store.ModelScore) (Row, bool, error) {
	if score.SelectionKey == nil {
		return Row{}, false, nil
	}
	key := *score.SelectionKey

	open, err := r.s.Odds.OpenRowAsOf(ctx, score.GameDate, key, score.CreatedAt)
	if err != nil {
		return Row{}, false, fmt.Errorf("open odds %s: %w", key, err)
	}
	if open == nil {
		return Row{}, false, nil
	}

	outcome, err := r.s.Outcomes.OutcomeFor(ctx, score.GameDate, key)
	if err != nil {
		return Row{}, false, fmt.Errorf("outcome %s: %w", key, err)
	}
	if outcome == nil {
		return Row{}, false, nil
	}
	// An outcome settled at or before the score's creation means the
	// model could have seen the result.
	if outcome.SettledAt <= score.CreatedAt {
		return Row{}, false, fmt.Errorf(
			"outcome for %s settled at %s before score created at %s: %w",
			key, outcome.SettledAt, score.CreatedAt, store.ErrInvariant)
	}

	settlement := grading.Settle(score.Side, score.Line, outcome.OutcomeValue)
	row := Row{
		GameDate:        score.GameDate,
		Market:          score.Market,
		GameID:          score.GameID,
		SelectionKey:    key,
		Signal:          score.Signal,
		ModelScore:      score.ModelScore,
		ModelProb:       score.ModelProb,
		Edge:            score.Edge,
		Side:            score.Side,
		Line:            score.Line,
		OpenOdds:        open.PriceAmerican,
		OpenImpliedProb: open.ImpliedProb,
		OutcomeValue:    outcome.OutcomeValue,
		Settlement:      settlement,
		ProfitUnits:     grading.Profit(settlement, open.PriceAmerican, 1),
		ScoreBucket:     scoreBucket(score.ModelScore),
		ProbBucket:      probBucket(score.ModelProb),
		factorsJSON:     score.FactorsJSON,
	}

	closing, err := r.s.Outcomes.ClosingLineFor(ctx, score.GameDate, key)
	if err != nil {
		return Row{}, false, fmt.Errorf("closing line %s: %w", key, err)
	}
	if closing != nil {
		ci := closing.ImpliedProb
		clv := open.ImpliedProb - ci
		row.CloseImplied = &ci
		row.CLV = &clv
	}
	return row, true, nil
}

func scoreBucket(score float64) string {
	switch {
	case score < 50:
		return "<50"
	case score < 60:
		return "50-59"
	case score < 70:
		return "60-69"
	case score < 80:
		return "70-79"
	}
	return "80+"
}

func probBucket(prob *float64) string {
	if prob == nil {
		return "unknown"
	}
	p := math.Max(0, math.Min(1, *prob))
	lo := int(math.Floor(p*10)) * 10
	if lo > 90 {
		lo = 90
	}
	return fmt.Sprintf("%d-%d%%", lo, lo+9)
}

// aggregate fills the summary's win rate, ROI, bucket breakdowns,
// calibration table and factor diagnostics.
func aggregate(sum *Summary, rows []Row) {
	if len(rows) == 0 {
		return
	}
	for _, row := range rows {
		switch row.Settlement {
		case "win":
			sum.Wins++
		case "loss":
			sum.Losses++
		case "push":
			sum.Pushes++
		}
		sum.TotalProfitUnits += row.ProfitUnits
	}
	if decisions := sum.Wins + sum.Losses; decisions > 0 {
		wr := float64(sum.Wins) / float64(decisions)
		sum.WinRate = &wr
	}
	roi := sum.TotalProfitUnits / float64(len(rows))
	sum.ROIUnits = &roi

	sum.ScoreBuckets = scoreBucketStats(rows)
	sum.Calibration = calibrationStats(rows)
	sum.Factors = factorStats(rows)
}

func scoreBucketStats(rows []Row) map[string]BucketStats {
	grouped := make(map[string][]Row)
	for _, row := range rows {
		grouped[row.ScoreBucket] = append(grouped[row.ScoreBucket], row)
	}
	out := make(map[string]BucketStats, len(grouped))
	for bucket, members := range grouped {
		stats := BucketStats{Count: len(members)}
		wins, losses := 0, 0
		var profit float64
		var edges, clvs []float64
		for _, row := range members {
			profit += row.ProfitUnits
			switch row.Settlement {
			case "win":
				wins++
			case "loss":
				losses++
			}
			if row.Edge != nil {
				edges = append(edges, *row.Edge)
			}
			if row.CLV != nil {
				clvs = append(clvs, *row.CLV)
			}
		}
		if wins+losses > 0 {
			wr := float64(wins) / float64(wins+losses)
			stats.WinRate = &wr
		}
		stats.ROI = profit / float64(len(members))
		if len(edges) > 0 {
			m := mean(edges)
			stats.AvgEdge = &m
		}
		if len(clvs) > 0 {
			m := mean(clvs)
			stats.AvgCLV = &m
		}
		out[bucket] = stats
	}
	return out
}

func calibrationStats(rows []Row) map[string]CalibrationStats {
	type acc struct {
		probs    []float64
		realized []float64
	}
	grouped := make(map[string]*acc)
	for _, row := range rows {
		if row.ProbBucket == "unknown" || row.ModelProb == nil {
			continue
		}
		if row.Settlement != "win" && row.Settlement != "loss" {
			continue
		}
		a := grouped[row.ProbBucket]
		if a == nil {
			a = &acc{}
			grouped[row.ProbBucket] = a
		}
		a.probs = append(a.probs, *row.ModelProb)
		if row.Settlement == "win" {
			a.realized = append(a.realized, 1)
		} else {
			a.realized = append(a.realized, 0)
		}
	}
	out := make(map[string]CalibrationStats, len(grouped))
	for bucket, a := range grouped {
		avgProb := mean(a.probs)
		realized := mean(a.realized)
		out[bucket] = CalibrationStats{
			Count:            len(a.probs),
			AvgModelProb:     avgProb,
			RealizedWinRate:  realized,
			CalibrationError: avgProb - realized,
		}
	}
	return out
}

// factorStats correlates each stored factor subscore with realized
// profit. Factors with under three observations are dropped.
func factorStats(rows []Row) map[string]FactorStats {
	values := make(map[string][]float64)
	profits := make(map[string][]float64)
	for _, row := range rows {
		for key, v := range parseFactors(row.factorsJSON) {
			values[key] = append(values[key], v)
			profits[key] = append(profits[key], row.ProfitUnits)
		}
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]FactorStats)
	for _, key := range keys {
		if corr, ok := correlation(values[key], profits[key]); ok {
			out[key] = FactorStats{N: len(values[key]), CorrWithProfit: corr}
		}
	}
	return out
}

func mean(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

// correlation is the Pearson coefficient; false for degenerate input.
func correlation(xs, ys []float64) (float64, bool) {
	if len(xs) < 3 || len(xs) != len(ys) {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var num, dx, dy float64
	for i := range xs {
		num += (xs[i] - mx) * (ys[i] - my)
		dx += (xs[i] - mx) * (xs[i] - mx)
		dy += (ys[i] - my) * (ys[i] - my)
	}
	if dx == 0 || dy == 0 {
		return 0, false
	}
	return num / (math.Sqrt(dx) * math.Sqrt(dy)), true
}
