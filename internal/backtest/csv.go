package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// csvHeader is the fixed export column order. Downstream notebooks key
// on these names; do not reorder.
var csvHeader = []string{
	"game_date",
	"market",
	"game_id",
	"selection_key",
	"signal",
	"model_score",
	"model_prob",
	"edge",
	"side",
	"line",
	"open_odds",
	"open_implied_prob",
	"close_implied_prob",
	"clv",
	"outcome_value",
	"settlement",
	"profit_units",
	"score_bucket",
	"prob_bucket",
}

// WriteCSV exports simulated rows, header included even when empty.
func WriteCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.GameDate,
			row.Market,
			strconv.FormatInt(row.GameID, 10),
			row.SelectionKey,
			row.Signal,
			formatFloat(row.ModelScore),
			formatFloatPtr(row.ModelProb),
			formatFloatPtr(row.Edge),
			row.Side,
			formatFloatPtr(row.Line),
			strconv.Itoa(row.OpenOdds),
			formatFloat(row.OpenImpliedProb),
			formatFloatPtr(row.CloseImplied),
			formatFloatPtr(row.CLV),
			formatFloat(row.OutcomeValue),
			row.Settlement,
			formatFloat(row.ProfitUnits),
			row.ScoreBucket,
			row.ProbBucket,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// parseFactors extracts numeric factor subscores from a stored factors
// JSON object. Anything unparseable contributes nothing.
func parseFactors(raw string) map[string]float64 {
	if raw == "" {
		return nil
	}
	var parsed map[string]json.Number
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}
	out := make(map[string]float64, len(parsed))
	for key, num := range parsed {
		if v, err := num.Float64(); err == nil {
			out[key] = v
		}
	}
	return out
}
