package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// RunStatus is one run type's most recent run, with staleness.
type RunStatus struct {
	RunType    string  `json:"run_type"`
	Status     string  `json:"status"`
	GameDate   *string `json:"game_date,omitempty"`
	Market     *string `json:"market,omitempty"`
	RowsScored int64   `json:"rows_scored"`
	StartedAt  string  `json:"started_at"`
	AgeHours   float64 `json:"age_hours"`
	Error      *string `json:"error,omitempty"`
}

// StatusReport is the status command and /status endpoint payload.
type StatusReport struct {
	GeneratedAt string           `json:"generated_at"`
	Driver      string           `json:"driver"`
	TableCounts map[string]int64 `json:"table_counts"`
	LastRuns    []RunStatus      `json:"last_runs"`
}

// Status reports table counts and the freshness of each run type.
func (p *Pipeline) Status(ctx context.Context) (*StatusReport, error) {
	counts, err := p.s.Runs.TableCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("table counts: %w", err)
	}
	runs, err := p.s.Runs.LastByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("last runs: %w", err)
	}

	now := time.Now().UTC()
	report := &StatusReport{
		GeneratedAt: store.UTCNow(),
		Driver:      p.s.Driver(),
		TableCounts: counts,
		LastRuns:    make([]RunStatus, 0, len(runs)),
	}
	for _, run := range runs {
		rs := RunStatus{
			RunType:    run.RunType,
			Status:     run.Status,
			GameDate:   run.GameDate,
			Market:     run.Market,
			RowsScored: run.RowsScored,
			StartedAt:  run.StartedAt,
			Error:      run.ErrorMessage,
		}
		if started, err := time.Parse(time.RFC3339, run.StartedAt); err == nil {
			rs.AgeHours = now.Sub(started).Hours()
		}
		report.LastRuns = append(report.LastRuns, rs)
	}
	return report, nil
}
