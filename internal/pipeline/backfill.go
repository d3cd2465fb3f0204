package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ballparklabs/mlbedge/internal/fetch"
)

// BackfillOptions selects which phases a historical backfill runs.
type BackfillOptions struct {
	StartDate     string
	EndDate       string
	BuildFeatures bool
	Score         bool
	Markets       []string
	Grade         bool
	// NoBulk fetches events one day at a time instead of in range
	// chunks. Slower, but easier on the upstream when resuming.
	NoBulk  bool
	Workers int
}

// DayStatus records one date's backfill outcome.
type DayStatus struct {
	GameDate    string
	Games       int64
	Events      int64
	FeatureRows int64
	ScoreRows   int64
	Err         error
}

// BackfillResult summarizes a full backfill.
type BackfillResult struct {
	Days   []DayStatus
	Failed int
}

// Backfill loads a historical date range. Ingest runs sequentially so
// range event pulls stay in order; feature builds, scoring and grading
// then fan out across a small worker pool per date. Any failed date is
// reported but does not stop the others.
func (p *Pipeline) Backfill(ctx context.Context, opts BackfillOptions) (*BackfillResult, error) {
	dates, err := dateRange(opts.StartDate, opts.EndDate)
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = p.cfg.Backfill.Workers
	}
	if workers <= 0 {
		workers = 1
	}

	res := &BackfillResult{Days: make([]DayStatus, len(dates))}
	for i, d := range dates {
		res.Days[i].GameDate = d
	}
	byDate := make(map[string]*DayStatus, len(dates))
	for i := range res.Days {
		byDate[res.Days[i].GameDate] = &res.Days[i]
	}

	if err := p.backfillIngest(ctx, dates, opts.NoBulk, byDate); err != nil {
		return res, err
	}

	if opts.BuildFeatures || opts.Score || opts.Grade {
		p.backfillProcess(ctx, dates, opts, byDate, workers)
	}

	for i := range res.Days {
		if res.Days[i].Err != nil {
			res.Failed++
		}
	}
	p.log.Info().
		Str("start", opts.StartDate).
		Str("end", opts.EndDate).
		Int("days", len(dates)).
		Int("failed", res.Failed).
		Msg("backfill complete")
	if res.Failed > 0 {
		return res, fmt.Errorf("backfill: %d of %d dates failed", res.Failed, len(dates))
	}
	return res, nil
}

// backfillIngest loads schedules per date and events either per date or
// in range chunks sized by config.
func (p *Pipeline) backfillIngest(ctx context.Context, dates []string, noBulk bool, byDate map[string]*DayStatus) error {
	for _, d := range dates {
		n, err := p.SyncSchedule(ctx, d)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", d, err)
		}
		byDate[d].Games = n
	}

	if noBulk {
		for _, d := range dates {
			n, err := p.SyncEvents(ctx, d)
			if err != nil {
				return fmt.Errorf("events %s: %w", d, err)
			}
			byDate[d].Events = n
		}
		return nil
	}

	chunkDays := p.cfg.Backfill.BulkChunkDays
	if chunkDays <= 0 {
		chunkDays = 60
	}
	for lo := 0; lo < len(dates); lo += chunkDays {
		hi := lo + chunkDays
		if hi > len(dates) {
			hi = len(dates)
		}
		chunk := dates[lo:hi]
		events, err := p.savant.Events(ctx, chunk[0], chunk[len(chunk)-1])
		if err != nil {
			return fmt.Errorf("events %s..%s: %w", chunk[0], chunk[len(chunk)-1], err)
		}
		if _, err := p.replaceEvents(ctx, chunk, events); err != nil {
			return fmt.Errorf("store events %s..%s: %w", chunk[0], chunk[len(chunk)-1], err)
		}
		for d, evs := range fetch.PartitionByDate(events) {
			if st, ok := byDate[d]; ok {
				st.Events = int64(len(evs))
			}
		}
	}
	return nil
}

// backfillProcess fans dates out to a worker pool for the compute
// phases. Each date is independent once its inputs are stored.
func (p *Pipeline) backfillProcess(ctx context.Context, dates []string, opts BackfillOptions, byDate map[string]*DayStatus, workers int) {
	jobs := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				st := byDate[d]
				st.Err = p.backfillDay(ctx, d, opts, st)
				if st.Err != nil {
					p.log.Error().Err(st.Err).Str("date", d).Msg("backfill date failed")
				}
			}
		}()
	}
	for _, d := range dates {
		jobs <- d
	}
	close(jobs)
	wg.Wait()
}

func (p *Pipeline) backfillDay(ctx context.Context, gameDate string, opts BackfillOptions, st *DayStatus) error {
	if opts.BuildFeatures {
		result, err := p.BuildFeatures(ctx, gameDate)
		if err != nil {
			return fmt.Errorf("features: %w", err)
		}
		st.FeatureRows = result.WindowRows + result.BatterRows + result.PitcherRows + result.TeamRows + result.ContextRows
	}
	if opts.Score {
		n, err := p.ScoreMarkets(ctx, gameDate, opts.Markets, false)
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		st.ScoreRows = n
	}
	if opts.Grade {
		if _, err := p.Grade(ctx, gameDate); err != nil {
			return fmt.Errorf("grade: %w", err)
		}
	}
	return nil
}

// dateRange expands an inclusive [start, end] into day strings.
func dateRange(start, end string) ([]string, error) {
	lo, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("bad start date %q: %w", start, err)
	}
	hi, err := time.Parse(dateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("bad end date %q: %w", end, err)
	}
	if hi.Before(lo) {
		return nil, fmt.Errorf("end date %s before start date %s", end, start)
	}
	var out []string
	for d := lo; !d.After(hi); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(dateLayout))
	}
	return out, nil
}
