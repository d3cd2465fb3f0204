// Package pipeline orchestrates the daily jobs: data ingest, feature
// builds, scoring, lineup-triggered rescoring, grading, alerting,
// historical backfill and the status report. Every job records a
// score_runs row so the job runner and the status command can see what
// ran, what it wrote and what failed.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ballparklabs/mlbedge/internal/config"
	"github.com/ballparklabs/mlbedge/internal/features"
	"github.com/ballparklabs/mlbedge/internal/fetch"
	"github.com/ballparklabs/mlbedge/internal/grading"
	"github.com/ballparklabs/mlbedge/internal/metrics"
	"github.com/ballparklabs/mlbedge/internal/scoring"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// Pipeline wires the fetch clients, builders, engine and grader over
// one store handle.
type Pipeline struct {
	cfg     config.Config
	s       *store.Store
	log     zerolog.Logger
	mlb     *fetch.MLBStatsClient
	savant  *fetch.SavantClient
	weather *fetch.WeatherClient
	oddsAPI *fetch.OddsAPIClient
	builder *features.Builder
	engine  *scoring.Engine
	grader  *grading.Grader
	alerter *Alerter
}

func New(cfg config.Config, s *store.Store, logger zerolog.Logger) *Pipeline {
	mlb := fetch.NewMLBStats(cfg.Fetch, logger)
	return &Pipeline{
		cfg:     cfg,
		s:       s,
		log:     logger.With().Str("component", "pipeline").Logger(),
		mlb:     mlb,
		savant:  fetch.NewSavant(cfg.Fetch, logger),
		weather: fetch.NewWeather(cfg.Fetch, logger),
		oddsAPI: fetch.NewOddsAPI(cfg.Fetch, logger),
		builder: features.NewBuilder(s),
		engine:  scoring.NewEngine(s, logger),
		grader:  grading.New(s, logger, mlb, cfg.Grading.ClosingLinePolicy),
		alerter: NewAlerter(cfg.Alerts, s, logger),
	}
}

// runStage records one score_runs row around fn. The stage outcome also
// feeds the Prometheus collectors.
func (p *Pipeline) runStage(ctx context.Context, runType, gameDate, market, triggeredBy string, fn func(ctx context.Context, runID int64) (int64, error)) (int64, error) {
	runID, err := p.s.Runs.Create(ctx, runType, gameDate, market, triggeredBy, nil)
	if err != nil {
		return 0, fmt.Errorf("create run %s: %w", runType, err)
	}
	timer := metrics.StageTimer(runType)
	rows, err := fn(ctx, runID)
	timer.ObserveDuration()
	if err != nil {
		metrics.StageFailures.WithLabelValues(runType).Inc()
		if failErr := p.s.Runs.Fail(ctx, runID, err.Error(), nil); failErr != nil {
			p.log.Error().Err(failErr).Int64("run_id", runID).Msg("mark run failed")
		}
		return rows, fmt.Errorf("%s %s: %w", runType, gameDate, err)
	}
	metrics.StageRows.WithLabelValues(runType).Add(float64(rows))
	if err := p.s.Runs.Complete(ctx, runID, rows, nil); err != nil {
		p.log.Error().Err(err).Int64("run_id", runID).Msg("mark run complete")
	}
	return rows, nil
}

// DailyResult summarizes one full daily pass.
type DailyResult struct {
	GameDate    string
	Games       int64
	Events      int64
	LineupRows  int64
	WeatherRows int64
	OddsRows    int64
	FeatureRows int64
	ScoreRows   int64
	Graded      grading.Summary
	Warnings    []string
}

// RunDaily runs ingest, features, scoring and grading for one date.
// Ingest failures downgrade to warnings so a dead upstream costs
// coverage, not the run; scoring and grading errors are fatal.
func (p *Pipeline) RunDaily(ctx context.Context, gameDate string, markets []string, sendAlerts bool) (*DailyResult, error) {
	res := &DailyResult{GameDate: gameDate}
	warn := func(stage string, err error) {
		p.log.Warn().Err(err).Str("stage", stage).Str("date", gameDate).Msg("daily stage degraded")
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", stage, err))
	}

	n, err := p.runStage(ctx, "schedule_sync", gameDate, "", "daily", func(ctx context.Context, _ int64) (int64, error) {
		return p.SyncSchedule(ctx, gameDate)
	})
	if err != nil {
		return res, err
	}
	res.Games = n
	if n == 0 {
		p.log.Info().Str("date", gameDate).Msg("no games scheduled")
		return res, nil
	}

	if n, err = p.runStage(ctx, "event_sync", gameDate, "", "daily", func(ctx context.Context, _ int64) (int64, error) {
		return p.SyncEvents(ctx, gameDate)
	}); err != nil {
		warn("event_sync", err)
	}
	res.Events = n

	if n, err = p.runStage(ctx, "lineup_fetch", gameDate, "", "daily", func(ctx context.Context, _ int64) (int64, error) {
		sync, err := p.SyncLineups(ctx, gameDate)
		if err != nil {
			return 0, err
		}
		return sync.RowsInserted, nil
	}); err != nil {
		warn("lineup_fetch", err)
	}
	res.LineupRows = n

	if n, err = p.runStage(ctx, "weather_sync", gameDate, "", "daily", func(ctx context.Context, _ int64) (int64, error) {
		return p.SyncWeather(ctx, gameDate)
	}); err != nil {
		warn("weather_sync", err)
	}
	res.WeatherRows = n

	if n, err = p.runStage(ctx, "odds_refresh", gameDate, "", "daily", func(ctx context.Context, _ int64) (int64, error) {
		return p.RefreshOdds(ctx, gameDate)
	}); err != nil {
		warn("odds_refresh", err)
	}
	res.OddsRows = n

	if n, err = p.runStage(ctx, "feature_build", gameDate, "", "daily", func(ctx context.Context, _ int64) (int64, error) {
		result, err := p.builder.BuildAll(ctx, gameDate)
		if err != nil {
			return 0, err
		}
		res.Warnings = append(res.Warnings, result.Warnings...)
		return result.WindowRows + result.BatterRows + result.PitcherRows + result.TeamRows + result.ContextRows, nil
	}); err != nil {
		return res, err
	}
	res.FeatureRows = n

	if len(markets) == 0 {
		markets = scoring.DefaultDailyMarkets
	}
	scored, err := p.ScoreMarkets(ctx, gameDate, markets, sendAlerts)
	if err != nil {
		return res, err
	}
	res.ScoreRows = scored

	if _, err = p.runStage(ctx, "grading", gameDate, "", "daily", func(ctx context.Context, _ int64) (int64, error) {
		sum, err := p.grader.GradeDate(ctx, gameDate)
		if err != nil {
			return 0, err
		}
		res.Graded = sum
		return sum.Outcomes, nil
	}); err != nil {
		return res, err
	}

	p.log.Info().
		Str("date", gameDate).
		Int64("games", res.Games).
		Int64("odds_rows", res.OddsRows).
		Int64("feature_rows", res.FeatureRows).
		Int64("score_rows", res.ScoreRows).
		Int("warnings", len(res.Warnings)).
		Msg("daily run complete")
	return res, nil
}

// ScoreMarkets scores each market under its own score run.
func (p *Pipeline) ScoreMarkets(ctx context.Context, gameDate string, markets []string, sendAlerts bool) (int64, error) {
	var total int64
	for _, market := range markets {
		n, err := p.runStage(ctx, "score", gameDate, market, "score", func(ctx context.Context, runID int64) (int64, error) {
			return p.engine.ScoreMarket(ctx, gameDate, market, runID, nil)
		})
		if err != nil {
			return total, err
		}
		total += n

		if sendAlerts {
			if err := p.alerter.SendMarketAlerts(ctx, gameDate, market); err != nil {
				p.log.Warn().Err(err).Str("market", market).Msg("alert send failed")
			}
		}
	}
	return total, nil
}

// Grade runs settlement for one date under a score run.
func (p *Pipeline) Grade(ctx context.Context, gameDate string) (grading.Summary, error) {
	var sum grading.Summary
	_, err := p.runStage(ctx, "grading", gameDate, "", "grade", func(ctx context.Context, _ int64) (int64, error) {
		var err error
		sum, err = p.grader.GradeDate(ctx, gameDate)
		return sum.Outcomes, err
	})
	return sum, err
}

// BuildFeatures runs the four builders under a score run.
func (p *Pipeline) BuildFeatures(ctx context.Context, gameDate string) (*features.Result, error) {
	var result *features.Result
	_, err := p.runStage(ctx, "feature_build", gameDate, "", "build-features", func(ctx context.Context, _ int64) (int64, error) {
		var err error
		result, err = p.builder.BuildAll(ctx, gameDate)
		if err != nil {
			return 0, err
		}
		return result.WindowRows + result.BatterRows + result.PitcherRows + result.TeamRows + result.ContextRows, nil
	})
	return result, err
}
