package main

import (
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "mlbedge"
	version = "v1.4.0"
)

// errPartial marks a run that finished with degraded coverage. The job
// runner treats exit 2 as "ran, check the warnings".
var errPartial = errors.New("partial success")

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "MLB betting market scoring pipeline",
		Version: version,
		Long: `mlbedge ingests MLB schedules, pitch events, lineups, weather and
sportsbook odds, builds a date-keyed feature store, scores eleven
betting markets and grades realized outcomes with closing line value.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema and seed stadium reference data",
		RunE:  runInit,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE:  runMigrate,
	}

	dailyCmd := &cobra.Command{
		Use:   "daily",
		Short: "Run the full daily pipeline for one date",
		Long:  "Ingest schedule, events, lineups, weather and odds, build features, score the daily markets and grade finished games.",
		RunE:  runDaily,
	}
	dailyCmd.Flags().String("date", today(), "Game date (YYYY-MM-DD)")
	dailyCmd.Flags().Bool("send-alerts", false, "Post webhook alerts after scoring")

	refreshOddsCmd := &cobra.Command{
		Use:   "refresh-odds",
		Short: "Refresh sportsbook odds snapshots for one date",
		RunE:  runRefreshOdds,
	}
	refreshOddsCmd.Flags().String("date", today(), "Game date (YYYY-MM-DD)")

	fetchLineupsCmd := &cobra.Command{
		Use:   "fetch-lineups",
		Short: "Fetch lineups and snapshot changes for one date",
		RunE:  runFetchLineups,
	}
	fetchLineupsCmd.Flags().String("date", today(), "Game date (YYYY-MM-DD)")

	buildFeaturesCmd := &cobra.Command{
		Use:   "build-features",
		Short: "Build the feature store for one date",
		RunE:  runBuildFeatures,
	}
	buildFeaturesCmd.Flags().String("date", today(), "Game date (YYYY-MM-DD)")

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score one market or all markets for a date",
		RunE:  runScore,
	}
	scoreCmd.Flags().String("date", today(), "Game date (YYYY-MM-DD)")
	scoreCmd.Flags().String("market", "", "Market code (HR, K, ML, TOTAL, ...)")
	scoreCmd.Flags().Bool("all-markets", false, "Score every registered market")
	scoreCmd.Flags().Bool("send-alerts", false, "Post webhook alerts after scoring")

	rescoreCmd := &cobra.Command{
		Use:   "rescore-on-lineup",
		Short: "Re-score lineup-sensitive markets for games with lineup changes",
		RunE:  runRescoreOnLineup,
	}
	rescoreCmd.Flags().String("date", today(), "Game date (YYYY-MM-DD)")
	rescoreCmd.Flags().Bool("send-alerts", false, "Post webhook alerts after rescoring")

	gradeCmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade outcomes, settle bets and capture CLV for one date",
		RunE:  runGrade,
	}
	gradeCmd.Flags().String("date", today(), "Game date (YYYY-MM-DD)")

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Backfill a historical date range",
		Long:  "Phase 1 ingests schedules and bulk pitch events sequentially; phase 2 builds features, scores and grades per date on a worker pool.",
		RunE:  runBackfill,
	}
	backfillCmd.Flags().String("start-date", "", "Range start (YYYY-MM-DD)")
	backfillCmd.Flags().String("end-date", "", "Range end (YYYY-MM-DD)")
	backfillCmd.Flags().Bool("build-features", false, "Build features per date")
	backfillCmd.Flags().Bool("score", false, "Score per date")
	backfillCmd.Flags().Bool("all-markets", false, "Score every registered market")
	backfillCmd.Flags().String("market", "", "Restrict scoring to one market")
	backfillCmd.Flags().Bool("grade", false, "Grade per date")
	backfillCmd.Flags().Bool("no-bulk", false, "Fetch events per date instead of range chunks")
	backfillCmd.Flags().Int("workers", 0, "Worker pool size (default from config)")
	_ = backfillCmd.MarkFlagRequired("start-date")
	_ = backfillCmd.MarkFlagRequired("end-date")

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay stored scores against outcomes with no lookahead",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().String("market", "", "Market code")
	backtestCmd.Flags().String("start-date", "", "Range start (YYYY-MM-DD)")
	backtestCmd.Flags().String("end-date", "", "Range end (YYYY-MM-DD)")
	backtestCmd.Flags().String("signals", "BET", "Comma-separated signals to include")
	_ = backtestCmd.MarkFlagRequired("market")
	_ = backtestCmd.MarkFlagRequired("start-date")
	_ = backtestCmd.MarkFlagRequired("end-date")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print last runs, table counts and freshness",
		RunE:  runStatus,
	}
	statusCmd.Flags().Bool("serve", false, "Serve /healthz, /status and /metrics instead of printing")

	rootCmd.AddCommand(
		initCmd, migrateCmd, dailyCmd, refreshOddsCmd, fetchLineupsCmd,
		buildFeaturesCmd, scoreCmd, rescoreCmd, gradeCmd,
		backfillCmd, backtestCmd, statusCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errPartial) {
			log.Warn().Err(err).Msg("completed with warnings")
			os.Exit(2)
		}
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
