package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ballparklabs/mlbedge/internal/pipeline"
	"github.com/ballparklabs/mlbedge/internal/scoring"
)

func runBackfill(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	opts := pipeline.BackfillOptions{}
	opts.StartDate, _ = cmd.Flags().GetString("start-date")
	opts.EndDate, _ = cmd.Flags().GetString("end-date")
	opts.BuildFeatures, _ = cmd.Flags().GetBool("build-features")
	opts.Score, _ = cmd.Flags().GetBool("score")
	opts.Grade, _ = cmd.Flags().GetBool("grade")
	opts.NoBulk, _ = cmd.Flags().GetBool("no-bulk")
	opts.Workers, _ = cmd.Flags().GetInt("workers")

	allMarkets, _ := cmd.Flags().GetBool("all-markets")
	market, _ := cmd.Flags().GetString("market")
	switch {
	case allMarkets:
		opts.Markets = scoring.SupportedMarkets()
	case market != "":
		opts.Markets = []string{strings.ToUpper(market)}
	}

	res, err := a.pipe.Backfill(cmd.Context(), opts)
	if res != nil {
		log.Info().
			Int("days", len(res.Days)).
			Int("failed", res.Failed).
			Msg("backfill finished")
	}
	if err != nil {
		// Some dates landed, some failed: partial success.
		if res != nil && res.Failed > 0 && res.Failed < len(res.Days) {
			return fmt.Errorf("%v: %w", err, errPartial)
		}
		return err
	}
	return nil
}
