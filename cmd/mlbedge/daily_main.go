package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runDaily(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	gameDate := dateFlag(cmd)
	sendAlerts, _ := cmd.Flags().GetBool("send-alerts")

	res, err := a.pipe.RunDaily(cmd.Context(), gameDate, nil, sendAlerts)
	if err != nil {
		return err
	}
	log.Info().
		Str("date", res.GameDate).
		Int64("games", res.Games).
		Int64("events", res.Events).
		Int64("lineup_rows", res.LineupRows).
		Int64("odds_rows", res.OddsRows).
		Int64("feature_rows", res.FeatureRows).
		Int64("score_rows", res.ScoreRows).
		Int64("outcomes", res.Graded.Outcomes).
		Msg("daily pipeline finished")

	if len(res.Warnings) > 0 {
		for _, w := range res.Warnings {
			log.Warn().Str("date", gameDate).Msg(w)
		}
		return fmt.Errorf("%d degraded stages: %w", len(res.Warnings), errPartial)
	}
	return nil
}
