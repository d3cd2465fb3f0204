package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runRefreshOdds(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	gameDate := dateFlag(cmd)
	n, err := a.pipe.RefreshOdds(cmd.Context(), gameDate)
	if err != nil {
		return err
	}
	log.Info().Str("date", gameDate).Int64("rows", n).Msg("odds refreshed")
	return nil
}

func runFetchLineups(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	gameDate := dateFlag(cmd)
	sync, err := a.pipe.SyncLineups(cmd.Context(), gameDate)
	if err != nil {
		return err
	}
	log.Info().
		Str("date", gameDate).
		Int("games", sync.GamesSeen).
		Int("changed", len(sync.Changed)).
		Int64("rows", sync.RowsInserted).
		Msg("lineups fetched")
	return nil
}

func runBuildFeatures(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	gameDate := dateFlag(cmd)
	res, err := a.pipe.BuildFeatures(cmd.Context(), gameDate)
	if err != nil {
		return err
	}
	log.Info().
		Str("date", gameDate).
		Int64("window_rows", res.WindowRows).
		Int64("batter_rows", res.BatterRows).
		Int64("pitcher_rows", res.PitcherRows).
		Int64("team_rows", res.TeamRows).
		Int64("context_rows", res.ContextRows).
		Msg("features built")
	for _, w := range res.Warnings {
		log.Warn().Str("date", gameDate).Msg(w)
	}
	return nil
}
