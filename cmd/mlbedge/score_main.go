package main

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ballparklabs/mlbedge/internal/scoring"
)

func runScore(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	gameDate := dateFlag(cmd)
	market, _ := cmd.Flags().GetString("market")
	allMarkets, _ := cmd.Flags().GetBool("all-markets")
	sendAlerts, _ := cmd.Flags().GetBool("send-alerts")

	var markets []string
	switch {
	case allMarkets:
		markets = scoring.SupportedMarkets()
	case market != "":
		markets = []string{strings.ToUpper(market)}
	default:
		return errors.New("pass --market or --all-markets")
	}

	n, err := a.pipe.ScoreMarkets(cmd.Context(), gameDate, markets, sendAlerts)
	if err != nil {
		return err
	}
	log.Info().Str("date", gameDate).Strs("markets", markets).Int64("rows", n).Msg("scoring finished")
	return nil
}

func runRescoreOnLineup(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	gameDate := dateFlag(cmd)
	sendAlerts, _ := cmd.Flags().GetBool("send-alerts")

	res, err := a.pipe.RescoreOnLineup(cmd.Context(), gameDate, sendAlerts)
	if err != nil {
		return err
	}
	log.Info().
		Str("date", gameDate).
		Int("games_changed", len(res.GamesChanged)).
		Int64("rows", res.RowsScored).
		Msg("lineup rescore finished")
	return nil
}

func runGrade(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	gameDate := dateFlag(cmd)
	sum, err := a.pipe.Grade(cmd.Context(), gameDate)
	if err != nil {
		return err
	}
	log.Info().
		Str("date", gameDate).
		Int64("outcomes", sum.Outcomes).
		Int64("closing_lines", sum.ClosingLines).
		Int64("bets_settled", sum.BetsSettled).
		Msg("grading finished")
	return nil
}
