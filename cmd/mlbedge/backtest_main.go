package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ballparklabs/mlbedge/internal/backtest"
)

func runBacktest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	market, _ := cmd.Flags().GetString("market")
	startDate, _ := cmd.Flags().GetString("start-date")
	endDate, _ := cmd.Flags().GetString("end-date")
	signalsFlag, _ := cmd.Flags().GetString("signals")

	var signals []string
	for _, s := range strings.Split(signalsFlag, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			signals = append(signals, s)
		}
	}

	runner := backtest.NewRunner(a.s, log.Logger, a.cfg.DataDir)
	sum, err := runner.Run(cmd.Context(), backtest.Options{
		Market:    strings.ToUpper(market),
		StartDate: startDate,
		EndDate:   endDate,
		Signals:   signals,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
