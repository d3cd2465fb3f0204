package main

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ballparklabs/mlbedge/internal/httpapi"
)

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	serve, _ := cmd.Flags().GetBool("serve")
	if serve {
		srv := httpapi.NewServer(a.cfg.HTTPAddr, a.pipe, log.Logger)
		return srv.Start()
	}

	report, err := a.pipe.Status(cmd.Context())
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
