package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runInit(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	if err := a.s.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	n, err := a.s.Ref.SeedStadiums(ctx)
	if err != nil {
		return fmt.Errorf("seed stadiums: %w", err)
	}
	log.Info().Int64("stadiums", n).Str("driver", a.s.Driver()).Msg("store initialized")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.s.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", a.s.Driver()).Msg("migrations applied")
	return nil
}
