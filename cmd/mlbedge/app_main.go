package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ballparklabs/mlbedge/internal/config"
	"github.com/ballparklabs/mlbedge/internal/pipeline"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// app bundles the wiring every subcommand needs.
type app struct {
	cfg  config.Config
	s    *store.Store
	pipe *pipeline.Pipeline
}

func newApp(cmd *cobra.Command) (*app, error) {
	levelStr, _ := cmd.Flags().GetString("log-level")
	if level, err := zerolog.ParseLevel(levelStr); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	s, err := store.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Debug().Str("driver", s.Driver()).Msg("store opened")

	return &app{
		cfg:  cfg,
		s:    s,
		pipe: pipeline.New(cfg, s, log.Logger),
	}, nil
}

func (a *app) close() {
	if err := a.s.Close(); err != nil {
		log.Warn().Err(err).Msg("store close")
	}
}

func dateFlag(cmd *cobra.Command) string {
	d, _ := cmd.Flags().GetString("date")
	return d
}
