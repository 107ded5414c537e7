package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tensorplex-labs/novelty/internal/pipeline"
)

var (
	fromYear int
	toYear   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score every configured indicator for a range of focal years",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), func(ctx context.Context, r *pipeline.Runner) error {
			return r.Run(ctx, fromYear, toYear)
		})
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate null-model samples and their statistics without scoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), func(ctx context.Context, r *pipeline.Runner) error {
			return r.Sample(ctx, fromYear, toYear)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, sampleCmd} {
		c.Flags().IntVar(&fromYear, "from", 0, "first focal year")
		c.Flags().IntVar(&toYear, "to", 0, "last focal year")
		_ = c.MarkFlagRequired("from")
		_ = c.MarkFlagRequired("to")
	}
}

func withRunner(parent context.Context, fn func(context.Context, *pipeline.Runner) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, indicators, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.runner(indicators)
	if err != nil {
		return err
	}

	start := time.Now()
	log.Info().Int("from", fromYear).Int("to", toYear).Str("store", a.cfg.StoreBackend).Msg("starting")
	if err := fn(ctx, r); err != nil {
		return err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("done")
	return nil
}
