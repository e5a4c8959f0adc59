package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/forPelevin/scenegif/internal/config"
	"github.com/forPelevin/scenegif/internal/logging"
	"github.com/forPelevin/scenegif/internal/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func run(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	seed, _ := cmd.Flags().GetUint64("seed")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logging.Init(cfg.LogLevel, verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, cfg, pipeline.Options{
		Seed:   seed,
		Logger: logging.NewLogger(),
	})
	if err != nil {
		return err
	}
	log.Debug().Str("scene", res.Scene.Label).Msg("done")
	fmt.Fprintln(cmd.OutOrStdout(), res.Path)
	return nil
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("videos") {
		cfg.VideosDir, _ = fl.GetString("videos")
	}
	if fl.Changed("out") {
		cfg.OutDir, _ = fl.GetString("out")
	}
	if fl.Changed("metrics-file") {
		cfg.MetricsFile, _ = fl.GetString("metrics-file")
	}
}
