package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/forPelevin/scenegif/internal/config"
	"github.com/forPelevin/scenegif/internal/domain/scene"
	"github.com/forPelevin/scenegif/internal/logging"
	"github.com/forPelevin/scenegif/internal/metrics"
	"github.com/forPelevin/scenegif/internal/ports"
	"github.com/forPelevin/scenegif/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/scenegif/internal/ports/adapters/gifenc"
	"github.com/forPelevin/scenegif/internal/ports/adapters/localdir"
	"github.com/forPelevin/scenegif/internal/types"
	"github.com/forPelevin/scenegif/internal/usecase"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options carries per-invocation knobs that are not part of the config file.
type Options struct {
	// Seed makes source and offset picks reproducible. 0 means time based.
	Seed   uint64
	Logger zerolog.Logger
}

// Run wires the adapters, finds one scene and writes it out. Metrics are
// flushed to cfg.MetricsFile even when the run fails.
func Run(ctx context.Context, cfg config.Config, opts Options) (res usecase.Result, err error) {
	runID := uuid.NewString()
	log := opts.Logger.With().Str("run_id", runID).Logger()
	m := metrics.New()

	defer func() {
		if werr := m.WriteTextfile(cfg.MetricsFile); werr != nil {
			log.Warn().Err(werr).Str("path", cfg.MetricsFile).Msg("write metrics")
		}
	}()

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	deps := usecase.Deps{
		Library: localdir.New(cfg.VideosDir, cfg.Extensions),
		Opener:  ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, log),
		Encoder: gifenc.New(cfg.Workers, cfg.FrameDelay, log, m),
		Rand:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Metrics: m,
		Logger:  logging.WithComponent(log, "search"),
	}

	log.Info().
		Str("videos", cfg.VideosDir).
		Strs("extensions", cfg.Extensions).
		Str("out", cfg.OutDir).
		Uint64("seed", seed).
		Msg("searching for a scene")

	started := time.Now()
	res, err = usecase.New(deps).Run(ctx, usecase.Input{
		Limits: scene.Limits{
			MinFrames: cfg.MinFrames,
			MaxFrames: cfg.MaxFrames,
			Threshold: cfg.TransitionThreshold,
		},
		MinDynamicness: cfg.MinDynamicness,
		Resolution:     types.Resolution{Width: cfg.Width, Height: cfg.Height},
		OutDir:         cfg.OutDir,
		TempName:       cfg.TempName,
	})
	if err != nil {
		return usecase.Result{}, err
	}

	log.Info().
		Str("path", res.Path).
		Int("attempts", res.Attempts).
		Int("frames", len(res.Scene.Frames)).
		Float64("dynamicness", res.Scene.Dynamicness).
		Dur("took", time.Since(started)).
		Msg("scene written")
	return res, nil
}

// ensure adapters implement ports
var _ ports.VideoLibrary = (*localdir.Library)(nil)
var _ ports.FrameSourceOpener = (*ffmpeg.Adapter)(nil)
var _ ports.FrameSource = (*ffmpeg.Source)(nil)
var _ ports.AnimationEncoder = (*gifenc.Encoder)(nil)
