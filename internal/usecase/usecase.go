package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/scenegif/internal/domain/scene"
	"github.com/forPelevin/scenegif/internal/metrics"
	"github.com/forPelevin/scenegif/internal/ports"
	"github.com/forPelevin/scenegif/internal/types"
	"github.com/rs/zerolog"
)

// ErrNoVideos is returned when the library has nothing to pick from.
var ErrNoVideos = errors.New("no videos found")

// Randomizer is the subset of *rand.Rand the search needs.
type Randomizer interface {
	IntN(n int) int
}

type Deps struct {
	Library ports.VideoLibrary
	Opener  ports.FrameSourceOpener
	Encoder ports.AnimationEncoder
	Rand    Randomizer
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	Limits         scene.Limits
	MinDynamicness float64
	Resolution     types.Resolution
	OutDir         string
	TempName       string
}

type Result struct {
	Path     string
	Scene    types.Scene
	Attempts int
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	sc, attempts, err := u.Search(ctx, in)
	if err != nil {
		return Result{}, err
	}
	path, err := u.Render(ctx, sc, in.OutDir, in.TempName)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: path, Scene: sc, Attempts: attempts}, nil
}

// Search keeps trying random sources until one yields a scene at least as
// dynamic as in.MinDynamicness. There is no attempt limit; only ctx stops it.
func (u Usecase) Search(ctx context.Context, in Input) (types.Scene, int, error) {
	if err := in.Limits.Validate(); err != nil {
		return types.Scene{}, 0, err
	}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return types.Scene{}, attempt - 1, err
		}
		u.d.Metrics.Attempt()
		log := u.d.Logger.With().Int("attempt", attempt).Logger()

		sc, ok, err := u.attempt(ctx, in, log)
		if err != nil {
			return types.Scene{}, attempt, err
		}
		if !ok {
			continue
		}
		if sc.Dynamicness < in.MinDynamicness {
			u.d.Metrics.Rejected(metrics.ReasonDynamicness)
			log.Info().
				Str("source", sc.Source).
				Float64("dynamicness", sc.Dynamicness).
				Float64("min", in.MinDynamicness).
				Int("frames", len(sc.Frames)).
				Msg("scene not dynamic enough")
			continue
		}

		u.d.Metrics.Accepted(len(sc.Frames), sc.Dynamicness)
		log.Info().
			Str("scene", sc.Label).
			Float64("dynamicness", sc.Dynamicness).
			Int("frames", len(sc.Frames)).
			Msg("scene accepted")
		return sc, attempt, nil
	}
}

// attempt runs one recorder over one randomly picked source. ok is false
// when the source had nothing to offer.
func (u Usecase) attempt(ctx context.Context, in Input, log zerolog.Logger) (types.Scene, bool, error) {
	paths, err := u.d.Library.List(ctx)
	if err != nil {
		return types.Scene{}, false, fmt.Errorf("list videos: %w", err)
	}
	if len(paths) == 0 {
		return types.Scene{}, false, ErrNoVideos
	}
	path := paths[u.d.Rand.IntN(len(paths))]

	src, err := u.d.Opener.Open(ctx, path)
	if err != nil {
		return types.Scene{}, false, fmt.Errorf("open video: %w", err)
	}
	defer src.Close()

	log = log.With().Str("source", src.Name()).Logger()
	total := src.TotalFrames()
	if total <= 0 {
		u.d.Metrics.Rejected(metrics.ReasonEmptySource)
		log.Info().Msg("source has no frames, skipping")
		return types.Scene{}, false, nil
	}

	rec := scene.NewRecorder(in.Limits)
	if err := u.seekRandom(ctx, src, total, log); err != nil {
		return types.Scene{}, false, err
	}

	for !rec.Done() {
		if err := ctx.Err(); err != nil {
			return types.Scene{}, false, err
		}
		frame, ok, err := src.NextFrame(ctx, in.Resolution)
		if err != nil {
			return types.Scene{}, false, fmt.Errorf("read frame: %w", err)
		}
		if !ok {
			u.d.Metrics.StreamReset()
			log.Info().Int("recorded", rec.Len()).Msg("end of stream, reseeking")
			rec.Reset()
			if err := u.seekRandom(ctx, src, total, log); err != nil {
				return types.Scene{}, false, err
			}
			continue
		}
		u.d.Metrics.FrameDecoded()

		ts := src.Timestamp()
		st := rec.Step(frame, ts)
		if st.Transition {
			u.d.Metrics.Transition()
			log.Debug().Str("at", ts.String()).Msg("transition")
		}
		if st.Discarded {
			u.d.Metrics.CandidateDiscarded()
		}
		if st.Appended {
			log.Debug().
				Int("frames", rec.Len()).
				Float64("difference", st.Difference).
				Msg("frame recorded")
		}
		if st.Forced {
			log.Debug().Msg("max frames reached")
		}
	}

	sc, err := rec.Scene(src.Name())
	if err != nil {
		return types.Scene{}, false, err
	}
	return sc, true, nil
}

// seekRandom picks an offset in [0, total]. total itself is a valid pick and
// simply reads as end of stream.
func (u Usecase) seekRandom(ctx context.Context, src ports.FrameSource, total int, log zerolog.Logger) error {
	at := u.d.Rand.IntN(total + 1)
	if err := src.Seek(ctx, at); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	log.Debug().Int("frame", at).Int("total", total).Msg("seek")
	return nil
}

// Render encodes the scene to a temporary file in outDir and renames it
// after the scene label. A missing outDir is created once.
func (u Usecase) Render(ctx context.Context, sc types.Scene, outDir, tempName string) (string, error) {
	tmp := filepath.Join(outDir, tempName)

	err := u.d.Encoder.Encode(ctx, sc.Frames, tmp)
	if errors.Is(err, fs.ErrNotExist) {
		u.d.Logger.Info().Str("dir", outDir).Msg("creating output directory")
		if mkErr := os.MkdirAll(outDir, 0o755); mkErr != nil {
			return "", fmt.Errorf("create output dir: %w", mkErr)
		}
		err = u.d.Encoder.Encode(ctx, sc.Frames, tmp)
	}
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	final := filepath.Join(outDir, FileName(sc.Label)+".gif")
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("rename output: %w", err)
	}
	return final, nil
}

// FileName makes a label safe to use as a single path segment.
func FileName(label string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(label) {
		switch r {
		case '/', '\\', ':', 0:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), ". ")
	if name == "" {
		return "scene"
	}
	return name
}
