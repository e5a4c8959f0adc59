package gifenc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"time"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/forPelevin/scenegif/internal/logging"
	"github.com/forPelevin/scenegif/internal/metrics"
	"github.com/forPelevin/scenegif/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Encoder writes looping animated GIFs. Palette quantization is the slow
// part, so frames are converted by a fixed pool of workers; the output
// order always matches the input order.
type Encoder struct {
	workers int
	delay   time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func New(workers int, delay time.Duration, logger zerolog.Logger, m *metrics.Metrics) *Encoder {
	if workers < 1 {
		workers = 1
	}
	return &Encoder{
		workers: workers,
		delay:   delay,
		logger:  logging.WithComponent(logger, "gifenc"),
		metrics: m,
	}
}

func (e *Encoder) Encode(ctx context.Context, frames []types.Frame, path string) error {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}

	started := time.Now()
	images, err := e.convert(ctx, frames)
	if err != nil {
		return err
	}

	anim := &gif.GIF{
		Image:     images,
		Delay:     make([]int, len(images)),
		LoopCount: 0,
	}
	cs := centiseconds(e.delay)
	for i := range anim.Delay {
		anim.Delay[i] = cs
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create gif: %w", err)
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode gif: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close gif: %w", err)
	}

	e.logger.Debug().
		Str("path", path).
		Int("frames", len(images)).
		Int("workers", e.workers).
		Dur("took", time.Since(started)).
		Msg("gif written")
	return nil
}

func (e *Encoder) convert(ctx context.Context, frames []types.Frame) ([]*image.Paletted, error) {
	out := make([]*image.Paletted, len(frames))
	jobs := make(chan int)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range frames {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	workers := min(e.workers, len(frames))
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = Paletted(frames[i])
				e.metrics.FrameConverted()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("convert frames: %w", err)
	}
	return out, nil
}

// Paletted reduces a frame to at most 256 colors chosen by median cut and
// maps every pixel to its nearest palette entry without dithering.
func Paletted(f types.Frame) *image.Paletted {
	src := f.RGBA()
	q := quantize.MedianCutQuantizer{}
	pal := q.Quantize(make(color.Palette, 0, 256), src)
	if len(pal) == 0 {
		pal = color.Palette{color.Black}
	}
	dst := image.NewPaletted(src.Bounds(), pal)
	draw.Draw(dst, dst.Rect, src, src.Bounds().Min, draw.Src)
	return dst
}

// centiseconds converts the per-frame delay into GIF units, rounding to the
// nearest hundredth of a second.
func centiseconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + 5*time.Millisecond) / (10 * time.Millisecond))
}
