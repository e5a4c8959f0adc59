package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/forPelevin/scenegif/internal/types"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
)

// Source streams raw RGB24 frames out of an ffmpeg child process. Seeking
// restarts the child at the new position; at most one child runs at a time.
type Source struct {
	ffmpeg string
	path   string
	name   string
	info   VideoInfo
	logger zerolog.Logger

	cursor    int // index of the next frame the decoder yields
	last      int // index of the last frame handed out, -1 if none since seek
	exhausted bool

	dec *decoder
}

type decoder struct {
	cmd    *exec.Cmd
	out    *bufio.Reader
	stderr *bytes.Buffer
	res    types.Resolution
	read   int
}

func newSource(ffmpegPath, path, name string, info VideoInfo, logger zerolog.Logger) *Source {
	return &Source{
		ffmpeg: ffmpegPath,
		path:   path,
		name:   name,
		info:   info,
		logger: logger.With().Str("source", name).Logger(),
		last:   -1,
	}
}

func (s *Source) Name() string     { return s.name }
func (s *Source) TotalFrames() int { return s.info.Frames }

func (s *Source) Seek(_ context.Context, frame int) error {
	s.stop()
	if frame < 0 {
		frame = 0
	}
	s.cursor = frame
	s.last = -1
	s.exhausted = frame >= s.info.Frames
	s.logger.Debug().Int("frame", frame).Bool("past_end", s.exhausted).Msg("seek")
	return nil
}

func (s *Source) NextFrame(ctx context.Context, res types.Resolution) (types.Frame, bool, error) {
	if res.Width <= 0 || res.Height <= 0 {
		return types.Frame{}, false, fmt.Errorf("invalid resolution %s", res)
	}
	if s.exhausted {
		return types.Frame{}, false, nil
	}
	if s.dec == nil {
		dec, err := s.start(ctx, res)
		if err != nil {
			return types.Frame{}, false, err
		}
		s.dec = dec
	}

	buf := make([]byte, s.dec.res.FrameSize())
	if _, err := io.ReadFull(s.dec.out, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return types.Frame{}, false, s.endOfStream()
		}
		s.stop()
		return types.Frame{}, false, fmt.Errorf("ffmpeg read %s: %w", s.path, err)
	}
	s.dec.read++

	frame := types.Frame{Width: s.dec.res.Width, Height: s.dec.res.Height, Pix: buf}
	if s.dec.res != res {
		frame = rescale(frame, res)
	}
	s.last = s.cursor
	s.cursor++
	return frame, true, nil
}

// Timestamp is the presentation time of the last frame read, or of the seek
// target when nothing was read since.
func (s *Source) Timestamp() types.Timestamp {
	idx := s.last
	if idx < 0 {
		idx = s.cursor
	}
	sec := float64(idx) / s.info.FPS
	return types.TimestampAt(time.Duration(sec * float64(time.Second)))
}

func (s *Source) Close() error {
	s.stop()
	return nil
}

func (s *Source) start(ctx context.Context, res types.Resolution) (*decoder, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if s.cursor > 0 {
		args = append(args, "-ss", fmtSeconds(float64(s.cursor)/s.info.FPS))
	}
	args = append(args,
		"-i", s.path,
		"-map", "0:v:0",
		"-an", "-sn", "-dn",
		"-vf", fmt.Sprintf("scale=%d:%d:flags=area", res.Width, res.Height),
		"-vsync", "0",
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"pipe:1",
	)

	s.logger.Debug().Strs("args", args).Msg("starting decoder")

	cmd := exec.CommandContext(ctx, s.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return &decoder{
		cmd:    cmd,
		out:    bufio.NewReaderSize(stdout, res.FrameSize()),
		stderr: &stderr,
		res:    res,
	}, nil
}

// endOfStream reaps the decoder. A decoder that dies before its first frame
// means the input cannot be decoded at all, which is an error rather than
// the end of the video.
func (s *Source) endOfStream() error {
	dec := s.dec
	s.dec = nil
	s.exhausted = true

	err := dec.cmd.Wait()
	if err != nil && dec.read == 0 {
		return fmt.Errorf("ffmpeg decode %s: %w\n%s", s.path, err, strings.TrimSpace(dec.stderr.String()))
	}
	s.logger.Debug().Int("frames", dec.read).Int("cursor", s.cursor).Msg("end of stream")
	return nil
}

func (s *Source) stop() {
	if s.dec == nil {
		return
	}
	dec := s.dec
	s.dec = nil
	if dec.cmd.Process != nil {
		_ = dec.cmd.Process.Kill()
	}
	_ = dec.cmd.Wait()
}

func rescale(f types.Frame, res types.Resolution) types.Frame {
	img := resize.Resize(uint(res.Width), uint(res.Height), f.RGBA(), resize.Bilinear)
	return types.FrameFromImage(img)
}
