package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/scenegif/internal/logging"
	"github.com/forPelevin/scenegif/internal/ports"
	"github.com/rs/zerolog"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	logger  zerolog.Logger
}

func New(ffmpegPath, ffprobePath string, logger zerolog.Logger) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
		logger:  logging.WithComponent(logger, "ffmpeg"),
	}
}

// Open probes the file and returns a source positioned at frame 0. No
// decoder runs until the first read.
func (a *Adapter) Open(ctx context.Context, path string) (ports.FrameSource, error) {
	info, err := a.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	a.logger.Debug().
		Str("input", path).
		Int("frames", info.Frames).
		Float64("fps", info.FPS).
		Msg("video probed")

	return newSource(a.ffmpeg, path, name, info, a.logger), nil
}

// VideoInfo is what the frame source needs to know about a stream.
type VideoInfo struct {
	FPS    float64
	Frames int
}

func (a *Adapter) Probe(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_frames,avg_frame_rate,r_frame_rate,duration:format=duration",
		"-of", "json",
		path,
	)
	b, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return VideoInfo{}, fmt.Errorf("ffprobe %s: %w\n%s", path, err, string(exitErr.Stderr))
		}
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	info, err := parseProbe(b)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return info, nil
}

type probeResult struct {
	Streams []struct {
		NbFrames     string `json:"nb_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// parseProbe prefers the container frame count and falls back to
// duration*fps, which is all Matroska usually offers.
func parseProbe(b []byte) (VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(b, &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("parse probe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return VideoInfo{}, errors.New("no video stream")
	}
	st := probe.Streams[0]

	fps := parseFrameRate(st.AvgFrameRate)
	if fps <= 0 {
		fps = parseFrameRate(st.RFrameRate)
	}
	if fps <= 0 {
		return VideoInfo{}, errors.New("unknown frame rate")
	}

	info := VideoInfo{FPS: fps}
	if n, err := strconv.Atoi(st.NbFrames); err == nil && n > 0 {
		info.Frames = n
		return info, nil
	}

	dur := parseSeconds(st.Duration)
	if dur <= 0 {
		dur = parseSeconds(probe.Format.Duration)
	}
	info.Frames = int(math.Round(dur * fps))
	return info, nil
}

// parseFrameRate parses ffprobe rationals like "30000/1001".
func parseFrameRate(s string) float64 {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
