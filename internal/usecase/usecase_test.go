package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/forPelevin/scenegif/internal/domain/scene"
	"github.com/forPelevin/scenegif/internal/metrics"
	"github.com/forPelevin/scenegif/internal/ports"
	"github.com/forPelevin/scenegif/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRun_ResetsAtEndOfStreamAndDiscardsPartialRun(t *testing.T) {
	t.Parallel()

	// Seek 5 starts a run at the 200 cut that the stream ends before it is
	// long enough. The reseek to 0 yields the 100..130 run.
	src := newFakeSource("clip", 0, 100, 110, 120, 130, 0, 200, 200)
	rnd := &scriptedRand{t: t, picks: []int{0, 5, 0}}
	enc := &fakeEncoder{}
	m := metrics.New()

	uc := New(Deps{
		Library: fakeLibrary{"clip.mkv"},
		Opener:  fakeOpener{"clip.mkv": src},
		Encoder: enc,
		Rand:    rnd,
		Metrics: m,
		Logger:  zerolog.Nop(),
	})

	outDir := t.TempDir()
	res, err := uc.Run(context.Background(), testInput(outDir))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", res.Attempts)
	}
	if got := frameValues(res.Scene.Frames); fmt.Sprint(got) != fmt.Sprint([]byte{100, 110, 120, 130}) {
		t.Fatalf("unexpected scene frames: %v", got)
	}
	if res.Scene.Dynamicness != 10 {
		t.Fatalf("expected dynamicness 10, got %v", res.Scene.Dynamicness)
	}
	if res.Scene.Label != "clip from 00-01 to 00-05" {
		t.Fatalf("unexpected label: %q", res.Scene.Label)
	}
	if want := []int{5, 0}; fmt.Sprint(src.seeks) != fmt.Sprint(want) {
		t.Fatalf("seeks = %v, want %v", src.seeks, want)
	}
	if !src.closed {
		t.Fatalf("source not closed")
	}
	if got := testutil.ToFloat64(m.StreamResets); got != 1 {
		t.Fatalf("expected 1 stream reset, got %v", got)
	}
	if !rnd.drained() {
		t.Fatalf("unused random picks: %v", rnd.picks)
	}

	wantPath := filepath.Join(outDir, "clip from 00-01 to 00-05.gif")
	if res.Path != wantPath {
		t.Fatalf("path = %q, want %q", res.Path, wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "random.gif")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestRun_RejectsStaticSceneAndTriesAnotherSource(t *testing.T) {
	t.Parallel()

	static := newFakeSource("static", 0, 100, 100, 100, 100, 0)
	lively := newFakeSource("lively", 0, 100, 110, 120, 130, 0)
	m := metrics.New()

	uc := New(Deps{
		Library: fakeLibrary{"static.mp4", "lively.mp4"},
		Opener:  fakeOpener{"static.mp4": static, "lively.mp4": lively},
		Encoder: &fakeEncoder{},
		Rand:    &scriptedRand{t: t, picks: []int{0, 0, 1, 0}},
		Metrics: m,
		Logger:  zerolog.Nop(),
	})

	res, err := uc.Run(context.Background(), testInput(t.TempDir()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", res.Attempts)
	}
	if res.Scene.Source != "lively" {
		t.Fatalf("expected lively scene, got %q", res.Scene.Source)
	}
	if res.Scene.Dynamicness < 5 {
		t.Fatalf("accepted scene below minimum: %v", res.Scene.Dynamicness)
	}
	if got := testutil.ToFloat64(m.ScenesRejected.WithLabelValues(metrics.ReasonDynamicness)); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
	if got := testutil.ToFloat64(m.SearchAttempts); got != 2 {
		t.Fatalf("expected 2 attempts counted, got %v", got)
	}
	if !static.closed || !lively.closed {
		t.Fatalf("sources not closed")
	}
}

func TestSearch_SkipsEmptySource(t *testing.T) {
	t.Parallel()

	empty := newFakeSource("empty")
	good := newFakeSource("good", 0, 100, 110, 120, 130, 0)
	m := metrics.New()

	uc := New(Deps{
		Library: fakeLibrary{"empty.mkv", "good.mkv"},
		Opener:  fakeOpener{"empty.mkv": empty, "good.mkv": good},
		Rand:    &scriptedRand{t: t, picks: []int{0, 1, 0}},
		Metrics: m,
		Logger:  zerolog.Nop(),
	})

	sc, attempts, err := uc.Search(context.Background(), testInput(t.TempDir()))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if attempts != 2 || sc.Source != "good" {
		t.Fatalf("unexpected result: attempts=%d source=%q", attempts, sc.Source)
	}
	if got := testutil.ToFloat64(m.ScenesRejected.WithLabelValues(metrics.ReasonEmptySource)); got != 1 {
		t.Fatalf("expected 1 empty source rejection, got %v", got)
	}
}

func TestSearch_NoVideos(t *testing.T) {
	t.Parallel()

	uc := New(Deps{
		Library: fakeLibrary{},
		Opener:  fakeOpener{},
		Rand:    &scriptedRand{t: t},
		Logger:  zerolog.Nop(),
	})
	_, _, err := uc.Search(context.Background(), testInput(t.TempDir()))
	if !errors.Is(err, ErrNoVideos) {
		t.Fatalf("expected ErrNoVideos, got %v", err)
	}
}

func TestSearch_OpenFailureIsFatal(t *testing.T) {
	t.Parallel()

	uc := New(Deps{
		Library: fakeLibrary{"broken.mp4"},
		Opener:  fakeOpener{},
		Rand:    &scriptedRand{t: t, picks: []int{0}},
		Logger:  zerolog.Nop(),
	})
	_, _, err := uc.Search(context.Background(), testInput(t.TempDir()))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestSearch_StopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := New(Deps{
		Library: fakeLibrary{"clip.mkv"},
		Opener:  fakeOpener{"clip.mkv": newFakeSource("clip", 0, 100)},
		Rand:    &scriptedRand{t: t},
		Logger:  zerolog.Nop(),
	})
	_, _, err := uc.Search(ctx, testInput(t.TempDir()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSearch_InvalidLimits(t *testing.T) {
	t.Parallel()

	in := testInput(t.TempDir())
	in.Limits.MaxFrames = 1
	_, _, err := New(Deps{Logger: zerolog.Nop()}).Search(context.Background(), in)
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRender_CreatesMissingOutputDir(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{}
	uc := New(Deps{Encoder: enc, Logger: zerolog.Nop()})

	outDir := filepath.Join(t.TempDir(), "nested", "out")
	sc := types.Scene{Frames: []types.Frame{solid(1)}, Label: "a/b from 00-00 to 00-02"}
	path, err := uc.Render(context.Background(), sc, outDir, "random.gif")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if enc.calls != 2 {
		t.Fatalf("expected encode retried once, got %d calls", enc.calls)
	}
	if want := filepath.Join(outDir, "a_b from 00-00 to 00-02.gif"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}

func TestRender_OtherEncodeErrorsAreFatal(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{err: errors.New("disk full")}
	uc := New(Deps{Encoder: enc, Logger: zerolog.Nop()})
	_, err := uc.Render(context.Background(), types.Scene{Frames: []types.Frame{solid(1)}}, t.TempDir(), "random.gif")
	if err == nil {
		t.Fatalf("expected error")
	}
	if enc.calls != 1 {
		t.Fatalf("expected no retry, got %d calls", enc.calls)
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"clip1 from 01-05 to 01-09": "clip1 from 01-05 to 01-09",
		"../up":                     "_up",
		`c:\x`:                      "c__x",
		"  ":                        "scene",
		"...":                       "scene",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := FileName(in); got != want {
				t.Fatalf("FileName(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func testInput(outDir string) Input {
	return Input{
		Limits:         scene.Limits{MinFrames: 3, MaxFrames: 10, Threshold: 50},
		MinDynamicness: 5,
		Resolution:     types.Resolution{Width: 2, Height: 2},
		OutDir:         outDir,
		TempName:       "random.gif",
	}
}

func solid(v byte) types.Frame {
	f := types.Frame{Width: 2, Height: 2, Pix: make([]byte, 2*2*types.Channels)}
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

func frameValues(frames []types.Frame) []byte {
	out := make([]byte, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Pix[0])
	}
	return out
}

type scriptedRand struct {
	t     *testing.T
	picks []int
}

func (r *scriptedRand) IntN(n int) int {
	r.t.Helper()
	if len(r.picks) == 0 {
		r.t.Fatalf("unexpected random pick (n=%d)", n)
	}
	v := r.picks[0]
	r.picks = r.picks[1:]
	if v < 0 || v >= n {
		r.t.Fatalf("scripted pick %d out of range [0,%d)", v, n)
	}
	return v
}

func (r *scriptedRand) drained() bool { return len(r.picks) == 0 }

type fakeLibrary []string

func (l fakeLibrary) List(context.Context) ([]string, error) { return l, nil }

type fakeOpener map[string]*fakeSource

func (o fakeOpener) Open(_ context.Context, path string) (ports.FrameSource, error) {
	src, ok := o[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return src, nil
}

// fakeSource plays solid frames at one frame per second.
type fakeSource struct {
	name   string
	frames []types.Frame
	cursor int
	last   int
	seeks  []int
	closed bool
}

func newFakeSource(name string, values ...byte) *fakeSource {
	s := &fakeSource{name: name, last: -1}
	for _, v := range values {
		s.frames = append(s.frames, solid(v))
	}
	return s
}

func (s *fakeSource) Name() string     { return s.name }
func (s *fakeSource) TotalFrames() int { return len(s.frames) }

func (s *fakeSource) Seek(_ context.Context, frame int) error {
	s.seeks = append(s.seeks, frame)
	s.cursor = frame
	s.last = -1
	return nil
}

func (s *fakeSource) NextFrame(context.Context, types.Resolution) (types.Frame, bool, error) {
	if s.cursor >= len(s.frames) {
		return types.Frame{}, false, nil
	}
	f := s.frames[s.cursor]
	s.last = s.cursor
	s.cursor++
	return f, true, nil
}

func (s *fakeSource) Timestamp() types.Timestamp {
	idx := s.last
	if idx < 0 {
		idx = s.cursor
	}
	return types.Timestamp{Minutes: idx / 60, Seconds: idx % 60}
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeEncoder struct {
	calls int
	err   error
}

func (e *fakeEncoder) Encode(_ context.Context, frames []types.Frame, path string) error {
	e.calls++
	if e.err != nil {
		return e.err
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("GIF89a %d frames", len(frames))), 0o644); err != nil {
		return fmt.Errorf("create gif: %w", err)
	}
	return nil
}
