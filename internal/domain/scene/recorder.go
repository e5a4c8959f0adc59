package scene

import (
	"errors"
	"fmt"

	"github.com/forPelevin/scenegif/internal/domain/transition"
	"github.com/forPelevin/scenegif/internal/types"
)

type State int

const (
	Searching State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Limits bound a candidate run and define what counts as a cut.
type Limits struct {
	MinFrames int
	MaxFrames int
	Threshold float64
}

func (l Limits) Validate() error {
	if l.MinFrames < 1 {
		return errors.New("min frames must be >= 1")
	}
	if l.MaxFrames < l.MinFrames {
		return errors.New("max frames must be >= min frames")
	}
	return nil
}

// Step describes what the recorder did with one frame.
type Step struct {
	Transition bool
	// Discarded is set when a cut arrived before the candidate was long enough.
	Discarded bool
	Appended  bool
	// Difference against the previous frame; only meaningful when Appended.
	Difference float64
	Done       bool
	// Forced is set when Done came from reaching MaxFrames.
	Forced bool
}

// Recorder accumulates frames between two cuts. It is driven by one search
// attempt and must not be shared.
type Recorder struct {
	limits Limits

	state   State
	run     []types.Frame
	samples []float64
	prev    *types.Frame
	start   types.Timestamp
	end     types.Timestamp
	done    bool
}

func NewRecorder(limits Limits) *Recorder {
	return &Recorder{limits: limits}
}

func (r *Recorder) State() State { return r.state }
func (r *Recorder) Len() int     { return len(r.run) }
func (r *Recorder) Done() bool   { return r.done }

// Step feeds the next decoded frame, positioned at ts in the source.
// Once Done, further frames are ignored.
func (r *Recorder) Step(frame types.Frame, ts types.Timestamp) Step {
	if r.done {
		return Step{Done: true}
	}

	var st Step
	st.Transition = transition.Detect(frame, r.prev, r.limits.Threshold)
	if st.Transition {
		switch {
		case r.state == Recording && len(r.run) >= r.limits.MinFrames:
			r.finish(ts)
			st.Done = true
			return st
		case r.state == Recording:
			r.run = nil
			r.samples = nil
			r.start = ts
			st.Discarded = true
		default:
			r.start = ts
			r.state = Recording
		}
	}

	if r.state == Recording {
		r.run = append(r.run, frame)
		st.Appended = true
		if r.prev != nil {
			st.Difference = transition.MeanAbsoluteDifference(frame, *r.prev)
			// The first frame of a run sits across a cut from its predecessor.
			if len(r.run) > 1 {
				r.samples = append(r.samples, st.Difference)
			}
		}
		if len(r.run) >= r.limits.MaxFrames {
			r.finish(ts)
			st.Done = true
			st.Forced = true
			return st
		}
	}

	r.prev = &frame
	return st
}

// Reset drops everything recorded so far. Used when the stream runs out
// before a scene is accepted.
func (r *Recorder) Reset() {
	*r = Recorder{limits: r.limits}
}

func (r *Recorder) finish(ts types.Timestamp) {
	r.end = ts
	r.done = true
	r.prev = nil
}

// Dynamicness is the mean frame to frame difference inside the run. A run
// without samples scores 0.
func (r *Recorder) Dynamicness() float64 {
	if len(r.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range r.samples {
		sum += s
	}
	return sum / float64(len(r.samples))
}

// Scene hands over the accepted run. The recorder keeps no reference to it.
func (r *Recorder) Scene(source string) (types.Scene, error) {
	if !r.done {
		return types.Scene{}, errors.New("scene not finished")
	}
	sc := types.Scene{
		Source:      source,
		Frames:      r.run,
		Dynamicness: r.Dynamicness(),
		Samples:     len(r.samples),
		Start:       r.start,
		End:         r.end,
		Label:       Label(source, r.start, r.end),
	}
	r.run = nil
	return sc, nil
}

// Label names an artifact after its source and time span.
func Label(source string, start, end types.Timestamp) string {
	return source + " from " + start.String() + " to " + end.String()
}
