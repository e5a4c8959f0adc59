package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons for ScenesRejected.
const (
	ReasonDynamicness = "dynamicness"
	ReasonEmptySource = "empty_source"
)

// Metrics is a private registry so repeated runs in one process (tests) never
// collide on the default registerer. All methods accept a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	SearchAttempts      prometheus.Counter
	ScenesRejected      *prometheus.CounterVec
	FramesDecoded       prometheus.Counter
	StreamResets        prometheus.Counter
	CandidatesDiscarded prometheus.Counter
	Transitions         prometheus.Counter
	FramesConverted     prometheus.Counter
	SceneDynamicness    prometheus.Gauge
	SceneFrames         prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		SearchAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "scenegif_search_attempts_total",
			Help: "Scene search attempts, one per source pick",
		}),
		ScenesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scenegif_scenes_rejected_total",
			Help: "Scenes thrown away by the search loop, by reason",
		}, []string{"reason"}),
		FramesDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "scenegif_frames_decoded_total",
			Help: "Frames pulled from video sources",
		}),
		StreamResets: f.NewCounter(prometheus.CounterOpts{
			Name: "scenegif_stream_resets_total",
			Help: "End of stream hits that forced a reseek",
		}),
		CandidatesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "scenegif_candidates_discarded_total",
			Help: "Candidate runs cut short by a transition before reaching the minimum length",
		}),
		Transitions: f.NewCounter(prometheus.CounterOpts{
			Name: "scenegif_transitions_total",
			Help: "Scene cuts detected",
		}),
		FramesConverted: f.NewCounter(prometheus.CounterOpts{
			Name: "scenegif_frames_converted_total",
			Help: "Frames converted to paletted images",
		}),
		SceneDynamicness: f.NewGauge(prometheus.GaugeOpts{
			Name: "scenegif_scene_dynamicness",
			Help: "Dynamicness of the last accepted scene",
		}),
		SceneFrames: f.NewGauge(prometheus.GaugeOpts{
			Name: "scenegif_scene_frames",
			Help: "Frame count of the last accepted scene",
		}),
	}
}

func (m *Metrics) Attempt() {
	if m == nil {
		return
	}
	m.SearchAttempts.Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.ScenesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) FrameDecoded() {
	if m == nil {
		return
	}
	m.FramesDecoded.Inc()
}

func (m *Metrics) StreamReset() {
	if m == nil {
		return
	}
	m.StreamResets.Inc()
}

func (m *Metrics) CandidateDiscarded() {
	if m == nil {
		return
	}
	m.CandidatesDiscarded.Inc()
}

func (m *Metrics) Transition() {
	if m == nil {
		return
	}
	m.Transitions.Inc()
}

func (m *Metrics) FrameConverted() {
	if m == nil {
		return
	}
	m.FramesConverted.Inc()
}

func (m *Metrics) Accepted(frames int, dynamicness float64) {
	if m == nil {
		return
	}
	m.SceneFrames.Set(float64(frames))
	m.SceneDynamicness.Set(dynamicness)
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
