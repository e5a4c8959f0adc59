package transition

import "github.com/forPelevin/scenegif/internal/types"

// MaxDifference is the score of two frames that share no geometry.
const MaxDifference = 255.0

// MeanAbsoluteDifference returns the mean absolute per-channel difference of
// two frames in the range [0..255]. Scene cut detection and dynamicness
// scoring both go through here so the two stay on the same scale.
func MeanAbsoluteDifference(a, b types.Frame) float64 {
	if a.Width != b.Width || a.Height != b.Height {
		return MaxDifference
	}
	n := a.Width * a.Height * types.Channels
	if n == 0 {
		return 0
	}
	if len(a.Pix) < n || len(b.Pix) < n {
		return MaxDifference
	}

	var sum uint64
	pa, pb := a.Pix[:n], b.Pix[:n]
	for i := range pa {
		if pa[i] > pb[i] {
			sum += uint64(pa[i] - pb[i])
		} else {
			sum += uint64(pb[i] - pa[i])
		}
	}
	return float64(sum) / float64(n)
}

// Detect reports whether frame starts a new shot relative to previous.
// Without a previous frame there is nothing to compare against.
func Detect(frame types.Frame, previous *types.Frame, threshold float64) bool {
	if previous == nil {
		return false
	}
	return MeanAbsoluteDifference(frame, *previous) >= threshold
}
