package geo

import (
	"math"
	"strings"
)

// DefaultSnapTargets are the "nice" radii a circle snaps to.
var DefaultSnapTargets = []float64{500, 1000, 2000, 5000}

// DefaultSnapThreshold is how close a raw radius must be to snap, in meters.
const DefaultSnapThreshold = 20.0

// SnapRadius returns the target nearest to raw when it lies within threshold,
// otherwise raw rounded to the nearest meter (half away from zero). On a tie
// the first minimal target in iteration order wins.
func SnapRadius(raw float64, targets []float64, threshold float64) float64 {
	best := 0.0
	bestDiff := math.Inf(1)
	for _, t := range targets {
		if d := math.Abs(t - raw); d < bestDiff {
			best, bestDiff = t, d
		}
	}
	if bestDiff <= threshold {
		return best
	}
	return math.Round(raw)
}

// Snapper bundles a target list with its threshold.
type Snapper struct {
	Targets   []float64
	Threshold float64
}

func DefaultSnapper() Snapper {
	targets := make([]float64, len(DefaultSnapTargets))
	copy(targets, DefaultSnapTargets)
	return Snapper{Targets: targets, Threshold: DefaultSnapThreshold}
}

func (s Snapper) Snap(raw float64) float64 {
	return SnapRadius(raw, s.Targets, s.Threshold)
}

// Hint lists the snap targets for the circle tool prompt.
func (s Snapper) Hint() string {
	if len(s.Targets) == 0 {
		return ""
	}
	parts := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		parts[i] = FormatDistance(t)
	}
	return "Snaps near " + strings.Join(parts, ", ")
}
