package epipolar

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// sampleSegment returns n+1 evenly spaced points from a to b inclusive, with n = max(1, ceil(|b-a| / step)),
// so consecutive samples are at most step apart.
func sampleSegment(a, b r2.Point, step float64) []r2.Point {
	n := int(math.Ceil(b.Sub(a).Norm() / step))
	if n < 1 {
		n = 1
	}
	samples := make([]r2.Point, 0, n+1)
	dir := b.Sub(a)
	for i := 0; i <= n; i++ {
		samples = append(samples, a.Add(dir.Mul(float64(i)/float64(n))))
	}
	return samples
}

// findFeaturesNearEpipolarLine returns the unmatched image 2 features stored near the sampled points of
// the lines of the group's members, in ascending index order.
func (m *GuidedEpipolarMatcher) findFeaturesNearEpipolarLine(group *EpilineGroup) []int {
	m.searchEpoch++
	epoch := m.searchEpoch
	var candidates []int
	visit := func(idx int) {
		if m.matched2[idx] || m.seen[idx] == epoch {
			return
		}
		m.seen[idx] = epoch
		candidates = append(candidates, idx)
	}
	for _, line := range group.Lines {
		for _, p := range sampleSegment(line[0], line[1], m.opts.MaxDistancePixels) {
			m.index.FeaturesNear(p, visit)
		}
	}
	sort.Ints(candidates)
	return candidates
}
