package epipolar

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/guidedmatch/utils"
)

// neighbor is a candidate image 2 feature and its descriptor distance to a query.
type neighbor struct {
	Index    int
	Distance float64
}

// nearestTwo returns up to the two candidates with the smallest descriptor distance to query, closest
// first. Candidates for which skip returns true are ignored. Candidates are expected in ascending
// index order so that equal distances keep the lower index first.
func nearestTwo(
	query []float64,
	candidates []int,
	descriptors [][]float64,
	distType utils.DistanceType,
	skip func(int) bool,
) ([]neighbor, error) {
	nn := [2]neighbor{{Index: -1, Distance: math.Inf(1)}, {Index: -1, Distance: math.Inf(1)}}
	count := 0
	for _, idx := range candidates {
		if skip != nil && skip(idx) {
			continue
		}
		d, err := utils.ComputeDistance(query, descriptors[idx], distType)
		if err != nil {
			return nil, errors.Wrapf(err, "descriptor distance to feature %d", idx)
		}
		count++
		switch {
		case count == 1 || d < nn[0].Distance:
			nn[1] = nn[0]
			nn[0] = neighbor{Index: idx, Distance: d}
		case count == 2 || d < nn[1].Distance:
			nn[1] = neighbor{Index: idx, Distance: d}
		}
	}
	if count > 2 {
		count = 2
	}
	return nn[:count], nil
}

// passesRatioTest reports whether the closest neighbor is distinctive enough: its distance must be
// strictly less than ratio times the distance of the second closest.
func passesRatioTest(nn []neighbor, ratio float64) bool {
	if len(nn) < 2 {
		return false
	}
	return nn[0].Distance < ratio*nn[1].Distance
}
