package keypoints

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/guidedmatch/logging"
	"go.viam.com/guidedmatch/utils"
)

// MatchingConfig contains the parameters for brute force matching of descriptors.
type MatchingConfig struct {
	DoCrossCheck bool               `json:"do_cross_check" yaml:"do_cross_check"`
	MaxDist      float64            `json:"max_dist" yaml:"max_dist"`
	LowesRatio   float64            `json:"lowes_ratio" yaml:"lowes_ratio"`
	DistanceType utils.DistanceType `json:"distance_type" yaml:"distance_type"`
}

// MatchDescriptors compares every descriptor of kd1 with every descriptor of kd2 and keeps, for each
// feature of kd1, its nearest neighbor in kd2 subject to the filters in cfg:
//   - MaxDist > 0 drops matches at or beyond that distance,
//   - DoCrossCheck keeps a match only when both features are each other's nearest neighbor,
//   - LowesRatio > 0 drops matches whose nearest distance is not below LowesRatio times the second nearest.
//
// Matches are sorted by ascending distance.
func MatchDescriptors(kd1, kd2 *KeypointsAndDescriptors, cfg *MatchingConfig, logger logging.Logger) ([]IndexedFeatureMatch, error) {
	if kd1.Len() == 0 || kd2.Len() == 0 {
		logger.Debug("nothing to match, one of the feature sets is empty")
		return nil, nil
	}
	distances, err := utils.PairwiseDistance(kd1.Descriptors, kd2.Descriptors, cfg.DistanceType)
	if err != nil {
		return nil, err
	}
	indices2 := utils.GetArgMinDistancesPerRow(distances)
	var matches1 []int
	if cfg.DoCrossCheck {
		var distT mat.Dense
		distT.CloneFrom(distances.T())
		matches1 = utils.GetArgMinDistancesPerRow(&distT)
	}
	_, nCols := distances.Dims()

	matches := make([]IndexedFeatureMatch, 0, kd1.Len())
	for idx1, idx2 := range indices2 {
		d := distances.At(idx1, idx2)
		if cfg.MaxDist > 0 && d >= cfg.MaxDist {
			continue
		}
		if cfg.DoCrossCheck && matches1[idx2] != idx1 {
			continue
		}
		if cfg.LowesRatio > 0 {
			if nCols < 2 {
				continue
			}
			second := secondSmallest(mat.Row(nil, idx1, distances), idx2)
			if !(d < cfg.LowesRatio*second) {
				continue
			}
		}
		matches = append(matches, IndexedFeatureMatch{Feature1Idx: idx1, Feature2Idx: idx2, Distance: d})
	}

	// sort
	dists := make([]float64, len(matches))
	for i, m := range matches {
		dists[i] = m.Distance
	}
	sortedIndices := make([]int, len(matches))
	floats.ArgsortStable(dists, sortedIndices)
	sorted := make([]IndexedFeatureMatch, len(matches))
	for i, idx := range sortedIndices {
		sorted[i] = matches[idx]
	}
	logger.Debugw("brute force matching done", "features1", kd1.Len(), "features2", kd2.Len(), "matches", len(sorted))
	return sorted, nil
}

// secondSmallest returns the smallest value of row excluding position skip.
func secondSmallest(row []float64, skip int) float64 {
	best := -1.0
	for j, v := range row {
		if j == skip {
			continue
		}
		if best < 0 || v < best {
			best = v
		}
	}
	return best
}
