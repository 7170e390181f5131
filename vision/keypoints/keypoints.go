// Package keypoints contains the feature collections and matches exchanged between the detection,
// matching, and reconstruction stages.
package keypoints

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// KeypointsAndDescriptors holds the keypoints of one image and one descriptor per keypoint. The
// position of a keypoint in Keypoints is its feature index and is used as its identity.
type KeypointsAndDescriptors struct {
	ImageName   string
	Keypoints   []r2.Point
	Descriptors [][]float64
}

// Len returns the number of features.
func (kd *KeypointsAndDescriptors) Len() int {
	if kd == nil {
		return 0
	}
	return len(kd.Keypoints)
}

// Validate checks that each keypoint has a descriptor and that all descriptors share one length.
func (kd *KeypointsAndDescriptors) Validate() error {
	if kd == nil {
		return errors.New("features are nil")
	}
	if len(kd.Keypoints) != len(kd.Descriptors) {
		return errors.Errorf("%q has %d keypoints but %d descriptors", kd.ImageName, len(kd.Keypoints), len(kd.Descriptors))
	}
	for i, desc := range kd.Descriptors {
		if len(desc) == 0 {
			return errors.Errorf("%q descriptor %d is empty", kd.ImageName, i)
		}
		if len(desc) != len(kd.Descriptors[0]) {
			return errors.Errorf("%q descriptor %d has length %d, expected %d", kd.ImageName, i, len(desc), len(kd.Descriptors[0]))
		}
	}
	return nil
}

// IndexedFeatureMatch is a correspondence between feature Feature1Idx of the first image and feature
// Feature2Idx of the second image. Distance is the descriptor distance of the pair.
type IndexedFeatureMatch struct {
	Feature1Idx int     `json:"feature1_ind" yaml:"feature1_ind"`
	Feature2Idx int     `json:"feature2_ind" yaml:"feature2_ind"`
	Distance    float64 `json:"distance" yaml:"distance"`
}

// GetMatchingKeyPoints takes the matches and the keypoints and returns the corresponding keypoints that are matched.
func GetMatchingKeyPoints(matches []IndexedFeatureMatch, kps1, kps2 []r2.Point) ([]r2.Point, []r2.Point, error) {
	matchedKps1 := make([]r2.Point, len(matches))
	matchedKps2 := make([]r2.Point, len(matches))
	for i, match := range matches {
		if match.Feature1Idx < 0 || match.Feature1Idx >= len(kps1) {
			return nil, nil, errors.Errorf("match %d refers to keypoint %d of the first set, which has %d", i, match.Feature1Idx, len(kps1))
		}
		if match.Feature2Idx < 0 || match.Feature2Idx >= len(kps2) {
			return nil, nil, errors.Errorf("match %d refers to keypoint %d of the second set, which has %d", i, match.Feature2Idx, len(kps2))
		}
		matchedKps1[i] = kps1[match.Feature1Idx]
		matchedKps2[i] = kps2[match.Feature2Idx]
	}
	return matchedKps1, matchedKps2, nil
}
