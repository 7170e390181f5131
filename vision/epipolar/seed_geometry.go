package epipolar

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/guidedmatch/rimage/transform"
	"go.viam.com/guidedmatch/vision/keypoints"
)

// MinSeedMatches is the number of known matches needed to estimate a fundamental matrix.
const MinSeedMatches = 8

// SeedGeometry compares the epipolar geometry given by a pair's cameras with the one fitted to its
// known matches. A camera residual well above the estimated one means the poses do not explain the
// matches, and guided search along the camera epipolar lines will miss correspondences.
type SeedGeometry struct {
	NumMatches int
	// CameraResidual is the mean distance, in undistorted image 2 pixels, of the matched image 2
	// features to the epipolar lines of the camera fundamental matrix.
	CameraResidual float64
	// EstimatedResidual is the same distance for the normalized 8 point estimate.
	EstimatedResidual float64
}

// CheckSeedGeometry computes the SeedGeometry of matches between features1 and features2.
func CheckSeedGeometry(
	cam1, cam2 *transform.Camera,
	features1, features2 *keypoints.KeypointsAndDescriptors,
	matches []keypoints.IndexedFeatureMatch,
) (*SeedGeometry, error) {
	if len(matches) < MinSeedMatches {
		return nil, errors.Errorf("need at least %d matches to estimate the epipolar geometry, got %d", MinSeedMatches, len(matches))
	}
	pts1 := make([]r2.Point, 0, len(matches))
	pts2 := make([]r2.Point, 0, len(matches))
	for i, match := range matches {
		if match.Feature1Idx < 0 || match.Feature1Idx >= features1.Len() ||
			match.Feature2Idx < 0 || match.Feature2Idx >= features2.Len() {
			return nil, errors.Errorf("match %d (%d, %d) is out of range for %d and %d features",
				i, match.Feature1Idx, match.Feature2Idx, features1.Len(), features2.Len())
		}
		pts1 = append(pts1, cam1.UndistortPixel(features1.Keypoints[match.Feature1Idx]))
		pts2 = append(pts2, cam2.UndistortPixel(features2.Keypoints[match.Feature2Idx]))
	}

	fromCameras, err := transform.FundamentalMatrixFromCameras(cam1, cam2)
	if err != nil {
		return nil, err
	}
	estimated, err := transform.ComputeFundamentalMatrixAllPoints(pts1, pts2, true)
	if err != nil {
		return nil, errors.Wrap(err, "estimating fundamental matrix from matches")
	}
	return &SeedGeometry{
		NumMatches:        len(matches),
		CameraResidual:    transform.MeanEpipolarDistance(fromCameras, pts1, pts2),
		EstimatedResidual: transform.MeanEpipolarDistance(estimated, pts1, pts2),
	}, nil
}
