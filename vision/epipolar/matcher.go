// Package epipolar finds additional feature matches between two calibrated views by restricting the
// search for every image 1 feature to the neighbourhood of its epipolar line in image 2.
package epipolar

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/guidedmatch/logging"
	"go.viam.com/guidedmatch/rimage/transform"
	"go.viam.com/guidedmatch/vision/keypoints"
)

var (
	// ErrEmptyFeatures is returned when either image has no features.
	ErrEmptyFeatures = errors.New("both images need at least one feature")
	// ErrMatcherUsed is returned when GetMatches is called more than once on the same matcher.
	ErrMatcherUsed = errors.New("guided epipolar matcher has already run")
)

// Outcome is the result of guided matching for a single image 1 feature.
type Outcome int

const (
	// OutcomeUnprocessed is kept by features that were already matched on input.
	OutcomeUnprocessed Outcome = iota
	// OutcomeNoEpipolarLine means the epipolar line does not cross the image 2 bounding box.
	OutcomeNoEpipolarLine
	// OutcomeNoCandidates means fewer than two unmatched features lie near the epipolar line.
	OutcomeNoCandidates
	// OutcomeAmbiguous means the best candidate failed the ratio test.
	OutcomeAmbiguous
	// OutcomeMatched means a new match was added.
	OutcomeMatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnprocessed:
		return "unprocessed"
	case OutcomeNoEpipolarLine:
		return "no_epipolar_line"
	case OutcomeNoCandidates:
		return "no_candidates"
	case OutcomeAmbiguous:
		return "ambiguous"
	case OutcomeMatched:
		return "matched"
	default:
		return "unknown"
	}
}

// Outcomes lists every Outcome in declaration order.
var Outcomes = []Outcome{OutcomeUnprocessed, OutcomeNoEpipolarLine, OutcomeNoCandidates, OutcomeAmbiguous, OutcomeMatched}

// Report summarizes a guided matching run.
type Report struct {
	// Outcomes holds one entry per image 1 feature.
	Outcomes      []Outcome
	NumGroups     int
	NumNewMatches int
}

// Count returns the number of image 1 features with the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, got := range r.Outcomes {
		if got == o {
			n++
		}
	}
	return n
}

type matcherState int

const (
	stateUninitialized matcherState = iota
	stateInitialized
	stateGrouped
	stateMatched
	stateDone
)

func (s matcherState) String() string {
	return [...]string{"uninitialized", "initialized", "grouped", "matched", "done"}[s]
}

// GuidedEpipolarMatcher matches the features of two images whose cameras are known. It is single use:
// construct one per image pair and call GetMatches once.
type GuidedEpipolarMatcher struct {
	opts      Options
	cam1      *transform.Camera
	cam2      *transform.Camera
	features1 *keypoints.KeypointsAndDescriptors
	features2 *keypoints.KeypointsAndDescriptors
	logger    logging.Logger

	state matcherState

	fundamental *mat.Dense
	points1     []r2.Point
	points2     []r2.Point
	bounds      r2.Rect
	index       *SpatialIndex
	matched1    []bool
	matched2    []bool

	// stamp per image 2 feature of the last candidate search that collected it
	seen        []int
	searchEpoch int
}

// NewGuidedEpipolarMatcher returns a matcher for the features of two images seen by cam1 and cam2. No
// work happens until GetMatches.
func NewGuidedEpipolarMatcher(
	opts Options,
	cam1, cam2 *transform.Camera,
	features1, features2 *keypoints.KeypointsAndDescriptors,
	logger logging.Logger,
) *GuidedEpipolarMatcher {
	if logger == nil {
		logger = logging.Global()
	}
	return &GuidedEpipolarMatcher{
		opts:      opts,
		cam1:      cam1,
		cam2:      cam2,
		features1: features1,
		features2: features2,
		logger:    logger,
	}
}

// GetMatches appends to matches the new correspondences found along the epipolar lines. Features
// already present in matches are neither queried nor offered as candidates. On error matches is left
// untouched.
func (m *GuidedEpipolarMatcher) GetMatches(matches *[]keypoints.IndexedFeatureMatch) (*Report, error) {
	if m.state != stateUninitialized {
		return nil, errors.Wrapf(ErrMatcherUsed, "matcher is %s", m.state)
	}
	if matches == nil {
		return nil, errors.New("matches must not be nil")
	}
	if err := m.initialize(*matches); err != nil {
		m.state = stateDone
		return nil, err
	}
	m.state = stateInitialized

	report := &Report{Outcomes: make([]Outcome, m.features1.Len())}
	groups := m.groupEpipolarLines(report)
	report.NumGroups = len(groups)
	m.state = stateGrouped

	var newMatches []keypoints.IndexedFeatureMatch
	for i := range groups {
		candidates := m.findFeaturesNearEpipolarLine(&groups[i])
		found, err := m.matchGroup(&groups[i], candidates, report)
		if err != nil {
			m.state = stateDone
			return nil, err
		}
		newMatches = append(newMatches, found...)
	}
	m.state = stateMatched

	*matches = append(*matches, newMatches...)
	report.NumNewMatches = len(newMatches)
	m.state = stateDone

	m.logger.Debugw("guided epipolar matching done",
		"image1", m.features1.ImageName,
		"image2", m.features2.ImageName,
		"groups", report.NumGroups,
		"new_matches", report.NumNewMatches,
		"no_epipolar_line", report.Count(OutcomeNoEpipolarLine),
		"no_candidates", report.Count(OutcomeNoCandidates),
		"ambiguous", report.Count(OutcomeAmbiguous),
	)
	return report, nil
}

// initialize validates the inputs and builds the fundamental matrix, the matched sets and the spatial
// index of unmatched image 2 features.
func (m *GuidedEpipolarMatcher) initialize(seed []keypoints.IndexedFeatureMatch) error {
	if err := m.opts.Validate("options"); err != nil {
		return err
	}
	if m.features1.Len() == 0 || m.features2.Len() == 0 {
		return ErrEmptyFeatures
	}
	if err := m.features1.Validate(); err != nil {
		return errors.Wrap(err, "image 1 features")
	}
	if err := m.features2.Validate(); err != nil {
		return errors.Wrap(err, "image 2 features")
	}
	if dim1, dim2 := len(m.features1.Descriptors[0]), len(m.features2.Descriptors[0]); dim1 != dim2 {
		return errors.Errorf("descriptor lengths differ between images: %d and %d", dim1, dim2)
	}

	n1, n2 := m.features1.Len(), m.features2.Len()
	matched1 := make([]bool, n1)
	matched2 := make([]bool, n2)
	for i, match := range seed {
		if match.Feature1Idx < 0 || match.Feature1Idx >= n1 || match.Feature2Idx < 0 || match.Feature2Idx >= n2 {
			return errors.Errorf("match %d (%d, %d) is out of range for %d and %d features",
				i, match.Feature1Idx, match.Feature2Idx, n1, n2)
		}
		matched1[match.Feature1Idx] = true
		matched2[match.Feature2Idx] = true
	}

	fundamental, err := transform.FundamentalMatrixFromCameras(m.cam1, m.cam2)
	if err != nil {
		return err
	}

	m.fundamental = fundamental
	m.matched1 = matched1
	m.matched2 = matched2
	m.points1 = undistortAll(m.cam1, m.features1.Keypoints)
	m.points2 = undistortAll(m.cam2, m.features2.Keypoints)
	// padded so that features on a single row or column still leave a segment to search
	m.bounds = transform.BoundingRect(m.points2).ExpandedByMargin(m.opts.MaxDistancePixels)
	m.seen = make([]int, n2)

	m.index = NewSpatialIndex(m.opts.CellSize(), m.opts.NumGrids)
	for i, p := range m.points2 {
		if !matched2[i] {
			m.index.AddFeature(i, p)
		}
	}
	m.logger.Debugw("guided epipolar matcher initialized",
		"features1", n1,
		"features2", n2,
		"seed_matches", len(seed),
		"cell_size", m.opts.CellSize(),
		"grids", m.index.NumGrids(),
	)
	return nil
}

// undistortAll returns the ideal pinhole positions of pts as seen by cam.
func undistortAll(cam *transform.Camera, pts []r2.Point) []r2.Point {
	if cam.Distortion.IsZero() {
		return pts
	}
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = cam.UndistortPixel(p)
	}
	return out
}

// groupEpipolarLines computes and clips the epipolar line of every unmatched image 1 feature and groups
// the coinciding ones. Features whose line misses the image 2 bounding box are marked in report.
func (m *GuidedEpipolarMatcher) groupEpipolarLines(report *Report) []EpilineGroup {
	grouper := newEpilineGrouper(m.opts.EpilineGroupingTolerancePixels)
	for i, p := range m.points1 {
		if m.matched1[i] {
			continue
		}
		line := transform.EpipolarLine(m.fundamental, p)
		endpoints, ok := transform.ClipLineToRect(line, m.bounds)
		if !ok {
			report.Outcomes[i] = OutcomeNoEpipolarLine
			continue
		}
		grouper.add(i, endpoints)
	}
	return grouper.groups
}

// matchGroup runs the ratio test for every feature of group against the candidates that are still
// unmatched, accepting matches in ascending feature order.
func (m *GuidedEpipolarMatcher) matchGroup(
	group *EpilineGroup,
	candidates []int,
	report *Report,
) ([]keypoints.IndexedFeatureMatch, error) {
	var found []keypoints.IndexedFeatureMatch
	skip := func(idx int) bool { return m.matched2[idx] }
	for _, query := range group.Features {
		nn, err := nearestTwo(m.features1.Descriptors[query], candidates, m.features2.Descriptors, m.opts.DistanceType, skip)
		if err != nil {
			return nil, err
		}
		switch {
		case len(nn) < 2:
			report.Outcomes[query] = OutcomeNoCandidates
		case !passesRatioTest(nn, m.opts.LowesRatio):
			report.Outcomes[query] = OutcomeAmbiguous
		default:
			report.Outcomes[query] = OutcomeMatched
			m.matched1[query] = true
			m.matched2[nn[0].Index] = true
			found = append(found, keypoints.IndexedFeatureMatch{
				Feature1Idx: query,
				Feature2Idx: nn[0].Index,
				Distance:    nn[0].Distance,
			})
		}
	}
	return found, nil
}

// Match runs a GuidedEpipolarMatcher once and reports whether it succeeded. New matches are appended to
// matches; on failure matches is left untouched and the reason is logged.
func Match(
	opts Options,
	cam1, cam2 *transform.Camera,
	features1, features2 *keypoints.KeypointsAndDescriptors,
	matches *[]keypoints.IndexedFeatureMatch,
	logger logging.Logger,
) bool {
	m := NewGuidedEpipolarMatcher(opts, cam1, cam2, features1, features2, logger)
	if _, err := m.GetMatches(matches); err != nil {
		m.logger.Warnw("guided epipolar matching failed", "error", err)
		return false
	}
	return true
}
