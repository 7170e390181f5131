package epipolar

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/guidedmatch/logging"
	"go.viam.com/guidedmatch/rimage/transform"
	"go.viam.com/guidedmatch/utils"
	"go.viam.com/guidedmatch/vision/keypoints"
)

// ImagePair is the input of one guided matching run.
type ImagePair struct {
	Name      string
	Camera1   *transform.Camera
	Camera2   *transform.Camera
	Features1 *keypoints.KeypointsAndDescriptors
	Features2 *keypoints.KeypointsAndDescriptors
	// Matches already known for the pair. They are copied, never modified.
	Matches []keypoints.IndexedFeatureMatch
}

// PairResult is the output of guided matching for one ImagePair.
type PairResult struct {
	Name string
	// Matches holds the input matches followed by the new ones.
	Matches []keypoints.IndexedFeatureMatch
	Report  *Report
	// Err is set when the pair could not be matched. Other pairs are unaffected.
	Err error
}

// MatchPairs runs guided matching on every pair using at most maxWorkers goroutines; zero or less means
// utils.ParallelFactor. Results are in the order of pairs. The returned error is only set when ctx is
// done before all pairs have started.
func MatchPairs(ctx context.Context, opts Options, pairs []ImagePair, maxWorkers int, logger logging.Logger) ([]PairResult, error) {
	if maxWorkers <= 0 {
		maxWorkers = utils.ParallelFactor
	}
	if logger == nil {
		logger = logging.Global()
	}
	results := make([]PairResult, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	started := 0
	for i := range pairs {
		if gctx.Err() != nil {
			break
		}
		started++
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pair := &pairs[i]
			matches := slices.Clone(pair.Matches)
			pairLogger := logger.Sublogger(pair.Name)
			report, err := NewGuidedEpipolarMatcher(opts, pair.Camera1, pair.Camera2, pair.Features1, pair.Features2, pairLogger).
				GetMatches(&matches)
			results[i] = PairResult{Name: pair.Name, Report: report, Err: err}
			if err != nil {
				pairLogger.Warnw("skipping pair", "error", err)
				return nil
			}
			results[i].Matches = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, errors.Wrap(err, "guided matching interrupted")
	}
	if started < len(pairs) {
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		return results, errors.Wrapf(err, "guided matching interrupted after %d of %d pairs", started, len(pairs))
	}
	return results, nil
}
