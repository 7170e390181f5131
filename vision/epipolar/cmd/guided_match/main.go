// Package main runs guided epipolar matching on the image pairs of a scene file.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/guidedmatch/logging"
	"go.viam.com/guidedmatch/vision/epipolar"
	"go.viam.com/guidedmatch/vision/keypoints"
)

const (
	flagScene   = "scene"
	flagConfig  = "config"
	flagSeed    = "seed"
	flagOut     = "out"
	flagPlot    = "plot"
	flagWorkers = "workers"
	flagMatches = "matches"
	flagDebug   = "debug"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "guided_match",
		Usage: "find feature matches along epipolar lines of calibrated image pairs",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     flagScene,
				Usage:    "scene file (.json or .yaml) with cameras, features and known matches",
				Required: true,
			},
			&cli.PathFlag{
				Name:  flagConfig,
				Usage: "json file with matcher options",
			},
			&cli.BoolFlag{
				Name:  flagSeed,
				Usage: "seed pairs without matches with brute force descriptor matching",
			},
			&cli.PathFlag{
				Name:  flagOut,
				Usage: "write all matches to this json file",
			},
			&cli.PathFlag{
				Name:  flagPlot,
				Usage: "draw matches to this png file, suffixed with the pair name when there are several pairs",
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "number of pairs matched concurrently, 0 for one per cpu",
			},
			&cli.BoolFlag{
				Name:  flagMatches,
				Usage: "print every new match",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: runGuidedMatch,
	}
}

func runGuidedMatch(c *cli.Context) error {
	logger := logging.NewLogger("guided_match")
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("guided_match")
	}
	defer utils.UncheckedErrorFunc(logger.Sync)

	scene, err := LoadScene(c.Path(flagScene))
	if err != nil {
		return err
	}
	var base *epipolar.Options
	if path := c.Path(flagConfig); path != "" {
		if base, err = epipolar.LoadOptions(path); err != nil {
			return err
		}
	}
	opts, err := scene.MatcherOptions(base)
	if err != nil {
		return err
	}
	pairs, err := scene.ImagePairs()
	if err != nil {
		return err
	}
	if c.Bool(flagSeed) {
		if err := seedPairs(pairs, opts, logger); err != nil {
			return err
		}
	}

	geometries := checkSeedGeometry(pairs, opts, logger)

	results, err := epipolar.MatchPairs(c.Context, *opts, pairs, c.Int(flagWorkers), logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, summaryTable(pairs, results, geometries))
	if c.Bool(flagMatches) {
		for i := range results {
			if results[i].Err == nil {
				fmt.Fprintln(c.App.Writer, matchesTable(&pairs[i], &results[i]))
			}
		}
	}

	if out := c.Path(flagOut); out != "" {
		if err := writeResults(out, results); err != nil {
			return err
		}
	}
	if plot := c.Path(flagPlot); plot != "" {
		if err := plotResults(plot, pairs, results); err != nil {
			return err
		}
	}

	failed := lo.Filter(results, func(r epipolar.PairResult, _ int) bool { return r.Err != nil })
	if len(failed) > 0 {
		return errors.Errorf("%d of %d pairs failed: %s", len(failed), len(results),
			strings.Join(lo.Map(failed, func(r epipolar.PairResult, _ int) string { return r.Name }), ", "))
	}
	return nil
}

// seedPairs fills pairs without known matches with cross checked brute force matches.
func seedPairs(pairs []epipolar.ImagePair, opts *epipolar.Options, logger logging.Logger) error {
	cfg := &keypoints.MatchingConfig{
		DoCrossCheck: true,
		LowesRatio:   opts.LowesRatio,
		DistanceType: opts.DistanceType,
	}
	for i := range pairs {
		if len(pairs[i].Matches) > 0 {
			continue
		}
		matches, err := keypoints.MatchDescriptors(pairs[i].Features1, pairs[i].Features2, cfg, logger.Sublogger("seed"))
		if err != nil {
			return errors.Wrapf(err, "seeding pair %q", pairs[i].Name)
		}
		logger.Infow("seeded pair", "pair", pairs[i].Name, "matches", len(matches))
		pairs[i].Matches = matches
	}
	return nil
}

// checkSeedGeometry compares the camera epipolar geometry of every pair with enough known matches to
// the geometry fitted to those matches. Pairs it cannot check get a nil entry.
func checkSeedGeometry(pairs []epipolar.ImagePair, opts *epipolar.Options, logger logging.Logger) []*epipolar.SeedGeometry {
	geometries := make([]*epipolar.SeedGeometry, len(pairs))
	for i := range pairs {
		pair := &pairs[i]
		if len(pair.Matches) < epipolar.MinSeedMatches {
			continue
		}
		geom, err := epipolar.CheckSeedGeometry(pair.Camera1, pair.Camera2, pair.Features1, pair.Features2, pair.Matches)
		if err != nil {
			logger.Debugw("cannot check epipolar geometry", "pair", pair.Name, "error", err)
			continue
		}
		geometries[i] = geom
		logger.Debugw("epipolar geometry of known matches",
			"pair", pair.Name,
			"matches", geom.NumMatches,
			"camera_residual_px", geom.CameraResidual,
			"estimated_residual_px", geom.EstimatedResidual,
		)
		if geom.CameraResidual > opts.MaxDistancePixels {
			logger.Warnw("camera poses do not explain the known matches",
				"pair", pair.Name,
				"camera_residual_px", geom.CameraResidual,
				"estimated_residual_px", geom.EstimatedResidual,
				"max_distance_px", opts.MaxDistancePixels,
			)
		}
	}
	return geometries
}

// seedResidual formats the camera residual of geom, or "-" when the pair was not checked.
func seedResidual(geom *epipolar.SeedGeometry) string {
	if geom == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", geom.CameraResidual)
}

func summaryTable(pairs []epipolar.ImagePair, results []epipolar.PairResult, geometries []*epipolar.SeedGeometry) string {
	t := table.NewWriter()
	header := table.Row{"Pair", "Known", "Seed residual", "New", "Groups"}
	for _, o := range epipolar.Outcomes[1:] {
		header = append(header, o.String())
	}
	t.AppendHeader(append(header, "Median distance", "Error"))
	for i, res := range results {
		row := table.Row{res.Name, len(pairs[i].Matches), seedResidual(geometries[i])}
		if res.Err != nil {
			row = append(row, "", "", "", "", "", "", "")
			t.AppendRow(append(row, res.Err.Error()))
			continue
		}
		row = append(row, res.Report.NumNewMatches, res.Report.NumGroups)
		for _, o := range epipolar.Outcomes[1:] {
			row = append(row, res.Report.Count(o))
		}
		t.AppendRow(append(row, medianDistance(res.Matches[len(pairs[i].Matches):]), ""))
	}
	t.AppendFooter(table.Row{
		"Total",
		lo.SumBy(pairs, func(p epipolar.ImagePair) int { return len(p.Matches) }),
		"",
		lo.SumBy(results, func(r epipolar.PairResult) int {
			if r.Report == nil {
				return 0
			}
			return r.Report.NumNewMatches
		}),
	})
	return t.Render()
}

// medianDistance formats the median descriptor distance of matches, or "-" when there are none.
func medianDistance(matches []keypoints.IndexedFeatureMatch) string {
	distances := stats.Float64Data(lo.Map(matches, func(m keypoints.IndexedFeatureMatch, _ int) float64 { return m.Distance }))
	median, err := stats.Median(distances)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", median)
}

func matchesTable(pair *epipolar.ImagePair, res *epipolar.PairResult) string {
	t := table.NewWriter()
	t.SetTitle(res.Name)
	t.AppendHeader(table.Row{"#", "Feature 1", "Feature 2", "Distance", "Pixel 1", "Pixel 2"})
	for i, match := range res.Matches[len(pair.Matches):] {
		p1 := pair.Features1.Keypoints[match.Feature1Idx]
		p2 := pair.Features2.Keypoints[match.Feature2Idx]
		t.AppendRow(table.Row{
			i + 1,
			match.Feature1Idx,
			match.Feature2Idx,
			fmt.Sprintf("%.4f", match.Distance),
			fmt.Sprintf("(%.1f, %.1f)", p1.X, p1.Y),
			fmt.Sprintf("(%.1f, %.1f)", p2.X, p2.Y),
		})
	}
	return t.Render()
}

type pairOutput struct {
	Name    string                          `json:"name"`
	Matches []keypoints.IndexedFeatureMatch `json:"matches"`
	Error   string                          `json:"error,omitempty"`
}

func writeResults(out string, results []epipolar.PairResult) error {
	outputs := lo.Map(results, func(r epipolar.PairResult, _ int) pairOutput {
		po := pairOutput{Name: r.Name, Matches: r.Matches}
		if r.Err != nil {
			po.Error = r.Err.Error()
		}
		return po
	})
	data, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return err
	}
	//nolint:gosec
	return os.WriteFile(out, data, 0o644)
}

// plotFileName returns the plot path of one pair.
func plotFileName(plot, pairName string, numPairs int) string {
	if numPairs == 1 {
		return plot
	}
	ext := filepath.Ext(plot)
	return strings.TrimSuffix(plot, ext) + "_" + pairName + ext
}

func plotResults(plot string, pairs []epipolar.ImagePair, results []epipolar.PairResult) error {
	for i, res := range results {
		if res.Err != nil {
			continue
		}
		pair := &pairs[i]
		cfg := keypoints.PlotConfig{
			Width:          pair.Camera1.Intrinsics.Width,
			Height:         pair.Camera1.Intrinsics.Height,
			NewMatchesFrom: len(pair.Matches),
		}
		if err := keypoints.PlotMatches(pair.Features1.Keypoints, pair.Features2.Keypoints, res.Matches, cfg,
			plotFileName(plot, res.Name, len(results))); err != nil {
			return errors.Wrapf(err, "plotting pair %q", res.Name)
		}
	}
	return nil
}
