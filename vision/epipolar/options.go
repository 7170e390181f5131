package epipolar

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	rutils "go.viam.com/guidedmatch/utils"
)

// Defaults for Options.
const (
	DefaultMaxDistancePixels              = 2.0
	DefaultLowesRatio                     = 0.8
	DefaultGridCellScale                  = 2.0
	DefaultNumGrids                       = 4
	DefaultEpilineGroupingTolerancePixels = 0.5
)

// Options configures a GuidedEpipolarMatcher.
type Options struct {
	// Features closer than this to the epipolar line are considered for matching. It is also the
	// interval at which epipolar lines are sampled.
	MaxDistancePixels float64 `json:"guided_matching_max_distance_pixels" yaml:"guided_matching_max_distance_pixels"`

	// Only keep matches whose nearest descriptor distance is less than LowesRatio times the second
	// nearest descriptor distance.
	LowesRatio float64 `json:"lowes_ratio" yaml:"lowes_ratio"`

	DistanceType rutils.DistanceType `json:"distance_type" yaml:"distance_type"`

	// Grid cells are GridCellScale * MaxDistancePixels wide.
	GridCellScale float64 `json:"grid_cell_scale" yaml:"grid_cell_scale"`

	// NumGrids is the number of staggered grids, 1 or 4. Four grids offset by half a cell along each
	// axis guarantee that a feature within a quarter cell of a sampled point is found. A single grid
	// misses features across a cell edge from the sample, including one exactly on the edge.
	NumGrids int `json:"num_grids" yaml:"num_grids"`

	// Epipolar lines whose clipped endpoints are both within this distance share one search. Zero
	// disables grouping.
	EpilineGroupingTolerancePixels float64 `json:"epiline_grouping_tolerance_px" yaml:"epiline_grouping_tolerance_px"`
}

// DefaultOptions returns the default guided matching options.
func DefaultOptions() Options {
	return Options{
		MaxDistancePixels:              DefaultMaxDistancePixels,
		LowesRatio:                     DefaultLowesRatio,
		DistanceType:                   rutils.Euclidean,
		GridCellScale:                  DefaultGridCellScale,
		NumGrids:                       DefaultNumGrids,
		EpilineGroupingTolerancePixels: DefaultEpilineGroupingTolerancePixels,
	}
}

// CellSize returns the side length of a grid cell in pixels.
func (opts *Options) CellSize() float64 {
	return opts.GridCellScale * opts.MaxDistancePixels
}

// Validate ensures all parts of the Options are valid.
func (opts *Options) Validate(path string) error {
	if !(opts.MaxDistancePixels > 0) {
		return utils.NewConfigValidationError(path, errors.New("guided_matching_max_distance_pixels should be > 0"))
	}
	if !(opts.LowesRatio > 0 && opts.LowesRatio <= 1) {
		return utils.NewConfigValidationError(path, errors.New("lowes_ratio should be in (0, 1]"))
	}
	if opts.DistanceType != rutils.Euclidean && opts.DistanceType != rutils.Hamming {
		return utils.NewConfigValidationError(path, errors.Errorf("unknown distance_type %d", opts.DistanceType))
	}
	if !(opts.GridCellScale >= 1) {
		return utils.NewConfigValidationError(path, errors.New("grid_cell_scale should be >= 1"))
	}
	if opts.NumGrids != 1 && opts.NumGrids != 4 {
		return utils.NewConfigValidationError(path, errors.Errorf("num_grids should be 1 or 4, got %d", opts.NumGrids))
	}
	if opts.EpilineGroupingTolerancePixels < 0 || opts.EpilineGroupingTolerancePixels >= opts.MaxDistancePixels {
		return utils.NewConfigValidationError(path,
			errors.New("epiline_grouping_tolerance_px should be >= 0 and smaller than guided_matching_max_distance_pixels"))
	}
	return nil
}

// LoadOptions loads Options from a json file. Fields missing from the file keep their default value.
func LoadOptions(file string) (*Options, error) {
	opts := DefaultOptions()
	filePath := filepath.Clean(file)
	configFile, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening options file")
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	jsonParser := json.NewDecoder(configFile)
	jsonParser.DisallowUnknownFields()
	if err := jsonParser.Decode(&opts); err != nil {
		return nil, errors.Wrapf(err, "error parsing %q", file)
	}
	if err := opts.Validate(file); err != nil {
		return nil, err
	}
	return &opts, nil
}

// OptionsFromAttributes decodes Options from a loosely typed attribute map, e.g. a section of a larger
// configuration. Keys use the json names. Missing keys keep their default value.
func OptionsFromAttributes(attrs map[string]interface{}) (*Options, error) {
	opts := DefaultOptions()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &opts,
		DecodeHook:  mapstructure.TextUnmarshallerHookFunc(),
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "error decoding guided matching attributes")
	}
	if err := opts.Validate("attributes"); err != nil {
		return nil, err
	}
	return &opts, nil
}
