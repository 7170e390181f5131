package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"

	"go.viam.com/guidedmatch/rimage/transform"
	"go.viam.com/guidedmatch/vision/epipolar"
	"go.viam.com/guidedmatch/vision/keypoints"
)

// sceneFeatures is the serialized form of the features of one image.
type sceneFeatures struct {
	ImageName   string       `json:"image_name" yaml:"image_name"`
	Keypoints   [][2]float64 `json:"keypoints" yaml:"keypoints"`
	Descriptors [][]float64  `json:"descriptors" yaml:"descriptors"`
}

func (sf *sceneFeatures) Validate(path string) error {
	if len(sf.Keypoints) != len(sf.Descriptors) {
		return utils.NewConfigValidationError(path,
			errors.Errorf("%d keypoints but %d descriptors", len(sf.Keypoints), len(sf.Descriptors)))
	}
	return nil
}

func (sf *sceneFeatures) features() *keypoints.KeypointsAndDescriptors {
	return &keypoints.KeypointsAndDescriptors{
		ImageName: sf.ImageName,
		Keypoints: lo.Map(sf.Keypoints, func(kp [2]float64, _ int) r2.Point {
			return r2.Point{X: kp[0], Y: kp[1]}
		}),
		Descriptors: sf.Descriptors,
	}
}

// scenePair is the serialized form of an epipolar.ImagePair.
type scenePair struct {
	Name      string                          `json:"name" yaml:"name"`
	Camera1   *transform.CameraConfig         `json:"camera1" yaml:"camera1"`
	Camera2   *transform.CameraConfig         `json:"camera2" yaml:"camera2"`
	Features1 sceneFeatures                   `json:"features1" yaml:"features1"`
	Features2 sceneFeatures                   `json:"features2" yaml:"features2"`
	Matches   []keypoints.IndexedFeatureMatch `json:"matches,omitempty" yaml:"matches,omitempty"`
}

// Validate ensures all parts of the pair are valid.
func (sp *scenePair) Validate(path string) error {
	if sp.Camera1 == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "camera1")
	}
	if sp.Camera2 == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "camera2")
	}
	return multierr.Combine(
		sp.Camera1.Validate(path+".camera1"),
		sp.Camera2.Validate(path+".camera2"),
		sp.Features1.Validate(path+".features1"),
		sp.Features2.Validate(path+".features2"),
	)
}

func (sp *scenePair) imagePair() (epipolar.ImagePair, error) {
	cam1, err := sp.Camera1.Camera()
	if err != nil {
		return epipolar.ImagePair{}, errors.Wrapf(err, "pair %q camera1", sp.Name)
	}
	cam2, err := sp.Camera2.Camera()
	if err != nil {
		return epipolar.ImagePair{}, errors.Wrapf(err, "pair %q camera2", sp.Name)
	}
	return epipolar.ImagePair{
		Name:      sp.Name,
		Camera1:   cam1,
		Camera2:   cam2,
		Features1: sp.Features1.features(),
		Features2: sp.Features2.features(),
		Matches:   sp.Matches,
	}, nil
}

// Scene is the input file of the tool: optional matcher options and the image pairs to match.
type Scene struct {
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
	Pairs   []scenePair            `json:"pairs" yaml:"pairs"`
}

// Validate ensures all parts of the Scene are valid. Every invalid pair is reported.
func (s *Scene) Validate(path string) error {
	if len(s.Pairs) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "pairs")
	}
	var err error
	names := map[string]bool{}
	for i := range s.Pairs {
		pair := &s.Pairs[i]
		if pair.Name == "" {
			pair.Name = fmt.Sprintf("pair%d", i)
		}
		pairPath := fmt.Sprintf("%s.pairs.%d", path, i)
		if names[pair.Name] {
			err = multierr.Append(err, utils.NewConfigValidationError(pairPath, errors.Errorf("duplicate pair name %q", pair.Name)))
		}
		names[pair.Name] = true
		err = multierr.Append(err, pair.Validate(pairPath))
	}
	return err
}

// ImagePairs converts the scene pairs for epipolar.MatchPairs.
func (s *Scene) ImagePairs() ([]epipolar.ImagePair, error) {
	pairs := make([]epipolar.ImagePair, 0, len(s.Pairs))
	for i := range s.Pairs {
		pair, err := s.Pairs[i].imagePair()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// LoadScene reads a scene from a json or yaml file, chosen by extension.
func LoadScene(file string) (*Scene, error) {
	data, err := os.ReadFile(filepath.Clean(file))
	if err != nil {
		return nil, errors.Wrap(err, "error reading scene file")
	}
	var scene Scene
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &scene)
	case ".json":
		err = json.Unmarshal(data, &scene)
	default:
		return nil, errors.Errorf("unsupported scene file extension %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing %q", file)
	}
	if err := scene.Validate(file); err != nil {
		return nil, err
	}
	return &scene, nil
}

// MatcherOptions returns the options of the scene, starting from base when the scene sets none.
func (s *Scene) MatcherOptions(base *epipolar.Options) (*epipolar.Options, error) {
	if len(s.Options) == 0 {
		if base == nil {
			opts := epipolar.DefaultOptions()
			return &opts, nil
		}
		return base, nil
	}
	if base != nil {
		return nil, errors.New("options given both in the scene and in a config file")
	}
	return epipolar.OptionsFromAttributes(s.Options)
}
