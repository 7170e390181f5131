package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/guidedmatch/spatialmath"
)

// Camera is a calibrated pinhole camera with a pose in the world frame.
//
// Orientation rotates world coordinates into the camera frame and Position is the camera center in
// world coordinates, so a world point X maps to the camera frame as R * (X - Position).
// Distortion is optional; when set, pixel positions are distorted image coordinates.
type Camera struct {
	Intrinsics  *PinholeCameraIntrinsics
	Distortion  *BrownConrady
	Orientation spatialmath.Orientation
	Position    r3.Vector
}

// NewCamera returns a camera with the given intrinsics and pose. A nil orientation means no rotation.
func NewCamera(intrinsics *PinholeCameraIntrinsics, orientation spatialmath.Orientation, position r3.Vector) *Camera {
	if orientation == nil {
		orientation = spatialmath.NewZeroOrientation()
	}
	return &Camera{
		Intrinsics:  intrinsics,
		Orientation: orientation,
		Position:    position,
	}
}

// CheckValid checks that the camera has usable intrinsics and an orientation.
func (c *Camera) CheckValid() error {
	if c == nil {
		return errors.New("camera is nil")
	}
	if err := c.Intrinsics.CheckValid(); err != nil {
		return err
	}
	if c.Orientation == nil {
		return errors.New("camera has no orientation")
	}
	return nil
}

// CalibrationMatrix returns the 3x3 calibration matrix K.
func (c *Camera) CalibrationMatrix() *mat.Dense {
	return c.Intrinsics.GetCameraMatrix()
}

// RotationMatrix returns the world to camera rotation as a dense matrix.
func (c *Camera) RotationMatrix() *mat.Dense {
	return c.Orientation.RotationMatrix().Mat()
}

// ProjectPoint projects a world point into the image. The second return value is false when the
// point is at or behind the camera center.
func (c *Camera) ProjectPoint(pt r3.Vector) (r2.Point, bool) {
	pc := c.Orientation.RotationMatrix().Mul(pt.Sub(c.Position))
	if pc.Z <= 0 {
		return r2.Point{}, false
	}
	x, y := pc.X/pc.Z, pc.Y/pc.Z
	x, y = c.Distortion.Distort(x, y)
	u, v := c.Intrinsics.PointToPixel(x, y, 1)
	return r2.Point{X: u, Y: v}, true
}

// UndistortPixel maps a distorted pixel position to where an ideal pinhole camera would have seen it.
func (c *Camera) UndistortPixel(px r2.Point) r2.Point {
	if c.Distortion.IsZero() {
		return px
	}
	x, y, _ := c.Intrinsics.PixelToPoint(px.X, px.Y, 1)
	x, y = c.Distortion.Undistort(x, y)
	u, v := c.Intrinsics.PointToPixel(x, y, 1)
	return r2.Point{X: u, Y: v}
}

// CameraConfig is the serialized form of a Camera. The orientation is given as an axis angle, a
// rotation vector (unit axis scaled by the angle in radians) or a row major rotation matrix.
type CameraConfig struct {
	Intrinsics     *PinholeCameraIntrinsics `json:"intrinsic_parameters" yaml:"intrinsic_parameters"`
	Distortion     *BrownConrady            `json:"distortion,omitempty" yaml:"distortion,omitempty"`
	AxisAngle      *spatialmath.R4AA        `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	RotationVector *[3]float64              `json:"rotation_vector,omitempty" yaml:"rotation_vector,omitempty"`
	RotationMatrix []float64                `json:"rotation_matrix,omitempty" yaml:"rotation_matrix,omitempty"`
	Position       [3]float64               `json:"position" yaml:"position"`
}

// Validate ensures all parts of the CameraConfig are valid.
func (cfg *CameraConfig) Validate(path string) error {
	if cfg.Intrinsics == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "intrinsic_parameters")
	}
	if err := cfg.Intrinsics.CheckValid(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	set := 0
	for _, given := range []bool{cfg.AxisAngle != nil, cfg.RotationVector != nil, cfg.RotationMatrix != nil} {
		if given {
			set++
		}
	}
	if set > 1 {
		return utils.NewConfigValidationError(path,
			errors.New("only one of orientation, rotation_vector and rotation_matrix may be set"))
	}
	if cfg.AxisAngle != nil && cfg.AxisAngle.Theta != 0 &&
		math.Abs(cfg.AxisAngle.RX)+math.Abs(cfg.AxisAngle.RY)+math.Abs(cfg.AxisAngle.RZ) == 0 {
		return utils.NewConfigValidationError(path, errors.New("orientation axis must be non-zero"))
	}
	if cfg.RotationMatrix != nil {
		if _, err := spatialmath.NewRotationMatrix(cfg.RotationMatrix); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// Camera builds the Camera described by the config.
func (cfg *CameraConfig) Camera() (*Camera, error) {
	var orientation spatialmath.Orientation
	switch {
	case cfg.RotationMatrix != nil:
		rm, err := spatialmath.NewRotationMatrix(cfg.RotationMatrix)
		if err != nil {
			return nil, err
		}
		orientation = rm
	case cfg.RotationVector != nil:
		orientation = spatialmath.R3ToR4(r3.Vector{X: cfg.RotationVector[0], Y: cfg.RotationVector[1], Z: cfg.RotationVector[2]})
	case cfg.AxisAngle != nil:
		aa := *cfg.AxisAngle
		orientation = &aa
	}
	intrinsics := *cfg.Intrinsics
	cam := NewCamera(&intrinsics, orientation, r3.Vector{X: cfg.Position[0], Y: cfg.Position[1], Z: cfg.Position[2]})
	if !cfg.Distortion.IsZero() {
		distortion := *cfg.Distortion
		cam.Distortion = &distortion
	}
	return cam, nil
}
