package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// R4AA is an axis angle orientation: a rotation of Theta radians around the axis (RX, RY, RZ). The axis
// does not need to be normalized.
type R4AA struct {
	Theta float64 `json:"th" yaml:"th"`
	RX    float64 `json:"x" yaml:"x"`
	RY    float64 `json:"y" yaml:"y"`
	RZ    float64 `json:"z" yaml:"z"`
}

// NewR4AA returns the zero rotation around +z.
func NewR4AA() *R4AA {
	return &R4AA{RZ: 1}
}

// AxisAngles returns the orientation in axis angle representation.
func (r4 *R4AA) AxisAngles() *R4AA {
	return r4
}

// Quaternion returns orientation in quaternion representation.
func (r4 *R4AA) Quaternion() quat.Number {
	return r4.ToQuat()
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (r4 *R4AA) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(r4.ToQuat())
}

// ToQuat returns the unit quaternion of the rotation. A zero angle or a zero axis is the identity.
func (r4 *R4AA) ToQuat() quat.Number {
	axis := r4.axis()
	if r4.Theta == 0 || axis.Norm() == 0 {
		return quat.Number{Real: 1}
	}
	s := math.Sin(r4.Theta / 2)
	return quat.Number{Real: math.Cos(r4.Theta / 2), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// axis returns the rotation axis scaled to unit length, or the zero vector.
func (r4 *R4AA) axis() r3.Vector {
	v := r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}
	if n := v.Norm(); n > 0 {
		return v.Mul(1 / n)
	}
	return v
}

// R3ToR4 converts a rotation vector to an axis angle.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta == 0 {
		return NewR4AA()
	}
	return &R4AA{Theta: theta, RX: aa.X / theta, RY: aa.Y / theta, RZ: aa.Z / theta}
}
