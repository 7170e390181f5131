package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateCameras is returned when two cameras do not define an epipolar geometry, e.g. they
// share the same center.
var ErrDegenerateCameras = errors.New("cameras do not define an epipolar geometry")

// minBaseline is the smallest camera center separation that still defines an epipolar geometry.
const minBaseline = 1e-9

// RelativePose returns the rotation and translation taking points from the frame of cam1 to the
// frame of cam2: x2 = R * x1 + t.
func RelativePose(cam1, cam2 *Camera) (*mat.Dense, r3.Vector) {
	r1 := cam1.Orientation.RotationMatrix()
	r2m := cam2.Orientation.RotationMatrix()

	var rel mat.Dense
	rel.Mul(r2m.Mat(), r1.Mat().T())
	t := r2m.Mul(cam1.Position.Sub(cam2.Position))
	return &rel, t
}

// FundamentalMatrixFromCameras computes the fundamental matrix F such that x2^T * F * x1 = 0 for
// corresponding pixels x1 in cam1 and x2 in cam2. The result is scaled to unit Frobenius norm.
func FundamentalMatrixFromCameras(cam1, cam2 *Camera) (*mat.Dense, error) {
	if err := cam1.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "camera 1")
	}
	if err := cam2.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "camera 2")
	}
	if cam1.Position.Sub(cam2.Position).Norm() < minBaseline {
		return nil, errors.Wrap(ErrDegenerateCameras, "camera centers coincide")
	}

	var k1Inv, k2Inv mat.Dense
	if err := k1Inv.Inverse(cam1.CalibrationMatrix()); err != nil {
		return nil, NewNoIntrinsicsError("camera 1 calibration matrix is singular")
	}
	if err := k2Inv.Inverse(cam2.CalibrationMatrix()); err != nil {
		return nil, NewNoIntrinsicsError("camera 2 calibration matrix is singular")
	}

	rel, t := RelativePose(cam1, cam2)
	// E = [t]x * R
	var essMat mat.Dense
	essMat.Mul(getCrossProductMatFromPoint(t), rel)

	// F = K2^-T * E * K1^-1
	var f mat.Dense
	f.Mul(k2Inv.T(), &essMat)
	f.Mul(&f, &k1Inv)

	norm := mat.Norm(&f, 2)
	if norm < 1e-12 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, errors.Wrap(ErrDegenerateCameras, "fundamental matrix vanishes")
	}
	f.Scale(1/norm, &f)
	return &f, nil
}

// getCrossProductMatFromPoint returns the cross product with point p matrix.
func getCrossProductMatFromPoint(p r3.Vector) *mat.Dense {
	cross := mat.NewDense(3, 3, nil)
	cross.Set(0, 1, -p.Z)
	cross.Set(0, 2, p.Y)
	cross.Set(1, 0, p.Z)
	cross.Set(1, 2, -p.X)
	cross.Set(2, 0, -p.Y)
	cross.Set(2, 1, p.X)
	return cross
}

// ComputeFundamentalMatrixAllPoints compute the fundamental matrix from all points with the linear
// 8 point algorithm. The result is scaled so that F[2][2] is 1 when possible.
func ComputeFundamentalMatrixAllPoints(pts1, pts2 []r2.Point, normalize bool) (*mat.Dense, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	if len(pts1) < 8 {
		return nil, errors.New("sets of points must have at least 8 elements")
	}
	nPoints := len(pts1)

	var points1, points2 []r2.Point
	var T1, T2 *mat.Dense

	// if normalize, normalize points and get transform
	if normalize {
		points1, T1 = normalizePoints(pts1)
		points2, T2 = normalizePoints(pts2)
	} else {
		points1 = pts1
		points2 = pts2
		T1 = eye(3)
		T2 = eye(3)
	}

	m := mat.NewDense(nPoints, 9, nil)
	for i := range points1 {
		v1 := points1[i]
		v2 := points2[i]
		m.SetRow(i, []float64{
			v2.X * v1.X, v2.X * v1.Y, v2.X,
			v2.Y * v1.X, v2.Y * v1.Y, v2.Y,
			v1.X, v1.Y, 1,
		})
	}

	mats1, err := performSVD(m)
	if err != nil {
		return nil, err
	}
	lastColV := mats1.V.ColView(8)
	lastColVdata := make([]float64, 9)
	for i := range lastColVdata {
		lastColVdata[i] = lastColV.AtVec(i)
	}
	F := mat.NewDense(3, 3, lastColVdata)

	// enforce rank 2 of F
	mats2, err := performSVD(F)
	if err != nil {
		return nil, err
	}
	S := mats2.S
	S.Set(2, 2, 0)
	Fhat := mat.NewDense(3, 3, nil)
	Fhat.Mul(mats2.U, S)
	F.Mul(Fhat, mats2.VT)

	// undo normalization: T2^T @ F @ T1
	F.Mul(T2.T(), F)
	F.Mul(F, T1)

	if f22 := F.At(2, 2); math.Abs(f22) > 1e-12 {
		F.Scale(1/f22, F)
	}
	return F, nil
}

// normalizePoints normalizes points as described in Multiple View Geometry, Alg 11.1.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	nPoints := len(pts)
	mu := r2.Point{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1. / float64(nPoints))

	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / float64(nPoints)
	}
	scale := 1.0
	if d > 0 {
		scale = math.Sqrt(2) / d
	}
	T := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	})
	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = pts[i].Sub(mu).Mul(scale)
	}
	return pointsTransformed, T
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// matsSVD stores the matrices from SVD decomposition.
type matsSVD struct {
	U  *mat.Dense
	V  *mat.Dense
	VT *mat.Dense
	S  *mat.Dense
}

// performSVD performs SVD on inputMatrix and returns matrices U, Sigma and V from the decomposition.
func performSVD(inputMatrix *mat.Dense) (*matsSVD, error) {
	var svd mat.SVD
	if ok := svd.Factorize(inputMatrix, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize matrix")
	}

	u, v, sigma, vt := &mat.Dense{}, &mat.Dense{}, &mat.Dense{}, &mat.Dense{}
	svd.UTo(u)
	svd.VTo(v)
	vt.CloneFrom(v.T())

	singularValues := svd.Values(nil)
	sigma.CloneFrom(mat.NewDiagDense(len(singularValues), singularValues))

	return &matsSVD{u, v, vt, sigma}, nil
}
