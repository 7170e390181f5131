package epipolar

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/guidedmatch/rimage/transform"
	"go.viam.com/guidedmatch/spatialmath"
	"go.viam.com/guidedmatch/vision/keypoints"
)

func testIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  640,
		Height: 480,
		Fx:     500,
		Fy:     500,
		Ppx:    320,
		Ppy:    240,
	}
}

// stereoCameras returns a rectified pair: the second camera sits one unit along +x, so epipolar
// lines are image rows.
func stereoCameras() (*transform.Camera, *transform.Camera) {
	return transform.NewCamera(testIntrinsics(), nil, r3.Vector{}),
		transform.NewCamera(testIntrinsics(), nil, r3.Vector{X: 1})
}

// rotatedCameras returns a general pair with a small relative rotation.
func rotatedCameras() (*transform.Camera, *transform.Camera) {
	return transform.NewCamera(testIntrinsics(), nil, r3.Vector{}),
		transform.NewCamera(testIntrinsics(), &spatialmath.R4AA{Theta: 0.05, RX: 0, RY: 1, RZ: 0.2}, r3.Vector{X: 1, Y: 0.05, Z: 0.1})
}

func project(t *testing.T, cam *transform.Camera, pt r3.Vector) r2.Point {
	t.Helper()
	px, ok := cam.ProjectPoint(pt)
	test.That(t, ok, test.ShouldBeTrue)
	return px
}

func inImage(p r2.Point) bool {
	return p.X >= 0 && p.X < 640 && p.Y >= 0 && p.Y < 480
}

func oneHot(dim, i int, scale float64) []float64 {
	d := make([]float64, dim)
	d[i] = scale
	return d
}

type testScene struct {
	cam1, cam2 *transform.Camera
	features1  *keypoints.KeypointsAndDescriptors
	features2  *keypoints.KeypointsAndDescriptors
	// truth maps an image 1 feature to the image 2 feature of the same world point.
	truth map[int]int
}

// coplanarScene places three world points and a distractor on a plane containing both camera
// centers, so all of them share one epipolar line. Two more image 2 features lie far from that line.
// The image 2 order is [filler, twin of 2, distractor, twin of 0, filler, twin of 1].
func coplanarScene(t *testing.T, cam1, cam2 *transform.Camera) *testScene {
	t.Helper()
	baseline := cam2.Position.Sub(cam1.Position)
	depthDir := r3.Vector{X: 0, Y: 0.2, Z: 1}
	onPlane := func(a, b float64) r3.Vector {
		return cam1.Position.Add(baseline.Mul(a)).Add(depthDir.Mul(b))
	}
	world := []r3.Vector{onPlane(-1.5, 7), onPlane(0.3, 8), onPlane(1.8, 9)}
	distractor := onPlane(-0.5, 10)

	const dim = 4
	features1 := &keypoints.KeypointsAndDescriptors{ImageName: "left"}
	for i, pt := range world {
		features1.Keypoints = append(features1.Keypoints, project(t, cam1, pt))
		features1.Descriptors = append(features1.Descriptors, oneHot(dim, i, 10))
	}
	features2 := &keypoints.KeypointsAndDescriptors{
		ImageName: "right",
		Keypoints: []r2.Point{
			{X: 600, Y: 50},
			project(t, cam2, world[2]),
			project(t, cam2, distractor),
			project(t, cam2, world[0]),
			{X: 20, Y: 470},
			project(t, cam2, world[1]),
		},
		Descriptors: [][]float64{
			{9, 9, 9, 9},
			oneHot(dim, 2, 10),
			{5, 5, 5, 5},
			oneHot(dim, 0, 10),
			{-9, 9, -9, 9},
			oneHot(dim, 1, 10),
		},
	}
	return &testScene{
		cam1:      cam1,
		cam2:      cam2,
		features1: features1,
		features2: features2,
		truth:     map[int]int{0: 3, 1: 5, 2: 1},
	}
}

// randomScene projects random world points into both cameras of rotatedCameras. Image 2 descriptors
// are the image 1 descriptors plus a little noise, image 2 features are shuffled and numDistractors
// random features are mixed in.
func randomScene(t *testing.T, seed int64, numPoints, numDistractors int) *testScene {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	cam1, cam2 := rotatedCameras()
	const dim = 16
	randomDescriptor := func() []float64 {
		d := make([]float64, dim)
		for i := range d {
			d[i] = 10 * rng.Float64()
		}
		return d
	}

	features1 := &keypoints.KeypointsAndDescriptors{ImageName: "first"}
	var kps2 []r2.Point
	var descs2 [][]float64
	for len(features1.Keypoints) < numPoints {
		pt := r3.Vector{X: -3 + 6*rng.Float64(), Y: -2 + 4*rng.Float64(), Z: 6 + 6*rng.Float64()}
		p1, ok1 := cam1.ProjectPoint(pt)
		p2, ok2 := cam2.ProjectPoint(pt)
		if !ok1 || !ok2 || !inImage(p1) || !inImage(p2) {
			continue
		}
		desc := randomDescriptor()
		noisy := make([]float64, dim)
		for i, v := range desc {
			noisy[i] = v + 0.01*rng.Float64()
		}
		features1.Keypoints = append(features1.Keypoints, p1)
		features1.Descriptors = append(features1.Descriptors, desc)
		kps2 = append(kps2, p2)
		descs2 = append(descs2, noisy)
	}
	for i := 0; i < numDistractors; i++ {
		kps2 = append(kps2, r2.Point{X: 640 * rng.Float64(), Y: 480 * rng.Float64()})
		descs2 = append(descs2, randomDescriptor())
	}

	perm := rng.Perm(len(kps2))
	features2 := &keypoints.KeypointsAndDescriptors{
		ImageName:   "second",
		Keypoints:   make([]r2.Point, len(kps2)),
		Descriptors: make([][]float64, len(kps2)),
	}
	truth := make(map[int]int, numPoints)
	for from, to := range perm {
		features2.Keypoints[to] = kps2[from]
		features2.Descriptors[to] = descs2[from]
		if from < numPoints {
			truth[from] = to
		}
	}
	return &testScene{cam1: cam1, cam2: cam2, features1: features1, features2: features2, truth: truth}
}

// checkInjective asserts that no feature of either image appears in two matches.
func checkInjective(t *testing.T, matches []keypoints.IndexedFeatureMatch) {
	t.Helper()
	seen1 := map[int]bool{}
	seen2 := map[int]bool{}
	for _, match := range matches {
		test.That(t, seen1[match.Feature1Idx], test.ShouldBeFalse)
		test.That(t, seen2[match.Feature2Idx], test.ShouldBeFalse)
		seen1[match.Feature1Idx] = true
		seen2[match.Feature2Idx] = true
	}
}
