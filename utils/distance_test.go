package utils

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"go.viam.com/test"
)

func TestEuclideanDistance(t *testing.T) {
	d, err := EuclideanDistance([]float64{0, 0, 0}, []float64{1, 2, 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldAlmostEqual, 3.0)

	_, err = EuclideanDistance([]float64{0}, []float64{1, 2})
	test.That(t, err, test.ShouldBeError, ErrDescriptorLengthMismatch)
}

func TestHammingDistance(t *testing.T) {
	// one bit per component
	d, err := HammingDistance([]float64{0, 1, 1, 0}, []float64{1, 1, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, 2)

	// packed bytes
	d, err = HammingDistance([]float64{0xFF, 0x0F}, []float64{0x00, 0x0E})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, 9)

	d, err = HammingDistance([]float64{math.MaxUint32}, []float64{0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, 32)

	for _, bad := range []float64{-1, 0.5, math.NaN(), math.Inf(1), 1 << 64} {
		_, err = HammingDistance([]float64{0, bad}, []float64{0, 1})
		test.That(t, errors.Is(err, ErrInvalidBinaryWord), test.ShouldBeTrue)
		_, err = HammingDistance([]float64{1}, []float64{bad})
		test.That(t, errors.Is(err, ErrInvalidBinaryWord), test.ShouldBeTrue)
	}
}

func TestPairwiseDistance(t *testing.T) {
	pts1 := [][]float64{{0, 0}, {3, 4}}
	pts2 := [][]float64{{0, 0}, {6, 8}, {3, 0}}
	dist, err := PairwiseDistance(pts1, pts2, Euclidean)
	test.That(t, err, test.ShouldBeNil)
	r, c := dist.Dims()
	test.That(t, r, test.ShouldEqual, 2)
	test.That(t, c, test.ShouldEqual, 3)
	test.That(t, dist.At(1, 1), test.ShouldAlmostEqual, 5.0)
	test.That(t, dist.At(0, 2), test.ShouldAlmostEqual, 3.0)
	test.That(t, GetArgMinDistancesPerRow(dist), test.ShouldResemble, []int{0, 2})

	_, err = PairwiseDistance(nil, pts2, Euclidean)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = PairwiseDistance(pts1, [][]float64{{1}}, Euclidean)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDistanceTypeParsing(t *testing.T) {
	var dt DistanceType
	test.That(t, json.Unmarshal([]byte(`"hamming"`), &dt), test.ShouldBeNil)
	test.That(t, dt, test.ShouldEqual, Hamming)
	test.That(t, dt.UnmarshalText([]byte("Euclidean")), test.ShouldBeNil)
	test.That(t, dt, test.ShouldEqual, Euclidean)
	test.That(t, json.Unmarshal([]byte(`"cosine"`), &dt), test.ShouldNotBeNil)

	out, err := json.Marshal(Hamming)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"hamming"`)

	d, err := ComputeDistance([]float64{1}, []float64{4}, DistanceType(math.MaxInt8))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldAlmostEqual, 3.0)
}

func TestPairwiseDistanceGroups(t *testing.T) {
	withParallelFactor(t, 3)
	pts1 := make([][]float64, 10)
	for i := range pts1 {
		pts1[i] = []float64{float64(i), 0}
	}
	pts2 := [][]float64{{0, 0}, {0, 1}}
	dist, err := PairwiseDistance(pts1, pts2, Euclidean)
	test.That(t, err, test.ShouldBeNil)
	for i := range pts1 {
		test.That(t, dist.At(i, 0), test.ShouldAlmostEqual, float64(i))
		test.That(t, dist.At(i, 1), test.ShouldAlmostEqual, math.Hypot(float64(i), 1))
	}
}
