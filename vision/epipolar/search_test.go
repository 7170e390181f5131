package epipolar

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/guidedmatch/rimage/transform"
	"go.viam.com/guidedmatch/utils"
)

func TestSampleSegment(t *testing.T) {
	samples := sampleSegment(r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, 2)
	test.That(t, samples, test.ShouldHaveLength, 4)
	test.That(t, samples[0], test.ShouldResemble, r2.Point{X: 0, Y: 0})
	test.That(t, samples[3], test.ShouldResemble, r2.Point{X: 5, Y: 0})
	for i := 1; i < len(samples); i++ {
		test.That(t, samples[i].Sub(samples[i-1]).Norm(), test.ShouldBeLessThanOrEqualTo, 2)
	}

	// a point still yields both endpoints
	test.That(t, sampleSegment(r2.Point{X: 1, Y: 1}, r2.Point{X: 1, Y: 1}, 2), test.ShouldHaveLength, 2)

	samples = sampleSegment(r2.Point{X: 0, Y: 0}, r2.Point{X: 3, Y: 4}, 1)
	test.That(t, samples, test.ShouldHaveLength, 6)
	test.That(t, samples[1].X, test.ShouldAlmostEqual, 0.6)
	test.That(t, samples[1].Y, test.ShouldAlmostEqual, 0.8)
}

func TestEpilineGrouper(t *testing.T) {
	line := func(x0, y0, x1, y1 float64) [2]r2.Point {
		return [2]r2.Point{{X: x0, Y: y0}, {X: x1, Y: y1}}
	}
	eg := newEpilineGrouper(0.5)
	eg.add(0, line(0, 10, 100, 20))
	eg.add(1, line(0, 30, 100, 40))
	eg.add(2, line(0.3, 10.2, 100, 19.8))
	// first endpoint matches but second does not
	eg.add(3, line(0, 10, 100, 25))
	// straddles a bucket boundary
	eg.add(4, line(0.1, 29.6, 100.2, 40.1))
	eg.add(5, line(0, 10, 100, 20))

	test.That(t, eg.groups, test.ShouldHaveLength, 3)
	test.That(t, eg.groups[0].Features, test.ShouldResemble, []int{0, 2, 5})
	test.That(t, eg.groups[0].Endpoints, test.ShouldResemble, line(0, 10, 100, 20))
	// identical lines are searched once
	test.That(t, eg.groups[0].Lines, test.ShouldResemble, [][2]r2.Point{line(0, 10, 100, 20), line(0.3, 10.2, 100, 19.8)})
	test.That(t, eg.groups[1].Features, test.ShouldResemble, []int{1, 4})
	test.That(t, eg.groups[2].Features, test.ShouldResemble, []int{3})

	disabled := newEpilineGrouper(0)
	disabled.add(0, line(0, 10, 100, 20))
	disabled.add(1, line(0, 10, 100, 20))
	test.That(t, disabled.groups, test.ShouldHaveLength, 2)
	test.That(t, disabled.groups[1].Lines, test.ShouldResemble, [][2]r2.Point{line(0, 10, 100, 20)})
}

func TestEpilineGrouperNearVerticalLines(t *testing.T) {
	box := r2.RectFromPoints(r2.Point{X: 0, Y: 0}, r2.Point{X: 200, Y: 50})
	// both lines run from about (100, 0) to about (100, 50) but lean in opposite directions, so
	// clipping orders their endpoints differently
	first, ok := transform.ClipLineToRect(r3.Vector{X: 1, Y: -0.002, Z: -100}, box)
	test.That(t, ok, test.ShouldBeTrue)
	second, ok := transform.ClipLineToRect(r3.Vector{X: 1, Y: 0.001, Z: -100.05}, box)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, first[0].Y, test.ShouldAlmostEqual, 0)
	test.That(t, second[0].Y, test.ShouldAlmostEqual, 50)

	eg := newEpilineGrouper(0.5)
	eg.add(0, first)
	eg.add(1, second)
	test.That(t, eg.groups, test.ShouldHaveLength, 1)
	test.That(t, eg.groups[0].Features, test.ShouldResemble, []int{0, 1})
	// the second line is stored in the representative's order
	test.That(t, eg.groups[0].Lines[1][0].Y, test.ShouldAlmostEqual, 0)
	test.That(t, eg.groups[0].Lines[1][1].Y, test.ShouldAlmostEqual, 50)
}

func TestEpilineGrouperPrefersEarliestGroup(t *testing.T) {
	eg := newEpilineGrouper(0.5)
	eg.add(0, [2]r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}})
	eg.add(1, [2]r2.Point{{X: 0, Y: 0.8}, {X: 10, Y: 0.8}})
	// within tolerance of both groups
	eg.add(2, [2]r2.Point{{X: 0, Y: 0.4}, {X: 10, Y: 0.4}})
	test.That(t, eg.groups, test.ShouldHaveLength, 2)
	test.That(t, eg.groups[0].Features, test.ShouldResemble, []int{0, 2})
}

func TestNearestTwo(t *testing.T) {
	descriptors := [][]float64{{0}, {9}, {3}, {7}, {1}, {1}, {8}, {1}}
	query := []float64{0}

	nn, err := nearestTwo(query, []int{2, 5, 7}, descriptors, utils.Euclidean, nil)
	test.That(t, err, test.ShouldBeNil)
	// equal distances keep the lower index first
	test.That(t, nn, test.ShouldResemble, []neighbor{{Index: 5, Distance: 1}, {Index: 7, Distance: 1}})

	nn, err = nearestTwo(query, []int{1, 3, 6}, descriptors, utils.Euclidean, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nn, test.ShouldResemble, []neighbor{{Index: 3, Distance: 7}, {Index: 6, Distance: 8}})

	nn, err = nearestTwo(query, []int{1, 4, 5}, descriptors, utils.Euclidean, func(idx int) bool { return idx == 4 })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nn, test.ShouldResemble, []neighbor{{Index: 5, Distance: 1}, {Index: 1, Distance: 9}})

	nn, err = nearestTwo(query, []int{3}, descriptors, utils.Euclidean, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nn, test.ShouldHaveLength, 1)

	nn, err = nearestTwo(query, nil, descriptors, utils.Euclidean, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nn, test.ShouldBeEmpty)

	_, err = nearestTwo([]float64{0, 1}, []int{0}, descriptors, utils.Euclidean, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNearestTwoHamming(t *testing.T) {
	descriptors := [][]float64{{0b1111}, {0b0001}, {0b0011}}
	nn, err := nearestTwo([]float64{0}, []int{0, 1, 2}, descriptors, utils.Hamming, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nn, test.ShouldResemble, []neighbor{{Index: 1, Distance: 1}, {Index: 2, Distance: 2}})
}

func TestPassesRatioTest(t *testing.T) {
	test.That(t, passesRatioTest([]neighbor{{Distance: 1}, {Distance: 2}}, 0.8), test.ShouldBeTrue)
	test.That(t, passesRatioTest([]neighbor{{Distance: 1}, {Distance: 1.25}}, 0.8), test.ShouldBeFalse)
	test.That(t, passesRatioTest([]neighbor{{Distance: 0}, {Distance: 0}}, 0.8), test.ShouldBeFalse)
	test.That(t, passesRatioTest([]neighbor{{Distance: 0}}, 0.8), test.ShouldBeFalse)
	test.That(t, passesRatioTest([]neighbor{{Distance: 1}, {Distance: math.Inf(1)}}, 0.8), test.ShouldBeTrue)
}
