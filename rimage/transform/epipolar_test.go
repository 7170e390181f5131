package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestClipLineToRect(t *testing.T) {
	box := BoundingRect([]r2.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 3, Y: 7}})
	test.That(t, box.X.Lo, test.ShouldEqual, 0)
	test.That(t, box.Y.Hi, test.ShouldEqual, 10)

	t.Run("horizontal", func(t *testing.T) {
		ends, ok := ClipLineToRect(r3.Vector{X: 0, Y: 1, Z: -5}, box)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, ends, test.ShouldResemble, [2]r2.Point{{X: 0, Y: 5}, {X: 10, Y: 5}})
	})

	t.Run("diagonal through corners", func(t *testing.T) {
		ends, ok := ClipLineToRect(r3.Vector{X: 1, Y: -1, Z: 0}, box)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, ends, test.ShouldResemble, [2]r2.Point{{X: 0, Y: 0}, {X: 10, Y: 10}})
	})

	t.Run("canonical order", func(t *testing.T) {
		ends, ok := ClipLineToRect(r3.Vector{X: 1, Y: 1, Z: -10}, box)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, ends, test.ShouldResemble, [2]r2.Point{{X: 0, Y: 10}, {X: 10, Y: 0}})

		// same line, opposite sign
		flipped, ok := ClipLineToRect(r3.Vector{X: -1, Y: -1, Z: 10}, box)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, flipped, test.ShouldResemble, ends)
	})

	t.Run("along an edge", func(t *testing.T) {
		ends, ok := ClipLineToRect(r3.Vector{X: 0, Y: 1, Z: 0}, box)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, ends, test.ShouldResemble, [2]r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}})
	})

	t.Run("corner tangent", func(t *testing.T) {
		_, ok := ClipLineToRect(r3.Vector{X: 1, Y: 1, Z: 0}, box)
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("miss", func(t *testing.T) {
		_, ok := ClipLineToRect(r3.Vector{X: 0, Y: 1, Z: -20}, box)
		test.That(t, ok, test.ShouldBeFalse)
		_, ok = ClipLineToRect(r3.Vector{}, box)
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("empty box", func(t *testing.T) {
		_, ok := ClipLineToRect(r3.Vector{X: 0, Y: 1, Z: -5}, BoundingRect(nil))
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestPointToLineDistance(t *testing.T) {
	line := r3.Vector{X: 3, Y: 4, Z: -10}
	test.That(t, PointToLineDistance(line, r2.Point{X: 0, Y: 0}), test.ShouldAlmostEqual, 2)
	test.That(t, PointToLineDistance(line, r2.Point{X: 2, Y: 1}), test.ShouldAlmostEqual, 0)
	test.That(t, math.IsInf(PointToLineDistance(r3.Vector{Z: 1}, r2.Point{}), 1), test.ShouldBeTrue)
}
