package transform

import (
	"math"
	"sort"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// intersectionTolerance merges box/line intersections closer than this, e.g. both edges meeting at a corner.
const intersectionTolerance = 1e-9

// EpipolarLine returns the line l = F * (x, y, 1) in the second image on which the correspondence of
// pixel p from the first image lies. The line is a*x + b*y + c = 0 with (a, b, c) = (l.X, l.Y, l.Z).
func EpipolarLine(f mat.Matrix, p r2.Point) r3.Vector {
	return r3.Vector{
		X: f.At(0, 0)*p.X + f.At(0, 1)*p.Y + f.At(0, 2),
		Y: f.At(1, 0)*p.X + f.At(1, 1)*p.Y + f.At(1, 2),
		Z: f.At(2, 0)*p.X + f.At(2, 1)*p.Y + f.At(2, 2),
	}
}

// PointToLineDistance returns the euclidean distance from p to the line a*x + b*y + c = 0.
func PointToLineDistance(line r3.Vector, p r2.Point) float64 {
	n := math.Hypot(line.X, line.Y)
	if n == 0 {
		return math.Inf(1)
	}
	return math.Abs(line.X*p.X+line.Y*p.Y+line.Z) / n
}

// BoundingRect returns the smallest axis aligned rectangle containing all points.
func BoundingRect(pts []r2.Point) r2.Rect {
	return r2.RectFromPoints(pts...)
}

// ClipLineToRect intersects the line a*x + b*y + c = 0 with the boundary of box. It succeeds only
// when the line crosses the box in exactly two distinct points; a line touching a single corner or
// missing the box is rejected. The endpoints are ordered by ascending x, then ascending y.
func ClipLineToRect(line r3.Vector, box r2.Rect) ([2]r2.Point, bool) {
	var endpoints [2]r2.Point
	if box.IsEmpty() {
		return endpoints, false
	}
	a, b, c := line.X, line.Y, line.Z
	if a == 0 && b == 0 {
		return endpoints, false
	}

	hits := make([]r2.Point, 0, 4)
	addHit := func(p r2.Point) {
		for _, h := range hits {
			if h.Sub(p).Norm() < intersectionTolerance {
				return
			}
		}
		hits = append(hits, p)
	}
	within := func(iv r1.Interval, v float64) bool {
		return v >= iv.Lo-intersectionTolerance && v <= iv.Hi+intersectionTolerance
	}

	// vertical edges
	if b != 0 {
		for _, x := range []float64{box.X.Lo, box.X.Hi} {
			y := -(a*x + c) / b
			if within(box.Y, y) {
				addHit(r2.Point{X: x, Y: box.Y.ClampPoint(y)})
			}
		}
	}
	// horizontal edges
	if a != 0 {
		for _, y := range []float64{box.Y.Lo, box.Y.Hi} {
			x := -(b*y + c) / a
			if within(box.X, x) {
				addHit(r2.Point{X: box.X.ClampPoint(x), Y: y})
			}
		}
	}

	if len(hits) < 2 {
		return endpoints, false
	}
	if len(hits) > 2 {
		// numerically split corner hits; keep the two farthest apart
		best := -1.0
		for i := 0; i < len(hits); i++ {
			for j := i + 1; j < len(hits); j++ {
				if d := hits[i].Sub(hits[j]).Norm(); d > best {
					best = d
					endpoints = [2]r2.Point{hits[i], hits[j]}
				}
			}
		}
	} else {
		endpoints = [2]r2.Point{hits[0], hits[1]}
	}
	pts := endpoints[:]
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	return endpoints, true
}

// MeanEpipolarDistance returns the mean distance from pts2[i] to the epipolar line of pts1[i] under f,
// in image 2 pixels. Both slices must have the same length.
func MeanEpipolarDistance(f mat.Matrix, pts1, pts2 []r2.Point) float64 {
	if len(pts1) == 0 {
		return 0
	}
	var sum float64
	for i := range pts1 {
		sum += PointToLineDistance(EpipolarLine(f, pts1[i]), pts2[i])
	}
	return sum / float64(len(pts1))
}
