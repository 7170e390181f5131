package epipolar

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// EpilineGroup is a set of image 1 features whose epipolar lines, clipped to the image 2 bounding box,
// coincide within the grouping tolerance. The features of a group share one candidate search, which
// covers the line of every member so that the shared candidates are the union of the candidates each
// member would find alone.
type EpilineGroup struct {
	// Endpoints of the clipped line of the first feature of the group.
	Endpoints [2]r2.Point
	// Lines are the distinct clipped lines of the members, starting with Endpoints.
	Lines [][2]r2.Point
	// Features in ascending index order.
	Features []int
}

func newEpilineGroup(feature int, endpoints [2]r2.Point) EpilineGroup {
	return EpilineGroup{Endpoints: endpoints, Lines: [][2]r2.Point{endpoints}, Features: []int{feature}}
}

// join adds feature to the group, recording its line unless an identical one is already present.
func (g *EpilineGroup) join(feature int, endpoints [2]r2.Point) {
	g.Features = append(g.Features, feature)
	for _, line := range g.Lines {
		if line == endpoints {
			return
		}
	}
	g.Lines = append(g.Lines, endpoints)
}

// epilineGrouper assigns clipped epipolar lines to groups. Groups are bucketed by the quantized
// position of their first endpoint so that a new line only has to be compared with the groups of the
// 3x3 buckets around each of its endpoints.
type epilineGrouper struct {
	tolerance float64
	groups    []EpilineGroup
	buckets   map[int64][]int
}

func newEpilineGrouper(tolerance float64) *epilineGrouper {
	return &epilineGrouper{
		tolerance: tolerance,
		buckets:   make(map[int64][]int),
	}
}

func (eg *epilineGrouper) bucketOf(p r2.Point) image.Point {
	return image.Point{
		X: int(math.Floor(p.X / eg.tolerance)),
		Y: int(math.Floor(p.Y / eg.tolerance)),
	}
}

// coincides reports whether endpoints lie within tolerance of the representative line of group, and
// returns them in the representative's order. Near vertical lines may list their endpoints in either
// order, so both are tried.
func (eg *epilineGrouper) coincides(group int, endpoints [2]r2.Point) ([2]r2.Point, bool) {
	rep := eg.groups[group].Endpoints
	near := func(a, b r2.Point) bool { return a.Sub(b).Norm() <= eg.tolerance }
	if near(rep[0], endpoints[0]) && near(rep[1], endpoints[1]) {
		return endpoints, true
	}
	if near(rep[0], endpoints[1]) && near(rep[1], endpoints[0]) {
		return [2]r2.Point{endpoints[1], endpoints[0]}, true
	}
	return endpoints, false
}

// add places feature in the earliest group its line coincides with, or in a new group.
func (eg *epilineGrouper) add(feature int, endpoints [2]r2.Point) {
	if eg.tolerance <= 0 {
		eg.groups = append(eg.groups, newEpilineGroup(feature, endpoints))
		return
	}

	// groups are bucketed by their first endpoint, which may match either end of the new line
	best := -1
	var bestEndpoints [2]r2.Point
	for _, end := range endpoints {
		bucket := eg.bucketOf(end)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for _, group := range eg.buckets[cellKey(bucket.Add(image.Point{X: dx, Y: dy}))] {
					if best >= 0 && group >= best {
						continue
					}
					if oriented, ok := eg.coincides(group, endpoints); ok {
						best = group
						bestEndpoints = oriented
					}
				}
			}
		}
	}
	if best >= 0 {
		eg.groups[best].join(feature, bestEndpoints)
		return
	}

	key := cellKey(eg.bucketOf(endpoints[0]))
	eg.buckets[key] = append(eg.buckets[key], len(eg.groups))
	eg.groups = append(eg.groups, newEpilineGroup(feature, endpoints))
}
