package epipolar

import (
	"github.com/golang/geo/r2"
)

// SpatialIndex answers "which features are near this point" over a set of staggered ImageGrids. A
// point is close to a cell boundary in at most some of the grids, so the union of the closest cells
// covers the neighbourhood of the point.
type SpatialIndex struct {
	grids []*ImageGrid
}

// gridOffsets returns the origin offsets, in units of cells, of the staggered grids. Only a single
// grid or the four half cell shifts are supported; any count other than 1 gets four grids.
func gridOffsets(numGrids int) []r2.Point {
	if numGrids == 1 {
		return []r2.Point{{X: 0, Y: 0}}
	}
	return []r2.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 0, Y: 0.5}, {X: 0.5, Y: 0.5}}
}

// NewSpatialIndex returns an empty index of one or four grids with the given cell size.
func NewSpatialIndex(cellSize float64, numGrids int) *SpatialIndex {
	offsets := gridOffsets(numGrids)
	grids := make([]*ImageGrid, 0, len(offsets))
	for _, off := range offsets {
		grids = append(grids, NewImageGrid(cellSize, off.X*cellSize, off.Y*cellSize))
	}
	return &SpatialIndex{grids: grids}
}

// AddFeature inserts index at p in every grid.
func (si *SpatialIndex) AddFeature(index int, p r2.Point) {
	for _, g := range si.grids {
		g.AddFeature(index, p.X, p.Y)
	}
}

// FeaturesNear calls visit for every feature stored in the cell closest to p of each grid. A feature
// may be visited more than once.
func (si *SpatialIndex) FeaturesNear(p r2.Point, visit func(int)) {
	for _, g := range si.grids {
		for _, idx := range g.FeaturesInCell(g.ClosestCellCenter(p.X, p.Y)) {
			visit(idx)
		}
	}
}

// NumGrids returns the number of staggered grids.
func (si *SpatialIndex) NumGrids() int {
	return len(si.grids)
}
