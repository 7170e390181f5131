package epipolar

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// ImageGrid buckets feature indices into square cells of an image plane. The grid origin is shifted by
// (offsetX, offsetY) so several grids can be staggered over the same image.
type ImageGrid struct {
	cellSize float64
	offsetX  float64
	offsetY  float64
	cells    map[int64][]int
}

// NewImageGrid returns an empty grid with the given cell size and origin offset.
func NewImageGrid(cellSize, offsetX, offsetY float64) *ImageGrid {
	return &ImageGrid{
		cellSize: cellSize,
		offsetX:  offsetX,
		offsetY:  offsetY,
		cells:    make(map[int64][]int),
	}
}

// CellSize returns the side length of a cell.
func (g *ImageGrid) CellSize() float64 {
	return g.cellSize
}

// CellOf returns the cell containing (x, y).
func (g *ImageGrid) CellOf(x, y float64) image.Point {
	return image.Point{
		X: int(math.Floor((x - g.offsetX) / g.cellSize)),
		Y: int(math.Floor((y - g.offsetY) / g.cellSize)),
	}
}

// AddFeature stores index in the cell containing (x, y).
func (g *ImageGrid) AddFeature(index int, x, y float64) {
	key := cellKey(g.CellOf(x, y))
	g.cells[key] = append(g.cells[key], index)
}

// ClosestCellCenter returns the cell whose center is nearest to (x, y). A point equidistant to two
// centers along an axis resolves to the lower cell coordinate.
func (g *ImageGrid) ClosestCellCenter(x, y float64) image.Point {
	// center of cell i is at i + 0.5 in cell units; the nearest with ties going down is ceil(u) - 1
	return image.Point{
		X: int(math.Ceil((x-g.offsetX)/g.cellSize)) - 1,
		Y: int(math.Ceil((y-g.offsetY)/g.cellSize)) - 1,
	}
}

// CellCenter returns the center of cell in image coordinates.
func (g *ImageGrid) CellCenter(cell image.Point) r2.Point {
	return r2.Point{
		X: g.offsetX + (float64(cell.X)+0.5)*g.cellSize,
		Y: g.offsetY + (float64(cell.Y)+0.5)*g.cellSize,
	}
}

// FeaturesInCell returns the indices stored in cell, in insertion order. The returned slice must not be
// modified.
func (g *ImageGrid) FeaturesInCell(cell image.Point) []int {
	if features, ok := g.cells[cellKey(cell)]; ok {
		return features
	}
	return []int{}
}

// NumCells returns the number of non empty cells.
func (g *ImageGrid) NumCells() int {
	return len(g.cells)
}

// cellKey packs both cell coordinates into one map key.
func cellKey(cell image.Point) int64 {
	return int64(cell.X)<<32 | int64(uint32(int32(cell.Y)))
}
