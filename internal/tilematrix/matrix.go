// Package tilematrix holds the tile matrix set metadata a dataset is served
// with: level bounds, row inversion and tile geometry.
package tilematrix

import (
	"github.com/paulmach/orb"
)

// TileMatrix is one zoom level of a tile matrix set.
//
// Rows are numbered from the top of the matrix (row 0 touches TopLeft) while
// the storage keys count rows from the bottom, see InvertRow.
type TileMatrix struct {
	Identifier string
	// Ordinal is the position of the matrix inside its set, assigned by
	// NewTileMatrixSet.
	Ordinal   int
	NumTilesX int64
	NumTilesY int64

	// TopLeft is the upper left corner of the matrix in CRS units.
	TopLeft orb.Point
	// Resolution is the size of one pixel in CRS units.
	Resolution float64
	TileWidth  int
	TileHeight int
}

// Contains reports whether (x, y) addresses a tile inside the matrix.
func (m *TileMatrix) Contains(x, y int64) bool {
	return x >= 0 && y >= 0 && x < m.NumTilesX && y < m.NumTilesY
}

// InvertRow converts between top-down and bottom-up row numbering.
// InvertRow(InvertRow(y)) == y for every row of the matrix.
func (m *TileMatrix) InvertRow(y int64) int64 {
	return m.NumTilesY - 1 - y
}

// ValidateAndInvert returns the bottom-up row for (x, y). ok is false when
// the coordinate lies outside the matrix, which is a regular outcome for
// clients panning past the edge of the data.
func (m *TileMatrix) ValidateAndInvert(x, y int64) (invertedY int64, ok bool) {
	if !m.Contains(x, y) {
		return 0, false
	}
	return m.InvertRow(y), true
}

// TileSpan is the extent of a single tile in CRS units.
func (m *TileMatrix) TileSpan() (width, height float64) {
	return float64(m.TileWidth) * m.Resolution, float64(m.TileHeight) * m.Resolution
}

// Envelope is the extent of the whole matrix.
func (m *TileMatrix) Envelope() orb.Bound {
	w, h := m.TileSpan()
	return orb.Bound{
		Min: orb.Point{m.TopLeft.X(), m.TopLeft.Y() - h*float64(m.NumTilesY)},
		Max: orb.Point{m.TopLeft.X() + w*float64(m.NumTilesX), m.TopLeft.Y()},
	}
}

// TileEnvelope is the extent of tile (x, y), y counted from the top.
func (m *TileMatrix) TileEnvelope(x, y int64) orb.Bound {
	w, h := m.TileSpan()
	minX := m.TopLeft.X() + float64(x)*w
	maxY := m.TopLeft.Y() - float64(y)*h
	return orb.Bound{
		Min: orb.Point{minX, maxY - h},
		Max: orb.Point{minX + w, maxY},
	}
}

// TileMatrixSet is the ordered list of levels a dataset is tiled with.
// It is not modified after construction.
type TileMatrixSet struct {
	Identifier string
	CRS        string
	Matrices   []TileMatrix
}

// NewTileMatrixSet copies matrices and assigns each its ordinal.
func NewTileMatrixSet(identifier, crs string, matrices []TileMatrix) *TileMatrixSet {
	ms := make([]TileMatrix, len(matrices))
	copy(ms, matrices)
	for i := range ms {
		ms[i].Ordinal = i
	}

	return &TileMatrixSet{
		Identifier: identifier,
		CRS:        crs,
		Matrices:   ms,
	}
}

// Envelope is the union of all level envelopes.
func (s *TileMatrixSet) Envelope() orb.Bound {
	if len(s.Matrices) == 0 {
		return orb.Bound{}
	}

	b := s.Matrices[0].Envelope()
	for i := 1; i < len(s.Matrices); i++ {
		b = b.Union(s.Matrices[i].Envelope())
	}
	return b
}
