package tilematrix

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

var ErrEmptyTileMatrixSet = errors.New("tile matrix set has no levels")

// Registry resolves tile matrix identifiers of one set to their level.
// It is built once and only read afterwards, so it needs no locking.
type Registry struct {
	set      *TileMatrixSet
	byID     map[string]*TileMatrix
	envelope orb.Bound
}

func NewRegistry(set *TileMatrixSet) (*Registry, error) {
	if set == nil || len(set.Matrices) == 0 {
		return nil, ErrEmptyTileMatrixSet
	}

	byID := make(map[string]*TileMatrix, len(set.Matrices))
	for i := range set.Matrices {
		m := &set.Matrices[i]
		if _, dup := byID[m.Identifier]; dup {
			return nil, fmt.Errorf("tile matrix set %q: duplicate tile matrix %q", set.Identifier, m.Identifier)
		}
		if m.NumTilesX < 0 || m.NumTilesY < 0 {
			return nil, fmt.Errorf("tile matrix set %q: tile matrix %q has negative extent", set.Identifier, m.Identifier)
		}
		byID[m.Identifier] = m
	}

	return &Registry{
		set:      set,
		byID:     byID,
		envelope: set.Envelope(),
	}, nil
}

func (r *Registry) Level(identifier string) (*TileMatrix, bool) {
	m, ok := r.byID[identifier]
	return m, ok
}

func (r *Registry) OrdinalOf(identifier string) (int, bool) {
	m, ok := r.byID[identifier]
	if !ok {
		return 0, false
	}
	return m.Ordinal, true
}

func (r *Registry) BoundsOf(identifier string) (numTilesX, numTilesY int64, ok bool) {
	m, ok := r.byID[identifier]
	if !ok {
		return 0, 0, false
	}
	return m.NumTilesX, m.NumTilesY, true
}

func (r *Registry) Levels() []TileMatrix {
	return r.set.Matrices
}

func (r *Registry) Set() *TileMatrixSet {
	return r.set
}

// Envelope is the spatial extent of the set, computed once in NewRegistry.
func (r *Registry) Envelope() orb.Bound {
	return r.envelope
}
