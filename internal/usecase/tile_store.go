package usecase

import (
	"context"
	"fmt"
	"sort"
)

// TileStore groups the datasets served from one backend.
type TileStore struct {
	datasets map[string]*TileLookupUseCase
	ids      []string
}

func NewTileStore(datasets ...*TileLookupUseCase) (*TileStore, error) {
	s := &TileStore{
		datasets: make(map[string]*TileLookupUseCase, len(datasets)),
	}
	for _, ds := range datasets {
		id := ds.Metadata().Identifier
		if _, dup := s.datasets[id]; dup {
			return nil, fmt.Errorf("duplicate dataset %q", id)
		}
		s.datasets[id] = ds
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)

	return s, nil
}

func (s *TileStore) Dataset(id string) (*TileLookupUseCase, bool) {
	ds, ok := s.datasets[id]
	return ds, ok
}

// Resolve looks the tile up in dataset. An unknown dataset is reported like
// a missing tile.
func (s *TileStore) Resolve(ctx context.Context, dataset, matrixID string, x, y int64) (Tile, bool, error) {
	ds, ok := s.datasets[dataset]
	if !ok {
		return Tile{}, false, nil
	}
	return ds.Resolve(ctx, matrixID, x, y)
}

func (s *TileStore) Metadata(dataset string) (DatasetMetadata, bool) {
	ds, ok := s.datasets[dataset]
	if !ok {
		return DatasetMetadata{}, false
	}
	return ds.Metadata(), true
}

// Datasets returns the metadata of all datasets ordered by identifier.
func (s *TileStore) Datasets() []DatasetMetadata {
	out := make([]DatasetMetadata, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.datasets[id].Metadata())
	}
	return out
}
