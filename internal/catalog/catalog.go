// Package catalog loads the YAML description of the served datasets and
// the tile matrix sets they are tiled with.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/tilematrix"
	"github.com/paulmach/orb"
	"gopkg.in/yaml.v2"
)

const (
	defaultTileSize = 256
)

var (
	ErrUnknownTileMatrixSet = errors.New("unknown tile matrix set")
	ErrSharedNamespace      = errors.New("datasets share a storage namespace")
)

// namespace is the part of the storage key space a dataset owns.
type namespace struct {
	table   string
	mimeTag string
}

type (
	File struct {
		TileMatrixSets []TileMatrixSetSpec `yaml:"tileMatrixSets" validate:"required,min=1,dive"`
		Datasets       []DatasetSpec       `yaml:"datasets" validate:"required,min=1,dive"`
	}

	TileMatrixSetSpec struct {
		Identifier string           `yaml:"identifier" validate:"required"`
		CRS        string           `yaml:"crs" validate:"required"`
		Matrices   []TileMatrixSpec `yaml:"tileMatrices" validate:"required,min=1,dive"`
	}

	TileMatrixSpec struct {
		Identifier   string    `yaml:"identifier" validate:"required"`
		MatrixWidth  int64     `yaml:"matrixWidth" validate:"gt=0"`
		MatrixHeight int64     `yaml:"matrixHeight" validate:"gt=0"`
		TopLeft      []float64 `yaml:"topLeftCorner" validate:"omitempty,len=2"`
		Resolution   float64   `yaml:"resolution" validate:"gt=0"`
		TileWidth    int       `yaml:"tileWidth" validate:"gte=0"`
		TileHeight   int       `yaml:"tileHeight" validate:"gte=0"`
	}

	DatasetSpec struct {
		Identifier    string `yaml:"identifier" validate:"required,excludesall=/"`
		TileMatrixSet string `yaml:"tileMatrixSet" validate:"required"`
		Table         string `yaml:"table"`
		MimeType      string `yaml:"mimeType" validate:"required,excludesall=0x7C"`
		// AccessTimestamp enables last-access bookkeeping for the dataset.
		AccessTimestamp bool `yaml:"accessTimestamp"`
		// ReadConsistency and WriteConsistency override the service wide
		// levels when set.
		ReadConsistency  string `yaml:"readConsistency"`
		WriteConsistency string `yaml:"writeConsistency"`
	}
)

// Dataset is a validated catalog entry.
type Dataset struct {
	Identifier      string
	Table           string
	MimeType        string
	AccessTimestamp bool
	Registry        *tilematrix.Registry

	// Nil when not overridden.
	ReadConsistency  *storage.Consistency
	WriteConsistency *storage.Consistency
}

type Catalog struct {
	Registries map[string]*tilematrix.Registry
	Datasets   []Dataset
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return build(f)
}

func build(f File) (*Catalog, error) {
	c := &Catalog{
		Registries: make(map[string]*tilematrix.Registry, len(f.TileMatrixSets)),
	}

	for _, spec := range f.TileMatrixSets {
		if _, dup := c.Registries[spec.Identifier]; dup {
			return nil, fmt.Errorf("duplicate tile matrix set %q", spec.Identifier)
		}

		set := tilematrix.NewTileMatrixSet(spec.Identifier, spec.CRS, toMatrices(spec.Matrices))
		if err := storage.CheckRepresentable(set); err != nil {
			return nil, fmt.Errorf("tile matrix set %q: %w", spec.Identifier, err)
		}

		r, err := tilematrix.NewRegistry(set)
		if err != nil {
			return nil, fmt.Errorf("tile matrix set %q: %w", spec.Identifier, err)
		}
		c.Registries[spec.Identifier] = r
	}

	seen := make(map[string]struct{}, len(f.Datasets))
	// keys only carry the mime tag, so two datasets sharing a table and a
	// tag would read each other's tiles. Table names compare case-insensitively
	// as in CQL and SQLite.
	namespaces := make(map[namespace]string, len(f.Datasets))
	for _, spec := range f.Datasets {
		if _, dup := seen[spec.Identifier]; dup {
			return nil, fmt.Errorf("duplicate dataset %q", spec.Identifier)
		}
		seen[spec.Identifier] = struct{}{}

		ds, err := c.dataset(spec)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", spec.Identifier, err)
		}

		ns := namespace{table: strings.ToLower(ds.Table), mimeTag: storage.MimeTag(ds.MimeType)}
		if other, dup := namespaces[ns]; dup {
			return nil, fmt.Errorf("%w: datasets %q and %q both use table %q with key prefix %q",
				ErrSharedNamespace, other, ds.Identifier, ns.table, ns.mimeTag)
		}
		namespaces[ns] = ds.Identifier

		c.Datasets = append(c.Datasets, ds)
	}

	return c, nil
}

func (c *Catalog) dataset(spec DatasetSpec) (Dataset, error) {
	r, ok := c.Registries[spec.TileMatrixSet]
	if !ok {
		return Dataset{}, fmt.Errorf("%w %q", ErrUnknownTileMatrixSet, spec.TileMatrixSet)
	}

	table := spec.Table
	if table == "" {
		table = storage.DefaultTable
	}
	if err := storage.ValidateTableName(table); err != nil {
		return Dataset{}, err
	}

	ds := Dataset{
		Identifier:      spec.Identifier,
		Table:           table,
		MimeType:        spec.MimeType,
		AccessTimestamp: spec.AccessTimestamp,
		Registry:        r,
	}

	if spec.ReadConsistency != "" {
		level, err := storage.ParseReadConsistency(spec.ReadConsistency)
		if err != nil {
			return Dataset{}, err
		}
		ds.ReadConsistency = &level
	}
	if spec.WriteConsistency != "" {
		level, err := storage.ParseWriteConsistency(spec.WriteConsistency)
		if err != nil {
			return Dataset{}, err
		}
		ds.WriteConsistency = &level
	}

	return ds, nil
}

func toMatrices(specs []TileMatrixSpec) []tilematrix.TileMatrix {
	out := make([]tilematrix.TileMatrix, 0, len(specs))
	for _, s := range specs {
		m := tilematrix.TileMatrix{
			Identifier: s.Identifier,
			NumTilesX:  s.MatrixWidth,
			NumTilesY:  s.MatrixHeight,
			Resolution: s.Resolution,
			TileWidth:  s.TileWidth,
			TileHeight: s.TileHeight,
		}
		if len(s.TopLeft) == 2 {
			m.TopLeft = orb.Point{s.TopLeft[0], s.TopLeft[1]}
		}
		if m.TileWidth == 0 {
			m.TileWidth = defaultTileSize
		}
		if m.TileHeight == 0 {
			m.TileHeight = defaultTileSize
		}
		out = append(out, m)
	}
	return out
}
