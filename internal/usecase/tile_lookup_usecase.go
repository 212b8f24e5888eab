package usecase

import (
	"context"
	"time"

	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/tilematrix"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/metrics"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jaennil/guide_helper/backend/tilestore/internal/usecase"

type DatasetConfig struct {
	Identifier       string
	MimeType         string
	AccessTimestamp  bool
	ReadConsistency  storage.Consistency
	WriteConsistency storage.Consistency
	// FetchTimeout bounds a single backend read, zero leaves it to the
	// backend client.
	FetchTimeout time.Duration
}

type Tile struct {
	Data     []byte
	MimeType string
	Key      storage.Key
	Envelope orb.Bound
}

type DatasetMetadata struct {
	Identifier    string    `json:"identifier"`
	MimeType      string    `json:"mimeType"`
	TileMatrixSet string    `json:"tileMatrixSet"`
	CRS           string    `json:"crs"`
	Envelope      orb.Bound `json:"envelope"`
}

// TileLookupUseCase serves the tiles of one dataset.
type TileLookupUseCase struct {
	cfg      DatasetConfig
	mimeTag  string
	registry *tilematrix.Registry
	conn     storage.Connector
	toucher  *AccessToucher
	logger   logger.Logger
	tracer   trace.Tracer
	metadata DatasetMetadata
}

// NewTileLookupUseCase wires a dataset. toucher may be nil, in which case no
// access timestamps are written regardless of cfg.AccessTimestamp.
func NewTileLookupUseCase(cfg DatasetConfig, registry *tilematrix.Registry, conn storage.Connector, toucher *AccessToucher, l logger.Logger) *TileLookupUseCase {
	set := registry.Set()
	return &TileLookupUseCase{
		cfg:      cfg,
		mimeTag:  storage.MimeTag(cfg.MimeType),
		registry: registry,
		conn:     conn,
		toucher:  toucher,
		logger:   l,
		tracer:   otel.Tracer(tracerName),
		metadata: DatasetMetadata{
			Identifier:    cfg.Identifier,
			MimeType:      cfg.MimeType,
			TileMatrixSet: set.Identifier,
			CRS:           set.CRS,
			Envelope:      registry.Envelope(),
		},
	}
}

func (uc *TileLookupUseCase) Metadata() DatasetMetadata {
	return uc.metadata
}

// KeyFor returns the storage key of tile (x, y) of matrixID. ok is false
// for unknown matrices and coordinates outside the matrix.
func (uc *TileLookupUseCase) KeyFor(matrixID string, x, y int64) (storage.Key, bool) {
	key, _, ok := uc.locate(matrixID, x, y)
	return key, ok
}

func (uc *TileLookupUseCase) locate(matrixID string, x, y int64) (storage.Key, *tilematrix.TileMatrix, bool) {
	m, ok := uc.registry.Level(matrixID)
	if !ok {
		return "", nil, false
	}
	invY, ok := m.ValidateAndInvert(x, y)
	if !ok {
		return "", nil, false
	}
	return storage.EncodeKey(uc.mimeTag, m.Ordinal, x, invY), m, true
}

// Resolve fetches tile (x, y) of matrixID. Unknown matrices and coordinates
// outside the matrix are reported as absent without touching the backend.
// Backend failures are returned unchanged.
func (uc *TileLookupUseCase) Resolve(ctx context.Context, matrixID string, x, y int64) (Tile, bool, error) {
	ctx, span := uc.tracer.Start(ctx, "TileLookup.Resolve", trace.WithAttributes(
		attribute.String("tile.dataset", uc.cfg.Identifier),
		attribute.String("tile.matrix", matrixID),
		attribute.Int64("tile.x", x),
		attribute.Int64("tile.y", y),
	))
	defer span.End()

	key, m, ok := uc.locate(matrixID, x, y)
	if !ok {
		uc.logger.Debug("tile outside of dataset", "dataset", uc.cfg.Identifier, "matrix", matrixID, "x", x, "y", y)
		metrics.TileRequests.WithLabelValues(uc.cfg.Identifier, metrics.ResultOutOfRange).Inc()
		return Tile{}, false, nil
	}
	span.SetAttributes(attribute.String("tile.key", string(key)))

	fetchCtx := ctx
	if uc.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, uc.cfg.FetchTimeout)
		defer cancel()
	}

	rec, found, err := uc.conn.Fetch(fetchCtx, key, uc.cfg.ReadConsistency)
	if err != nil {
		uc.logger.Error("tile fetch failed", "dataset", uc.cfg.Identifier, "key", key, "error", err)
		metrics.TileRequests.WithLabelValues(uc.cfg.Identifier, metrics.ResultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return Tile{}, false, err
	}
	if !found {
		metrics.TileRequests.WithLabelValues(uc.cfg.Identifier, metrics.ResultMiss).Inc()
		return Tile{}, false, nil
	}

	if uc.cfg.AccessTimestamp && uc.toucher != nil {
		uc.toucher.Enqueue(uc.cfg.Identifier, uc.conn, key, uc.cfg.WriteConsistency)
	}

	metrics.TileRequests.WithLabelValues(uc.cfg.Identifier, metrics.ResultHit).Inc()
	metrics.TileBytes.WithLabelValues(uc.cfg.Identifier).Add(float64(len(rec.Blob)))

	mimeType := rec.MimeType
	if mimeType == "" {
		mimeType = uc.cfg.MimeType
	}

	return Tile{
		Data:     rec.Blob,
		MimeType: mimeType,
		Key:      key,
		Envelope: m.TileEnvelope(x, y),
	}, true, nil
}
