package dto

import (
	"strconv"
	"strings"

	"github.com/jaennil/guide_helper/backend/tilestore/internal/usecase"
	"github.com/paulmach/orb"
)

type DatasetResponse struct {
	Identifier    string     `json:"identifier"`
	MimeType      string     `json:"mimeType"`
	TileMatrixSet string     `json:"tileMatrixSet"`
	CRS           string     `json:"crs"`
	Envelope      [4]float64 `json:"envelope"`
}

func NewDatasetResponse(md usecase.DatasetMetadata) DatasetResponse {
	return DatasetResponse{
		Identifier:    md.Identifier,
		MimeType:      md.MimeType,
		TileMatrixSet: md.TileMatrixSet,
		CRS:           md.CRS,
		Envelope:      envelope(md.Envelope),
	}
}

// envelope flattens b to minx, miny, maxx, maxy.
func envelope(b orb.Bound) [4]float64 {
	return [4]float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
}

func FormatEnvelope(b orb.Bound) string {
	parts := envelope(b)
	out := make([]string, len(parts))
	for i, v := range parts {
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(out, ",")
}
