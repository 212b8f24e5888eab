package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/usecase"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
	timeoutErrorText        = "the tile store did not answer in time"
	notFoundText            = "not found"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// TileStore is what the handlers need from the use case layer.
type TileStore interface {
	Resolve(ctx context.Context, dataset, matrixID string, x, y int64) (usecase.Tile, bool, error)
	Metadata(dataset string) (usecase.DatasetMetadata, bool)
	Datasets() []usecase.DatasetMetadata
}

type Handler struct {
	store TileStore
}

func NewHandler(store TileStore) *Handler {
	return &Handler{
		store: store,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

func loggerFrom(c *gin.Context) logger.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
