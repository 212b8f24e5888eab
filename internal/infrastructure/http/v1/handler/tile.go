package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage"
)

const envelopeHeader = "X-Tile-Envelope"

func (h *Handler) Tile(c *gin.Context) {
	l := loggerFrom(c)

	dataset := c.Param("dataset")
	matrix := c.Param("matrix")
	strX := c.Param("x")
	strY := c.Param("y")

	x, err := strconv.ParseInt(strX, 10, 64)
	if err != nil {
		l.Warn("invalid x parameter", "x", strX, "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, "x should be integer", nil)
		return
	}

	y, err := strconv.ParseInt(strY, 10, 64)
	if err != nil {
		l.Warn("invalid y parameter", "y", strY, "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, "y should be integer", nil)
		return
	}

	tile, found, err := h.store.Resolve(c.Request.Context(), dataset, matrix, x, y)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, storage.ErrTimeout) {
			h.RespondWithJSON(c, http.StatusGatewayTimeout, timeoutErrorText, nil)
			return
		}
		h.RespondWithInternalServerError(c)
		return
	}

	if !found {
		h.RespondWithJSON(c, http.StatusNotFound, notFoundText, nil)
		return
	}

	c.Header(envelopeHeader, dto.FormatEnvelope(tile.Envelope))
	c.Data(http.StatusOK, tile.MimeType, tile.Data)
}
