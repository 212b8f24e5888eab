package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/infrastructure/http/v1/dto"
)

func (h *Handler) Datasets(c *gin.Context) {
	datasets := h.store.Datasets()

	resp := make([]dto.DatasetResponse, 0, len(datasets))
	for _, md := range datasets {
		resp = append(resp, dto.NewDatasetResponse(md))
	}

	h.RespondWithJSON(c, http.StatusOK, "datasets", resp)
}

func (h *Handler) Dataset(c *gin.Context) {
	id := c.Param("dataset")

	md, ok := h.store.Metadata(id)
	if !ok {
		h.RespondWithJSON(c, http.StatusNotFound, "unknown dataset", nil)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "dataset", dto.NewDatasetResponse(md))
}
