package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/go-tabgraph/pkg/normalize"
	"github.com/soundprediction/go-tabgraph/pkg/server/dto"
	"github.com/soundprediction/go-tabgraph/pkg/types"
)

// RowsHandler previews row normalization
type RowsHandler struct {
	normalizer *normalize.Normalizer
}

// NewRowsHandler creates a new rows handler
func NewRowsHandler(n *normalize.Normalizer) *RowsHandler {
	return &RowsHandler{normalizer: n}
}

// Normalize handles POST /api/rows/normalize
func (h *RowsHandler) Normalize(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	raw, err := h.normalizer.Submission(payload)
	if errors.Is(err, types.ErrMissingIdentity) {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   "invalid_row",
			Message: err.Error(),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	row, diag, err := h.normalizer.Normalize(raw)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   "invalid_row",
			Message: err.Error(),
		})
		return
	}

	resp := dto.NormalizeResponse{
		Record:      raw.Values,
		Identity:    row.Identity,
		Attributes:  row.Attributes.Map(),
		Connections: make([]dto.Connection, 0, len(row.Connections)),
	}
	for _, conn := range row.Connections {
		resp.Connections = append(resp.Connections, dto.Connection{
			Target:       conn.TargetIdentity,
			RelationType: conn.RelationType,
			Extra:        conn.Extra.Map(),
		})
	}
	if diag != nil {
		resp.Diagnostic = diag.Message
	}

	c.JSON(http.StatusOK, resp)
}
