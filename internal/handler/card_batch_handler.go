package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/service"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/response"
)

type cardBatchService interface {
	Create(ctx context.Context, schoolID, actorID string) (*dto.CardBatchResponse, error)
	Get(ctx context.Context, id string) (*dto.CardBatchResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.CardBatchDownload, error)
}

// CardBatchHandler exposes school-wide card printing.
type CardBatchHandler struct {
	batches cardBatchService
}

// NewCardBatchHandler constructs CardBatchHandler.
func NewCardBatchHandler(batches cardBatchService) *CardBatchHandler {
	return &CardBatchHandler{batches: batches}
}

// Create godoc
// @Summary Queue a card sheet for every active student of a school
// @Tags Card Batches
// @Produce json
// @Param id path string true "School ID"
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/card-batches [post]
func (h *CardBatchHandler) Create(c *gin.Context) {
	batch, err := h.batches.Create(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, batch)
}

// Get godoc
// @Summary Card batch status
// @Tags Card Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /card-batches/{id} [get]
func (h *CardBatchHandler) Get(c *gin.Context) {
	batch, err := h.batches.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Download godoc
// @Summary Download a finished card sheet via signed token
// @Tags Card Batches
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /card-batches/download/{token} [get]
func (h *CardBatchHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.batches.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat card sheet"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", result.File, nil)
}
