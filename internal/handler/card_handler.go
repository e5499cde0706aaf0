package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/middleware"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
	"github.com/noah-isme/sma-idcard-api/pkg/response"
)

type cardService interface {
	Preview(ctx context.Context, schoolID string, req dto.CardPreviewRequest, actorID string) (*idcard.Composition, bool, error)
	StudentCard(ctx context.Context, studentID string, req dto.CardOptions, actorID string) (*idcard.Composition, bool, error)
	StudentCardPDF(ctx context.Context, studentID, actorID string) ([]byte, string, error)
}

// CardHandler renders ID card compositions.
type CardHandler struct {
	cards cardService
}

// NewCardHandler constructs CardHandler.
func NewCardHandler(cards cardService) *CardHandler {
	return &CardHandler{cards: cards}
}

// Preview godoc
// @Summary Preview a card for an unsaved student
// @Description Lays out the draft against the school's stored variant, positions and assets.
// @Tags Cards
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param payload body dto.CardPreviewRequest true "Draft and render options"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/card-preview [post]
func (h *CardHandler) Preview(c *gin.Context) {
	var req dto.CardPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preview payload"))
		return
	}
	card, cached, err := h.cards.Preview(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, card, nil, middleware.ResponseMeta(c))
}

// StudentCard godoc
// @Summary Render a student's card
// @Tags Cards
// @Produce json
// @Param id path string true "Student ID"
// @Param variant query string false "vertical or horizontal"
// @Param mode query string false "flow or positioned"
// @Param width query number false "Card width in px"
// @Param height query number false "Card height in px"
// @Param positions query string false "JSON object of field placements"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/card [get]
func (h *CardHandler) StudentCard(c *gin.Context) {
	var opts dto.CardOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid card options"))
		return
	}
	if raw := c.Query("positions"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Positions); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "positions must be a JSON object"))
			return
		}
	}
	card, cached, err := h.cards.StudentCard(c.Request.Context(), c.Param("id"), opts, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, card, nil, middleware.ResponseMeta(c))
}

// StudentCardPDF godoc
// @Summary Download a student's card as PDF
// @Tags Cards
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /students/{id}/card.pdf [get]
func (h *CardHandler) StudentCardPDF(c *gin.Context) {
	data, filename, err := h.cards.StudentCardPDF(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", data)
}
