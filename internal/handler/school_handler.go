package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/response"
)

type schoolService interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, req dto.CreateSchoolRequest) (*models.School, error)
	Update(ctx context.Context, id string, req dto.UpdateSchoolRequest) (*models.School, error)
	Delete(ctx context.Context, id string) error
	UpdateCardLayout(ctx context.Context, id string, req dto.CardLayoutRequest) (*models.School, error)
}

// SchoolHandler exposes school endpoints.
type SchoolHandler struct {
	schools schoolService
}

// NewSchoolHandler constructs SchoolHandler.
func NewSchoolHandler(schools schoolService) *SchoolHandler {
	return &SchoolHandler{schools: schools}
}

// List godoc
// @Summary List schools
// @Tags Schools
// @Produce json
// @Param search query string false "Search by name or code"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "name, code or created_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools [get]
func (h *SchoolHandler) List(c *gin.Context) {
	var filter models.SchoolFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Active = boolQuery(c, "active")
	filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder = pageParams(c)

	schools, pagination, err := h.schools.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, pagination)
}

// Get godoc
// @Summary Get school detail
// @Tags Schools
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id} [get]
func (h *SchoolHandler) Get(c *gin.Context) {
	school, err := h.schools.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// Create godoc
// @Summary Register a school
// @Tags Schools
// @Accept json
// @Produce json
// @Param payload body dto.CreateSchoolRequest true "School payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /schools [post]
func (h *SchoolHandler) Create(c *gin.Context) {
	var req dto.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school payload"))
		return
	}
	school, err := h.schools.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// Update godoc
// @Summary Update a school
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param payload body dto.UpdateSchoolRequest true "School payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id} [put]
func (h *SchoolHandler) Update(c *gin.Context) {
	var req dto.UpdateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school payload"))
		return
	}
	school, err := h.schools.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// Delete godoc
// @Summary Deactivate a school
// @Tags Schools
// @Param id path string true "School ID"
// @Success 204
// @Security BearerAuth
// @Router /schools/{id} [delete]
func (h *SchoolHandler) Delete(c *gin.Context) {
	if err := h.schools.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateCardLayout godoc
// @Summary Store the school's card variant and field placements
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param payload body dto.CardLayoutRequest true "Layout"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/card-layout [put]
func (h *SchoolHandler) UpdateCardLayout(c *gin.Context) {
	var req dto.CardLayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid card layout payload"))
		return
	}
	school, err := h.schools.UpdateCardLayout(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}
