package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	"github.com/noah-isme/sma-idcard-api/internal/service"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/response"
)

type assetService interface {
	UploadSchoolAsset(ctx context.Context, schoolID string, kind models.SchoolAssetKind, upload service.AssetUpload) (*dto.AssetResponse, error)
	UploadStudentPhoto(ctx context.Context, studentID string, upload service.AssetUpload) (*dto.AssetResponse, error)
}

// AssetHandler accepts image uploads.
type AssetHandler struct {
	assets assetService
}

// NewAssetHandler constructs AssetHandler.
func NewAssetHandler(assets assetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// UploadLogo godoc
// @Summary Upload school logo
// @Tags Assets
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "School ID"
// @Param file formData file true "PNG, JPEG or WebP image"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/logo [post]
func (h *AssetHandler) UploadLogo(c *gin.Context) {
	h.uploadSchool(c, models.SchoolAssetLogo)
}

// UploadDesign godoc
// @Summary Upload school card background design
// @Tags Assets
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "School ID"
// @Param file formData file true "PNG, JPEG or WebP image"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/design [post]
func (h *AssetHandler) UploadDesign(c *gin.Context) {
	h.uploadSchool(c, models.SchoolAssetDesign)
}

// UploadStudentPhoto godoc
// @Summary Upload student photo
// @Tags Assets
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Student ID"
// @Param file formData file true "PNG, JPEG or WebP image"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/photo [post]
func (h *AssetHandler) UploadStudentPhoto(c *gin.Context) {
	h.upload(c, func(ctx context.Context, upload service.AssetUpload) (*dto.AssetResponse, error) {
		return h.assets.UploadStudentPhoto(ctx, c.Param("id"), upload)
	})
}

func (h *AssetHandler) uploadSchool(c *gin.Context, kind models.SchoolAssetKind) {
	h.upload(c, func(ctx context.Context, upload service.AssetUpload) (*dto.AssetResponse, error) {
		return h.assets.UploadSchoolAsset(ctx, c.Param("id"), kind, upload)
	})
}

func (h *AssetHandler) upload(c *gin.Context, store func(context.Context, service.AssetUpload) (*dto.AssetResponse, error)) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	asset, err := store(c.Request.Context(), service.AssetUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, asset, nil)
}
