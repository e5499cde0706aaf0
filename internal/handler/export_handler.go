package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-idcard-api/internal/models"
	"github.com/noah-isme/sma-idcard-api/internal/service"
	"github.com/noah-isme/sma-idcard-api/pkg/response"
)

type exportService interface {
	ExportStudents(ctx context.Context, filter models.StudentFilter, format string) (*service.ExportFile, error)
}

// ExportHandler streams roster exports.
type ExportHandler struct {
	exports exportService
}

func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Students godoc
// @Summary Export the student roster
// @Tags Students
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param schoolId query string false "Filter by school"
// @Param class query string false "Filter by class"
// @Param status query string false "Filter by status"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /students/export [get]
func (h *ExportHandler) Students(c *gin.Context) {
	file, err := h.exports.ExportStudents(c.Request.Context(), studentFilterFromQuery(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
