package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/export"
)

type rosterSource interface {
	ListAll(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

var rosterHeaders = []string{
	"Roll Number", "Full Name", "Father Name", "Class", "Section",
	"Gender", "Blood Group", "Guardian Phone", "Status", "Verified",
}

// ExportFile is a rendered roster ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders student rosters as CSV or PDF.
type ExportService struct {
	students rosterSource
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(students rosterSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{students: students, logger: logger, now: time.Now}
}

// ExportStudents renders every student matching filter. Paging fields are ignored.
func (s *ExportService) ExportStudents(ctx context.Context, filter models.StudentFilter, format string) (*ExportFile, error) {
	if format == "" {
		format = string(export.FormatCSV)
	}
	renderer, err := export.RendererFor(export.Format(strings.ToLower(format)))
	if err != nil {
		return nil, validationError(err, "format must be csv or pdf")
	}

	students, err := s.students.ListAll(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to load students")
	}

	dataset := export.Dataset{Title: "Student Roster", Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(students))}
	for _, st := range students {
		dataset.Rows = append(dataset.Rows, rosterRow(st))
	}

	data, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Debug("roster exported", zap.String("format", renderer.Extension()), zap.Int("rows", len(students)))

	return &ExportFile{
		Filename:    fmt.Sprintf("students-%s.%s", s.now().UTC().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func rosterRow(st models.Student) map[string]string {
	verified := "No"
	if st.Verified {
		verified = "Yes"
	}
	return map[string]string{
		"Roll Number":    st.RollNumber,
		"Full Name":      st.FullName,
		"Father Name":    st.FatherName,
		"Class":          st.ClassName,
		"Section":        st.Section,
		"Gender":         st.Gender,
		"Blood Group":    st.BloodGroup,
		"Guardian Phone": st.GuardianPhone,
		"Status":         string(st.Status),
		"Verified":       verified,
	}
}
