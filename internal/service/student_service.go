package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByRoll(ctx context.Context, schoolID, roll, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
	SetVerified(ctx context.Context, id string, verified bool) error
}

type schoolLookup interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// StudentService coordinates student workflows.
type StudentService struct {
	repo       studentRepository
	schools    schoolLookup
	assets     objectPresigner
	presignTTL time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, schools schoolLookup, assets objectPresigner, presignTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &StudentService{repo: repo, schools: schools, assets: assets, presignTTL: presignTTL, validator: validate, logger: logger}
}

// List returns paginated students.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	for i := range students {
		students[i].PhotoURL = presignKey(ctx, s.assets, students[i].PhotoKey, s.presignTTL, s.logger)
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	student.PhotoURL = presignKey(ctx, s.assets, student.PhotoKey, s.presignTTL, s.logger)
	return student, nil
}

// Create enrols a student in a school. Roll numbers are unique per school.
func (s *StudentService) Create(ctx context.Context, req dto.StudentRequest) (*models.Student, error) {
	normalizeStudentRequest(&req)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	if err := s.ensureSchool(ctx, req.SchoolID); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueRoll(ctx, req.SchoolID, req.RollNumber, ""); err != nil {
		return nil, err
	}

	student := &models.Student{}
	if err := applyStudentRequest(student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, internalError(err, "failed to create student")
	}
	return student, nil
}

// Update replaces a student's identity fields.
func (s *StudentService) Update(ctx context.Context, id string, req dto.StudentRequest) (*models.Student, error) {
	normalizeStudentRequest(&req)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.SchoolID != student.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student cannot move to another school")
	}
	if err := s.ensureUniqueRoll(ctx, req.SchoolID, req.RollNumber, id); err != nil {
		return nil, err
	}

	if err := applyStudentRequest(student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, internalError(err, "failed to update student")
	}
	student.PhotoURL = presignKey(ctx, s.assets, student.PhotoKey, s.presignTTL, s.logger)
	return student, nil
}

// Delete marks the student inactive.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to delete student")
	}
	return nil
}

// SetVerified records whether the student's details were checked.
func (s *StudentService) SetVerified(ctx context.Context, id string, req dto.VerifyStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid verify payload")
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetVerified(ctx, id, *req.Verified); err != nil {
		return nil, internalError(err, "failed to update student")
	}
	student.Verified = *req.Verified
	return student, nil
}

func (s *StudentService) load(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) ensureSchool(ctx context.Context, schoolID string) error {
	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return internalError(err, "failed to load school")
	}
	return nil
}

func (s *StudentService) ensureUniqueRoll(ctx context.Context, schoolID, roll, excludeID string) error {
	exists, err := s.repo.ExistsByRoll(ctx, schoolID, roll, excludeID)
	if err != nil {
		return internalError(err, "failed to check roll number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "roll number already exists in this school")
	}
	return nil
}

func normalizeStudentRequest(req *dto.StudentRequest) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.RollNumber = strings.TrimSpace(req.RollNumber)
	req.FatherName = strings.TrimSpace(req.FatherName)
	req.Gender = strings.ToUpper(strings.TrimSpace(req.Gender))
	req.BloodGroup = strings.ToUpper(strings.TrimSpace(req.BloodGroup))
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
}

func applyStudentRequest(student *models.Student, req dto.StudentRequest) error {
	var birthDate *time.Time
	if req.BirthDate != "" {
		parsed, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return validationError(err, "birth_date must be YYYY-MM-DD")
		}
		birthDate = &parsed
	}
	status := models.StudentStatus(req.Status)
	if status == "" {
		status = models.StudentStatusActive
	}

	student.SchoolID = req.SchoolID
	student.FullName = req.FullName
	student.RollNumber = req.RollNumber
	student.FatherName = req.FatherName
	student.BirthDate = birthDate
	student.Gender = req.Gender
	student.BloodGroup = req.BloodGroup
	student.ClassName = req.ClassName
	student.Section = req.Section
	student.GuardianName = req.GuardianName
	student.GuardianPhone = req.GuardianPhone
	student.Status = status
	return nil
}
