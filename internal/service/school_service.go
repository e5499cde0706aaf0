package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	Deactivate(ctx context.Context, id string) error
	UpdateCardLayout(ctx context.Context, id string, variant idcard.Variant, positions models.CardPositions) error
}

// SchoolService coordinates school workflows.
type SchoolService struct {
	repo       schoolRepository
	cache      *CacheService
	assets     objectPresigner
	presignTTL time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(repo schoolRepository, cache *CacheService, assets objectPresigner, presignTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &SchoolService{repo: repo, cache: cache, assets: assets, presignTTL: presignTTL, validator: validate, logger: logger}
}

// List returns paginated schools.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	schools, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list schools")
	}
	for i := range schools {
		s.resolveURLs(ctx, &schools[i])
	}
	return schools, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a school with presigned asset URLs.
func (s *SchoolService) Get(ctx context.Context, id string) (*models.School, error) {
	school, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.resolveURLs(ctx, school)
	return school, nil
}

// Create registers a school.
func (s *SchoolService) Create(ctx context.Context, req dto.CreateSchoolRequest) (*models.School, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid school payload")
	}
	if err := s.ensureUniqueCode(ctx, req.Code, ""); err != nil {
		return nil, err
	}

	school := &models.School{
		Name:        strings.TrimSpace(req.Name),
		Code:        req.Code,
		Address:     req.Address,
		Phone:       req.Phone,
		Email:       req.Email,
		CardVariant: idcard.Variant(req.CardVariant),
		Active:      true,
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, internalError(err, "failed to create school")
	}
	return school, nil
}

// Update replaces a school's descriptive fields.
func (s *SchoolService) Update(ctx context.Context, id string, req dto.UpdateSchoolRequest) (*models.School, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid school payload")
	}
	school, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueCode(ctx, req.Code, id); err != nil {
		return nil, err
	}

	school.Name = strings.TrimSpace(req.Name)
	school.Code = req.Code
	school.Address = req.Address
	school.Phone = req.Phone
	school.Email = req.Email
	if req.Active != nil {
		school.Active = *req.Active
	}
	if err := s.repo.Update(ctx, school); err != nil {
		return nil, internalError(err, "failed to update school")
	}
	s.cache.Invalidate(ctx, schoolCardCacheKey(id))
	s.resolveURLs(ctx, school)
	return school, nil
}

// Delete deactivates a school. Its students and stored assets are kept.
func (s *SchoolService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to delete school")
	}
	s.cache.Invalidate(ctx, schoolCardCacheKey(id))
	return nil
}

// UpdateCardLayout stores the variant and per-field placement overrides.
func (s *SchoolService) UpdateCardLayout(ctx context.Context, id string, req dto.CardLayoutRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid card layout payload")
	}
	variant, err := idcard.ParseVariant(req.Variant)
	if err != nil {
		return nil, validationError(err, "invalid card variant")
	}
	if err := validatePositions(req.Positions); err != nil {
		return nil, err
	}
	school, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	positions := models.CardPositions(req.Positions)
	if err := s.repo.UpdateCardLayout(ctx, id, variant, positions); err != nil {
		return nil, internalError(err, "failed to update card layout")
	}
	s.cache.Invalidate(ctx, schoolCardCacheKey(id))

	school.CardVariant = variant
	school.CardPositions = positions
	s.resolveURLs(ctx, school)
	return school, nil
}

func (s *SchoolService) load(ctx context.Context, id string) (*models.School, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, internalError(err, "failed to load school")
	}
	return school, nil
}

func (s *SchoolService) ensureUniqueCode(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return internalError(err, "failed to check school code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "school code already exists")
	}
	return nil
}

func (s *SchoolService) resolveURLs(ctx context.Context, school *models.School) {
	school.LogoURL = presignKey(ctx, s.assets, school.LogoKey, s.presignTTL, s.logger)
	school.DesignURL = presignKey(ctx, s.assets, school.DesignKey, s.presignTTL, s.logger)
}

// validatePositions rejects fields the renderer cannot move and non-positive sizes.
func validatePositions(spec idcard.PositionSpec) error {
	if unknown := spec.Unknown(); len(unknown) > 0 {
		names := make([]string, len(unknown))
		for i, f := range unknown {
			names[i] = string(f)
		}
		sort.Strings(names)
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unknown card fields in positions"), map[string]interface{}{"fields": names})
	}
	for field, p := range spec {
		if (p.Width != nil && *p.Width <= 0) || (p.Height != nil && *p.Height <= 0) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("position of %s must have a positive size", field))
		}
	}
	return nil
}
