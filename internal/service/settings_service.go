package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
)

type settingsRepository interface {
	Get(ctx context.Context, userID string) (*models.UserSettings, error)
	Upsert(ctx context.Context, settings *models.UserSettings) error
}

// SettingsService manages per-user preferences such as the dashboard theme.
type SettingsService struct {
	repo      settingsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

func NewSettingsService(repo settingsRepository, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SettingsService{repo: repo, validator: validate, logger: logger}
}

// Get returns stored preferences or the defaults.
func (s *SettingsService) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := models.DefaultUserSettings(userID)
			return &defaults, nil
		}
		return nil, internalError(err, "failed to load settings")
	}
	return settings, nil
}

// Update applies the provided fields on top of the current preferences.
func (s *SettingsService) Update(ctx context.Context, userID string, req dto.UpdateSettingsRequest) (*models.UserSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid settings payload")
	}
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Theme != nil {
		settings.Theme = *req.Theme
	}
	if req.DefaultCardVariant != nil {
		settings.DefaultCardVariant = idcard.Variant(*req.DefaultCardVariant)
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, internalError(err, "failed to save settings")
	}
	return settings, nil
}

// Theme resolves the card palette for userID. Lookup failures fall back to
// the light theme so rendering never fails on preferences.
func (s *SettingsService) Theme(ctx context.Context, userID string) idcard.Theme {
	if userID == "" {
		return idcard.LightTheme
	}
	settings, err := s.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("falling back to light theme", zap.String("user_id", userID), zap.Error(err))
		return idcard.LightTheme
	}
	return idcard.ThemeByName(settings.Theme)
}
