package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/export"
	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
)

func schoolCardCacheKey(schoolID string) string {
	return "card:school:" + schoolID
}

// SchoolCardProfile is the cached part of a school needed to render its cards.
// Asset references are object keys; URLs are presigned per request.
type SchoolCardProfile struct {
	SchoolID  string              `json:"school_id"`
	Name      string              `json:"name"`
	LogoKey   string              `json:"logo_key,omitempty"`
	DesignKey string              `json:"design_key,omitempty"`
	Variant   idcard.Variant      `json:"variant"`
	Positions idcard.PositionSpec `json:"positions,omitempty"`
	Active    bool                `json:"active"`
}

type cardStudentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type objectStore interface {
	objectPresigner
	Get(ctx context.Context, key string) ([]byte, string, error)
}

type themeResolver interface {
	Theme(ctx context.Context, userID string) idcard.Theme
}

type cardRenderer interface {
	Render(ctx context.Context, cards []idcard.Composition, loader export.ImageLoader) ([]byte, error)
}

// CardServiceConfig tunes caching and URL lifetimes.
type CardServiceConfig struct {
	ProfileTTL time.Duration
	PresignTTL time.Duration
}

// CardService assembles card content from schools and students and renders it.
type CardService struct {
	schools  schoolLookup
	students cardStudentLookup
	objects  objectStore
	themes   themeResolver
	pdf      cardRenderer
	cache    *CacheService
	metrics  *MetricsService
	cfg      CardServiceConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCardService constructs a CardService.
func NewCardService(schools schoolLookup, students cardStudentLookup, objects objectStore, themes themeResolver, pdf cardRenderer, cache *CacheService, metrics *MetricsService, cfg CardServiceConfig, validate *validator.Validate, logger *zap.Logger) *CardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	if pdf == nil {
		pdf = export.NewCardPDF()
	}
	return &CardService{schools: schools, students: students, objects: objects, themes: themes, pdf: pdf, cache: cache, metrics: metrics, cfg: cfg, validate: validate, logger: logger}
}

// Preview renders an unsaved student draft with the school's card profile.
// The boolean reports whether the profile came from cache.
func (s *CardService) Preview(ctx context.Context, schoolID string, req dto.CardPreviewRequest, actorID string) (*idcard.Composition, bool, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, false, validationError(err, "invalid card preview request")
	}
	if err := validateDraftPhoto(req.Student.PhotoURL); err != nil {
		return nil, false, err
	}
	profile, cached, err := s.activeProfile(ctx, schoolID)
	if err != nil {
		return nil, false, err
	}
	opts, err := s.options(ctx, profile, req.CardOptions, actorID)
	if err != nil {
		return nil, false, err
	}

	content := s.schoolContent(ctx, profile)
	draft := req.Student
	content.StudentName = strings.TrimSpace(draft.FullName)
	content.RollNumber = strings.TrimSpace(draft.RollNumber)
	content.FatherName = strings.TrimSpace(draft.FatherName)
	content.PhotoURL = draft.PhotoURL
	content.DateOfBirth = draft.BirthDate
	content.Gender = draft.Gender
	content.BloodGroup = draft.BloodGroup
	content.ClassName = draft.ClassName
	content.Section = draft.Section
	content.GuardianName = draft.GuardianName
	content.GuardianPhone = draft.GuardianPhone
	content.Status = draft.Status
	content.Verified = draft.Verified

	card := idcard.Compose(content, opts)
	s.metrics.CardsRendered("preview", 1)
	return &card, cached, nil
}

// StudentCard renders a persisted student's card with presigned image URLs.
func (s *CardService) StudentCard(ctx context.Context, studentID string, req dto.CardOptions, actorID string) (*idcard.Composition, bool, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, false, validationError(err, "invalid card options")
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	profile, cached, err := s.activeProfile(ctx, student.SchoolID)
	if err != nil {
		return nil, false, err
	}
	opts, err := s.options(ctx, profile, req, actorID)
	if err != nil {
		return nil, false, err
	}

	content := s.schoolContent(ctx, profile)
	fillStudentContent(&content, student)
	content.PhotoURL = presignKey(ctx, s.objects, student.PhotoKey, s.cfg.PresignTTL, s.logger)

	card := idcard.Compose(content, opts)
	s.metrics.CardsRendered("card", 1)
	return &card, cached, nil
}

// StudentCardPDF renders a single card as a PDF document and returns it with a file name.
func (s *CardService) StudentCardPDF(ctx context.Context, studentID, actorID string) ([]byte, string, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, "", err
	}
	profile, _, err := s.activeProfile(ctx, student.SchoolID)
	if err != nil {
		return nil, "", err
	}
	cards := s.ComposeStudents(profile, []models.Student{*student}, s.themes.Theme(ctx, actorID))
	data, err := s.pdf.Render(ctx, cards, s.ImageLoader())
	if err != nil {
		return nil, "", internalError(err, "failed to render card pdf")
	}
	s.metrics.CardsRendered("pdf", 1)
	return data, fmt.Sprintf("idcard-%s.pdf", fileSafe(student.RollNumber)), nil
}

// ComposeStudents lays out print cards for students. Image sources are object
// keys, to be resolved through ImageLoader.
func (s *CardService) ComposeStudents(profile *SchoolCardProfile, students []models.Student, theme idcard.Theme) []idcard.Composition {
	base := idcard.CardContent{SchoolName: profile.Name, LogoURL: profile.LogoKey, DesignURL: profile.DesignKey}
	opts := idcard.Options{Variant: profile.Variant, Positions: profile.Positions, Theme: theme}

	cards := make([]idcard.Composition, 0, len(students))
	for i := range students {
		content := base
		fillStudentContent(&content, &students[i])
		if students[i].PhotoKey != nil {
			content.PhotoURL = *students[i].PhotoKey
		}
		cards = append(cards, idcard.Compose(content, opts))
	}
	return cards
}

// ImageLoader reads composition image sources from the object store.
func (s *CardService) ImageLoader() export.ImageLoader {
	return export.ImageLoaderFunc(func(ctx context.Context, key string) ([]byte, string, error) {
		if s.objects == nil {
			return nil, "", errors.New("object store not configured")
		}
		return s.objects.Get(ctx, key)
	})
}

// Profile returns the school's card profile, from cache when possible.
func (s *CardService) Profile(ctx context.Context, schoolID string) (*SchoolCardProfile, bool, error) {
	key := schoolCardCacheKey(schoolID)
	var profile SchoolCardProfile
	if s.cache.Get(ctx, key, &profile) {
		return &profile, true, nil
	}

	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, false, internalError(err, "failed to load school")
	}
	profile = SchoolCardProfile{
		SchoolID:  school.ID,
		Name:      school.Name,
		Variant:   school.CardVariant,
		Positions: school.CardPositions.Spec(),
		Active:    school.Active,
	}
	if school.LogoKey != nil {
		profile.LogoKey = *school.LogoKey
	}
	if school.DesignKey != nil {
		profile.DesignKey = *school.DesignKey
	}
	s.cache.Set(ctx, key, profile, s.cfg.ProfileTTL)
	return &profile, false, nil
}

// activeProfile is Profile restricted to schools that have not been deactivated.
func (s *CardService) activeProfile(ctx context.Context, schoolID string) (*SchoolCardProfile, bool, error) {
	profile, cached, err := s.Profile(ctx, schoolID)
	if err != nil {
		return nil, false, err
	}
	if !profile.Active {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "school not found")
	}
	return profile, cached, nil
}

// options resolves render options. School overrides only apply to the school's
// own variant; request overrides are layered on top.
func (s *CardService) options(ctx context.Context, profile *SchoolCardProfile, req dto.CardOptions, actorID string) (idcard.Options, error) {
	variant := profile.Variant
	if req.Variant != "" {
		parsed, err := idcard.ParseVariant(req.Variant)
		if err != nil {
			return idcard.Options{}, validationError(err, "invalid card variant")
		}
		variant = parsed
	}
	mode, err := idcard.ParseMode(req.Mode)
	if err != nil {
		return idcard.Options{}, validationError(err, "invalid layout mode")
	}
	if err := validatePositions(req.Positions); err != nil {
		return idcard.Options{}, err
	}

	var positions idcard.PositionSpec
	if variant == profile.Variant {
		positions = profile.Positions
	}
	return idcard.Options{
		Variant:   variant,
		Width:     req.Width,
		Height:    req.Height,
		Mode:      mode,
		Positions: positions.Merge(req.Positions),
		Theme:     s.themes.Theme(ctx, actorID),
	}, nil
}

func (s *CardService) schoolContent(ctx context.Context, profile *SchoolCardProfile) idcard.CardContent {
	return idcard.CardContent{
		SchoolName: profile.Name,
		LogoURL:    presignKey(ctx, s.objects, &profile.LogoKey, s.cfg.PresignTTL, s.logger),
		DesignURL:  presignKey(ctx, s.objects, &profile.DesignKey, s.cfg.PresignTTL, s.logger),
	}
}

func (s *CardService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	return student, nil
}

func fillStudentContent(content *idcard.CardContent, student *models.Student) {
	content.StudentName = student.FullName
	content.RollNumber = student.RollNumber
	content.FatherName = student.FatherName
	if student.BirthDate != nil {
		content.DateOfBirth = student.BirthDate.Format("2006-01-02")
	}
	content.Gender = student.Gender
	content.BloodGroup = student.BloodGroup
	content.ClassName = student.ClassName
	content.Section = student.Section
	content.GuardianName = student.GuardianName
	content.GuardianPhone = student.GuardianPhone
	content.Status = string(student.Status)
	verified := student.Verified
	content.Verified = &verified
}

// validateDraftPhoto accepts inline images picked in the browser and remote URLs.
func validateDraftPhoto(raw string) error {
	if raw == "" {
		return nil
	}
	lower := strings.ToLower(raw)
	for _, prefix := range []string{"data:image/", "blob:", "https://", "http://"} {
		if strings.HasPrefix(lower, prefix) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "photo_url must be an image data URL, blob URL or http(s) URL")
}

func fileSafe(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(name))
	if name == "" {
		return "card"
	}
	return name
}
