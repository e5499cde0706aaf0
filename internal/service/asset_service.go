package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/storage"
)

type schoolAssetStore interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
	SetAssetKey(ctx context.Context, id string, kind models.SchoolAssetKind, key string) error
}

type studentPhotoStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	SetPhotoKey(ctx context.Context, id, key string) error
}

type assetObjectStore interface {
	objectPresigner
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// AssetUpload is an incoming image stream.
type AssetUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// AssetServiceConfig bounds what may be uploaded.
type AssetServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	PresignTTL   time.Duration
}

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// AssetService stores school logos, card designs and student photos.
type AssetService struct {
	schools  schoolAssetStore
	students studentPhotoStore
	objects  assetObjectStore
	scanner  storage.Scanner
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      AssetServiceConfig
	mimeSet  map[string]struct{}
}

// NewAssetService constructs an AssetService. A nil scanner skips malware checks.
func NewAssetService(schools schoolAssetStore, students studentPhotoStore, objects assetObjectStore, scanner storage.Scanner, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg AssetServiceConfig) *AssetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scanner == nil {
		scanner = storage.NopScanner{}
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/png", "image/jpeg", "image/webp"}
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mt = strings.ToLower(strings.TrimSpace(mt))
		if _, known := imageExtensions[mt]; known {
			mimeSet[mt] = struct{}{}
		}
	}
	return &AssetService{
		schools:  schools,
		students: students,
		objects:  objects,
		scanner:  scanner,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		mimeSet:  mimeSet,
	}
}

// UploadSchoolAsset replaces a school's logo or card design.
func (s *AssetService) UploadSchoolAsset(ctx context.Context, schoolID string, kind models.SchoolAssetKind, upload AssetUpload) (*dto.AssetResponse, error) {
	if kind != models.SchoolAssetLogo && kind != models.SchoolAssetDesign {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown asset kind")
	}
	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, internalError(err, "failed to load school")
	}

	previous := school.LogoKey
	if kind == models.SchoolAssetDesign {
		previous = school.DesignKey
	}
	prefix := fmt.Sprintf("schools/%s/%s", schoolID, kind)

	resp, err := s.store(ctx, string(kind), prefix, upload, func(key string) error {
		return s.schools.SetAssetKey(ctx, schoolID, kind, key)
	})
	if err != nil {
		return nil, err
	}
	s.removePrevious(ctx, previous)
	s.cache.Invalidate(ctx, schoolCardCacheKey(schoolID))
	return resp, nil
}

// UploadStudentPhoto replaces a student's photo.
func (s *AssetService) UploadStudentPhoto(ctx context.Context, studentID string, upload AssetUpload) (*dto.AssetResponse, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}

	resp, err := s.store(ctx, "photo", fmt.Sprintf("students/%s/photo", studentID), upload, func(key string) error {
		return s.students.SetPhotoKey(ctx, studentID, key)
	})
	if err != nil {
		return nil, err
	}
	s.removePrevious(ctx, student.PhotoKey)
	return resp, nil
}

func (s *AssetService) store(ctx context.Context, kind, prefix string, upload AssetUpload, persist func(key string) error) (*dto.AssetResponse, error) {
	resp, err := s.storeObject(ctx, prefix, upload, persist)
	result := "ok"
	if err != nil {
		result = strings.ToLower(appErrors.FromError(err).Code)
	}
	s.metrics.AssetUploaded(kind, result)
	return resp, err
}

func (s *AssetService) storeObject(ctx context.Context, prefix string, upload AssetUpload, persist func(key string) error) (*dto.AssetResponse, error) {
	if s.objects == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "asset storage not configured")
	}
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, s.tooLarge()
	}

	data, err := io.ReadAll(io.LimitReader(upload.Content, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, internalError(err, "failed to read upload")
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, s.tooLarge()
	}
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}

	contentType := mimetype.Detect(data).String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if _, ok := s.mimeSet[contentType]; !ok {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrUnsupportedMedia, "image must be png, jpeg or webp"),
			map[string]interface{}{"detected": contentType},
		)
	}

	if err := s.scanner.Scan(ctx, bytes.NewReader(data)); err != nil {
		if errors.Is(err, storage.ErrInfected) {
			s.logger.Warn("rejected infected upload", zap.String("filename", upload.Filename), zap.Error(err))
			return nil, appErrors.Clone(appErrors.ErrValidation, "file failed malware scan")
		}
		return nil, internalError(err, "failed to scan upload")
	}

	key := fmt.Sprintf("%s/%s.%s", prefix, uuid.NewString(), imageExtensions[contentType])
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, internalError(err, "failed to store upload")
	}
	if err := persist(key); err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned object", zap.String("key", key), zap.Error(delErr))
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, internalError(err, "failed to save asset reference")
	}

	return &dto.AssetResponse{
		Key:         key,
		URL:         presignKey(ctx, s.objects, &key, s.cfg.PresignTTL, s.logger),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (s *AssetService) removePrevious(ctx context.Context, key *string) {
	if key == nil || *key == "" {
		return
	}
	if err := s.objects.Delete(ctx, *key); err != nil && !storage.IsNoSuchKey(err) {
		s.logger.Warn("failed to delete replaced object", zap.String("key", *key), zap.Error(err))
	}
}

func (s *AssetService) tooLarge() error {
	return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
}
