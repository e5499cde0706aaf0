package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type assetSchoolRepo struct {
	school *models.School
	kind   models.SchoolAssetKind
	key    string
}

func (r *assetSchoolRepo) FindByID(ctx context.Context, id string) (*models.School, error) {
	if r.school == nil || r.school.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *r.school
	return &copied, nil
}

func (r *assetSchoolRepo) SetAssetKey(ctx context.Context, id string, kind models.SchoolAssetKind, key string) error {
	r.kind, r.key = kind, key
	return nil
}

type assetStudentRepo struct {
	student *models.Student
	key     string
	err     error
}

func (r *assetStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if r.student == nil || r.student.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *r.student
	return &copied, nil
}

func (r *assetStudentRepo) SetPhotoKey(ctx context.Context, id, key string) error {
	if r.err != nil {
		return r.err
	}
	r.key = key
	return nil
}

type memoryObjects struct {
	objects map[string][]byte
	types   map[string]string
	deleted []string
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *memoryObjects) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://minio.test/" + key, nil
}

type scannerFunc func(ctx context.Context, r io.Reader) error

func (f scannerFunc) Scan(ctx context.Context, r io.Reader) error { return f(ctx, r) }

type assetFixture struct {
	svc      *AssetService
	schools  *assetSchoolRepo
	students *assetStudentRepo
	objects  *memoryObjects
	cache    *memoryCache
}

func newAssetFixture(scanner storage.Scanner) *assetFixture {
	schools := &assetSchoolRepo{school: &models.School{ID: "s-1", Name: "Green Valley", LogoKey: strRef("schools/s-1/logo/old.png")}}
	students := &assetStudentRepo{student: &models.Student{ID: "st-1", SchoolID: "s-1"}}
	objects := newMemoryObjects()
	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewAssetService(schools, students, objects, scanner, cache, NewMetricsService(), nil, AssetServiceConfig{MaxFileSize: 64})
	return &assetFixture{svc: svc, schools: schools, students: students, objects: objects, cache: cacheRepo}
}

func TestUploadSchoolLogoReplacesPrevious(t *testing.T) {
	f := newAssetFixture(nil)

	resp, err := f.svc.UploadSchoolAsset(context.Background(), "s-1", models.SchoolAssetLogo, AssetUpload{Filename: "logo.png", Content: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Key, "schools/s-1/logo/"))
	assert.True(t, strings.HasSuffix(resp.Key, ".png"))
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, "https://minio.test/"+resp.Key, resp.URL)

	assert.Equal(t, models.SchoolAssetLogo, f.schools.kind)
	assert.Equal(t, resp.Key, f.schools.key)
	assert.Equal(t, "image/png", f.objects.types[resp.Key])
	assert.Equal(t, []string{"schools/s-1/logo/old.png"}, f.objects.deleted)
	assert.Equal(t, []string{"card:school:s-1"}, f.cache.invalidated)
}

func TestUploadRejectsOversizedAndUnsupported(t *testing.T) {
	f := newAssetFixture(nil)
	ctx := context.Background()

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	_, err := f.svc.UploadSchoolAsset(ctx, "s-1", models.SchoolAssetDesign, AssetUpload{Content: bytes.NewReader(big)})
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)

	_, err = f.svc.UploadSchoolAsset(ctx, "s-1", models.SchoolAssetDesign, AssetUpload{Size: 1 << 20, Content: bytes.NewReader(pngHeader)})
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)

	_, err = f.svc.UploadSchoolAsset(ctx, "s-1", models.SchoolAssetDesign, AssetUpload{Content: strings.NewReader("just some text")})
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)

	_, err = f.svc.UploadSchoolAsset(ctx, "s-1", "banner", AssetUpload{Content: bytes.NewReader(pngHeader)})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.UploadSchoolAsset(ctx, "nope", models.SchoolAssetLogo, AssetUpload{Content: bytes.NewReader(pngHeader)})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	assert.Empty(t, f.objects.objects)
}

func TestUploadRejectsInfectedFile(t *testing.T) {
	f := newAssetFixture(scannerFunc(func(ctx context.Context, r io.Reader) error {
		return storage.ErrInfected
	}))

	_, err := f.svc.UploadStudentPhoto(context.Background(), "st-1", AssetUpload{Content: bytes.NewReader(pngHeader)})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.objects.objects)
	assert.Empty(t, f.students.key)
}

func TestUploadStudentPhotoCleansUpOnPersistFailure(t *testing.T) {
	f := newAssetFixture(nil)
	f.students.err = errors.New("db down")

	_, err := f.svc.UploadStudentPhoto(context.Background(), "st-1", AssetUpload{Content: bytes.NewReader(pngHeader)})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.objects.objects)
	require.Len(t, f.objects.deleted, 1)
	assert.True(t, strings.HasPrefix(f.objects.deleted[0], "students/st-1/photo/"))
}

func TestUploadStudentPhoto(t *testing.T) {
	f := newAssetFixture(nil)

	resp, err := f.svc.UploadStudentPhoto(context.Background(), "st-1", AssetUpload{Content: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.Equal(t, resp.Key, f.students.key)
	assert.Empty(t, f.objects.deleted)
}
