package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/export"
	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
)

type stubSchools struct {
	schools map[string]*models.School
	calls   int
}

func (s *stubSchools) FindByID(ctx context.Context, id string) (*models.School, error) {
	s.calls++
	school, ok := s.schools[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *school
	return &copied, nil
}

type stubStudents struct {
	students map[string]*models.Student
}

func (s *stubStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

type stubObjects struct {
	presignErr error
	objects    map[string][]byte
}

func (s *stubObjects) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "https://minio.test/" + key + "?sig=1", nil
}

func (s *stubObjects) Get(ctx context.Context, key string) ([]byte, string, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, "", errors.New("no such key")
	}
	return data, "image/png", nil
}

type fixedTheme idcard.Theme

func (f fixedTheme) Theme(ctx context.Context, userID string) idcard.Theme { return idcard.Theme(f) }

type recordingRenderer struct {
	cards   []idcard.Composition
	sources []string
}

func (r *recordingRenderer) Render(ctx context.Context, cards []idcard.Composition, loader export.ImageLoader) ([]byte, error) {
	r.cards = cards
	for _, card := range cards {
		for _, el := range card.Elements {
			if el.Kind == idcard.KindImage {
				r.sources = append(r.sources, el.Source)
				_, _, _ = loader.Load(ctx, el.Source)
			}
		}
	}
	return []byte("%PDF-1.3"), nil
}

func strRef(v string) *string { return &v }

func newCardFixture() (*CardService, *stubSchools, *memoryCache, *recordingRenderer) {
	schools := &stubSchools{schools: map[string]*models.School{
		"s-1": {
			ID: "s-1", Name: "Green Valley", CardVariant: idcard.Horizontal, Active: true,
			LogoKey:       strRef("schools/s-1/logo/l.png"),
			CardPositions: models.CardPositions{idcard.FieldPhoto: {Top: 30, Left: 20}},
		},
	}}
	born := time.Date(2012, 4, 1, 0, 0, 0, 0, time.UTC)
	students := &stubStudents{students: map[string]*models.Student{
		"st-1": {ID: "st-1", SchoolID: "s-1", FullName: "Neil Matthews", RollNumber: "MPS/001", FatherName: "Arman", BirthDate: &born, Status: models.StudentStatusActive, PhotoKey: strRef("students/st-1/photo/p.png")},
	}}
	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	renderer := &recordingRenderer{}
	svc := NewCardService(schools, students, &stubObjects{}, fixedTheme(idcard.DarkTheme), renderer, cache, NewMetricsService(), CardServiceConfig{ProfileTTL: time.Minute}, nil, nil)
	return svc, schools, cacheRepo, renderer
}

func TestCardServicePreviewUsesSchoolProfile(t *testing.T) {
	svc, schools, _, _ := newCardFixture()

	req := dto.CardPreviewRequest{Student: dto.StudentDraft{FullName: " Neil ", RollNumber: "001", PhotoURL: "blob:http://localhost/abc"}}
	card, cached, err := svc.Preview(context.Background(), "s-1", req, "u-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, idcard.Horizontal, card.Variant)
	assert.Equal(t, idcard.ModePositioned, card.Mode)
	assert.Equal(t, "dark", card.Theme)

	photo, ok := card.Element(idcard.FieldPhoto)
	require.True(t, ok)
	assert.Equal(t, 30.0, photo.Rect.Top)
	assert.Equal(t, "blob:http://localhost/abc", photo.Source)

	logo, ok := card.Element(idcard.FieldLogo)
	require.True(t, ok)
	assert.Equal(t, idcard.KindImage, logo.Kind)
	assert.Contains(t, logo.Source, "https://minio.test/schools/s-1/logo/l.png")

	name, ok := card.Element(idcard.FieldName)
	require.True(t, ok)
	assert.Equal(t, "Neil", name.Text)

	_, cached, err = svc.Preview(context.Background(), "s-1", req, "u-1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, schools.calls)
}

func TestCardServicePreviewVariantOverrideDropsSchoolPositions(t *testing.T) {
	svc, _, _, _ := newCardFixture()

	req := dto.CardPreviewRequest{CardOptions: dto.CardOptions{Variant: "vertical"}}
	card, _, err := svc.Preview(context.Background(), "s-1", req, "")
	require.NoError(t, err)
	assert.Equal(t, idcard.Vertical, card.Variant)
	assert.Equal(t, idcard.ModeFlow, card.Mode)
}

func TestCardServicePreviewErrors(t *testing.T) {
	svc, _, _, _ := newCardFixture()

	_, _, err := svc.Preview(context.Background(), "missing", dto.CardPreviewRequest{}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Preview(context.Background(), "s-1", dto.CardPreviewRequest{Student: dto.StudentDraft{PhotoURL: "javascript:alert(1)"}}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	bad := dto.CardPreviewRequest{CardOptions: dto.CardOptions{Positions: idcard.PositionSpec{"signature": {Top: 1}}}}
	_, _, err = svc.Preview(context.Background(), "s-1", bad, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, map[string]interface{}{"fields": []string{"signature"}}, appErr.Details)
}

func TestCardServiceStudentCard(t *testing.T) {
	svc, _, _, _ := newCardFixture()

	card, _, err := svc.StudentCard(context.Background(), "st-1", dto.CardOptions{Mode: "flow"}, "u-1")
	require.NoError(t, err)
	assert.Equal(t, idcard.ModeFlow, card.Mode)
	photo, ok := card.Element(idcard.FieldPhoto)
	require.True(t, ok)
	assert.Equal(t, "https://minio.test/students/st-1/photo/p.png?sig=1", photo.Source)
	assert.Contains(t, card.TextBlock(), "DOB: 2012-04-01")
	assert.Contains(t, card.TextBlock(), "Verified: No")

	_, _, err = svc.StudentCard(context.Background(), "nope", dto.CardOptions{}, "")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCardServiceRejectsOutOfRangeOptions(t *testing.T) {
	svc, _, _, _ := newCardFixture()
	ctx := context.Background()

	previews := map[string]dto.CardPreviewRequest{
		"tiny width":     {CardOptions: dto.CardOptions{Width: 1}},
		"huge height":    {CardOptions: dto.CardOptions{Height: 99999}},
		"unknown mode":   {CardOptions: dto.CardOptions{Mode: "diagonal"}},
		"malformed date": {Student: dto.StudentDraft{BirthDate: "not-a-date"}},
	}
	for name, req := range previews {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Preview(ctx, "s-1", req, "")
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}

	_, _, err := svc.StudentCard(ctx, "st-1", dto.CardOptions{Width: 5}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.StudentCard(ctx, "st-1", dto.CardOptions{Variant: "square"}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCardServiceInactiveSchoolIsNotRendered(t *testing.T) {
	svc, schools, _, renderer := newCardFixture()
	schools.schools["s-1"].Active = false
	ctx := context.Background()

	_, _, err := svc.Preview(ctx, "s-1", dto.CardPreviewRequest{}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, _, err = svc.StudentCard(ctx, "st-1", dto.CardOptions{}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, _, err = svc.StudentCardPDF(ctx, "st-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, renderer.cards)
}

func TestCardServiceMetricLabelsPerOutput(t *testing.T) {
	svc, _, _, _ := newCardFixture()
	ctx := context.Background()

	_, _, err := svc.Preview(ctx, "s-1", dto.CardPreviewRequest{}, "")
	require.NoError(t, err)
	_, _, err = svc.StudentCard(ctx, "st-1", dto.CardOptions{}, "")
	require.NoError(t, err)
	_, _, err = svc.StudentCardPDF(ctx, "st-1", "")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.cardsRendered.WithLabelValues("preview")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.cardsRendered.WithLabelValues("card")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.cardsRendered.WithLabelValues("pdf")))
}

func TestCardServicePresignFailureFallsBackToPlaceholder(t *testing.T) {
	svc, _, _, _ := newCardFixture()
	svc.objects = &stubObjects{presignErr: errors.New("minio down")}

	card, _, err := svc.StudentCard(context.Background(), "st-1", dto.CardOptions{}, "")
	require.NoError(t, err)
	photo, ok := card.Element(idcard.FieldPhoto)
	require.True(t, ok)
	assert.Equal(t, idcard.KindPlaceholder, photo.Kind)
}

func TestCardServiceStudentCardPDFUsesObjectKeys(t *testing.T) {
	svc, _, _, renderer := newCardFixture()

	data, filename, err := svc.StudentCardPDF(context.Background(), "st-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "idcard-MPS-001.pdf", filename)
	assert.Equal(t, []byte("%PDF-1.3"), data)
	require.Len(t, renderer.cards, 1)
	assert.ElementsMatch(t, []string{"schools/s-1/logo/l.png", "students/st-1/photo/p.png"}, renderer.sources)
}

func TestFileSafe(t *testing.T) {
	assert.Equal(t, "A-B_1", fileSafe("A/B_1"))
	assert.Equal(t, "card", fileSafe("  "))
}
