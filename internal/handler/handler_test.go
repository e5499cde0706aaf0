package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/middleware"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	"github.com/noah-isme/sma-idcard-api/internal/service"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func asUser(c *gin.Context, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: role})
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type cardServiceMock struct {
	card      *idcard.Composition
	cached    bool
	err       error
	lastOpts  dto.CardOptions
	lastDraft dto.CardPreviewRequest
	actor     string
}

func (m *cardServiceMock) Preview(ctx context.Context, schoolID string, req dto.CardPreviewRequest, actorID string) (*idcard.Composition, bool, error) {
	m.lastDraft, m.actor = req, actorID
	return m.card, m.cached, m.err
}

func (m *cardServiceMock) StudentCard(ctx context.Context, studentID string, req dto.CardOptions, actorID string) (*idcard.Composition, bool, error) {
	m.lastOpts, m.actor = req, actorID
	return m.card, m.cached, m.err
}

func (m *cardServiceMock) StudentCardPDF(ctx context.Context, studentID, actorID string) ([]byte, string, error) {
	return []byte("%PDF-1.3"), "idcard-001.pdf", m.err
}

func TestCardHandlerPreview(t *testing.T) {
	mock := &cardServiceMock{card: &idcard.Composition{Variant: idcard.Vertical, Mode: idcard.ModeFlow}, cached: true}
	handler := NewCardHandler(mock)

	body := []byte(`{"student":{"full_name":"Neil"},"variant":"vertical"}`)
	c, w := newGinContext(http.MethodPost, "/schools/s-1/card-preview", body)
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}
	asUser(c, models.RoleStaff)

	handler.Preview(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Neil", mock.lastDraft.Student.FullName)
	assert.Equal(t, "vertical", mock.lastDraft.Variant)
	assert.Equal(t, "u-1", mock.actor)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
}

func TestCardHandlerStudentCardParsesPositions(t *testing.T) {
	mock := &cardServiceMock{card: &idcard.Composition{Variant: idcard.Horizontal}}
	handler := NewCardHandler(mock)

	query := url.Values{"mode": {"positioned"}, "width": {"448"}, "positions": {`{"photo":{"top":10,"left":4}}`}}
	c, w := newGinContext(http.MethodGet, "/students/st-1/card?"+query.Encode(), nil)
	c.Params = gin.Params{{Key: "id", Value: "st-1"}}

	handler.StudentCard(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "positioned", mock.lastOpts.Mode)
	assert.Equal(t, 448.0, mock.lastOpts.Width)
	assert.Equal(t, 10.0, mock.lastOpts.Positions[idcard.FieldPhoto].Top)

	c, w = newGinContext(http.MethodGet, `/students/st-1/card?positions=nope`, nil)
	handler.StudentCard(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCardHandlerStudentCardPDF(t *testing.T) {
	handler := NewCardHandler(&cardServiceMock{})
	c, w := newGinContext(http.MethodGet, "/students/st-1/card.pdf", nil)

	handler.StudentCardPDF(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "idcard-001.pdf")
}

func TestCardHandlerMapsServiceErrors(t *testing.T) {
	handler := NewCardHandler(&cardServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")})
	c, w := newGinContext(http.MethodGet, "/students/x/card", nil)

	handler.StudentCard(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

type batchServiceMock struct {
	created  *dto.CardBatchResponse
	download *service.CardBatchDownload
	err      error
}

func (m *batchServiceMock) Create(ctx context.Context, schoolID, actorID string) (*dto.CardBatchResponse, error) {
	return m.created, m.err
}

func (m *batchServiceMock) Get(ctx context.Context, id string) (*dto.CardBatchResponse, error) {
	return m.created, m.err
}

func (m *batchServiceMock) ResolveDownload(ctx context.Context, token string) (*service.CardBatchDownload, error) {
	return m.download, m.err
}

func TestCardBatchHandlerCreate(t *testing.T) {
	handler := NewCardBatchHandler(&batchServiceMock{created: &dto.CardBatchResponse{ID: "b-1", Status: models.CardBatchQueued}})
	c, w := newGinContext(http.MethodPost, "/schools/s-1/card-batches", nil)
	asUser(c, models.RoleAdmin)

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestCardBatchHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-sheet"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	handler := NewCardBatchHandler(&batchServiceMock{download: &service.CardBatchDownload{File: file, Filename: "sheet.pdf"}})
	c, w := newGinContext(http.MethodGet, "/card-batches/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-sheet", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sheet.pdf")

	handler = NewCardBatchHandler(&batchServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "invalid token")})
	c, w = newGinContext(http.MethodGet, "/card-batches/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type assetServiceMock struct {
	kind    models.SchoolAssetKind
	content []byte
	err     error
}

func (m *assetServiceMock) UploadSchoolAsset(ctx context.Context, schoolID string, kind models.SchoolAssetKind, upload service.AssetUpload) (*dto.AssetResponse, error) {
	m.kind = kind
	m.content, _ = io.ReadAll(upload.Content)
	return &dto.AssetResponse{Key: "schools/" + schoolID + "/logo/x.png"}, m.err
}

func (m *assetServiceMock) UploadStudentPhoto(ctx context.Context, studentID string, upload service.AssetUpload) (*dto.AssetResponse, error) {
	m.content, _ = io.ReadAll(upload.Content)
	return &dto.AssetResponse{Key: "students/" + studentID + "/photo/x.png"}, m.err
}

func multipartContext(t *testing.T, field string, content []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if field != "" {
		part, err := writer.CreateFormFile(field, "logo.png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	c, w := newGinContext(http.MethodPost, "/schools/s-1/logo", buf.Bytes())
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}
	return c, w
}

func TestAssetHandlerUploadLogo(t *testing.T) {
	mock := &assetServiceMock{}
	handler := NewAssetHandler(mock)

	c, w := multipartContext(t, "file", []byte("png-bytes"))
	handler.UploadLogo(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.SchoolAssetLogo, mock.kind)
	assert.Equal(t, []byte("png-bytes"), mock.content)

	c, w = multipartContext(t, "", nil)
	handler.UploadDesign(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssetHandlerPropagatesUnsupportedMedia(t *testing.T) {
	handler := NewAssetHandler(&assetServiceMock{err: appErrors.ErrUnsupportedMedia})
	c, w := multipartContext(t, "file", []byte("text"))

	handler.UploadStudentPhoto(c)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

type studentServiceMock struct {
	filter models.StudentFilter
	err    error
}

func (m *studentServiceMock) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	m.filter = filter
	return []models.Student{{ID: "st-1"}}, models.NewPagination(filter.Page, filter.PageSize, 1), m.err
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id}, m.err
}

func (m *studentServiceMock) Create(ctx context.Context, req dto.StudentRequest) (*models.Student, error) {
	return &models.Student{ID: "st-new", RollNumber: req.RollNumber}, m.err
}

func (m *studentServiceMock) Update(ctx context.Context, id string, req dto.StudentRequest) (*models.Student, error) {
	return &models.Student{ID: id}, m.err
}

func (m *studentServiceMock) Delete(ctx context.Context, id string) error { return m.err }

func (m *studentServiceMock) SetVerified(ctx context.Context, id string, req dto.VerifyStudentRequest) (*models.Student, error) {
	return &models.Student{ID: id, Verified: *req.Verified}, m.err
}

func TestStudentHandlerListFilters(t *testing.T) {
	mock := &studentServiceMock{}
	handler := NewStudentHandler(mock)

	c, w := newGinContext(http.MethodGet, "/students?schoolId=s-1&status=active&class=7&page=2&limit=5&sort=full_name", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-1", mock.filter.SchoolID)
	assert.Equal(t, models.StudentStatusActive, mock.filter.Status)
	assert.Equal(t, "7", mock.filter.ClassName)
	assert.Equal(t, 2, mock.filter.Page)
	assert.Equal(t, 5, mock.filter.PageSize)
	assert.Equal(t, "full_name", mock.filter.SortBy)
}

func TestStudentHandlerCreateAndConflict(t *testing.T) {
	handler := NewStudentHandler(&studentServiceMock{})
	c, w := newGinContext(http.MethodPost, "/students", []byte(`{"roll_number":"001"}`))
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	handler = NewStudentHandler(&studentServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "roll number already exists")})
	c, w = newGinContext(http.MethodPost, "/students", []byte(`{"roll_number":"001"}`))
	handler.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = newGinContext(http.MethodPost, "/students", []byte(`{`))
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type schoolServiceMock struct {
	filter  models.SchoolFilter
	layout  dto.CardLayoutRequest
	deleted string
}

func (m *schoolServiceMock) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	m.filter = filter
	return nil, models.NewPagination(1, 20, 0), nil
}

func (m *schoolServiceMock) Get(ctx context.Context, id string) (*models.School, error) {
	return &models.School{ID: id}, nil
}

func (m *schoolServiceMock) Create(ctx context.Context, req dto.CreateSchoolRequest) (*models.School, error) {
	return &models.School{ID: "s-new", Name: req.Name}, nil
}

func (m *schoolServiceMock) Update(ctx context.Context, id string, req dto.UpdateSchoolRequest) (*models.School, error) {
	return &models.School{ID: id}, nil
}

func (m *schoolServiceMock) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return nil
}

func (m *schoolServiceMock) UpdateCardLayout(ctx context.Context, id string, req dto.CardLayoutRequest) (*models.School, error) {
	m.layout = req
	return &models.School{ID: id}, nil
}

func TestSchoolHandler(t *testing.T) {
	mock := &schoolServiceMock{}
	handler := NewSchoolHandler(mock)

	c, w := newGinContext(http.MethodGet, "/schools?active=false&search=+green+", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.filter.Active)
	assert.False(t, *mock.filter.Active)
	assert.Equal(t, "green", mock.filter.Search)

	c, w = newGinContext(http.MethodPut, "/schools/s-1/card-layout", []byte(`{"variant":"horizontal","positions":{"logo":{"top":4,"left":8,"width":32}}}`))
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}
	handler.UpdateCardLayout(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "horizontal", mock.layout.Variant)
	require.NotNil(t, mock.layout.Positions[idcard.FieldLogo].Width)
	assert.Equal(t, 32.0, *mock.layout.Positions[idcard.FieldLogo].Width)

	// c.Status does not flush the header on a bare test context, so read the writer.
	c, _ = newGinContext(http.MethodDelete, "/schools/s-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "s-1", mock.deleted)
}

type authServiceMock struct {
	logoutUser string
	err        error
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.LoginResponse{AccessToken: "a", RefreshToken: "r"}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "a2"}, m.err
}

func (m *authServiceMock) Logout(ctx context.Context, userID string, req models.LogoutRequest) error {
	m.logoutUser = userID
	return m.err
}

func (m *authServiceMock) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	return m.err
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, m.err
}

func TestAuthHandlerLoginAndLogout(t *testing.T) {
	mock := &authServiceMock{}
	handler := NewAuthHandler(mock)

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"a@b.c","password":"secret"}`))
	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"r"}`))
	handler.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, _ = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"r"}`))
	asUser(c, models.RoleStaff)
	handler.Logout(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "u-1", mock.logoutUser)

	handler = NewAuthHandler(&authServiceMock{err: appErrors.ErrInvalidCredentials})
	c, w = newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"a@b.c","password":"bad"}`))
	handler.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(ctx context.Context) error { return p.err }

func TestHealthHandlerReady(t *testing.T) {
	handler := NewHealthHandler(nil, map[string]Pinger{"postgres": pingerStub{}, "redis": PingFunc(func(context.Context) error { return nil })})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	handler = NewHealthHandler(nil, map[string]Pinger{"postgres": pingerStub{err: errors.New("down")}})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}
