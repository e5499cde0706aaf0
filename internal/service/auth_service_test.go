package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail       *models.User
	userByID          *models.User
	findByEmailErr    error
	findByIDErr       error
	refreshTokens     map[string]*models.RefreshToken
	createRefreshErr  error
	updatePasswordErr error
	auditLogs         []*models.AuditLog
	lastLoginUpdated  bool
	revokedAllFor     []string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.TokenHash] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) (bool, error) {
	for _, token := range m.refreshTokens {
		if token.ID == id && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "school-idcard-api",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true, Role: models.RoleAdmin}}
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	stored, ok := repo.refreshTokens[hashToken(res.RefreshToken)]
	require.True(t, ok, "refresh token must be stored by hash")
	assert.NotEqual(t, res.RefreshToken, stored.TokenHash)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)

	tests := []struct {
		name string
		repo *mockAuthRepo
		req  models.LoginRequest
		code string
	}{
		{"invalid payload", &mockAuthRepo{}, models.LoginRequest{Email: "nope"}, appErrors.ErrValidation.Code},
		{"unknown user", &mockAuthRepo{}, models.LoginRequest{Email: "x@example.com", Password: "password"}, appErrors.ErrInvalidCredentials.Code},
		{"inactive", &mockAuthRepo{userByEmail: &models.User{ID: "1", PasswordHash: string(password)}}, models.LoginRequest{Email: "x@example.com", Password: "password"}, appErrors.ErrInactiveAccount.Code},
		{"wrong password", &mockAuthRepo{userByEmail: &models.User{ID: "1", PasswordHash: string(password), Active: true}}, models.LoginRequest{Email: "x@example.com", Password: "other"}, appErrors.ErrInvalidCredentials.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAuthService(tt.repo).Login(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, appErrors.FromError(err).Code)
		})
	}
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", Active: true, Role: models.RoleStaff}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{}}
	repo.refreshTokens[hashToken("token")] = &models.RefreshToken{ID: "rt1", UserID: user.ID, TokenHash: hashToken("token"), ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens[hashToken("token")].Revoked)
	assert.False(t, repo.refreshTokens[hashToken(res.RefreshToken)].Revoked)
}

func TestAuthServiceRefreshTokenReuseRevokesSessions(t *testing.T) {
	user := &models.User{ID: "u1", Active: true}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{}}
	repo.refreshTokens[hashToken("old")] = &models.RefreshToken{ID: "rt1", UserID: user.ID, TokenHash: hashToken("old"), Revoked: true, ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[hashToken("live")] = &models.RefreshToken{ID: "rt2", UserID: user.ID, TokenHash: hashToken("live"), ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
	assert.True(t, repo.refreshTokens[hashToken("live")].Revoked)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{}}
	repo.refreshTokens[hashToken("token")] = &models.RefreshToken{ID: "rt1", UserID: "u1", TokenHash: hashToken("token"), ExpiresAt: time.Now().Add(-time.Minute)}

	_, err := newTestAuthService(repo).RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{}}
	repo.refreshTokens[hashToken("token")] = &models.RefreshToken{ID: "rt1", UserID: "u1", TokenHash: hashToken("token"), ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo)

	err := svc.Logout(context.Background(), "u2", models.LogoutRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), "u1", models.LogoutRequest{RefreshToken: "token"}))
	assert.True(t, repo.refreshTokens[hashToken("token")].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: string(oldHash), Active: true}}
	svc := newTestAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrongpassword", NewPassword: "newpassword"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.userByEmail.PasswordHash)
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
}

func TestAuthServiceMe(t *testing.T) {
	repo := &mockAuthRepo{userByID: &models.User{ID: "u1", Email: "a@b.c", FullName: "Admin", Role: models.RoleAdmin}}
	info, err := newTestAuthService(repo).Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Admin", info.FullName)
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{})
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "different", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
