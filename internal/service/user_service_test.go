package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
)

type mockUserRepo struct {
	emails  map[string]bool
	created []*models.User
	audits  []*models.AuditLog
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.emails[email], nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.NewString()
	m.created = append(m.created, user)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{emails: map[string]bool{}}
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{Email: " Admin@School.Test ", FullName: "Admin", Password: "supersecret", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "admin@school.test", user.Email)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("supersecret")))
	assert.Len(t, repo.audits, 1)
}

func TestUserServiceCreateConflictAndValidation(t *testing.T) {
	repo := &mockUserRepo{emails: map[string]bool{"taken@school.test": true}}
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{Email: "taken@school.test", FullName: "X", Password: "supersecret", Role: models.RoleStaff})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateUserRequest{Email: "new@school.test", FullName: "X", Password: "short", Role: "ROOT"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}
