package dto

import "github.com/noah-isme/sma-idcard-api/internal/models"

// CreateUserRequest provisions a dashboard operator.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=200"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN STAFF"`
}
