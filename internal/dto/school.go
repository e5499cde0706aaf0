package dto

import "github.com/noah-isme/sma-idcard-api/pkg/idcard"

// CreateSchoolRequest is the payload for registering a school.
type CreateSchoolRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Code        string `json:"code" validate:"required,max=50"`
	Address     string `json:"address" validate:"max=500"`
	Phone       string `json:"phone" validate:"max=50"`
	Email       string `json:"email" validate:"omitempty,email"`
	CardVariant string `json:"card_variant" validate:"omitempty,oneof=vertical horizontal"`
}

// UpdateSchoolRequest replaces a school's contact data.
type UpdateSchoolRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Code    string `json:"code" validate:"required,max=50"`
	Address string `json:"address" validate:"max=500"`
	Phone   string `json:"phone" validate:"max=50"`
	Email   string `json:"email" validate:"omitempty,email"`
	Active  *bool  `json:"active"`
}

// CardLayoutRequest stores the school's card variant and placement overrides.
type CardLayoutRequest struct {
	Variant   string              `json:"variant" validate:"required,oneof=vertical horizontal"`
	Positions idcard.PositionSpec `json:"positions"`
}
