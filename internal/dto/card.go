package dto

import "github.com/noah-isme/sma-idcard-api/pkg/idcard"

// CardOptions are the render knobs accepted by card endpoints.
type CardOptions struct {
	Variant   string              `json:"variant" form:"variant" validate:"omitempty,oneof=vertical horizontal"`
	Mode      string              `json:"mode" form:"mode" validate:"omitempty,oneof=flow positioned"`
	Width     float64             `json:"width" form:"width" validate:"omitempty,min=32,max=4096"`
	Height    float64             `json:"height" form:"height" validate:"omitempty,min=32,max=4096"`
	Positions idcard.PositionSpec `json:"positions" form:"-"`
}

// StudentDraft is an unsaved student as typed into the dashboard form.
// PhotoURL may be a data: or blob: URL of a locally previewed file.
type StudentDraft struct {
	FullName      string `json:"full_name" validate:"max=200"`
	RollNumber    string `json:"roll_number" validate:"max=50"`
	FatherName    string `json:"father_name" validate:"max=200"`
	PhotoURL      string `json:"photo_url" validate:"max=8000000"`
	BirthDate     string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender        string `json:"gender"`
	BloodGroup    string `json:"blood_group"`
	ClassName     string `json:"class_name"`
	Section       string `json:"section"`
	GuardianName  string `json:"guardian_name"`
	GuardianPhone string `json:"guardian_phone"`
	Status        string `json:"status"`
	Verified      *bool  `json:"verified"`
}

// CardPreviewRequest renders a draft against a school's stored card profile.
type CardPreviewRequest struct {
	Student StudentDraft `json:"student"`
	CardOptions
}
