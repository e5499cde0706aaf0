package dto

// StudentRequest is the create/update payload for students.
type StudentRequest struct {
	SchoolID      string `json:"school_id" validate:"required,uuid"`
	FullName      string `json:"full_name" validate:"required,max=200"`
	RollNumber    string `json:"roll_number" validate:"required,max=50"`
	FatherName    string `json:"father_name" validate:"max=200"`
	BirthDate     string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender        string `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	BloodGroup    string `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	ClassName     string `json:"class_name" validate:"max=50"`
	Section       string `json:"section" validate:"max=20"`
	GuardianName  string `json:"guardian_name" validate:"max=200"`
	GuardianPhone string `json:"guardian_phone" validate:"max=50"`
	Status        string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE GRADUATED"`
}

// VerifyStudentRequest toggles the verified flag.
type VerifyStudentRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}
