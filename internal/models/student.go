package models

import "time"

type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusGraduated StudentStatus = "GRADUATED"
)

// Student is a learner whose details are printed on an ID card.
type Student struct {
	ID            string        `db:"id" json:"id"`
	SchoolID      string        `db:"school_id" json:"school_id"`
	FullName      string        `db:"full_name" json:"full_name"`
	RollNumber    string        `db:"roll_number" json:"roll_number"`
	FatherName    string        `db:"father_name" json:"father_name"`
	PhotoKey      *string       `db:"photo_key" json:"photo_key,omitempty"`
	BirthDate     *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	Gender        string        `db:"gender" json:"gender"`
	BloodGroup    string        `db:"blood_group" json:"blood_group"`
	ClassName     string        `db:"class_name" json:"class_name"`
	Section       string        `db:"section" json:"section"`
	GuardianName  string        `db:"guardian_name" json:"guardian_name"`
	GuardianPhone string        `db:"guardian_phone" json:"guardian_phone"`
	Status        StudentStatus `db:"status" json:"status"`
	Verified      bool          `db:"verified" json:"verified"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`

	PhotoURL string `db:"-" json:"photo_url,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	SchoolID  string
	Search    string
	ClassName string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
