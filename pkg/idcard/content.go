package idcard

// CardContent is the data printed on a card. Every field is optional.
type CardContent struct {
	SchoolName  string `json:"school_name"`
	LogoURL     string `json:"logo_url,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	DesignURL   string `json:"design_url,omitempty"`
	StudentName string `json:"student_name"`
	RollNumber  string `json:"roll_number"`
	FatherName  string `json:"father_name"`

	DateOfBirth   string `json:"date_of_birth,omitempty"`
	Gender        string `json:"gender,omitempty"`
	BloodGroup    string `json:"blood_group,omitempty"`
	ClassName     string `json:"class_name,omitempty"`
	Section       string `json:"section,omitempty"`
	GuardianName  string `json:"guardian_name,omitempty"`
	GuardianPhone string `json:"guardian_phone,omitempty"`
	Status        string `json:"status,omitempty"`
	Verified      *bool  `json:"verified,omitempty"`
}

type detail struct {
	key   string
	label string
	value string
}

// details lists the populated secondary fields in print order.
func (c CardContent) details() []detail {
	all := []detail{
		{"date_of_birth", "DOB", c.DateOfBirth},
		{"gender", "Gender", c.Gender},
		{"blood_group", "Blood Group", c.BloodGroup},
		{"class_name", "Class", c.ClassName},
		{"section", "Section", c.Section},
		{"guardian_name", "Guardian", c.GuardianName},
		{"guardian_phone", "Guardian Phone", c.GuardianPhone},
		{"status", "Status", c.Status},
	}
	if c.Verified != nil {
		value := "No"
		if *c.Verified {
			value = "Yes"
		}
		all = append(all, detail{"verified", "Verified", value})
	}
	out := make([]detail, 0, len(all))
	for _, d := range all {
		if d.value != "" {
			out = append(out, d)
		}
	}
	return out
}
