package masterdata

import "time"

// RefEntity is a named reference row: legal entity, department, or law.
type RefEntity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type ComplianceMaster struct {
	ID           string    `json:"id"`
	ComplianceID string    `json:"complianceId"`
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	Description  *string   `json:"description,omitempty"`
	LawID        *string   `json:"lawId,omitempty"`
	DepartmentID *string   `json:"departmentId,omitempty"`
	Frequency    *string   `json:"frequency,omitempty"`
	Impact       *string   `json:"impact,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Kind selects which reference table an operation targets.
type Kind string

const (
	KindEntity     Kind = "entities"
	KindDepartment Kind = "departments"
	KindLaw        Kind = "laws"
)

func (k Kind) table() string {
	switch k {
	case KindEntity:
		return "entities"
	case KindDepartment:
		return "departments"
	case KindLaw:
		return "laws"
	}
	return ""
}
