package task

import "time"

type Task struct {
	ID           string     `json:"id"`
	ComplianceID string     `json:"complianceId"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	LawID        string     `json:"lawId"`
	DepartmentID string     `json:"departmentId"`
	EntityID     string     `json:"entityId"`
	OwnerID      string     `json:"ownerId"`
	ReviewerID   string     `json:"reviewerId"`
	Frequency    *string    `json:"frequency,omitempty"`
	Impact       *string    `json:"impact,omitempty"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Overdue      bool       `json:"overdue"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Execution struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	Comment    *string   `json:"comment,omitempty"`
	Remarks    *string   `json:"remarks,omitempty"`
	ExecutedAt time.Time `json:"executedAt"`
}

// CreateInput carries everything needed to insert a task.
type CreateInput struct {
	ComplianceID string
	Title        string
	Description  *string
	LawID        string
	DepartmentID string
	EntityID     string
	OwnerID      string
	ReviewerID   string
	Frequency    *string
	Impact       *string
	Status       string
	DueDate      *time.Time
}

// UpdateInput applies partial updates; nil fields keep their current value.
type UpdateInput struct {
	Title        *string
	Description  *string
	LawID        *string
	DepartmentID *string
	OwnerID      *string
	ReviewerID   *string
	Frequency    *string
	Impact       *string
	DueDate      *time.Time
	ClearDueDate bool
}

// Filter narrows task listings. Zero values mean no constraint.
type Filter struct {
	Status       string
	EntityID     string
	DepartmentID string
	OwnerID      string
	OverdueOnly  bool
}
