package directory

import (
	"time"

	"comply/internal/domain/auth"
)

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        auth.Role  `json:"role"`
	IsActive    bool       `json:"isActive"`
	MsOID       *string    `json:"msOid,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
