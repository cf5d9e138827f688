package user

import "time"

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
)

// DefaultRole is assigned when registration does not name one.
const DefaultRole = RoleTeacher

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	}
	return false
}

func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleTeacher
}

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	Role         string     `json:"role"`
	SchoolID     *string    `json:"schoolId,omitempty"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	// Both set during an open reset window, both nil otherwise.
	ResetTokenHash   *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
}

// UpdateDetailsRequest carries the mutable identity fields. Nil means
// "leave unchanged".
type UpdateDetailsRequest struct {
	Name  *string
	Email *string
}
