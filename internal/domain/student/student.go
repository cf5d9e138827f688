package student

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Student struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	SchoolID      *string   `json:"schoolId,omitempty"`
	ClassID       *string   `json:"classId,omitempty"`
	GuardianName  string    `json:"guardianName,omitempty"`
	GuardianPhone string    `json:"guardianPhone,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("student not found")

// with pointers if optional, it will be nil
type ListStudentsFilter struct {
	ClassID  *string
	SchoolID *string
	Limit    int
}

type CreateStudentRequest struct {
	Name          string  `json:"name" binding:"required,min=2,max=120"`
	Email         string  `json:"email" binding:"omitempty,email"`
	SchoolID      *string `json:"schoolId" binding:"omitempty,uuid"`
	ClassID       *string `json:"classId" binding:"omitempty,uuid"`
	GuardianName  string  `json:"guardianName" binding:"omitempty,max=120"`
	GuardianPhone string  `json:"guardianPhone" binding:"omitempty,max=32"`
}

type UpdateStudentRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=2,max=120"`
	Email         *string `json:"email" binding:"omitempty,email"`
	ClassID       *string `json:"classId" binding:"omitempty,uuid"`
	GuardianName  *string `json:"guardianName" binding:"omitempty,max=120"`
	GuardianPhone *string `json:"guardianPhone" binding:"omitempty,max=32"`
}

func NewFromCreateRequest(req CreateStudentRequest) Student {
	now := time.Now().UTC()

	return Student{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Email:         req.Email,
		SchoolID:      req.SchoolID,
		ClassID:       req.ClassID,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
