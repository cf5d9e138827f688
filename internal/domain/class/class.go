package class

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grade     string    `json:"grade,omitempty"`
	TeacherID *string   `json:"teacherId,omitempty"`
	SchoolID  *string   `json:"schoolId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	ErrNotFound       = errors.New("class not found")
	ErrDuplicateName  = errors.New("class name already exists for school")
	ErrUnknownTeacher = errors.New("assigned teacher does not exist")
)

type CreateClassRequest struct {
	Name      string  `json:"name" binding:"required,min=1,max=80"`
	Grade     string  `json:"grade" binding:"omitempty,max=20"`
	TeacherID *string `json:"teacherId" binding:"omitempty,uuid"`
	SchoolID  *string `json:"schoolId" binding:"omitempty,uuid"`
}

type UpdateClassRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=1,max=80"`
	Grade     *string `json:"grade" binding:"omitempty,max=20"`
	TeacherID *string `json:"teacherId" binding:"omitempty,uuid"`
}

func NewFromCreateRequest(req CreateClassRequest) Class {
	now := time.Now().UTC()

	return Class{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Grade:     req.Grade,
		TeacherID: req.TeacherID,
		SchoolID:  req.SchoolID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
