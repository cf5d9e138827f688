package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/campuskit/schoolhub/internal/config"
	"github.com/campuskit/schoolhub/internal/domain/student"
	"github.com/campuskit/schoolhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type StudentsRepo interface {
	Create(ctx context.Context, s student.Student) (student.Student, error)
	GetByID(ctx context.Context, id string) (student.Student, error)
	Update(ctx context.Context, id string, req student.UpdateStudentRequest) (student.Student, error)
	Deactivate(ctx context.Context, id string) error
	ListCursor(ctx context.Context, filter student.ListStudentsFilter, afterCreatedAt time.Time, afterID string) ([]student.Student, *string, bool, error)
}

type StudentsHandler struct {
	repo StudentsRepo
}

func NewStudentsHandler(repo StudentsRepo) *StudentsHandler {
	return &StudentsHandler{repo: repo}
}

func (h *StudentsHandler) Create(ctx *gin.Context) {
	var req student.CreateStudentRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	s, err := h.repo.Create(cctx, student.NewFromCreateRequest(req))

	if err != nil {
		RespondInternal(ctx, "Could not create student")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"data": s})
}

func (h *StudentsHandler) Get(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	s, err := h.repo.GetByID(cctx, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			RespondNotFound(ctx, "Student not found")
			return
		}

		RespondInternal(ctx, "Could not fetch student")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": s})
}

func (h *StudentsHandler) List(ctx *gin.Context) {
	filter := student.ListStudentsFilter{}

	if v := ctx.Query("classId"); v != "" {
		filter.ClassID = &v
	}

	if v := ctx.Query("schoolId"); v != "" {
		filter.SchoolID = &v
	}

	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			RespondBadRequest(ctx, "limit must be a positive integer", nil)
			return
		}
		filter.Limit = n
	}

	var afterCreatedAt time.Time
	var afterID string

	if raw := ctx.Query("cursor"); raw != "" {
		c, err := utils.DecodeStudentCursor(raw)
		if err != nil {
			RespondBadRequest(ctx, "invalid cursor", nil)
			return
		}
		afterCreatedAt = c.CreatedAt
		afterID = c.ID
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, next, hasMore, err := h.repo.ListCursor(cctx, filter, afterCreatedAt, afterID)

	if err != nil {
		RespondInternal(ctx, "Could not list students")
		return
	}

	if items == nil {
		items = []student.Student{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"data":       items,
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}

func (h *StudentsHandler) Update(ctx *gin.Context) {
	var req student.UpdateStudentRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	s, err := h.repo.Update(cctx, ctx.Param("id"), req)

	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			RespondNotFound(ctx, "Student not found")
			return
		}

		RespondInternal(ctx, "Could not update student")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": s})
}

// Deactivate flips the active flag; student records are never hard-deleted.
func (h *StudentsHandler) Deactivate(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.repo.Deactivate(cctx, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			RespondNotFound(ctx, "Student not found")
			return
		}

		RespondInternal(ctx, "Could not deactivate student")
		return
	}

	ctx.Status(http.StatusNoContent)
}
