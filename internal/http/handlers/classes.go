package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/campuskit/schoolhub/internal/config"
	"github.com/campuskit/schoolhub/internal/domain/class"
	"github.com/gin-gonic/gin"
)

type ClassesRepo interface {
	Create(ctx context.Context, c class.Class) (class.Class, error)
	GetByID(ctx context.Context, id string) (class.Class, error)
	List(ctx context.Context, limit int) ([]class.Class, error)
	Update(ctx context.Context, id string, req class.UpdateClassRequest) (class.Class, error)
	Delete(ctx context.Context, id string) error
}

type ClassesHandler struct {
	repo ClassesRepo
}

func NewClassesHandler(repo ClassesRepo) *ClassesHandler {
	return &ClassesHandler{repo: repo}
}

func respondClassError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, class.ErrNotFound):
		RespondNotFound(ctx, "Class not found")
	case errors.Is(err, class.ErrDuplicateName):
		RespondConflict(ctx, "class_name_taken", "A class with this name already exists.")
	case errors.Is(err, class.ErrUnknownTeacher):
		RespondBadRequest(ctx, "Assigned teacher does not exist", nil)
	default:
		RespondInternal(ctx, fallback)
	}
}

func (h *ClassesHandler) Create(ctx *gin.Context) {
	var req class.CreateClassRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	c, err := h.repo.Create(cctx, class.NewFromCreateRequest(req))

	if err != nil {
		respondClassError(ctx, err, "Could not create class")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"data": c})
}

func (h *ClassesHandler) Get(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	c, err := h.repo.GetByID(cctx, ctx.Param("id"))

	if err != nil {
		respondClassError(ctx, err, "Could not fetch class")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": c})
}

func (h *ClassesHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	classes, err := h.repo.List(cctx, 0)

	if err != nil {
		RespondInternal(ctx, "Could not list classes")
		return
	}

	if classes == nil {
		classes = []class.Class{}
	}

	ctx.JSON(http.StatusOK, gin.H{"data": classes})
}

func (h *ClassesHandler) Update(ctx *gin.Context) {
	var req class.UpdateClassRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	c, err := h.repo.Update(cctx, ctx.Param("id"), req)

	if err != nil {
		respondClassError(ctx, err, "Could not update class")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": c})
}

func (h *ClassesHandler) Delete(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, ctx.Param("id"))

	if err != nil {
		respondClassError(ctx, err, "Could not delete class")
		return
	}

	ctx.Status(http.StatusNoContent)
}
