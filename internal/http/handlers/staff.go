package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/campuskit/schoolhub/internal/actorctx"
	"github.com/campuskit/schoolhub/internal/cache"
	"github.com/campuskit/schoolhub/internal/config"
	"github.com/campuskit/schoolhub/internal/domain/user"
	"github.com/campuskit/schoolhub/internal/service"
	"github.com/gin-gonic/gin"
)

type StaffStore interface {
	ListStaff(ctx context.Context, limit int) ([]user.User, error)
	Deactivate(ctx context.Context, id string) error
}

type StaffHandler struct {
	store StaffStore
	svc   AuthService
	cache *cache.Cache
}

func NewStaffHandler(store StaffStore, svc AuthService, c *cache.Cache) *StaffHandler {
	return &StaffHandler{store: store, svc: svc, cache: c}
}

// List returns active staff accounts. The roster changes rarely, so reads
// are served from a short-TTL cache.
func (h *StaffHandler) List(ctx *gin.Context) {
	limit := 50

	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			RespondBadRequest(ctx, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	key := "staff:list:limit=" + strconv.Itoa(limit)

	if h.cache != nil {
		if cached, ok := h.cache.Get(key); ok {
			if staff, ok := cached.([]user.User); ok {
				RespondJSONWithETag(ctx, http.StatusOK, gin.H{"data": staff})
				return
			}
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	staff, err := h.store.ListStaff(cctx, limit)

	if err != nil {
		RespondInternal(ctx, "Could not list staff")
		return
	}

	if staff == nil {
		staff = []user.User{}
	}

	if h.cache != nil {
		h.cache.Set(key, staff)
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"data": staff})
}

type CreateStaffRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=admin teacher"`
}

// Create registers a staff account on behalf of an admin. The invited
// user's session token is not returned; they log in themselves.
func (h *StaffHandler) Create(ctx *gin.Context) {
	var req CreateStaffRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	result, err := h.svc.Register(cctx, service.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})

	if err != nil {
		respondAuthError(ctx, err)
		return
	}

	if h.cache != nil {
		h.cache.Clear()
	}

	ctx.JSON(http.StatusCreated, gin.H{"data": result.User})
}

// Deactivate retires a staff account. The record stays so attendance
// history keeps its recordedBy references.
func (h *StaffHandler) Deactivate(ctx *gin.Context) {
	id := ctx.Param("id")

	if actor, ok := actorctx.UserIDFrom(ctx.Request.Context()); ok && actor == id {
		RespondBadRequest(ctx, "You cannot deactivate your own account", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Deactivate(cctx, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "Staff member not found")
			return
		}

		RespondInternal(ctx, "Could not deactivate staff member")
		return
	}

	if h.cache != nil {
		h.cache.Clear()
	}

	ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "isActive": false}})
}
