package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/campuskit/schoolhub/internal/auth"
	"github.com/campuskit/schoolhub/internal/config"
	"github.com/campuskit/schoolhub/internal/domain/user"
	"github.com/campuskit/schoolhub/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthService is the transport-agnostic auth core; the handler only maps
// requests and error kinds onto HTTP.
type AuthService interface {
	Register(ctx context.Context, req service.RegisterRequest) (service.TokenResult, error)
	Login(ctx context.Context, email, password string) (service.TokenResult, error)
	CurrentUser(ctx context.Context, token string) (user.User, error)
	UpdateDetails(ctx context.Context, token string, req user.UpdateDetailsRequest) (user.User, error)
	UpdatePassword(ctx context.Context, token, currentPassword, newPassword string) (service.TokenResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) (service.TokenResult, error)
}

type AuthHandler struct {
	svc AuthService
	cfg config.Config
}

func NewAuthHandler(svc AuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{svc: svc, cfg: cfg}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=admin teacher student parent"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateDetailsRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

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

	h.sendToken(ctx, http.StatusCreated, result)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	result, err := h.svc.Login(cctx, req.Email, req.Password)

	if err != nil {
		respondAuthError(ctx, err)
		return
	}

	h.sendToken(ctx, http.StatusOK, result)
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.svc.CurrentUser(cctx, tokenFromRequest(ctx))

	if err != nil {
		respondAuthError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": u})
}

func (h *AuthHandler) UpdateDetails(ctx *gin.Context) {
	var req UpdateDetailsRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	u, err := h.svc.UpdateDetails(cctx, tokenFromRequest(ctx), user.UpdateDetailsRequest{
		Name:  req.Name,
		Email: req.Email,
	})

	if err != nil {
		respondAuthError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": u})
}

func (h *AuthHandler) UpdatePassword(ctx *gin.Context) {
	var req UpdatePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	result, err := h.svc.UpdatePassword(cctx, tokenFromRequest(ctx), req.CurrentPassword, req.NewPassword)

	if err != nil {
		respondAuthError(ctx, err)
		return
	}

	h.sendToken(ctx, http.StatusOK, result)
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// delivery can take a while; allow more headroom than a DB lookup
	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	err := h.svc.ForgotPassword(cctx, req.Email)

	if err != nil {
		respondAuthError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": "reset email sent"})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	result, err := h.svc.ResetPassword(cctx, ctx.Param("resettoken"), req.Password)

	if err != nil {
		respondAuthError(ctx, err)
		return
	}

	h.sendToken(ctx, http.StatusOK, result)
}

// sendToken writes the session token to the JSON body and mirrors it in a
// cookie for browser clients.
func (h *AuthHandler) sendToken(ctx *gin.Context, status int, result service.TokenResult) {
	secure := h.cfg.Env == "prod"
	maxAge := h.cfg.CookieExpireDays * 24 * 60 * 60

	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie("token", result.Token, maxAge, "/", "", secure, true)

	ctx.JSON(status, gin.H{
		"token": result.Token,
		"data":  result.User,
	})
}

func respondAuthError(ctx *gin.Context, err error) {
	var ve *service.ValidationError

	switch {
	case errors.As(err, &ve):
		RespondValidation(ctx, ve.Field, ve.Reason)

	case errors.Is(err, service.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")

	case errors.Is(err, auth.ErrInvalidToken):
		RespondUnAuthorized(ctx, "invalid_token", "Invalid or expired token")

	case errors.Is(err, service.ErrResetTokenNotFoundOrExpired):
		RespondBadRequest(ctx, "Reset token not found or expired", nil)

	case errors.Is(err, service.ErrNotFound):
		RespondNotFound(ctx, "No account with that email")

	default:
		var de *service.DeliveryError
		if errors.As(err, &de) {
			RespondError(ctx, http.StatusBadGateway, "delivery_failed", "Email could not be sent", nil)
			return
		}

		var te *service.TransientError
		if errors.As(err, &te) {
			RespondUnavailable(ctx, "Temporary failure. Please retry.")
			return
		}

		RespondInternal(ctx, "Something went wrong")
	}
}

func tokenFromRequest(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	}

	token, _ := ctx.Cookie("token")

	return token
}
