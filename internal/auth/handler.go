package auth

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/pkg/response"
)

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// UserStore is the user lookup the login handler needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastAccess(ctx context.Context, id, now int64) error
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	users  UserStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users UserStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		CheckPassword(req.Password, "")
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	pub := user.ToPublic()
	token, err := h.jwt.Generate(user.ID, user.Email, string(pub.Role))
	if err != nil {
		h.logger.Error("generate token", zap.Int64("user_id", user.ID), zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	if err := h.users.TouchLastAccess(c.Request.Context(), user.ID, time.Now().Unix()); err != nil {
		h.logger.Warn("touch lastaccess", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	response.OK(c, TokenResponse{Token: token, User: pub})
}
