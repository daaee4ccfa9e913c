package handlers

import (
	"log/slog"
	"net/http"

	"github.com/festlabs/festreg/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TokenIssuer interface {
	GenerateAccessToken(userID, email, role string) (string, error)
}

// AuthHandler serves the env-seeded administrator login. Participant identity
// arrives as externally issued bearer tokens; this is the only place the
// service mints one itself.
type AuthHandler struct {
	jwt         TokenIssuer
	adminEmail  string
	adminHash   string
	adminUserID string
	log         *slog.Logger
}

func NewAuthHandler(jwt TokenIssuer, adminEmail, adminPassword string, log *slog.Logger) *AuthHandler {
	hash := ""
	if adminPassword != "" {
		h, err := security.HashPassword(adminPassword)
		if err == nil {
			hash = h
		} else {
			log.Error("admin password hash failed", "err", err)
		}
	}

	return &AuthHandler{
		jwt:         jwt,
		adminEmail:  adminEmail,
		adminHash:   hash,
		adminUserID: uuid.NewString(),
		log:         log,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if h.adminEmail == "" || h.adminHash == "" {
		RespondError(ctx, http.StatusServiceUnavailable, "login_disabled", "Admin login is not configured", nil)
		return
	}

	if req.Email != h.adminEmail || security.CheckPassword(h.adminHash, req.Password) != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect")
		return
	}

	token, err := h.jwt.GenerateAccessToken(h.adminUserID, h.adminEmail, "admin")
	if err != nil {
		RespondInternal(ctx, "Could not issue token")
		h.log.Error("token issue failed", "err", err)
		return
	}

	ctx.JSON(http.StatusOK, LoginResponse{AccessToken: token, Role: "admin"})
}
