package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/services"
	"github.com/qwertys/qwertys-api/utils"
)

// AccountStore is the part of UserService the login flow needs.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	LogConnection(ctx context.Context, l models.ConnectionLog) error
}

type AuthHandler struct {
	users  AccountStore
	tokens *utils.TokenManager
}

func NewAuthHandler(users AccountStore, tokens *utils.TokenManager) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

func (h *AuthHandler) logAttempt(c *gin.Context, email string, u *models.User, success bool, reason string) {
	entry := models.ConnectionLog{
		Email:     email,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Success:   success,
		Reason:    reason,
	}
	if u != nil {
		id := u.ID
		entry.UserID = &id
	}
	if err := h.users.LogConnection(c.Request.Context(), entry); err != nil {
		utils.SafeError("❌ Failed to log connection for %s: %v", email, err)
	}
	utils.LogAuthAction("login", email, success)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, services.ErrNotFound) {
		h.logAttempt(c, req.Email, nil, false, "unknown email")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants invalides"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		h.logAttempt(c, req.Email, user, false, "wrong password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants invalides"})
		return
	}
	if !user.IsActive {
		h.logAttempt(c, req.Email, user, false, "inactive account")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Compte désactivé"})
		return
	}

	if user.TOTPEnabled {
		if req.TOTPCode == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Code 2FA requis", "requires_2fa": true})
			return
		}
		if !utils.VerifyTOTP(user.TOTPSecret, req.TOTPCode) {
			h.logAttempt(c, req.Email, user, false, "invalid 2fa code")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Code 2FA invalide", "requires_2fa": true})
			return
		}
	}

	token, err := h.tokens.GenerateAccessToken(*user)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logAttempt(c, req.Email, user, true, "")
	c.JSON(http.StatusOK, models.AuthResponse{Token: token, User: *user})
}

// Me returns the caller with the pages they may open.
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.GetUser(c)
	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"pages":        policy.AllowedPages(user.Role),
		"default_page": policy.DefaultPage(user.Role),
		"scope":        middleware.GetScope(c),
	})
}

func (h *AuthHandler) Pages(c *gin.Context) {
	role := middleware.GetRole(c)
	c.JSON(http.StatusOK, gin.H{
		"pages":        policy.AllowedPages(role),
		"default_page": policy.DefaultPage(role),
	})
}
