package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/services"
	"github.com/qwertys/qwertys-api/utils"
)

// UserStore is implemented by services.UserService.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, actor models.User, req models.UserRequest) (*models.User, error)
	Update(ctx context.Context, actor models.User, id string, req models.UserRequest) (*models.User, error)
	Delete(ctx context.Context, actor models.User, id string) error
	UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.User, error)
	ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error
	StoreTOTPSecret(ctx context.Context, id, secret string) error
	SetTOTPEnabled(ctx context.Context, id string, enabled bool) error
	ListConnections(ctx context.Context, limit, offset uint64) ([]models.ConnectionLog, error)
}

type UserHandler struct {
	users UserStore
}

func NewUserHandler(users UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// ============================================================================
// IDENTIFIANTS (user management)
// ============================================================================

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req models.UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor := middleware.GetUser(c)
	user, err := h.users.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("👤 User %s created by %s", utils.MaskID(user.ID), utils.MaskID(actor.ID))
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req models.UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.Update(c.Request.Context(), middleware.GetUser(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), middleware.GetUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Utilisateur supprimé"})
}

// ============================================================================
// PROFILE MANAGEMENT
// ============================================================================

func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.users.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("✅ User %s password changed successfully", utils.MaskID(userID))
	c.JSON(http.StatusOK, gin.H{"message": "Mot de passe modifié"})
}

// ============================================================================
// 2FA MANAGEMENT
// ============================================================================

func (h *UserHandler) SetupTOTP(c *gin.Context) {
	user := middleware.GetUser(c)

	secret, url, err := utils.GenerateTOTPSecret(user.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.users.StoreTOTPSecret(c.Request.Context(), user.ID, secret); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TOTPSetupResponse{Secret: secret, QRCode: url})
}

func (h *UserHandler) VerifyTOTP(c *gin.Context) {
	var req models.VerifyTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if user.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "2FA non initialisée"})
		return
	}
	if !utils.VerifyTOTP(user.TOTPSecret, req.Code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code 2FA invalide"})
		return
	}

	if err := h.users.SetTOTPEnabled(c.Request.Context(), user.ID, true); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "2FA activée"})
}

func (h *UserHandler) DisableTOTP(c *gin.Context) {
	var req models.DisableTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		respondError(c, services.ErrWrongPassword)
		return
	}
	if user.TOTPEnabled && !utils.VerifyTOTP(user.TOTPSecret, req.Code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code 2FA invalide"})
		return
	}

	if err := h.users.SetTOTPEnabled(c.Request.Context(), user.ID, false); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "2FA désactivée"})
}

// ============================================================================
// CONNECTION LOGS
// ============================================================================

func (h *UserHandler) ListConnectionLogs(c *gin.Context) {
	logs, err := h.users.ListConnections(c.Request.Context(), queryUint(c, "limit"), queryUint(c, "offset"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

