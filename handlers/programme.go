package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
)

// ProgrammeStore is implemented by services.ProgrammeService.
type ProgrammeStore interface {
	List(ctx context.Context, scope policy.Scope, withCredentials bool) ([]models.Programme, error)
	Get(ctx context.Context, scope policy.Scope, id string, withCredentials bool) (*models.Programme, error)
	Create(ctx context.Context, req models.ProgrammeRequest) (*models.Programme, error)
	Update(ctx context.Context, id string, req models.ProgrammeRequest) (*models.Programme, error)
	Delete(ctx context.Context, id string) error
}

type ProgrammeHandler struct {
	programmes ProgrammeStore
}

func NewProgrammeHandler(programmes ProgrammeStore) *ProgrammeHandler {
	return &ProgrammeHandler{programmes: programmes}
}

// Platform credentials are only decrypted for roles allowed to read them.
func withCredentials(c *gin.Context) bool {
	return policy.Can(middleware.GetRole(c), policy.ActionCredentialsRead)
}

func (h *ProgrammeHandler) List(c *gin.Context) {
	list, err := h.programmes.List(c.Request.Context(), middleware.GetScope(c), withCredentials(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ProgrammeHandler) Get(c *gin.Context) {
	p, err := h.programmes.Get(c.Request.Context(), middleware.GetScope(c), c.Param("id"), withCredentials(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProgrammeHandler) Create(c *gin.Context) {
	var req models.ProgrammeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.programmes.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProgrammeHandler) Update(c *gin.Context) {
	var req models.ProgrammeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.programmes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProgrammeHandler) Delete(c *gin.Context) {
	if err := h.programmes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Programme supprimé"})
}
