package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/services"
)

// PartenaireStore is implemented by services.PartenaireService.
type PartenaireStore interface {
	List(ctx context.Context, scope policy.Scope) ([]models.Partenaire, error)
	Get(ctx context.Context, scope policy.Scope, id string) (*models.Partenaire, error)
	Create(ctx context.Context, req models.PartenaireRequest) (*models.Partenaire, error)
	Update(ctx context.Context, id string, req models.PartenaireRequest) (*models.Partenaire, error)
	Delete(ctx context.Context, id string) error
}

type PartenaireHandler struct {
	partenaires PartenaireStore
}

func NewPartenaireHandler(partenaires PartenaireStore) *PartenaireHandler {
	return &PartenaireHandler{partenaires: partenaires}
}

// List accepts ?test_type=site|ligne[&programme_id=] to keep only the partners
// that require this kind of test, as the test forms do.
func (h *PartenaireHandler) List(c *gin.Context) {
	list, err := h.partenaires.List(c.Request.Context(), middleware.GetScope(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if raw := c.Query("test_type"); raw != "" {
		testType, ok := models.ParseTestType(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Type de test invalide", "field": "test_type"})
			return
		}
		list = services.SelectablePartenaires(list, c.Query("programme_id"), testType)
	}
	c.JSON(http.StatusOK, list)
}

func (h *PartenaireHandler) Get(c *gin.Context) {
	p, err := h.partenaires.Get(c.Request.Context(), middleware.GetScope(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PartenaireHandler) Create(c *gin.Context) {
	var req models.PartenaireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.partenaires.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PartenaireHandler) Update(c *gin.Context) {
	var req models.PartenaireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.partenaires.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PartenaireHandler) Delete(c *gin.Context) {
	if err := h.partenaires.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Partenaire supprimé"})
}
