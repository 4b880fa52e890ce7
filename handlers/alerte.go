package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

// AlerteStore is implemented by services.AlerteService.
type AlerteStore interface {
	List(ctx context.Context, scope policy.Scope, f models.AlerteFilter) ([]models.Alerte, error)
	Get(ctx context.Context, scope policy.Scope, id string) (*models.Alerte, error)
	Create(ctx context.Context, scope policy.Scope, a models.Alerte) (*models.Alerte, error)
	Resolve(ctx context.Context, scope policy.Scope, id string, statut models.AlerteStatut, resolvedBy string) (*models.Alerte, error)
	Delete(ctx context.Context, scope policy.Scope, id string) (*models.Alerte, error)
	CountOpen(ctx context.Context, scope policy.Scope) (int, error)
}

type AlerteHandler struct {
	alertes AlerteStore
	events  *AlerteEvents
}

func NewAlerteHandler(alertes AlerteStore, events *AlerteEvents) *AlerteHandler {
	return &AlerteHandler{alertes: alertes, events: events}
}

func (h *AlerteHandler) List(c *gin.Context) {
	f := models.AlerteFilter{
		Statut:       models.AlerteStatut(c.Query("statut")),
		ProgrammeID:  c.Query("programme_id"),
		PartenaireID: c.Query("partenaire_id"),
	}
	if raw := c.Query("type_test"); raw != "" {
		t, ok := models.ParseTestType(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Type de test invalide (TS ou TL)", "field": "type_test"})
			return
		}
		f.TypeTest = t.Code()
	}
	if f.Statut != "" && f.Statut != models.AlerteOuvert && f.Statut != models.AlerteResolu {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statut invalide", "field": "statut"})
		return
	}

	list, err := h.alertes.List(c.Request.Context(), middleware.GetScope(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *AlerteHandler) Get(c *gin.Context) {
	a, err := h.alertes.Get(c.Request.Context(), middleware.GetScope(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Count returns the number of open alerts, used by the navigation badge.
func (h *AlerteHandler) Count(c *gin.Context) {
	n, err := h.alertes.CountOpen(c.Request.Context(), middleware.GetScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ouvertes": n})
}

func (h *AlerteHandler) Create(c *gin.Context) {
	var req models.AlerteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	created, err := h.alertes.Create(c.Request.Context(), middleware.GetScope(c), models.Alerte{
		ProgrammeID:     req.ProgrammeID,
		PartenaireID:    req.PartenaireID,
		TypeTest:        req.TypeTest,
		Description:     req.Description,
		PointsAttention: req.PointsAttention,
		TestID:          req.TestID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.LogAlerteAction("created", created.ID, middleware.GetUserID(c))
	h.events.Publish(EventAlerteCreated, *created)
	c.JSON(http.StatusCreated, created)
}

// Resolve handles PUT /alertes/:id. The only accepted change is statut=resolu.
func (h *AlerteHandler) Resolve(c *gin.Context) {
	var req models.UpdateAlerteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resolved, err := h.alertes.Resolve(c.Request.Context(), middleware.GetScope(c), c.Param("id"), req.Statut, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.LogAlerteAction("resolved", resolved.ID, middleware.GetUserID(c))
	h.events.Publish(EventAlerteResolved, *resolved)
	c.JSON(http.StatusOK, resolved)
}

func (h *AlerteHandler) Delete(c *gin.Context) {
	deleted, err := h.alertes.Delete(c.Request.Context(), middleware.GetScope(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.LogAlerteAction("deleted", deleted.ID, middleware.GetUserID(c))
	h.events.Publish(EventAlerteDeleted, *deleted)
	c.JSON(http.StatusOK, gin.H{"message": "Alerte supprimée"})
}
