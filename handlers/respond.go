package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/services"
	"github.com/qwertys/qwertys-api/utils"
)

// respondError maps service errors to HTTP statuses. Anything unexpected is
// logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var vErr *services.ValidationError
	var dup *services.DuplicateTestError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "field": vErr.Field})
	case errors.As(err, &dup):
		body := gin.H{"error": services.DuplicateTestMessage}
		if dup.Conflict != nil {
			body["conflict"] = dup.Conflict
		}
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Ressource introuvable"})
	case errors.Is(err, services.ErrForbidden):
		middleware.Forbidden(c)
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Transition de statut invalide"})
	case errors.Is(err, services.ErrAlerteNotResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "Seules les alertes résolues peuvent être supprimées"})
	case errors.Is(err, services.ErrSelfDelete):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vous ne pouvez pas supprimer votre propre compte"})
	case errors.Is(err, services.ErrWrongPassword):
		// 400, not 401: a 401 would end the caller's session
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mot de passe actuel incorrect"})
	case errors.Is(err, services.ErrConflict):
		msg := strings.TrimPrefix(err.Error(), services.ErrConflict.Error()+": ")
		c.JSON(http.StatusConflict, gin.H{"error": msg})
	case errors.Is(err, services.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service non configuré"})
	default:
		utils.SafeError("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne du serveur"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Requête invalide : " + err.Error()})
}

func queryUint(c *gin.Context, key string) uint64 {
	n, err := strconv.ParseUint(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// queryDate parses a YYYY-MM-DD query parameter in loc.
func queryDate(c *gin.Context, key string, loc *time.Location) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
