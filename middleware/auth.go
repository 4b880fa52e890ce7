package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

const (
	ctxUserKey  = "user"
	ctxScopeKey = "scope"
)

// UserLoader reloads the caller on each request so that deactivation and role
// changes apply before the token expires.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware accepts "Authorization: Bearer <token>" or, for websocket
// upgrades, a ?token= query parameter. users may be nil, in which case the
// token claims are trusted as is.
func AuthMiddleware(tokens *utils.TokenManager, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentification requise"})
			return
		}

		claims, err := tokens.ParseToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expirée, veuillez vous reconnecter"})
			return
		}

		user := claims.User()
		if users != nil {
			fresh, err := users.GetByID(c.Request.Context(), claims.UserID)
			if err != nil || !fresh.IsActive {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Compte inactif ou introuvable"})
				return
			}
			user = *fresh
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxScopeKey, policy.ScopeFor(user))
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

// GetUser returns the authenticated user, or the zero User when the request
// did not go through AuthMiddleware.
func GetUser(c *gin.Context) models.User {
	if v, ok := c.Get(ctxUserKey); ok {
		if u, ok := v.(models.User); ok {
			return u
		}
	}
	return models.User{}
}

func GetUserID(c *gin.Context) string {
	return GetUser(c).ID
}

func GetRole(c *gin.Context) models.Role {
	return GetUser(c).Role
}

// GetScope returns the caller's data scope. The zero Scope sees nothing.
func GetScope(c *gin.Context) policy.Scope {
	if v, ok := c.Get(ctxScopeKey); ok {
		if s, ok := v.(policy.Scope); ok {
			return s
		}
	}
	return policy.Scope{}
}
