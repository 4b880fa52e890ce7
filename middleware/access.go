package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
)

// Forbidden aborts with 403 and tells the client where to send the user back.
func Forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error":    "Accès refusé",
		"redirect": RedirectFor(GetRole(c)),
	})
}

// RedirectFor is the path of the role's default page, or /login when the role
// has none.
func RedirectFor(role models.Role) string {
	if page := policy.DefaultPage(role); page != "" {
		return "/" + string(page)
	}
	return "/login"
}

func guard(allowed func(models.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allowed(GetRole(c)) {
			Forbidden(c)
			return
		}
		c.Next()
	}
}

// RequirePage lets through the roles allowed to open page.
func RequirePage(page policy.Page) gin.HandlerFunc {
	return guard(func(r models.Role) bool { return policy.IsAllowed(r, page) })
}

// RequireAction lets through the roles allowed to perform action.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return guard(func(r models.Role) bool { return policy.Can(r, action) })
}

func AdminOnly() gin.HandlerFunc {
	return guard(policy.IsAdmin)
}

func SuperAdminOnly() gin.HandlerFunc {
	return guard(policy.IsSuperAdmin)
}
