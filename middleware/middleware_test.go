package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret-with-at-least-32-characters!"

type fakeUsers map[string]models.User

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &u, nil
}

func newRouter(tokens *utils.TokenManager, users UserLoader, guards ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(tokens, users)}, guards...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "role": GetRole(c), "scope": GetScope(c)})
	})
	r.GET("/protected", handlers...)
	return r
}

func do(r http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func mustToken(t *testing.T, tokens *utils.TokenManager, u models.User) string {
	t.Helper()
	tok, err := tokens.GenerateAccessToken(u)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	tokens := utils.NewTokenManager(testSecret, time.Hour)
	progID := "prog-1"
	user := models.User{ID: "u1", Email: "a@b.fr", Role: models.RoleProgramme, ProgrammeID: &progID}
	tok := mustToken(t, tokens, user)
	r := newRouter(tokens, nil)

	if w := do(r, "/protected", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
	if w := do(r, "/protected", "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: expected 401, got %d", w.Code)
	}

	w := do(r, "/protected", tok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		ID    string       `json:"id"`
		Role  models.Role  `json:"role"`
		Scope policy.Scope `json:"scope"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "u1" || body.Role != models.RoleProgramme || len(body.Scope.ProgrammeIDs) != 1 || body.Scope.ProgrammeIDs[0] != progID {
		t.Fatalf("unexpected context %+v", body)
	}

	if w := do(r, "/protected?token="+tok, ""); w.Code != http.StatusOK {
		t.Fatalf("query token: expected 200, got %d", w.Code)
	}
}

func TestAuthMiddleware_ReloadsUser(t *testing.T) {
	tokens := utils.NewTokenManager(testSecret, time.Hour)
	tok := mustToken(t, tokens, models.User{ID: "u1", Role: models.RoleAdmin})

	users := fakeUsers{"u1": {ID: "u1", Role: models.RoleAgent, IsActive: true}}
	w := do(newRouter(tokens, users, RequireAction(policy.ActionUserManage)), "/protected", tok)
	if w.Code != http.StatusForbidden {
		t.Fatalf("downgraded role must apply immediately, got %d", w.Code)
	}

	users["u1"] = models.User{ID: "u1", Role: models.RoleAdmin, IsActive: false}
	if w := do(newRouter(tokens, users), "/protected", tok); w.Code != http.StatusUnauthorized {
		t.Fatalf("inactive user: expected 401, got %d", w.Code)
	}

	if w := do(newRouter(tokens, fakeUsers{}), "/protected", tok); w.Code != http.StatusUnauthorized {
		t.Fatalf("deleted user: expected 401, got %d", w.Code)
	}
}

func TestGuards(t *testing.T) {
	tokens := utils.NewTokenManager(testSecret, time.Hour)
	partID := "part-1"
	cases := []struct {
		name  string
		user  models.User
		guard gin.HandlerFunc
		want  int
	}{
		{"agent opens tests-site", models.User{ID: "a", Role: models.RoleAgent}, RequirePage(policy.PageTestsSite), http.StatusOK},
		{"agent denied alertes", models.User{ID: "a", Role: models.RoleAgent}, RequirePage(policy.PageAlertes), http.StatusForbidden},
		{"partenaire denied programmes", models.User{ID: "p", Role: models.RolePartenaire, PartenaireID: &partID}, RequirePage(policy.PageProgrammes), http.StatusForbidden},
		{"chef_projet resolves", models.User{ID: "c", Role: models.RoleChefProjet, ProgrammeIDs: []string{"x"}}, RequireAction(policy.ActionAlerteResolve), http.StatusOK},
		{"admin tier", models.User{ID: "c", Role: models.RoleChefProjet, ProgrammeIDs: []string{"x"}}, AdminOnly(), http.StatusOK},
		{"agent not admin", models.User{ID: "a", Role: models.RoleAgent}, AdminOnly(), http.StatusForbidden},
		{"admin not super", models.User{ID: "b", Role: models.RoleAdmin}, SuperAdminOnly(), http.StatusForbidden},
		{"super admin", models.User{ID: "s", Role: models.RoleSuperAdmin}, SuperAdminOnly(), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(newRouter(tokens, nil, tc.guard), "/protected", mustToken(t, tokens, tc.user))
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
			if tc.want == http.StatusForbidden {
				var body map[string]string
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body["error"] != "Accès refusé" || body["redirect"] == "" {
					t.Fatalf("unexpected 403 body %v", body)
				}
			}
		})
	}
}

func TestRedirectFor(t *testing.T) {
	if got := RedirectFor(models.RoleAgent); got != "/dashboard" {
		t.Fatalf("agent redirect = %q", got)
	}
	if got := RedirectFor(""); got != "/login" {
		t.Fatalf("anonymous redirect = %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.Use(rl.handle)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if w := do(r, "/", ""); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, w.Code)
		}
	}
	if w := do(r, "/", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	now = now.Add(time.Minute + time.Second)
	if w := do(r, "/", ""); w.Code != http.StatusNoContent {
		t.Fatalf("window reset: expected 204, got %d", w.Code)
	}

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	if len(rl.requests) != 0 {
		t.Fatalf("cleanup left %d entries", len(rl.requests))
	}
}
