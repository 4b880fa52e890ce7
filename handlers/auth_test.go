package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/services"
	"github.com/qwertys/qwertys-api/utils"
)

// memUsers is an in-memory AccountStore and UserStore.
type memUsers struct {
	byID map[string]*models.User
	logs []models.ConnectionLog
}

func newMemUsers(t *testing.T, users ...models.User) *memUsers {
	t.Helper()
	m := &memUsers{byID: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		hash, err := utils.HashPassword("motdepasse123")
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		u.PasswordHash = hash
		m.byID[u.ID] = &u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, services.ErrNotFound
}

func (m *memUsers) LogConnection(_ context.Context, l models.ConnectionLog) error {
	m.logs = append(m.logs, l)
	return nil
}

func (m *memUsers) List(context.Context) ([]models.User, error) {
	out := []models.User{}
	for _, u := range m.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUsers) Create(_ context.Context, actor models.User, req models.UserRequest) (*models.User, error) {
	if !services.CanManageUser(actor.Role, req.Role) {
		return nil, services.ErrForbidden
	}
	u := &models.User{ID: "new", Email: req.Email, Role: req.Role, IsActive: true}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) Update(_ context.Context, _ models.User, id string, _ models.UserRequest) (*models.User, error) {
	return m.GetByID(context.Background(), id)
}

func (m *memUsers) Delete(_ context.Context, actor models.User, id string) error {
	if actor.ID == id {
		return services.ErrSelfDelete
	}
	delete(m.byID, id)
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, req models.UpdateProfileRequest) (*models.User, error) {
	return m.GetByID(context.Background(), id)
}

func (m *memUsers) ChangePassword(_ context.Context, id, current, next string) error {
	u := m.byID[id]
	if !utils.CheckPassword(current, u.PasswordHash) {
		return services.ErrWrongPassword
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) StoreTOTPSecret(_ context.Context, id, secret string) error {
	m.byID[id].TOTPSecret = secret
	m.byID[id].TOTPEnabled = false
	return nil
}

func (m *memUsers) SetTOTPEnabled(_ context.Context, id string, enabled bool) error {
	m.byID[id].TOTPEnabled = enabled
	return nil
}

func (m *memUsers) ListConnections(context.Context, uint64, uint64) ([]models.ConnectionLog, error) {
	return m.logs, nil
}

func TestAuthHandler_Login(t *testing.T) {
	alice := agent
	alice.Email = "alice@qwertys.fr"
	inactive := models.User{ID: "u-off", Email: "off@qwertys.fr", Role: models.RoleAgent}
	users := newMemUsers(t, alice, inactive)

	h := NewAuthHandler(users, testTokens)
	r, api := authed()
	r.POST("/api/auth/login", h.Login)
	api.GET("/auth/me", h.Me)

	cases := []struct {
		name     string
		email    string
		password string
		status   int
		want     string
	}{
		{"unknown email", "nobody@qwertys.fr", "motdepasse123", http.StatusUnauthorized, "Identifiants invalides"},
		{"wrong password", "alice@qwertys.fr", "mauvais", http.StatusUnauthorized, "Identifiants invalides"},
		{"inactive", "off@qwertys.fr", "motdepasse123", http.StatusUnauthorized, "Compte désactivé"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := request(t, r, http.MethodPost, "/api/auth/login", nil, map[string]string{"email": tc.email, "password": tc.password})
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			var body map[string]interface{}
			decode(t, w, &body)
			if body["error"] != tc.want {
				t.Fatalf("expected %q, got %v", tc.want, body["error"])
			}
		})
	}

	w := request(t, r, http.MethodPost, "/api/auth/login", nil, map[string]string{"email": "alice@qwertys.fr", "password": "motdepasse123"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var auth models.AuthResponse
	decode(t, w, &auth)
	if auth.Token == "" || auth.User.ID != alice.ID {
		t.Fatalf("unexpected login response %+v", auth)
	}

	if len(users.logs) != 4 || !users.logs[3].Success || users.logs[0].Success {
		t.Fatalf("every attempt must be logged, got %+v", users.logs)
	}

	req := request(t, r, http.MethodGet, "/api/auth/me", &alice, nil)
	var me struct {
		User        models.User   `json:"user"`
		Pages       []policy.Page `json:"pages"`
		DefaultPage policy.Page   `json:"default_page"`
	}
	decode(t, req, &me)
	if me.User.ID != alice.ID || me.DefaultPage != policy.PageDashboard {
		t.Fatalf("unexpected /me %+v", me)
	}
	for _, p := range me.Pages {
		if p == policy.PageParametres || p == policy.PageAlertes {
			t.Fatalf("agent must not see %s", p)
		}
	}
}

func TestTOTPFlow(t *testing.T) {
	alice := agent
	alice.Email = "alice@qwertys.fr"
	users := newMemUsers(t, alice)

	auth := NewAuthHandler(users, testTokens)
	uh := NewUserHandler(users)
	r, api := authed()
	r.POST("/api/auth/login", auth.Login)
	api.POST("/user/2fa/setup", uh.SetupTOTP)
	api.POST("/user/2fa/verify", uh.VerifyTOTP)
	api.POST("/user/2fa/disable", uh.DisableTOTP)

	var setup models.TOTPSetupResponse
	decode(t, request(t, r, http.MethodPost, "/api/user/2fa/setup", &alice, nil), &setup)
	if setup.Secret == "" || setup.QRCode == "" {
		t.Fatalf("unexpected setup %+v", setup)
	}

	if w := request(t, r, http.MethodPost, "/api/user/2fa/verify", &alice, map[string]string{"code": "000000"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a wrong code, got %d", w.Code)
	}
	code, err := utils.GenerateTOTPCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("code: %v", err)
	}
	if w := request(t, r, http.MethodPost, "/api/user/2fa/verify", &alice, map[string]string{"code": code}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	login := map[string]string{"email": "alice@qwertys.fr", "password": "motdepasse123"}
	w := request(t, r, http.MethodPost, "/api/auth/login", nil, login)
	var body map[string]interface{}
	decode(t, w, &body)
	if w.Code != http.StatusUnauthorized || body["requires_2fa"] != true {
		t.Fatalf("login without code must ask for 2FA, got %d %v", w.Code, body)
	}

	login["totp_code"] = code
	if w := request(t, r, http.MethodPost, "/api/auth/login", nil, login); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid code, got %d", w.Code)
	}

	if w := request(t, r, http.MethodPost, "/api/user/2fa/disable", &alice, map[string]string{"password": "faux", "code": code}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a wrong password, got %d", w.Code)
	}
	if w := request(t, r, http.MethodPost, "/api/user/2fa/disable", &alice, map[string]string{"password": "motdepasse123", "code": code}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if users.byID[alice.ID].TOTPEnabled {
		t.Fatal("2FA still enabled")
	}
}

func TestUserHandler_Management(t *testing.T) {
	users := newMemUsers(t, superAdmin, chefA)
	h := NewUserHandler(users)
	r, api := authed()
	api.POST("/users", h.CreateUser)
	api.DELETE("/users/:id", h.DeleteUser)
	api.POST("/user/password", h.ChangePassword)

	w := request(t, r, http.MethodPost, "/api/users", &chefA, map[string]interface{}{
		"email": "boss@qwertys.fr", "password": "motdepasse123", "role": "super_admin", "nom": "B", "prenom": "B",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("chef_projet must not create a super_admin, got %d: %s", w.Code, w.Body.String())
	}

	if w := request(t, r, http.MethodDelete, "/api/users/"+superAdmin.ID, &superAdmin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on self delete, got %d", w.Code)
	}

	w = request(t, r, http.MethodPost, "/api/user/password", &chefA, map[string]string{"current_password": "faux", "new_password": "nouveaumdp1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("wrong current password must be 400, got %d", w.Code)
	}
	w = request(t, r, http.MethodPost, "/api/user/password", &chefA, map[string]string{"current_password": "motdepasse123", "new_password": "nouveaumdp1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !utils.CheckPassword("nouveaumdp1", users.byID[chefA.ID].PasswordHash) {
		t.Fatal("password not changed")
	}
}
