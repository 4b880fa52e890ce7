package policy

import (
	"testing"

	"github.com/qwertys/qwertys-api/models"
)

func TestIsAllowed(t *testing.T) {
	cases := []struct {
		role models.Role
		page Page
		want bool
	}{
		{models.RolePartenaire, PageConnectionLogs, false},
		{models.RoleSuperAdmin, PageConnectionLogs, true},
		{models.RoleAdmin, PageConnectionLogs, false},
		{models.RoleAdmin, PageAlertes, true},
		{models.RoleAgent, PageAlertes, false},
		{models.RoleProgramme, PageAlertes, true},
		{models.RolePartenaire, PageAlertes, false},
		{models.RoleChefProjet, PageIdentifiants, true},
		{models.RoleAgent, PageIdentifiants, false},
		{models.RoleAgent, PageTestsSite, true},
		{models.RolePartenaire, PageTestsLigne, true},
		{models.RoleSuperAdmin, PageBilanPartenaire, true},
		{models.RoleAdmin, PageParametres, false},
		{models.Role("visiteur"), PageDashboard, false},
		{models.RoleAdmin, Page("unknown"), false},
	}

	for _, tc := range cases {
		if got := IsAllowed(tc.role, tc.page); got != tc.want {
			t.Errorf("IsAllowed(%s, %s) = %v, want %v", tc.role, tc.page, got, tc.want)
		}
	}
}

func TestSatisfies_Lattice(t *testing.T) {
	if !Satisfies(models.RoleSuperAdmin, models.RoleAdmin) {
		t.Error("super_admin must satisfy admin")
	}
	if !Satisfies(models.RoleSuperAdmin, models.RolePartenaire) {
		t.Error("super_admin must satisfy partenaire")
	}
	if !Satisfies(models.RoleAdmin, models.RoleAgent) {
		t.Error("admin must satisfy agent")
	}
	if Satisfies(models.RoleAdmin, models.RoleSuperAdmin) {
		t.Error("admin must not satisfy super_admin")
	}
	if Satisfies(models.RoleAdmin, models.RoleProgramme) {
		t.Error("admin must not satisfy programme")
	}
	if Satisfies(models.RoleProgramme, models.RoleAgent) {
		t.Error("programme must not satisfy agent")
	}
}

func TestGuardTiers(t *testing.T) {
	admins := map[models.Role]bool{
		models.RoleSuperAdmin: true,
		models.RoleAdmin:      true,
		models.RoleChefProjet: true,
		models.RoleAgent:      false,
		models.RoleProgramme:  false,
		models.RolePartenaire: false,
	}
	for role, want := range admins {
		if got := IsAdmin(role); got != want {
			t.Errorf("IsAdmin(%s) = %v, want %v", role, got, want)
		}
		if got := IsSuperAdmin(role); got != (role == models.RoleSuperAdmin) {
			t.Errorf("IsSuperAdmin(%s) = %v", role, got)
		}
	}
}

func TestCan(t *testing.T) {
	if !Can(models.RoleAgent, ActionTestCreate) {
		t.Error("agent must be able to create tests")
	}
	if Can(models.RolePartenaire, ActionTestCreate) {
		t.Error("partenaire must not create tests")
	}
	if Can(models.RoleAdmin, ActionTestAnonymous) {
		t.Error("only super_admin may record anonymous tests")
	}
	if Can(models.RoleSuperAdmin, Action("rm -rf")) {
		t.Error("unknown actions must be denied")
	}
}

func TestAllowedPagesAndDefault(t *testing.T) {
	pages := AllowedPages(models.RolePartenaire)
	for _, p := range pages {
		if p == PageConnectionLogs || p == PageIdentifiants {
			t.Fatalf("partenaire should not see %s", p)
		}
	}
	if DefaultPage(models.RoleAgent) != PageDashboard {
		t.Errorf("expected dashboard as default page")
	}
	if DefaultPage(models.Role("")) != "" {
		t.Errorf("unknown role must fall back to login")
	}
	if got := len(AllowedPages(models.RoleSuperAdmin)); got != len(AllPages) {
		t.Errorf("super_admin should see every page, got %d", got)
	}
}

func TestScopeFor(t *testing.T) {
	prog := "prog-1"
	part := "part-1"

	if s := ScopeFor(models.User{Role: models.RoleAdmin}); !s.All {
		t.Error("admin should see everything")
	}

	chef := ScopeFor(models.User{Role: models.RoleChefProjet, ProgrammeIDs: []string{"a", "b"}})
	if !chef.Allows("a", "x") || chef.Allows("c", "x") {
		t.Errorf("chef_projet scope wrong: %+v", chef)
	}

	p := ScopeFor(models.User{Role: models.RoleProgramme, ProgrammeID: &prog})
	if !p.Allows(prog, "any") || p.Allows("other", "any") {
		t.Errorf("programme scope wrong: %+v", p)
	}

	pa := ScopeFor(models.User{Role: models.RolePartenaire, PartenaireID: &part})
	if !pa.Allows("any", part) || pa.Allows("any", "other") {
		t.Errorf("partenaire scope wrong: %+v", pa)
	}

	empty := ScopeFor(models.User{Role: models.RoleProgramme})
	if !empty.Empty() || empty.Allows("x", "y") {
		t.Errorf("programme without programme_id must see nothing: %+v", empty)
	}
}
