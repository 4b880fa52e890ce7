// Package policy holds the role-access rules of the application: which roles
// may open which page, perform which action, and see which data.
//
// Access is data, not code: pageAccess and actionAccess are the only places
// where roles are listed. Roles form a lattice (see Satisfies), so the tables
// only name the weakest roles that are allowed.
package policy

import "github.com/qwertys/qwertys-api/models"

// ============================================================================
// ROLE LATTICE
// ============================================================================

// parents maps a role to the roles directly above it.
var parents = map[models.Role][]models.Role{
	models.RoleAdmin:      {models.RoleSuperAdmin},
	models.RoleChefProjet: {models.RoleAdmin},
	models.RoleAgent:      {models.RoleChefProjet},
	models.RoleProgramme:  {models.RoleSuperAdmin},
	models.RolePartenaire: {models.RoleSuperAdmin},
}

// Satisfies reports whether role is at least as strong as required.
// super_admin satisfies every role; admin satisfies chef_projet and agent.
func Satisfies(role, required models.Role) bool {
	if !role.Valid() || !required.Valid() {
		return false
	}
	if role == required {
		return true
	}
	for _, p := range parents[required] {
		if Satisfies(role, p) {
			return true
		}
	}
	return false
}

func satisfiesAny(role models.Role, allowed []models.Role) bool {
	for _, r := range allowed {
		if Satisfies(role, r) {
			return true
		}
	}
	return false
}

// ============================================================================
// PAGES
// ============================================================================

type Page string

const (
	PageDashboard       Page = "dashboard"
	PageProgrammes      Page = "programmes"
	PagePartenaires     Page = "partenaires"
	PageIdentifiants    Page = "identifiants"
	PageTestsSite       Page = "tests-site"
	PageTestsLigne      Page = "tests-ligne"
	PageAlertes         Page = "alertes"
	PageMessagerie      Page = "messagerie"
	PageBilanPartenaire Page = "bilan-partenaire"
	PageStatistiques    Page = "statistiques"
	PageParametres      Page = "parametres"
	PageConnectionLogs  Page = "connection-logs"
)

// AllPages lists pages in navigation order.
var AllPages = []Page{
	PageDashboard,
	PageProgrammes,
	PagePartenaires,
	PageIdentifiants,
	PageTestsSite,
	PageTestsLigne,
	PageAlertes,
	PageMessagerie,
	PageBilanPartenaire,
	PageStatistiques,
	PageParametres,
	PageConnectionLogs,
}

var pageAccess = map[Page][]models.Role{
	PageDashboard:       {models.RoleAgent, models.RoleProgramme, models.RolePartenaire},
	PageProgrammes:      {models.RoleChefProjet},
	PagePartenaires:     {models.RoleAgent},
	PageIdentifiants:    {models.RoleChefProjet},
	PageTestsSite:       {models.RoleAgent, models.RoleProgramme, models.RolePartenaire},
	PageTestsLigne:      {models.RoleAgent, models.RoleProgramme, models.RolePartenaire},
	PageAlertes:         {models.RoleChefProjet, models.RoleProgramme},
	PageMessagerie:      {models.RoleChefProjet},
	PageBilanPartenaire: {models.RoleChefProjet, models.RoleProgramme, models.RolePartenaire},
	PageStatistiques:    {models.RoleChefProjet, models.RoleProgramme},
	PageParametres:      {models.RoleSuperAdmin},
	PageConnectionLogs:  {models.RoleSuperAdmin},
}

// IsAllowed reports whether role may open page. Unknown roles or pages are denied.
func IsAllowed(role models.Role, page Page) bool {
	allowed, ok := pageAccess[page]
	if !ok {
		return false
	}
	return satisfiesAny(role, allowed)
}

// AllowedPages returns the pages visible to role, in navigation order.
func AllowedPages(role models.Role) []Page {
	pages := []Page{}
	for _, p := range AllPages {
		if IsAllowed(role, p) {
			pages = append(pages, p)
		}
	}
	return pages
}

// DefaultPage is where a denied request is sent back to. Empty means the
// login screen.
func DefaultPage(role models.Role) Page {
	if IsAllowed(role, PageDashboard) {
		return PageDashboard
	}
	return ""
}

// ============================================================================
// ACTIONS
// ============================================================================

type Action string

const (
	ActionTestCreate       Action = "test:create"
	ActionTestUpdate       Action = "test:update"
	ActionTestDelete       Action = "test:delete"
	ActionTestAnonymous    Action = "test:anonymous"
	ActionAlerteCreate     Action = "alerte:create"
	ActionAlerteResolve    Action = "alerte:resolve"
	ActionAlerteDelete     Action = "alerte:delete"
	ActionUserManage       Action = "user:manage"
	ActionProgrammeManage  Action = "programme:manage"
	ActionPartenaireManage Action = "partenaire:manage"
	ActionMessageSend      Action = "message:send"
	ActionExportGenerate   Action = "export:generate"
	ActionInsightsGenerate Action = "insights:generate"
	ActionCredentialsRead  Action = "credentials:read"
)

var actionAccess = map[Action][]models.Role{
	ActionTestCreate:       {models.RoleAgent},
	ActionTestUpdate:       {models.RoleAgent},
	ActionTestDelete:       {models.RoleChefProjet},
	ActionTestAnonymous:    {models.RoleSuperAdmin},
	ActionAlerteCreate:     {models.RoleAgent},
	ActionAlerteResolve:    {models.RoleChefProjet},
	ActionAlerteDelete:     {models.RoleChefProjet},
	ActionUserManage:       {models.RoleChefProjet},
	ActionProgrammeManage:  {models.RoleChefProjet},
	ActionPartenaireManage: {models.RoleChefProjet},
	ActionMessageSend:      {models.RoleChefProjet},
	ActionExportGenerate:   {models.RoleChefProjet, models.RoleProgramme, models.RolePartenaire},
	ActionInsightsGenerate: {models.RoleChefProjet},
	ActionCredentialsRead:  {models.RoleAgent},
}

// Can reports whether role may perform action. Unknown actions are denied.
func Can(role models.Role, action Action) bool {
	allowed, ok := actionAccess[action]
	if !ok {
		return false
	}
	return satisfiesAny(role, allowed)
}

// ============================================================================
// GUARD TIERS
// ============================================================================

// IsAdmin is the adminOnly tier: admin, chef_projet or super_admin.
func IsAdmin(role models.Role) bool {
	return Satisfies(role, models.RoleChefProjet)
}

// IsSuperAdmin is the superAdminOnly tier.
func IsSuperAdmin(role models.Role) bool {
	return role == models.RoleSuperAdmin
}
