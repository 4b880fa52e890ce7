package models

import "time"

// ============================================================================
// ROLES
// ============================================================================

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleChefProjet Role = "chef_projet"
	RoleAgent      Role = "agent"
	RoleProgramme  Role = "programme"
	RolePartenaire Role = "partenaire"
)

// AllRoles is the closed set of application roles.
var AllRoles = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RoleChefProjet,
	RoleAgent,
	RoleProgramme,
	RolePartenaire,
}

func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ============================================================================
// USER MODEL
// ============================================================================

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Nom          string    `json:"nom"`
	Prenom       string    `json:"prenom"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	TOTPSecret   string    `json:"-"`
	TOTPEnabled  bool      `json:"totp_enabled"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	ProgrammeID  *string   `json:"programme_id,omitempty"`
	PartenaireID *string   `json:"partenaire_id,omitempty"`
	ProgrammeIDs []string  `json:"programme_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary is the creator block embedded in tests.
func (u User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Nom: u.Nom, Prenom: u.Prenom}
}

type UserSummary struct {
	ID     string `json:"id"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
}

// ============================================================================
// AUTHENTICATION REQUESTS
// ============================================================================

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ============================================================================
// USER MANAGEMENT (identifiants)
// ============================================================================

type UserRequest struct {
	Email        string   `json:"email" binding:"required,email"`
	Nom          string   `json:"nom" binding:"required"`
	Prenom       string   `json:"prenom"`
	Password     string   `json:"password"`
	Role         Role     `json:"role" binding:"required"`
	IsActive     *bool    `json:"is_active"`
	ProgrammeID  *string  `json:"programme_id"`
	PartenaireID *string  `json:"partenaire_id"`
	ProgrammeIDs []string `json:"programme_ids"`
}

type UpdateProfileRequest struct {
	Nom    string `json:"nom" binding:"required"`
	Prenom string `json:"prenom"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type TOTPSetupResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
}

type VerifyTOTPRequest struct {
	Code string `json:"code" binding:"required,len=6"`
}

type DisableTOTPRequest struct {
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required"`
}
