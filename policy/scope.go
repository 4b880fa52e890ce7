package policy

import "github.com/qwertys/qwertys-api/models"

// Scope is the slice of data a user may see. The zero value sees nothing.
type Scope struct {
	All          bool     `json:"all"`
	ProgrammeIDs []string `json:"programme_ids,omitempty"`
	PartenaireID string   `json:"partenaire_id,omitempty"`
}

// ScopeFor derives the data scope from the user's role and scoping field.
// A role whose scoping field is missing gets an empty scope.
func ScopeFor(u models.User) Scope {
	switch u.Role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleAgent:
		return Scope{All: true}
	case models.RoleChefProjet:
		return Scope{ProgrammeIDs: append([]string(nil), u.ProgrammeIDs...)}
	case models.RoleProgramme:
		if u.ProgrammeID != nil && *u.ProgrammeID != "" {
			return Scope{ProgrammeIDs: []string{*u.ProgrammeID}}
		}
	case models.RolePartenaire:
		if u.PartenaireID != nil && *u.PartenaireID != "" {
			return Scope{PartenaireID: *u.PartenaireID}
		}
	}
	return Scope{}
}

// Empty reports whether the scope grants access to nothing.
func (s Scope) Empty() bool {
	return !s.All && len(s.ProgrammeIDs) == 0 && s.PartenaireID == ""
}

// Allows reports whether a record attached to (programmeID, partenaireID) is visible.
func (s Scope) Allows(programmeID, partenaireID string) bool {
	if s.All {
		return true
	}
	if s.PartenaireID != "" {
		return partenaireID == s.PartenaireID
	}
	return s.AllowsProgramme(programmeID)
}

func (s Scope) AllowsProgramme(programmeID string) bool {
	if s.All {
		return true
	}
	for _, id := range s.ProgrammeIDs {
		if id == programmeID {
			return true
		}
	}
	return false
}
