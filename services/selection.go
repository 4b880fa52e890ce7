package services

import "github.com/qwertys/qwertys-api/models"

// SelectablePartenaires keeps the partners whose contact for programmeID
// requires testType. An empty programmeID keeps every partner requiring the
// test type for at least one programme.
func SelectablePartenaires(partenaires []models.Partenaire, programmeID string, testType models.TestType) []models.Partenaire {
	out := []models.Partenaire{}
	for _, p := range partenaires {
		if partenaireRequires(p, programmeID, testType) {
			out = append(out, p)
		}
	}
	return out
}

// SelectableProgrammes is the reverse filter: programmes for which partenaireID
// requires testType. An empty partenaireID keeps programmes required by any partner.
func SelectableProgrammes(programmes []models.Programme, partenaires []models.Partenaire, partenaireID string, testType models.TestType) []models.Programme {
	out := []models.Programme{}
	for _, prog := range programmes {
		for _, p := range partenaires {
			if partenaireID != "" && p.ID != partenaireID {
				continue
			}
			if partenaireRequires(p, prog.ID, testType) {
				out = append(out, prog)
				break
			}
		}
	}
	return out
}

// IsSelectablePair reports whether the (programme, partner) pair can carry a test of testType.
func IsSelectablePair(p models.Partenaire, programmeID string, testType models.TestType) bool {
	return programmeID != "" && partenaireRequires(p, programmeID, testType)
}

func partenaireRequires(p models.Partenaire, programmeID string, testType models.TestType) bool {
	for _, c := range p.ContactsProgrammes {
		if programmeID != "" && c.ProgrammeID != programmeID {
			continue
		}
		if !contains(p.ProgrammesIDs, c.ProgrammeID) {
			continue
		}
		if c.Requires(testType) {
			return true
		}
	}
	return false
}

// ValidateContacts enforces that every contact points at a linked programme.
func ValidateContacts(p models.Partenaire) error {
	for _, c := range p.ContactsProgrammes {
		if !contains(p.ProgrammesIDs, c.ProgrammeID) {
			return invalid("contacts_programmes", "Le contact référence un programme non lié au partenaire")
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
