package models

import "time"

// ContactProgramme holds the per-programme contact of a partner and which test
// types are required for that programme.
type ContactProgramme struct {
	ProgrammeID     string `json:"programme_id"`
	URLSite         string `json:"url_site"`
	Referer         string `json:"referer"`
	CodePromo       string `json:"code_promo"`
	NumeroTelephone string `json:"numero_telephone"`
	TestSiteRequis  bool   `json:"test_site_requis"`
	TestLigneRequis bool   `json:"test_ligne_requis"`
}

// Requires reports whether this contact asks for the given test type.
func (c ContactProgramme) Requires(t TestType) bool {
	switch t {
	case TestTypeSite:
		return c.TestSiteRequis
	case TestTypeLigne:
		return c.TestLigneRequis
	}
	return false
}

type Partenaire struct {
	ID                 string             `json:"id"`
	Nom                string             `json:"nom"`
	NamingAttendu      string             `json:"naming_attendu"`
	RemiseMinimum      *float64           `json:"remise_minimum"`
	LogoURL            string             `json:"logo_url"`
	ContactEmail       string             `json:"contact_email"`
	ProgrammesIDs      []string           `json:"programmes_ids"`
	ContactsProgrammes []ContactProgramme `json:"contacts_programmes"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Contact returns the contact record for a programme, if any.
func (p Partenaire) Contact(programmeID string) (ContactProgramme, bool) {
	for _, c := range p.ContactsProgrammes {
		if c.ProgrammeID == programmeID {
			return c, true
		}
	}
	return ContactProgramme{}, false
}

type PartenaireRequest struct {
	Nom                string             `json:"nom" binding:"required"`
	NamingAttendu      string             `json:"naming_attendu"`
	RemiseMinimum      *float64           `json:"remise_minimum"`
	LogoURL            string             `json:"logo_url"`
	ContactEmail       string             `json:"contact_email"`
	ProgrammesIDs      []string           `json:"programmes_ids"`
	ContactsProgrammes []ContactProgramme `json:"contacts_programmes"`
}
