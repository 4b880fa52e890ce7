package models

import "time"

// TestSite is an audit of a partner's online discount for a programme.
type TestSite struct {
	ID                string       `json:"id"`
	ProgrammeID       string       `json:"programme_id"`
	PartenaireID      string       `json:"partenaire_id"`
	ProgrammeNom      string       `json:"programme_nom,omitempty"`
	PartenaireNom     string       `json:"partenaire_nom,omitempty"`
	DateTest          time.Time    `json:"date_test"`
	TestNonRealisable bool         `json:"test_non_realisable"`
	ApplicationRemise bool         `json:"application_remise"`
	PrixPublic        float64      `json:"prix_public"`
	PrixRemise        float64      `json:"prix_remise"`
	PctRemiseCalcule  float64      `json:"pct_remise_calcule"`
	NamingConstate    string       `json:"naming_constate"`
	CumulCodes        bool         `json:"cumul_codes"`
	Commentaire       string       `json:"commentaire"`
	Screenshots       []string     `json:"screenshots"`
	CreatedBy         *UserSummary `json:"created_by,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`

	// Computed on read, never stored.
	Anomalies []string `json:"anomalies"`
}

type TestSiteRequest struct {
	ProgrammeID       string     `json:"programme_id" binding:"required"`
	PartenaireID      string     `json:"partenaire_id" binding:"required"`
	DateTest          *time.Time `json:"date_test"`
	TestNonRealisable bool       `json:"test_non_realisable"`
	ApplicationRemise bool       `json:"application_remise"`
	PrixPublic        float64    `json:"prix_public"`
	PrixRemise        float64    `json:"prix_remise"`
	NamingConstate    string     `json:"naming_constate"`
	CumulCodes        bool       `json:"cumul_codes"`
	Commentaire       string     `json:"commentaire"`
	Screenshots       []string   `json:"screenshots"`
}

// ToTestSite builds the record from the request. Derived fields are left to
// the service.
func (r TestSiteRequest) ToTestSite() TestSite {
	t := TestSite{
		ProgrammeID:       r.ProgrammeID,
		PartenaireID:      r.PartenaireID,
		TestNonRealisable: r.TestNonRealisable,
		ApplicationRemise: r.ApplicationRemise,
		PrixPublic:        r.PrixPublic,
		PrixRemise:        r.PrixRemise,
		NamingConstate:    r.NamingConstate,
		CumulCodes:        r.CumulCodes,
		Commentaire:       r.Commentaire,
		Screenshots:       r.Screenshots,
	}
	if r.DateTest != nil {
		t.DateTest = *r.DateTest
	}
	return t
}
