package models

import "time"

type EvaluationAccueil string

const (
	AccueilExcellent EvaluationAccueil = "Excellent"
	AccueilBien      EvaluationAccueil = "Bien"
	AccueilMoyen     EvaluationAccueil = "Moyen"
	AccueilMediocre  EvaluationAccueil = "Médiocre"
)

func (e EvaluationAccueil) Valid() bool {
	switch e {
	case AccueilExcellent, AccueilBien, AccueilMoyen, AccueilMediocre:
		return true
	}
	return false
}

// TestLigne is an audit of a partner's phone support for a programme.
type TestLigne struct {
	ID                     string            `json:"id"`
	ProgrammeID            string            `json:"programme_id"`
	PartenaireID           string            `json:"partenaire_id"`
	ProgrammeNom           string            `json:"programme_nom,omitempty"`
	PartenaireNom          string            `json:"partenaire_nom,omitempty"`
	DateTest               time.Time         `json:"date_test"`
	TestNonRealisable      bool              `json:"test_non_realisable"`
	NumeroTelephone        string            `json:"numero_telephone"`
	MessagerieVocaleDediee bool              `json:"messagerie_vocale_dediee"`
	DecrocheDedie          bool              `json:"decroche_dedie"`
	DelaiAttente           string            `json:"delai_attente"`
	NomConseiller          string            `json:"nom_conseiller"`
	EvaluationAccueil      EvaluationAccueil `json:"evaluation_accueil"`
	ApplicationOffre       bool              `json:"application_offre"`
	Commentaire            string            `json:"commentaire"`
	Screenshots            []string          `json:"screenshots"`
	CreatedBy              *UserSummary      `json:"created_by,omitempty"`
	IsAnonymous            bool              `json:"is_anonymous"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`

	Anomalies []string `json:"anomalies"`
}

type TestLigneRequest struct {
	ProgrammeID            string            `json:"programme_id" binding:"required"`
	PartenaireID           string            `json:"partenaire_id" binding:"required"`
	DateTest               *time.Time        `json:"date_test"`
	TestNonRealisable      bool              `json:"test_non_realisable"`
	NumeroTelephone        string            `json:"numero_telephone"`
	MessagerieVocaleDediee bool              `json:"messagerie_vocale_dediee"`
	DecrocheDedie          bool              `json:"decroche_dedie"`
	DelaiAttente           string            `json:"delai_attente"`
	NomConseiller          string            `json:"nom_conseiller"`
	EvaluationAccueil      EvaluationAccueil `json:"evaluation_accueil"`
	ApplicationOffre       bool              `json:"application_offre"`
	Commentaire            string            `json:"commentaire"`
	Screenshots            []string          `json:"screenshots"`
	IsAnonymous            bool              `json:"is_anonymous"`
}

func (r TestLigneRequest) ToTestLigne() TestLigne {
	t := TestLigne{
		ProgrammeID:            r.ProgrammeID,
		PartenaireID:           r.PartenaireID,
		TestNonRealisable:      r.TestNonRealisable,
		NumeroTelephone:        r.NumeroTelephone,
		MessagerieVocaleDediee: r.MessagerieVocaleDediee,
		DecrocheDedie:          r.DecrocheDedie,
		DelaiAttente:           r.DelaiAttente,
		NomConseiller:          r.NomConseiller,
		EvaluationAccueil:      r.EvaluationAccueil,
		ApplicationOffre:       r.ApplicationOffre,
		Commentaire:            r.Commentaire,
		Screenshots:            r.Screenshots,
		IsAnonymous:            r.IsAnonymous,
	}
	if r.DateTest != nil {
		t.DateTest = *r.DateTest
	}
	return t
}
