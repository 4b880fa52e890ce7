package services

import (
	"fmt"
	"strings"

	"github.com/qwertys/qwertys-api/models"
)

// ValidationError is returned before any write when a submitted test is invalid.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const CommentaireObligatoireMessage = "Le commentaire est obligatoire pour un test non réalisable"

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func validateCommon(programmeID, partenaireID string, nonRealisable bool, commentaire string, screenshots []string) error {
	if strings.TrimSpace(programmeID) == "" {
		return invalid("programme_id", "Le programme est obligatoire")
	}
	if strings.TrimSpace(partenaireID) == "" {
		return invalid("partenaire_id", "Le partenaire est obligatoire")
	}
	if nonRealisable && strings.TrimSpace(commentaire) == "" {
		return invalid("commentaire", CommentaireObligatoireMessage)
	}
	if len(screenshots) > models.MaxScreenshots {
		return invalid("screenshots", fmt.Sprintf("Maximum %d captures d'écran", models.MaxScreenshots))
	}
	return nil
}

// ValidateTestSite checks a site test before it is submitted.
func ValidateTestSite(t models.TestSite) error {
	if err := validateCommon(t.ProgrammeID, t.PartenaireID, t.TestNonRealisable, t.Commentaire, t.Screenshots); err != nil {
		return err
	}
	if t.TestNonRealisable {
		return nil
	}
	if t.PrixPublic <= 0 {
		return invalid("prix_public", "Le prix public doit être supérieur à 0")
	}
	if t.PrixRemise < 0 {
		return invalid("prix_remise", "Le prix remisé doit être positif ou nul")
	}
	return nil
}

// ValidateTestLigne checks a phone test before it is submitted.
func ValidateTestLigne(t models.TestLigne) error {
	if err := validateCommon(t.ProgrammeID, t.PartenaireID, t.TestNonRealisable, t.Commentaire, t.Screenshots); err != nil {
		return err
	}
	if t.TestNonRealisable {
		return nil
	}
	if _, _, ok := ParseDelaiAttente(t.DelaiAttente); !ok {
		return invalid("delai_attente", "Le délai d'attente doit être au format mm:ss")
	}
	if !t.EvaluationAccueil.Valid() {
		return invalid("evaluation_accueil", "Évaluation de l'accueil invalide")
	}
	return nil
}

// NormalizeTestSite resets technical fields of a non-réalisable test and
// recomputes the derived discount percentage from the prices.
func NormalizeTestSite(t *models.TestSite) {
	if t.TestNonRealisable {
		t.ApplicationRemise = false
		t.PrixPublic = 0
		t.PrixRemise = 0
		t.NamingConstate = ""
		t.CumulCodes = false
	}
	t.PctRemiseCalcule = ComputePctRemise(t.PrixPublic, t.PrixRemise)
	if t.Screenshots == nil {
		t.Screenshots = []string{}
	}
}

// NormalizeTestLigne resets technical fields of a non-réalisable phone test.
func NormalizeTestLigne(t *models.TestLigne) {
	if t.TestNonRealisable {
		t.MessagerieVocaleDediee = false
		t.DecrocheDedie = false
		t.DelaiAttente = ""
		t.NomConseiller = ""
		t.EvaluationAccueil = ""
		t.ApplicationOffre = false
	}
	if t.Screenshots == nil {
		t.Screenshots = []string{}
	}
}
