package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/qwertys/qwertys-api/models"
)

// ============================================================================
// ANOMALY REASONS
// ============================================================================

const (
	AnomalieRemiseNonAppliquee  = "Remise non appliquée"
	AnomaliePrixRemiseSuperieur = "Prix remisé supérieur au prix public"
	AnomalieRemiseNegative      = "Remise négative détectée"
	AnomalieOffreNonAppliquee   = "Offre non appliquée"
	AnomalieDelaiAttenteEleve   = "Délai d'attente élevé"
)

// Waiting time (in minutes) above which a phone test is flagged.
const delaiAttenteMaxMinutes = 3

var delaiAttenteRegex = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// DetectSiteAnomalies lists every anomaly of a site test, in a fixed order.
// The test is taken by value and never modified.
func DetectSiteAnomalies(t models.TestSite) []string {
	reasons := []string{}

	if !t.ApplicationRemise {
		reasons = append(reasons, AnomalieRemiseNonAppliquee)
	}
	if t.PrixRemise > t.PrixPublic {
		reasons = append(reasons, AnomaliePrixRemiseSuperieur)
	}
	if t.PctRemiseCalcule < 0 {
		reasons = append(reasons, AnomalieRemiseNegative)
	}

	return reasons
}

// DetectLigneAnomalies lists every anomaly of a phone test, in a fixed order.
func DetectLigneAnomalies(t models.TestLigne) []string {
	reasons := []string{}

	if !t.ApplicationOffre {
		reasons = append(reasons, AnomalieOffreNonAppliquee)
	}
	switch t.EvaluationAccueil {
	case models.AccueilMediocre, models.AccueilMoyen:
		reasons = append(reasons, "Accueil "+strings.ToLower(string(t.EvaluationAccueil)))
	}
	// malformed delays are not an anomaly, validation rejects them on submit
	if minutes, _, ok := ParseDelaiAttente(t.DelaiAttente); ok && minutes > delaiAttenteMaxMinutes {
		reasons = append(reasons, AnomalieDelaiAttenteEleve)
	}

	return reasons
}

// DetectAnomalies dispatches on the concrete test type.
func DetectAnomalies(test any) []string {
	switch t := test.(type) {
	case models.TestSite:
		return DetectSiteAnomalies(t)
	case *models.TestSite:
		if t != nil {
			return DetectSiteAnomalies(*t)
		}
	case models.TestLigne:
		return DetectLigneAnomalies(t)
	case *models.TestLigne:
		if t != nil {
			return DetectLigneAnomalies(*t)
		}
	}
	return []string{}
}

// ParseDelaiAttente parses a "mm:ss" waiting time. Minutes must be below 10
// and seconds below 60.
func ParseDelaiAttente(s string) (minutes, seconds int, ok bool) {
	m := delaiAttenteRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	minutes, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	seconds, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	if minutes >= 10 || seconds >= 60 {
		return 0, 0, false
	}
	return minutes, seconds, true
}

// ComputePctRemise returns the discount percentage rounded half up to one
// decimal. A non-positive public price yields 0.
func ComputePctRemise(prixPublic, prixRemise float64) float64 {
	if prixPublic <= 0 {
		return 0
	}
	pct := (prixPublic - prixRemise) / prixPublic * 100
	return roundHalfUp(pct, 1)
}

func roundHalfUp(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	// absorb binary noise such as 12.3499999 before rounding
	scaled := math.Round(v*factor*1e6) / 1e6
	return math.Floor(scaled+0.5) / factor
}
