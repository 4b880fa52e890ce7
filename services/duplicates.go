package services

import (
	"time"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
)

// DuplicateCandidate describes a test about to be created or edited.
// ExcludeID is the id of the record being edited, empty on creation.
// Viewer is the role the conflict is shown to.
type DuplicateCandidate struct {
	PartenaireID string
	ProgrammeID  string
	TestType     models.TestType
	DateTest     time.Time
	ExcludeID    string
	Viewer       models.Role
}

const DuplicateTestMessage = "Un test existe déjà pour ce partenaire et ce programme ce mois-ci (maximum 1 test par mois)"

// FindDuplicate returns the first existing test of the same type for the same
// partner and programme in the same calendar month as the candidate, or nil.
// Months are compared in the candidate's location. The creator of an
// anonymous test is only disclosed to viewers allowed to see it.
//
// This is the only implementation of the monthly rule: the soft warning, the
// client pre-submit check and the backend create/update path all call it.
func FindDuplicate(c DuplicateCandidate, existing []models.ExistingTest) *models.DuplicateConflict {
	for _, e := range existing {
		if e.ID != "" && e.ID == c.ExcludeID {
			continue
		}
		if e.TestType != "" && c.TestType != "" && e.TestType != c.TestType {
			continue
		}
		if e.PartenaireID != c.PartenaireID || e.ProgrammeID != c.ProgrammeID {
			continue
		}
		if !SameMonth(c.DateTest, e.DateTest) {
			continue
		}
		conflict := &models.DuplicateConflict{
			ExistingTestID: e.ID,
			PartenaireNom:  e.PartenaireNom,
			ProgrammeNom:   e.ProgrammeNom,
			DateTest:       e.DateTest,
			CreatedBy:      e.CreatedBy,
		}
		if e.IsAnonymous && !policy.Can(c.Viewer, policy.ActionTestAnonymous) {
			conflict.CreatedBy = nil
		}
		return conflict
	}
	return nil
}

// SameMonth compares calendar month and year, with b seen in a's location.
func SameMonth(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthBounds returns [first instant of t's month, first instant of the next month).
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// ParseMonth parses YYYY-MM in loc. An empty string means the current month.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	return time.ParseInLocation("2006-01", s, loc)
}
