package models

import "time"

// ============================================================================
// TEST TYPES
// ============================================================================

type TestType string

const (
	TestTypeSite  TestType = "site"
	TestTypeLigne TestType = "ligne"
)

func (t TestType) Valid() bool {
	return t == TestTypeSite || t == TestTypeLigne
}

// Code is the short form stored on alerts (TS / TL).
func (t TestType) Code() string {
	switch t {
	case TestTypeSite:
		return "TS"
	case TestTypeLigne:
		return "TL"
	}
	return ""
}

// ParseTestType accepts both the API form (site/ligne) and the alert form (TS/TL).
func ParseTestType(s string) (TestType, bool) {
	switch s {
	case "site", "TS", "ts":
		return TestTypeSite, true
	case "ligne", "TL", "tl":
		return TestTypeLigne, true
	}
	return "", false
}

const MaxScreenshots = 3

// ============================================================================
// DUPLICATE DETECTION
// ============================================================================

// ExistingTest is the minimal view of a stored test used by the duplicate guard.
type ExistingTest struct {
	ID            string       `json:"id"`
	TestType      TestType     `json:"test_type"`
	PartenaireID  string       `json:"partenaire_id"`
	ProgrammeID   string       `json:"programme_id"`
	DateTest      time.Time    `json:"date_test"`
	PartenaireNom string       `json:"partenaire_nom"`
	ProgrammeNom  string       `json:"programme_nom"`
	CreatedBy     *UserSummary `json:"created_by,omitempty"`
	IsAnonymous   bool         `json:"-"`
}

type DuplicateConflict struct {
	ExistingTestID string       `json:"id"`
	PartenaireNom  string       `json:"partenaire_nom"`
	ProgrammeNom   string       `json:"programme_nom"`
	DateTest       time.Time    `json:"date_test"`
	CreatedBy      *UserSummary `json:"created_by,omitempty"`
}

type DuplicateCheckResponse struct {
	Exists bool               `json:"exists"`
	Test   *DuplicateConflict `json:"test,omitempty"`
}

// ============================================================================
// LIST FILTERS
// ============================================================================

type TestFilter struct {
	ProgrammeID  string
	PartenaireID string
	From         *time.Time
	To           *time.Time
	Limit        uint64
	Offset       uint64
}
