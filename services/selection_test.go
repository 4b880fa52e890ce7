package services

import (
	"testing"

	"github.com/qwertys/qwertys-api/models"
)

func selectionFixtures() ([]models.Programme, []models.Partenaire) {
	programmes := []models.Programme{{ID: "prog-1", Nom: "Club A"}, {ID: "prog-2", Nom: "Club B"}, {ID: "prog-3", Nom: "Club C"}}
	partenaires := []models.Partenaire{
		{
			ID:            "part-1",
			Nom:           "Fleuriste",
			ProgrammesIDs: []string{"prog-1", "prog-2"},
			ContactsProgrammes: []models.ContactProgramme{
				{ProgrammeID: "prog-1", TestSiteRequis: true},
				{ProgrammeID: "prog-2", TestLigneRequis: true},
			},
		},
		{
			ID:            "part-2",
			Nom:           "Garage",
			ProgrammesIDs: []string{"prog-2"},
			ContactsProgrammes: []models.ContactProgramme{
				{ProgrammeID: "prog-2", TestSiteRequis: true, TestLigneRequis: true},
				// stale contact for a programme no longer linked
				{ProgrammeID: "prog-3", TestSiteRequis: true},
			},
		},
	}
	return programmes, partenaires
}

func collectIDs[T any](items []T, id func(T) string) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func TestSelectablePartenaires(t *testing.T) {
	_, partenaires := selectionFixtures()
	partID := func(p models.Partenaire) string { return p.ID }

	cases := []struct {
		programme string
		testType  models.TestType
		want      []string
	}{
		{"prog-1", models.TestTypeSite, []string{"part-1"}},
		{"prog-1", models.TestTypeLigne, []string{}},
		{"prog-2", models.TestTypeLigne, []string{"part-1", "part-2"}},
		{"prog-2", models.TestTypeSite, []string{"part-2"}},
		{"prog-3", models.TestTypeSite, []string{}},
		{"", models.TestTypeSite, []string{"part-1", "part-2"}},
	}
	for _, tc := range cases {
		got := collectIDs(SelectablePartenaires(partenaires, tc.programme, tc.testType), partID)
		if len(got) != len(tc.want) {
			t.Errorf("%s/%s: got %v, want %v", tc.programme, tc.testType, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%s/%s: got %v, want %v", tc.programme, tc.testType, got, tc.want)
			}
		}
	}
}

func TestSelectableProgrammes(t *testing.T) {
	programmes, partenaires := selectionFixtures()
	progID := func(p models.Programme) string { return p.ID }

	got := collectIDs(SelectableProgrammes(programmes, partenaires, "part-1", models.TestTypeSite), progID)
	if len(got) != 1 || got[0] != "prog-1" {
		t.Errorf("part-1 site: got %v", got)
	}

	got = collectIDs(SelectableProgrammes(programmes, partenaires, "", models.TestTypeLigne), progID)
	if len(got) != 1 || got[0] != "prog-2" {
		t.Errorf("any partner ligne: got %v", got)
	}

	got = collectIDs(SelectableProgrammes(programmes, partenaires, "part-2", models.TestTypeSite), progID)
	if len(got) != 1 || got[0] != "prog-2" {
		t.Errorf("unlinked contacts must be ignored, got %v", got)
	}
}

func TestIsSelectablePair(t *testing.T) {
	_, partenaires := selectionFixtures()
	if !IsSelectablePair(partenaires[0], "prog-1", models.TestTypeSite) {
		t.Error("part-1/prog-1 should accept site tests")
	}
	if IsSelectablePair(partenaires[0], "prog-1", models.TestTypeLigne) {
		t.Error("part-1/prog-1 should not accept phone tests")
	}
	if IsSelectablePair(partenaires[0], "", models.TestTypeSite) {
		t.Error("an empty programme is never a selectable pair")
	}
}

func TestValidateContacts(t *testing.T) {
	_, partenaires := selectionFixtures()
	if err := ValidateContacts(partenaires[0]); err != nil {
		t.Errorf("linked contacts rejected: %v", err)
	}
	if err := ValidateContacts(partenaires[1]); err == nil {
		t.Error("contact on an unlinked programme should be rejected")
	}
}
