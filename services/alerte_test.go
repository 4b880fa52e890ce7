package services

import (
	"errors"
	"reflect"
	"testing"

	"github.com/qwertys/qwertys-api/models"
)

func TestBuildTestAlerte_NonRealisable(t *testing.T) {
	a := BuildTestAlerte(models.TestTypeSite, "prog", "part", "test-1", true, "  Site en maintenance ", nil)
	if a == nil {
		t.Fatal("expected an alert for a non réalisable test")
	}
	if a.TypeTest != "TS" || a.Statut != models.AlerteOuvert {
		t.Fatalf("unexpected type/statut: %s/%s", a.TypeTest, a.Statut)
	}
	if a.Description != "Test site non réalisable : Site en maintenance" {
		t.Fatalf("unexpected description %q", a.Description)
	}
	if !reflect.DeepEqual(a.PointsAttention, []string{PointNonRealisable}) {
		t.Fatalf("unexpected points %v", a.PointsAttention)
	}
	if a.TestID == nil || *a.TestID != "test-1" {
		t.Fatalf("test id not linked: %v", a.TestID)
	}
}

func TestBuildTestAlerte_Anomalies(t *testing.T) {
	anomalies := []string{AnomalieOffreNonAppliquee, AnomalieDelaiAttenteEleve}
	a := BuildTestAlerte(models.TestTypeLigne, "prog", "part", "", false, "", anomalies)
	if a == nil {
		t.Fatal("expected an alert")
	}
	if a.TypeTest != "TL" || a.Description != "Anomalies détectées lors du test ligne" {
		t.Fatalf("unexpected alert %+v", a)
	}
	if a.TestID != nil {
		t.Fatal("empty test id must stay nil")
	}
	anomalies[0] = "mutated"
	if a.PointsAttention[0] != AnomalieOffreNonAppliquee {
		t.Fatal("points must not alias the anomalies slice")
	}
}

func TestBuildTestAlerte_Clean(t *testing.T) {
	if a := BuildTestAlerte(models.TestTypeSite, "prog", "part", "id", false, "", []string{}); a != nil {
		t.Fatalf("expected no alert, got %+v", a)
	}
}

func TestBuildUpdateAlerte(t *testing.T) {
	a := BuildUpdateAlerte(false, models.TestTypeLigne, "prog", "part", "test-1", true, "Ligne saturée")
	if a == nil {
		t.Fatal("switching to non réalisable must open an alert")
	}
	if a.Description != "Test ligne non réalisable : Ligne saturée" || a.TestID == nil || *a.TestID != "test-1" {
		t.Fatalf("unexpected alert %+v", a)
	}

	for _, tc := range []struct{ was, now bool }{{true, true}, {true, false}, {false, false}} {
		if a := BuildUpdateAlerte(tc.was, models.TestTypeSite, "prog", "part", "test-1", tc.now, "x"); a != nil {
			t.Errorf("was=%v now=%v: expected no alert, got %+v", tc.was, tc.now, a)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if err := CanTransition(models.AlerteOuvert, models.AlerteResolu); err != nil {
		t.Fatalf("ouvert -> resolu must be allowed: %v", err)
	}
	for _, tc := range []struct{ from, to models.AlerteStatut }{
		{models.AlerteResolu, models.AlerteOuvert},
		{models.AlerteResolu, models.AlerteResolu},
		{models.AlerteOuvert, models.AlerteOuvert},
		{models.AlerteOuvert, "archive"},
	} {
		if err := CanTransition(tc.from, tc.to); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
	}
}

func TestDuplicateTestError(t *testing.T) {
	var err error = &DuplicateTestError{Conflict: &models.DuplicateConflict{ExistingTestID: "x"}}
	if !errors.Is(err, ErrDuplicateTest) {
		t.Fatal("DuplicateTestError must match ErrDuplicateTest")
	}
	if err.Error() != DuplicateTestMessage {
		t.Fatalf("unexpected message %q", err.Error())
	}
	var dup *DuplicateTestError
	if !errors.As(err, &dup) || dup.Conflict.ExistingTestID != "x" {
		t.Fatal("conflict not reachable through errors.As")
	}
}
