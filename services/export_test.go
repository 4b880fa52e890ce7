package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/qwertys/qwertys-api/models"
)

func TestExportTestsSiteXLSX(t *testing.T) {
	tests := []models.TestSite{{
		DateTest:         time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		ProgrammeNom:     "Club",
		PartenaireNom:    "Fnac",
		PrixPublic:       100,
		PrixRemise:       80,
		PctRemiseCalcule: 20,
		Anomalies:        []string{AnomalieRemiseNonAppliquee},
		CreatedBy:        &models.UserSummary{Prenom: "Léa", Nom: "Martin"},
	}}

	var buf bytes.Buffer
	if err := ExportTestsSiteXLSX(&buf, tests); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Tests site")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[0][0] != "Date" || rows[1][0] != "15/03/2024" || rows[1][2] != "Fnac" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[1][10] != AnomalieRemiseNonAppliquee || rows[1][12] != "Léa Martin" {
		t.Fatalf("unexpected anomaly/creator cells %v", rows[1])
	}
}

func TestExportTestsLigneXLSX_Anonymous(t *testing.T) {
	l := models.TestLigne{DateTest: time.Now(), EvaluationAccueil: models.AccueilBien, IsAnonymous: true, CreatedBy: &models.UserSummary{Nom: "Secret"}}
	MaskCreator(&l, models.RoleAgent)

	var buf bytes.Buffer
	if err := ExportTestsLigneXLSX(&buf, []models.TestLigne{l}); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Tests ligne")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	for _, cell := range rows[1] {
		if cell == "Secret" {
			t.Fatal("anonymous creator leaked into export")
		}
	}
}

func TestWriteBilanPartenairePDF(t *testing.T) {
	b := BilanPartenaire{
		Partenaire:  models.Partenaire{Nom: "Fnac"},
		Periode:     "mars 2024",
		GeneratedAt: time.Now(),
		TestsSite: []models.TestSite{{
			DateTest: time.Now(), ProgrammeNom: "Club", TestNonRealisable: true,
			Commentaire: "Le site était en maintenance pendant toute la durée du test, impossible d'ajouter un produit au panier.",
		}},
		TestsLigne: []models.TestLigne{{DateTest: time.Now(), ProgrammeNom: "Club", DelaiAttente: "04:10", Anomalies: []string{AnomalieDelaiAttenteEleve}}},
		Alertes:    []models.Alerte{{TypeTest: "TL", Statut: models.AlerteOuvert, Description: "Anomalies", PointsAttention: []string{AnomalieDelaiAttenteEleve}}},
	}

	var buf bytes.Buffer
	if err := WriteBilanPartenairePDF(&buf, b); err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatal("output is not a PDF document")
	}
}
