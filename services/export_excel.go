package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/qwertys/qwertys-api/models"
)

func yesNo(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}

func creatorName(u *models.UserSummary) string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.Prenom + " " + u.Nom)
}

// writeSheet renders a header row and data rows into a single-sheet workbook.
func writeSheet(w io.Writer, sheet string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4F46E5"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	return f.Write(w)
}

// ExportTestsSiteXLSX writes the site tests as an Excel workbook.
func ExportTestsSiteXLSX(w io.Writer, tests []models.TestSite) error {
	header := []interface{}{
		"Date", "Programme", "Partenaire", "Non réalisable", "Remise appliquée", "Prix public",
		"Prix remisé", "% remise", "Naming constaté", "Cumul codes", "Anomalies", "Commentaire", "Créé par",
	}
	rows := make([][]interface{}, 0, len(tests))
	for _, t := range tests {
		rows = append(rows, []interface{}{
			t.DateTest.Format("02/01/2006"), t.ProgrammeNom, t.PartenaireNom, yesNo(t.TestNonRealisable),
			yesNo(t.ApplicationRemise), t.PrixPublic, t.PrixRemise, t.PctRemiseCalcule, t.NamingConstate,
			yesNo(t.CumulCodes), strings.Join(t.Anomalies, ", "), t.Commentaire, creatorName(t.CreatedBy),
		})
	}
	return writeSheet(w, "Tests site", header, rows)
}

// ExportTestsLigneXLSX writes the phone tests as an Excel workbook. Creators
// must already be masked by the caller.
func ExportTestsLigneXLSX(w io.Writer, tests []models.TestLigne) error {
	header := []interface{}{
		"Date", "Programme", "Partenaire", "Non réalisable", "Numéro", "Messagerie dédiée", "Décroché dédié",
		"Délai d'attente", "Conseiller", "Accueil", "Offre appliquée", "Anomalies", "Commentaire", "Créé par",
	}
	rows := make([][]interface{}, 0, len(tests))
	for _, t := range tests {
		rows = append(rows, []interface{}{
			t.DateTest.Format("02/01/2006"), t.ProgrammeNom, t.PartenaireNom, yesNo(t.TestNonRealisable),
			t.NumeroTelephone, yesNo(t.MessagerieVocaleDediee), yesNo(t.DecrocheDedie), t.DelaiAttente,
			t.NomConseiller, string(t.EvaluationAccueil), yesNo(t.ApplicationOffre), strings.Join(t.Anomalies, ", "),
			t.Commentaire, creatorName(t.CreatedBy),
		})
	}
	return writeSheet(w, "Tests ligne", header, rows)
}
