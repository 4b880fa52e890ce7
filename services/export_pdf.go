package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kr/text"
	"github.com/phpdave11/gofpdf"

	"github.com/qwertys/qwertys-api/models"
)

// BilanPartenaire is the data of a partner report.
type BilanPartenaire struct {
	Partenaire  models.Partenaire
	Periode     string
	TestsSite   []models.TestSite
	TestsLigne  []models.TestLigne
	Alertes     []models.Alerte
	GeneratedAt time.Time
}

const pdfCommentWidth = 95

// WriteBilanPartenairePDF renders the partner report as an A4 PDF.
func WriteBilanPartenairePDF(w io.Writer, b BilanPartenaire) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Bilan partenaire "+b.Partenaire.Nom), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr("Bilan partenaire : "+b.Partenaire.Nom), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Période : %s  |  Généré le %s", b.Periode, b.GeneratedAt.Format("02/01/2006 15:04"))), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	section := func(title string) {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.SetFillColor(238, 242, 255)
		pdf.CellFormat(0, 8, tr(title), "", 1, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.Ln(1)
	}
	line := func(s string) {
		pdf.MultiCell(0, 5, tr(s), "", "L", false)
	}
	comment := func(s string) {
		if strings.TrimSpace(s) == "" {
			return
		}
		pdf.SetFont("Helvetica", "I", 9)
		line(text.Indent(text.Wrap(s, pdfCommentWidth), "    "))
		pdf.SetFont("Helvetica", "", 10)
	}

	section(fmt.Sprintf("Tests site (%d)", len(b.TestsSite)))
	if len(b.TestsSite) == 0 {
		line("Aucun test site sur la période.")
	}
	for _, t := range b.TestsSite {
		status := "Conforme"
		switch {
		case t.TestNonRealisable:
			status = "Non réalisable"
		case len(t.Anomalies) > 0:
			status = strings.Join(t.Anomalies, ", ")
		}
		line(fmt.Sprintf("%s  %s  -  remise %.1f%%  -  %s", t.DateTest.Format("02/01/2006"), t.ProgrammeNom, t.PctRemiseCalcule, status))
		comment(t.Commentaire)
	}
	pdf.Ln(3)

	section(fmt.Sprintf("Tests ligne (%d)", len(b.TestsLigne)))
	if len(b.TestsLigne) == 0 {
		line("Aucun test ligne sur la période.")
	}
	for _, t := range b.TestsLigne {
		status := "Conforme"
		switch {
		case t.TestNonRealisable:
			status = "Non réalisable"
		case len(t.Anomalies) > 0:
			status = strings.Join(t.Anomalies, ", ")
		}
		line(fmt.Sprintf("%s  %s  -  attente %s  -  accueil %s  -  %s", t.DateTest.Format("02/01/2006"), t.ProgrammeNom, t.DelaiAttente, t.EvaluationAccueil, status))
		comment(t.Commentaire)
	}
	pdf.Ln(3)

	section(fmt.Sprintf("Alertes (%d)", len(b.Alertes)))
	if len(b.Alertes) == 0 {
		line("Aucune alerte.")
	}
	for _, a := range b.Alertes {
		line(fmt.Sprintf("[%s] %s  %s  -  %s", a.TypeTest, a.CreatedAt.Format("02/01/2006"), a.Statut, a.Description))
		for _, p := range a.PointsAttention {
			line("    - " + p)
		}
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
