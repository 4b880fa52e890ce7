package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/services"
	"github.com/qwertys/qwertys-api/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	sites       TestSiteStore
	lignes      TestLigneStore
	alertes     AlerteStore
	partenaires PartenaireStore
	loc         *time.Location
}

func NewExportHandler(sites TestSiteStore, lignes TestLigneStore, alertes AlerteStore, partenaires PartenaireStore, loc *time.Location) *ExportHandler {
	return &ExportHandler{sites: sites, lignes: lignes, alertes: alertes, partenaires: partenaires, loc: loc}
}

// attachment writes a rendered file as a download. Rendering goes to a buffer
// first so a failure can still be answered with a JSON error.
func attachment(c *gin.Context, contentType, filename string, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) TestsSite(c *gin.Context) {
	f, err := parseTestFilter(c, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tests, err := h.sites.List(c.Request.Context(), middleware.GetScope(c), f)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := services.ExportTestsSiteXLSX(&buf, tests); err != nil {
		respondError(c, fmt.Errorf("failed to render tests site export: %w", err))
		return
	}
	utils.SafeLog("📊 Export tests site (%d lignes) par %s", len(tests), middleware.GetUserID(c))
	attachment(c, xlsxContentType, "tests-site-"+time.Now().In(h.loc).Format("2006-01-02")+".xlsx", &buf)
}

func (h *ExportHandler) TestsLigne(c *gin.Context) {
	f, err := parseTestFilter(c, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tests, err := h.lignes.List(c.Request.Context(), middleware.GetScope(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	role := middleware.GetRole(c)
	for i := range tests {
		services.MaskCreator(&tests[i], role)
	}

	var buf bytes.Buffer
	if err := services.ExportTestsLigneXLSX(&buf, tests); err != nil {
		respondError(c, fmt.Errorf("failed to render tests ligne export: %w", err))
		return
	}
	utils.SafeLog("📊 Export tests ligne (%d lignes) par %s", len(tests), middleware.GetUserID(c))
	attachment(c, xlsxContentType, "tests-ligne-"+time.Now().In(h.loc).Format("2006-01-02")+".xlsx", &buf)
}

// BilanPartenaire renders the PDF report of one partner, optionally limited
// to ?month=YYYY-MM.
func (h *ExportHandler) BilanPartenaire(c *gin.Context) {
	ctx := c.Request.Context()
	scope := middleware.GetScope(c)
	id := strings.TrimSuffix(c.Param("id"), ".pdf")

	partenaire, err := h.partenaires.Get(ctx, scope, id)
	if err != nil {
		respondError(c, err)
		return
	}

	f := models.TestFilter{PartenaireID: partenaire.ID}
	periode := "Toutes périodes"
	if raw := c.Query("month"); raw != "" {
		m, err := services.ParseMonth(raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Mois invalide (format YYYY-MM)", "field": "month"})
			return
		}
		start, end := services.MonthBounds(m)
		f.From, f.To = &start, &end
		periode = start.Format("01/2006")
	}

	sites, err := h.sites.List(ctx, scope, f)
	if err != nil {
		respondError(c, err)
		return
	}
	lignes, err := h.lignes.List(ctx, scope, f)
	if err != nil {
		respondError(c, err)
		return
	}
	alertes, err := h.alertes.List(ctx, scope, models.AlerteFilter{PartenaireID: partenaire.ID})
	if err != nil {
		respondError(c, err)
		return
	}
	role := middleware.GetRole(c)
	for i := range lignes {
		services.MaskCreator(&lignes[i], role)
	}

	var buf bytes.Buffer
	err = services.WriteBilanPartenairePDF(&buf, services.BilanPartenaire{
		Partenaire:  *partenaire,
		Periode:     periode,
		TestsSite:   sites,
		TestsLigne:  lignes,
		Alertes:     alertes,
		GeneratedAt: time.Now().In(h.loc),
	})
	if err != nil {
		respondError(c, fmt.Errorf("failed to render bilan partenaire: %w", err))
		return
	}
	utils.SafeLog("📄 Bilan partenaire %s généré par %s", partenaire.ID, middleware.GetUserID(c))
	attachment(c, "application/pdf", "bilan-"+slug(partenaire.Nom)+".pdf", &buf)
}

// slug keeps letters and digits of a name for use in a file name.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "partenaire"
	}
	return b.String()
}
