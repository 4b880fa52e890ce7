package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/services"
	"github.com/qwertys/qwertys-api/utils"
)

// parseTestFilter reads programme_id, partenaire_id, month (YYYY-MM) or
// from/to (YYYY-MM-DD, to inclusive), limit and offset.
func parseTestFilter(c *gin.Context, loc *time.Location) (models.TestFilter, error) {
	f := models.TestFilter{
		ProgrammeID:  c.Query("programme_id"),
		PartenaireID: c.Query("partenaire_id"),
		Limit:        queryUint(c, "limit"),
		Offset:       queryUint(c, "offset"),
	}

	if month := c.Query("month"); month != "" {
		m, err := services.ParseMonth(month, loc)
		if err != nil {
			return f, fmt.Errorf("month: format attendu YYYY-MM")
		}
		start, end := services.MonthBounds(m)
		f.From, f.To = &start, &end
		return f, nil
	}

	from, err := queryDate(c, "from", loc)
	if err != nil {
		return f, fmt.Errorf("from: format attendu YYYY-MM-DD")
	}
	to, err := queryDate(c, "to", loc)
	if err != nil {
		return f, fmt.Errorf("to: format attendu YYYY-MM-DD")
	}
	if to != nil {
		next := to.AddDate(0, 0, 1)
		to = &next
	}
	f.From, f.To = from, to
	return f, nil
}

// parseDateTest accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func parseDateTest(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, loc)
}

// decorateAlerte copies the display names of the test onto its alert before
// it is published.
func decorateAlerte(a *models.Alerte, programmeNom, partenaireNom string) {
	a.ProgrammeNom = programmeNom
	a.PartenaireNom = partenaireNom
}

// ============================================================================
// DUPLICATE CHECK
// ============================================================================

// DuplicateChecker is implemented by services.DuplicateService.
type DuplicateChecker interface {
	Check(ctx context.Context, c services.DuplicateCandidate) (*models.DuplicateConflict, error)
}

type DuplicateHandler struct {
	checker DuplicateChecker
	loc     *time.Location
}

func NewDuplicateHandler(checker DuplicateChecker, loc *time.Location) *DuplicateHandler {
	return &DuplicateHandler{checker: checker, loc: loc}
}

// Check answers whether a test of the same type already exists for the pair
// in the month of date_test (today when omitted).
func (h *DuplicateHandler) Check(c *gin.Context) {
	programmeID, partenaireID := c.Query("programme_id"), c.Query("partenaire_id")
	if programmeID == "" || partenaireID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "programme_id et partenaire_id sont obligatoires"})
		return
	}
	testType, ok := models.ParseTestType(c.Query("test_type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type de test invalide", "field": "test_type"})
		return
	}
	if !middleware.GetScope(c).Allows(programmeID, partenaireID) {
		middleware.Forbidden(c)
		return
	}

	candidate := services.DuplicateCandidate{
		PartenaireID: partenaireID,
		ProgrammeID:  programmeID,
		TestType:     testType,
		ExcludeID:    c.Query("exclude_id"),
		Viewer:       middleware.GetRole(c),
	}
	if raw := c.Query("date_test"); raw != "" {
		d, err := parseDateTest(raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Date de test invalide", "field": "date_test"})
			return
		}
		candidate.DateTest = d
	}

	conflict, err := h.checker.Check(c.Request.Context(), candidate)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SafeDebug("🔎 Duplicate check %s %s/%s: exists=%v", testType.Code(), programmeID, partenaireID, conflict != nil)
	c.JSON(http.StatusOK, models.DuplicateCheckResponse{Exists: conflict != nil, Test: conflict})
}

// ============================================================================
// TESTS SITE
// ============================================================================

// TestSiteStore is implemented by services.TestSiteService.
type TestSiteStore interface {
	List(ctx context.Context, scope policy.Scope, f models.TestFilter) ([]models.TestSite, error)
	Get(ctx context.Context, scope policy.Scope, id string) (*models.TestSite, error)
	Create(ctx context.Context, scope policy.Scope, t models.TestSite, creator models.User) (*models.TestSite, *models.Alerte, error)
	Update(ctx context.Context, scope policy.Scope, id string, t models.TestSite) (*models.TestSite, *models.Alerte, error)
	Delete(ctx context.Context, scope policy.Scope, id string) error
}

type TestSiteHandler struct {
	tests  TestSiteStore
	events *AlerteEvents
	loc    *time.Location
}

func NewTestSiteHandler(tests TestSiteStore, events *AlerteEvents, loc *time.Location) *TestSiteHandler {
	return &TestSiteHandler{tests: tests, events: events, loc: loc}
}

func (h *TestSiteHandler) List(c *gin.Context) {
	f, err := parseTestFilter(c, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.tests.List(c.Request.Context(), middleware.GetScope(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *TestSiteHandler) Get(c *gin.Context) {
	t, err := h.tests.Get(c.Request.Context(), middleware.GetScope(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TestSiteHandler) Create(c *gin.Context) {
	var req models.TestSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	created, alerte, err := h.tests.Create(c.Request.Context(), middleware.GetScope(c), req.ToTestSite(), middleware.GetUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if alerte != nil {
		decorateAlerte(alerte, created.ProgrammeNom, created.PartenaireNom)
		h.events.Publish(EventAlerteCreated, *alerte)
	}
	c.JSON(http.StatusCreated, gin.H{"test": created, "alerte": alerte})
}

func (h *TestSiteHandler) Update(c *gin.Context) {
	var req models.TestSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updated, alerte, err := h.tests.Update(c.Request.Context(), middleware.GetScope(c), c.Param("id"), req.ToTestSite())
	if err != nil {
		respondError(c, err)
		return
	}
	if alerte != nil {
		decorateAlerte(alerte, updated.ProgrammeNom, updated.PartenaireNom)
		h.events.Publish(EventAlerteCreated, *alerte)
	}
	c.JSON(http.StatusOK, updated)
}

func (h *TestSiteHandler) Delete(c *gin.Context) {
	if err := h.tests.Delete(c.Request.Context(), middleware.GetScope(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test supprimé"})
}

// ============================================================================
// TESTS LIGNE
// ============================================================================

// TestLigneStore is implemented by services.TestLigneService.
type TestLigneStore interface {
	List(ctx context.Context, scope policy.Scope, f models.TestFilter) ([]models.TestLigne, error)
	Get(ctx context.Context, scope policy.Scope, id string) (*models.TestLigne, error)
	Create(ctx context.Context, scope policy.Scope, t models.TestLigne, creator models.User) (*models.TestLigne, *models.Alerte, error)
	Update(ctx context.Context, scope policy.Scope, id string, t models.TestLigne, editor models.User) (*models.TestLigne, *models.Alerte, error)
	Delete(ctx context.Context, scope policy.Scope, id string) error
}

type TestLigneHandler struct {
	tests  TestLigneStore
	events *AlerteEvents
	loc    *time.Location
}

func NewTestLigneHandler(tests TestLigneStore, events *AlerteEvents, loc *time.Location) *TestLigneHandler {
	return &TestLigneHandler{tests: tests, events: events, loc: loc}
}

func (h *TestLigneHandler) List(c *gin.Context) {
	f, err := parseTestFilter(c, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.tests.List(c.Request.Context(), middleware.GetScope(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	role := middleware.GetRole(c)
	for i := range list {
		services.MaskCreator(&list[i], role)
	}
	c.JSON(http.StatusOK, list)
}

func (h *TestLigneHandler) Get(c *gin.Context) {
	t, err := h.tests.Get(c.Request.Context(), middleware.GetScope(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	services.MaskCreator(t, middleware.GetRole(c))
	c.JSON(http.StatusOK, t)
}

func (h *TestLigneHandler) Create(c *gin.Context) {
	var req models.TestLigneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user := middleware.GetUser(c)
	created, alerte, err := h.tests.Create(c.Request.Context(), middleware.GetScope(c), req.ToTestLigne(), user)
	if err != nil {
		respondError(c, err)
		return
	}

	if alerte != nil {
		decorateAlerte(alerte, created.ProgrammeNom, created.PartenaireNom)
		h.events.Publish(EventAlerteCreated, *alerte)
	}
	services.MaskCreator(created, user.Role)
	c.JSON(http.StatusCreated, gin.H{"test": created, "alerte": alerte})
}

func (h *TestLigneHandler) Update(c *gin.Context) {
	var req models.TestLigneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user := middleware.GetUser(c)
	updated, alerte, err := h.tests.Update(c.Request.Context(), middleware.GetScope(c), c.Param("id"), req.ToTestLigne(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	if alerte != nil {
		decorateAlerte(alerte, updated.ProgrammeNom, updated.PartenaireNom)
		h.events.Publish(EventAlerteCreated, *alerte)
	}
	services.MaskCreator(updated, user.Role)
	c.JSON(http.StatusOK, updated)
}

func (h *TestLigneHandler) Delete(c *gin.Context) {
	if err := h.tests.Delete(c.Request.Context(), middleware.GetScope(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test supprimé"})
}
