package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/services"
)

type FormState int

const (
	StateEmpty FormState = iota
	StateProgramAndPartnerSelected
	StateTechnicalFieldsValid
	StateNonRealisable
	StateSubmittable
	StateSubmitted
	StateCancelled
)

func (s FormState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateProgramAndPartnerSelected:
		return "program_and_partner_selected"
	case StateTechnicalFieldsValid:
		return "technical_fields_valid"
	case StateNonRealisable:
		return "non_realisable"
	case StateSubmittable:
		return "submittable"
	case StateSubmitted:
		return "submitted"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// ErrFormClosed is returned when a submitted or cancelled form is used again.
var ErrFormClosed = errors.New("formulaire fermé")

// TestAPI is the part of *Client a form needs.
type TestAPI interface {
	DuplicateChecker
	CreateTestSite(ctx context.Context, req models.TestSiteRequest) (*models.TestSite, *models.Alerte, error)
	UpdateTestSite(ctx context.Context, id string, req models.TestSiteRequest) (*models.TestSite, error)
	CreateTestLigne(ctx context.Context, req models.TestLigneRequest) (*models.TestLigne, *models.Alerte, error)
	UpdateTestLigne(ctx context.Context, id string, req models.TestLigneRequest) (*models.TestLigne, error)
}

// SubmitResult is what a successful submit stored.
type SubmitResult struct {
	TestSite  *models.TestSite
	TestLigne *models.TestLigne
	Alerte    *models.Alerte
}

// TestForm drives the creation or edition of one test site or test ligne.
// It is not safe for concurrent use.
type TestForm struct {
	api         TestAPI
	testType    models.TestType
	editingID   string
	programmes  []models.Programme
	partenaires []models.Partenaire
	loc         *time.Location
	now         func() time.Time
	watcher     *DuplicateWatcher

	site  models.TestSite
	ligne models.TestLigne

	// stage is set once the form left the editing states.
	stage FormState
}

// NewTestForm opens an empty creation form.
func NewTestForm(api TestAPI, testType models.TestType, programmes []models.Programme, partenaires []models.Partenaire, loc *time.Location) *TestForm {
	if loc == nil {
		loc = time.UTC
	}
	return &TestForm{
		api:         api,
		testType:    testType,
		programmes:  programmes,
		partenaires: partenaires,
		loc:         loc,
		now:         time.Now,
		stage:       StateEmpty,
	}
}

// EditTestSite opens a form on an existing site test.
func EditTestSite(api TestAPI, t models.TestSite, programmes []models.Programme, partenaires []models.Partenaire, loc *time.Location) *TestForm {
	f := NewTestForm(api, models.TestTypeSite, programmes, partenaires, loc)
	f.editingID = t.ID
	f.site = t
	return f
}

// EditTestLigne opens a form on an existing phone test.
func EditTestLigne(api TestAPI, t models.TestLigne, programmes []models.Programme, partenaires []models.Partenaire, loc *time.Location) *TestForm {
	f := NewTestForm(api, models.TestTypeLigne, programmes, partenaires, loc)
	f.editingID = t.ID
	f.ligne = t
	return f
}

// WithWatcher plugs the soft duplicate check, refreshed on every pair or date change.
func (f *TestForm) WithWatcher(w *DuplicateWatcher) *TestForm {
	f.watcher = w
	f.refreshWatcher()
	return f
}

func (f *TestForm) Type() models.TestType { return f.testType }
func (f *TestForm) Editing() bool         { return f.editingID != "" }

// Site returns the draft of a site form.
func (f *TestForm) Site() models.TestSite { return f.site }

// Ligne returns the draft of a phone form.
func (f *TestForm) Ligne() models.TestLigne { return f.ligne }

func (f *TestForm) programmeID() string {
	if f.testType == models.TestTypeSite {
		return f.site.ProgrammeID
	}
	return f.ligne.ProgrammeID
}

func (f *TestForm) partenaireID() string {
	if f.testType == models.TestTypeSite {
		return f.site.PartenaireID
	}
	return f.ligne.PartenaireID
}

func (f *TestForm) nonRealisable() bool {
	if f.testType == models.TestTypeSite {
		return f.site.TestNonRealisable
	}
	return f.ligne.TestNonRealisable
}

func (f *TestForm) dateTest() time.Time {
	if f.testType == models.TestTypeSite {
		return f.site.DateTest
	}
	return f.ligne.DateTest
}

func (f *TestForm) validate() error {
	if f.testType == models.TestTypeSite {
		return services.ValidateTestSite(f.site)
	}
	return services.ValidateTestLigne(f.ligne)
}

// State derives the current state from the draft.
func (f *TestForm) State() FormState {
	switch f.stage {
	case StateSubmittable, StateSubmitted, StateCancelled:
		return f.stage
	}
	if f.programmeID() == "" || f.partenaireID() == "" {
		return StateEmpty
	}
	if f.nonRealisable() {
		return StateNonRealisable
	}
	if f.validate() == nil {
		return StateTechnicalFieldsValid
	}
	return StateProgramAndPartnerSelected
}

func (f *TestForm) closed() bool {
	return f.stage == StateSubmitted || f.stage == StateCancelled
}

// edited moves a form whose submit failed back to the editing states.
func (f *TestForm) edited() {
	if f.stage == StateSubmittable {
		f.stage = StateEmpty
	}
}

// SelectableProgrammes lists the programmes compatible with the selected partner.
func (f *TestForm) SelectableProgrammes() []models.Programme {
	return services.SelectableProgrammes(f.programmes, f.partenaires, f.partenaireID(), f.testType)
}

// SelectablePartenaires lists the partners compatible with the selected programme.
func (f *TestForm) SelectablePartenaires() []models.Partenaire {
	return services.SelectablePartenaires(f.partenaires, f.programmeID(), f.testType)
}

func (f *TestForm) findPartenaire(id string) (models.Partenaire, bool) {
	for _, p := range f.partenaires {
		if p.ID == id {
			return p, true
		}
	}
	return models.Partenaire{}, false
}

func (f *TestForm) setPair(programmeID, partenaireID string) {
	if f.testType == models.TestTypeSite {
		f.site.ProgrammeID, f.site.PartenaireID = programmeID, partenaireID
	} else {
		f.ligne.ProgrammeID, f.ligne.PartenaireID = programmeID, partenaireID
	}
	f.edited()
	f.refreshWatcher()
}

// SelectProgramme picks a programme. A partner that does not require this
// test type for the new programme is unselected. An empty id clears the choice.
func (f *TestForm) SelectProgramme(id string) error {
	if f.closed() {
		return ErrFormClosed
	}
	if id != "" && !containsProgramme(services.SelectableProgrammes(f.programmes, f.partenaires, "", f.testType), id) {
		return &services.ValidationError{Field: "programme_id", Message: "Programme non disponible pour ce type de test"}
	}

	partenaireID := f.partenaireID()
	if partenaireID != "" && id != "" {
		if p, ok := f.findPartenaire(partenaireID); !ok || !services.IsSelectablePair(p, id, f.testType) {
			partenaireID = ""
		}
	}
	f.setPair(id, partenaireID)
	return nil
}

// SelectPartenaire picks a partner and unselects an incompatible programme.
func (f *TestForm) SelectPartenaire(id string) error {
	if f.closed() {
		return ErrFormClosed
	}
	programmeID := f.programmeID()
	if id == "" {
		f.setPair(programmeID, "")
		return nil
	}

	p, ok := f.findPartenaire(id)
	if !ok || len(services.SelectablePartenaires([]models.Partenaire{p}, "", f.testType)) == 0 {
		return &services.ValidationError{Field: "partenaire_id", Message: "Partenaire non disponible pour ce type de test"}
	}
	if programmeID != "" && !services.IsSelectablePair(p, programmeID, f.testType) {
		programmeID = ""
	}
	f.setPair(programmeID, id)
	return nil
}

func (f *TestForm) SetDateTest(d time.Time) error {
	if f.closed() {
		return ErrFormClosed
	}
	if f.testType == models.TestTypeSite {
		f.site.DateTest = d
	} else {
		f.ligne.DateTest = d
	}
	f.edited()
	f.refreshWatcher()
	return nil
}

// SetNonRealisable flags the test as impossible to run. Technical fields are
// cleared and the commentaire becomes mandatory.
func (f *TestForm) SetNonRealisable(v bool) error {
	if f.closed() {
		return ErrFormClosed
	}
	if f.testType == models.TestTypeSite {
		f.site.TestNonRealisable = v
		services.NormalizeTestSite(&f.site)
	} else {
		f.ligne.TestNonRealisable = v
		services.NormalizeTestLigne(&f.ligne)
	}
	f.edited()
	return nil
}

func (f *TestForm) SetCommentaire(s string) error {
	if f.closed() {
		return ErrFormClosed
	}
	if f.testType == models.TestTypeSite {
		f.site.Commentaire = s
	} else {
		f.ligne.Commentaire = s
	}
	f.edited()
	return nil
}

// UpdateSite edits the technical fields of a site form. Changes are dropped
// while the test is non réalisable.
func (f *TestForm) UpdateSite(edit func(*models.TestSite)) error {
	if f.closed() {
		return ErrFormClosed
	}
	if f.testType != models.TestTypeSite {
		return &services.ValidationError{Field: "test_type", Message: "Formulaire de test ligne"}
	}
	programmeID, partenaireID, nonRealisable := f.site.ProgrammeID, f.site.PartenaireID, f.site.TestNonRealisable
	edit(&f.site)
	f.site.ProgrammeID, f.site.PartenaireID, f.site.TestNonRealisable = programmeID, partenaireID, nonRealisable
	services.NormalizeTestSite(&f.site)
	f.edited()
	return nil
}

// UpdateLigne edits the technical fields of a phone form.
func (f *TestForm) UpdateLigne(edit func(*models.TestLigne)) error {
	if f.closed() {
		return ErrFormClosed
	}
	if f.testType != models.TestTypeLigne {
		return &services.ValidationError{Field: "test_type", Message: "Formulaire de test site"}
	}
	programmeID, partenaireID, nonRealisable := f.ligne.ProgrammeID, f.ligne.PartenaireID, f.ligne.TestNonRealisable
	edit(&f.ligne)
	f.ligne.ProgrammeID, f.ligne.PartenaireID, f.ligne.TestNonRealisable = programmeID, partenaireID, nonRealisable
	services.NormalizeTestLigne(&f.ligne)
	f.edited()
	return nil
}

// Anomalies previews what the detector will report for the draft.
func (f *TestForm) Anomalies() []string {
	if f.nonRealisable() {
		return []string{}
	}
	if f.testType == models.TestTypeSite {
		return services.DetectSiteAnomalies(f.site)
	}
	return services.DetectLigneAnomalies(f.ligne)
}

func (f *TestForm) candidate() services.DuplicateCandidate {
	d := f.dateTest()
	if d.IsZero() {
		d = f.now()
	}
	return services.DuplicateCandidate{
		ProgrammeID:  f.programmeID(),
		PartenaireID: f.partenaireID(),
		TestType:     f.testType,
		DateTest:     d.In(f.loc),
		ExcludeID:    f.editingID,
	}
}

func (f *TestForm) refreshWatcher() {
	if f.watcher != nil {
		f.watcher.Select(f.candidate())
	}
}

// DuplicateWarning is the soft warning of the watcher, if one is plugged.
func (f *TestForm) DuplicateWarning() *models.DuplicateConflict {
	if f.watcher == nil {
		return nil
	}
	return f.watcher.Warning()
}

// Submit validates the draft, re-checks the monthly rule when creating, then
// sends it. A *services.ValidationError is returned before any network call;
// a month collision is returned as *services.DuplicateTestError. A pre-check
// that fails for another reason than the session does not block the send:
// the backend enforces the rule anyway.
func (f *TestForm) Submit(ctx context.Context) (*SubmitResult, error) {
	if f.closed() {
		return nil, ErrFormClosed
	}
	if err := f.validate(); err != nil {
		return nil, err
	}

	if !f.Editing() {
		res, err := f.api.CheckDuplicate(ctx, f.candidate())
		switch {
		case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrForbidden):
			return nil, err
		case err == nil && res != nil && res.Exists:
			return nil, &services.DuplicateTestError{Conflict: res.Test}
		}
	}

	f.stage = StateSubmittable
	result, err := f.send(ctx)
	if err != nil {
		f.edited()
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return nil, &services.DuplicateTestError{Conflict: apiErr.Conflict}
		}
		return nil, err
	}

	f.stage = StateSubmitted
	if f.watcher != nil {
		f.watcher.Close()
	}
	return result, nil
}

func (f *TestForm) send(ctx context.Context) (*SubmitResult, error) {
	if f.testType == models.TestTypeSite {
		req := siteRequest(f.site)
		if f.Editing() {
			t, err := f.api.UpdateTestSite(ctx, f.editingID, req)
			if err != nil {
				return nil, err
			}
			return &SubmitResult{TestSite: t}, nil
		}
		t, a, err := f.api.CreateTestSite(ctx, req)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{TestSite: t, Alerte: a}, nil
	}

	req := ligneRequest(f.ligne)
	if f.Editing() {
		t, err := f.api.UpdateTestLigne(ctx, f.editingID, req)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{TestLigne: t}, nil
	}
	t, a, err := f.api.CreateTestLigne(ctx, req)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{TestLigne: t, Alerte: a}, nil
}

// Cancel discards the draft and abandons any pending duplicate check.
func (f *TestForm) Cancel() {
	f.stage = StateCancelled
	f.site = models.TestSite{}
	f.ligne = models.TestLigne{}
	if f.watcher != nil {
		f.watcher.Close()
	}
}

func siteRequest(t models.TestSite) models.TestSiteRequest {
	req := models.TestSiteRequest{
		ProgrammeID:       t.ProgrammeID,
		PartenaireID:      t.PartenaireID,
		TestNonRealisable: t.TestNonRealisable,
		ApplicationRemise: t.ApplicationRemise,
		PrixPublic:        t.PrixPublic,
		PrixRemise:        t.PrixRemise,
		NamingConstate:    t.NamingConstate,
		CumulCodes:        t.CumulCodes,
		Commentaire:       t.Commentaire,
		Screenshots:       t.Screenshots,
	}
	if !t.DateTest.IsZero() {
		d := t.DateTest
		req.DateTest = &d
	}
	return req
}

func ligneRequest(t models.TestLigne) models.TestLigneRequest {
	req := models.TestLigneRequest{
		ProgrammeID:            t.ProgrammeID,
		PartenaireID:           t.PartenaireID,
		TestNonRealisable:      t.TestNonRealisable,
		NumeroTelephone:        t.NumeroTelephone,
		MessagerieVocaleDediee: t.MessagerieVocaleDediee,
		DecrocheDedie:          t.DecrocheDedie,
		DelaiAttente:           t.DelaiAttente,
		NomConseiller:          t.NomConseiller,
		EvaluationAccueil:      t.EvaluationAccueil,
		ApplicationOffre:       t.ApplicationOffre,
		Commentaire:            t.Commentaire,
		Screenshots:            t.Screenshots,
		IsAnonymous:            t.IsAnonymous,
	}
	if !t.DateTest.IsZero() {
		d := t.DateTest
		req.DateTest = &d
	}
	return req
}

func containsProgramme(list []models.Programme, id string) bool {
	for _, p := range list {
		if p.ID == id {
			return true
		}
	}
	return false
}
