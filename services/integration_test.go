package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/qwertys/qwertys-api/config"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

// startPostgres boots a disposable Postgres 16 and applies the migrations.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgC, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("qwertys"),
		postgres.WithUsername("qwertys"),
		postgres.WithPassword("qwertys"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := config.InitDB(config.DatabaseConfig{URL: dsn, MaxOpenConns: 5, MaxIdleConns: 2})
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := config.RunMigrations(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db
}

func TestIntegration_TestLifecycle(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	cipher, err := utils.NewCipher(testEncryptionKey)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}

	programmes := NewProgrammeService(db, cipher)
	partenaires := NewPartenaireService(db)
	users := NewUserService(db, cipher)
	sites := NewTestSiteService(db, loc)
	lignes := NewTestLigneService(db, loc)
	alertes := NewAlerteService(db)
	all := policy.Scope{All: true}

	prog, err := programmes.Create(ctx, models.ProgrammeRequest{Nom: "Club", Identifiant: "club", MotDePasse: "s3cret"})
	if err != nil {
		t.Fatalf("create programme: %v", err)
	}
	if prog.MotDePasse != "s3cret" {
		t.Fatalf("password must round-trip through the cipher, got %q", prog.MotDePasse)
	}
	var stored string
	if err := db.QueryRowContext(ctx, `SELECT mot_de_passe FROM programmes WHERE id = $1`, prog.ID).Scan(&stored); err != nil || stored == "s3cret" {
		t.Fatalf("password must be stored encrypted (%q, %v)", stored, err)
	}

	part, err := partenaires.Create(ctx, models.PartenaireRequest{
		Nom:           "Fnac",
		ContactEmail:  "contact@fnac.fr",
		ProgrammesIDs: []string{prog.ID},
		ContactsProgrammes: []models.ContactProgramme{
			{ProgrammeID: prog.ID, TestSiteRequis: true, TestLigneRequis: true},
		},
	})
	if err != nil {
		t.Fatalf("create partenaire: %v", err)
	}

	agent, err := users.Create(ctx, models.User{Role: models.RoleSuperAdmin}, models.UserRequest{
		Email: "Agent@Qwertys.fr", Nom: "Martin", Prenom: "Léa", Password: "motdepasse", Role: models.RoleAgent,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if agent.Email != "agent@qwertys.fr" {
		t.Fatalf("email must be lowercased, got %q", agent.Email)
	}

	// Late evening on the 31st in Paris is already April in UTC.
	march := time.Date(2024, 3, 31, 23, 30, 0, 0, loc)
	created, alerte, err := sites.Create(ctx, all, models.TestSite{
		ProgrammeID: prog.ID, PartenaireID: part.ID, DateTest: march,
		ApplicationRemise: false, PrixPublic: 100, PrixRemise: 100,
	}, *agent)
	if err != nil {
		t.Fatalf("create test site: %v", err)
	}
	if created.DateTest.Month() != time.March || created.CreatedBy == nil || created.CreatedBy.ID != agent.ID {
		t.Fatalf("unexpected stored test %+v", created)
	}
	if alerte == nil || alerte.TypeTest != "TS" || alerte.PointsAttention[0] != AnomalieRemiseNonAppliquee {
		t.Fatalf("expected an anomaly alert, got %+v", alerte)
	}

	_, _, err = sites.Create(ctx, all, models.TestSite{
		ProgrammeID: prog.ID, PartenaireID: part.ID, DateTest: time.Date(2024, 3, 1, 9, 0, 0, 0, loc),
		ApplicationRemise: true, PrixPublic: 100, PrixRemise: 80,
	}, *agent)
	var dup *DuplicateTestError
	if !errors.As(err, &dup) || dup.Conflict == nil || dup.Conflict.ExistingTestID != created.ID {
		t.Fatalf("expected a duplicate conflict on %s, got %v", created.ID, err)
	}

	april, _, err := sites.Create(ctx, all, models.TestSite{
		ProgrammeID: prog.ID, PartenaireID: part.ID, DateTest: time.Date(2024, 4, 1, 0, 30, 0, 0, loc),
		ApplicationRemise: true, PrixPublic: 100, PrixRemise: 80,
	}, *agent)
	if err != nil {
		t.Fatalf("a test in the next month must be accepted: %v", err)
	}

	// moving the April test into March collides, keeping it in April does not
	if _, _, err := sites.Update(ctx, all, april.ID, models.TestSite{
		ProgrammeID: prog.ID, PartenaireID: part.ID, DateTest: time.Date(2024, 3, 10, 12, 0, 0, 0, loc),
		ApplicationRemise: true, PrixPublic: 100, PrixRemise: 80,
	}); !errors.Is(err, ErrDuplicateTest) {
		t.Fatalf("expected ErrDuplicateTest on update, got %v", err)
	}
	if _, _, err := sites.Update(ctx, all, april.ID, models.TestSite{
		ProgrammeID: prog.ID, PartenaireID: part.ID, DateTest: time.Date(2024, 4, 20, 12, 0, 0, 0, loc),
		ApplicationRemise: true, PrixPublic: 100, PrixRemise: 90,
	}); err != nil {
		t.Fatalf("self must be excluded from the monthly rule: %v", err)
	}

	// turning the test non réalisable opens an alert, editing it again does not
	_, switched, err := sites.Update(ctx, all, april.ID, models.TestSite{
		ProgrammeID: prog.ID, PartenaireID: part.ID, DateTest: time.Date(2024, 4, 20, 12, 0, 0, 0, loc),
		TestNonRealisable: true, Commentaire: "Site en maintenance",
	})
	if err != nil {
		t.Fatalf("switch to non réalisable: %v", err)
	}
	if switched == nil || switched.TestID == nil || *switched.TestID != april.ID || switched.Description != "Test site non réalisable : Site en maintenance" {
		t.Fatalf("expected a non réalisable alert on %s, got %+v", april.ID, switched)
	}
	if _, again, err := sites.Update(ctx, all, april.ID, models.TestSite{
		ProgrammeID: prog.ID, PartenaireID: part.ID, DateTest: time.Date(2024, 4, 20, 12, 0, 0, 0, loc),
		TestNonRealisable: true, Commentaire: "Toujours en maintenance",
	}); err != nil || again != nil {
		t.Fatalf("a test already non réalisable must not open another alert: %+v, %v", again, err)
	}

	// the phone test of the same pair and month is a different type
	ligne, ligneAlerte, err := lignes.Create(ctx, all, models.TestLigne{
		ProgrammeID: prog.ID, PartenaireID: part.ID, DateTest: march,
		TestNonRealisable: true, Commentaire: "Ligne saturée", IsAnonymous: true,
	}, *agent)
	if err != nil {
		t.Fatalf("create test ligne: %v", err)
	}
	if ligne.IsAnonymous {
		t.Fatal("an agent cannot create anonymous tests")
	}
	if ligneAlerte == nil || ligneAlerte.Description != "Test ligne non réalisable : Ligne saturée" {
		t.Fatalf("unexpected alert %+v", ligneAlerte)
	}

	// the creator of an anonymous phone test stays hidden in duplicate warnings
	if _, err := db.ExecContext(ctx, `UPDATE tests_ligne SET is_anonymous = TRUE WHERE id = $1`, ligne.ID); err != nil {
		t.Fatalf("flag anonymous: %v", err)
	}
	duplicates := NewDuplicateService(db, loc)
	ligneCandidate := DuplicateCandidate{
		PartenaireID: part.ID, ProgrammeID: prog.ID, TestType: models.TestTypeLigne, DateTest: march, Viewer: models.RoleAgent,
	}
	if conflict, err := duplicates.Check(ctx, ligneCandidate); err != nil || conflict == nil || conflict.CreatedBy != nil {
		t.Fatalf("agent must get the conflict without its creator: %+v, %v", conflict, err)
	}
	ligneCandidate.Viewer = models.RoleSuperAdmin
	if conflict, err := duplicates.Check(ctx, ligneCandidate); err != nil || conflict == nil || conflict.CreatedBy == nil || conflict.CreatedBy.ID != agent.ID {
		t.Fatalf("super_admin must see the creator: %+v, %v", conflict, err)
	}

	// a duplicate reported by the unique index gets its conflict looked up
	err = withConflict(ctx, db, loc, ligneCandidate, &DuplicateTestError{})
	if !errors.As(err, &dup) || dup.Conflict == nil || dup.Conflict.ExistingTestID != ligne.ID {
		t.Fatalf("expected the conflict on %s, got %v", ligne.ID, err)
	}

	// scoping
	partnerScope := policy.Scope{PartenaireID: part.ID}
	if list, err := sites.List(ctx, partnerScope, models.TestFilter{}); err != nil || len(list) != 2 {
		t.Fatalf("partner scope must see its tests: %d, %v", len(list), err)
	}
	if list, err := sites.List(ctx, policy.Scope{}, models.TestFilter{}); err != nil || len(list) != 0 {
		t.Fatalf("empty scope must see nothing: %d, %v", len(list), err)
	}

	// alert lifecycle
	if _, err := alertes.Delete(ctx, all, alerte.ID); !errors.Is(err, ErrAlerteNotResolved) {
		t.Fatalf("open alerts cannot be deleted, got %v", err)
	}
	if _, err := alertes.Resolve(ctx, all, alerte.ID, models.AlerteResolu, agent.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := alertes.Resolve(ctx, all, alerte.ID, models.AlerteResolu, agent.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resolving twice must fail, got %v", err)
	}
	if n, err := alertes.CountOpen(ctx, all); err != nil || n != 2 {
		t.Fatalf("expected 2 open alerts, got %d, %v", n, err)
	}
	if _, err := alertes.Delete(ctx, all, alerte.ID); err != nil {
		t.Fatalf("delete resolved alert: %v", err)
	}

	// statistics
	stats := NewStatisticsService(sites, lignes, alertes, programmes, loc)
	monthly, err := stats.Monthly(ctx, all, march)
	if err != nil {
		t.Fatalf("monthly stats: %v", err)
	}
	if monthly.Month != "2024-03" || monthly.TestsSite != 1 || monthly.TestsLigne != 1 {
		t.Fatalf("unexpected monthly stats %+v", monthly)
	}

	if _, err := sites.Get(ctx, all, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("invalid ids must read as not found, got %v", err)
	}
}
