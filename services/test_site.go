package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

type TestSiteService struct {
	db  *sql.DB
	loc *time.Location
}

func NewTestSiteService(db *sql.DB, loc *time.Location) *TestSiteService {
	return &TestSiteService{db: db, loc: loc}
}

var testSiteColumns = []string{
	"t.id", "t.programme_id", "t.partenaire_id", "p.nom", "pa.nom", "t.date_test",
	"t.test_non_realisable", "t.application_remise", "t.prix_public", "t.prix_remise",
	"t.pct_remise_calcule", "t.naming_constate", "t.cumul_codes", "t.commentaire",
	"t.screenshots", "u.id", "u.nom", "u.prenom", "t.created_at", "t.updated_at",
}

func testSiteSelect(scope policy.Scope) sq.SelectBuilder {
	b := psql.Select(testSiteColumns...).
		From("tests_site t").
		Join("programmes p ON p.id = t.programme_id").
		Join("partenaires pa ON pa.id = t.partenaire_id").
		LeftJoin("users u ON u.id = t.created_by")
	return applyScope(b, scope, "t.programme_id", "t.partenaire_id")
}

func applyTestFilter(b sq.SelectBuilder, f models.TestFilter, loc *time.Location) sq.SelectBuilder {
	if f.ProgrammeID != "" {
		b = b.Where(sq.Eq{"t.programme_id": f.ProgrammeID})
	}
	if f.PartenaireID != "" {
		b = b.Where(sq.Eq{"t.partenaire_id": f.PartenaireID})
	}
	if f.From != nil {
		b = b.Where(sq.GtOrEq{"t.date_test": toWallClock(*f.From, loc)})
	}
	if f.To != nil {
		b = b.Where(sq.Lt{"t.date_test": toWallClock(*f.To, loc)})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	if f.Offset > 0 {
		b = b.Offset(f.Offset)
	}
	return b
}

func (s *TestSiteService) scan(row rowScanner) (*models.TestSite, error) {
	var t models.TestSite
	var creatorID, creatorNom, creatorPrenom sql.NullString
	err := row.Scan(
		&t.ID, &t.ProgrammeID, &t.PartenaireID, &t.ProgrammeNom, &t.PartenaireNom, &t.DateTest,
		&t.TestNonRealisable, &t.ApplicationRemise, &t.PrixPublic, &t.PrixRemise,
		&t.PctRemiseCalcule, &t.NamingConstate, &t.CumulCodes, &t.Commentaire,
		pq.Array(&t.Screenshots), &creatorID, &creatorNom, &creatorPrenom, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.DateTest = wallClock(t.DateTest, s.loc)
	t.Screenshots = nonNil(t.Screenshots)
	if creatorID.Valid {
		t.CreatedBy = &models.UserSummary{ID: creatorID.String, Nom: creatorNom.String, Prenom: creatorPrenom.String}
	}
	decorateTestSite(&t)
	return &t, nil
}

// decorateTestSite fills the computed anomaly badges. Non réalisable tests
// carry no badge: their alert already explains them.
func decorateTestSite(t *models.TestSite) {
	if t.TestNonRealisable {
		t.Anomalies = []string{}
		return
	}
	t.Anomalies = DetectSiteAnomalies(*t)
}

func (s *TestSiteService) List(ctx context.Context, scope policy.Scope, f models.TestFilter) ([]models.TestSite, error) {
	b := applyTestFilter(testSiteSelect(scope), f, s.loc).OrderBy("t.date_test DESC")
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isInvalidText(err) {
			return []models.TestSite{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	tests := []models.TestSite{}
	for rows.Next() {
		t, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}

func (s *TestSiteService) Get(ctx context.Context, scope policy.Scope, id string) (*models.TestSite, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query, args, err := testSiteSelect(scope).Where(sq.Eq{"t.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	t, err := s.scan(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// prepare normalizes and validates a test before any write.
func (s *TestSiteService) prepare(t *models.TestSite) error {
	NormalizeTestSite(t)
	if t.DateTest.IsZero() {
		t.DateTest = time.Now()
	}
	t.DateTest = t.DateTest.In(s.loc)
	if err := ValidateTestSite(*t); err != nil {
		return err
	}
	if !validID(t.ProgrammeID) {
		return invalid("programme_id", "Programme inconnu")
	}
	if !validID(t.PartenaireID) {
		return invalid("partenaire_id", "Partenaire inconnu")
	}
	return nil
}

// Create stores a site test and, in the same transaction, the alert it
// warrants. The monthly rule is checked first, the unique index settles races.
func (s *TestSiteService) Create(ctx context.Context, scope policy.Scope, t models.TestSite, creator models.User) (*models.TestSite, *models.Alerte, error) {
	if err := s.prepare(&t); err != nil {
		return nil, nil, err
	}
	if !scope.Allows(t.ProgrammeID, t.PartenaireID) {
		return nil, nil, ErrForbidden
	}

	t.ID = uuid.New().String()
	var alerte *models.Alerte

	candidate := DuplicateCandidate{
		PartenaireID: t.PartenaireID,
		ProgrammeID:  t.ProgrammeID,
		TestType:     models.TestTypeSite,
		DateTest:     t.DateTest,
		Viewer:       creator.Role,
	}
	err := utils.WithTransaction(s.db, func(tx *sql.Tx) error {
		conflict, err := checkDuplicate(ctx, tx, s.loc, candidate)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &DuplicateTestError{Conflict: conflict}
		}

		query, args, err := psql.Insert("tests_site").
			Columns("id", "programme_id", "partenaire_id", "date_test", "test_non_realisable",
				"application_remise", "prix_public", "prix_remise", "pct_remise_calcule",
				"naming_constate", "cumul_codes", "commentaire", "screenshots", "created_by").
			Values(t.ID, t.ProgrammeID, t.PartenaireID, toWallClock(t.DateTest, s.loc), t.TestNonRealisable,
				t.ApplicationRemise, t.PrixPublic, t.PrixRemise, t.PctRemiseCalcule,
				t.NamingConstate, t.CumulCodes, t.Commentaire, pq.Array(t.Screenshots), nullString(&creator.ID)).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if _, dup := isUniqueViolation(err); dup {
				return &DuplicateTestError{}
			}
			return fmt.Errorf("failed to insert test site: %w", err)
		}

		decorateTestSite(&t)
		alerte = BuildTestAlerte(models.TestTypeSite, t.ProgrammeID, t.PartenaireID, t.ID, t.TestNonRealisable, t.Commentaire, t.Anomalies)
		if alerte != nil {
			return insertAlerte(ctx, tx, alerte)
		}
		return nil
	})
	if err != nil {
		return nil, nil, withConflict(ctx, s.db, s.loc, candidate, err)
	}

	utils.LogTestAction("created", "TS", t.ID, creator.ID)

	created, err := s.Get(ctx, policy.Scope{All: true}, t.ID)
	if err != nil {
		return nil, nil, err
	}
	return created, alerte, nil
}

// Update replaces the editable fields of a test. The edited record is
// excluded from the monthly rule. Switching a réalisable test to non
// réalisable opens an alert in the same transaction.
func (s *TestSiteService) Update(ctx context.Context, scope policy.Scope, id string, t models.TestSite) (*models.TestSite, *models.Alerte, error) {
	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}
	if t.DateTest.IsZero() {
		t.DateTest = current.DateTest
	}
	if err := s.prepare(&t); err != nil {
		return nil, nil, err
	}
	if !scope.Allows(t.ProgrammeID, t.PartenaireID) {
		return nil, nil, ErrForbidden
	}

	candidate := DuplicateCandidate{
		PartenaireID: t.PartenaireID,
		ProgrammeID:  t.ProgrammeID,
		TestType:     models.TestTypeSite,
		DateTest:     t.DateTest,
		ExcludeID:    id,
	}
	var alerte *models.Alerte
	err = utils.WithTransaction(s.db, func(tx *sql.Tx) error {
		conflict, err := checkDuplicate(ctx, tx, s.loc, candidate)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &DuplicateTestError{Conflict: conflict}
		}

		query, args, err := psql.Update("tests_site").
			Set("programme_id", t.ProgrammeID).
			Set("partenaire_id", t.PartenaireID).
			Set("date_test", toWallClock(t.DateTest, s.loc)).
			Set("test_non_realisable", t.TestNonRealisable).
			Set("application_remise", t.ApplicationRemise).
			Set("prix_public", t.PrixPublic).
			Set("prix_remise", t.PrixRemise).
			Set("pct_remise_calcule", t.PctRemiseCalcule).
			Set("naming_constate", t.NamingConstate).
			Set("cumul_codes", t.CumulCodes).
			Set("commentaire", t.Commentaire).
			Set("screenshots", pq.Array(t.Screenshots)).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if _, dup := isUniqueViolation(err); dup {
				return &DuplicateTestError{}
			}
			return fmt.Errorf("failed to update test site: %w", err)
		}

		alerte = BuildUpdateAlerte(current.TestNonRealisable, models.TestTypeSite, t.ProgrammeID, t.PartenaireID, id, t.TestNonRealisable, t.Commentaire)
		if alerte != nil {
			return insertAlerte(ctx, tx, alerte)
		}
		return nil
	})
	if err != nil {
		return nil, nil, withConflict(ctx, s.db, s.loc, candidate, err)
	}

	updated, err := s.Get(ctx, policy.Scope{All: true}, id)
	if err != nil {
		return nil, nil, err
	}
	return updated, alerte, nil
}

func (s *TestSiteService) Delete(ctx context.Context, scope policy.Scope, id string) error {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tests_site WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete test site: %w", err)
	}
	return nil
}
