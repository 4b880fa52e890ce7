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

type TestLigneService struct {
	db  *sql.DB
	loc *time.Location
}

func NewTestLigneService(db *sql.DB, loc *time.Location) *TestLigneService {
	return &TestLigneService{db: db, loc: loc}
}

var testLigneColumns = []string{
	"t.id", "t.programme_id", "t.partenaire_id", "p.nom", "pa.nom", "t.date_test",
	"t.test_non_realisable", "t.numero_telephone", "t.messagerie_vocale_dediee", "t.decroche_dedie",
	"t.delai_attente", "t.nom_conseiller", "t.evaluation_accueil", "t.application_offre",
	"t.commentaire", "t.screenshots", "u.id", "u.nom", "u.prenom", "t.is_anonymous",
	"t.created_at", "t.updated_at",
}

func testLigneSelect(scope policy.Scope) sq.SelectBuilder {
	b := psql.Select(testLigneColumns...).
		From("tests_ligne t").
		Join("programmes p ON p.id = t.programme_id").
		Join("partenaires pa ON pa.id = t.partenaire_id").
		LeftJoin("users u ON u.id = t.created_by")
	return applyScope(b, scope, "t.programme_id", "t.partenaire_id")
}

func (s *TestLigneService) scan(row rowScanner) (*models.TestLigne, error) {
	var t models.TestLigne
	var creatorID, creatorNom, creatorPrenom sql.NullString
	err := row.Scan(
		&t.ID, &t.ProgrammeID, &t.PartenaireID, &t.ProgrammeNom, &t.PartenaireNom, &t.DateTest,
		&t.TestNonRealisable, &t.NumeroTelephone, &t.MessagerieVocaleDediee, &t.DecrocheDedie,
		&t.DelaiAttente, &t.NomConseiller, &t.EvaluationAccueil, &t.ApplicationOffre,
		&t.Commentaire, pq.Array(&t.Screenshots), &creatorID, &creatorNom, &creatorPrenom, &t.IsAnonymous,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.DateTest = wallClock(t.DateTest, s.loc)
	t.Screenshots = nonNil(t.Screenshots)
	if creatorID.Valid {
		t.CreatedBy = &models.UserSummary{ID: creatorID.String, Nom: creatorNom.String, Prenom: creatorPrenom.String}
	}
	decorateTestLigne(&t)
	return &t, nil
}

func decorateTestLigne(t *models.TestLigne) {
	if t.TestNonRealisable {
		t.Anomalies = []string{}
		return
	}
	t.Anomalies = DetectLigneAnomalies(*t)
}

// MaskCreator hides the creator of an anonymous phone test from everyone but
// super_admin.
func MaskCreator(t *models.TestLigne, viewer models.Role) {
	if t.IsAnonymous && !policy.Can(viewer, policy.ActionTestAnonymous) {
		t.CreatedBy = nil
	}
}

func (s *TestLigneService) List(ctx context.Context, scope policy.Scope, f models.TestFilter) ([]models.TestLigne, error) {
	b := applyTestFilter(testLigneSelect(scope), f, s.loc).OrderBy("t.date_test DESC")
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isInvalidText(err) {
			return []models.TestLigne{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	tests := []models.TestLigne{}
	for rows.Next() {
		t, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}

func (s *TestLigneService) Get(ctx context.Context, scope policy.Scope, id string) (*models.TestLigne, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query, args, err := testLigneSelect(scope).Where(sq.Eq{"t.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	t, err := s.scan(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *TestLigneService) prepare(t *models.TestLigne) error {
	NormalizeTestLigne(t)
	if t.DateTest.IsZero() {
		t.DateTest = time.Now()
	}
	t.DateTest = t.DateTest.In(s.loc)
	if err := ValidateTestLigne(*t); err != nil {
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

// Create stores a phone test and the alert it warrants in one transaction.
// Only super_admin may flag a test as anonymous; the flag is dropped otherwise.
func (s *TestLigneService) Create(ctx context.Context, scope policy.Scope, t models.TestLigne, creator models.User) (*models.TestLigne, *models.Alerte, error) {
	if err := s.prepare(&t); err != nil {
		return nil, nil, err
	}
	if !scope.Allows(t.ProgrammeID, t.PartenaireID) {
		return nil, nil, ErrForbidden
	}
	if !policy.Can(creator.Role, policy.ActionTestAnonymous) {
		t.IsAnonymous = false
	}

	t.ID = uuid.New().String()
	var alerte *models.Alerte

	candidate := DuplicateCandidate{
		PartenaireID: t.PartenaireID,
		ProgrammeID:  t.ProgrammeID,
		TestType:     models.TestTypeLigne,
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

		query, args, err := psql.Insert("tests_ligne").
			Columns("id", "programme_id", "partenaire_id", "date_test", "test_non_realisable",
				"numero_telephone", "messagerie_vocale_dediee", "decroche_dedie", "delai_attente",
				"nom_conseiller", "evaluation_accueil", "application_offre", "commentaire",
				"screenshots", "created_by", "is_anonymous").
			Values(t.ID, t.ProgrammeID, t.PartenaireID, toWallClock(t.DateTest, s.loc), t.TestNonRealisable,
				t.NumeroTelephone, t.MessagerieVocaleDediee, t.DecrocheDedie, t.DelaiAttente,
				t.NomConseiller, t.EvaluationAccueil, t.ApplicationOffre, t.Commentaire,
				pq.Array(t.Screenshots), nullString(&creator.ID), t.IsAnonymous).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if _, dup := isUniqueViolation(err); dup {
				return &DuplicateTestError{}
			}
			return fmt.Errorf("failed to insert test ligne: %w", err)
		}

		decorateTestLigne(&t)
		alerte = BuildTestAlerte(models.TestTypeLigne, t.ProgrammeID, t.PartenaireID, t.ID, t.TestNonRealisable, t.Commentaire, t.Anomalies)
		if alerte != nil {
			return insertAlerte(ctx, tx, alerte)
		}
		return nil
	})
	if err != nil {
		return nil, nil, withConflict(ctx, s.db, s.loc, candidate, err)
	}

	utils.LogTestAction("created", "TL", t.ID, creator.ID)

	created, err := s.Get(ctx, policy.Scope{All: true}, t.ID)
	if err != nil {
		return nil, nil, err
	}
	return created, alerte, nil
}

func (s *TestLigneService) Update(ctx context.Context, scope policy.Scope, id string, t models.TestLigne, editor models.User) (*models.TestLigne, *models.Alerte, error) {
	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}
	if t.DateTest.IsZero() {
		t.DateTest = current.DateTest
	}
	if !policy.Can(editor.Role, policy.ActionTestAnonymous) {
		t.IsAnonymous = current.IsAnonymous
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
		TestType:     models.TestTypeLigne,
		DateTest:     t.DateTest,
		ExcludeID:    id,
		Viewer:       editor.Role,
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

		query, args, err := psql.Update("tests_ligne").
			Set("programme_id", t.ProgrammeID).
			Set("partenaire_id", t.PartenaireID).
			Set("date_test", toWallClock(t.DateTest, s.loc)).
			Set("test_non_realisable", t.TestNonRealisable).
			Set("numero_telephone", t.NumeroTelephone).
			Set("messagerie_vocale_dediee", t.MessagerieVocaleDediee).
			Set("decroche_dedie", t.DecrocheDedie).
			Set("delai_attente", t.DelaiAttente).
			Set("nom_conseiller", t.NomConseiller).
			Set("evaluation_accueil", t.EvaluationAccueil).
			Set("application_offre", t.ApplicationOffre).
			Set("commentaire", t.Commentaire).
			Set("screenshots", pq.Array(t.Screenshots)).
			Set("is_anonymous", t.IsAnonymous).
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
			return fmt.Errorf("failed to update test ligne: %w", err)
		}

		alerte = BuildUpdateAlerte(current.TestNonRealisable, models.TestTypeLigne, t.ProgrammeID, t.PartenaireID, id, t.TestNonRealisable, t.Commentaire)
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

func (s *TestLigneService) Delete(ctx context.Context, scope policy.Scope, id string) error {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tests_ligne WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete test ligne: %w", err)
	}
	return nil
}
