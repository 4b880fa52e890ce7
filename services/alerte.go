package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

const PointNonRealisable = "Test non réalisable"

// BuildTestAlerte derives the alert to open for a freshly created test:
// non réalisable tests always get one, réalisable tests only when the
// detector found anomalies. It returns nil when no alert is needed.
func BuildTestAlerte(testType models.TestType, programmeID, partenaireID, testID string, nonRealisable bool, commentaire string, anomalies []string) *models.Alerte {
	label := "site"
	if testType == models.TestTypeLigne {
		label = "ligne"
	}

	a := &models.Alerte{
		ProgrammeID:  programmeID,
		PartenaireID: partenaireID,
		TypeTest:     testType.Code(),
		Statut:       models.AlerteOuvert,
	}
	if testID != "" {
		id := testID
		a.TestID = &id
	}

	switch {
	case nonRealisable:
		a.Description = fmt.Sprintf("Test %s non réalisable : %s", label, strings.TrimSpace(commentaire))
		a.PointsAttention = []string{PointNonRealisable}
	case len(anomalies) > 0:
		a.Description = fmt.Sprintf("Anomalies détectées lors du test %s", label)
		a.PointsAttention = append([]string{}, anomalies...)
	default:
		return nil
	}
	return a
}

// BuildUpdateAlerte derives the alert opened by an edit. Only an edit that
// turns a réalisable test into a non réalisable one opens an alert;
// anomalies changed on an already stored test do not.
func BuildUpdateAlerte(wasNonRealisable bool, testType models.TestType, programmeID, partenaireID, testID string, nonRealisable bool, commentaire string) *models.Alerte {
	if wasNonRealisable || !nonRealisable {
		return nil
	}
	return BuildTestAlerte(testType, programmeID, partenaireID, testID, true, commentaire, nil)
}

// ============================================================================
// ALERTE SERVICE
// ============================================================================

type AlerteService struct {
	db *sql.DB
}

func NewAlerteService(db *sql.DB) *AlerteService {
	return &AlerteService{db: db}
}

var alerteColumns = []string{
	"a.id", "a.programme_id", "a.partenaire_id", "p.nom", "pa.nom", "a.type_test", "a.description",
	"a.statut", "a.points_attention", "a.test_id", "a.created_at", "a.resolved_at", "a.resolved_by",
}

func alerteSelect(scope policy.Scope) sq.SelectBuilder {
	b := psql.Select(alerteColumns...).
		From("alertes a").
		Join("programmes p ON p.id = a.programme_id").
		Join("partenaires pa ON pa.id = a.partenaire_id")
	return applyScope(b, scope, "a.programme_id", "a.partenaire_id")
}

func scanAlerte(row rowScanner) (*models.Alerte, error) {
	var a models.Alerte
	var testID, resolvedBy sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.ProgrammeID, &a.PartenaireID, &a.ProgrammeNom, &a.PartenaireNom, &a.TypeTest, &a.Description,
		&a.Statut, pq.Array(&a.PointsAttention), &testID, &a.CreatedAt, &resolvedAt, &resolvedBy,
	)
	if err != nil {
		return nil, err
	}
	a.PointsAttention = nonNil(a.PointsAttention)
	a.TestID = stringPtr(testID)
	a.ResolvedBy = stringPtr(resolvedBy)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return &a, nil
}

func (s *AlerteService) List(ctx context.Context, scope policy.Scope, f models.AlerteFilter) ([]models.Alerte, error) {
	b := alerteSelect(scope).OrderBy("a.created_at DESC")
	if f.Statut != "" {
		b = b.Where(sq.Eq{"a.statut": f.Statut})
	}
	if f.ProgrammeID != "" {
		b = b.Where(sq.Eq{"a.programme_id": f.ProgrammeID})
	}
	if f.PartenaireID != "" {
		b = b.Where(sq.Eq{"a.partenaire_id": f.PartenaireID})
	}
	if f.TypeTest != "" {
		b = b.Where(sq.Eq{"a.type_test": f.TypeTest})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isInvalidText(err) {
			return []models.Alerte{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	alertes := []models.Alerte{}
	for rows.Next() {
		a, err := scanAlerte(rows)
		if err != nil {
			return nil, err
		}
		alertes = append(alertes, *a)
	}
	return alertes, rows.Err()
}

func (s *AlerteService) Get(ctx context.Context, scope policy.Scope, id string) (*models.Alerte, error) {
	return s.get(ctx, s.db, scope, id, false)
}

func (s *AlerteService) get(ctx context.Context, q queryer, scope policy.Scope, id string, forUpdate bool) (*models.Alerte, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	b := alerteSelect(scope).Where(sq.Eq{"a.id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE OF a")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanAlerte(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// Create stores an alert opened by hand (or by the client for a test).
func (s *AlerteService) Create(ctx context.Context, scope policy.Scope, a models.Alerte) (*models.Alerte, error) {
	if !scope.Allows(a.ProgrammeID, a.PartenaireID) {
		return nil, ErrNotFound
	}
	testType, ok := models.ParseTestType(a.TypeTest)
	if !ok {
		return nil, invalid("type_test", "Type de test invalide (TS ou TL)")
	}
	a.TypeTest = testType.Code()
	if strings.TrimSpace(a.Description) == "" {
		return nil, invalid("description", "La description est obligatoire")
	}
	if a.TestID != nil && !validID(*a.TestID) {
		return nil, invalid("test_id", "Identifiant de test invalide")
	}
	if err := insertAlerte(ctx, s.db, &a); err != nil {
		return nil, err
	}
	return s.Get(ctx, scope, a.ID)
}

// insertAlerte stores a new ouvert alert, inside the caller's transaction when q is a *sql.Tx.
func insertAlerte(ctx context.Context, q queryer, a *models.Alerte) error {
	a.ID = uuid.New().String()
	a.Statut = models.AlerteOuvert
	a.CreatedAt = time.Now()
	a.PointsAttention = nonNil(a.PointsAttention)

	query, args, err := psql.Insert("alertes").
		Columns("id", "programme_id", "partenaire_id", "type_test", "description", "statut", "points_attention", "test_id", "created_at").
		Values(a.ID, a.ProgrammeID, a.PartenaireID, a.TypeTest, a.Description, a.Statut, pq.Array(a.PointsAttention), nullString(a.TestID), a.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert alerte: %w", err)
	}
	return nil
}

// Resolve moves an alert from ouvert to resolu. Any other transition is
// rejected with ErrInvalidTransition.
func (s *AlerteService) Resolve(ctx context.Context, scope policy.Scope, id string, statut models.AlerteStatut, resolvedBy string) (*models.Alerte, error) {
	if statut != models.AlerteResolu {
		return nil, ErrInvalidTransition
	}

	var resolved *models.Alerte
	err := utils.WithTransaction(s.db, func(tx *sql.Tx) error {
		current, err := s.get(ctx, tx, scope, id, true)
		if err != nil {
			return err
		}
		if err := CanTransition(current.Statut, statut); err != nil {
			return err
		}

		now := time.Now()
		query, args, err := psql.Update("alertes").
			Set("statut", models.AlerteResolu).
			Set("resolved_at", now).
			Set("resolved_by", nullString(&resolvedBy)).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		current.Statut = models.AlerteResolu
		current.ResolvedAt = &now
		if resolvedBy != "" {
			current.ResolvedBy = &resolvedBy
		}
		resolved = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// CanTransition encodes the alert lifecycle: ouvert -> resolu only.
func CanTransition(from, to models.AlerteStatut) error {
	if from == models.AlerteOuvert && to == models.AlerteResolu {
		return nil
	}
	return ErrInvalidTransition
}

// Delete removes a resolved alert. Open alerts cannot be deleted.
func (s *AlerteService) Delete(ctx context.Context, scope policy.Scope, id string) (*models.Alerte, error) {
	var deleted *models.Alerte
	err := utils.WithTransaction(s.db, func(tx *sql.Tx) error {
		current, err := s.get(ctx, tx, scope, id, true)
		if err != nil {
			return err
		}
		if current.Statut != models.AlerteResolu {
			return ErrAlerteNotResolved
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM alertes WHERE id = $1`, id); err != nil {
			return err
		}
		deleted = current
		return nil
	})
	return deleted, err
}

// CountOpen returns the number of open alerts visible in scope.
func (s *AlerteService) CountOpen(ctx context.Context, scope policy.Scope) (int, error) {
	b := applyScope(psql.Select("COUNT(*)").From("alertes a"), scope, "a.programme_id", "a.partenaire_id").
		Where(sq.Eq{"a.statut": models.AlerteOuvert})
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}
