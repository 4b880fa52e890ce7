package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/qwertys/qwertys-api/models"
)

func testTable(t models.TestType) (string, error) {
	switch t {
	case models.TestTypeSite:
		return "tests_site", nil
	case models.TestTypeLigne:
		return "tests_ligne", nil
	}
	return "", fmt.Errorf("unknown test type %q", t)
}

// findMonthlyTests loads the tests of the candidate's pair stored in the
// candidate's calendar month. The month filter only narrows the rows: the
// decision itself is FindDuplicate's.
func findMonthlyTests(ctx context.Context, q queryer, loc *time.Location, c DuplicateCandidate) ([]models.ExistingTest, error) {
	table, err := testTable(c.TestType)
	if err != nil {
		return nil, err
	}
	if !validID(c.PartenaireID) || !validID(c.ProgrammeID) {
		return []models.ExistingTest{}, nil
	}

	start, end := MonthBounds(c.DateTest.In(loc))

	// site tests have no anonymous flag
	anonymous := "FALSE"
	if c.TestType == models.TestTypeLigne {
		anonymous = "t.is_anonymous"
	}

	query, args, err := psql.
		Select("t.id", "t.partenaire_id", "t.programme_id", "t.date_test", "pa.nom", "p.nom", "u.id", "u.nom", "u.prenom", anonymous).
		From(table + " t").
		Join("programmes p ON p.id = t.programme_id").
		Join("partenaires pa ON pa.id = t.partenaire_id").
		LeftJoin("users u ON u.id = t.created_by").
		Where(sq.Eq{"t.partenaire_id": c.PartenaireID, "t.programme_id": c.ProgrammeID}).
		Where(sq.GtOrEq{"t.date_test": toWallClock(start, loc)}).
		Where(sq.Lt{"t.date_test": toWallClock(end, loc)}).
		OrderBy("t.date_test").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := []models.ExistingTest{}
	for rows.Next() {
		var e models.ExistingTest
		var creatorID, creatorNom, creatorPrenom sql.NullString
		if err := rows.Scan(&e.ID, &e.PartenaireID, &e.ProgrammeID, &e.DateTest, &e.PartenaireNom, &e.ProgrammeNom, &creatorID, &creatorNom, &creatorPrenom, &e.IsAnonymous); err != nil {
			return nil, err
		}
		e.TestType = c.TestType
		e.DateTest = wallClock(e.DateTest, loc)
		if creatorID.Valid {
			e.CreatedBy = &models.UserSummary{ID: creatorID.String, Nom: creatorNom.String, Prenom: creatorPrenom.String}
		}
		existing = append(existing, e)
	}
	return existing, rows.Err()
}

// checkDuplicate runs the monthly rule against the database.
func checkDuplicate(ctx context.Context, q queryer, loc *time.Location, c DuplicateCandidate) (*models.DuplicateConflict, error) {
	existing, err := findMonthlyTests(ctx, q, loc, c)
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly tests: %w", err)
	}
	return FindDuplicate(c, existing), nil
}

// withConflict fills in the conflicting test of a duplicate reported by the
// unique index, which the aborted transaction could not look up. Other
// errors are returned unchanged.
func withConflict(ctx context.Context, q queryer, loc *time.Location, c DuplicateCandidate, err error) error {
	var dup *DuplicateTestError
	if !errors.As(err, &dup) || dup.Conflict != nil {
		return err
	}
	if conflict, lookupErr := checkDuplicate(ctx, q, loc, c); lookupErr == nil {
		dup.Conflict = conflict
	}
	return err
}

// DuplicateService answers the soft duplicate warning of the test forms.
type DuplicateService struct {
	db  *sql.DB
	loc *time.Location
}

func NewDuplicateService(db *sql.DB, loc *time.Location) *DuplicateService {
	return &DuplicateService{db: db, loc: loc}
}

// Check returns the conflicting test, or nil. A zero DateTest means now.
func (s *DuplicateService) Check(ctx context.Context, c DuplicateCandidate) (*models.DuplicateConflict, error) {
	if c.DateTest.IsZero() {
		c.DateTest = time.Now().In(s.loc)
	} else {
		c.DateTest = c.DateTest.In(s.loc)
	}
	return checkDuplicate(ctx, s.db, s.loc, c)
}
