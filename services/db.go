package services

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/qwertys/qwertys-api/policy"
)

// psql builds PostgreSQL statements ($1, $2, ...).
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// applyScope restricts a select to the rows the caller may see.
func applyScope(b sq.SelectBuilder, scope policy.Scope, programmeCol, partenaireCol string) sq.SelectBuilder {
	switch {
	case scope.All:
		return b
	case scope.PartenaireID != "":
		return b.Where(sq.Eq{partenaireCol: scope.PartenaireID})
	case len(scope.ProgrammeIDs) > 0:
		return b.Where(sq.Eq{programmeCol: scope.ProgrammeIDs})
	default:
		return b.Where("1 = 0")
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// wallClock re-labels a TIMESTAMP (without time zone) value read from the
// database with the application location. The stored value is already the
// local wall-clock time.
func wallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// toWallClock returns the local wall-clock time to store in a TIMESTAMP column.
func toWallClock(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
