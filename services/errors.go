package services

import (
	"errors"

	"github.com/lib/pq"

	"github.com/qwertys/qwertys-api/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateTest     = errors.New("duplicate test for this month")
	ErrInvalidTransition = errors.New("invalid alerte transition")
	ErrAlerteNotResolved = errors.New("alerte must be resolved before deletion")
	ErrSelfDelete        = errors.New("users cannot delete themselves")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrNotConfigured     = errors.New("service not configured")
)

// DuplicateTestError carries the conflicting test when it is known. It
// matches ErrDuplicateTest with errors.Is.
type DuplicateTestError struct {
	Conflict *models.DuplicateConflict
}

func (e *DuplicateTestError) Error() string {
	return DuplicateTestMessage
}

func (e *DuplicateTestError) Is(target error) bool {
	return target == ErrDuplicateTest
}

const (
	pqUniqueViolation = "23505"
	pqInvalidText     = "22P02"
)

func isUniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func isInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqInvalidText
}
