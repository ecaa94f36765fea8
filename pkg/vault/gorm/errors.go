package gorm

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// SQLSTATE codes that abort a close+insert sequence.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// translate maps PostgreSQL errors onto vault sentinels. A unique violation
// becomes onUnique: ErrDuplicateActiveHub for hub indexes,
// ErrConcurrentModification for satellite and link backstops.
func translate(err error, onUnique error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", onUnique, pqErr.Constraint)
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %s", vault.ErrConcurrentModification, pqErr.Message)
	}
	return err
}
