// Package repository is the MySQL implementation of the engine's
// storage contract.  Row types stay private to the package; callers get
// model values.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/space-reservation/internal/apperror"
	"github.com/iliyamo/space-reservation/internal/engine"
)

// MySQL server error numbers the repository reacts to.
const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// codeIndex is the unique key on reservations.confirmation_code.
const codeIndex = "uq_reservations_code"

// classify maps driver errors onto errors the engine understands.
// Deadlocks and lock wait timeouts are retryable; a duplicate
// confirmation code becomes engine.ErrDuplicateCode.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case errDeadlock, errLockWaitTimeout:
		return apperror.Transient("storage contention, please retry", err)
	case errDuplicateEntry:
		if strings.Contains(me.Message, codeIndex) {
			return engine.ErrDuplicateCode
		}
		return apperror.Conflict("duplicate record")
	}
	return err
}
