package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsUniqueViolation reports whether err is a unique-constraint violation.
// GORM translates postgres and sqlite duplicates into ErrDuplicatedKey; the
// message check narrows the hit to a specific constraint or column when the
// caller names one, since a table can carry several unique indexes.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	duplicated := errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key value") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
	if !duplicated {
		return false
	}
	if constraintName == "" {
		return true
	}
	return strings.Contains(err.Error(), constraintName)
}
