// Package datastore error handling helpers for database operations
package datastore

import (
	"strings"

	"gorm.io/gorm"

	"github.com/fridgecat/fridgecat-go/internal/errors"
)

// InsertOutcome tags the result of an insert attempt so callers can branch
// on the outcome instead of matching driver error strings.
type InsertOutcome int

const (
	// OutcomeCreated means a new row was written.
	OutcomeCreated InsertOutcome = iota
	// OutcomeConflict means a row with the same unique key already exists.
	OutcomeConflict
	// OutcomeMissingReference means a referenced foreign row is not committed.
	OutcomeMissingReference
	// OutcomeError means the insert failed for an unrelated reason.
	OutcomeError
)

// classifyInsertError maps a gorm Create error to an InsertOutcome.
// TranslateError handles the common cases; the string fallbacks cover
// driver versions that predate translation.
func classifyInsertError(err error) InsertOutcome {
	if err == nil {
		return OutcomeCreated
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return OutcomeConflict
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return OutcomeMissingReference
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), // sqlite
		strings.Contains(msg, "Error 1062"): // mysql duplicate entry
		return OutcomeConflict
	case strings.Contains(msg, "FOREIGN KEY constraint failed"), // sqlite
		strings.Contains(msg, "Error 1452"): // mysql fk violation
		return OutcomeMissingReference
	default:
		return OutcomeError
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// dbError creates a properly categorized database error with context
func dbError(err error, operation, priority string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}
