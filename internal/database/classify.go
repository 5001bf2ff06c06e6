package database

import (
	"errors"
	"fmt"
	"strings"
)

// ConstraintClass is the stable taxonomy for persistence-constraint
// failures. The pipeline logs a remediation hint per class but never tries
// to resolve one automatically.
type ConstraintClass int

const (
	ClassUnknown ConstraintClass = iota
	ClassUniqueViolation
	ClassNotNullViolation
	ClassForeignKeyViolation
	ClassPermissionDenied
)

func (c ConstraintClass) String() string {
	switch c {
	case ClassUniqueViolation:
		return "unique-violation"
	case ClassNotNullViolation:
		return "not-null-violation"
	case ClassForeignKeyViolation:
		return "foreign-key-violation"
	case ClassPermissionDenied:
		return "permission-denied"
	default:
		return "unknown"
	}
}

// Hint returns the human-readable remediation hint for the class.
func (c ConstraintClass) Hint() string {
	switch c {
	case ClassUniqueViolation:
		return "a record with this content_id already exists; re-run to update it"
	case ClassNotNullViolation:
		return "a required column was empty; check the source's normalizer output"
	case ClassForeignKeyViolation:
		return "the referenced row is missing; run migrations before crawling"
	case ClassPermissionDenied:
		return "the database file is not writable; check its path and permissions"
	default:
		return "unexpected database error; re-run with --verbose for details"
	}
}

// ConstraintError wraps a classified persistence failure.
type ConstraintError struct {
	Class ConstraintClass
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %v (%s)", e.Class, e.Err, e.Class.Hint())
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the constraint class from an error chain.
func ClassOf(err error) ConstraintClass {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassUnknown
}

// classifyError maps sqlite driver errors onto the taxonomy. modernc/sqlite
// surfaces constraint details in the message text.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint"):
		return &ConstraintError{Class: ClassUniqueViolation, Err: err}
	case strings.Contains(msg, "NOT NULL constraint"):
		return &ConstraintError{Class: ClassNotNullViolation, Err: err}
	case strings.Contains(msg, "FOREIGN KEY constraint"):
		return &ConstraintError{Class: ClassForeignKeyViolation, Err: err}
	case strings.Contains(msg, "readonly"), strings.Contains(msg, "permission denied"):
		return &ConstraintError{Class: ClassPermissionDenied, Err: err}
	default:
		return err
	}
}
