// Package apperr classifies failures into the kinds the HTTP layer reports:
// validation, not found, conflict and internal.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Violations maps a request field to the reason it was rejected.
type Violations map[string]string

func (v Violations) Required(field, value string) {
	if value == "" {
		v[field] = "required"
	}
}

func (v Violations) Empty() bool { return len(v) == 0 }

type Error struct {
	Kind       Kind
	Code       string
	Err        error
	Violations Violations
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Validation(v Violations) *Error {
	return &Error{Kind: KindValidation, Code: "validation_failed", Err: errors.New("request validation failed"), Violations: v}
}

func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Code: entity + "_not_found", Err: fmt.Errorf("%s %v not found", entity, id)}
}

func Conflict(code string, err error) *Error {
	return &Error{Kind: KindConflict, Code: code, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Err: err}
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsUniqueViolation reports whether err came from a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// FromDB wraps a persistence error with the matching kind. Already
// classified errors pass through.
func FromDB(entity string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Code: entity + "_not_found", Err: err}
	case IsUniqueViolation(err):
		return &Error{Kind: KindConflict, Code: entity + "_conflict", Err: err}
	default:
		return &Error{Kind: KindInternal, Code: "internal_error", Err: fmt.Errorf("%s: %w", entity, err)}
	}
}
