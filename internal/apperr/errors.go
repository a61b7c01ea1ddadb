// Package apperr defines the coded error taxonomy shared by the store,
// the ingestion pipeline and the outer surfaces (CLI, HTTP, MCP).
package apperr

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeValidationInvalidInput Code = "validation.invalid_input"
	CodeValidationInvalidDate  Code = "validation.date.invalid_format"

	CodeStorageDatabaseFailure Code = "storage.database.failure"
	CodeStorageCommitFailure   Code = "storage.commit.failure"

	CodeEntryNotFound  Code = "store.entry.not_found"
	CodeEntityNotFound Code = "store.entity.not_found"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// New creates an error carrying code and fields.
func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

// Wrap annotates err with code, msg and fields. A nil err stays nil.
func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

// CodeOf returns the deepest code in err's chain, or "" for uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}
	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}
	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

// FieldsOf returns the merged structured context of err's chain.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

// HasCode reports whether err's deepest code is code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "validation.")
}

// IsStorage reports whether err came from the database layer.
func IsStorage(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "storage.")
}

// IsNotFound reports whether err names a missing entry or entity.
func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

// HTTPStatus maps err onto a response status.
func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func reason(code Code) string {
	s := string(code)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

func flatten(fields []Attr) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}
