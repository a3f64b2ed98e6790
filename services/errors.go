package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AuthError reports bad credentials, a duplicate registration or an invalid session.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// ValidationError reports pre-write input problems keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// StoreError wraps a failed read or write. Its cause is logged, never shown to the caller.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ForbiddenError is returned when the caller's role or relationship does not permit the action.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

// ConflictError is returned when the entity is not in a state that allows the action.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError is returned when the addressed entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// resultLabel classifies err for metrics.
func resultLabel(err error) string {
	var (
		authErr       *AuthError
		validationErr *ValidationError
		forbiddenErr  *ForbiddenError
		conflictErr   *ConflictError
		notFoundErr   *NotFoundError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.As(err, &forbiddenErr):
		return "forbidden"
	case errors.As(err, &conflictErr):
		return "conflict"
	case errors.As(err, &notFoundErr):
		return "not_found"
	}
	return "store_error"
}
