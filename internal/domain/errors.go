package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation       = errors.New("validation failed")
	ErrAlreadyLinked    = errors.New("transaction already linked")
	ErrProtectedAccount = errors.New("account is protected")
	ErrNotFound         = errors.New("not found")
	ErrExternalService  = errors.New("external service failure")
)

// FieldError pinpoints one invalid field so a UI can highlight it.
type FieldError struct {
	Entity  string `json:"entity"`
	ID      string `json:"id,omitempty"`
	LineID  string `json:"lineId,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	var b strings.Builder
	b.WriteString(f.Entity)
	if f.ID != "" {
		b.WriteString(" " + f.ID)
	}
	if f.LineID != "" {
		b.WriteString(" line " + f.LineID)
	}
	b.WriteString(": " + f.Field + ": " + f.Message)
	return b.String()
}

// ValidationError carries the structured list of field failures.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, f := range e.Errors {
		parts[i] = f.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add appends a field failure.
func (e *ValidationError) Add(f FieldError) {
	e.Errors = append(e.Errors, f)
}

// OrNil returns e when it holds failures, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// MinimumLinesError is returned when removing a line would leave an entry with
// fewer than the minimum number of lines.
type MinimumLinesError struct {
	EntryID string
	Minimum int
}

func (e *MinimumLinesError) Error() string {
	return fmt.Sprintf("entry %s must keep at least %d lines", e.EntryID, e.Minimum)
}

func (e *MinimumLinesError) Is(target error) bool { return target == ErrValidation }

// AlreadyLinkedError is returned when a transaction already has an active link.
type AlreadyLinkedError struct {
	TransactionID string
	EntryID       string
}

func (e *AlreadyLinkedError) Error() string {
	return fmt.Sprintf("transaction %s is already linked to entry %s", e.TransactionID, e.EntryID)
}

func (e *AlreadyLinkedError) Is(target error) bool { return target == ErrAlreadyLinked }

// ProtectedAccountError is returned when deleting the suspense account.
type ProtectedAccountError struct {
	AccountID string
	Code      string
}

func (e *ProtectedAccountError) Error() string {
	return fmt.Sprintf("account %s (code %s) cannot be deleted", e.AccountID, e.Code)
}

func (e *ProtectedAccountError) Is(target error) bool { return target == ErrProtectedAccount }

// NotFoundError is returned when an id no longer exists.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ExternalServiceError wraps failures of the extraction service or the
// persistence store, including malformed responses.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }
