// Package extraction is the boundary to the external text-extraction model.
// Model output is untrusted: every field is re-typed and validated here, and
// a response is either accepted whole or rejected whole.
package extraction

import "github.com/dvloznov/bookkeeper/internal/domain"

// Result is the outcome of parsing one model response: a value, or the list
// of field errors that caused the whole response to be rejected.
type Result[T any] struct {
	Value  T
	Errors []domain.FieldError
}

// OK reports whether parsing succeeded.
func (r Result[T]) OK() bool {
	return len(r.Errors) == 0
}

// Err returns nil on success. A rejected response is an external service
// failure whose cause is the ValidationError listing every bad field.
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]domain.FieldError, len(r.Errors))
	copy(errs, r.Errors)
	return &domain.ExternalServiceError{
		Service: "extraction",
		Err:     &domain.ValidationError{Errors: errs},
	}
}

// Unwrap returns the value and Err.
func (r Result[T]) Unwrap() (T, error) {
	if err := r.Err(); err != nil {
		var zero T
		return zero, err
	}
	return r.Value, nil
}

func reject[T any](errs []domain.FieldError) Result[T] {
	return Result[T]{Errors: errs}
}
