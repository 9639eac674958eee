// Package apperror defines the error taxonomy shared by the vault services and
// the provider adapters. Callers classify with errors.Is against the sentinel
// kinds; Error() only ever returns the caller-safe message.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrProviderAuth        = errors.New("provider rejected credentials")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrUnsupportedShape    = errors.New("unsupported input shape")
	ErrDecryption          = errors.New("decryption failed")
	ErrInternal            = errors.New("internal error")
)

type AppError struct {
	Kind    error  // one of the sentinels above
	Message string // safe to return to the caller
	Field   string // optional: input field at fault
	Cause   error  // server-side only
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func Validation(field, message string) *AppError {
	return &AppError{Kind: ErrValidation, Message: message, Field: field}
}

func NotFound(resource string) *AppError {
	return &AppError{Kind: ErrNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func Conflict(resource string, cause error) *AppError {
	return &AppError{Kind: ErrConflict, Message: fmt.Sprintf("%s already exists", resource), Cause: cause}
}

// ProviderAuth reports that the provider refused the token. The message never
// includes the token or the provider's raw response.
func ProviderAuth(provider, message string, cause error) *AppError {
	return &AppError{
		Kind:    ErrProviderAuth,
		Message: fmt.Sprintf("%s: %s", provider, message),
		Cause:   cause,
	}
}

func ProviderUnavailable(provider, message string, cause error) *AppError {
	return &AppError{
		Kind:    ErrProviderUnavailable,
		Message: fmt.Sprintf("%s: %s", provider, message),
		Cause:   cause,
	}
}

func UnsupportedProvider(provider string) *AppError {
	return &AppError{
		Kind:    ErrUnsupportedProvider,
		Message: fmt.Sprintf("provider %q is not supported", provider),
		Field:   "provider",
	}
}

func UnsupportedShape(provider string, v any) *AppError {
	return &AppError{
		Kind:    ErrUnsupportedShape,
		Message: fmt.Sprintf("%s: unsupported input shape %T", provider, v),
	}
}

func Decryption(cause error) *AppError {
	return &AppError{Kind: ErrDecryption, Message: "unable to decrypt secret", Cause: cause}
}

// Internal hides cause behind an opaque message.
func Internal(cause error) *AppError {
	return &AppError{Kind: ErrInternal, Message: "service unavailable", Cause: cause}
}
