package translator

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	ErrFileNotFound ErrorType = iota
	ErrFileRead
	ErrFileWrite
	ErrParse
	ErrValidation
	ErrConfig
	ErrProvidersExhausted
	ErrUnknown
)

// TranslationError is the typed error the translation pipeline
// produces. ProviderID attributes the failure to the provider that
// caused it, and Retryable tells callers whether resubmitting the
// same request could succeed.
type TranslationError struct {
	Type       ErrorType
	ProviderID string
	Retryable  bool
	Message    string
	Context    map[string]any
	Cause      error
}

func NewError(errorType ErrorType, message string) *TranslationError {
	return &TranslationError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *TranslationError {
	return &TranslationError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *TranslationError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if e.ProviderID != "" {
		parts = append(parts, fmt.Sprintf("provider: %s", e.ProviderID))
	}

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *TranslationError) Unwrap() error {
	return e.Cause
}

func (e *TranslationError) WithContext(key string, value any) *TranslationError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrFileRead:
		return "FileRead"
	case ErrFileWrite:
		return "FileWrite"
	case ErrParse:
		return "Parse"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrProvidersExhausted:
		return "ProvidersExhausted"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var translationErr *TranslationError
	if errors.As(err, &translationErr) {
		return translationErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *TranslationError {
	return NewErrorWithCause(errorType, message, err)
}
