package apierror

import "net/http"

type (
	// An APIError represents the error format rendered by notecloud server.
	APIError struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if apierr, ok := err.(*APIError); ok {
		return apierr.HTTPCode
	}
	return http.StatusInternalServerError
}

// New returns a new APIError with the given message.
func New(message string) *APIError {
	return &APIError{HTTPCode: http.StatusBadRequest, FieldError: err{Message: message}}
}

// NewWithTagCode returns a new APIError with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *APIError {
	return &APIError{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// Error implements error interface.
func (e *APIError) Error() string {
	return e.FieldError.Message
}
