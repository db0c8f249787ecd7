// Package errors provides the error types returned by dland's providers and stores.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrMissingAPIKey = errors.New("missing API key")
	ErrNetwork       = errors.New("network error")
	ErrUpstream      = errors.New("upstream error")
	ErrInvalidFormat = errors.New("invalid format")
	ErrNoContent     = errors.New("no content in response")
)

// maxBodyLen bounds the upstream body kept on an UpstreamError
const maxBodyLen = 4096

// AuthError represents missing or rejected credentials
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	prefix := "authentication failed"
	if e.Provider != "" {
		prefix = fmt.Sprintf("%s authentication failed", e.Provider)
	}
	if e.Message == "" {
		return prefix + ": check your API key"
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Is allows comparison with sentinel errors
func (e *AuthError) Is(target error) bool {
	if target == ErrAuthFailed {
		return true
	}
	_, ok := target.(*AuthError)
	return ok
}

// NewAuthError creates a new AuthError
func NewAuthError(provider, message string) *AuthError {
	return &AuthError{Provider: provider, Message: message}
}

// NewMissingKeyError reports a provider configured without an API key
func NewMissingKeyError(provider string) *AuthError {
	return &AuthError{Provider: provider, Message: ErrMissingAPIKey.Error()}
}

// NetworkError represents a transport failure before any response was received
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error at %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is allows comparison with sentinel errors
func (e *NetworkError) Is(target error) bool {
	if target == ErrNetwork {
		return true
	}
	_, ok := target.(*NetworkError)
	return ok
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(endpoint string, err error) *NetworkError {
	return &NetworkError{Endpoint: endpoint, Err: err}
}

// UpstreamError represents a non-success response from a provider.
// Body is truncated to a few kilobytes.
type UpstreamError struct {
	StatusCode int
	Endpoint   string
	Body       string
	Message    string
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error [%d] at %s: %s", e.StatusCode, e.Endpoint, msg)
	}
	return fmt.Sprintf("upstream error at %s: %s", e.Endpoint, msg)
}

// Is allows comparison with sentinel errors
func (e *UpstreamError) Is(target error) bool {
	if target == ErrUpstream {
		return true
	}
	_, ok := target.(*UpstreamError)
	return ok
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(statusCode int, endpoint, body string) *UpstreamError {
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}
	return &UpstreamError{StatusCode: statusCode, Endpoint: endpoint, Body: body}
}

// NewUpstreamMessageError reports an error object embedded in an otherwise
// successful response
func NewUpstreamMessageError(statusCode int, endpoint, message string) *UpstreamError {
	return &UpstreamError{StatusCode: statusCode, Endpoint: endpoint, Message: message}
}

// FormatError represents input that could not be decoded, such as an import file
type FormatError struct {
	Source  string
	Message string
	Err     error
}

func (e *FormatError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.Source == "" {
		return fmt.Sprintf("invalid format: %s", msg)
	}
	return fmt.Sprintf("invalid format in %s: %s", e.Source, msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is allows comparison with sentinel errors
func (e *FormatError) Is(target error) bool {
	if target == ErrInvalidFormat {
		return true
	}
	_, ok := target.(*FormatError)
	return ok
}

// NewFormatError creates a new FormatError
func NewFormatError(source, message string, err error) *FormatError {
	return &FormatError{Source: source, Message: message, Err: err}
}

// IsAuthError reports whether err is or wraps an AuthError
func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsNetworkError reports whether err is or wraps a NetworkError
func IsNetworkError(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

// IsUpstreamError reports whether err is or wraps an UpstreamError
func IsUpstreamError(err error) bool {
	var e *UpstreamError
	return errors.As(err, &e)
}

// IsFormatError reports whether err is or wraps a FormatError
func IsFormatError(err error) bool {
	var e *FormatError
	return errors.As(err, &e)
}

// GetHTTPStatus returns the upstream status code, or 0
func GetHTTPStatus(err error) int {
	var e *UpstreamError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// GetResponseBody returns the (truncated) upstream body, or ""
func GetResponseBody(err error) string {
	var e *UpstreamError
	if errors.As(err, &e) {
		return e.Body
	}
	return ""
}

// Details lists the extra lines worth showing under err: the upstream status
// and body when present, otherwise a hint for the failure class.
func Details(err error) []string {
	var lines []string
	if status := GetHTTPStatus(err); status > 0 {
		lines = append(lines, fmt.Sprintf("HTTP Status: %d", status))
	}
	if body := GetResponseBody(err); body != "" {
		return append(lines, body)
	}
	switch {
	case IsAuthError(err):
		lines = append(lines, "Hint: set the API key with 'dland config init' and edit ~/.dland/config.toml")
	case IsNetworkError(err):
		lines = append(lines, "Hint: check your internet connection and try again")
	case IsFormatError(err):
		lines = append(lines, "Hint: only files written by 'dland history export' can be imported")
	}
	return lines
}
