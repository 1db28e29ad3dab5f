package feed

import "errors"

// ErrorKind classifies a failed fetch. The set is closed; everything the
// remote side can do wrong maps onto one of these four.
type ErrorKind string

const (
	// ErrAuth means credentials are invalid or expired. Not retried;
	// the user has to re-authenticate.
	ErrAuth ErrorKind = "auth"
	// ErrRateLimit means the server asked us to back off. RetryAfter
	// carries the wait in seconds when the server provided one.
	ErrRateLimit ErrorKind = "rate_limit"
	// ErrNetwork means the request never got a usable response. Safe to
	// retry manually.
	ErrNetwork ErrorKind = "network"
	// ErrUnknown is the fallback for anything else. Handled like ErrNetwork.
	ErrUnknown ErrorKind = "unknown"
)

// APIError is the failure half of every fetch result.
type APIError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter int // seconds; only meaningful for ErrRateLimit, 0 = unknown wait
}

func (e *APIError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// AsAPIError extracts an *APIError from err, wrapping foreign errors as
// ErrUnknown so the engine always has a classified error to expose.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Kind: ErrUnknown, Message: err.Error()}
}
