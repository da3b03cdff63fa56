package apiclient

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure.
type Kind string

const (
	// KindTransient covers network errors, timeouts and 5xx responses.
	// Retried, then surfaced if retries are exhausted.
	KindTransient Kind = "transient"
	// KindAuth covers 401/403. Terminal, never retried.
	KindAuth Kind = "auth"
	// KindQuota covers 429. Retried with backoff, then surfaced.
	KindQuota Kind = "quota"
	// KindNotFound covers 404. Terminal, never retried.
	KindNotFound Kind = "not_found"
	// KindUnknown covers everything else (other 4xx).
	KindUnknown Kind = "unknown"
)

// Error is the typed failure surfaced by the client. Callers classify with
// the Is* predicates rather than inspecting status codes.
type Error struct {
	Kind       Kind
	StatusCode int
	API        string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.API, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.API, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func kindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsAuth reports whether err is an authentication/authorization failure.
func IsAuth(err error) bool { return kindOf(err) == KindAuth }

// IsQuota reports whether err is a rate-limit/quota failure.
func IsQuota(err error) bool { return kindOf(err) == KindQuota }

// IsNotFound reports whether err is a terminal not-found failure.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

// IsTransient reports whether err is a transient failure that exhausted
// its retries.
func IsTransient(err error) bool { return kindOf(err) == KindTransient }

func classifyStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindQuota
	case status >= 500 && status < 600:
		return KindTransient
	default:
		return KindUnknown
	}
}

func retryable(kind Kind) bool {
	return kind == KindTransient || kind == KindQuota
}
