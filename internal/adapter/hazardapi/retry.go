package hazardapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// errorClass buckets page fetch failures for backoff selection.
type errorClass int

const (
	classTransient errorClass = iota
	classRateLimitA            // 403-style throttle
	classRateLimitB            // 429-style throttle
)

func (c errorClass) String() string {
	switch c {
	case classRateLimitA:
		return "rate_limit_a"
	case classRateLimitB:
		return "rate_limit_b"
	default:
		return "transient"
	}
}

// statusError marks a non-200 upstream response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.code)
}

const (
	rateLimitABase = 3 * time.Second
	rateLimitBBase = 10 * time.Second
	transientDelay = 2 * time.Second
)

// retryPolicy is the per-page retry schedule: attempt budget, error
// classification, and a class-dependent backoff function.
type retryPolicy struct {
	maxAttempts int
	classify    func(error) errorClass
	delay       func(class errorClass, attempt int) time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts: 5,
		classify:    classifyError,
		delay:       backoffDelay,
	}
}

// classifyError maps an error to its backoff class. Timeouts, transport
// errors, and unexpected statuses all count as transient.
func classifyError(err error) errorClass {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusForbidden:
			return classRateLimitA
		case http.StatusTooManyRequests:
			return classRateLimitB
		}
	}
	return classTransient
}

// backoffDelay returns the wait after failed attempt n (counted from 1).
// Class A doubles from 3s (3, 6, 12, 24, 48), class B grows linearly from
// 10s (10, 20, 30, ...), everything else waits a flat 2s.
func backoffDelay(class errorClass, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch class {
	case classRateLimitA:
		return rateLimitABase << (attempt - 1)
	case classRateLimitB:
		return time.Duration(attempt) * rateLimitBBase
	default:
		return transientDelay
	}
}
