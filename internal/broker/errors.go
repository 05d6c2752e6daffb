package broker

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the broker REST API.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("broker: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("broker: http %d", e.StatusCode)
}

// criticalStatus lists the HTTP statuses that count toward the circuit
// breaker: auth failures and broker-side outages. Client errors like 404
// and 422 are routine (unknown order, rejected params) and never trip it.
var criticalStatus = map[int]bool{
	401: true,
	403: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// IsCritical reports whether err should count toward tripping the
// circuit breaker. Classification is a pure function of the HTTP status;
// transport-level failures carry no status and stay non-critical, so a
// flaky network cannot latch the breaker.
func IsCritical(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return criticalStatus[apiErr.StatusCode]
	}
	return false
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
