package model

import (
	"fmt"
	"net/http"
)

// ValidationError is raised locally before any network attempt.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// CredentialError means live mode was requested without a full key pair.
type CredentialError struct {
	Missing string
}

func (e *CredentialError) Error() string {
	return "live mode requires credentials: missing " + e.Missing
}

// NetworkError wraps transport failures talking to the exchange.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExchangeError is a non-2xx exchange response.
type ExchangeError struct {
	Status  int
	Code    int
	Message string
}

func (e *ExchangeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exchange error: HTTP %d %s", e.Status, http.StatusText(e.Status))
	}
	if e.Code != 0 {
		return fmt.Sprintf("exchange error %d: %s", e.Code, e.Message)
	}
	return "exchange error: " + e.Message
}
