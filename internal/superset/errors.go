package superset

import (
	"fmt"
	"net/http"
)

// Step identifies which stage of the import pipeline failed.
type Step string

const (
	StepAuth      Step = "auth"
	StepCSRF      Step = "csrf"
	StepPasswords Step = "passwords"
	StepImport    Step = "import"
)

// StepError is returned by every pipeline stage. Use errors.As to recover
// the failed step and errors.As again on Cause for an *APIError.
type StepError struct {
	Step  Step
	Cause error
}

func (e *StepError) Error() string {
	switch e.Step {
	case StepAuth:
		return fmt.Sprintf("superset login failed: %v", e.Cause)
	case StepCSRF:
		return fmt.Sprintf("fetching CSRF token failed: %v", e.Cause)
	case StepPasswords:
		return fmt.Sprintf("building database passwords failed: %v", e.Cause)
	case StepImport:
		return fmt.Sprintf("importing dashboard failed: %v", e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// APIError describes a non-success HTTP response from Superset.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	// Message is the "message" field of the response body, if any.
	Message string
}

func (e *APIError) Error() string {
	status := fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, status)
}

// Temporary reports whether retrying the request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func stepErr(step Step, err error) error {
	return &StepError{Step: step, Cause: err}
}
