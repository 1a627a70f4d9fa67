package daemonapi

import (
	"errors"
	"fmt"

	"gemstone-testapp/internal/model"
)

// ErrUnsuccessful is returned when the daemon answered with success=false.
var ErrUnsuccessful = errors.New("daemon api reported failure")

// FetchError covers every way a fetch can fail before a usable envelope is
// available: transport errors, timeouts, malformed or unexpected JSON.
type FetchError struct {
	Endpoint string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

const (
	OutcomeOK           = "ok"
	OutcomeUnsuccessful = "unsuccessful"
	OutcomeError        = "error"
)

// Outcome classifies a fetch result for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnsuccessful):
		return OutcomeUnsuccessful
	default:
		return OutcomeError
	}
}

func unsuccessful(endpoint string, env model.Envelope) error {
	reason := env.Error
	if reason == "" {
		reason = env.Message
	}
	if reason == "" {
		return fmt.Errorf("%s: %w", endpoint, ErrUnsuccessful)
	}
	return fmt.Errorf("%s: %w: %s", endpoint, ErrUnsuccessful, reason)
}
