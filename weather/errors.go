package weather

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLocationNotFound means the postal code is invalid or unknown to the provider
	ErrLocationNotFound = errors.New("location not found")

	// ErrProviderUnavailable covers timeouts, 5xx responses and rate limiting
	ErrProviderUnavailable = errors.New("weather provider unavailable")

	// ErrParseFailure is a malformed provider response, handled as unavailable
	ErrParseFailure = fmt.Errorf("%w: malformed response", ErrProviderUnavailable)
)

// FormatExamples are shown to users whose postal code could not be resolved
var FormatExamples = []string{
	"US: 90210 or 90210-1234",
	"UK: SW1A 1AA",
	"Canada: K1A 0B1",
	"Australia: 2000",
}

// LocationError reports a user-correctable postal code problem
type LocationError struct {
	PostalCode string
	Reason     string
	Examples   []string
}

func newLocationError(postalCode, reason string) *LocationError {
	return &LocationError{
		PostalCode: postalCode,
		Reason:     reason,
		Examples:   FormatExamples,
	}
}

func (e *LocationError) Error() string {
	msg := fmt.Sprintf("location not found for %q", e.PostalCode)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.Examples) > 0 {
		msg += " (examples: " + strings.Join(e.Examples, "; ") + ")"
	}
	return msg
}

func (e *LocationError) Unwrap() error {
	return ErrLocationNotFound
}
