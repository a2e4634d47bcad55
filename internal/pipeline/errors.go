package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores when no record matches a lookup.
// Handlers use it to tell a missing record from a store failure.
var ErrNotFound = errors.New("not found")

// FetchError indicates a non-success HTTP status while reaching an
// external read endpoint. Job-fatal when it escapes a pipeline stage.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// NotFoundError indicates no matching page or post for a slug.
type NotFoundError struct {
	Slug string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no content found for slug %q", e.Slug)
}

// AuthError indicates a credential precondition failure or rejection by an
// external system. Raised before any network call when the key is missing.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Reason
}

// TimeoutError indicates the generation call exceeded its hard budget. It
// is distinct from provider-side HTTP errors.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("generation timed out after %s", e.Budget)
}

// ParseError indicates generator output could not be recovered as the
// required JSON shape.
type ParseError struct {
	Missing string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("parse generator output: missing required field %q", e.Missing)
	}
	return "parse generator output: " + e.Reason
}
