package strava

import (
	"errors"
	"fmt"
)

var (
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrFetchFailure          = errors.New("fetch failure")
)

// AuthError is returned when a token grant is rejected or cannot be
// completed. StatusCode is 0 for transport failures.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("authentication failure: %s", e.Err)
	}
	return fmt.Sprintf("authentication failure (status %d): %s", e.StatusCode, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthenticationFailure
}

// FetchError is returned when a data request fails. Page is set for list
// requests, ActivityID for per-activity requests.
type FetchError struct {
	Resource   string
	Page       int
	ActivityID int64
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Page > 0:
		return fmt.Sprintf("fetch %s page %d (status %d): %s", e.Resource, e.Page, e.StatusCode, e.Err)
	case e.ActivityID > 0:
		return fmt.Sprintf("fetch %s of activity %d (status %d): %s", e.Resource, e.ActivityID, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("fetch %s (status %d): %s", e.Resource, e.StatusCode, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailure
}
