package entities

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPersistenceCorrupt marks stored data that could not be decoded.
	// Stores recover from it locally and never hand it to callers.
	ErrPersistenceCorrupt = errors.New("persisted data is corrupt")

	// ErrUnauthenticated means an authenticated action was attempted with no principal.
	ErrUnauthenticated = errors.New("not signed in")

	// ErrValidation is the parent of every locally rejected input.
	ErrValidation = errors.New("validation failed")

	ErrEmptyMessage    = fmt.Errorf("%w: message is empty", ErrValidation)
	ErrEmptyCart       = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrInvalidCriteria = fmt.Errorf("%w: invalid filter criteria", ErrValidation)
)

// RemoteError is a failed call to the storefront backend: either a non-2xx
// response (Status set) or a transport failure (Err set).
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	case e.Status != 0:
		if text := http.StatusText(e.Status); text != "" {
			return text
		}
		return fmt.Sprintf("HTTP status %d", e.Status)
	}
	return "remote call failed"
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Unauthorized reports whether the backend rejected the credential.
func (e *RemoteError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// DisplayMessage renders an error as text fit for the user.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		return remote.Error()
	case errors.Is(err, ErrUnauthenticated):
		return "Please log in to continue."
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty!"
	case errors.Is(err, ErrEmptyMessage):
		return "Please type a message."
	}
	return err.Error()
}
