package models

import (
	"errors"
	"fmt"
)

// ErrCredential matches any *CredentialError via errors.Is.
var ErrCredential = errors.New("task backend credential unavailable")

// ErrDocumentNotFound is returned when the document store answers 404.
var ErrDocumentNotFound = errors.New("document not found")

// CredentialError means the task backend cannot be reached without a human
// re-authorizing the application. Retrying does not help.
type CredentialError struct {
	TokenFile string
	Reason    string
	Err       error
}

func (e *CredentialError) Error() string {
	msg := "task backend credential"
	if e.TokenFile != "" {
		msg += " (" + e.TokenFile + ")"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CredentialError) Unwrap() error { return e.Err }

func (e *CredentialError) Is(target error) bool {
	return target == ErrCredential
}

// UpstreamError is a non-success response from the document store or the
// task backend.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsCredentialError reports whether err requires re-authorization.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrCredential)
}
