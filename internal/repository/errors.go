package repository

import (
	"errors"
	"fmt"
)

var (
	ErrPageUnreachable    = errors.New("page could not be fetched")
	ErrBadStatus          = errors.New("server returned a non-success status code")
	ErrOutputDirMissing   = errors.New("output directory does not exist")
	ErrContentRootMissing = errors.New("content root not found in page")
)

// StatusError reports a response whose status code was not 200.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.StatusCode, e.URL)
}

// Is lets errors.Is(err, ErrBadStatus) match any *StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrBadStatus
}
