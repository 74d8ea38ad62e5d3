package auditclient

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBaseURL = errors.New("base url is empty")
	ErrBadResponse  = errors.New("unexpected response")
)

// APIError is a non-2xx reply from the audit server.
type APIError struct {
	StatusCode        int
	Message           string `json:"error"`
	Code              string `json:"code"`
	MissingDependency string `json:"missing_dependency"`
}

func (e *APIError) Error() string {
	switch {
	case e.MissingDependency != "":
		return fmt.Sprintf("audit server returned %d (%s): %s: %s", e.StatusCode, e.Code, e.Message, e.MissingDependency)
	case e.Code != "":
		return fmt.Sprintf("audit server returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("audit server returned %d: %s", e.StatusCode, e.Message)
	}
}
