package trusthire

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnexpectedShape is wrapped by TransportError when a response body is valid
// JSON but not the object the endpoint is documented to return.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// TransportError is returned when a call to the verification service fails:
// the request could not be sent, the status was not 2xx, or the body could not
// be decoded.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Status     string
	// Detail is the reason the service gave for a non-2xx status, if any.
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Op, e.URL)
	if e.Status != "" {
		fmt.Fprintf(&b, ": bad status: %s", e.Status)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError reports a submission that was rejected before any request
// was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}
