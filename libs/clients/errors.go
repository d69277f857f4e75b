package clients

import (
	"errors"

	errorutils "github.com/pulseras/pulseras-go/libs/errors"
)

var (
	// ErrUnableToDecode unable to decode body
	ErrUnableToDecode = "unable to decode response"
	// ErrProtocolError the error was within the data that went into the endpoint
	ErrProtocolError = "protocol error"
	// ErrUnableToEscapeURL the url could nto be escaped
	ErrUnableToEscapeURL = "unable to escape url"
	// ErrInvalidHost the host was invalid
	ErrInvalidHost = "invalid host"
	// ErrMalformedRequest the request was malformed
	ErrMalformedRequest = "malformed request"
	// ErrUnableToEncodeBody body could not be decoded
	ErrUnableToEncodeBody = "unable to encode body"

	errNoHTTPState = errors.New("error does not carry http state")
)

// HTTPState captures the state of the response to be read by lower fns in the stack
type HTTPState struct {
	Status int
	Path   string
	Body   interface{}
}

// NewHTTPError creates a new errors.ErrorBundle with an HTTPState wrapping the status, path and v.
func NewHTTPError(err error, path, message string, status int, v interface{}) error {
	return errorutils.New(err, message, HTTPState{
		Status: status,
		Path:   path,
		Body:   v,
	})
}

// UnwrapHTTPState returns the HTTPState carried by an error created with NewHTTPError
func UnwrapHTTPState(err error) (*HTTPState, error) {
	var bundle *errorutils.ErrorBundle
	if !errors.As(err, &bundle) {
		return nil, errNoHTTPState
	}

	state, ok := bundle.Data().(HTTPState)
	if !ok {
		return nil, errNoHTTPState
	}

	return &state, nil
}
