package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFailedClientRequest - failed to perform client request
	ErrFailedClientRequest = errors.New("failed to perform api request")
	// ErrFailedBodyRead - failed to read body
	ErrFailedBodyRead = errors.New("failed to read the response body")
	// ErrFailedBodyUnmarshal - failed to decode body
	ErrFailedBodyUnmarshal = errors.New("failed to unmarshal the response body")
	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")
	// ErrInternalServerError internal server error
	ErrInternalServerError = errors.New("server encountered an internal error and was unable to complete the request")
	// ErrBadRequest bad request error
	ErrBadRequest = errors.New("error bad request")
)

// ErrorBundle creates a new response error
type ErrorBundle struct {
	cause   error
	message string
	data    interface{}
}

// New creates a new response error
func New(cause error, message string, data interface{}) error {
	return &ErrorBundle{
		cause,
		message,
		data,
	}
}

// Data from error origin
func (e ErrorBundle) Data() interface{} {
	return e.data
}

// Cause returns the associated cause
func (e ErrorBundle) Cause() error {
	return e.cause
}

// Unwrap returns the associated cause
func (e ErrorBundle) Unwrap() error {
	return e.cause
}

// Error turns into an error
func (e ErrorBundle) Error() string {
	return e.message
}

// DataToString returns string representation of data
func (e ErrorBundle) DataToString() string {
	if e.data == nil {
		return "no error bundle data"
	}
	b, err := json.Marshal(e.data)
	if err != nil {
		return fmt.Sprintf("error retrieving error bundle data %s", err.Error())
	}
	return string(b)
}

// Wrap wraps an error
func Wrap(cause error, message string) error {
	return &ErrorBundle{
		cause:   cause,
		message: message,
		data:    nil,
	}
}

// MultiError - allows for multiple errors, not necessarily chained
type MultiError struct {
	Errs []error
}

// Append - append new errors to this multierror
func (me *MultiError) Append(err ...error) {
	for _, e := range err {
		if e != nil {
			me.Errs = append(me.Errs, e)
		}
	}
}

// Count - get the number of errors contained herein
func (me *MultiError) Count() int {
	return len(me.Errs)
}

// Unwrap - exposes every contained error to errors.Is and errors.As
func (me *MultiError) Unwrap() []error {
	return me.Errs
}

// Error - implement Error interface
func (me *MultiError) Error() string {
	msgs := make([]string, 0, len(me.Errs))
	for _, err := range me.Errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
