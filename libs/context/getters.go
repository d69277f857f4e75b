package context

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GetStringFromContext - given a CTXKey return the string value from the context if it exists
func GetStringFromContext(ctx context.Context, key CTXKey) (string, error) {
	v := ctx.Value(key)
	if v == nil {
		// value not on context
		return "", ErrNotInContext
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	// value not a string
	return "", ErrValueWrongType
}

// GetStringSliceFromContext - given a CTXKey return the []string value from the context if it exists
func GetStringSliceFromContext(ctx context.Context, key CTXKey) ([]string, error) {
	v := ctx.Value(key)
	if v == nil {
		return nil, ErrNotInContext
	}
	if s, ok := v.([]string); ok {
		return s, nil
	}
	return nil, ErrValueWrongType
}

// GetBoolFromContext - given a CTXKey return the bool value from the context if it exists
func GetBoolFromContext(ctx context.Context, key CTXKey) (bool, error) {
	v := ctx.Value(key)
	if v == nil {
		return false, ErrNotInContext
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, ErrValueWrongType
}

// GetIntFromContext - given a CTXKey return the int value from the context if it exists
func GetIntFromContext(ctx context.Context, key CTXKey) (int, error) {
	v := ctx.Value(key)
	if v == nil {
		return 0, ErrNotInContext
	}
	if i, ok := v.(int); ok {
		return i, nil
	}
	return 0, ErrValueWrongType
}

// GetInt64FromContext - given a CTXKey return the int64 value from the context if it exists
func GetInt64FromContext(ctx context.Context, key CTXKey) (int64, error) {
	v := ctx.Value(key)
	if v == nil {
		return 0, ErrNotInContext
	}
	switch i := v.(type) {
	case int64:
		return i, nil
	case int:
		return int64(i), nil
	}
	return 0, ErrValueWrongType
}

// GetDurationFromContext - given a CTXKey return the duration value from the context if it exists
func GetDurationFromContext(ctx context.Context, key CTXKey) (time.Duration, error) {
	v := ctx.Value(key)
	if v == nil {
		return time.Duration(0), ErrNotInContext
	}
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	return time.Duration(0), ErrValueWrongType
}

// GetLogLevelFromContext - given a CTXKey return the log level from the context, defaults to info
func GetLogLevelFromContext(ctx context.Context, key CTXKey) (zerolog.Level, error) {
	v := ctx.Value(key)
	if v == nil {
		return zerolog.InfoLevel, ErrNotInContext
	}
	if l, ok := v.(zerolog.Level); ok {
		return l, nil
	}
	return zerolog.InfoLevel, ErrValueWrongType
}

// GetLogger - return the logger value from the context if it exists
func GetLogger(ctx context.Context) (*zerolog.Logger, error) {
	v := ctx.Value(LoggerCTXKey)
	if v == nil {
		// value not on context
		return nil, ErrNotInContext
	}
	if l, ok := v.(*zerolog.Logger); ok {
		return l, nil
	}
	return nil, ErrValueWrongType
}
