package ptr

import (
	"time"
)

// FromString returns pointer to string
func FromString(s string) *string {
	return &s
}

// FromNonEmptyString returns nil for the empty string and a pointer otherwise
func FromNonEmptyString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FromTime - get the address of the time
func FromTime(t time.Time) *time.Time {
	return &t
}
