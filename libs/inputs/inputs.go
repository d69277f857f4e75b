package inputs

import (
	"context"
	"fmt"

	errorutils "github.com/pulseras/pulseras-go/libs/errors"
)

// Decodable - an input that can populate itself from raw bytes
type Decodable interface {
	Decode(context.Context, []byte) error
}

// Validatable - an input that can check its own values
type Validatable interface {
	Validate(context.Context) error
}

// DecodeValidate - decode and validate for inputs
type DecodeValidate interface {
	Validatable
	Decodable
}

// DecodeAndValidate - perform decode and validate of input in one swipe
// NOTE both steps always run so every problem is reported at once
func DecodeAndValidate(ctx context.Context, v DecodeValidate, input []byte) error {
	var me = new(errorutils.MultiError)
	if err := v.Decode(ctx, input); err != nil {
		me.Append(fmt.Errorf("failed decoding: %w", err))
	}
	if err := v.Validate(ctx); err != nil {
		me.Append(fmt.Errorf("failed validation: %w", err))
	}
	if me.Count() > 0 {
		return me
	}
	return nil
}
