package context

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	should "github.com/stretchr/testify/assert"
)

func TestGetStringFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), RatesServerCTXKey, "https://ve.dolarapi.com")

	v, err := GetStringFromContext(ctx, RatesServerCTXKey)
	should.NoError(t, err)
	should.Equal(t, "https://ve.dolarapi.com", v)

	_, err = GetStringFromContext(ctx, JWTSecretCTXKey)
	should.ErrorIs(t, err, ErrNotInContext)

	ctx = context.WithValue(ctx, JWTSecretCTXKey, 42)
	_, err = GetStringFromContext(ctx, JWTSecretCTXKey)
	should.ErrorIs(t, err, ErrValueWrongType)
}

func TestGetDurationFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), RatesRefreshIntervalCTXKey, 5*time.Minute)

	d, err := GetDurationFromContext(ctx, RatesRefreshIntervalCTXKey)
	should.NoError(t, err)
	should.Equal(t, 5*time.Minute, d)

	ctx = context.WithValue(ctx, RatesRefreshIntervalCTXKey, "5m")
	_, err = GetDurationFromContext(ctx, RatesRefreshIntervalCTXKey)
	should.ErrorIs(t, err, ErrValueWrongType)
}

func TestGetInt64FromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), EvidenceMaxBytesCTXKey, 1024)

	v, err := GetInt64FromContext(ctx, EvidenceMaxBytesCTXKey)
	should.NoError(t, err)
	should.Equal(t, int64(1024), v)
}

func TestGetLogger(t *testing.T) {
	_, err := GetLogger(context.Background())
	should.ErrorIs(t, err, ErrNotInContext)

	l := zerolog.Nop()
	ctx := context.WithValue(context.Background(), LoggerCTXKey, &l)

	actual, err := GetLogger(ctx)
	should.NoError(t, err)
	should.Equal(t, &l, actual)
}
