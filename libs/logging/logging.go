package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"

	appctx "github.com/pulseras/pulseras-go/libs/context"
)

var (
	// we would rather the service keeps serving than blocks on log writing
	// contention, this counts how many lines were dropped by the diode writer
	droppedLogTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dropped_log_events_total",
			Help: "A counter for the number of dropped log messages",
		},
	)
	// Writer is the process wide log destination set up by SetupLogger
	Writer io.WriteCloser
)

// NopCloser wraps w with a no-op Close
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func init() {
	prometheus.MustRegister(droppedLogTotal)
}

// SetupLogger - helper to setup a logger and associate with context
func SetupLogger(ctx context.Context) (context.Context, *zerolog.Logger) {
	writer, ok := ctx.Value(appctx.LogWriterCTXKey).(io.Writer)

	env, err := appctx.GetStringFromContext(ctx, appctx.EnvironmentCTXKey)
	if err != nil {
		// if not in context, default to local
		env = "local"
	}

	// defaults to info level
	level, _ := appctx.GetLogLevelFromContext(ctx, appctx.LogLevelCTXKey)

	switch {
	case ok:
		Writer = NopCloser(writer)
	case env != "local":
		// ring buffer, drops messages that cannot be written in time
		Writer = diode.NewWriter(os.Stdout, 1000, 20*time.Millisecond, func(missed int) {
			droppedLogTotal.Add(float64(missed))
		})
	default:
		Writer = NopCloser(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	l := zerolog.New(Writer).With().Timestamp().Logger().Level(level)

	if debug, ok := ctx.Value(appctx.DebugLoggingCTXKey).(bool); ok && debug {
		l = l.Level(zerolog.DebugLevel)
	}

	ctx = context.WithValue(l.WithContext(ctx), appctx.LoggerCTXKey, &l)
	return ctx, &l
}

// Logger - get a module scoped logger from the context
func Logger(ctx context.Context, prefix string) *zerolog.Logger {
	l, err := appctx.GetLogger(ctx)
	if err != nil {
		_, l = SetupLogger(ctx)
	}
	sl := l.With().Str("module", prefix).Logger()
	return &sl
}
