package cmd

import (
	"context"
	"fmt"

	sentry "github.com/getsentry/sentry-go"

	appctx "github.com/pulseras/pulseras-go/libs/context"
)

// SetupSentry initializes error reporting when dsn is set.
//
// It reports whether reporting is enabled.
func SetupSentry(ctx context.Context, dsn string) (bool, error) {
	if dsn == "" {
		return false, nil
	}

	commit, _ := appctx.GetStringFromContext(ctx, appctx.CommitCTXKey)
	buildTime, _ := appctx.GetStringFromContext(ctx, appctx.BuildTimeCTXKey)
	env, _ := appctx.GetStringFromContext(ctx, appctx.EnvironmentCTXKey)

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Release:     fmt.Sprintf("pulseras-go@%s-%s", commit, buildTime),
		Environment: env,
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return true, nil
}
