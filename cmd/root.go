package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pulseras/pulseras-go/libs/clients"
	"github.com/pulseras/pulseras-go/libs/clients/dolarapi"
	appctx "github.com/pulseras/pulseras-go/libs/context"
	"github.com/pulseras/pulseras-go/libs/logging"
)

var (
	// RootCmd is the base command (what the binary is called)
	RootCmd = &cobra.Command{
		Use:   "pulseras-go",
		Short: "pulseras-go runs the pricing and settlement services of the shop",
	}
	ctx = context.Background()
)

// Execute - the main entrypoint for all subcommands in pulseras-go
func Execute(version, commit, buildTime string) {
	// setup context with logging, but first we need to setup the environment
	var logger *zerolog.Logger
	ctx = context.WithValue(ctx, appctx.EnvironmentCTXKey, viper.GetString("environment"))
	ctx = context.WithValue(ctx, appctx.DebugLoggingCTXKey, viper.GetBool("debug"))
	ctx, logger = logging.SetupLogger(ctx)

	ctx = context.WithValue(ctx, appctx.VersionCTXKey, version)
	ctx = context.WithValue(ctx, appctx.CommitCTXKey, commit)
	ctx = context.WithValue(ctx, appctx.BuildTimeCTXKey, buildTime)

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("./pulseras-go command encountered an error")
		os.Exit(1)
	}
}

func init() {
	// pprof-enabled - defaults to ""
	RootCmd.PersistentFlags().String("pprof-enabled", "",
		"pprof enablement")
	Must(viper.BindPFlag("pprof-enabled", RootCmd.PersistentFlags().Lookup("pprof-enabled")))
	Must(viper.BindEnv("pprof-enabled", "PPROF_ENABLED"))

	// env - defaults to local
	RootCmd.PersistentFlags().String("environment", "local",
		"the default environment")
	Must(viper.BindPFlag("environment", RootCmd.PersistentFlags().Lookup("environment")))
	Must(viper.BindEnv("environment", "ENV"))

	// debug logging - defaults to off
	RootCmd.PersistentFlags().Bool("debug", false, "turn on debug logging")
	Must(viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug")))
	Must(viper.BindEnv("debug", "DEBUG"))

	// sentry-dsn - error reporting is disabled when empty
	RootCmd.PersistentFlags().String("sentry-dsn", "",
		"the sentry dsn errors are reported to")
	Must(viper.BindPFlag("sentry-dsn", RootCmd.PersistentFlags().Lookup("sentry-dsn")))
	Must(viper.BindEnv("sentry-dsn", "SENTRY_DSN"))

	// rates-server - the exchange rate provider
	RootCmd.PersistentFlags().String("rates-server", dolarapi.DefaultServer,
		"the exchange rate provider address")
	Must(viper.BindPFlag("rates-server", RootCmd.PersistentFlags().Lookup("rates-server")))
	Must(viper.BindEnv("rates-server", "RATES_SERVER"))

	RootCmd.PersistentFlags().String("rates-official-path", dolarapi.DefaultOfficialPath,
		"the official rate endpoint of the provider")
	Must(viper.BindPFlag("rates-official-path", RootCmd.PersistentFlags().Lookup("rates-official-path")))
	Must(viper.BindEnv("rates-official-path", "RATES_OFFICIAL_PATH"))

	RootCmd.PersistentFlags().String("rates-parallel-path", dolarapi.DefaultParallelPath,
		"the parallel rate endpoint of the provider")
	Must(viper.BindPFlag("rates-parallel-path", RootCmd.PersistentFlags().Lookup("rates-parallel-path")))
	Must(viper.BindEnv("rates-parallel-path", "RATES_PARALLEL_PATH"))

	// rates-refresh-interval - how often the shared snapshot is refreshed
	RootCmd.PersistentFlags().Duration("rates-refresh-interval", 5*time.Minute,
		"the rate snapshot refresh cadence")
	Must(viper.BindPFlag("rates-refresh-interval", RootCmd.PersistentFlags().Lookup("rates-refresh-interval")))
	Must(viper.BindEnv("rates-refresh-interval", "RATES_REFRESH_INTERVAL"))

	// rates-redis-addr - in memory snapshot when empty
	RootCmd.PersistentFlags().String("rates-redis-addr", "",
		"the redis url of the shared rate snapshot")
	Must(viper.BindPFlag("rates-redis-addr", RootCmd.PersistentFlags().Lookup("rates-redis-addr")))
	Must(viper.BindEnv("rates-redis-addr", "RATES_REDIS_ADDR"))

	RootCmd.AddCommand(VersionCmd)
}

// VersionCmd is the command to get the code's version information
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "get the version of this binary",
	Run:   versionRun,
}

func versionRun(command *cobra.Command, args []string) {
	version, _ := appctx.GetStringFromContext(command.Context(), appctx.VersionCTXKey)
	commit, _ := appctx.GetStringFromContext(command.Context(), appctx.CommitCTXKey)
	buildTime, _ := appctx.GetStringFromContext(command.Context(), appctx.BuildTimeCTXKey)

	fmt.Printf("version: %s\ncommit: %s\nbuild time: %s\n",
		version, commit, buildTime,
	)
}

// Perform runs fn and exits non-zero when it fails.
//
// Failures from the outbound clients are logged with their http state.
func Perform(action string, fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		err := fn(cmd, args)
		if err != nil {
			logger, lerr := appctx.GetLogger(cmd.Context())
			if lerr != nil {
				_, logger = logging.SetupLogger(cmd.Context())
			}

			log := logger.Err(err).Str("action", action)
			if state, serr := clients.UnwrapHTTPState(err); serr == nil {
				log = log.Int("status", state.Status).
					Str("path", state.Path).
					Interface("data", state.Body)
			}
			log.Msg("failed")
		}
		<-time.After(10 * time.Millisecond)
		if err != nil {
			os.Exit(1)
		}
	}
}

// WithRatesConfig places the rate provider settings on ctx.
func WithRatesConfig(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, appctx.RatesServerCTXKey, viper.GetString("rates-server"))
	ctx = context.WithValue(ctx, appctx.RatesOfficialPathCTXKey, viper.GetString("rates-official-path"))
	ctx = context.WithValue(ctx, appctx.RatesParallelPathCTXKey, viper.GetString("rates-parallel-path"))
	ctx = context.WithValue(ctx, appctx.RatesRefreshIntervalCTXKey, viper.GetDuration("rates-refresh-interval"))
	ctx = context.WithValue(ctx, appctx.RatesRedisAddrCTXKey, viper.GetString("rates-redis-addr"))

	return ctx
}
