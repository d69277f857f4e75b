package cmd

import (
	"context"
	"net/http"
	"time"

	// pprof imports
	_ "net/http/pprof"

	sentry "github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdutils "github.com/pulseras/pulseras-go/cmd"
	appctx "github.com/pulseras/pulseras-go/libs/context"
	"github.com/pulseras/pulseras-go/libs/middleware"
	"github.com/pulseras/pulseras-go/services/checkout"
	"github.com/pulseras/pulseras-go/services/cmd"
	"github.com/pulseras/pulseras-go/services/rates"
)

// RestRun - Main entrypoint of the REST subcommand
// This function takes a cobra command and starts up the
// checkout rest microservice.
func RestRun(command *cobra.Command, args []string) {
	ctx := command.Context()
	logger, err := appctx.GetLogger(ctx)
	cmdutils.Must(err)

	// add profiling flag to enable profiling routes
	if viper.GetString("pprof-enabled") != "" {
		// pprof attaches routes to default serve mux
		// host:6061/debug/pprof/
		go func() {
			logger.Error().Err(http.ListenAndServe(":6061", http.DefaultServeMux))
		}()
	}

	enabled, err := cmdutils.SetupSentry(ctx, viper.GetString("sentry-dsn"))
	if err != nil {
		logger.Panic().Err(err).Msg("unable to setup reporting!")
	}
	logger.Info().Bool("sentry", enabled).Msg("error reporting configured")

	secret := viper.GetString("jwt-secret")
	if secret == "" {
		logger.Fatal().Msg("jwt-secret is required")
	}

	// add our command line params to context
	ctx = context.WithValue(ctx, appctx.DatabaseURLCTXKey, viper.GetString("database-url"))
	ctx = context.WithValue(ctx, appctx.DatabaseMigrateCTXKey, viper.GetBool("migrate"))
	ctx = cmdutils.WithRatesConfig(ctx)
	ctx = context.WithValue(ctx, appctx.JWTSecretCTXKey, secret)
	ctx = context.WithValue(ctx, appctx.EvidenceBucketCTXKey, viper.GetString("evidence-bucket"))
	ctx = context.WithValue(ctx, appctx.EvidenceDirCTXKey, viper.GetString("evidence-dir"))
	ctx = context.WithValue(ctx, appctx.EvidenceMaxBytesCTXKey, viper.GetInt64("evidence-max-bytes"))
	ctx = context.WithValue(ctx, appctx.AWSRegionCTXKey, viper.GetString("aws-region"))
	ctx = context.WithValue(ctx, appctx.KafkaBrokersCTXKey, viper.GetStringSlice("kafka-brokers"))
	ctx = context.WithValue(ctx, appctx.StatusEventsTopicCTXKey, viper.GetString("status-events-topic"))
	ctx = context.WithValue(ctx, appctx.StrictTransitionsCTXKey, viper.GetBool("strict-transitions"))
	ctx = context.WithValue(ctx, appctx.CORSOriginsCTXKey, viper.GetStringSlice("cors-origins"))
	ctx = context.WithValue(ctx, appctx.RateLimitPerMinuteCTXKey, viper.GetInt("rate-limit-per-min"))
	ctx = context.WithValue(ctx, appctx.RateLimiterBurstCTXKey, viper.GetInt("rate-limit-burst"))

	ctx, rateService, err := rates.InitService(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize rates service")
	}

	checkoutService, err := checkout.InitService(ctx, rateService)
	if err != nil {
		sentry.CaptureException(err)
		logger.Fatal().Err(err).Msg("failed to initialize checkout service")
	}

	origins := viper.GetStringSlice("cors-origins")
	h := checkout.NewHandler(checkoutService, viper.GetInt64("evidence-max-bytes"))

	// setup generic middlewares and routes for health-check and metrics
	r := cmd.SetupRouter(ctx)

	r.Mount("/v1/rates", rates.Router(rateService))
	r.Mount("/payments", checkout.PaymentsRouter(h, origins))
	r.Mount("/transactions", checkout.TransactionsRouter(h, []byte(secret), origins))

	if err := cmd.SetupJobWorkers(ctx, rateService.Jobs()); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize job workers")
	}

	// make sure exceptions go to sentry
	defer sentry.Flush(time.Second * 2)

	go func() {
		err := http.ListenAndServe(":9090", middleware.Metrics())
		if err != nil {
			sentry.CaptureException(err)
			logger.Panic().Err(err).Msg("metrics HTTP server start failed!")
		}
	}()

	// setup server, and run
	srv := http.Server{
		Addr:         viper.GetString("address"),
		Handler:      chi.ServerBaseContext(ctx, r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	if err = srv.ListenAndServe(); err != nil {
		sentry.CaptureException(err)
		logger.Fatal().Err(err).Msg("HTTP server start failed!")
	}
}
