package cmd

import (
	"context"
	"time"

	"github.com/go-chi/chi"
	chiware "github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	rootcmd "github.com/pulseras/pulseras-go/cmd"
	appctx "github.com/pulseras/pulseras-go/libs/context"
	"github.com/pulseras/pulseras-go/libs/handlers"
	"github.com/pulseras/pulseras-go/libs/logging"
	"github.com/pulseras/pulseras-go/libs/middleware"
	srv "github.com/pulseras/pulseras-go/libs/service"
)

const (
	timeout = 10 * time.Second

	defaultRateLimitPerMin = 180
)

func init() {
	rootcmd.RootCmd.AddCommand(ServeCmd)

	// address - sets the address of the server to be started
	ServeCmd.PersistentFlags().String("address", ":8080",
		"the default address to bind to")
	rootcmd.Must(viper.BindPFlag("address", ServeCmd.PersistentFlags().Lookup("address")))
	rootcmd.Must(viper.BindEnv("address", "ADDR"))

	ServeCmd.PersistentFlags().Bool("enable-job-workers", true,
		"enable job workers (defaults true)")
	rootcmd.Must(viper.BindPFlag("enable-job-workers", ServeCmd.PersistentFlags().Lookup("enable-job-workers")))
	rootcmd.Must(viper.BindEnv("enable-job-workers", "ENABLE_JOB_WORKERS"))
}

// ServeCmd the serve command
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "entrypoint to serve a micro-service",
}

// SetupRouter sets up a router with the generic middlewares and the health-check route
func SetupRouter(ctx context.Context) *chi.Mux {
	logger, err := appctx.GetLogger(ctx)
	rootcmd.Must(err)

	version, _ := appctx.GetStringFromContext(ctx, appctx.VersionCTXKey)
	commit, _ := appctx.GetStringFromContext(ctx, appctx.CommitCTXKey)
	buildTime, _ := appctx.GetStringFromContext(ctx, appctx.BuildTimeCTXKey)

	r := chi.NewRouter()
	r.Use(
		chiware.RequestID,
		chiware.RealIP,
		chiware.Heartbeat("/"),
		chiware.Timeout(timeout),
		middleware.RequestIDTransfer)

	if viper.GetString("environment") == "production" {
		rl, err := appctx.GetIntFromContext(ctx, appctx.RateLimitPerMinuteCTXKey)
		if err != nil || rl <= 0 {
			rl = defaultRateLimitPerMin
		}

		r.Use(middleware.RateLimiter(ctx, rl))
	}

	// Also handles panic recovery
	r.Use(
		hlog.NewHandler(*logger),
		hlog.UserAgentHandler("user_agent"),
		hlog.RequestIDHandler("req_id", "Request-Id"),
		middleware.RequestLogger(logger))

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_time", buildTime).
		Str("address", viper.GetString("address")).
		Str("environment", viper.GetString("environment")).
		Msg("server starting")

	r.Get("/health-check", handlers.HealthCheckHandler(version, buildTime, commit, nil))

	return r
}

// SetupJobWorkers - setup job workers
func SetupJobWorkers(ctx context.Context, jobs []srv.Job) error {
	logger, err := appctx.GetLogger(ctx)
	if err != nil {
		ctx, logger = logging.SetupLogger(ctx)
	}

	if !viper.GetBool("enable-job-workers") {
		logger.Info().Msg("job workers disabled")
		return nil
	}

	for _, job := range jobs {
		for i := 0; i < job.Workers; i++ {
			logger.Debug().Msg("starting job worker")
			go srv.JobWorker(ctx, job.Func, job.Cadence)
		}
	}

	return nil
}
