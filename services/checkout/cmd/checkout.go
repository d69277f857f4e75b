package cmd

import (
	// pprof imports
	_ "net/http/pprof"

	"github.com/spf13/cobra"

	cmdutils "github.com/pulseras/pulseras-go/cmd"
	"github.com/pulseras/pulseras-go/services/checkout/evidence"
	"github.com/pulseras/pulseras-go/services/checkout/events"
	"github.com/pulseras/pulseras-go/services/cmd"
)

var (
	checkoutCmd = &cobra.Command{
		Use:   "checkout",
		Short: "provides checkout micro-service entrypoint",
	}

	restCmd = &cobra.Command{
		Use:   "rest",
		Short: "provides REST api services",
		Run:   RestRun,
	}
)

func init() {
	checkoutCmd.AddCommand(restCmd)

	// add this command as a serve subcommand
	cmd.ServeCmd.AddCommand(checkoutCmd)

	fb := cmdutils.NewFlagBuilder(checkoutCmd)

	fb.Flag().String("database-url", "",
		"the postgres connection string of the checkout datastore").
		Env("DATABASE_URL").
		Bind("database-url")

	fb.Flag().Bool("migrate", true,
		"run the datastore migrations on startup").
		Env("DATABASE_MIGRATE").
		Bind("migrate")

	fb.Flag().String("jwt-secret", "",
		"the HS256 secret actor tokens are signed with").
		Env("JWT_SECRET").
		Bind("jwt-secret")

	fb.Flag().String("evidence-bucket", "",
		"the s3 bucket proof of payment is stored in").
		Env("EVIDENCE_BUCKET").
		Bind("evidence-bucket")

	fb.Flag().String("evidence-dir", "uploads",
		"the local directory proof of payment is stored in when no bucket is set").
		Env("EVIDENCE_DIR").
		Bind("evidence-dir")

	fb.Flag().Int64("evidence-max-bytes", evidence.DefaultMaxBytes,
		"the size limit of a proof of payment image").
		Env("EVIDENCE_MAX_BYTES").
		Bind("evidence-max-bytes")

	fb.Flag().String("aws-region", "",
		"the aws region of the evidence bucket").
		Env("AWS_REGION").
		Bind("aws-region")

	fb.Flag().StringSlice("kafka-brokers", nil,
		"kafka brokers status events are published to, disabled when empty").
		Env("KAFKA_BROKERS").
		Bind("kafka-brokers")

	fb.Flag().String("status-events-topic", events.DefaultTopic,
		"the topic of transaction status events").
		Env("STATUS_EVENTS_TOPIC").
		Bind("status-events-topic")

	fb.Flag().Bool("strict-transitions", false,
		"reject status changes outside of the status graph").
		Env("STRICT_TRANSITIONS").
		Bind("strict-transitions")

	fb.Flag().StringSlice("cors-origins", []string{"*"},
		"the allowed cors origins").
		Env("CORS_ORIGINS").
		Bind("cors-origins")

	fb.Flag().Int("rate-limit-per-min", 180,
		"rate limit per minute value").
		Env("RATE_LIMIT_PER_MIN").
		Bind("rate-limit-per-min")

	fb.Flag().Int("rate-limit-burst", 0,
		"burst allowance of the rate limiter").
		Env("RATE_LIMIT_BURST").
		Bind("rate-limit-burst")
}
