package context

import "errors"

// CTXKey - a type for context keys
type CTXKey string

const (
	// DatastoreCTXKey - the context key for getting the datastore
	DatastoreCTXKey CTXKey = "datastore"
	// DatabaseTransactionCTXKey - context key for database transactions
	DatabaseTransactionCTXKey CTXKey = "db_tx"
	// DatabaseURLCTXKey - the context key for the database connection string
	DatabaseURLCTXKey CTXKey = "database_url"
	// DatabaseMigrateCTXKey - the context key for running migrations on startup
	DatabaseMigrateCTXKey CTXKey = "database_migrate"
	// PaginationOrderOptionsCTXKey - this is the pagination options context key
	PaginationOrderOptionsCTXKey CTXKey = "pagination_order_options"
	// EnvironmentCTXKey - the key used for service context
	EnvironmentCTXKey CTXKey = "environment"
	// DebugLoggingCTXKey - context key for debug logging
	DebugLoggingCTXKey CTXKey = "debug_logging"
	// LogLevelCTXKey - context key for application logging level
	LogLevelCTXKey CTXKey = "log_level"
	// LogWriterCTXKey - context key for an alternate log writer
	LogWriterCTXKey CTXKey = "log_writer"
	// LoggerCTXKey - context key for the application logger
	LoggerCTXKey CTXKey = "logger"

	// VersionCTXKey - context key for version of code
	VersionCTXKey CTXKey = "version"
	// CommitCTXKey - context key for the commit of the code
	CommitCTXKey CTXKey = "commit"
	// BuildTimeCTXKey - context key for the build time of code
	BuildTimeCTXKey CTXKey = "build_time"

	// RatesServerCTXKey - the context key for the exchange rate provider address
	RatesServerCTXKey CTXKey = "rates_server"
	// RatesOfficialPathCTXKey - the context key for the official rate endpoint path
	RatesOfficialPathCTXKey CTXKey = "rates_official_path"
	// RatesParallelPathCTXKey - the context key for the parallel rate endpoint path
	RatesParallelPathCTXKey CTXKey = "rates_parallel_path"
	// RatesRefreshIntervalCTXKey - the context key for the rate snapshot refresh cadence
	RatesRefreshIntervalCTXKey CTXKey = "rates_refresh_interval"
	// RatesRedisAddrCTXKey - the context key for the rate snapshot redis address
	RatesRedisAddrCTXKey CTXKey = "rates_redis_addr"

	// JWTSecretCTXKey - the context key for the actor token signing secret
	JWTSecretCTXKey CTXKey = "jwt_secret"
	// EvidenceBucketCTXKey - the context key for the proof of payment bucket
	EvidenceBucketCTXKey CTXKey = "evidence_bucket"
	// EvidenceDirCTXKey - the context key for the local proof of payment directory
	EvidenceDirCTXKey CTXKey = "evidence_dir"
	// EvidenceMaxBytesCTXKey - the context key for the proof of payment size limit
	EvidenceMaxBytesCTXKey CTXKey = "evidence_max_bytes"
	// AWSRegionCTXKey - the context key for the aws region
	AWSRegionCTXKey CTXKey = "aws_region"

	// KafkaBrokersCTXKey - context key for the kafka brokers
	KafkaBrokersCTXKey CTXKey = "kafka_brokers"
	// StatusEventsTopicCTXKey - context key for the transaction status topic
	StatusEventsTopicCTXKey CTXKey = "status_events_topic"

	// StrictTransitionsCTXKey - context key for enforcing the status graph
	StrictTransitionsCTXKey CTXKey = "strict_transitions"
	// CORSOriginsCTXKey - context key for the allowed cors origins
	CORSOriginsCTXKey CTXKey = "cors_origins"
	// RateLimitPerMinuteCTXKey - the context key for getting the rate limit
	RateLimitPerMinuteCTXKey CTXKey = "rate_limit_per_min"
	// RateLimiterBurstCTXKey - context key for allowing a bursting rate limiter
	RateLimiterBurstCTXKey CTXKey = "rate_limit_burst"
)

var (
	// ErrNotInContext - error you get when you ask for something not in the context.
	ErrNotInContext = errors.New("failed to get value from context")
	// ErrValueWrongType - error you get when you ask for something, and it is not the type you expected
	ErrValueWrongType = errors.New("context value of wrong type")
)
