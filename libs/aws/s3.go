package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awslogging "github.com/aws/smithy-go/logging"
	"github.com/rs/zerolog"

	appctx "github.com/pulseras/pulseras-go/libs/context"
)

// S3PutObjectAPI - interface to allow for a PutObject mock
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3DeleteObjectAPI - interface to allow for a DeleteObject mock
type S3DeleteObjectAPI interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ObjectAPI - the object operations of an s3 client
type S3ObjectAPI interface {
	S3PutObjectAPI
	S3DeleteObjectAPI
}

// NewS3Client creates a new s3 client, path style addressing is used when an endpoint override is configured
func NewS3Client(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := os.Getenv("AWS_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// BaseAWSConfig return an aws.Config with region and logger.
// Default region is us-east-1.
func BaseAWSConfig(ctx context.Context, logger *zerolog.Logger) (aws.Config, error) {
	region, ok := ctx.Value(appctx.AWSRegionCTXKey).(string)
	if !ok || len(region) == 0 {
		region = "us-east-1"
	}

	return config.LoadDefaultConfig(
		ctx,
		config.WithLogger(&appLogger{logger}),
		config.WithRegion(region),
	)
}

type appLogger struct {
	*zerolog.Logger
}

// Logf - implement smithy-go/logging.Logger
func (al *appLogger) Logf(classification awslogging.Classification, format string, v ...interface{}) {
	switch classification {
	case awslogging.Warn:
		al.Warn().Msg(fmt.Sprintf(format, v...))
	default:
		al.Debug().Msg(fmt.Sprintf(format, v...))
	}
}
