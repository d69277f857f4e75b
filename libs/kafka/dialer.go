package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/linkedin/goavro"
	"github.com/segmentio/kafka-go"

	errorutils "github.com/pulseras/pulseras-go/libs/errors"
	"github.com/pulseras/pulseras-go/libs/logging"
)

// ErrCertificateExpired - the kafka client certificate has expired
var ErrCertificateExpired = errors.New("kafka client certificate has expired")

// MessageWriter is the part of kafka.Writer used by publishers
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dialer returns a TLS dialer when KAFKA_SSL_CERTIFICATE_LOCATION is set and a plain dialer otherwise.
func Dialer() (*kafka.Dialer, error) {
	if os.Getenv("KAFKA_SSL_CERTIFICATE_LOCATION") == "" {
		return &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		}, nil
	}
	return TLSDialer()
}

// TLSDialer creates a Kafka dialer over TLS. The function requires
// KAFKA_SSL_CERTIFICATE_LOCATION and KAFKA_SSL_KEY_LOCATION environment
// variables to be set, KAFKA_SSL_CA_LOCATION is optional.
func TLSDialer() (*kafka.Dialer, error) {
	caPEM, err := readFileFromEnvLoc("KAFKA_SSL_CA_LOCATION", false)
	if err != nil {
		return nil, err
	}

	certPEM, err := readFileFromEnvLoc("KAFKA_SSL_CERTIFICATE_LOCATION", true)
	if err != nil {
		return nil, err
	}

	encryptedKeyPEM, err := readFileFromEnvLoc("KAFKA_SSL_KEY_LOCATION", true)
	if err != nil {
		return nil, err
	}

	block, rest := pem.Decode(encryptedKeyPEM)
	if block == nil || len(rest) > 0 {
		return nil, errors.New("malformed data in KAFKA_SSL_KEY_LOCATION")
	}

	certificate, err := tls.X509KeyPair(certPEM, pem.EncodeToMemory(block))
	if err != nil {
		return nil, errorutils.Wrap(err, "Could not parse x509 keypair")
	}

	x509Cert, err := x509.ParseCertificate(certificate.Certificate[0])
	if err != nil {
		return nil, errorutils.Wrap(err, "Could not parse certificate")
	}

	if time.Now().After(x509Cert.NotAfter) {
		return nil, ErrCertificateExpired
	}

	config := &tls.Config{
		Certificates: []tls.Certificate{certificate},
		MinVersion:   tls.VersionTLS12,
	}

	if len(caPEM) > 0 {
		caCertPool := x509.NewCertPool()
		if ok := caCertPool.AppendCertsFromPEM(caPEM); !ok {
			return nil, errors.New("could not add custom CA from KAFKA_SSL_CA_LOCATION")
		}
		config.RootCAs = caCertPool
	}

	return &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
		TLS:       config,
	}, nil
}

func readFileFromEnvLoc(env string, required bool) ([]byte, error) {
	loc := os.Getenv(env)
	if len(loc) == 0 {
		if !required {
			return []byte{}, nil
		}
		return []byte{}, errors.New(env + " must be passed")
	}
	return os.ReadFile(loc)
}

// InitKafkaWriter - create a kafka writer given brokers and a topic
func InitKafkaWriter(ctx context.Context, brokers []string, topic string) (*kafka.Writer, error) {
	logger := logging.Logger(ctx, "kafka.InitKafkaWriter")

	if len(brokers) == 0 {
		return nil, errors.New("kafka writer: no brokers configured")
	}

	dialer, err := Dialer()
	if err != nil {
		return nil, fmt.Errorf("kafka writer: could not create dialer: %w", err)
	}

	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Balancer:     &kafka.Hash{},
		Dialer:       dialer,
		Topic:        topic,
		BatchTimeout: 100 * time.Millisecond,
		Logger:       kafka.LoggerFunc(logger.Printf),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error().Msgf(msg, args...)
		}),
	}), nil
}

// GenerateCodecs - create a map of codec name to the avro codec
func GenerateCodecs(codecs map[string]string) (map[string]*goavro.Codec, error) {
	res := make(map[string]*goavro.Codec, len(codecs))
	for k, v := range codecs {
		codec, err := goavro.NewCodec(v)
		if err != nil {
			return nil, fmt.Errorf("failed to generate codec %s: %w", k, err)
		}
		res[k] = codec
	}
	return res, nil
}
