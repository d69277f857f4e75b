package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/pulseras/pulseras-go/libs/clients/dolarapi"
	appctx "github.com/pulseras/pulseras-go/libs/context"
	errorutils "github.com/pulseras/pulseras-go/libs/errors"
	"github.com/pulseras/pulseras-go/libs/logging"
	srv "github.com/pulseras/pulseras-go/libs/service"
)

const (
	kindOfficial = "official"
	kindParallel = "parallel"

	defaultRefreshInterval = 5 * time.Minute
)

var (
	rateFallbackCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_fallback_total",
			Help: "Number of exchange rate lookups answered with the fallback value",
		},
		[]string{"kind", "reason"},
	)

	breakerStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rate_provider_breaker_state",
			Help: "Circuit breaker state per rate endpoint (0 closed, 1 half open, 2 open)",
		},
		[]string{"kind"},
	)
)

// Service acquires exchange rates and keeps the latest snapshot warm
type Service struct {
	jobs     []srv.Job
	client   dolarapi.Client
	store    SnapshotStore
	official *gobreaker.CircuitBreaker
	parallel *gobreaker.CircuitBreaker
	ttl      time.Duration
	now      func() time.Time
}

// NewService - create a new rates service
func NewService(client dolarapi.Client, store SnapshotStore, refresh time.Duration) *Service {
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}

	s := &Service{
		client:   client,
		store:    store,
		official: newBreaker(kindOfficial),
		parallel: newBreaker(kindParallel),
		// a missed refresh still leaves a usable snapshot
		ttl: 2 * refresh,
		now: time.Now,
	}

	s.jobs = []srv.Job{
		{
			Func:    s.Refresh,
			Cadence: refresh,
			Workers: 1,
		},
	}

	return s
}

func newBreaker(kind string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        kind,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// the caller walking away says nothing about the provider
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			breakerStateGauge.WithLabelValues(name).Set(float64(to))
		},
	})
}

// Jobs - Implement srv.JobService interface
func (s *Service) Jobs() []srv.Job {
	return s.jobs
}

// InitService creates a service using the passed context
func InitService(ctx context.Context) (context.Context, *Service, error) {
	logger := logging.Logger(ctx, "rates.InitService")

	client, err := dolarapi.NewWithContext(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize the rate provider client")
		return ctx, nil, fmt.Errorf("failed to initialize rate provider client: %w", err)
	}

	var store SnapshotStore = NewMemoryStore()

	if redisAddr, _ := appctx.GetStringFromContext(ctx, appctx.RatesRedisAddrCTXKey); redisAddr != "" {
		opts, err := redis.ParseURL(redisAddr)
		if err != nil {
			logger.Error().Err(err).Msg("failed to parse redis URL")
			return ctx, nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}

		rc := redis.NewClient(opts)
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Error().Err(err).Msg("failed to initialize the redis client")
			return ctx, nil, fmt.Errorf("failed to initialize redis client: %w", err)
		}

		store = NewRedisStore(rc)
	}

	refresh, err := appctx.GetDurationFromContext(ctx, appctx.RatesRefreshIntervalCTXKey)
	if err != nil {
		refresh = defaultRefreshInterval
	}

	decimal.MarshalJSONWithoutQuotes = true

	return ctx, NewService(client, store, refresh), nil
}

// GetOfficialRate returns the official rate, or OfficialFallback when it cannot be fetched
func (s *Service) GetOfficialRate(ctx context.Context) decimal.Decimal {
	return s.rate(ctx, kindOfficial, s.official, s.client.FetchOfficial, OfficialFallback)
}

// GetParallelRate returns the parallel rate, or ParallelFallback when it cannot be fetched
func (s *Service) GetParallelRate(ctx context.Context) decimal.Decimal {
	return s.rate(ctx, kindParallel, s.parallel, s.client.FetchParallel, ParallelFallback)
}

func (s *Service) rate(
	ctx context.Context,
	kind string,
	cb *gobreaker.CircuitBreaker,
	fetch func(context.Context) (*dolarapi.Quote, error),
	fallback decimal.Decimal,
) decimal.Decimal {
	result, err := cb.Execute(func() (interface{}, error) {
		quote, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return quote.Rate()
	})
	if err != nil {
		reason := "upstream"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "circuit_open"
		}
		rateFallbackCounter.WithLabelValues(kind, reason).Inc()

		ev := logging.Logger(ctx, "rates.rate").Warn().
			Err(err).
			Str("kind", kind).
			Str("reason", reason).
			Str("fallback", fallback.String())

		var eb *errorutils.ErrorBundle
		if errors.As(err, &eb) {
			ev = ev.Str("response", eb.DataToString())
		}

		ev.Msg("using fallback exchange rate")

		return fallback
	}

	return result.(decimal.Decimal)
}

// Fetch issues both rate lookups concurrently, each falling back on its own
func (s *Service) Fetch(ctx context.Context) ExchangeRates {
	result := FallbackRates(s.now().UTC())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Official = s.GetOfficialRate(gctx)
		return nil
	})
	g.Go(func() error {
		result.Parallel = s.GetParallelRate(gctx)
		return nil
	})
	// neither lookup returns an error
	_ = g.Wait()

	return result
}

// Latest returns the stored snapshot, fetching and storing a fresh one when none is stored
func (s *Service) Latest(ctx context.Context) ExchangeRates {
	logger := logging.Logger(ctx, "rates.Latest")

	snapshot, err := s.store.Get(ctx)
	if err == nil {
		return *snapshot
	}

	if !errors.Is(err, ErrSnapshotMissing) {
		logger.Warn().Err(err).Msg("failed to read rate snapshot")
	}

	result := s.Fetch(ctx)
	if err := s.store.Set(ctx, result, s.ttl); err != nil {
		logger.Warn().Err(err).Msg("failed to store rate snapshot")
	}

	return result
}

// Refresh fetches fresh rates into the snapshot store
func (s *Service) Refresh(ctx context.Context) (bool, error) {
	result := s.Fetch(ctx)
	if err := s.store.Set(ctx, result, s.ttl); err != nil {
		return true, fmt.Errorf("failed to refresh rate snapshot: %w", err)
	}
	return true, nil
}
