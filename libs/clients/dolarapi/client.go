package dolarapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulseras/pulseras-go/libs/clients"
	appctx "github.com/pulseras/pulseras-go/libs/context"
	"github.com/pulseras/pulseras-go/libs/middleware"
)

//go:generate mockgen -source=client.go -destination=mock/mock.go -package=mock_dolarapi Client

const (
	// DefaultServer is the public dolarapi instance for Venezuela
	DefaultServer = "https://ve.dolarapi.com"
	// DefaultOfficialPath is the endpoint quoting the official rate
	DefaultOfficialPath = "/v1/dolares/oficial"
	// DefaultParallelPath is the endpoint quoting the parallel rate
	DefaultParallelPath = "/v1/dolares/paralelo"

	defaultTimeout = 5 * time.Second
)

// ErrNoRate - the provider answered without a usable rate
var ErrNoRate = errors.New("dolarapi: response carries no positive rate")

// Client abstracts over the underlying client
type Client interface {
	FetchOfficial(ctx context.Context) (*Quote, error)
	FetchParallel(ctx context.Context) (*Quote, error)
}

// Quote is the provider's answer for a single rate kind
type Quote struct {
	Fuente             string           `json:"fuente,omitempty"`
	Nombre             string           `json:"nombre,omitempty"`
	Promedio           *decimal.Decimal `json:"promedio"`
	PromedioReal       *decimal.Decimal `json:"promedio_real"`
	Venta              *decimal.Decimal `json:"venta"`
	FechaActualizacion string           `json:"fechaActualizacion,omitempty"`
}

// Rate returns the first positive value among promedio, promedio_real and venta
func (q *Quote) Rate() (decimal.Decimal, error) {
	if q == nil {
		return decimal.Zero, ErrNoRate
	}

	for _, v := range []*decimal.Decimal{q.Promedio, q.PromedioReal, q.Venta} {
		if v != nil && v.IsPositive() {
			return *v, nil
		}
	}

	return decimal.Zero, ErrNoRate
}

// HTTPClient wraps http.Client for interacting with the rate provider
type HTTPClient struct {
	client       *clients.SimpleHTTPClient
	officialPath string
	parallelPath string
}

// NewWithContext returns a new instrumented Client, retrieving its configuration from the context
func NewWithContext(ctx context.Context) (Client, error) {
	serverURL, err := appctx.GetStringFromContext(ctx, appctx.RatesServerCTXKey)
	if err != nil || serverURL == "" {
		serverURL = DefaultServer
	}

	officialPath, err := appctx.GetStringFromContext(ctx, appctx.RatesOfficialPathCTXKey)
	if err != nil || officialPath == "" {
		officialPath = DefaultOfficialPath
	}

	parallelPath, err := appctx.GetStringFromContext(ctx, appctx.RatesParallelPathCTXKey)
	if err != nil || parallelPath == "" {
		parallelPath = DefaultParallelPath
	}

	client, err := NewWithHTTPClient(serverURL, officialPath, parallelPath, &http.Client{
		Timeout:   defaultTimeout,
		Transport: middleware.InstrumentRoundTripper(http.DefaultTransport, "dolarapi"),
	})
	if err != nil {
		return nil, err
	}

	return NewClientWithPrometheus(client, "dolarapi_client"), nil
}

// NewWithHTTPClient returns a new HTTPClient using the provided http.Client
func NewWithHTTPClient(serverURL, officialPath, parallelPath string, hc *http.Client) (*HTTPClient, error) {
	client, err := clients.NewWithHTTPClient(serverURL, "", hc)
	if err != nil {
		return nil, fmt.Errorf("dolarapi: invalid server url: %w", err)
	}

	return &HTTPClient{
		client:       client,
		officialPath: officialPath,
		parallelPath: parallelPath,
	}, nil
}

// FetchOfficial fetches the official rate quote
func (c *HTTPClient) FetchOfficial(ctx context.Context) (*Quote, error) {
	return c.fetch(ctx, c.officialPath)
}

// FetchParallel fetches the parallel rate quote
func (c *HTTPClient) FetchParallel(ctx context.Context) (*Quote, error) {
	return c.fetch(ctx, c.parallelPath)
}

func (c *HTTPClient) fetch(ctx context.Context, path string) (*Quote, error) {
	req, err := c.client.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var body Quote
	if _, err := c.client.Do(ctx, req, &body); err != nil {
		return nil, err
	}

	return &body, nil
}
