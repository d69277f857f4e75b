package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	appctx "github.com/pulseras/pulseras-go/libs/context"
	"github.com/pulseras/pulseras-go/libs/errors"
	"github.com/pulseras/pulseras-go/libs/requestutils"
)

const defaultTimeout = 10 * time.Second

// regular expression mapped to the replacement
var redactHeaders = map[*regexp.Regexp][]byte{
	regexp.MustCompile(`(?i)authorization: (?i)basic.+\n`):  []byte("Authorization: Basic <token>\n"),
	regexp.MustCompile(`(?i)authorization: (?i)bearer.+\n`): []byte("Authorization: Bearer <token>\n"),
}

// RedactSensitiveHeaders from http request dumps
func RedactSensitiveHeaders(corpus []byte) []byte {
	for k, v := range redactHeaders {
		corpus = k.ReplaceAll(corpus, v)
	}
	return corpus
}

var concurrentClientRequests = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "concurrent_client_requests",
		Help: "Gauge that holds the current number of client requests",
	},
	[]string{
		"host",
		"method",
	},
)

func init() {
	prometheus.MustRegister(concurrentClientRequests)
}

// SimpleHTTPClient wraps http.Client for making simple token authorized requests
type SimpleHTTPClient struct {
	BaseURL   *url.URL
	AuthToken string

	client  *http.Client
	timeout time.Duration
}

// New returns a new SimpleHTTPClient
func New(serverURL string, authToken string) (*SimpleHTTPClient, error) {
	return NewWithHTTPClient(serverURL, authToken, &http.Client{
		Timeout: defaultTimeout,
	})
}

// NewWithHTTPClient returns a new SimpleHTTPClient, using the provided http.Client
func NewWithHTTPClient(serverURL string, authToken string, client *http.Client) (*SimpleHTTPClient, error) {
	baseURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}

	timeout := client.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &SimpleHTTPClient{
		BaseURL:   baseURL,
		AuthToken: authToken,
		client:    client,
		timeout:   timeout,
	}, nil
}

// NewRequest creates a request relative to BaseURL, JSON encoding the body passed
func (c *SimpleHTTPClient) NewRequest(
	ctx context.Context,
	method,
	path string,
	body interface{},
) (*http.Request, error) {
	resolvedURL := c.BaseURL.ResolveReference(&url.URL{Path: path})

	var buf io.ReadWriter
	if body != nil && method != http.MethodGet {
		buf = new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, NewHTTPError(errors.Wrap(err, ErrUnableToEncodeBody), resolvedURL.String(), "request", 0, body)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, resolvedURL.String(), buf)
	if err != nil {
		status := http.StatusBadRequest
		switch err.(type) {
		case url.EscapeError:
			err = errors.Wrap(err, ErrUnableToEscapeURL)
		case url.InvalidHostError:
			err = errors.Wrap(err, ErrInvalidHost)
		default:
			err = errors.Wrap(err, ErrMalformedRequest)
		}
		return nil, NewHTTPError(err, resolvedURL.String(), "request", status, body)
	}

	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Add("content-type", "application/json")
	}
	requestutils.SetRequestID(ctx, req)
	if c.AuthToken != "" {
		req.Header.Set("authorization", "Bearer "+c.AuthToken)
	}
	return req, nil
}

func (c *SimpleHTTPClient) do(ctx context.Context, req *http.Request, v interface{}) (*http.Response, error) {
	labels := prometheus.Labels{"host": req.URL.Host, "method": req.Method}
	concurrentClientRequests.With(labels).Inc()
	defer concurrentClientRequests.With(labels).Dec()

	logger := zerolog.Ctx(ctx)
	debug, _ := ctx.Value(appctx.DebugLoggingCTXKey).(bool)

	if debug {
		if dump, err := httputil.DumpRequestOut(req, true); err == nil {
			logger.Debug().Str("type", "http.Request").Msg(string(RedactSensitiveHeaders(dump)))
		}
	}

	reqCtx, cancel := context.WithTimeout(req.Context(), c.timeout)
	defer cancel()

	resp, err := c.client.Do(req.WithContext(reqCtx))
	if err != nil {
		return nil, err
	}

	bodyBytes, err := requestutils.Read(ctx, resp.Body)
	if err != nil {
		return resp, errors.Wrap(err, ErrUnableToDecode)
	}
	resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if debug {
		logger.Debug().Str("type", "http.Response").Int("status", resp.StatusCode).Str("body", string(bodyBytes)).Msg("response")
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if v != nil {
			if err := json.Unmarshal(bodyBytes, v); err != nil {
				return resp, errors.Wrap(err, ErrUnableToDecode)
			}
		}

		return resp, nil
	}

	logger.Warn().
		Int("response_status", resp.StatusCode).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Str("body", string(bodyBytes)).
		Msg("failed http client call")

	return resp, errors.Wrap(fmt.Errorf("unexpected status %d", resp.StatusCode), ErrProtocolError)
}

// RespErrData - error data for http response
type RespErrData struct {
	ResponseHeaders interface{}
	Body            interface{}
}

// Do the specified http request, decoding the JSON result into v
func (c *SimpleHTTPClient) Do(ctx context.Context, req *http.Request, v interface{}) (*http.Response, error) {
	resp, err := c.do(ctx, req, v)
	if err != nil {
		if resp != nil {
			b, _ := io.ReadAll(resp.Body)
			resp.Body = io.NopCloser(bytes.NewBuffer(b))

			errorData := RespErrData{
				ResponseHeaders: resp.Header,
				Body:            string(b),
			}

			return resp, NewHTTPError(err, req.URL.String(), "response", resp.StatusCode, errorData)
		}
		return nil, fmt.Errorf("failed c.do, no response body: %w", err)
	}
	return resp, nil
}
