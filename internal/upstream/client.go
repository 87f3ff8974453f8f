// Package upstream forwards intercepted requests to the real API over HTTP.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"offgate/internal/gateway"
	apperrors "offgate/pkg/errors"
)

// Config tunes the upstream transport and its circuit breaker.
type Config struct {
	BaseURL string
	Timeout time.Duration

	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold float64
	BreakerMinRequests      uint32
}

// DefaultConfig returns breaker settings suited to a flaky local network:
// trip after a clear failure majority, probe again after a minute.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:                 baseURL,
		Timeout:                 10 * time.Second,
		BreakerMaxRequests:      5,
		BreakerInterval:         30 * time.Second,
		BreakerTimeout:          60 * time.Second,
		BreakerFailureThreshold: 0.8,
		BreakerMinRequests:      5,
	}
}

// Client implements gateway.Fetcher against a base URL. A circuit breaker
// sits in front of the transport so a dead upstream fails fast into the
// gateway's offline path instead of stalling every request on a dial
// timeout. Only transport-level failures count against the breaker; any
// received HTTP response is a success.
type Client struct {
	base    *url.URL
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates a client for the configured upstream.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream URL %q needs a scheme and host", cfg.BaseURL)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("upstream circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		base:    base,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}, nil
}

// Do performs the network attempt for an intercepted request. The returned
// error is always a NETWORK AppError; an open breaker counts as the network
// being down.
func (c *Client) Do(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, req)
	})
	if err != nil {
		return nil, apperrors.NewNetworkError("upstream unreachable").WithCause(err)
	}
	return out.(*gateway.Response), nil
}

func (c *Client) roundTrip(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	u := *c.base
	u.Path = joinPath(c.base.Path, req.Path)
	u.RawQuery = req.Query.Encode()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		hreq.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpc.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &gateway.Response{Status: res.StatusCode, Body: buf}, nil
}

func joinPath(base, p string) string {
	switch {
	case base == "" || base == "/":
		return p
	case base[len(base)-1] == '/':
		return base[:len(base)-1] + p
	default:
		return base + p
	}
}
