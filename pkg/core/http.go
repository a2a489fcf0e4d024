package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/osiedlownik/geoscore/pkg/tracing"
)

// RetryOptions configures retry behavior for HTTP requests.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions provides sensible defaults for retries against the
// external property-listings source (the core's only outbound HTTP caller
// — the POI store and L2 cache talk pgx/redis wire protocols instead).
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// DefaultClient is a pre-configured HTTP client with pooled connections.
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// RequestFactory creates a new HTTP request, allowing WithRetryFactory to
// retry requests with bodies by recreating them from scratch each attempt.
type RequestFactory func() (*http.Request, error)

// WithRetryFactory performs an HTTP request built by factory, retrying
// with exponential backoff on failure or non-2xx status.
func WithRetryFactory(ctx context.Context, factory RequestFactory, client *http.Client, options RetryOptions) (*http.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "http.request_factory",
		trace.WithAttributes(attribute.Int("http.retry.max_attempts", options.MaxAttempts)),
	)
	defer span.End()

	if client == nil {
		client = DefaultClient
	}

	var lastErr error
	delay := options.InitialDelay
	logger := slog.Default()

	for attempt := 0; attempt < options.MaxAttempts; attempt++ {
		if attempt > 0 {
			tracing.AddEvent(ctx, "retry_attempt",
				trace.WithAttributes(
					attribute.Int("attempt", attempt+1),
					attribute.Int64("delay_ms", delay.Milliseconds()),
				),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				span.SetStatus(codes.Error, "request cancelled")
				return nil, ctx.Err()
			}
			delay = time.Duration(float64(delay) * options.Multiplier)
			if delay > options.MaxDelay {
				delay = options.MaxDelay
			}
		}

		req, err := factory()
		if err != nil {
			lastErr = NewError(KindInternal, "failed to create request")
			logger.Error("request creation failed", "error", err, "attempt", attempt+1)
			continue
		}
		req = req.WithContext(ctx)

		resp, err := client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			span.SetAttributes(
				attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode),
				attribute.Int("http.retry.attempts", attempt+1),
			)
			span.SetStatus(codes.Ok, "")
			return resp, nil
		}

		if err != nil {
			lastErr = err
			logger.Error("request failed", "error", err, "attempt", attempt+1, "url", req.URL.String())
		} else {
			lastErr = fmt.Errorf("http status %d", resp.StatusCode)
			logger.Error("request returned error status", "status", resp.StatusCode, "attempt", attempt+1)
			if cerr := resp.Body.Close(); cerr != nil {
				logger.Warn("failed to close response body", "error", cerr)
			}
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "max retries exceeded")
	return nil, NewError(KindStoreUnavailable, "max retries reached").WithGuidance(lastErr.Error())
}
