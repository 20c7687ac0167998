package transport

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
)

// RetryMiddleware repeats a round trip after transient connect failures.
//
// A call is attempted at most MaxRetries+1 times. Only ConnectionTimeout and
// ConnectionFailed are retried: the request never reached the server, so
// sending it again is safe. Any other failure is returned at once, wrapped in
// OperationFailed with the attempt number. When the ceiling is reached the
// last transient failure is wrapped in a TransportError.
type RetryMiddleware struct {
	config  RetryConfig
	logger  logging.Logger
	metrics observability.MetricsProvider
}

// NewRetryMiddleware creates a new retry middleware
func NewRetryMiddleware(config RetryConfig, logger logging.Logger, metrics observability.MetricsProvider) *RetryMiddleware {
	return &RetryMiddleware{
		config:  config,
		logger:  logging.OrNop(logger).WithFields(logging.String("component", "RetryMiddleware")),
		metrics: observability.OrNoop(metrics),
	}
}

// Wrap implements the Middleware interface
func (rm *RetryMiddleware) Wrap(transport Transport) Transport {
	return &retryTransport{
		middlewareTransport: middlewareTransport{next: transport},
		middleware:          rm,
	}
}

type retryTransport struct {
	middlewareTransport
	middleware *RetryMiddleware
}

// RoundTrip wraps the underlying RoundTrip with the retry loop
func (rt *retryTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	rm := rt.middleware
	operation := operationName(req)
	maxAttempts := rm.config.MaxAttempts()
	logger := rm.logger.WithContext(ctx).WithFields(logging.String("operation", operation))

	var (
		attempt  int
		resp     *Response
		lastErr  error
		finalErr error
	)

	attemptOnce := func() error {
		if err := ctx.Err(); err != nil {
			finalErr = erperrors.OperationCanceled(operation, err)
			return backoff.Permanent(finalErr)
		}

		attempt++
		r, err := rt.middlewareTransport.RoundTrip(ctx, req)
		if err == nil {
			resp = r
			return nil
		}
		lastErr = err

		switch {
		case erperrors.IsCode(err, erperrors.CodeOperationCanceled):
			finalErr = err
			return backoff.Permanent(err)
		case !IsRetryable(err):
			logger.WithError(err).Debug("Non-retryable failure", logging.Int("attempt", attempt))
			finalErr = erperrors.OperationFailed(operation, req.URL, attempt, err)
			return backoff.Permanent(finalErr)
		}

		logger.WithError(err).Warn("Transient failure",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", maxAttempts),
		)
		return err
	}

	notify := func(err error, delay time.Duration) {
		rm.metrics.RecordRetry(ctx, operation, retryReason(err))
		logger.Debug("Retrying", logging.Int("next_attempt", attempt+1), logging.Duration("delay", delay))
	}

	err := backoff.RetryNotify(attemptOnce, rm.policy(ctx), notify)
	switch {
	case err == nil:
		return resp, nil
	case finalErr != nil:
		return nil, finalErr
	case ctx.Err() != nil:
		return nil, erperrors.OperationCanceled(operation, ctx.Err())
	}

	logger.WithError(lastErr).Error("Retries exhausted", logging.Int("attempts", attempt))
	return nil, erperrors.TransportError(operation, req.URL, attempt, lastErr)
}

// policy is a constant (by default zero) delay capped at MaxRetries repeats
func (rm *RetryMiddleware) policy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if rm.config.RetryDelay > 0 {
		b = backoff.NewConstantBackOff(rm.config.RetryDelay)
	}

	retries := rm.config.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// IsRetryable reports whether err is one of the transient connect failures
// the retry loop repeats. Only the outermost coded error is considered, so an
// exhausted inner retry loop is not retried again.
func IsRetryable(err error) bool {
	erpErr, ok := erperrors.AsErpError(err)
	if !ok {
		return false
	}

	switch erpErr.Code() {
	case erperrors.CodeConnectionTimeout, erperrors.CodeConnectionFailed:
		return true
	default:
		return false
	}
}

func retryReason(err error) string {
	if erpErr, ok := erperrors.AsErpError(err); ok {
		return erperrors.GetErrorCodeName(erpErr.Code())
	}
	return "unknown"
}
