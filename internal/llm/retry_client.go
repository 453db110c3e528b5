package llm

import (
	"context"
	"fmt"
	"time"

	apperrors "nugget/internal/errors"
	"nugget/internal/shared/logging"
)

// retryClient wraps a Client with retry logic and a circuit breaker.
type retryClient struct {
	underlying  Client
	retryConfig apperrors.RetryConfig
	breaker     *apperrors.CircuitBreaker
	logger      logging.Logger
}

// WrapWithRetry wraps an existing client with transient-error retries and a
// per-model circuit breaker. Permanent errors pass through untouched.
func WrapWithRetry(client Client, retryConfig apperrors.RetryConfig) Client {
	return &retryClient{
		underlying:  client,
		retryConfig: retryConfig,
		breaker: apperrors.NewCircuitBreaker(
			fmt.Sprintf("llm-%s", client.Model()),
			apperrors.DefaultCircuitBreakerConfig(),
		),
		logger: logging.NewComponentLogger("llm-retry"),
	}
}

func (c *retryClient) Model() string { return c.underlying.Model() }

func (c *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := apperrors.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (*CompletionResponse, error) {
		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}
		response, err := c.underlying.Complete(ctx, req)
		c.breaker.Mark(err)
		return response, err
	}, c.logger)

	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("LLM request failed after retries (took %v): %v", duration, err)
		return nil, err
	}
	if duration > 5*time.Second {
		c.logger.Debug("LLM request succeeded after %v", duration)
	}
	return resp, nil
}
