package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nugget/internal/errors"
)

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures atomic.Int64
	remain   int64
	err      error
}

func (f *flakyClient) Model() string { return "flaky" }

func (f *flakyClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if f.failures.Add(1) <= f.remain {
		return nil, f.err
	}
	return &CompletionResponse{Content: "ok"}, nil
}

func fastRetry(attempts int) apperrors.RetryConfig {
	return apperrors.RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestWrapWithRetryRecoversFromTransient(t *testing.T) {
	inner := &flakyClient{
		remain: 1,
		err:    apperrors.NewTransientError(errors.New("socket reset"), "busy"),
	}
	client := WrapWithRetry(inner, fastRetry(2))

	resp, err := client.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int64(2), inner.failures.Load())
	assert.Equal(t, "flaky", client.Model())
}

func TestWrapWithRetryStopsOnPermanent(t *testing.T) {
	inner := &flakyClient{
		remain: 10,
		err:    apperrors.NewPermanentError(errors.New("invalid key"), "rejected"),
	}
	client := WrapWithRetry(inner, fastRetry(3))

	_, err := client.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsPermanent(err))
	assert.Equal(t, int64(1), inner.failures.Load(), "permanent errors must not be retried")
}

func TestWrapWithRetryExhaustsAttempts(t *testing.T) {
	inner := &flakyClient{
		remain: 10,
		err:    apperrors.NewTransientError(errors.New("busy"), "busy"),
	}
	client := WrapWithRetry(inner, fastRetry(2))

	_, err := client.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, int64(3), inner.failures.Load())
}
