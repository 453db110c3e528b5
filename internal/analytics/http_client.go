package analytics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "nugget/internal/errors"
	"nugget/internal/httpclient"
	"nugget/internal/shared/jsonx"
	"nugget/internal/shared/logging"
)

// maxReportBytes bounds how much of a report response is read. Reports are
// row-limited upstream, so anything larger signals a misbehaving backend.
const maxReportBytes = 16 << 20

// HTTPConfig configures the JSON-over-HTTP analytics adapter.
type HTTPConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration // per-call; default 20s
	QPS        float64       // rate limit; <=0 disables
	Burst      int
	MaxRetries int
}

// HTTPService talks to the analytics backend over JSON HTTP with a bearer
// token. Transient failures are retried here; the executor above never
// retries.
type HTTPService struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryConfig apperrors.RetryConfig
	logger      logging.Logger
}

var _ Service = (*HTTPService)(nil)

// NewHTTPService builds the production analytics adapter.
func NewHTTPService(config HTTPConfig) (*HTTPService, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("analytics base url required")
	}
	timeout := 20 * time.Second
	if config.Timeout > 0 {
		timeout = config.Timeout
	}

	var limiter *rate.Limiter
	if config.QPS > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.QPS), burst)
	}

	retryConfig := apperrors.DefaultRetryConfig()
	if config.MaxRetries >= 0 {
		retryConfig.MaxAttempts = config.MaxRetries
	}
	retryConfig.BaseDelay = 500 * time.Millisecond

	return &HTTPService{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		token:       config.Token,
		httpClient:  httpclient.NewWithCircuitBreaker(timeout, "analytics"),
		limiter:     limiter,
		retryConfig: retryConfig,
		logger:      logging.NewComponentLogger("analytics-http"),
	}, nil
}

// RunReport executes one report request.
func (s *HTTPService) RunReport(ctx context.Context, req ReportRequest) (*ReportResponse, error) {
	if req.PropertyID == "" {
		return nil, fmt.Errorf("property id required")
	}
	if len(req.Metrics) == 0 {
		return nil, fmt.Errorf("at least one metric required")
	}

	endpoint := fmt.Sprintf("%s/properties/%s/reports", s.baseURL, url.PathEscape(req.PropertyID))
	var out ReportResponse
	if err := s.post(ctx, endpoint, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMetadata fetches the live metric/dimension names of a property.
func (s *HTTPService) GetMetadata(ctx context.Context, propertyID string) (*Metadata, error) {
	if propertyID == "" {
		return nil, fmt.Errorf("property id required")
	}

	endpoint := fmt.Sprintf("%s/properties/%s/metadata", s.baseURL, url.PathEscape(propertyID))
	var out Metadata
	if err := s.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPService) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := jsonx.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return s.roundTrip(ctx, http.MethodPost, endpoint, body, out)
}

func (s *HTTPService) get(ctx context.Context, endpoint string, out any) error {
	return s.roundTrip(ctx, http.MethodGet, endpoint, nil, out)
}

func (s *HTTPService) roundTrip(ctx context.Context, method, endpoint string, body []byte, out any) error {
	return apperrors.Retry(ctx, s.retryConfig, func(ctx context.Context) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return apperrors.NewTransientError(err, "analytics request failed")
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := httpclient.ReadAllWithLimit(resp.Body, maxReportBytes)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return mapStatusError(resp.StatusCode, respBody)
		}
		if err := jsonx.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func mapStatusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	err := fmt.Errorf("analytics http %d: %s", status, msg)
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return apperrors.NewTransientError(err, "analytics backend is busy")
	}
	return apperrors.NewPermanentError(err, "analytics request rejected")
}
