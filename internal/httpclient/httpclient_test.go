package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "nugget/internal/errors"
)

func TestCircuitBreakerOpensAfterServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewWithCircuitBreakerConfig(time.Second, "test", apperrors.CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	})

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
	}

	// Third request is rejected before reaching the server.
	_, err := client.Get(srv.URL)
	if err == nil {
		t.Fatal("expected circuit breaker rejection")
	}
	if !apperrors.IsDegraded(unwrapURLError(err)) {
		t.Fatalf("expected degraded error, got %v", err)
	}
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewWithCircuitBreaker(time.Second, "test")
	for i := 0; i < 10; i++ {
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
	}
}

func unwrapURLError(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}
