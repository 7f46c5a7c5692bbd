package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/trustmecro/trust-service/pkg/errors"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 2 * time.Millisecond
	return cfg
}

func get(t *testing.T, d Doer, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	return d.Do(context.Background(), req)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "trust-service/1.0", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	resp, err := get(t, NewWithHTTPClient(srv.Client(), testConfig()), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := get(t, NewWithHTTPClient(srv.Client(), testConfig()), srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRetries = 0
	cb := NewCircuitBreakerClient(NewWithHTTPClient(srv.Client(), cfg), CircuitBreakerConfig{
		Name:         "test-breaker-open",
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 0; i < 2; i++ {
		_, err := get(t, cb, srv.URL)
		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusServiceUnavailable, perr.Status)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	_, err := get(t, cb, srv.URL)
	assert.True(t, errors.Is(err, ErrCircuitOpen))

	checkErr := cb.Check(context.Background())
	assert.True(t, errors.Is(checkErr, apperrors.ErrServiceUnavailable))
	assert.True(t, errors.Is(checkErr, ErrCircuitOpen))
}

func TestClient_RateLimitedRetryToggle(t *testing.T) {
	tests := []struct {
		name      string
		retry429  bool
		wantCalls int32
	}{
		{"retried by default", true, 3},
		{"left alone when disabled", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusTooManyRequests)
			}))
			defer srv.Close()

			cfg := testConfig()
			cfg.RetryRateLimited = tt.retry429
			resp, err := get(t, NewWithHTTPClient(srv.Client(), cfg), srv.URL)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestCircuitBreaker_IsSuccessfulKeepsBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"quota"}`)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRetries = 0
	cb := NewCircuitBreakerClient(NewWithHTTPClient(srv.Client(), cfg), CircuitBreakerConfig{
		Name:         "test-breaker-excluded",
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
		IsSuccessful: func(err error) bool {
			var perr *ProviderError
			return err == nil || (errors.As(err, &perr) && perr.Message == "quota")
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 0; i < 4; i++ {
		_, err := get(t, cb, srv.URL)
		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "quota", perr.Message)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.NoError(t, cb.Check(context.Background()))
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string error", `{"error":"Your account has run out of searches."}`, "Your account has run out of searches."},
		{"object error", `{"error":{"code":400,"message":"API key not valid"}}`, "API key not valid"},
		{"plain body", "  upstream exploded \n", "upstream exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rec.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(rec, tt.body)

			err := ParseResponseError(rec.Result(), "serpapi")
			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "serpapi", perr.Provider)
			assert.Equal(t, http.StatusTooManyRequests, perr.Status)
			assert.Equal(t, tt.want, perr.Message)
		})
	}
}
