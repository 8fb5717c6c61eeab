package resilient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor() *Executor {
	return NewExecutor(Config{
		Logger:               hclog.NewNullLogger(),
		AttemptTimeout:       5 * time.Second,
		MaxRetries:           3,
		RetryInitialInterval: time.Millisecond,
	})
}

func TestExecutor_FirstSuccessWins(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer ts.Close()

	res, err := newTestExecutor().Do(context.Background(), Request{
		Method: http.MethodGet,
		URL:    ts.URL,
	})
	require.NoError(t, err)

	// The first strategy succeeded, so no other strategy ran.
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.Equal(t, "default TLS verification, direct", res.Strategy)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var payload struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, res.JSON(&payload))
	assert.True(t, payload.OK)
}

func TestExecutor_SelfSignedCertFallsThroughToInsecure(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer ts.Close()

	res, err := newTestExecutor().Do(context.Background(), Request{
		Method: http.MethodGet,
		URL:    ts.URL,
	})
	require.NoError(t, err)

	// Both strict strategies fail certificate verification against the
	// self-signed test cert; the first no-verify strategy wins.
	assert.Equal(t, "no TLS verification, direct", res.Strategy)
	assert.Equal(t, "ok", string(res.Body))
}

func TestExecutor_SessionStrategyRetriesRetryableStatus(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		// First request (direct strategy) and second (session strategy,
		// first try) get a retryable status; the session retry succeeds.
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "recovered")
	}))
	defer ts.Close()

	res, err := newTestExecutor().Do(context.Background(), Request{
		Method: http.MethodGet,
		URL:    ts.URL,
	})
	require.NoError(t, err)

	assert.Equal(t, "default TLS verification, pooled session with retries", res.Strategy)
	assert.Equal(t, "recovered", string(res.Body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestExecutor_NonRetryableStatusTriggersNextStrategy(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := newTestExecutor().Do(context.Background(), Request{
		Method: http.MethodGet,
		URL:    ts.URL,
	})
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)

	// 404 is not retryable, so each of the 6 strategies made exactly one
	// request, plus the final fallback.
	assert.Equal(t, int32(7), atomic.LoadInt32(&requests))

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, FailureStatus, attemptErr.Kind)
	assert.Equal(t, http.StatusNotFound, attemptErr.StatusCode)
}

func TestExecutor_HeaderProfilesAreInnerLoop(t *testing.T) {
	var (
		mu     sync.Mutex
		agents []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		fmt.Fprint(w, "reject me")
	}))
	defer ts.Close()

	profiles := []map[string]string{
		{"User-Agent": "minimal"},
		{"User-Agent": "browser"},
	}

	_, err := newTestExecutor().DoWithOptions(context.Background(),
		Request{Method: http.MethodGet, URL: ts.URL},
		Options{
			HeaderProfiles: profiles,
			Accept: func(res *Result) error {
				return errors.New("rejected payload")
			},
		},
	)
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)

	// 6 strategies x 2 profiles, plus the fallback with the first profile.
	require.Len(t, agents, 13)
	assert.Equal(t, "minimal", agents[0])
	assert.Equal(t, "browser", agents[1])
	assert.Equal(t, "minimal", agents[2])
	assert.Equal(t, "minimal", agents[12])

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, FailureRejected, attemptErr.Kind)
}

func TestExecutor_FallbackRescuesExhaustedMatrix(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		// Strategy attempts: 1 direct + 4 session tries (retryable 500),
		// repeated for each of the 3 TLS modes = 15 requests. The 16th is
		// the fallback.
		if n <= 15 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "saved by the fallback")
	}))
	defer ts.Close()

	res, err := newTestExecutor().Do(context.Background(), Request{
		Method: http.MethodGet,
		URL:    ts.URL,
	})
	require.NoError(t, err)

	assert.Equal(t, "minimal insecure fallback", res.Strategy)
	assert.Equal(t, "saved by the fallback", string(res.Body))
	assert.Equal(t, int32(16), atomic.LoadInt32(&requests))
}

func TestExecutor_ConnectionRefusedIsNetworkFailure(t *testing.T) {
	// Grab a port nothing listens on.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := newTestExecutor().Do(context.Background(), Request{
		Method: http.MethodGet,
		URL:    url,
	})
	require.Error(t, err)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, FailureNetwork, attemptErr.Kind)
}

func TestExecutor_BodyIsReplayedAcrossAttempts(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		mu.Lock()
		bodies = append(bodies, string(buf[:n]))
		count := len(bodies)
		mu.Unlock()
		if count < 2 {
			http.Error(w, "nope", http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	res, err := newTestExecutor().Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    ts.URL,
		Body:   []byte(`{"a":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	require.Len(t, bodies, 2)
	assert.Equal(t, `{"a":1}`, bodies[0])
	assert.Equal(t, `{"a":1}`, bodies[1])
}

func TestNewJSONRequest(t *testing.T) {
	req, err := NewJSONRequest(http.MethodPost, "http://example.com",
		map[string]string{"Authorization": "Bearer x"},
		map[string]string{"title": "Test"},
	)
	require.NoError(t, err)

	assert.Equal(t, "application/json", req.Headers["Content-Type"])
	assert.Equal(t, "Bearer x", req.Headers["Authorization"])
	assert.JSONEq(t, `{"title":"Test"}`, string(req.Body))
}
