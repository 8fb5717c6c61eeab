package resilient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Request describes one outbound request to execute across the strategy
// matrix. The body, if any, is raw bytes so an attempt can be replayed as
// many times as needed.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// NewJSONRequest builds a Request with a JSON-encoded body and the matching
// Content-Type header.
func NewJSONRequest(method, url string, headers map[string]string, payload interface{}) (Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	merged["Content-Type"] = "application/json"

	return Request{
		Method:  method,
		URL:     url,
		Headers: merged,
		Body:    body,
	}, nil
}

// AcceptFunc decides whether a response with a success status is actually
// usable. A non-nil error rejects the attempt and moves on to the next
// strategy, exactly like a transport failure would.
type AcceptFunc func(*Result) error

// Options tunes a single execution of the strategy matrix.
type Options struct {
	// HeaderProfiles, when set, is a list of header sets crossed with each
	// strategy (the profile loop is the inner loop). Profile headers are
	// applied on top of the request's own headers. When empty a single
	// profile with no extra headers is used.
	HeaderProfiles []map[string]string

	// Accept, when set, validates the payload of a success-status response.
	Accept AcceptFunc
}

// Config holds configuration for an Executor.
type Config struct {
	// Logger for per-attempt diagnostics (optional).
	Logger hclog.Logger

	// AttemptTimeout bounds every single attempt. Default: 30 seconds.
	// There is deliberately no overall budget across the matrix.
	AttemptTimeout time.Duration

	// MaxRetries is the retry budget of session strategies, applied only to
	// retryable statuses (429, 500, 502, 503, 504). Default: 3.
	MaxRetries int

	// RetryInitialInterval is the starting backoff between those retries.
	// Default: 1 second.
	RetryInitialInterval time.Duration
}

// Executor walks the transport strategy matrix in priority order until one
// attempt succeeds. This is a first-success policy, not best-effort: no
// comparison between strategies ever happens, and no failure is fatal until
// the whole matrix plus the final fallback is exhausted.
type Executor struct {
	logger         hclog.Logger
	attemptTimeout time.Duration
	maxRetries     int
	retryInitial   time.Duration
	clients        map[Strategy]*http.Client
}

// NewExecutor creates an Executor, building one client per strategy up front.
func NewExecutor(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryInitialInterval == 0 {
		cfg.RetryInitialInterval = 1 * time.Second
	}

	clients := make(map[Strategy]*http.Client, len(strategies))
	for _, s := range Strategies() {
		clients[s] = s.newClient(cfg.AttemptTimeout)
	}

	return &Executor{
		logger:         cfg.Logger.Named("resilient"),
		attemptTimeout: cfg.AttemptTimeout,
		maxRetries:     cfg.MaxRetries,
		retryInitial:   cfg.RetryInitialInterval,
		clients:        clients,
	}
}

// Do executes the request across the strategy matrix with default options.
func (e *Executor) Do(ctx context.Context, req Request) (*Result, error) {
	return e.DoWithOptions(ctx, req, Options{})
}

// DoWithOptions executes the request across the strategy matrix. Every
// failed attempt is logged and collected; the first attempt that returns a
// success status (and passes opts.Accept, when set) wins. When the matrix is
// exhausted a minimal client that skips all certificate validation gets one
// final try, and only after that fails too is an ExhaustedError returned.
func (e *Executor) DoWithOptions(ctx context.Context, req Request, opts Options) (*Result, error) {
	profiles := opts.HeaderProfiles
	if len(profiles) == 0 {
		profiles = []map[string]string{nil}
	}

	var attempts *multierror.Error
	for _, strategy := range Strategies() {
		for _, profile := range profiles {
			res, err := e.attempt(ctx, strategy, req, profile, opts.Accept)
			if err == nil {
				e.logger.Info("request succeeded",
					"strategy", strategy.Description,
					"method", req.Method,
					"url", req.URL,
					"status", res.StatusCode,
				)
				return res, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("request attempt failed",
				"strategy", strategy.Description,
				"method", req.Method,
				"url", req.URL,
				"error", err,
			)
			attempts = multierror.Append(attempts, err)
		}
	}

	res, err := e.fallback(ctx, req, profiles[0], opts.Accept)
	if err == nil {
		e.logger.Info("request succeeded via insecure fallback",
			"method", req.Method, "url", req.URL, "status", res.StatusCode)
		return res, nil
	}
	e.logger.Warn("insecure fallback failed",
		"method", req.Method, "url", req.URL, "error", err)
	attempts = multierror.Append(attempts, err)

	return nil, &ExhaustedError{Attempts: attempts.ErrorOrNil()}
}

// attempt runs the request once under the given strategy. Session strategies
// wrap the round trip in bounded retry on retryable statuses.
func (e *Executor) attempt(
	ctx context.Context,
	strategy Strategy,
	req Request,
	profile map[string]string,
	accept AcceptFunc,
) (*Result, error) {
	e.logger.Debug("attempting request",
		"strategy", strategy.Description, "method", req.Method, "url", req.URL)

	if !strategy.UseSession {
		return e.roundTrip(ctx, strategy, req, profile, accept)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.retryInitial

	operation := func() (*Result, error) {
		res, err := e.roundTrip(ctx, strategy, req, profile, accept)
		if err != nil {
			var attemptErr *AttemptError
			if errors.As(err, &attemptErr) &&
				attemptErr.Kind == FailureStatus &&
				retryableStatus(attemptErr.StatusCode) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return res, nil
	}

	return backoff.RetryWithData(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.maxRetries)), ctx),
	)
}

// roundTrip issues the request once with the strategy's client and reads the
// full response. An HTTP error status is returned as an AttemptError, not a
// Result: it is handled the same way as a transport failure.
func (e *Executor) roundTrip(
	ctx context.Context,
	strategy Strategy,
	req Request,
	profile map[string]string,
	accept AcceptFunc,
) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &AttemptError{
			Kind:     FailureUnexpected,
			Strategy: strategy.Description,
			Err:      err,
		}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range profile {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.clients[strategy].Do(httpReq)
	if err != nil {
		return nil, &AttemptError{
			Kind:     classifyTransportError(err),
			Strategy: strategy.Description,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AttemptError{
			Kind:     FailureNetwork,
			Strategy: strategy.Description,
			Err:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &AttemptError{
			Kind:       FailureStatus,
			Strategy:   strategy.Description,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 512)),
		}
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Body:       body,
		Strategy:   strategy.Description,
	}

	if accept != nil {
		if err := accept(result); err != nil {
			return nil, &AttemptError{
				Kind:     FailureRejected,
				Strategy: strategy.Description,
				Err:      err,
			}
		}
	}

	return result, nil
}

const fallbackDescription = "minimal insecure fallback"

// fallback is the last resort after the whole matrix failed: a bare one-shot
// client that skips all certificate validation. Unlike regular attempts it
// only accepts 200, 201 and 204.
func (e *Executor) fallback(
	ctx context.Context,
	req Request,
	profile map[string]string,
	accept AcceptFunc,
) (*Result, error) {
	e.logger.Info("all strategies failed, trying minimal insecure fallback",
		"method", req.Method, "url", req.URL)

	client := &http.Client{
		Timeout: e.attemptTimeout,
		Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DisableKeepAlives: true,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &AttemptError{
			Kind: FailureUnexpected, Strategy: fallbackDescription, Err: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range profile {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &AttemptError{
			Kind:     classifyTransportError(err),
			Strategy: fallbackDescription,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AttemptError{
			Kind:     FailureNetwork,
			Strategy: fallbackDescription,
			Err:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	default:
		return nil, &AttemptError{
			Kind:       FailureStatus,
			Strategy:   fallbackDescription,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 512)),
		}
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Body:       body,
		Strategy:   fallbackDescription,
	}

	if accept != nil {
		if err := accept(result); err != nil {
			return nil, &AttemptError{
				Kind: FailureRejected, Strategy: fallbackDescription, Err: err}
		}
	}

	return result, nil
}

// retryableStatus reports whether session strategies retry the status.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
