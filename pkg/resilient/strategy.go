package resilient

import (
	"crypto/tls"
	"net/http"
	"time"
)

// TLSMode selects how an attempt verifies the upstream certificate chain.
type TLSMode int

const (
	// TLSStrict performs full certificate verification.
	TLSStrict TLSMode = iota

	// TLSInsecure skips certificate verification entirely. Needed behind
	// TLS-intercepting proxies (Zscaler and friends) that re-sign traffic
	// with a private CA.
	TLSInsecure

	// TLSRelaxed skips verification and additionally tolerates legacy
	// middlebox behavior (old protocol versions, mid-connection
	// renegotiation).
	TLSRelaxed
)

func (m TLSMode) String() string {
	switch m {
	case TLSStrict:
		return "default TLS verification"
	case TLSInsecure:
		return "no TLS verification"
	case TLSRelaxed:
		return "relaxed TLS context"
	}
	return "unknown"
}

// Strategy is one concrete combination of TLS verification and connection
// handling tried against an upstream. Strategies are immutable configuration;
// building the matching client is the executor's job.
type Strategy struct {
	// TLS is the certificate verification mode for this strategy.
	TLS TLSMode

	// UseSession enables connection reuse plus bounded automatic retry on
	// retryable HTTP statuses. When false the attempt is a plain one-shot
	// request on a fresh connection.
	UseSession bool

	// Description identifies the strategy in logs and error messages.
	Description string
}

// strategies is the fixed priority order: strict verification is preferred
// (a correctly configured environment should win immediately), then
// no-verification for intercepting proxies, then the relaxed context for the
// worst middleboxes. Each TLS mode is tried direct first, then with a pooled
// session and retries.
var strategies = []Strategy{
	{TLS: TLSStrict, UseSession: false, Description: "default TLS verification, direct"},
	{TLS: TLSStrict, UseSession: true, Description: "default TLS verification, pooled session with retries"},
	{TLS: TLSInsecure, UseSession: false, Description: "no TLS verification, direct"},
	{TLS: TLSInsecure, UseSession: true, Description: "no TLS verification, pooled session with retries"},
	{TLS: TLSRelaxed, UseSession: false, Description: "relaxed TLS context, direct"},
	{TLS: TLSRelaxed, UseSession: true, Description: "relaxed TLS context, pooled session with retries"},
}

// Strategies returns the transport strategy matrix in priority order. The
// order is part of the contract: callers walk it sequentially and stop at the
// first success.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

// tlsConfig returns the tls.Config for the strategy's TLS mode, or nil for
// strict verification (the transport default).
func (s Strategy) tlsConfig() *tls.Config {
	switch s.TLS {
	case TLSInsecure:
		return &tls.Config{
			InsecureSkipVerify: true,
		}
	case TLSRelaxed:
		return &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS10,
			Renegotiation:      tls.RenegotiateOnceAsClient,
		}
	}
	return nil
}

// newClient builds the http.Client matching the strategy. Session strategies
// keep a connection pool; direct strategies tear connections down after each
// request.
func (s Strategy) newClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: s.tlsConfig(),
	}

	if s.UseSession {
		transport.MaxIdleConns = 100
		transport.MaxIdleConnsPerHost = 10
		transport.IdleConnTimeout = 90 * time.Second
	} else {
		transport.DisableKeepAlives = true
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
