package resilient

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategies_Order(t *testing.T) {
	// The order is part of the contract: strict verification first, each
	// TLS mode direct before session.
	want := []string{
		"default TLS verification, direct",
		"default TLS verification, pooled session with retries",
		"no TLS verification, direct",
		"no TLS verification, pooled session with retries",
		"relaxed TLS context, direct",
		"relaxed TLS context, pooled session with retries",
	}

	got := Strategies()
	require.Len(t, got, 6)
	for i, s := range got {
		assert.Equal(t, want[i], s.Description)
	}

	assert.Equal(t, TLSStrict, got[0].TLS)
	assert.False(t, got[0].UseSession)
	assert.Equal(t, TLSStrict, got[1].TLS)
	assert.True(t, got[1].UseSession)
	assert.Equal(t, TLSRelaxed, got[5].TLS)
	assert.True(t, got[5].UseSession)
}

func TestStrategies_ReturnsCopy(t *testing.T) {
	a := Strategies()
	a[0].Description = "mutated"
	b := Strategies()
	assert.Equal(t, "default TLS verification, direct", b[0].Description)
}

func TestStrategy_TLSConfig(t *testing.T) {
	tests := []struct {
		name         string
		mode         TLSMode
		wantNil      bool
		wantInsecure bool
	}{
		{"strict uses transport default", TLSStrict, true, false},
		{"insecure skips verification", TLSInsecure, false, true},
		{"relaxed skips verification", TLSRelaxed, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Strategy{TLS: tt.mode}.tlsConfig()
			if tt.wantNil {
				assert.Nil(t, cfg)
				return
			}
			require.NotNil(t, cfg)
			assert.Equal(t, tt.wantInsecure, cfg.InsecureSkipVerify)
		})
	}

	relaxed := Strategy{TLS: TLSRelaxed}.tlsConfig()
	assert.Equal(t, uint16(tls.VersionTLS10), relaxed.MinVersion)
	assert.Equal(t, tls.RenegotiateOnceAsClient, relaxed.Renegotiation)
}

func TestStrategy_NewClient(t *testing.T) {
	t.Run("direct disables keep-alives", func(t *testing.T) {
		c := Strategy{TLS: TLSStrict}.newClient(5 * time.Second)
		transport := c.Transport.(*http.Transport)
		assert.True(t, transport.DisableKeepAlives)
		assert.Equal(t, 5*time.Second, c.Timeout)
	})

	t.Run("session keeps a connection pool", func(t *testing.T) {
		c := Strategy{TLS: TLSStrict, UseSession: true}.newClient(5 * time.Second)
		transport := c.Transport.(*http.Transport)
		assert.False(t, transport.DisableKeepAlives)
		assert.Equal(t, 100, transport.MaxIdleConns)
		assert.Equal(t, 10, transport.MaxIdleConnsPerHost)
	})
}
