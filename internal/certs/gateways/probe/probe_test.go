package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_FetchesUntrustedPeer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "https://")
	p := New(Options{Timeout: 5 * time.Second})

	certs, err := p.Chain(context.Background(), addr, "example.com")
	require.NoError(t, err)
	require.NotEmpty(t, certs)
	assert.True(t, certs[0].Equal(srv.Certificate()))
}

func TestChain_Errors(t *testing.T) {
	p := New(Options{})
	_, err := p.Chain(context.Background(), "", "")
	assert.EqualError(t, err, errAddressRequired)

	dialErr := errors.New("refused")
	p = New(Options{Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, dialErr
	}})
	_, err = p.Chain(context.Background(), "127.0.0.1:1", "")
	assert.ErrorIs(t, err, dialErr)
}

func TestChain_HandshakeFailure(t *testing.T) {
	p := New(Options{Timeout: time.Second, Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			buf := make([]byte, 512)
			_, _ = server.Read(buf)
			server.Close()
		}()
		return client, nil
	}})
	_, err := p.Chain(context.Background(), "pipe:443", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake with pipe:443")
}
