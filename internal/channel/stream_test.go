package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBuildPingURL(t *testing.T) {
	got, err := buildPingURL("https://relay.example/api/sendTransaction?c=key", "/ping")
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example/ping?c=key", got)

	got, err = buildPingURL("https://relay.example/api", "")
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example/api", got)
}

func TestStreamChannelKeepalive(t *testing.T) {
	var pings, sends atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/ping":
			pings.Add(1)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost:
			sends.Add(1)
			_, _ = w.Write([]byte(`{"result":"ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	ch, err := NewStreamChannel(Descriptor{
		Name:         "nozomi",
		Kind:         KindStream,
		Provider:     "nozomi",
		Endpoint:     srv.URL + "/api/sendTransaction",
		PingPath:     "/ping",
		PingInterval: 10 * time.Millisecond,
	}, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, ch.Start(context.Background()))
	require.NoError(t, ch.Start(context.Background()))

	assert.Eventually(t, func() bool { return pings.Load() >= 3 }, time.Second, 5*time.Millisecond)

	out := ch.SendOne(context.Background(), signedTx(t))
	assert.True(t, out.Accepted)
	assert.Equal(t, KindStream, out.Kind)
	assert.Equal(t, int32(1), sends.Load())

	require.NoError(t, ch.Close())
	stopped := pings.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, stopped, pings.Load())
}

func TestStreamChannelPingFailureIsNotEscalated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	ch, err := NewStreamChannel(Descriptor{
		Name:         "stream",
		Kind:         KindStream,
		Endpoint:     srv.URL,
		PingPath:     "/ping",
		PingInterval: 10 * time.Millisecond,
	}, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, ch.Start(context.Background()))
	defer ch.Close()

	assert.Eventually(t, func() bool {
		_, failed := ch.PingStats()
		return failed >= 2
	}, time.Second, 5*time.Millisecond)

	out := ch.SendOne(context.Background(), signedTx(t))
	assert.True(t, out.Accepted)
	assert.NoError(t, out.Err)
}
