package monitor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func icyServer(title string) *httptest.Server {
	meta := []byte("StreamTitle='" + title + "';")
	blocks := (len(meta) + 15) / 16

	var body bytes.Buffer
	body.Write(bytes.Repeat([]byte{0xFF}, 32))
	body.WriteByte(byte(blocks))
	body.Write(meta)
	body.Write(make([]byte, blocks*16-len(meta)))
	body.Write(bytes.Repeat([]byte{0xFB}, 10))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-metaint", "32")
		w.Header().Set("icy-name", "pi")
		_, _ = w.Write(body.Bytes())
	}))
}

func TestMonitor_ObservesTitle(t *testing.T) {
	server := icyServer("TheCGBros - Mechanical")
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := New(Config{
		URL:                 server.URL + "/pi.mp3",
		ReconnectBackoff:    10 * time.Millisecond,
		ReconnectBackoffMax: 20 * time.Millisecond,
	}, *logger, prometheus.NewRegistry())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, services.StartAndAwaitRunning(ctx, m))

	require.Eventually(t, func() bool {
		return m.Title() == "TheCGBros - Mechanical"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, services.StopAndAwaitTerminated(ctx, m))

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.titleChanges), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.connects.WithLabelValues("success")), 1.0)
}

func TestMonitor_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := New(Config{}, *logger, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, services.StartAndAwaitRunning(ctx, m))
	require.NoError(t, services.StopAndAwaitTerminated(ctx, m))
	assert.Empty(t, m.Title())
}

func TestMonitor_RetriesOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := New(Config{
		URL:                 server.URL,
		ReconnectBackoff:    5 * time.Millisecond,
		ReconnectBackoffMax: 10 * time.Millisecond,
	}, *logger, prometheus.NewRegistry())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, services.StartAndAwaitRunning(ctx, m))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.connects.WithLabelValues("error")) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, services.StopAndAwaitTerminated(ctx, m))
}
