package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-crawler/pkg/models"
)

func TestSizeProbe_Probe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/big.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2000000")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/empty.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/nolength.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/forbidden.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "512")
		w.WriteHeader(http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	probe := NewSizeProbe(testFetcher(), 5*time.Second, testLogger())

	tests := []struct {
		name string
		url  string
		want int64
	}{
		{"declared length", server.URL + "/big.png", 2_000_000},
		{"zero length is known", server.URL + "/empty.png", 0},
		{"absent length", server.URL + "/nolength.png", models.SizeUnknown},
		{"non-2xx still accepted", server.URL + "/forbidden.png", 512},
		{"unreachable host", closedServerURL(t), models.SizeUnknown},
		{"malformed url", "http://[::1]:namedport/x.png", models.SizeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, probe.Probe(context.Background(), tt.url))
		})
	}
}

func TestSizeProbe_UsesHeadAndHeaderSet(t *testing.T) {
	var method, userAgent, connection string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		userAgent = r.Header.Get("User-Agent")
		connection = r.Header.Get("Connection")
		w.Header().Set("Content-Length", "10")
	}))
	t.Cleanup(server.Close)

	headers := http.Header{}
	headers.Set("User-Agent", "size-probe-test")
	headers.Set("Connection", "keep-alive")
	probe := NewSizeProbe(NewFetcher(testClient(), headers, testLogger()), time.Second, testLogger())

	require.Equal(t, int64(10), probe.Probe(context.Background(), server.URL))
	assert.Equal(t, http.MethodHead, method)
	assert.Equal(t, "size-probe-test", userAgent)
	assert.Equal(t, "keep-alive", connection)
}

func TestSizeProbe_TimeoutYieldsUnknown(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	probe := NewSizeProbe(testFetcher(), 50*time.Millisecond, testLogger())

	start := time.Now()
	assert.Equal(t, models.SizeUnknown, probe.Probe(context.Background(), server.URL))
	assert.Less(t, time.Since(start), 2*time.Second)
}
