package matrixclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:    baseURL,
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
		RateLimit:  1000,
		RateBurst:  100,
	})
}

func TestVersions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_matrix/client/versions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"versions":["r0.6.0","v1.1"],"unstable_features":{"org.matrix.e2e_cross_signing":true}}`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)

	versions, err := client.Versions(context.Background())

	require.NoError(t, err)
	assert.True(t, versions.Ready())
	assert.Equal(t, []string{"r0.6.0", "v1.1"}, versions.Versions)
	assert.True(t, versions.UnstableFeatures["org.matrix.e2e_cross_signing"])
}

func TestVersions_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errcode":"M_NOT_FOUND","error":"not found"}`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)

	_, err := client.Versions(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "M_NOT_FOUND", apiErr.Code)
}

func TestVersions_RetriesTransientFailure(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"versions":["v1.1"]}`))
	}))
	defer ts.Close()

	client := New(Config{
		BaseURL:    ts.URL,
		Timeout:    time.Second,
		RetryCount: 2,
		RetryDelay: time.Millisecond,
		RateLimit:  1000,
		RateBurst:  100,
	})

	versions, err := client.Versions(context.Background())

	require.NoError(t, err)
	assert.True(t, versions.Ready())
	assert.Equal(t, int32(2), requests.Load())
}

func TestForEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"versions":["v1.1"]}`))
	}))
	defer ts.Close()

	base := newTestClient("http://unreachable.invalid")
	bound := base.ForEndpoint(ts.URL + "/")

	versions, err := bound.Versions(context.Background())
	require.NoError(t, err)
	assert.True(t, versions.Ready())

	// The original client is unchanged.
	_, err = base.Versions(context.Background())
	require.Error(t, err)
}

func TestReady(t *testing.T) {
	assert.False(t, (&VersionsResponse{}).Ready())
	assert.False(t, (*VersionsResponse)(nil).Ready())
	assert.True(t, (&VersionsResponse{Versions: []string{"v1.1"}}).Ready())
}

func TestVersions_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"versions":["v1.1"]}`))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(ts.URL)

	_, err := client.Versions(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
