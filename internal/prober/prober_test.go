package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/pkg/matrixclient"
)

func testClient() *matrixclient.Client {
	return matrixclient.New(matrixclient.Config{
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
		RateLimit:  1000,
		RateBurst:  100,
	})
}

func testProber(cfg Config) *Prober {
	return New(testClient(), cfg, zap.NewNop())
}

func TestProbe_EventualSuccess(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The homeserver needs a couple of polls before its database is open.
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"versions":["r0.6.0","v1.1","v1.2"]}`))
	}))
	defer ts.Close()

	p := testProber(Config{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	report, err := p.Probe(context.Background(), ts.URL)

	require.NoError(t, err)
	assert.True(t, report.Healthy)
	assert.GreaterOrEqual(t, report.Attempts, 2)
	assert.Contains(t, report.Versions, "v1.2")
}

func TestProbe_BudgetExhausted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := testProber(Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	report, err := p.Probe(context.Background(), ts.URL)

	require.Error(t, err)
	assert.False(t, report.Healthy)
	assert.Equal(t, 3, report.Attempts)
}

func TestProbe_EmptyVersionsIsUnhealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"versions":[]}`))
	}))
	defer ts.Close()

	p := testProber(Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	report, err := p.Probe(context.Background(), ts.URL)

	require.Error(t, err)
	assert.False(t, report.Healthy)
	assert.Contains(t, err.Error(), "no versions")
}

func TestProbe_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testProber(Config{MaxAttempts: 5, BaseDelay: time.Minute})

	_, err := p.Probe(ctx, ts.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffCapped(t *testing.T) {
	p := testProber(Config{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 4 * time.Second})

	assert.Equal(t, time.Second, p.backoff(1))
	assert.Equal(t, 2*time.Second, p.backoff(2))
	assert.Equal(t, 4*time.Second, p.backoff(3))
	assert.Equal(t, 4*time.Second, p.backoff(6))
}
