package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/internal/config"
	"github.com/sichatlabs/sichat-deploy/pkg/testhelper"
)

func TestReconcile_CountsLiveInstances(t *testing.T) {
	orch := testhelper.NewMockOrchestrator()
	orch.Seed("sichat", "registry.test/conduit:v0.6.0", "sichat_data")

	r := NewInstanceReconciler(orch, &config.Config{DeployServices: []string{"sichat"}}, zap.NewNop())

	require.NoError(t, r.reconcile(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(runningInstances.WithLabelValues("sichat")))
}

func TestReconcile_ZeroInstances(t *testing.T) {
	orch := testhelper.NewMockOrchestrator()

	r := NewInstanceReconciler(orch, &config.Config{DeployServices: []string{"sichat"}}, zap.NewNop())

	require.NoError(t, r.reconcile(context.Background()))

	assert.Equal(t, 0.0, testutil.ToFloat64(runningInstances.WithLabelValues("sichat")))
}

func TestReconcile_AmbiguousInstances(t *testing.T) {
	orch := testhelper.NewMockOrchestrator()
	orch.Seed("sichat", "registry.test/conduit:v0.6.0", "sichat_data")
	orch.Seed("sichat", "registry.test/conduit:v0.6.0", "sichat_data")

	r := NewInstanceReconciler(orch, &config.Config{DeployServices: []string{"sichat"}}, zap.NewNop())

	require.NoError(t, r.reconcile(context.Background()))

	assert.Equal(t, 2.0, testutil.ToFloat64(runningInstances.WithLabelValues("sichat")))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	orch := testhelper.NewMockOrchestrator()
	r := NewInstanceReconciler(orch, &config.Config{DeployServices: []string{"sichat"}}, zap.NewNop())
	r.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancellation")
	}
}
