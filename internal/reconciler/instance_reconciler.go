package reconciler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/internal/config"
	"github.com/sichatlabs/sichat-deploy/internal/domain/instance"
)

var runningInstances = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "sichat_deploy_running_instances",
		Help: "Live instances observed per service. Anything other than 1 deserves attention.",
	},
	[]string{"service"},
)

// InstanceReconciler periodically observes live instance state for every
// managed service. It repairs nothing on its own; its job is to surface
// drift (zero instances, or more than one claiming the volume) before the
// next redeploy trips over it.
type InstanceReconciler struct {
	registry instance.Registry
	services []string
	logger   *zap.Logger
	interval time.Duration
}

func NewInstanceReconciler(registry instance.Registry, cfg *config.Config, logger *zap.Logger) *InstanceReconciler {
	return &InstanceReconciler{
		registry: registry,
		services: cfg.DeployServices,
		logger:   logger.Named("instance.reconciler"),
		interval: 15 * time.Second,
	}
}

func (r *InstanceReconciler) Run(ctx context.Context) {
	if err := r.reconcile(ctx); err != nil {
		r.logger.Error("reconcile_initial_failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reconcile(ctx); err != nil {
				r.logger.Error("reconcile_failed", zap.Error(err))
			}
		}
	}
}

func (r *InstanceReconciler) reconcile(ctx context.Context) error {
	for _, service := range r.services {
		r.reconcileService(ctx, service)
	}
	return nil
}

func (r *InstanceReconciler) reconcileService(ctx context.Context, service string) {
	instances, err := r.registry.List(ctx, service)
	if err != nil {
		r.logger.Warn("reconcile_list_failed",
			zap.Error(err),
			zap.String("service", service),
		)
		return
	}

	live := 0
	for _, inst := range instances {
		switch inst.State {
		case instance.StateStarting, instance.StateRunning, instance.StateDraining:
			live++
		case instance.StateStopped:
			if inst.LastError != "" {
				r.logger.Warn("instance_dead",
					zap.String("service", service),
					zap.String("instance", inst.ID),
					zap.String("last_error", inst.LastError),
				)
			}
		}
	}
	runningInstances.WithLabelValues(service).Set(float64(live))

	if live > 1 {
		r.logger.Error("instance_count_ambiguous",
			zap.String("service", service),
			zap.Int("live_instances", live),
		)
	}
	if live == 0 {
		r.logger.Warn("no_live_instances",
			zap.String("service", service),
		)
	}
}
