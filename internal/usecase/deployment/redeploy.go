package deployment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/internal/config"
	"github.com/sichatlabs/sichat-deploy/internal/deploylock"
	"github.com/sichatlabs/sichat-deploy/internal/domain/instance"
	"github.com/sichatlabs/sichat-deploy/internal/domain/volume"
	"github.com/sichatlabs/sichat-deploy/internal/prober"
	"github.com/sichatlabs/sichat-deploy/internal/version"
	"github.com/sichatlabs/sichat-deploy/pkg/telemetry/correlation"
)

// Request describes one redeploy invocation. ImageRef may be empty, in
// which case the default version from the registry is deployed.
type Request struct {
	ServiceName string
	ImageRef    string
	Volume      volume.Binding
	// Endpoint overrides the probe target; when empty it is derived from
	// the service name and the configured root domain.
	Endpoint string
}

// Timing bounds every wait in the redeploy sequence. Waiting is always a
// poll against observed state, never a fixed sleep.
type Timing struct {
	StopGrace     time.Duration
	RemoveGrace   time.Duration
	StartDeadline time.Duration
	PollInterval  time.Duration
}

func TimingFromConfig(cfg *config.Config) Timing {
	return Timing{
		StopGrace:     cfg.StopGracePeriod,
		RemoveGrace:   cfg.RemoveGracePeriod,
		StartDeadline: cfg.StartDeadline,
		PollInterval:  cfg.PollInterval,
	}
}

// RedeployUseCase replaces the running instance of a service with a new
// image version while preserving the attached durable volume. One attempt
// runs at a time per service name, enforced by the deploy lock.
type RedeployUseCase struct {
	registry instance.Registry
	prober   *prober.Prober
	locks    deploylock.Locker
	attempts AttemptStore     // optional
	versions *version.Registry // optional
	cfg      *config.Config
	timing   Timing
	logger   *zap.Logger
}

func NewRedeployUseCase(
	registry instance.Registry,
	prober *prober.Prober,
	locks deploylock.Locker,
	attempts AttemptStore,
	versions *version.Registry,
	cfg *config.Config,
	logger *zap.Logger,
) *RedeployUseCase {
	return &RedeployUseCase{
		registry: registry,
		prober:   prober,
		locks:    locks,
		attempts: attempts,
		versions: versions,
		cfg:      cfg,
		timing:   TimingFromConfig(cfg),
		logger:   logger.Named("redeploy"),
	}
}

// Execute runs one redeploy cycle. The returned attempt is always non-nil
// once the lock was acquired; its outcome and failed phase mirror the
// returned error. Cancellation via ctx is honored only until the stop
// request is issued; after that the sequence runs to completion so the
// service is never abandoned mid-replacement.
func (uc *RedeployUseCase) Execute(ctx context.Context, req Request) (*DeploymentAttempt, error) {
	if err := req.Volume.Validate(); err != nil {
		return nil, err
	}
	imageRef, err := uc.resolveImageRef(ctx, req.ImageRef)
	if err != nil {
		return nil, err
	}

	release, err := uc.locks.Acquire(ctx, req.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("acquire deploy lock for %s: %w", req.ServiceName, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			uc.logger.Warn("deploy_lock_release_failed", zap.Error(err), zap.String("service", req.ServiceName))
		}
	}()

	attempt := &DeploymentAttempt{
		ID:          correlation.NewID(),
		ServiceName: req.ServiceName,
		ImageRef:    imageRef,
		StartedAt:   time.Now().UTC(),
	}
	defer uc.record(context.WithoutCancel(ctx), attempt)

	uc.logger.Info("redeploy_started",
		zap.String("attempt_id", attempt.ID),
		zap.String("service", req.ServiceName),
		zap.String("image", imageRef),
		zap.String("volume", req.Volume.Name),
	)

	// Phase 1: query. Read-only; any inconsistency aborts before anything
	// destructive happens.
	old, err := uc.findCurrent(ctx, req.ServiceName, attempt)
	if err != nil {
		return attempt, err
	}
	if err := ctx.Err(); err != nil {
		attempt.fail(PhaseQuery, err)
		return attempt, err
	}

	// Point of no return: from here the caller's cancellation is ignored.
	dctx := context.WithoutCancel(ctx)

	// Phase 2: drain. The old instance must be fully removed before a new
	// one may claim the volume.
	if old != nil {
		attempt.PreviousInstanceID = old.ID
		if err := uc.drain(dctx, old.ID, attempt); err != nil {
			return attempt, err
		}
	}
	downSince := time.Now()

	// Phase 3: start.
	newInst, err := uc.start(dctx, req, imageRef, attempt)
	if err != nil {
		return attempt, err
	}
	if attempt.PreviousInstanceID != "" {
		attempt.Downtime = time.Since(downSince)
		observeDowntime(req.ServiceName, attempt.Downtime)
		uc.logger.Info("downtime_observed",
			zap.String("service", req.ServiceName),
			zap.Duration("downtime", attempt.Downtime),
		)
	}

	// Phase 4: probe.
	if err := uc.probe(dctx, req, newInst, attempt); err != nil {
		return attempt, err
	}

	attempt.Outcome = OutcomeSuccess
	uc.logger.Info("redeploy_succeeded",
		zap.String("attempt_id", attempt.ID),
		zap.String("service", req.ServiceName),
		zap.String("new_instance", newInst.ID),
		zap.Duration("downtime", attempt.Downtime),
	)
	return attempt, nil
}

func (uc *RedeployUseCase) findCurrent(ctx context.Context, serviceName string, attempt *DeploymentAttempt) (*instance.ServiceInstance, error) {
	instances, err := uc.registry.List(ctx, serviceName)
	if err != nil {
		attempt.fail(PhaseQuery, err)
		return nil, fmt.Errorf("query instance registry: %w", err)
	}

	live := make([]*instance.ServiceInstance, 0, 1)
	for _, inst := range instances {
		switch inst.State {
		case instance.StateStarting, instance.StateRunning, instance.StateDraining:
			live = append(live, inst)
		}
	}

	switch len(live) {
	case 0:
		return nil, nil
	case 1:
		return live[0], nil
	default:
		err := &RegistryAmbiguityError{ServiceName: serviceName, Count: len(live)}
		attempt.fail(PhaseQuery, err)
		uc.logger.Error("registry_ambiguous",
			zap.String("service", serviceName),
			zap.Int("live_instances", len(live)),
		)
		return nil, err
	}
}

func (uc *RedeployUseCase) drain(ctx context.Context, id string, attempt *DeploymentAttempt) error {
	stopCtx, cancel := context.WithTimeout(ctx, uc.timing.StopGrace)
	err := uc.registry.Stop(stopCtx, id)
	cancel()
	if err == nil {
		err = uc.awaitState(ctx, id, instance.StateStopped, uc.timing.StopGrace)
	}
	if err != nil {
		dterr := &DrainTimeoutError{InstanceID: id, Stage: "stop", Grace: uc.timing.StopGrace, Err: err}
		attempt.fail(PhaseDrain, dterr)
		return dterr
	}

	removeCtx, cancel := context.WithTimeout(ctx, uc.timing.RemoveGrace)
	err = uc.registry.Remove(removeCtx, id)
	cancel()
	if err == nil {
		err = uc.awaitState(ctx, id, instance.StateRemoved, uc.timing.RemoveGrace)
	}
	if err != nil {
		dterr := &DrainTimeoutError{InstanceID: id, Stage: "remove", Grace: uc.timing.RemoveGrace, Err: err}
		attempt.fail(PhaseDrain, dterr)
		return dterr
	}

	return nil
}

func (uc *RedeployUseCase) start(ctx context.Context, req Request, imageRef string, attempt *DeploymentAttempt) (*instance.ServiceInstance, error) {
	startCtx, cancel := context.WithTimeout(ctx, uc.timing.StartDeadline)
	newInst, err := uc.registry.Start(startCtx, instance.StartSpec{
		ServiceName: req.ServiceName,
		ImageRef:    imageRef,
		Volume:      req.Volume,
		Env:         uc.cfg.ConduitEnv(),
	})
	cancel()
	if err != nil {
		serr := &StartError{Err: err}
		attempt.fail(PhaseStart, serr)
		uc.logger.Error("start_failed_service_down",
			zap.Error(err),
			zap.String("service", req.ServiceName),
		)
		return nil, serr
	}
	attempt.NewInstanceID = newInst.ID

	if err := uc.awaitState(ctx, newInst.ID, instance.StateRunning, uc.timing.StartDeadline); err != nil {
		serr := &StartError{InstanceID: newInst.ID, Err: err}
		attempt.fail(PhaseStart, serr)
		uc.logger.Error("start_failed_service_down",
			zap.Error(err),
			zap.String("service", req.ServiceName),
			zap.String("instance", newInst.ID),
		)
		return nil, serr
	}
	return newInst, nil
}

func (uc *RedeployUseCase) probe(ctx context.Context, req Request, newInst *instance.ServiceInstance, attempt *DeploymentAttempt) error {
	endpoint := uc.resolveEndpoint(req)
	report, err := uc.prober.Probe(ctx, endpoint)
	if err != nil {
		pf := &ProbeFailure{InstanceID: newInst.ID, Endpoint: endpoint, Err: err}
		attempt.fail(PhaseProbe, pf)
		// The instance stays up for diagnosis; no auto-remove here.
		uc.logger.Error("probe_failed_instance_left_running",
			zap.Error(err),
			zap.String("instance", newInst.ID),
			zap.Int("attempts", report.Attempts),
		)
		return pf
	}
	return nil
}

// awaitState polls observed instance state until want is reached or the
// grace period ends. A removed instance satisfies a stopped wait: removal
// implies it passed through stopped.
func (uc *RedeployUseCase) awaitState(ctx context.Context, id string, want instance.State, grace time.Duration) error {
	deadline := time.Now().Add(grace)
	ticker := time.NewTicker(uc.timing.PollInterval)
	defer ticker.Stop()

	for {
		inst, err := uc.registry.Get(ctx, id)
		if err != nil {
			return err
		}
		got := instance.StateRemoved
		if inst != nil {
			got = inst.State
		}
		if got == want || (want == instance.StateStopped && got == instance.StateRemoved) {
			return nil
		}
		if want == instance.StateRunning && got == instance.StateStopped {
			return fmt.Errorf("instance %s died before reaching running", id)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("instance %s did not reach %s within %s (last observed %s)", id, want, grace, got)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (uc *RedeployUseCase) resolveImageRef(ctx context.Context, raw string) (string, error) {
	ref := strings.TrimSpace(raw)
	if ref != "" {
		return ref, nil
	}
	if uc.versions != nil {
		if v, err := uc.versions.GetDefaultVersion(ctx, version.AppConduit); err == nil && v != nil {
			return v.DockerImage, nil
		}
	}
	if uc.cfg.DefaultConduitVersion != "" {
		return fmt.Sprintf("%s:%s", uc.cfg.BuilderImageRepo, uc.cfg.DefaultConduitVersion), nil
	}
	return "", fmt.Errorf("image ref is required")
}

func (uc *RedeployUseCase) resolveEndpoint(req Request) string {
	if strings.TrimSpace(req.Endpoint) != "" {
		return strings.TrimSpace(req.Endpoint)
	}
	root := strings.TrimSpace(uc.cfg.AppRootDomain)
	if root == "" {
		return fmt.Sprintf("http://localhost:%d", uc.cfg.ConduitPort)
	}
	scheme := strings.TrimSpace(uc.cfg.AppRootScheme)
	if scheme == "" {
		if strings.EqualFold(uc.cfg.Environment, "production") {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return fmt.Sprintf("%s://%s.%s", scheme, req.ServiceName, root)
}

func (uc *RedeployUseCase) record(ctx context.Context, attempt *DeploymentAttempt) {
	attempt.FinishedAt = time.Now().UTC()
	if attempt.Outcome == "" {
		attempt.Outcome = OutcomeFailed
	}
	observeAttempt(attempt.ServiceName, attempt.Outcome)
	if uc.attempts == nil {
		return
	}
	if err := uc.attempts.Save(ctx, attempt); err != nil {
		uc.logger.Warn("attempt_record_failed", zap.Error(err), zap.String("attempt_id", attempt.ID))
	}
}
