package deployment

import (
	"fmt"
	"time"
)

// BuildError: the image could not be produced. Fatal, no deploy attempted.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("image build failed: %v", e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// RegistryAmbiguityError: more than one live instance matched the service
// name. The controller refuses to guess which one owns the volume; an
// operator must resolve it.
type RegistryAmbiguityError struct {
	ServiceName string
	Count       int
}

func (e *RegistryAmbiguityError) Error() string {
	return fmt.Sprintf("registry reports %d live instances for %q, expected at most one", e.Count, e.ServiceName)
}

// DrainTimeoutError: the old instance did not stop or remove within the
// grace period. The new instance is never started in this case, because the
// old one might still hold the volume.
type DrainTimeoutError struct {
	InstanceID string
	Stage      string // "stop" or "remove"
	Grace      time.Duration
	Err        error
}

func (e *DrainTimeoutError) Error() string {
	return fmt.Sprintf("instance %s failed to %s within %s: %v", e.InstanceID, e.Stage, e.Grace, e.Err)
}

func (e *DrainTimeoutError) Unwrap() error { return e.Err }

// StartError: the new instance failed to reach running. The service is left
// down; this is reported loudly and never retried silently, since a blind
// retry against the volume risks corrupting it.
type StartError struct {
	InstanceID string
	Err        error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("new instance %s failed to start: %v", e.InstanceID, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// ProbeFailure: the new instance is running but did not serve the expected
// readiness document within the retry budget. The instance is left running
// for operator diagnosis.
type ProbeFailure struct {
	InstanceID string
	Endpoint   string
	Err        error
}

func (e *ProbeFailure) Error() string {
	return fmt.Sprintf("instance %s running but unhealthy at %s: %v", e.InstanceID, e.Endpoint, e.Err)
}

func (e *ProbeFailure) Unwrap() error { return e.Err }
