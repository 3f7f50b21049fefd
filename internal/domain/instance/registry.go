package instance

import (
	"context"

	"github.com/sichatlabs/sichat-deploy/internal/domain/volume"
)

// StartSpec describes the instance to launch.
type StartSpec struct {
	ServiceName string
	ImageRef    string
	Volume      volume.Binding
	Env         map[string]string
}

// Registry is a thin accessor over the orchestration platform's instance
// lifecycle API. It has no consistency model of its own beyond what the
// platform guarantees; callers compensate by polling observed state.
type Registry interface {
	// List retrieves all instances whose identifier matches the service's
	// naming convention, in any state the platform still reports.
	List(ctx context.Context, serviceName string) ([]*ServiceInstance, error)

	// Get retrieves a single instance by ID. It returns an instance in
	// removed state when the platform no longer knows the identifier.
	Get(ctx context.Context, id string) (*ServiceInstance, error)

	// Stop requests a graceful stop. The call returns once the request is
	// accepted; reaching stopped state is observed via Get.
	Stop(ctx context.Context, id string) error

	// Remove deletes the instance from the platform. Only valid once the
	// instance has stopped.
	Remove(ctx context.Context, id string) error

	// Start launches a new instance with the given image and volume and
	// returns its platform-assigned record in starting state.
	Start(ctx context.Context, spec StartSpec) (*ServiceInstance, error)
}
