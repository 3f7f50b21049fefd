package instance

import (
	"errors"
	"time"
)

// State represents the lifecycle state of a service instance.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
	StateRemoved  State = "removed"
)

var (
	ErrInvalidTransition = errors.New("invalid instance state transition")
	ErrNotFound          = errors.New("instance not found")
)

// validTransitions encodes the forward-only instance lifecycle. An instance
// never re-enters an earlier state; a new version means a new instance.
var validTransitions = map[State][]State{
	StateStarting: {StateRunning, StateDraining, StateStopped, StateRemoved},
	StateRunning:  {StateDraining, StateStopped},
	StateDraining: {StateStopped, StateRemoved},
	StateStopped:  {StateRemoved},
	StateRemoved:  {},
}

// CanTransition reports whether the lifecycle allows moving from one state
// to another. Same-state is always allowed (idempotent observations).
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ServiceInstance is the core domain entity: one running copy of a service,
// identified by the orchestrator-assigned ID. It carries no orchestration
// platform details beyond the opaque identifier.
type ServiceInstance struct {
	ID          string `json:"id"`
	ServiceName string `json:"service_name"`
	ImageRef    string `json:"image_ref"`
	VolumeName  string `json:"volume_name"`
	Region      string `json:"region"`
	State       State  `json:"state"`
	LastError   string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewServiceInstance creates an instance record in starting state.
func NewServiceInstance(id, serviceName, imageRef, volumeName, region string) *ServiceInstance {
	now := time.Now().UTC()
	return &ServiceInstance{
		ID:          id,
		ServiceName: serviceName,
		ImageRef:    imageRef,
		VolumeName:  volumeName,
		Region:      region,
		State:       StateStarting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HoldsVolume reports whether this instance may hold a read-write claim on
// the named volume. Stopped and removed instances have released their claim.
func (i *ServiceInstance) HoldsVolume(volumeName string) bool {
	if i.VolumeName != volumeName {
		return false
	}
	switch i.State {
	case StateStarting, StateRunning, StateDraining:
		return true
	default:
		return false
	}
}

// MarkRunning transitions the instance to running state.
func (i *ServiceInstance) MarkRunning() error {
	return i.transition(StateRunning)
}

// MarkDraining transitions the instance to draining state.
func (i *ServiceInstance) MarkDraining() error {
	return i.transition(StateDraining)
}

// MarkStopped transitions the instance to stopped state.
func (i *ServiceInstance) MarkStopped() error {
	return i.transition(StateStopped)
}

// MarkRemoved transitions the instance to removed state.
func (i *ServiceInstance) MarkRemoved() error {
	return i.transition(StateRemoved)
}

func (i *ServiceInstance) transition(to State) error {
	if !CanTransition(i.State, to) {
		return ErrInvalidTransition
	}
	i.State = to
	i.UpdatedAt = time.Now().UTC()
	return nil
}
