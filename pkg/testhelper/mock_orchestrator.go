package testhelper

import (
	"context"
	"fmt"
	"sync"

	"github.com/sichatlabs/sichat-deploy/internal/domain/instance"
	"github.com/sichatlabs/sichat-deploy/internal/domain/volume"
)

// MockOrchestrator is an in-memory implementation of instance.Registry for
// testing. Stopped and removed instances do not transition on their own:
// each Get advances an instance one step along its scripted progression, so
// tests exercise the polling loops the same way a real platform would.
type MockOrchestrator struct {
	mu        sync.Mutex
	instances map[string]*instance.ServiceInstance

	// GetsUntilStopped and GetsUntilRunning delay the scripted transitions
	// by the given number of Get observations. Zero means the transition is
	// visible on the first Get after the request.
	GetsUntilStopped int
	GetsUntilRunning int

	// StuckDraining pins a draining instance in draining state forever.
	StuckDraining bool
	// FailStart makes Start return an error.
	FailStart error
	// DieAfterStart moves a started instance to stopped instead of running.
	DieAfterStart bool

	StopCalls   []string
	RemoveCalls []string
	StartCalls  []instance.StartSpec

	nextID     int
	stopWaits  map[string]int
	startWaits map[string]int
}

func NewMockOrchestrator() *MockOrchestrator {
	return &MockOrchestrator{
		instances:  make(map[string]*instance.ServiceInstance),
		stopWaits:  make(map[string]int),
		startWaits: make(map[string]int),
	}
}

// Seed registers a running instance and returns its ID.
func (m *MockOrchestrator) Seed(serviceName, imageRef, volumeName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("%s-%d", serviceName, m.nextID)
	inst := instance.NewServiceInstance(id, serviceName, imageRef, volumeName, "fra")
	_ = inst.MarkRunning()
	m.instances[id] = inst
	return id
}

// SeedStarting registers an instance that has not yet reported running.
func (m *MockOrchestrator) SeedStarting(serviceName, imageRef, volumeName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("%s-%d", serviceName, m.nextID)
	m.instances[id] = instance.NewServiceInstance(id, serviceName, imageRef, volumeName, "fra")
	return id
}

func (m *MockOrchestrator) List(ctx context.Context, serviceName string) ([]*instance.ServiceInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*instance.ServiceInstance
	for _, inst := range m.instances {
		if inst.ServiceName == serviceName && inst.State != instance.StateRemoved {
			copied := *inst
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockOrchestrator) Get(ctx context.Context, id string) (*instance.ServiceInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		gone := instance.NewServiceInstance(id, "", "", "", "")
		gone.State = instance.StateRemoved
		return gone, nil
	}

	m.advance(inst)

	copied := *inst
	return &copied, nil
}

// advance applies the scripted state progression one observation at a time.
func (m *MockOrchestrator) advance(inst *instance.ServiceInstance) {
	switch inst.State {
	case instance.StateDraining:
		if m.StuckDraining {
			return
		}
		if m.stopWaits[inst.ID] > 0 {
			m.stopWaits[inst.ID]--
			return
		}
		_ = inst.MarkStopped()
	case instance.StateStarting:
		if m.startWaits[inst.ID] > 0 {
			m.startWaits[inst.ID]--
			return
		}
		if m.DieAfterStart {
			inst.State = instance.StateStopped
			inst.LastError = "task exited immediately"
			return
		}
		_ = inst.MarkRunning()
	}
}

func (m *MockOrchestrator) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StopCalls = append(m.StopCalls, id)
	inst, ok := m.instances[id]
	if !ok {
		return instance.ErrNotFound
	}
	if err := inst.MarkDraining(); err != nil {
		return err
	}
	m.stopWaits[id] = m.GetsUntilStopped
	return nil
}

func (m *MockOrchestrator) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemoveCalls = append(m.RemoveCalls, id)
	inst, ok := m.instances[id]
	if !ok {
		return instance.ErrNotFound
	}
	if err := inst.MarkRemoved(); err != nil {
		return err
	}
	return nil
}

func (m *MockOrchestrator) Start(ctx context.Context, spec instance.StartSpec) (*instance.ServiceInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartCalls = append(m.StartCalls, spec)
	if m.FailStart != nil {
		return nil, m.FailStart
	}

	m.nextID++
	id := fmt.Sprintf("%s-%d", spec.ServiceName, m.nextID)
	inst := instance.NewServiceInstance(id, spec.ServiceName, spec.ImageRef, spec.Volume.Name, spec.Volume.Region)
	m.instances[id] = inst
	m.startWaits[id] = m.GetsUntilRunning

	copied := *inst
	return &copied, nil
}

// VolumeHolders returns the IDs of non-removed instances attached to the
// named volume.
func (m *MockOrchestrator) VolumeHolders(vol volume.Binding) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for id, inst := range m.instances {
		if inst.HoldsVolume(vol.Name) {
			out = append(out, id)
		}
	}
	return out
}
