package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewServiceInstance(t *testing.T) {
	inst := NewServiceInstance("sichat-42", "sichat", "registry.test/conduit:v0.7.0", "sichat_data", "fra")

	assert.Equal(t, "sichat-42", inst.ID)
	assert.Equal(t, "sichat", inst.ServiceName)
	assert.Equal(t, "registry.test/conduit:v0.7.0", inst.ImageRef)
	assert.Equal(t, "sichat_data", inst.VolumeName)
	assert.Equal(t, "fra", inst.Region)
	assert.Equal(t, StateStarting, inst.State)
	assert.NotZero(t, inst.CreatedAt)
	assert.NotZero(t, inst.UpdatedAt)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		// Same state
		{"same state", StateRunning, StateRunning, true},

		// Starting transitions
		{"starting to running", StateStarting, StateRunning, true},
		// A replace can catch the previous instance before it ever
		// reported running; draining straight from starting is legal.
		{"starting to draining", StateStarting, StateDraining, true},
		{"starting to stopped", StateStarting, StateStopped, true},
		{"starting to removed", StateStarting, StateRemoved, true},

		// Running transitions
		{"running to draining", StateRunning, StateDraining, true},
		{"running to stopped", StateRunning, StateStopped, true},

		// Draining transitions
		{"draining to stopped", StateDraining, StateStopped, true},
		{"draining to removed", StateDraining, StateRemoved, true},

		// Stopped transitions
		{"stopped to removed", StateStopped, StateRemoved, true},

		// The lifecycle is forward-only
		{"running to starting", StateRunning, StateStarting, false},
		{"stopped to running", StateStopped, StateRunning, false},
		{"draining to running", StateDraining, StateRunning, false},
		{"removed to anything", StateRemoved, StateStarting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanTransition(tt.from, tt.to)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarkTransitions(t *testing.T) {
	inst := NewServiceInstance("sichat-1", "sichat", "img", "vol", "fra")

	assert.NoError(t, inst.MarkRunning())
	assert.NoError(t, inst.MarkDraining())
	assert.NoError(t, inst.MarkStopped())
	assert.NoError(t, inst.MarkRemoved())

	// Removed is terminal.
	assert.ErrorIs(t, inst.MarkRunning(), ErrInvalidTransition)
}

func TestHoldsVolume(t *testing.T) {
	inst := NewServiceInstance("sichat-1", "sichat", "img", "sichat_data", "fra")

	assert.True(t, inst.HoldsVolume("sichat_data"))
	assert.False(t, inst.HoldsVolume("other_volume"))

	_ = inst.MarkRunning()
	assert.True(t, inst.HoldsVolume("sichat_data"))

	_ = inst.MarkDraining()
	assert.True(t, inst.HoldsVolume("sichat_data"))

	_ = inst.MarkStopped()
	assert.False(t, inst.HoldsVolume("sichat_data"))

	_ = inst.MarkRemoved()
	assert.False(t, inst.HoldsVolume("sichat_data"))
}
